package audit_test

import (
	"testing"
	"time"

	"clipline/internal/audit"
)

func TestMergeOrdersAcrossStreams(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stored := []audit.Event{
		{Seq: 1, Type: audit.TypeTaskCreated, CreatedAt: base},
		{Seq: 2, Type: audit.TypeClaimed, CreatedAt: base.Add(2 * time.Minute)},
	}
	external := []audit.Event{
		{Type: audit.TypePayloadAttached, CreatedAt: base.Add(time.Minute)},
	}

	merged := audit.Merge(stored, external)
	if len(merged) != 3 {
		t.Fatalf("expected 3 events, got %d", len(merged))
	}
	want := []audit.Type{audit.TypeTaskCreated, audit.TypePayloadAttached, audit.TypeClaimed}
	for i, typ := range want {
		if merged[i].Type != typ {
			t.Fatalf("position %d: expected %s, got %s", i, typ, merged[i].Type)
		}
	}
}

func TestBeforeBreaksTiesBySeq(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := audit.Event{Seq: 1, CreatedAt: at}
	second := audit.Event{Seq: 2, CreatedAt: at}

	if !first.Before(second) {
		t.Fatal("lower seq at the same instant must sort first")
	}
	if second.Before(first) {
		t.Fatal("ordering must be asymmetric")
	}
}

func TestZeroSeqSortsBeforeStoredAtSameInstant(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stored := []audit.Event{{Seq: 5, Type: audit.TypeTransition, CreatedAt: at}}
	external := []audit.Event{{Type: audit.TypePayloadAttached, CreatedAt: at}}

	merged := audit.Merge(stored, external)
	if merged[0].Type != audit.TypePayloadAttached || merged[1].Type != audit.TypeTransition {
		t.Fatalf("zero-seq event must sort first at the same instant: %#v", merged)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	raw := audit.EncodeMetadata(map[string]any{"reason": "handover", "count": 2.0})
	event := audit.Event{Metadata: raw}

	meta := event.MetadataMap()
	if meta["reason"] != "handover" {
		t.Fatalf("unexpected metadata: %v", meta)
	}
	if meta["count"] != 2.0 {
		t.Fatalf("unexpected metadata: %v", meta)
	}
}

func TestMetadataMapToleratesAbsence(t *testing.T) {
	if audit.EncodeMetadata(nil) != nil {
		t.Fatal("empty metadata encodes to nil")
	}
	if (audit.Event{}).MetadataMap() != nil {
		t.Fatal("no metadata decodes to nil")
	}
	if (audit.Event{Metadata: []byte("not json")}).MetadataMap() != nil {
		t.Fatal("malformed metadata decodes to nil")
	}
}
