package logging

import (
	"log/slog"
	"time"
)

// Attr aliases slog.Attr so callers need not import both packages.
type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Common field names so task-scoped log lines stay greppable.
const (
	FieldTaskID        = "task_id"
	FieldStage         = "stage"
	FieldActor         = "actor"
	FieldRole          = "role"
	FieldCorrelationID = "correlation_id"
)

func TaskID(id string) Attr { return slog.String(FieldTaskID, id) }

func Stage(stage string) Attr { return slog.String(FieldStage, stage) }

func Actor(actor string) Attr { return slog.String(FieldActor, actor) }

func CorrelationID(id string) Attr { return slog.String(FieldCorrelationID, id) }
