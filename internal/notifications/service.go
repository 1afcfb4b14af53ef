package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipline/internal/config"
)

const userAgent = "Clipline/0.1.0"

// Service defines the notification surface exposed to the coordinator. The
// core guarantees events reach its own audit log; outbound delivery here is
// best-effort and failures never affect the primary operation.
type Service interface {
	NotifyOverdueTasks(ctx context.Context, count int, worstTitle string, worstAge time.Duration) error
	NotifyClaimsReclaimed(ctx context.Context, count int64) error
	NotifyStageAdvanced(ctx context.Context, title, fromStage, toStage string) error
	NotifyTaskRejected(ctx context.Context, title, note string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		settings: cfg.Notifications,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	settings config.Notifications
}

func (n *ntfyService) NotifyOverdueTasks(ctx context.Context, count int, worstTitle string, worstAge time.Duration) error {
	if !n.settings.Overdue {
		return nil
	}
	message := fmt.Sprintf("%d task(s) past their stage deadline", count)
	if worstTitle = strings.TrimSpace(worstTitle); worstTitle != "" {
		message = fmt.Sprintf("%s\nWorst: %s (%s in stage)", message, worstTitle, worstAge.Round(time.Minute))
	}
	return n.send(ctx, payload{
		title:    "Clipline - Overdue",
		message:  message,
		tags:     []string{"clipline", "sla", "overdue"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyClaimsReclaimed(ctx context.Context, count int64) error {
	if !n.settings.Claims {
		return nil
	}
	return n.send(ctx, payload{
		title:   "Clipline - Claims Reclaimed",
		message: fmt.Sprintf("%d expired claim(s) returned to the queue", count),
		tags:    []string{"clipline", "lease", "reclaimed"},
	})
}

func (n *ntfyService) NotifyStageAdvanced(ctx context.Context, title, fromStage, toStage string) error {
	if !n.settings.Transitions {
		return nil
	}
	return n.send(ctx, payload{
		title:   "Clipline - Stage Advanced",
		message: fmt.Sprintf("%s: %s -> %s", strings.TrimSpace(title), fromStage, toStage),
		tags:    []string{"clipline", "stage", "advanced"},
	})
}

func (n *ntfyService) NotifyTaskRejected(ctx context.Context, title, note string) error {
	if !n.settings.Transitions {
		return nil
	}
	message := fmt.Sprintf("Rejected: %s", strings.TrimSpace(title))
	if note = strings.TrimSpace(note); note != "" {
		message = fmt.Sprintf("%s\nNote: %s", message, note)
	}
	return n.send(ctx, payload{
		title:    "Clipline - Rejected",
		message:  message,
		tags:     []string{"clipline", "stage", "rejected"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.settings.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Clipline - Error",
		message:  builder.String(),
		tags:     []string{"clipline", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Clipline - Test",
		message:  "Notification system test",
		tags:     []string{"clipline", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyOverdueTasks(context.Context, int, string, time.Duration) error { return nil }
func (noopService) NotifyClaimsReclaimed(context.Context, int64) error                   { return nil }
func (noopService) NotifyStageAdvanced(context.Context, string, string, string) error    { return nil }
func (noopService) NotifyTaskRejected(context.Context, string, string) error             { return nil }
func (noopService) NotifyError(context.Context, error, string) error                     { return nil }
func (noopService) TestNotification(context.Context) error                               { return nil }
