package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"replay/internal/config"
)

const userAgent = "Replay-Go/0.1.0"

// Service defines the notification surface exposed to daemon components.
type Service interface {
	NotifyClipSaved(ctx context.Context, clipName string, duration time.Duration, sizeBytes int64) error
	NotifySaveFailed(ctx context.Context, reason string) error
	NotifyDiskLow(ctx context.Context, freeGB float64) error
	NotifyDiskCritical(ctx context.Context, freeGB float64) error
	NotifyDiskRecovered(ctx context.Context, freeGB float64) error
	NotifyCaptureUnavailable(ctx context.Context, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when
// configured. Without a topic a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
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
}

func (n *ntfyService) NotifyClipSaved(ctx context.Context, clipName string, duration time.Duration, sizeBytes int64) error {
	clipName = strings.TrimSpace(clipName)
	data := payload{
		title:   "Replay - Clip Saved",
		message: fmt.Sprintf("🎬 Saved %s (%s, %s)", clipName, formatDuration(duration), formatSize(sizeBytes)),
		tags:    []string{"replay", "clip", "saved"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySaveFailed(ctx context.Context, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Replay - Save Failed",
		message:  fmt.Sprintf("❌ Save failed: %s", reason),
		tags:     []string{"replay", "clip", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDiskLow(ctx context.Context, freeGB float64) error {
	data := payload{
		title:   "Replay - Disk Low",
		message: fmt.Sprintf("⚠️ Free space low: %.1f GB left in the buffer directory", freeGB),
		tags:    []string{"replay", "disk", "low"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDiskCritical(ctx context.Context, freeGB float64) error {
	data := payload{
		title:    "Replay - Disk Critical",
		message:  fmt.Sprintf("🛑 Free space critical: %.1f GB left, capture paused", freeGB),
		tags:     []string{"replay", "disk", "critical"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDiskRecovered(ctx context.Context, freeGB float64) error {
	data := payload{
		title:   "Replay - Disk Recovered",
		message: fmt.Sprintf("✅ Free space recovered: %.1f GB, capture resumed", freeGB),
		tags:    []string{"replay", "disk", "recovered"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCaptureUnavailable(ctx context.Context, err error) error {
	cause := "unknown"
	if err != nil {
		cause = strings.TrimSpace(err.Error())
	}
	data := payload{
		title:    "Replay - Capture Unavailable",
		message:  fmt.Sprintf("❌ Capture stopped after repeated failures: %s", cause),
		tags:     []string{"replay", "capture", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Replay - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"replay", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func formatSize(bytes int64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

type noopService struct{}

func (noopService) NotifyClipSaved(context.Context, string, time.Duration, int64) error { return nil }
func (noopService) NotifySaveFailed(context.Context, string) error                      { return nil }
func (noopService) NotifyDiskLow(context.Context, float64) error                        { return nil }
func (noopService) NotifyDiskCritical(context.Context, float64) error                   { return nil }
func (noopService) NotifyDiskRecovered(context.Context, float64) error                  { return nil }
func (noopService) NotifyCaptureUnavailable(context.Context, error) error               { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
