package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"replay/internal/config"
	"replay/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyClipSaved(context.Background(), "clip.mp4", time.Minute, 1024); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "clip saved",
			notify: func(svc notifications.Service) error {
				return svc.NotifyClipSaved(context.Background(), "20250102_030405.000_90s_Boss_Fight.mp4", 90*time.Second, 5<<20)
			},
			expectTitle:   "Replay - Clip Saved",
			expectMessage: "🎬 Saved 20250102_030405.000_90s_Boss_Fight.mp4 (1m30s, 5.0 MB)",
			expectTags:    "replay,clip,saved",
		},
		{
			name: "save failed",
			notify: func(svc notifications.Service) error {
				return svc.NotifySaveFailed(context.Background(), "no complete segments buffered")
			},
			expectTitle:    "Replay - Save Failed",
			expectMessage:  "❌ Save failed: no complete segments buffered",
			expectTags:     "replay,clip,failed",
			expectPriority: "high",
		},
		{
			name: "disk low",
			notify: func(svc notifications.Service) error {
				return svc.NotifyDiskLow(context.Background(), 4.2)
			},
			expectTitle:   "Replay - Disk Low",
			expectMessage: "⚠️ Free space low: 4.2 GB left in the buffer directory",
			expectTags:    "replay,disk,low",
		},
		{
			name: "disk critical",
			notify: func(svc notifications.Service) error {
				return svc.NotifyDiskCritical(context.Background(), 1.5)
			},
			expectTitle:    "Replay - Disk Critical",
			expectMessage:  "🛑 Free space critical: 1.5 GB left, capture paused",
			expectTags:     "replay,disk,critical",
			expectPriority: "high",
		},
		{
			name: "capture unavailable",
			notify: func(svc notifications.Service) error {
				return svc.NotifyCaptureUnavailable(context.Background(), errors.New("ffmpeg exited immediately"))
			},
			expectTitle:    "Replay - Capture Unavailable",
			expectMessage:  "❌ Capture stopped after repeated failures: ffmpeg exited immediately",
			expectTags:     "replay,capture,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeoutSeconds = 5

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error from ntfy failure")
	}
}
