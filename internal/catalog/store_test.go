package catalog_test

import (
	"context"
	"fmt"
	"testing"

	"replay/internal/catalog"
	"replay/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	ctx := context.Background()
	clip, err := store.NewRequest(ctx, "req-1", "Boss Fight", "hotkey", 120)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if clip.ID == 0 {
		t.Fatal("expected clip ID to be assigned")
	}
	if clip.Status != catalog.StatusPending {
		t.Fatalf("new request status = %q, want pending", clip.Status)
	}

	fetched, err := store.GetByID(ctx, clip.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.Title != "Boss Fight" || fetched.RequestedSeconds != 120 {
		t.Fatalf("unexpected fetched clip: %#v", fetched)
	}

	byRequest, err := store.GetByRequestID(ctx, "req-1")
	if err != nil {
		t.Fatalf("GetByRequestID failed: %v", err)
	}
	if byRequest == nil || byRequest.ID != clip.ID {
		t.Fatalf("expected to find inserted clip, got %#v", byRequest)
	}

	missing, err := store.GetByRequestID(ctx, "req-unknown")
	if err != nil {
		t.Fatalf("GetByRequestID for missing clip failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown request, got %#v", missing)
	}
}

func TestNewRequestValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	ctx := context.Background()
	if _, err := store.NewRequest(ctx, "", "No ID", "cli", 60); err == nil {
		t.Fatal("expected error when request id missing")
	}
	if _, err := store.NewRequest(ctx, "req-zero", "Zero", "cli", 0); err == nil {
		t.Fatal("expected error when requested seconds is zero")
	}
	if _, err := store.NewRequest(ctx, "req-dup", "First", "cli", 60); err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if _, err := store.NewRequest(ctx, "req-dup", "Second", "cli", 60); err == nil {
		t.Fatal("expected error for duplicate request id")
	}
}

func TestLifecycleTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	ctx := context.Background()
	clip, err := store.NewRequest(ctx, "req-life", "Clutch Round", "hotkey", 90)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}

	if err := store.SetEncodePath(ctx, clip.ID, catalog.EncodeCopy); err == nil {
		t.Fatal("expected error when setting encode path on a pending clip")
	}

	if err := store.MarkAssembling(ctx, clip.ID); err != nil {
		t.Fatalf("MarkAssembling failed: %v", err)
	}
	if err := store.MarkAssembling(ctx, clip.ID); err == nil {
		t.Fatal("expected error when marking a non-pending clip assembling")
	}

	if err := store.SetEncodePath(ctx, clip.ID, catalog.EncodeCopy); err != nil {
		t.Fatalf("SetEncodePath failed: %v", err)
	}
	midway, err := store.GetByID(ctx, clip.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if midway.Status != catalog.StatusAssembling || midway.EncodePath != catalog.EncodeCopy {
		t.Fatalf("mid-flight clip = %q/%q, want assembling/copy", midway.Status, midway.EncodePath)
	}
	if err := store.SetEncodePath(ctx, clip.ID, catalog.EncodeReencode); err != nil {
		t.Fatalf("SetEncodePath to reencode failed: %v", err)
	}

	done := catalog.Completion{
		OutputPath:    "/clips/20250102_030405.000_90s_Clutch_Round.mp4",
		ThumbnailPath: "/clips/20250102_030405.000_90s_Clutch_Round.jpg",
		SizeBytes:     1 << 20,
		ActualSeconds: 88.2,
		SegmentCount:  9,
		EncodePath:    catalog.EncodeCopy,
	}
	if err := store.MarkCompleted(ctx, clip.ID, done); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	final, err := store.GetByID(ctx, clip.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Status != catalog.StatusCompleted {
		t.Fatalf("status = %q, want completed", final.Status)
	}
	if final.OutputPath != done.OutputPath || final.ThumbnailPath != done.ThumbnailPath {
		t.Fatalf("unexpected output paths: %#v", final)
	}
	if final.SizeBytes != done.SizeBytes || final.SegmentCount != done.SegmentCount {
		t.Fatalf("unexpected size or segment count: %#v", final)
	}
	if final.ActualSeconds != done.ActualSeconds {
		t.Fatalf("actual seconds = %v, want %v", final.ActualSeconds, done.ActualSeconds)
	}
	if final.EncodePath != catalog.EncodeCopy {
		t.Fatalf("encode path = %q, want copy", final.EncodePath)
	}
	if final.CompletedAt == nil {
		t.Fatal("completed clip should record completion time")
	}
	if final.ErrorMessage != "" {
		t.Fatalf("completed clip should clear error message, got %q", final.ErrorMessage)
	}
}

func TestMarkFailedRecordsReason(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	ctx := context.Background()
	clip, err := store.NewRequest(ctx, "req-fail", "", "cli", 60)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if err := store.MarkAssembling(ctx, clip.ID); err != nil {
		t.Fatalf("MarkAssembling failed: %v", err)
	}
	if err := store.MarkFailed(ctx, clip.ID, "no complete segments buffered"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	failed, err := store.GetByID(ctx, clip.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if failed.Status != catalog.StatusFailed {
		t.Fatalf("status = %q, want failed", failed.Status)
	}
	if failed.ErrorMessage != "no complete segments buffered" {
		t.Fatalf("error message = %q", failed.ErrorMessage)
	}
	if failed.CompletedAt != nil {
		t.Fatal("failed clip should not record a completion time")
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	ctx := context.Background()
	var lastID int64
	for i := 0; i < 3; i++ {
		clip, err := store.NewRequest(ctx, fmt.Sprintf("req-%d", i), fmt.Sprintf("Clip %d", i), "hotkey", 60)
		if err != nil {
			t.Fatalf("NewRequest failed: %v", err)
		}
		lastID = clip.ID
	}

	clips, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(clips) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(clips))
	}
	if clips[0].ID != lastID {
		t.Fatalf("expected newest clip first, got id %d want %d", clips[0].ID, lastID)
	}

	if err := store.MarkAssembling(ctx, lastID); err != nil {
		t.Fatalf("MarkAssembling failed: %v", err)
	}
	assembling, err := store.List(ctx, 0, catalog.StatusAssembling)
	if err != nil {
		t.Fatalf("List by status failed: %v", err)
	}
	if len(assembling) != 1 || assembling[0].ID != lastID {
		t.Fatalf("unexpected assembling clips: %#v", assembling)
	}
}

func TestFailInFlightLeavesCompletedAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	ctx := context.Background()
	pending, err := store.NewRequest(ctx, "req-pending", "", "hotkey", 60)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	assembling, err := store.NewRequest(ctx, "req-assembling", "", "hotkey", 60)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if err := store.MarkAssembling(ctx, assembling.ID); err != nil {
		t.Fatalf("MarkAssembling failed: %v", err)
	}
	completed, err := store.NewRequest(ctx, "req-completed", "", "hotkey", 60)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if err := store.MarkAssembling(ctx, completed.ID); err != nil {
		t.Fatalf("MarkAssembling failed: %v", err)
	}
	if err := store.MarkCompleted(ctx, completed.ID, catalog.Completion{OutputPath: "/clips/a.mp4", EncodePath: catalog.EncodeCopy}); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	count, err := store.FailInFlight(ctx, catalog.InterruptedReason)
	if err != nil {
		t.Fatalf("FailInFlight failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 clips failed, got %d", count)
	}

	for _, id := range []int64{pending.ID, assembling.ID} {
		clip, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if clip.Status != catalog.StatusFailed {
			t.Fatalf("clip %d status = %q, want failed", id, clip.Status)
		}
		if clip.ErrorMessage != catalog.InterruptedReason {
			t.Fatalf("clip %d error = %q", id, clip.ErrorMessage)
		}
	}

	untouched, err := store.GetByID(ctx, completed.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if untouched.Status != catalog.StatusCompleted {
		t.Fatalf("completed clip status = %q, want completed", untouched.Status)
	}
}

func TestLastCompleted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	ctx := context.Background()
	none, err := store.LastCompleted(ctx)
	if err != nil {
		t.Fatalf("LastCompleted failed: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil before any completion, got %#v", none)
	}

	for i := 0; i < 2; i++ {
		clip, err := store.NewRequest(ctx, fmt.Sprintf("req-done-%d", i), "", "hotkey", 60)
		if err != nil {
			t.Fatalf("NewRequest failed: %v", err)
		}
		if err := store.MarkAssembling(ctx, clip.ID); err != nil {
			t.Fatalf("MarkAssembling failed: %v", err)
		}
		done := catalog.Completion{OutputPath: fmt.Sprintf("/clips/clip-%d.mp4", i), EncodePath: catalog.EncodeCopy}
		if err := store.MarkCompleted(ctx, clip.ID, done); err != nil {
			t.Fatalf("MarkCompleted failed: %v", err)
		}
	}

	last, err := store.LastCompleted(ctx)
	if err != nil {
		t.Fatalf("LastCompleted failed: %v", err)
	}
	if last == nil || last.OutputPath != "/clips/clip-1.mp4" {
		t.Fatalf("unexpected last completed clip: %#v", last)
	}
}

func TestHealthCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		clip, err := store.NewRequest(ctx, fmt.Sprintf("req-health-%d", i), "", "hotkey", 60)
		if err != nil {
			t.Fatalf("NewRequest failed: %v", err)
		}
		switch i {
		case 1:
			if err := store.MarkAssembling(ctx, clip.ID); err != nil {
				t.Fatalf("MarkAssembling failed: %v", err)
			}
		case 2:
			if err := store.MarkAssembling(ctx, clip.ID); err != nil {
				t.Fatalf("MarkAssembling failed: %v", err)
			}
			if err := store.MarkFailed(ctx, clip.ID, "boom"); err != nil {
				t.Fatalf("MarkFailed failed: %v", err)
			}
		}
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	want := catalog.HealthSummary{Total: 3, Pending: 1, Assembling: 1, Failed: 1}
	if health != want {
		t.Fatalf("health = %#v, want %#v", health, want)
	}
}
