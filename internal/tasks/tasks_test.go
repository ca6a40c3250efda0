package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.db")
	st, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer func() { _ = st.Close() }()

	id, err := st.Add(ctx, "delete_media", "camera=1", time.Now().Add(-time.Second))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := st.Add(ctx, "later", "", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	due, err := st.Due(ctx, time.Now())
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 1 || due[0].ID != id || due[0].Name != "delete_media" || due[0].Payload != "camera=1" {
		t.Fatalf("due = %+v", due)
	}

	if err := st.Remove(ctx, id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	n, err := st.Pending(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Pending = %d, %v", n, err)
	}
}

func TestStoreDueOrdering(t *testing.T) {
	ctx := context.Background()
	st, err := OpenStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer func() { _ = st.Close() }()

	now := time.Now()
	if _, err := st.Add(ctx, "second", "", now.Add(-time.Minute)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := st.Add(ctx, "first", "", now.Add(-time.Hour)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	due, err := st.Due(ctx, now)
	if err != nil || len(due) != 2 {
		t.Fatalf("Due = %+v, %v", due, err)
	}
	if due[0].Name != "first" || due[1].Name != "second" {
		t.Fatalf("order wrong: %s, %s", due[0].Name, due[1].Name)
	}
}

func TestTasksSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.db")
	st, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if _, err := st.Add(ctx, "persisted", "x", time.Now()); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2, err := OpenStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = st2.Close() }()
	n, err := st2.Pending(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Pending after reopen = %d, %v", n, err)
	}
}

func TestSchedulerDispatchesDueTask(t *testing.T) {
	st, err := OpenStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	s := NewScheduler(st, 10*time.Millisecond, discard())

	var got atomic.Value
	s.Register("notify", func(_ context.Context, payload string) error {
		got.Store(payload)
		return nil
	})
	if _, err := s.Schedule(context.Background(), "notify", "hello", -time.Second); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got.Load() != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if v := got.Load(); v != "hello" {
		t.Fatalf("handler payload = %v", v)
	}
}

func TestSchedulerConsumesFailingAndUnknownTasks(t *testing.T) {
	ctx := context.Background()
	st, err := OpenStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	s := NewScheduler(st, time.Hour, discard())
	s.Register("broken", func(context.Context, string) error { return errors.New("boom") })

	if _, err := st.Add(ctx, "broken", "", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := st.Add(ctx, "nobody_handles_this", "", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	s.runDue(ctx)

	n, err := st.Pending(ctx)
	if err != nil || n != 0 {
		t.Fatalf("Pending = %d, %v; failing tasks must still be consumed", n, err)
	}
	_ = st.Close()
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	st, err := OpenStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	s := NewScheduler(st, 10*time.Millisecond, discard())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.Running() {
		t.Fatal("not running after Start")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.Running() {
		t.Fatal("still running after Stop")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
