package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/i474232898/openweather-sensor/internal/schedule"
)

func testTrigger(t *testing.T, interval string, minute int) schedule.Trigger {
	t.Helper()
	class, err := schedule.ParseInterval(interval)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 1, 1, 12, minute, 0, 0, time.UTC)
	return schedule.Trigger{
		Name:       schedule.TriggerName,
		Descriptor: schedule.Derive(class, now),
		Handler:    func(ctx context.Context) error { return nil },
	}
}

func TestCreateAndDelete(t *testing.T) {
	s := New(time.Second)
	s.Start()
	defer s.Stop()

	ctx := context.Background()
	if err := s.Create(ctx, "inst-1", testTrigger(t, "30", 47)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	next, ok := s.NextRun("inst-1", schedule.TriggerName)
	if !ok {
		t.Fatal("expected a live trigger")
	}
	if m := next.UTC().Minute(); m != 17 && m != 47 {
		t.Errorf("next run at minute %d, want 17 or 47", m)
	}

	if err := s.Delete(ctx, "inst-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.NextRun("inst-1", schedule.TriggerName); ok {
		t.Error("expected no live trigger after delete")
	}
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	if err := s.Create(ctx, "inst-1", testTrigger(t, "0", 5)); err != nil {
		t.Fatal(err)
	}
	err := s.Create(ctx, "inst-1", testTrigger(t, "15", 5))
	if !errors.Is(err, ErrDuplicateTrigger) {
		t.Fatalf("expected ErrDuplicateTrigger, got %v", err)
	}

	// Another installation may use the same name.
	if err := s.Create(ctx, "inst-2", testTrigger(t, "0", 5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateRejectsNever(t *testing.T) {
	s := New(0)
	if err := s.Create(context.Background(), "inst-1", testTrigger(t, "never", 5)); err == nil {
		t.Fatal("expected error for a trigger without recurrence")
	}
}

func TestDeleteWithoutTriggersIsNoop(t *testing.T) {
	s := New(0)
	if err := s.Delete(context.Background(), "missing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteOnlyAffectsInstallation(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	_ = s.Create(ctx, "inst-1", testTrigger(t, "1", 0))
	_ = s.Create(ctx, "inst-2", testTrigger(t, "1", 0))

	if err := s.Delete(ctx, "inst-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.NextRun("inst-2", schedule.TriggerName); !ok {
		t.Error("inst-2 trigger must survive deleting inst-1")
	}
}

func TestRunAppliesTimeout(t *testing.T) {
	s := New(50 * time.Millisecond)

	var deadline bool
	s.run("inst-1", schedule.TriggerName, func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return errors.New("ignored")
	})

	if !deadline {
		t.Error("handler context must carry the configured timeout")
	}
}
