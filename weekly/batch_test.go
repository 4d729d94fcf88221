package weekly

import (
	"context"
	"testing"
	"time"

	"github.com/becomeliminal/analytics-core/model"
	"github.com/becomeliminal/analytics-core/store"
)

// erroringCapability fails Search for any userID in failFor.
type erroringCapability struct {
	failFor map[string]bool
	text    string
}

func (e *erroringCapability) Search(ctx context.Context, userID, prompt string, onChunk func(string)) (string, int, error) {
	if e.failFor[userID] {
		return "", 0, Wrap(context.DeadlineExceeded, KindTimeout)
	}
	return e.text, 1, nil
}

func TestRunBatch_OneUsersFailureDoesNotBlockAnother(t *testing.T) {
	items := store.NewMemoryPurchaseStore()
	reports := store.NewMemoryReportStore()
	weekStart := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)
	putWeeklyItem(items, "i1", "good-user", "Blue Bottle Coffee", "Latte", 5.0, weekStart.Add(24*time.Hour))
	putWeeklyItem(items, "i2", "bad-user", "Blue Bottle Coffee", "Latte", 5.0, weekStart.Add(24*time.Hour))

	cap := &erroringCapability{failFor: map[string]bool{"bad-user": true}, text: pipelineFinding}
	pipeline := NewPipeline(items, reports, cap, 10, 1.0, 0)
	lease, err := store.NewRistrettoLease()
	if err != nil {
		t.Fatalf("NewRistrettoLease() error = %v", err)
	}
	runner := NewBatchRunner(pipeline, items, lease)

	log, err := runner.RunBatch(context.Background(), BatchParams{WeekStart: weekStart})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if log.TotalUsers != 2 {
		t.Fatalf("TotalUsers = %d, want 2", log.TotalUsers)
	}
	if log.Successful != 1 {
		t.Errorf("Successful = %d, want 1", log.Successful)
	}
	if log.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", log.Failed)
	}
	if log.FailedUsers[0].UserID != "bad-user" {
		t.Errorf("FailedUsers[0].UserID = %q, want bad-user", log.FailedUsers[0].UserID)
	}
	if log.FailedUsers[0].Kind != KindTimeout {
		t.Errorf("FailedUsers[0].Kind = %q, want timeout", log.FailedUsers[0].Kind)
	}

	if _, err := reports.Get(context.Background(), "good-user", &weekStart); err != nil {
		t.Errorf("good-user's report should have been persisted, Get() error = %v", err)
	}
	if _, err := reports.Get(context.Background(), "bad-user", &weekStart); err != store.ErrNotFound {
		t.Errorf("bad-user's failed run should not have persisted a report, got err = %v", err)
	}
}

func TestRunBatch_SingleUserOverride(t *testing.T) {
	items := store.NewMemoryPurchaseStore()
	reports := store.NewMemoryReportStore()
	weekStart := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)
	putWeeklyItem(items, "i1", "u1", "Blue Bottle Coffee", "Latte", 5.0, weekStart.Add(24*time.Hour))
	putWeeklyItem(items, "i2", "u2", "Blue Bottle Coffee", "Latte", 5.0, weekStart.Add(24*time.Hour))

	cap := &erroringCapability{text: pipelineFinding}
	pipeline := NewPipeline(items, reports, cap, 10, 1.0, 0)
	lease, err := store.NewRistrettoLease()
	if err != nil {
		t.Fatalf("NewRistrettoLease() error = %v", err)
	}
	runner := NewBatchRunner(pipeline, items, lease)

	log, err := runner.RunBatch(context.Background(), BatchParams{WeekStart: weekStart, UserID: "u1"})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if log.TotalUsers != 1 || log.Successful != 1 {
		t.Fatalf("log = %+v, want a single successful run for u1 only", log)
	}
	if _, err := reports.Get(context.Background(), "u2", &weekStart); err != store.ErrNotFound {
		t.Errorf("u2 should not have been processed, got err = %v", err)
	}
}

func TestRunBatch_LeaseRefusesConcurrentRerun(t *testing.T) {
	items := store.NewMemoryPurchaseStore()
	reports := store.NewMemoryReportStore()
	weekStart := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)
	putWeeklyItem(items, "i1", "u1", "Blue Bottle Coffee", "Latte", 5.0, weekStart.Add(24*time.Hour))

	cap := &erroringCapability{text: pipelineFinding}
	pipeline := NewPipeline(items, reports, cap, 10, 1.0, 0)
	lease, err := store.NewRistrettoLease()
	if err != nil {
		t.Fatalf("NewRistrettoLease() error = %v", err)
	}
	runner := NewBatchRunner(pipeline, items, lease)

	leaseKey := "u1:" + weekStart.Format("2006-01-02")
	held, err := lease.Acquire(context.Background(), leaseKey, time.Minute)
	if err != nil || !held {
		t.Fatalf("Acquire() = %v, %v, want the lease held by this test", held, err)
	}

	log, err := runner.RunBatch(context.Background(), BatchParams{WeekStart: weekStart, UserID: "u1"})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if log.Successful != 0 || log.Failed != 1 {
		t.Fatalf("log = %+v, want the already-leased user recorded as failed", log)
	}
}

func TestRunBatch_DefaultsToMostRecentCompletedWeek(t *testing.T) {
	items := store.NewMemoryPurchaseStore()
	reports := store.NewMemoryReportStore()
	completed := model.MostRecentCompletedWeek(time.Now())
	putWeeklyItem(items, "i1", "u1", "Blue Bottle Coffee", "Latte", 5.0, completed.Add(24*time.Hour))

	cap := &erroringCapability{text: pipelineFinding}
	pipeline := NewPipeline(items, reports, cap, 10, 1.0, 0)
	lease, err := store.NewRistrettoLease()
	if err != nil {
		t.Fatalf("NewRistrettoLease() error = %v", err)
	}
	runner := NewBatchRunner(pipeline, items, lease)

	log, err := runner.RunBatch(context.Background(), BatchParams{UserID: "u1"})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if !log.WeekStart.Equal(completed) {
		t.Errorf("WeekStart = %v, want %v", log.WeekStart, completed)
	}
}
