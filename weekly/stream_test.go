package weekly

import (
	"context"
	"testing"
	"time"

	"github.com/becomeliminal/analytics-core/store"
)

func TestRunStream_HappyPathOrdering(t *testing.T) {
	items := store.NewMemoryPurchaseStore()
	reports := store.NewMemoryReportStore()
	weekStart := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)
	putWeeklyItem(items, "i1", "u1", "Blue Bottle Coffee", "Latte", 5.0, weekStart.Add(24*time.Hour))

	cap := &fakeCapability{text: pipelineFinding, calls: 1}
	pipeline := NewPipeline(items, reports, cap, 10, 1.0, 0)
	runner := NewStreamRunner(pipeline)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var kinds []EventKind
	for ev := range runner.RunStream(ctx, RunParams{UserID: "u1", WeekStart: weekStart}) {
		kinds = append(kinds, ev.Kind)
	}

	want := []EventKind{EventStart, EventItemsLoaded, EventAnalyzing, EventProgress, EventFound, EventComplete}
	if len(kinds) != len(want) {
		t.Fatalf("streamed events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("streamed events = %v, want %v", kinds, want)
		}
	}
}

// blockingCapability waits for ctx cancellation and reports it as a
// cancelled-kind error, standing in for a capability call aborted mid-flight.
type blockingCapability struct{}

func (blockingCapability) Search(ctx context.Context, userID, prompt string, onChunk func(string)) (string, int, error) {
	<-ctx.Done()
	return "", 0, Wrap(ctx.Err(), KindCancelled)
}

func TestRunStream_ContextCancellationClosesChannel(t *testing.T) {
	items := store.NewMemoryPurchaseStore()
	reports := store.NewMemoryReportStore()
	weekStart := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)
	putWeeklyItem(items, "i1", "u1", "Blue Bottle Coffee", "Latte", 5.0, weekStart.Add(24*time.Hour))

	pipeline := NewPipeline(items, reports, blockingCapability{}, 10, 1.0, 0)
	runner := NewStreamRunner(pipeline)

	ctx, cancel := context.WithCancel(context.Background())
	ch := runner.RunStream(ctx, RunParams{UserID: "u1", WeekStart: weekStart})

	// Drain the leading events synchronously emitted before the capability
	// call blocks, then cancel so the capability unblocks and the stream
	// reaches its terminal error event.
	var last Event
	drained := false
	timeout := time.After(5 * time.Second)
	for !drained {
		select {
		case ev, ok := <-ch:
			if !ok {
				drained = true
				break
			}
			last = ev
			if ev.Kind == EventAnalyzing {
				cancel()
			}
		case <-timeout:
			t.Fatal("timed out waiting for the stream to close after cancellation")
		}
	}

	if last.Kind != EventError {
		t.Errorf("final event kind = %q, want error", last.Kind)
	}
}
