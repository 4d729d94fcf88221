package weekly

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/becomeliminal/analytics-core/model"
	"github.com/becomeliminal/analytics-core/store"
)

// leaseTTL bounds how long a batch job holds its per-(user,week) lease
// before it is considered abandoned.
const leaseTTL = 30 * time.Minute

// defaultBatchConcurrency is the default bounded degree of parallelism
// across users.
const defaultBatchConcurrency = 10

// JobLog is the batch job's output record, printed as JSON when the run
// completes.
type JobLog struct {
	JobAt             time.Time    `json:"job_at"`
	WeekStart         time.Time    `json:"week_start"`
	TotalUsers        int          `json:"total_users"`
	Successful        int          `json:"successful"`
	Failed            int          `json:"failed"`
	FailedUsers       []FailedUser `json:"failed_users"`
	ItemsAnalyzed     int          `json:"items_analyzed"`
	AlternativesFound int          `json:"alternatives_found"`
	TotalSavings      float64      `json:"total_savings"`
	MCPCallsMade      int          `json:"mcp_calls_made"`
	ProcessingTimeMs  int64        `json:"processing_time_ms"`
}

// FailedUser records one batch-member failure and its error kind.
type FailedUser struct {
	UserID string `json:"user_id"`
	Kind   Kind   `json:"kind"`
	Error  string `json:"error"`
}

// BatchParams controls one invocation of RunBatch.
type BatchParams struct {
	// WeekStart, if zero, defaults to the most recent completed ISO week.
	WeekStart time.Time
	// UserID, if empty, iterates every user active that week.
	UserID string
	DryRun bool
	// Concurrency, if zero, defaults to defaultBatchConcurrency.
	Concurrency int
}

// BatchRunner runs the weekly pipeline across a population of users,
// bounded by a semaphore and protected by a per-(user,week) lease against
// concurrent re-runs of the same job.
type BatchRunner struct {
	Pipeline *Pipeline
	Items    store.PurchaseStore
	Lease    store.Lease
}

// NewBatchRunner wires a BatchRunner to its collaborators.
func NewBatchRunner(pipeline *Pipeline, items store.PurchaseStore, lease store.Lease) *BatchRunner {
	return &BatchRunner{Pipeline: pipeline, Items: items, Lease: lease}
}

// RunBatch processes every resolved user for the week. One user's failure
// never blocks another's, and re-running for a (user, week) already in
// flight is refused via the lease.
func (b *BatchRunner) RunBatch(ctx context.Context, params BatchParams) (*JobLog, error) {
	started := time.Now()

	weekStart := params.WeekStart
	if weekStart.IsZero() {
		weekStart = model.MostRecentCompletedWeek(time.Now())
	} else {
		weekStart = model.WeekStart(weekStart)
	}

	userIDs, err := b.resolveUsers(ctx, params.UserID, weekStart)
	if err != nil {
		return nil, Wrap(err, KindStoreUnavailable)
	}

	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	log := &JobLog{JobAt: started, WeekStart: weekStart, TotalUsers: len(userIDs)}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, userID := range userIDs {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled: stop launching new work but let in-flight
			// runs finish so partial results are still recorded.
			break
		}
		userID := userID
		wg.Add(1)
		go func() {
			defer sem.Release(1)
			defer wg.Done()
			b.runOne(ctx, userID, weekStart, params.DryRun, log, &mu)
		}()
	}
	wg.Wait()

	log.ProcessingTimeMs = time.Since(started).Milliseconds()
	return log, nil
}

func (b *BatchRunner) runOne(ctx context.Context, userID string, weekStart time.Time, dryRun bool, log *JobLog, mu *sync.Mutex) {
	leaseKey := fmt.Sprintf("%s:%s", userID, weekStart.Format("2006-01-02"))
	if b.Lease != nil {
		held, err := b.Lease.Acquire(ctx, leaseKey, leaseTTL)
		if err != nil || !held {
			mu.Lock()
			log.Failed++
			log.FailedUsers = append(log.FailedUsers, FailedUser{UserID: userID, Kind: KindInternal, Error: "already running for this week"})
			mu.Unlock()
			return
		}
		defer b.Lease.Release(ctx, leaseKey)
	}

	report, err := b.Pipeline.Run(ctx, RunParams{UserID: userID, WeekStart: weekStart, DryRun: dryRun}, nil)

	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		kind := Classify(err)
		log.Failed++
		log.FailedUsers = append(log.FailedUsers, FailedUser{UserID: userID, Kind: kind, Error: Message(err)})
		// A parse_error still produced and persisted a report; its counters
		// are real even though the user is recorded as failed.
		if report != nil {
			log.ItemsAnalyzed += report.ItemsAnalyzed
			log.MCPCallsMade += report.MCPCallsMade
		}
		return
	}

	log.Successful++
	log.ItemsAnalyzed += report.ItemsAnalyzed
	log.AlternativesFound += report.ItemsWithAlternatives
	log.TotalSavings = model.Round2(log.TotalSavings + report.TotalSavings)
	log.MCPCallsMade += report.MCPCallsMade
}

func (b *BatchRunner) resolveUsers(ctx context.Context, userID string, weekStart time.Time) ([]string, error) {
	if userID != "" {
		return []string{userID}, nil
	}
	var users []string
	err := withStoreRetry(ctx, func() error {
		var innerErr error
		users, innerErr = b.Items.ActiveUsersForWeek(ctx, weekStart)
		return innerErr
	})
	return users, err
}
