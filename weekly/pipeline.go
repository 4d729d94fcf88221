package weekly

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/becomeliminal/analytics-core/model"
	"github.com/becomeliminal/analytics-core/store"
)

// storeRetryBase/storeRetryCap/storeRetryAttempts shape the
// store_unavailable backoff: base 200ms, cap 2s, up to 3 retries after the
// first attempt, the wait doubling per retry.
const (
	storeRetryBase     = 200 * time.Millisecond
	storeRetryCap      = 2 * time.Second
	storeRetryAttempts = 3
)

// EventKind names one kind of pipeline progress event.
type EventKind string

const (
	EventStart       EventKind = "start"
	EventItemsLoaded EventKind = "items_loaded"
	EventAnalyzing   EventKind = "analyzing"
	EventProgress    EventKind = "progress"
	EventFound       EventKind = "found"
	EventComplete    EventKind = "complete"
	EventError       EventKind = "error"
)

// Event is one frame of the ordered pipeline event stream. Payload holds one
// of the *Payload types below depending on Kind.
type Event struct {
	Kind    EventKind
	At      time.Time
	Payload interface{}
}

type StartPayload struct {
	UserID    string    `json:"user_id"`
	WeekStart string    `json:"week_start"`
	At        time.Time `json:"at"`
}

type ItemSummary struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Merchant string  `json:"merchant"`
}

type ItemsLoadedPayload struct {
	Count int           `json:"count"`
	Items []ItemSummary `json:"items"`
}

type AnalyzingPayload struct {
	Message string `json:"message"`
}

type ProgressPayload struct {
	Chunk string `json:"chunk"`
}

type CompletePayload struct {
	ItemsAnalyzed         int     `json:"items_analyzed"`
	ItemsWithAlternatives int     `json:"items_with_alternatives"`
	TotalSavings          float64 `json:"total_savings"`
	ProcessingTimeMs      int64   `json:"processing_time_ms"`
}

type ErrorPayload struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// RunParams is the input to one pipeline run.
type RunParams struct {
	UserID    string
	WeekStart time.Time
	DryRun    bool
}

// Pipeline is the weekly-suggestions core shared by batch and streaming
// modes: select the week's top items, search for cheaper alternatives,
// parse and validate findings, persist the report. A single Pipeline is
// safe for concurrent Run calls: each call opens its own capability session
// and touches no shared mutable state.
type Pipeline struct {
	Items       store.PurchaseStore
	Reports     store.ReportStore
	Capability  Capability
	TopN        int
	MinSavings  float64
	MaxFindings int
}

// NewPipeline wires the pipeline to its collaborators. maxFindings bounds
// how many findings one report may carry (0 means unbounded).
func NewPipeline(items store.PurchaseStore, reports store.ReportStore, capability Capability, topN int, minSavings float64, maxFindings int) *Pipeline {
	return &Pipeline{Items: items, Reports: reports, Capability: capability, TopN: topN, MinSavings: minSavings, MaxFindings: maxFindings}
}

// Run executes the core pipeline for one (user, week), emitting ordered
// events to emit (which may be nil — batch mode runs without a listener).
// The returned error is non-nil only for unrecoverable failures; a
// parse_error still yields a persisted report with Notes set.
func (p *Pipeline) Run(ctx context.Context, params RunParams, emit func(Event)) (*model.WeeklyReport, error) {
	started := time.Now()
	if emit == nil {
		emit = func(Event) {}
	}

	weekStartStr := params.WeekStart.Format("2006-01-02")
	emit(Event{Kind: EventStart, At: started, Payload: StartPayload{
		UserID: params.UserID, WeekStart: weekStartStr, At: started,
	}})

	// Step 1: select.
	items, err := p.selectItems(ctx, params)
	if err != nil {
		return nil, p.fail(emit, err)
	}

	if len(items) == 0 {
		report := p.emptyReport(params, started)
		if !params.DryRun {
			if err := p.persistWithConflictRetry(ctx, report); err != nil {
				return nil, p.fail(emit, err)
			}
		}
		emit(Event{Kind: EventComplete, At: time.Now(), Payload: CompletePayload{
			ProcessingTimeMs: time.Since(started).Milliseconds(),
		}})
		return report, nil
	}

	summaries := make([]ItemSummary, len(items))
	for i, it := range items {
		summaries[i] = ItemSummary{Name: it.ItemName, Price: it.Price, Merchant: it.Merchant}
	}
	emit(Event{Kind: EventItemsLoaded, At: time.Now(), Payload: ItemsLoadedPayload{Count: len(items), Items: summaries}})

	// Step 2: location.
	location := modeLocation(items)

	// Step 3: prompt.
	prompt := buildPrompt(items, location, p.MinSavings)

	// Step 4: capability call, with the 1-retry-on-capability_unavailable rule.
	emit(Event{Kind: EventAnalyzing, At: time.Now(), Payload: AnalyzingPayload{Message: "searching for cheaper alternatives"}})

	onChunk := func(chunk string) {
		emit(Event{Kind: EventProgress, At: time.Now(), Payload: ProgressPayload{Chunk: chunk}})
	}
	text, calls, err := p.Capability.Search(ctx, params.UserID, prompt, onChunk)
	if err != nil && Classify(err) == KindCapabilityUnavailable {
		text, calls, err = p.Capability.Search(ctx, params.UserID, prompt, onChunk)
	}
	if err != nil {
		return nil, p.fail(emit, err)
	}

	// Step 5: parse.
	findings, parseErr := ParseFindings(text, p.MinSavings, p.MaxFindings)
	notes := ""
	if parseErr != nil {
		findings = nil
		notes = fmt.Sprintf("%s: %s", KindParseError, parseErr.Error())
	}
	for _, f := range findings {
		emit(Event{Kind: EventFound, At: time.Now(), Payload: f})
	}

	// Step 6: assemble.
	totalSavings := 0.0
	for _, f := range findings {
		totalSavings += f.TotalSavings
	}
	report := &model.WeeklyReport{
		ReportID:              uuid.NewString(),
		UserID:                params.UserID,
		WeekStart:             params.WeekStart,
		WeekEnd:               model.WeekEnd(params.WeekStart),
		Location:              location,
		ItemsAnalyzed:         len(items),
		ItemsWithAlternatives: len(findings),
		TotalSavings:          model.Round2(totalSavings),
		Findings:              findings,
		MCPCallsMade:          calls,
		ProcessingTimeMs:      time.Since(started).Milliseconds(),
		Notes:                 notes,
	}

	// Persist unless dry-run. A parse_error still gets persisted (with
	// Notes set) — it is terminal for this user, not a failed write.
	if !params.DryRun {
		if err := p.persistWithConflictRetry(ctx, report); err != nil {
			return nil, p.fail(emit, err)
		}
	}
	report.ProcessingTimeMs = time.Since(started).Milliseconds()

	if parseErr != nil {
		wrapped := Wrap(parseErr, KindParseError)
		emit(Event{Kind: EventError, At: time.Now(), Payload: ErrorPayload{
			Kind: KindParseError, Message: parseErr.Error(), At: time.Now(),
		}})
		return report, wrapped
	}

	emit(Event{Kind: EventComplete, At: time.Now(), Payload: CompletePayload{
		ItemsAnalyzed:         report.ItemsAnalyzed,
		ItemsWithAlternatives: report.ItemsWithAlternatives,
		TotalSavings:          report.TotalSavings,
		ProcessingTimeMs:      report.ProcessingTimeMs,
	}})
	return report, nil
}

func (p *Pipeline) fail(emit func(Event), err error) error {
	emit(Event{Kind: EventError, At: time.Now(), Payload: ErrorPayload{
		Kind: Classify(err), Message: Message(err), At: time.Now(),
	}})
	return err
}

func (p *Pipeline) emptyReport(params RunParams, started time.Time) *model.WeeklyReport {
	return &model.WeeklyReport{
		ReportID:      uuid.NewString(),
		UserID:        params.UserID,
		WeekStart:     params.WeekStart,
		WeekEnd:       model.WeekEnd(params.WeekStart),
		ItemsAnalyzed: 0,
	}
}

func (p *Pipeline) selectItems(ctx context.Context, params RunParams) ([]model.PurchaseItem, error) {
	var items []model.PurchaseItem
	err := withStoreRetry(ctx, func() error {
		var innerErr error
		items, innerErr = p.Items.TopItemsByPrice(ctx, params.UserID, params.WeekStart, p.TopN)
		return innerErr
	})
	return items, err
}

func (p *Pipeline) persist(ctx context.Context, report *model.WeeklyReport) error {
	return withStoreRetry(ctx, func() error {
		return p.Reports.Upsert(ctx, report)
	})
}

// persistWithConflictRetry handles a lost upsert race: re-read the stored
// row, adopt the winner's created_at, and retry the upsert exactly once
// before failing.
func (p *Pipeline) persistWithConflictRetry(ctx context.Context, report *model.WeeklyReport) error {
	err := p.persist(ctx, report)
	if err == nil || Classify(err) != KindPersistConflict {
		return err
	}
	if existing, getErr := p.Reports.Get(ctx, report.UserID, &report.WeekStart); getErr == nil {
		report.CreatedAt = existing.CreatedAt
	}
	return p.persist(ctx, report)
}

// withStoreRetry retries fn up to storeRetryAttempts times with exponential
// backoff (base storeRetryBase, capped at storeRetryCap) on any error,
// wrapping the final failure as store_unavailable.
func withStoreRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= storeRetryAttempts; attempt++ {
		if attempt > 0 {
			wait := storeRetryBase * time.Duration(1<<(attempt-1))
			if wait > storeRetryCap {
				wait = storeRetryCap
			}
			select {
			case <-ctx.Done():
				return Wrap(ctx.Err(), KindCancelled)
			case <-time.After(wait):
			}
		}
		if err := fn(); err != nil {
			// A lost upsert race is not a store outage: hand it straight
			// back under its own kind so the caller's read-modify-retry
			// can run instead of the backoff loop.
			if errors.Is(err, store.ErrPersistConflict) {
				return Wrap(err, KindPersistConflict)
			}
			lastErr = err
			continue
		}
		return nil
	}
	return Wrap(lastErr, KindStoreUnavailable)
}

// modeLocation picks the most frequent (city, state, country) across items,
// breaking ties by the most recent occurrence.
func modeLocation(items []model.PurchaseItem) model.Location {
	type key struct{ city, state, country string }
	counts := map[key]int{}
	latest := map[key]time.Time{}
	for _, it := range items {
		k := key{it.BuyerLocation.City, it.BuyerLocation.State, it.BuyerLocation.Country}
		counts[k]++
		if it.TS.After(latest[k]) {
			latest[k] = it.TS
		}
	}

	var best key
	var bestCount int
	var bestSeen time.Time
	first := true
	for k, c := range counts {
		switch {
		case first:
			best, bestCount, bestSeen, first = k, c, latest[k], false
		case c > bestCount:
			best, bestCount, bestSeen = k, c, latest[k]
		case c == bestCount && latest[k].After(bestSeen):
			best, bestCount, bestSeen = k, c, latest[k]
		}
	}
	return model.Location{City: best.city, State: best.state, Country: best.country}
}

// buildPrompt renders the search prompt: the week's items by price, the
// buyer's location, and the savings threshold.
func buildPrompt(items []model.PurchaseItem, location model.Location, minSavings float64) string {
	var b strings.Builder
	b.WriteString("Here is a list of items purchased this week, ordered by price:\n\n")

	sorted := make([]model.PurchaseItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price > sorted[j].Price })

	for _, it := range sorted {
		fmt.Fprintf(&b, "- %s — $%.2f at %s\n", it.ItemName, it.Price, it.Merchant)
	}

	fmt.Fprintf(&b, "\nBuyer location: %s, %s, %s\n\n", location.City, location.State, location.Country)
	fmt.Fprintf(&b, "Find a cheaper purchasable alternative for each item where the total savings "+
		"(after shipping and tax) is at least $%.2f USD.\n", minSavings)
	b.WriteString("Respond with only a JSON array of findings as instructed.\n")
	return b.String()
}
