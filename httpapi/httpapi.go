// Package httpapi is the HTTP/SSE facade: a stateless translation layer
// between the analytics engines and their REST/SSE surface.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/becomeliminal/analytics-core/aggregate"
	"github.com/becomeliminal/analytics-core/deals"
	"github.com/becomeliminal/analytics-core/model"
	"github.com/becomeliminal/analytics-core/predict"
	"github.com/becomeliminal/analytics-core/store"
	"github.com/becomeliminal/analytics-core/tips"
	"github.com/becomeliminal/analytics-core/weekly"
)

// defaultLimit/maxLimit bound the `limit` query parameter across endpoints
// that take one; transactions allows a wider range than the engines.
const (
	defaultLimit        = 20
	maxLimit            = 20
	defaultHistoryLimit = 4
	maxHistoryLimit     = 20
	defaultTxLimit      = 20
	maxTxLimit          = 100
)

// Server wires the engines to net/http handlers. It holds no per-request
// mutable state — every field is a read-only collaborator shared across
// concurrent requests.
type Server struct {
	Items    store.PurchaseStore
	Reports  store.ReportStore
	Stream   *weekly.StreamRunner
	Pipeline *weekly.Pipeline

	AllowOrigins map[string]bool
	SearchModel  string

	Log *zap.Logger
}

// New builds a Server with a no-op logger if log is nil.
func New(items store.PurchaseStore, reports store.ReportStore, pipeline *weekly.Pipeline, allowOrigins []string, searchModel string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	origins := make(map[string]bool, len(allowOrigins))
	for _, o := range allowOrigins {
		origins[o] = true
	}
	return &Server{
		Items:        items,
		Reports:      reports,
		Stream:       weekly.NewStreamRunner(pipeline),
		Pipeline:     pipeline,
		AllowOrigins: origins,
		SearchModel:  searchModel,
		Log:          log,
	}
}

// Routes returns the service's http.Handler with every endpoint registered.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/predict", s.handlePredict)
	mux.HandleFunc("/api/smart-tips", s.handleSmartTips)
	mux.HandleFunc("/api/better-deals", s.handleBetterDeals)
	mux.HandleFunc("/api/user/", s.handleUserRoutes)
	return s.withCORS(mux)
}

// withCORS enforces the configured origin allow-list: a request from an
// allowed origin gets CORS headers; any other origin gets none, so the
// browser blocks the response even though the server itself still answered
// the request.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.AllowOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "connected"
	started := time.Now()
	_, err := s.Items.ActiveUsersForWeek(r.Context(), model.MostRecentCompletedWeek(time.Now()))
	latencyMs := time.Since(started).Milliseconds()
	if err != nil {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":               true,
		"store":            status,
		"search_model":     s.SearchModel,
		"store_latency_ms": latencyMs,
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, weekly.KindBadRequest, "user_id is required")
		return
	}
	limit, err := parseLimit(r, defaultLimit, maxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, weekly.KindBadRequest, err.Error())
		return
	}

	preds, err := predict.Predict(r.Context(), s.Items, userID, limit)
	if !s.respondEngineErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, preds)
}

func (s *Server) handleSmartTips(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, weekly.KindBadRequest, "user_id is required")
		return
	}
	limit, err := parseLimit(r, defaultLimit, maxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, weekly.KindBadRequest, err.Error())
		return
	}

	out, err := tips.Generate(r.Context(), s.Items, userID, limit)
	if !s.respondEngineErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBetterDeals(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, weekly.KindBadRequest, "user_id is required")
		return
	}
	limit, err := parseLimit(r, defaultLimit, maxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, weekly.KindBadRequest, err.Error())
		return
	}

	out, err := deals.Suggest(r.Context(), s.Items, userID, limit)
	if !s.respondEngineErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleUserRoutes dispatches the /api/user/{user_id}/... family by
// splitting the path manually.
func (s *Server) handleUserRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/user/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, weekly.KindNotFound, "not found")
		return
	}
	userID := parts[0]

	switch {
	case len(parts) == 2 && parts[1] == "transactions":
		s.handleTransactions(w, r, userID)
	case len(parts) == 2 && parts[1] == "weekly_alternatives":
		s.handleWeeklyAlternatives(w, r, userID)
	case len(parts) == 3 && parts[1] == "weekly_alternatives" && parts[2] == "history":
		s.handleWeeklyHistory(w, r, userID)
	case len(parts) == 3 && parts[1] == "weekly_alternatives" && parts[2] == "stream":
		s.handleWeeklyStream(w, r, userID)
	default:
		writeError(w, http.StatusNotFound, weekly.KindNotFound, "not found")
	}
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	limit, err := parseLimit(r, defaultTxLimit, maxTxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, weekly.KindBadRequest, err.Error())
		return
	}

	out, err := aggregate.TransactionsAPI(r.Context(), s.Items, userID, limit)
	if !s.respondEngineErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleWeeklyAlternatives serves GET …/weekly_alternatives: the
// omitted-week case is the facade's explicit "most recent" lookup, never
// the engine's guess.
func (s *Server) handleWeeklyAlternatives(w http.ResponseWriter, r *http.Request, userID string) {
	weekStart, hasWeek, err := parseWeek(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, weekly.KindBadRequest, err.Error())
		return
	}

	var week *time.Time
	if hasWeek {
		week = &weekStart
	}
	report, err := s.Reports.Get(r.Context(), userID, week)
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, weekly.KindNotFound, "no report for this user/week")
		return
	}
	if !s.respondEngineErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleWeeklyHistory(w http.ResponseWriter, r *http.Request, userID string) {
	limit, err := parseLimit(r, defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, weekly.KindBadRequest, err.Error())
		return
	}

	out, err := s.Reports.ListHistory(r.Context(), userID, limit)
	if !s.respondEngineErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleWeeklyStream serves the live pipeline view over SSE: one `data:`
// line of compact JSON per event, blank line terminated, with buffering
// disabled end to end so events reach the client as emitted.
func (s *Server) handleWeeklyStream(w http.ResponseWriter, r *http.Request, userID string) {
	weekStart, hasWeek, err := parseWeek(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, weekly.KindBadRequest, err.Error())
		return
	}
	if !hasWeek {
		weekStart = model.MostRecentCompletedWeek(time.Now())
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, weekly.KindInternal, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithTimeout(r.Context(), streamDeadline)
	defer cancel()

	events := s.Stream.RunStream(ctx, weekly.RunParams{UserID: userID, WeekStart: weekStart})
	// json.Encoder terminates each frame's JSON with "\n"; the extra write
	// below supplies the blank line that ends the SSE frame.
	enc := json.NewEncoder(w)
	for ev := range events {
		frame := map[string]interface{}{"event": ev.Kind}
		switch p := ev.Payload.(type) {
		case nil:
		default:
			b, _ := json.Marshal(p)
			var m map[string]interface{}
			if json.Unmarshal(b, &m) == nil {
				for k, v := range m {
					frame[k] = v
				}
			}
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return
		}
		if err := enc.Encode(frame); err != nil {
			return
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}

// streamDeadline is the end-to-end streaming request timeout.
const streamDeadline = 60 * time.Second

func (s *Server) respondEngineErr(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}
	kind := weekly.Classify(err)
	writeError(w, statusFor(kind), kind, weekly.Message(err))
	return false
}

func statusFor(kind weekly.Kind) int {
	switch kind {
	case weekly.KindBadRequest:
		return http.StatusBadRequest
	case weekly.KindNotFound:
		return http.StatusNotFound
	case weekly.KindCapabilityQuota:
		return http.StatusTooManyRequests
	case weekly.KindTimeout:
		return http.StatusGatewayTimeout
	case weekly.KindStoreUnavailable, weekly.KindCapabilityUnavailable, weekly.KindPersistConflict:
		return http.StatusInternalServerError
	case weekly.KindCancelled:
		return 499 // client closed request
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind weekly.Kind, message string) {
	writeJSON(w, status, map[string]string{"error": string(kind), "message": message})
}

func parseLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errBadLimit
	}
	if n < 1 || n > max {
		return 0, errBadLimit
	}
	return n, nil
}

var errBadLimit = errLimitOutOfRange{}

type errLimitOutOfRange struct{}

func (errLimitOutOfRange) Error() string { return "limit out of range" }

// parseWeek parses the optional `week` query parameter (YYYY-MM-DD),
// normalising it to its ISO-week Monday. ok is false when the parameter was
// omitted — callers use that to drive the "most recent" semantics
// explicitly rather than letting an engine guess.
func parseWeek(r *http.Request) (t time.Time, ok bool, err error) {
	raw := r.URL.Query().Get("week")
	if raw == "" {
		return time.Time{}, false, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false, errBadWeek
	}
	return model.WeekStart(parsed), true, nil
}

var errBadWeek = errBadWeekFormat{}

type errBadWeekFormat struct{}

func (errBadWeekFormat) Error() string { return "week must be formatted YYYY-MM-DD" }
