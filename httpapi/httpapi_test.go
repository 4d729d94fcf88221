package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/becomeliminal/analytics-core/store"
	"github.com/becomeliminal/analytics-core/weekly"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		def     int
		max     int
		want    int
		wantErr bool
	}{
		{"omitted uses default", "", 20, 20, 20, false},
		{"within range", "?limit=5", 20, 20, 5, false},
		{"zero is out of range", "?limit=0", 20, 20, 0, true},
		{"above max is out of range", "?limit=21", 20, 20, 0, true},
		{"non-numeric is rejected", "?limit=abc", 20, 20, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/predict"+tt.query, nil)
			got, err := parseLimit(r, tt.def, tt.max)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLimit() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseLimit() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseWeek(t *testing.T) {
	t.Run("omitted", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/user/u1/weekly_alternatives", nil)
		_, ok, err := parseWeek(r)
		if err != nil {
			t.Fatalf("parseWeek() error = %v", err)
		}
		if ok {
			t.Error("ok = true, want false when week is omitted")
		}
	})

	t.Run("valid date normalises to the ISO week's monday", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/user/u1/weekly_alternatives?week=2026-07-29", nil)
		got, ok, err := parseWeek(r)
		if err != nil {
			t.Fatalf("parseWeek() error = %v", err)
		}
		if !ok {
			t.Fatal("ok = false, want true")
		}
		if got.Format("2006-01-02") != "2026-07-27" {
			t.Errorf("got = %v, want week_start 2026-07-27", got)
		}
	})

	t.Run("malformed date is rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/user/u1/weekly_alternatives?week=07-29-2026", nil)
		_, _, err := parseWeek(r)
		if err == nil {
			t.Fatal("parseWeek() error = nil, want errBadWeek")
		}
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind weekly.Kind
		want int
	}{
		{weekly.KindBadRequest, http.StatusBadRequest},
		{weekly.KindNotFound, http.StatusNotFound},
		{weekly.KindCapabilityQuota, http.StatusTooManyRequests},
		{weekly.KindTimeout, http.StatusGatewayTimeout},
		{weekly.KindStoreUnavailable, http.StatusInternalServerError},
		{weekly.KindCapabilityUnavailable, http.StatusInternalServerError},
		{weekly.KindPersistConflict, http.StatusInternalServerError},
		{weekly.KindCancelled, 499},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := statusFor(tt.kind); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}

func TestWithCORS_AllowedOrigin(t *testing.T) {
	s := New(store.NewMemoryPurchaseStore(), store.NewMemoryReportStore(), nil, []string{"https://app.example.com"}, "test-model", nil)
	handler := s.Routes()

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want the echoed allowed origin", got)
	}
}

func TestWithCORS_DisallowedOriginOmitsHeaders(t *testing.T) {
	s := New(store.NewMemoryPurchaseStore(), store.NewMemoryReportStore(), nil, []string{"https://app.example.com"}, "test-model", nil)
	handler := s.Routes()

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty for a disallowed origin", got)
	}
}

func TestWithCORS_PreflightShortCircuits(t *testing.T) {
	s := New(store.NewMemoryPurchaseStore(), store.NewMemoryReportStore(), nil, []string{"https://app.example.com"}, "test-model", nil)
	handler := s.Routes()

	r := httptest.NewRequest(http.MethodOptions, "/health", nil)
	r.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d for an OPTIONS preflight", w.Code, http.StatusNoContent)
	}
}

func TestHandleHealth(t *testing.T) {
	s := New(store.NewMemoryPurchaseStore(), store.NewMemoryReportStore(), nil, nil, "test-model", nil)
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
