// Package predict implements the repurchase prediction engine: given a
// user's active purchase history, it predicts when recurring items will
// next be bought and with what confidence.
package predict

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/becomeliminal/analytics-core/model"
	"github.com/becomeliminal/analytics-core/store"
)

// Prediction engine input: none beyond user_id/limit — lookback defaults to
// all active history.

// Predict loads a user's active history and returns up to n predictions,
// ordered by next_time ascending, ties broken by confidence desc then item asc.
func Predict(ctx context.Context, items store.PurchaseStore, userID string, n int) ([]model.Prediction, error) {
	rows, err := items.ListItems(ctx, store.ListItemsQuery{UserID: userID, Limit: 100000})
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].TS.Before(rows[j].TS) })

	type groupKey struct{ name, category string }
	groups := make(map[groupKey][]model.PurchaseItem)
	order := make([]groupKey, 0)
	for _, it := range rows {
		k := groupKey{strings.ToLower(strings.TrimSpace(it.ItemName)), it.Category}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], it)
	}

	out := make([]model.Prediction, 0, len(order))
	for _, k := range order {
		g := groups[k]
		if len(g) < 2 {
			continue
		}

		times := make([]time.Time, len(g))
		for i, it := range g {
			times[i] = it.TS
		}

		intervals := make([]float64, 0, len(times)-1)
		for i := 0; i < len(times)-1; i++ {
			intervals = append(intervals, times[i+1].Sub(times[i]).Hours()/24)
		}

		avg := mean(intervals)
		sd := populationStddev(intervals, avg)

		sampleFactor := math.Min(float64(len(g)), 10) / 10
		regularityFactor := 0.0
		if avg > 0 {
			regularityFactor = clamp(1-sd/avg, 0, 1)
		}
		confidence := 0.2 + 0.4*sampleFactor + 0.4*regularityFactor

		if confidence < 0.5 {
			continue
		}

		// Daily is the finest forecast granularity: a sub-daily recurrence
		// predicts "tomorrow", never a time earlier in the same day.
		if avg < 1 {
			avg = 1
		}
		nextTime := times[len(times)-1].Add(time.Duration(avg * float64(24*time.Hour)))

		last := g[len(g)-1]
		out = append(out, model.Prediction{
			Item:            last.ItemName,
			Category:        last.Category,
			NextTime:        nextTime,
			LastTime:        times[len(times)-1],
			AvgIntervalDays: avg,
			Samples:         len(g),
			Confidence:      confidence,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextTime.Equal(out[j].NextTime) {
			return out[i].NextTime.Before(out[j].NextTime)
		}
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Item < out[j].Item
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func populationStddev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
