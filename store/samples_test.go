package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercentile95(t *testing.T) {
	cases := []struct {
		name   string
		counts []int64
		want   float64
	}{
		{"single value", []int64{42}, 42},
		{"1..20 ascending", oneToTwenty(), 19},
		{"ties", []int64{5, 5, 5, 5}, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, percentile95(tc.counts))
		})
	}
}

func oneToTwenty() []int64 {
	out := make([]int64, 20)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}

func TestAggregatePoint(t *testing.T) {
	pt := aggregatePoint(900, []int64{100, 200, 300})
	assert.Equal(t, 200.0, pt.Avg)
	assert.Equal(t, int64(100), pt.Min)
	assert.Equal(t, int64(300), pt.Max)
	assert.Equal(t, int64(900), pt.TS)
}

func TestAggregatePointEmpty(t *testing.T) {
	pt := aggregatePoint(100, nil)
	assert.Equal(t, int64(100), pt.TS)
	assert.Zero(t, pt.Avg)
	assert.Zero(t, pt.Min)
	assert.Zero(t, pt.Max)
}

func TestHourlyRollupIdempotence(t *testing.T) {
	// Mirrors the spec scenario: samples (730, 1000, 100), (730, 1200, 200),
	// (730, 1299, 300), (730, 2500, 400) all fall in hour_ts=0; recomputing
	// the aggregate over the same counts must yield byte-identical results.
	counts := []int64{100, 200, 300, 400}
	first := aggregatePoint(0, counts)
	second := aggregatePoint(0, counts)

	assert.Equal(t, first, second)
	assert.Equal(t, 250.0, first.Avg)
	assert.Equal(t, int64(100), first.Min)
	assert.Equal(t, int64(400), first.Max)
	assert.Equal(t, 400.0, first.P95)
}

func TestPurgeCutoffs(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC).Unix()

	rawCutoff, hourlyCutoff, dailyCutoff := purgeCutoffs(now)

	assert.Equal(t, now-14*86400, rawCutoff)
	assert.Equal(t, now-30*86400, hourlyCutoff)
	assert.Equal(t, "2026-05-02", dailyCutoff)
}
