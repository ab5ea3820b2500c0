package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// InsertRaw inserts a raw (id, ts, count) sample. Duplicate (id, ts) pairs
// are silently ignored (natural-key idempotence, spec §4.2/§5).
func (s *Store) InsertRaw(ctx context.Context, id, ts, count int64) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	const q = `
INSERT INTO raw_sample (id, ts, count)
VALUES ($1, $2, $3)
ON CONFLICT (id, ts) DO NOTHING`
	if _, err := conn.Exec(ctx, q, id, ts, count); err != nil {
		return fmt.Errorf("store: insert raw: %w", err)
	}
	return nil
}

// GetSeries5Min returns raw samples in [since, until], each bucketed to its
// containing 5-minute window (ts - ts mod 300) and aggregated within that
// window, ordered ascending by bucket timestamp.
func (s *Store) GetSeries5Min(ctx context.Context, id, since, until int64) ([]SeriesPoint, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	const q = `
SELECT (ts - (ts % 300)) AS bucket_ts, count
FROM raw_sample
WHERE id = $1 AND ts >= $2 AND ts <= $3
ORDER BY bucket_ts ASC`
	rows, err := conn.Query(ctx, q, id, since, until)
	if err != nil {
		return nil, fmt.Errorf("store: series 5min: %w", err)
	}
	defer rows.Close()

	grouped := map[int64][]int64{}
	var order []int64
	for rows.Next() {
		var bucketTS, count int64
		if err := rows.Scan(&bucketTS, &count); err != nil {
			return nil, fmt.Errorf("store: scan series 5min: %w", err)
		}
		if _, ok := grouped[bucketTS]; !ok {
			order = append(order, bucketTS)
		}
		grouped[bucketTS] = append(grouped[bucketTS], count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate series 5min: %w", err)
	}

	out := make([]SeriesPoint, 0, len(order))
	for _, ts := range order {
		out = append(out, aggregatePoint(ts, grouped[ts]))
	}
	return out, nil
}

// GetSeriesHourly returns hourly rollup rows in [since, until].
func (s *Store) GetSeriesHourly(ctx context.Context, id, since, until int64) ([]HourlyBucket, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	const q = `
SELECT hour_ts, avg, min, max, p95
FROM hourly_bucket
WHERE id = $1 AND hour_ts >= $2 AND hour_ts <= $3
ORDER BY hour_ts ASC`
	rows, err := conn.Query(ctx, q, id, since, until)
	if err != nil {
		return nil, fmt.Errorf("store: series hourly: %w", err)
	}
	defer rows.Close()

	var out []HourlyBucket
	for rows.Next() {
		var b HourlyBucket
		b.ID = id
		if err := rows.Scan(&b.HourTS, &b.Avg, &b.Min, &b.Max, &b.P95); err != nil {
			return nil, fmt.Errorf("store: scan series hourly: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetSeriesDaily returns daily rollup rows whose date falls in [since, until]
// (given as Unix seconds, converted to UTC calendar dates at the boundary).
func (s *Store) GetSeriesDaily(ctx context.Context, id, since, until int64) ([]DailyBucket, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	sinceDate := time.Unix(since, 0).UTC().Format("2006-01-02")
	untilDate := time.Unix(until, 0).UTC().Format("2006-01-02")

	const q = `
SELECT date, avg, min, max, p95
FROM daily_bucket
WHERE id = $1 AND date >= $2 AND date <= $3
ORDER BY date ASC`
	rows, err := conn.Query(ctx, q, id, sinceDate, untilDate)
	if err != nil {
		return nil, fmt.Errorf("store: series daily: %w", err)
	}
	defer rows.Close()

	var out []DailyBucket
	for rows.Next() {
		var b DailyBucket
		b.ID = id
		if err := rows.Scan(&b.Date, &b.Avg, &b.Min, &b.Max, &b.P95); err != nil {
			return nil, fmt.Errorf("store: scan series daily: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RollupHourly groups raw samples by (id, hour) and upserts avg/min/max/p95
// into hourly_bucket. since/until bound which raw rows are considered; pass
// 0/math.MaxInt64 to cover everything. Filtering by ids is optional (nil
// means all watched ids). Returns the number of bucket rows written.
func (s *Store) RollupHourly(ctx context.Context, since, until int64, ids []int64) (int, error) {
	return s.rollup(ctx, since, until, ids, bucketHourly)
}

// RollupDaily is RollupHourly's analogue bucketing on UTC calendar date.
func (s *Store) RollupDaily(ctx context.Context, since, until int64, ids []int64) (int, error) {
	return s.rollup(ctx, since, until, ids, bucketDaily)
}

type bucketKind int

const (
	bucketHourly bucketKind = iota
	bucketDaily
)

// rollup reads matching raw samples, groups them in application code (per
// spec §9's Open Question — grouping in Go keeps the p95 definition in one
// auditable place rather than split between Go and SQL), computes
// avg/min/max/p95 per group, and upserts the result.
func (s *Store) rollup(ctx context.Context, since, until int64, ids []int64, kind bucketKind) (int, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var rows interface {
		Next() bool
		Scan(...any) error
		Err() error
		Close()
	}
	if len(ids) == 0 {
		r, err := conn.Query(ctx, `SELECT id, ts, count FROM raw_sample WHERE ts >= $1 AND ts <= $2`, since, until)
		if err != nil {
			return 0, fmt.Errorf("store: rollup select: %w", err)
		}
		rows = r
	} else {
		r, err := conn.Query(ctx, `SELECT id, ts, count FROM raw_sample WHERE ts >= $1 AND ts <= $2 AND id = ANY($3)`, since, until, ids)
		if err != nil {
			return 0, fmt.Errorf("store: rollup select: %w", err)
		}
		rows = r
	}
	defer rows.Close()

	type key struct {
		id     int64
		bucket string // hour_ts as decimal string, or date string
	}
	groups := map[key][]int64{}
	bucketKeys := map[key]struct {
		id     int64
		hourTS int64
		date   string
	}{}

	for rows.Next() {
		var id, ts, count int64
		if err := rows.Scan(&id, &ts, &count); err != nil {
			return 0, fmt.Errorf("store: scan rollup row: %w", err)
		}
		var k key
		var bk struct {
			id     int64
			hourTS int64
			date   string
		}
		switch kind {
		case bucketHourly:
			hourTS := ts - (ts % 3600)
			k = key{id: id, bucket: fmt.Sprintf("%d", hourTS)}
			bk.id, bk.hourTS = id, hourTS
		default:
			date := time.Unix(ts, 0).UTC().Format("2006-01-02")
			k = key{id: id, bucket: date}
			bk.id, bk.date = id, date
		}
		groups[k] = append(groups[k], count)
		bucketKeys[k] = bk
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("store: iterate rollup rows: %w", err)
	}

	written := 0
	for k, counts := range groups {
		bk := bucketKeys[k]
		pt := aggregatePoint(0, counts)
		switch kind {
		case bucketHourly:
			const q = `
INSERT INTO hourly_bucket (id, hour_ts, avg, min, max, p95)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id, hour_ts) DO UPDATE SET avg = EXCLUDED.avg, min = EXCLUDED.min, max = EXCLUDED.max, p95 = EXCLUDED.p95`
			if _, err := conn.Exec(ctx, q, bk.id, bk.hourTS, pt.Avg, pt.Min, pt.Max, pt.P95); err != nil {
				return written, fmt.Errorf("store: upsert hourly bucket: %w", err)
			}
		default:
			const q = `
INSERT INTO daily_bucket (id, date, avg, min, max, p95)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id, date) DO UPDATE SET avg = EXCLUDED.avg, min = EXCLUDED.min, max = EXCLUDED.max, p95 = EXCLUDED.p95`
			if _, err := conn.Exec(ctx, q, bk.id, bk.date, pt.Avg, pt.Min, pt.Max, pt.P95); err != nil {
				return written, fmt.Errorf("store: upsert daily bucket: %w", err)
			}
		}
		written++
	}
	return written, nil
}

// Purge deletes raw/hourly/daily rows past their retention windows, all
// measured against the supplied wall-clock now (see purgeCutoffs).
func (s *Store) Purge(ctx context.Context, now int64) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	rawCutoff, hourlyCutoff, dailyCutoff := purgeCutoffs(now)

	if _, err := conn.Exec(ctx, `DELETE FROM raw_sample WHERE ts < $1`, rawCutoff); err != nil {
		return fmt.Errorf("store: purge raw: %w", err)
	}
	if _, err := conn.Exec(ctx, `DELETE FROM hourly_bucket WHERE hour_ts < $1`, hourlyCutoff); err != nil {
		return fmt.Errorf("store: purge hourly: %w", err)
	}
	if _, err := conn.Exec(ctx, `DELETE FROM daily_bucket WHERE date < $1`, dailyCutoff); err != nil {
		return fmt.Errorf("store: purge daily: %w", err)
	}
	return nil
}

// purgeCutoffs computes the raw/hourly/daily retention cutoffs (14d/30d/90d)
// against a wall-clock now. Passing a monotonic clock value here would
// silently corrupt retention - see spec §9's Open Question about the
// original's asyncio.get_event_loop().time() bug, which this implementation
// does not replicate.
func purgeCutoffs(now int64) (rawCutoff, hourlyCutoff int64, dailyCutoff string) {
	rawCutoff = now - 14*86400
	hourlyCutoff = now - 30*86400
	dailyCutoff = time.Unix(now-90*86400, 0).UTC().Format("2006-01-02")
	return
}

// aggregatePoint computes avg/min/max/p95 over a set of counts taken at (or
// bucketed to) ts.
func aggregatePoint(ts int64, counts []int64) SeriesPoint {
	if len(counts) == 0 {
		return SeriesPoint{TS: ts}
	}
	sorted := make([]int64, len(counts))
	copy(sorted, counts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	for _, c := range sorted {
		sum += c
	}
	avg := float64(sum) / float64(len(sorted))
	min := sorted[0]
	max := sorted[len(sorted)-1]
	p95 := percentile95(sorted)

	return SeriesPoint{TS: ts, Avg: avg, Min: min, Max: max, P95: p95}
}

// percentile95 returns the 95th percentile of an ascending-sorted slice:
// index = max(0, ceil(0.95*N) - 1), ties broken by position after sort
// (stable). A single-element bucket returns that element; p95 of 1..20
// returns 19, matching spec §8's boundary behaviors.
func percentile95(sortedAsc []int64) float64 {
	n := len(sortedAsc)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(0.95*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return float64(sortedAsc[idx])
}
