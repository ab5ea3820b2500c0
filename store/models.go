// Package store is the persistence layer: a schema-isolated Postgres pool
// with upsert semantics, rollups, and retention-driven deletes.
package store

import (
	"errors"
)

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = errors.New("store: not found")

// Watched mirrors a tracked game's identity and last observed player count.
type Watched struct {
	ID        int64
	Name      string
	LastCount int64
}

// RawSample is a single (id, ts, count) observation.
type RawSample struct {
	ID    int64
	TS    int64
	Count int64
}

// Bucket is a rolled-up aggregate shared by the hourly and daily tables.
type Bucket struct {
	ID  int64
	Avg float64
	Min int64
	Max int64
	P95 float64
}

// HourlyBucket is a Bucket keyed on the top of the hour.
type HourlyBucket struct {
	Bucket
	HourTS int64
}

// DailyBucket is a Bucket keyed on a UTC calendar date.
type DailyBucket struct {
	Bucket
	Date string // YYYY-MM-DD
}

// GameMetadata is the scalar + relationship data enriched from upstream.
type GameMetadata struct {
	ID                 int64
	Name               string
	Description        string
	HeaderImageURL     string
	BackgroundImageURL string
	ReleaseDate        string
	Price              float64
	IsFree             bool
	Genres             []string
	Categories         []string
}

// SeriesPoint is one bucketed (timestamp, aggregate) pair in a bounded
// range read of raw samples (GetSeries5Min), computed over the samples
// falling in that 5-minute window. Rollup reads return HourlyBucket and
// DailyBucket instead.
type SeriesPoint struct {
	TS  int64
	Avg float64
	Min int64
	Max int64
	P95 float64
}

// MetadataUpsert is the input to UpsertMetadata.
type MetadataUpsert struct {
	GameMetadata
	Replace bool // true: delete-then-insert genres/categories; false: union-insert
}
