package models

import "time"

// ScalarPoint is a single logged scalar value for a run/tag pair.
type ScalarPoint struct {
	Step     int64     `json:"step"`
	WallTime time.Time `json:"wallTime"`
	Value    float64   `json:"value"`
}

// SeriesKey identifies one run/tag pair. Used for cache warming and tracked
// series metrics.
type SeriesKey struct {
	Run string `json:"run" yaml:"run"`
	Tag string `json:"tag" yaml:"tag"`
}

// String renders the key in run/tag form, the cache key format.
func (k SeriesKey) String() string {
	return k.Run + "/" + k.Tag
}

// ScalarSeries is the ordered sequence of scalar points for one run/tag pair,
// sorted by step ascending.
type ScalarSeries struct {
	Run       string        `json:"run"`
	Tag       string        `json:"tag"`
	Points    []ScalarPoint `json:"points"`
	FetchedAt time.Time     `json:"fetchedAt"`
	Stale     bool          `json:"stale,omitempty"` // Indicates series served from stale cache
}
