package cache

import (
	"time"

	"github.com/runboardhq/runboard/internal/models"
)

// envelope is the serialized form stored in external backends (memcached,
// redis). The logical TTL travels with the value so freshness is computable
// after the fresh window lapses; the physical expiry is TTL plus the stale
// window.
type envelope struct {
	Series   models.ScalarSeries `json:"series"`
	StoredAt time.Time           `json:"storedAt"`
	TTLSec   int64               `json:"ttlSec"`
}

func (e envelope) fresh(now time.Time) bool {
	return now.Before(e.StoredAt.Add(time.Duration(e.TTLSec) * time.Second))
}

func (e envelope) withinAge(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.StoredAt) <= maxAge
}
