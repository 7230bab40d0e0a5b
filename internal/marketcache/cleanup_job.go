package marketcache

import (
	"github.com/rs/zerolog"
)

// CleanupJob removes expired entries from all cache tables. Between runs the
// cache grows unbounded; lazy eviction on read keeps hot keys fresh and this
// job reclaims the rest. Scheduled daily via cron.
type CleanupJob struct {
	cache *Cache
	log   zerolog.Logger
}

// NewCleanupJob creates a new cache cleanup job.
func NewCleanupJob(cache *Cache, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		cache: cache,
		log:   log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Run executes the cleanup, removing all expired entries from all kinds.
func (j *CleanupJob) Run() {
	results, err := j.cache.DeleteAllExpired()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired cache entries")
		return
	}

	var totalDeleted int64
	for kind, count := range results {
		if count > 0 {
			j.log.Info().
				Str("kind", string(kind)).
				Int64("deleted", count).
				Msg("Cleaned up expired cache entries")
			totalDeleted += count
		}
	}

	if totalDeleted > 0 {
		j.log.Info().
			Int64("total_deleted", totalDeleted).
			Msg("Cache cleanup completed")
	}
}
