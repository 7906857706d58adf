package api

import (
	"net/http"

	"github.com/okian/hoopstat/internal/adapters/cache"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]any
}

// cacheStats is the default provider: the pipeline cache counters only.
type cacheStats struct {
	p interface{ CacheStats() cache.Stats }
}

func (c cacheStats) GetStats() map[string]any {
	return map[string]any{"cache": c.p.CacheStats()}
}

// handleStats handles GET /api/v1/stats.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.GetStats())
}
