package api

import (
	"context"
	"net/http"

	"github.com/okian/echelon/pkg/metrics"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]any
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// HandleStats handles GET /stats requests. Registry totals are added
// under "metrics" when they can be gathered.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.statsProvider.GetStats(r.Context())
	out := make(map[string]any, len(stats)+1)
	for k, v := range stats {
		out[k] = v
	}
	if totals, err := metrics.Totals(); err == nil {
		out["metrics"] = totals
	}
	writeJSON(w, http.StatusOK, out)
}
