package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/dmarques/stockfolio/internal/database"
	"github.com/dmarques/stockfolio/internal/httpx"
)

// SystemHandlers serves liveness and health endpoints.
type SystemHandlers struct {
	log       zerolog.Logger
	ledgerDB  *database.DB
	cacheDB   *database.DB
	startedAt time.Time
}

// NewSystemHandlers creates system handlers.
func NewSystemHandlers(log zerolog.Logger, ledgerDB, cacheDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		ledgerDB:  ledgerDB,
		cacheDB:   cacheDB,
		startedAt: time.Now(),
	}
}

// HandleLiveness processes GET /health. Always 200 while the process runs.
func (h *SystemHandlers) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleHealth processes GET /api/system/health: database checks plus
// process and host statistics.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	httpStatus := http.StatusOK

	databases := map[string]string{}
	for _, db := range []*database.DB{h.ledgerDB, h.cacheDB} {
		if db == nil {
			continue
		}
		if err := db.QuickCheck(ctx); err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("Database health check failed")
			databases[db.Name()] = err.Error()
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		} else {
			databases[db.Name()] = "ok"
		}
	}

	cpuPercent, memPercent := systemStats()

	httpx.JSON(w, httpStatus, map[string]interface{}{
		"status":         status,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"databases":      databases,
		"system": map[string]interface{}{
			"cpu_percent":    cpuPercent,
			"memory_percent": memPercent,
			"goroutines":     runtime.NumGoroutine(),
		},
	})
}

// systemStats returns host CPU and memory utilization. Failures degrade to
// zero values rather than failing the health response.
func systemStats() (float64, float64) {
	var cpuAvg float64
	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		cpuAvg = percents[0]
	}

	var memUsed float64
	if stat, err := mem.VirtualMemory(); err == nil {
		memUsed = stat.UsedPercent
	}

	return cpuAvg, memUsed
}
