package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HealthWorker periodically logs the process's own vitals. It is the
// poor man's dashboard for a deployment without a metrics stack.
type HealthWorker struct {
	log      *slog.Logger
	service  string
	interval time.Duration
}

func NewHealthWorker(log *slog.Logger, service string, interval time.Duration) *HealthWorker {
	return &HealthWorker{log: log, service: service, interval: interval}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rss, cpu, status, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.log.Info("Health",
				slog.String("service", w.service),
				slog.String("status", status),
				slog.Float64("cpu_percent", cpu),
				slog.Uint64("rss_mb", rss/1024/1024),
				slog.Int("goroutines", runtime.NumGoroutine()))
		}
	}
}

// selfStats retrieves memory, CPU and OS status for the given process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
