// Package diagnostics samples OS-level resource usage of the current
// process so the doctor command can cross-check the ledger against what
// the kernel actually sees. All readings are best-effort: a platform that
// cannot report a metric leaves its Valid flag false instead of failing
// the whole sample.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats is one sample of the current process's resource usage.
type ProcessStats struct {
	PID         int32     `json:"pid"`
	SampledAt   time.Time `json:"sampled_at"`
	OpenFDs     int32     `json:"open_fds"`
	FDsValid    bool      `json:"fds_valid"`
	FDSoftLimit uint64    `json:"fd_soft_limit,omitempty"`
	FDHardLimit uint64    `json:"fd_hard_limit,omitempty"`
	OSThreads   int32     `json:"os_threads"`
	Goroutines  int       `json:"goroutines"`
	Connections int       `json:"connections"`
	ConnsValid  bool      `json:"conns_valid"`
	RSSMB       float64   `json:"rss_mb"`
	HostMemPct  float64   `json:"host_mem_pct"`
}

// Sampler reads process resource usage.
type Sampler struct {
	proc *process.Process
}

// NewSampler creates a sampler bound to the current process.
func NewSampler() (*Sampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("attaching to own process: %w", err)
	}
	return &Sampler{proc: proc}, nil
}

// Sample takes one reading.
func (s *Sampler) Sample(ctx context.Context) (ProcessStats, error) {
	stats := ProcessStats{
		PID:        s.proc.Pid,
		SampledAt:  time.Now(),
		Goroutines: runtime.NumGoroutine(),
	}

	if fds, err := s.proc.NumFDsWithContext(ctx); err == nil {
		stats.OpenFDs = fds
		stats.FDsValid = true
	}
	if threads, err := s.proc.NumThreadsWithContext(ctx); err == nil {
		stats.OSThreads = threads
	}
	if conns, err := s.proc.ConnectionsWithContext(ctx); err == nil {
		stats.Connections = len(conns)
		stats.ConnsValid = true
	}
	if limits, err := s.proc.RlimitWithContext(ctx); err == nil {
		for _, l := range limits {
			if l.Resource == process.RLIMIT_NOFILE {
				stats.FDSoftLimit = uint64(l.Soft)
				stats.FDHardLimit = uint64(l.Hard)
			}
		}
	}
	if info, err := s.proc.MemoryInfoWithContext(ctx); err == nil && info != nil {
		stats.RSSMB = float64(info.RSS) / (1024 * 1024)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.HostMemPct = vm.UsedPercent
	}

	return stats, nil
}

// Finding is one doctor check outcome.
type Finding struct {
	Check   string `json:"check"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// FDPressureThreshold is the fraction of the soft FD limit past which the
// doctor flags descriptor pressure.
const FDPressureThreshold = 0.8

// Check inspects a sample and the ledger's view of open handles and
// returns findings. ledgerFiles and ledgerSockets are the ledger's open
// counts for the corresponding resource types.
func Check(stats ProcessStats, ledgerFiles, ledgerSockets int) []Finding {
	var findings []Finding

	if stats.FDsValid && stats.FDSoftLimit > 0 {
		used := float64(stats.OpenFDs) / float64(stats.FDSoftLimit)
		f := Finding{
			Check:   "fd_pressure",
			OK:      used < FDPressureThreshold,
			Message: fmt.Sprintf("%d of %d file descriptors in use", stats.OpenFDs, stats.FDSoftLimit),
		}
		if !f.OK {
			f.Message += ", approaching the soft limit"
		}
		findings = append(findings, f)
	}

	if stats.FDsValid {
		// More tracked files than kernel FDs means release calls are not
		// reaching the ledger.
		f := Finding{
			Check: "ledger_vs_fds",
			OK:    ledgerFiles <= int(stats.OpenFDs),
			Message: fmt.Sprintf("ledger tracks %d open files, process holds %d descriptors",
				ledgerFiles, stats.OpenFDs),
		}
		findings = append(findings, f)
	}

	if stats.ConnsValid {
		f := Finding{
			Check: "ledger_vs_sockets",
			OK:    ledgerSockets <= stats.Connections,
			Message: fmt.Sprintf("ledger tracks %d open sockets, process holds %d connections",
				ledgerSockets, stats.Connections),
		}
		findings = append(findings, f)
	}

	findings = append(findings, Finding{
		Check: "goroutines",
		OK:    true,
		Message: fmt.Sprintf("%d goroutines, %d OS threads",
			stats.Goroutines, stats.OSThreads),
	})

	return findings
}
