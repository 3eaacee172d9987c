package system

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats снимок хоста для отчёта о рендере.
type HostStats struct {
	LogicalCPUs int
	MemTotal    uint64
	MemUsed     uint64
	MemPercent  float64
}

func ReadHostStats() HostStats {
	stats := HostStats{LogicalCPUs: runtime.NumCPU()}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		stats.LogicalCPUs = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemTotal = vm.Total
		stats.MemUsed = vm.Used
		stats.MemPercent = vm.UsedPercent
	}
	return stats
}

func (s HostStats) String() string {
	return fmt.Sprintf("cpu=%d mem=%.1f/%.1fGB (%.0f%%)",
		s.LogicalCPUs, float64(s.MemUsed)/(1<<30), float64(s.MemTotal)/(1<<30), s.MemPercent)
}

// EncoderThreads ограничивает число потоков числом CPU хоста.
func (s HostStats) EncoderThreads(want int) int {
	if s.LogicalCPUs > 0 && want > s.LogicalCPUs {
		return s.LogicalCPUs
	}
	return want
}
