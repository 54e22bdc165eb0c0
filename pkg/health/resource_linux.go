//go:build linux

package health

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// sampleCPUPercent measures whole-machine CPU busy time over the window by
// reading /proc/stat twice. Returns -1 when the counters are unreadable.
func sampleCPUPercent(ctx context.Context, window time.Duration) float64 {
	busy1, total1, ok := readCPUTicks()
	if !ok {
		return -1
	}

	select {
	case <-ctx.Done():
		return -1
	case <-time.After(window):
	}

	busy2, total2, ok := readCPUTicks()
	if !ok || total2 <= total1 {
		return -1
	}
	return float64(busy2-busy1) / float64(total2-total1) * 100
}

// readCPUTicks parses the aggregate cpu line of /proc/stat
func readCPUTicks() (busy, total uint64, ok bool) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return 0, 0, false
	}

	line, _, _ := strings.Cut(string(data), "\n")
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, 0, false
	}

	// cpu user nice system idle iowait irq softirq steal ...
	for i, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return 0, 0, false
		}
		total += v
		if i != 3 && i != 4 { // idle and iowait are not busy time
			busy += v
		}
	}
	return busy, total, true
}

// sampleDiskUsedPercent reports used space for the filesystem containing
// path. Returns -1 when statfs fails.
func sampleDiskUsedPercent(path string) float64 {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil || stat.Blocks == 0 {
		return -1
	}
	used := stat.Blocks - stat.Bfree
	return float64(used) / float64(stat.Blocks) * 100
}
