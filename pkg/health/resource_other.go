//go:build !linux

package health

import (
	"context"
	"time"
)

// sampleCPUPercent is unsupported off Linux; -1 skips CPU classification
func sampleCPUPercent(ctx context.Context, window time.Duration) float64 {
	return -1
}

// sampleDiskUsedPercent is unsupported off Linux
func sampleDiskUsedPercent(path string) float64 {
	return -1
}
