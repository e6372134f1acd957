package main

import (
	"context"
	"sync/atomic"
	"time"
)

// runTickSource is the periodic tick producer. It never blocks on the loop:
// when out is full the tick is dropped and counted in overruns, which the
// loop drains.
func runTickSource(ctx context.Context, interval time.Duration, out chan<- struct{}, overruns *atomic.Uint64) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			select {
			case out <- struct{}{}:
			default:
				overruns.Add(1)
			}
		}
	}
}
