// Package memguard implements the hard memory-pressure backpressure guard
// from the capture tick's step 5: stall the capture thread until every
// stream's frame queue has drained, when another allocation would push the
// process working set past a configured ceiling.
package memguard

import (
	"context"
	"math"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/lumenforge/capturecore/internal/logging"
)

var log = logging.L("memguard")

// DefaultCeilingBytes mirrors the original guard's INT32_MAX threshold.
const DefaultCeilingBytes = math.MaxInt32

// pollInterval is the guard's busy-wait granularity, matching the spec's
// "1 ms sleeps" wording exactly.
const pollInterval = time.Millisecond

// Guard samples the current process's resident working set and decides
// whether the capture thread must stall.
type Guard struct {
	ceiling uint64
	proc    *process.Process
}

// New constructs a guard for the current process with the given ceiling in
// bytes. ceiling <= 0 selects DefaultCeilingBytes.
func New(ceiling int64) (*Guard, error) {
	if ceiling <= 0 {
		ceiling = DefaultCeilingBytes
	}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Guard{ceiling: uint64(ceiling), proc: p}, nil
}

// WouldExceed reports whether the process's current working set has already
// reached the configured ceiling, i.e. whether another allocation risks
// crossing it.
func (g *Guard) WouldExceed() bool {
	info, err := g.proc.MemoryInfo()
	if err != nil {
		log.Warn("memory info unavailable, guard disabled for this tick", "error", err)
		return false
	}
	return info.RSS >= g.ceiling
}

// drainChecker reports the number of frames currently buffered across all
// streams; satisfied by the orchestrator's BufferedItems, which sums the
// live queue lengths on each call.
type drainChecker interface {
	BufferedItems() int64
}

// WaitForDrain busy-waits in pollInterval increments until drainChecker
// reports zero buffered items or ctx is done, matching §4.G step 5's
// "busy-wait (1 ms sleeps) until the queue drains to zero".
func (g *Guard) WaitForDrain(ctx context.Context, d drainChecker) {
	if !g.WouldExceed() {
		return
	}
	log.Warn("memory pressure guard engaged, stalling capture thread")
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for d.BufferedItems() != 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
	log.Info("memory pressure guard released, queues drained")
}
