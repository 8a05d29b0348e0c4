// Package rt prepares the process and the channel threads for realtime
// scheduling: locked memory, SCHED_FIFO threads pinned to their goroutines,
// and a check of the kernel's realtime throttling.
package rt

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
)

// ErrUnsupported is returned on platforms without realtime scheduling.
var ErrUnsupported = errors.New("rt: not supported on this platform")

// RuntimeKey is the sysctl that bounds realtime CPU time per period.
const RuntimeKey = "kernel.sched_rt_runtime_us"

// Throttling describes the kernel's realtime bandwidth limit.
type Throttling struct {
	Enabled   bool
	RuntimeUs int64 // per scheduling period; -1 when disabled
}

func (t Throttling) String() string {
	if !t.Enabled {
		return "rt throttling disabled"
	}
	return fmt.Sprintf("rt throttling limits realtime threads to %d us per period", t.RuntimeUs)
}

// ParseRuntime interprets the value of RuntimeKey.
func ParseRuntime(value string) (Throttling, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return Throttling{}, fmt.Errorf("parse %s %q: %w", RuntimeKey, value, err)
	}
	if n < 0 {
		return Throttling{RuntimeUs: -1}, nil
	}
	return Throttling{Enabled: true, RuntimeUs: n}, nil
}

// ThreadSetup returns a hook for controller.SetThreadSetup that pins each
// channel goroutine to a SCHED_FIFO thread at priority. Failures are logged
// once; the channel then runs under the normal scheduler.
func ThreadSetup(priority int) func() {
	var warned atomic.Bool
	return func() {
		if err := PinThread(priority); err != nil && !warned.Swap(true) {
			log.Printf("rt: %v; channels run without realtime priority", err)
		}
	}
}
