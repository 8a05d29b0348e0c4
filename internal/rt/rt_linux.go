//go:build linux

package rt

import (
	"fmt"
	"runtime"

	sysctl "github.com/lorenzosaino/go-sysctl"
	"golang.org/x/sys/unix"
)

// Prepare locks current and future memory so page faults cannot stall a
// channel.
func Prepare() error {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return fmt.Errorf("mlockall: %w", err)
	}
	return nil
}

// PinThread wires the calling goroutine to its OS thread and gives the thread
// SCHED_FIFO at priority. The goroutine must not return to a pool afterwards;
// channel goroutines exit when stopped, which releases the thread.
func PinThread(priority int) error {
	runtime.LockOSThread()
	attr := unix.SchedAttr{
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}
	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		return fmt.Errorf("set SCHED_FIFO %d on thread %d: %w", priority, unix.Gettid(), err)
	}
	return nil
}

// CheckThrottling reads the kernel's realtime bandwidth limit.
func CheckThrottling() (Throttling, error) {
	v, err := sysctl.Get(RuntimeKey)
	if err != nil {
		return Throttling{}, fmt.Errorf("read %s: %w", RuntimeKey, err)
	}
	return ParseRuntime(v)
}
