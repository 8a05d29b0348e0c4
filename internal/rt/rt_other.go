//go:build !linux

package rt

// Prepare is not supported on non-Linux platforms.
func Prepare() error {
	return ErrUnsupported
}

// PinThread is not supported on non-Linux platforms.
func PinThread(priority int) error {
	return ErrUnsupported
}

// CheckThrottling is not supported on non-Linux platforms.
func CheckThrottling() (Throttling, error) {
	return Throttling{}, ErrUnsupported
}
