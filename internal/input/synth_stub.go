//go:build !windows && !darwin

package input

// Mouse synthesis is not available here; key combos still go through keybd_event (uinput on Linux)

func platformMoveTo(x, y int) error {
	return ErrUnsupported
}

func platformClick(button string) error {
	return ErrUnsupported
}
