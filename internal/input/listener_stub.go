//go:build !windows && !darwin

package input

// StubListener is used on platforms without a global hook backend
type StubListener struct{}

// NewListener creates a stub listener
func NewListener() *StubListener {
	return &StubListener{}
}

// Start returns ErrUnsupported
func (l *StubListener) Start(handler Handler) error {
	return ErrUnsupported
}

// Stop is a no-op
func (l *StubListener) Stop() error {
	return nil
}
