//go:build !windows

package autostart

func enableRegistry(command string) error { return ErrUnsupported }

func disableRegistry() error { return ErrUnsupported }

func registryEnabled() bool { return false }
