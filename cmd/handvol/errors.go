package main

import "fmt"

// ConfigurationError reports an invalid control or daemon setting.
// A session is never constructed from a config that produced one.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// SinkError reports that a volume command could not be delivered.
type SinkError struct {
	Sink   string
	Volume int
	Err    error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("%s sink: set volume %d: %v", e.Sink, e.Volume, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// errNoSink indicates the daemon was asked to execute a command without a volume sink.
type errNoSink struct{}

func (errNoSink) Error() string { return "no volume sink" }

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
