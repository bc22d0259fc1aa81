package plugin

import (
	"fmt"
)

// Phase selects which side of the exchange a plugin intercepts
type Phase string

const (
	PhaseRequest  Phase = "request"
	PhaseResponse Phase = "response"
)

// Plugin represents a loaded JavaScript plugin
type Plugin struct {
	Name   string // plugin name (filename without extension)
	Phase  Phase  // request or response
	Script string // JavaScript source code
}

// Error is returned when a plugin fails to load its script, throws, or
// exceeds the execution timeout
type Error struct {
	Plugin  string
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("plugin %s: %s", e.Plugin, e.Message)
}

func newError(plugin, format string, args ...interface{}) *Error {
	return &Error{
		Plugin:  plugin,
		Message: fmt.Sprintf(format, args...),
	}
}
