package querysync

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultDebounce is the quiet period after the last edit before committing
const DefaultDebounce = 300 * time.Millisecond

// SearchPath is the page that displays search results
const SearchPath = "/movies"

// Location is the externally visible address state
type Location interface {
	// Path returns the current path
	Path() string
	// Query returns the current value of the q parameter
	Query() string
	// Replace navigates without adding a history entry
	Replace(path, rawQuery string)
}

// State is the controller state
type State int

const (
	Idle State = iota
	Pending
	Committing
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committing:
		return "committing"
	default:
		return "idle"
	}
}

// Option configures a Controller
type Option func(*Controller)

// WithDebounce sets the quiet period
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger.With().Str("component", "querysync").Logger()
	}
}

// WithOnCommit registers a callback run after every Replace
func WithOnCommit(fn func(path, q string)) Option {
	return func(c *Controller) {
		c.onCommit = fn
	}
}
