// Package querysync keeps a free-text search input and the address query in
// step without navigating on every keystroke.
package querysync

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Controller debounces user edits into replace-state navigations.
// It is safe for concurrent use.
type Controller struct {
	loc      Location
	debounce time.Duration
	onCommit func(path, q string)
	logger   zerolog.Logger

	mu     sync.Mutex
	input  string
	state  State
	gen    uint64 // bumped on every edit or sync; stale timer fires compare against it
	timer  *time.Timer
	closed bool
}

// New creates a Controller seeded from loc
func New(loc Location, opts ...Option) *Controller {
	c := &Controller{
		loc:      loc,
		debounce: DefaultDebounce,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.input = loc.Query()
	return c
}

// SetInput records a user edit and restarts the debounce timer
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.input = text
	c.gen++
	c.stopTimer()
	c.state = Pending

	gen := c.gen
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(gen) })
}

// Sync re-seeds the input from the location after external navigation.
// Any pending commit is dropped.
func (c *Controller) Sync() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.stopTimer()
	c.input = c.loc.Query()
	c.state = Idle
}

// Input returns the current input text
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close stops the timer; later edits are ignored
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.gen++
	c.stopTimer()
	c.state = Idle
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.state = Committing
	term := strings.TrimSpace(c.input)
	c.mu.Unlock()

	// Location is called without mu held so it may call back into the controller
	c.commit(gen, term)

	c.mu.Lock()
	if gen == c.gen {
		c.state = Idle
		c.timer = nil
	}
	c.mu.Unlock()
}

func (c *Controller) commit(gen uint64, term string) {
	if term == strings.TrimSpace(c.loc.Query()) {
		return
	}

	var rawQuery string
	switch {
	case term != "":
		rawQuery = url.Values{"q": []string{term}}.Encode()
	case c.loc.Path() == SearchPath:
		rawQuery = ""
	default:
		c.logger.Debug().Str("path", c.loc.Path()).Msg("empty term outside search page, not clearing")
		return
	}

	// a Sync or edit may have landed while the location was being read
	c.mu.Lock()
	stale := gen != c.gen || c.closed
	c.mu.Unlock()
	if stale {
		c.logger.Debug().Str("q", term).Msg("superseded before commit, dropping")
		return
	}

	c.loc.Replace(SearchPath, rawQuery)
	c.logger.Debug().Str("q", term).Msg("query committed")
	if c.onCommit != nil {
		c.onCommit(SearchPath, term)
	}
}

// stopTimer must be called with mu held
func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
