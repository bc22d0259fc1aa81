package ws

import (
	"context"

	"movieexplorer/internal/catalog"
)

// Browser -> server message types
const (
	TypeInput    = "input"
	TypeNavigate = "navigate"
)

// Server -> browser message types
const (
	TypeReplace = "replace"
	TypeResults = "results"
	TypeError   = "error"
)

// ClientMessage is sent by the browser on keystrokes and navigation
type ClientMessage struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"` // input
	Path  string `json:"path,omitempty"`  // navigate
	Query string `json:"query,omitempty"` // navigate, raw query without '?'
}

// ReplaceMessage tells the browser to replace the address without a history entry
type ReplaceMessage struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// ResultsMessage carries the movies for the committed query
type ResultsMessage struct {
	Type   string          `json:"type"`
	URL    string          `json:"url"`
	Movies []catalog.Movie `json:"movies"`
}

// ErrorMessage reports a failed load
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MovieLister resolves a movies page query
type MovieLister interface {
	ListMovies(ctx context.Context, q catalog.Query) ([]catalog.Movie, error)
}
