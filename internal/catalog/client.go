// Package catalog is the typed client for the remote movie API.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"movieexplorer/internal/fetch"
)

// Client calls the remote movie API through the Data Client
type Client struct {
	fetch  *fetch.Client
	logger zerolog.Logger
}

// New creates a new catalog Client
func New(fc *fetch.Client, logger zerolog.Logger) *Client {
	return &Client{
		fetch:  fc,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// GetMovies lists movies matching f
func (c *Client) GetMovies(ctx context.Context, f Filter) ([]Movie, error) {
	return fetch.GetJSON[[]Movie](ctx, c.fetch, "/api/movies"+buildQuery(f.Values()))
}

// GetMovie returns one movie with its cast
func (c *Client) GetMovie(ctx context.Context, id int) (*MovieDetail, error) {
	return getOne[MovieDetail](ctx, c.fetch, "/api/movies/"+strconv.Itoa(id))
}

// SearchMovies runs the remote OR search across title, genre, actor and director
func (c *Client) SearchMovies(ctx context.Context, q string) ([]Movie, error) {
	v := url.Values{}
	setString(v, "q", q)
	return fetch.GetJSON[[]Movie](ctx, c.fetch, "/api/movies/search"+buildQuery(v))
}

// ListMovies resolves a page Query: any filter wins over q, then a non-blank
// q searches, otherwise every movie is listed.
func (c *Client) ListMovies(ctx context.Context, q Query) ([]Movie, error) {
	switch {
	case q.HasFilters():
		c.logger.Debug().Str("query", q.Filter.Values().Encode()).Msg("listing filtered movies")
		return c.GetMovies(ctx, q.Filter)
	case strings.TrimSpace(q.Q) != "":
		c.logger.Debug().Str("q", q.Q).Msg("searching movies")
		return c.SearchMovies(ctx, q.Q)
	default:
		return c.GetMovies(ctx, Filter{Status: q.Status, Skip: q.Skip, Limit: q.Limit})
	}
}

// GetActors lists all actors
func (c *Client) GetActors(ctx context.Context) ([]Actor, error) {
	return fetch.GetJSON[[]Actor](ctx, c.fetch, "/api/actors")
}

// GetActor returns one actor
func (c *Client) GetActor(ctx context.Context, id int) (*Actor, error) {
	return getOne[Actor](ctx, c.fetch, "/api/actors/"+strconv.Itoa(id))
}

// GetDirectors lists all directors
func (c *Client) GetDirectors(ctx context.Context) ([]Director, error) {
	return fetch.GetJSON[[]Director](ctx, c.fetch, "/api/directors")
}

// GetDirector returns one director
func (c *Client) GetDirector(ctx context.Context, id int) (*Director, error) {
	return getOne[Director](ctx, c.fetch, "/api/directors/"+strconv.Itoa(id))
}

// GetGenres lists all genres
func (c *Client) GetGenres(ctx context.Context) ([]Genre, error) {
	return fetch.GetJSON[[]Genre](ctx, c.fetch, "/api/genres")
}

// GetMovieRatings lists the ratings of a movie
func (c *Client) GetMovieRatings(ctx context.Context, movieID int) ([]Rating, error) {
	return fetch.GetJSON[[]Rating](ctx, c.fetch, fmt.Sprintf("/api/movies/%d/ratings", movieID))
}

// CreateRating posts a new rating. POSTs are never cached or deduplicated.
func (c *Client) CreateRating(ctx context.Context, in RatingInput) (*Rating, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rating: %w", err)
	}

	r, err := fetch.DoJSON[Rating](ctx, c.fetch, "/api/ratings", &fetch.RequestOptions{
		Method: http.MethodPost,
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Int("movieId", in.MovieID).
		Float64("score", in.Score).
		Msg("rating created")
	return &r, nil
}

func getOne[T any](ctx context.Context, fc *fetch.Client, target string) (*T, error) {
	v, err := fetch.GetJSON[T](ctx, fc, target)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
