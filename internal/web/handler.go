// Package web serves the server-rendered movie explorer pages.
package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"movieexplorer/internal/catalog"
	"movieexplorer/internal/fetch"
)

const featuredCount = 6

// filterKeys are the form fields applied by POST /movies/filters
var filterKeys = []string{"genre", "actor", "director", "year", "min_year", "max_year"}

// Catalog is the remote API as used by the pages
type Catalog interface {
	ListMovies(ctx context.Context, q catalog.Query) ([]catalog.Movie, error)
	GetMovies(ctx context.Context, f catalog.Filter) ([]catalog.Movie, error)
	GetMovie(ctx context.Context, id int) (*catalog.MovieDetail, error)
	GetMovieRatings(ctx context.Context, movieID int) ([]catalog.Rating, error)
	CreateRating(ctx context.Context, in catalog.RatingInput) (*catalog.Rating, error)
	GetActors(ctx context.Context) ([]catalog.Actor, error)
	GetActor(ctx context.Context, id int) (*catalog.Actor, error)
	GetDirectors(ctx context.Context) ([]catalog.Director, error)
	GetDirector(ctx context.Context, id int) (*catalog.Director, error)
	GetGenres(ctx context.Context) ([]catalog.Genre, error)
}

// Handler renders the pages
type Handler struct {
	catalog  Catalog
	renderer *Renderer
}

// NewHandler creates a new Handler
func NewHandler(c Catalog, renderer *Renderer) *Handler {
	return &Handler{
		catalog:  c,
		renderer: renderer,
	}
}

type moviesData struct {
	Movies []catalog.Movie
	Genres []catalog.Genre
	Query  catalog.Query
}

type movieData struct {
	Movie   *catalog.MovieDetail
	Ratings []catalog.Rating
}

type peopleData struct {
	People []catalog.Person
	Base   string
}

type personData struct {
	Person *catalog.Person
	Movies []catalog.Movie
	Base   string
}

// Home renders the landing page with the first few movies
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	movies, err := h.catalog.GetMovies(r.Context(), catalog.Filter{})
	if err != nil {
		h.fail(w, r, err, "Failed to load movies", "/")
		return
	}
	if len(movies) > featuredCount {
		movies = movies[:featuredCount]
	}
	h.renderer.Render(w, http.StatusOK, "home", Page{
		Title: "Home",
		Data:  moviesData{Movies: movies},
	})
}

// Movies renders the list for the current address query
func (h *Handler) Movies(w http.ResponseWriter, r *http.Request) {
	q := catalog.ParseQuery(r.URL.Query())

	movies, err := h.catalog.ListMovies(r.Context(), q)
	if err != nil {
		h.fail(w, r, err, "Failed to load movies", "/movies")
		return
	}

	genres, err := h.catalog.GetGenres(r.Context())
	if err != nil && !fetch.IsCanceled(err) {
		// the page still works without the genre select
		hlog.FromRequest(r).Warn().Err(err).Msg("failed to load genres")
	}

	h.renderer.Render(w, http.StatusOK, "movies", Page{
		Title: "Movies",
		Q:     q.Q,
		Data:  moviesData{Movies: movies, Genres: genres, Query: q},
	})
}

// ApplyFilters sets or deletes each filter field, drops q when any filter is
// set and redirects to the resulting movies address.
func (h *Handler) ApplyFilters(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid filters", err.Error(), "/movies")
		return
	}

	values := url.Values{}
	if q := strings.TrimSpace(r.PostForm.Get("q")); q != "" {
		values.Set("q", q)
	}
	anySet := false
	for _, key := range filterKeys {
		if v := strings.TrimSpace(r.PostForm.Get(key)); v != "" {
			values.Set(key, v)
			anySet = true
		}
	}
	if anySet {
		values.Del("q")
	}

	target := "/movies"
	if encoded := values.Encode(); encoded != "" {
		target += "?" + encoded
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Movie renders one movie with its cast and ratings
func (h *Handler) Movie(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "Movie Not Found", "/movies")
	if !ok {
		return
	}

	movie, err := h.catalog.GetMovie(r.Context(), id)
	if err != nil {
		h.notFound(w, r, err, "Movie Not Found", "/movies")
		return
	}

	ratings, err := h.catalog.GetMovieRatings(r.Context(), id)
	if err != nil && !fetch.IsCanceled(err) {
		hlog.FromRequest(r).Warn().Err(err).Int("movieId", id).Msg("failed to load ratings")
	}

	h.renderer.Render(w, http.StatusOK, "movie", Page{
		Title: movie.Title,
		Data:  movieData{Movie: movie, Ratings: ratings},
	})
}

// CreateRating posts the rating form and redirects back to the movie
func (h *Handler) CreateRating(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "Movie Not Found", "/movies")
	if !ok {
		return
	}
	back := "/movies/" + strconv.Itoa(id)

	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid rating", err.Error(), back)
		return
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(r.PostForm.Get("score")), 64)
	if err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid rating", "score must be a number", back)
		return
	}

	_, err = h.catalog.CreateRating(r.Context(), catalog.RatingInput{
		MovieID: id,
		Score:   score,
		Review:  strings.TrimSpace(r.PostForm.Get("review")),
	})
	switch {
	case errors.Is(err, catalog.ErrInvalidRating):
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid rating", err.Error(), back)
		return
	case err != nil:
		h.fail(w, r, err, "Failed to save rating", back)
		return
	}

	http.Redirect(w, r, back, http.StatusSeeOther)
}

// Actors lists all actors
func (h *Handler) Actors(w http.ResponseWriter, r *http.Request) {
	actors, err := h.catalog.GetActors(r.Context())
	if err != nil {
		h.fail(w, r, err, "Failed to load actors", "/")
		return
	}
	h.renderer.Render(w, http.StatusOK, "people", Page{
		Title: "Actors",
		Data:  peopleData{People: actors, Base: "/actors"},
	})
}

// Actor renders one actor and the movies they appear in
func (h *Handler) Actor(w http.ResponseWriter, r *http.Request) {
	h.person(w, r, "/actors", "Actor Not Found", h.catalog.GetActor, func(name string) catalog.Filter {
		return catalog.Filter{Actor: name}
	})
}

// Directors lists all directors
func (h *Handler) Directors(w http.ResponseWriter, r *http.Request) {
	directors, err := h.catalog.GetDirectors(r.Context())
	if err != nil {
		h.fail(w, r, err, "Failed to load directors", "/")
		return
	}
	h.renderer.Render(w, http.StatusOK, "people", Page{
		Title: "Directors",
		Data:  peopleData{People: directors, Base: "/directors"},
	})
}

// Director renders one director and their movies
func (h *Handler) Director(w http.ResponseWriter, r *http.Request) {
	h.person(w, r, "/directors", "Director Not Found", h.catalog.GetDirector, func(name string) catalog.Filter {
		return catalog.Filter{Director: name}
	})
}

func (h *Handler) person(
	w http.ResponseWriter,
	r *http.Request,
	base, notFoundTitle string,
	get func(context.Context, int) (*catalog.Person, error),
	filter func(name string) catalog.Filter,
) {
	id, ok := h.pathID(w, r, notFoundTitle, base)
	if !ok {
		return
	}

	p, err := get(r.Context(), id)
	if err != nil {
		h.notFound(w, r, err, notFoundTitle, base)
		return
	}

	movies, err := h.catalog.GetMovies(r.Context(), filter(p.Name))
	if err != nil {
		h.fail(w, r, err, "Failed to load movies", base)
		return
	}

	h.renderer.Render(w, http.StatusOK, "person", Page{
		Title: p.Name,
		Data:  personData{Person: p, Movies: movies, Base: base},
	})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, notFoundTitle, back string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		h.renderer.RenderError(w, http.StatusNotFound, notFoundTitle, "Invalid id", back)
		return 0, false
	}
	return id, true
}

// notFound renders a detail page failure. Cancellations render nothing.
func (h *Handler) notFound(w http.ResponseWriter, r *http.Request, err error, title, back string) {
	if fetch.IsCanceled(err) {
		hlog.FromRequest(r).Debug().Err(err).Msg("request cancelled")
		return
	}
	status := http.StatusBadGateway
	if catalog.IsNotFound(err) {
		status = http.StatusNotFound
	}
	hlog.FromRequest(r).Warn().Err(err).Msg(title)
	h.renderer.RenderError(w, status, title, catalog.DetailMessage(err), back)
}

// fail renders a load failure. Cancellations render nothing.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, title, back string) {
	if fetch.IsCanceled(err) {
		hlog.FromRequest(r).Debug().Err(err).Msg("request cancelled")
		return
	}
	hlog.FromRequest(r).Error().Err(err).Msg(title)
	h.renderer.RenderError(w, http.StatusBadGateway, title, catalog.DetailMessage(err), back)
}
