// Package catalogtest provides an in-memory stand-in for the remote movie API.
package catalogtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"movieexplorer/internal/catalog"
)

// Server serves a small fixed catalog over httptest
type Server struct {
	*httptest.Server

	movies    []catalog.MovieDetail
	actors    []catalog.Actor
	directors []catalog.Director
	genres    []catalog.Genre

	mu       sync.Mutex
	ratings  []catalog.Rating
	requests []string

	delay    atomic.Int64
	failWith atomic.Int32
}

var (
	nolan    = catalog.Director{ID: 1, Name: "Christopher Nolan", Bio: "British-American filmmaker known for complex narratives."}
	mann     = catalog.Director{ID: 2, Name: "Michael Mann"}
	gerwig   = catalog.Director{ID: 3, Name: "Greta Gerwig"}
	dicaprio = catalog.Actor{ID: 1, Name: "Leonardo DiCaprio", Bio: "American actor and film producer."}
	bale     = catalog.Actor{ID: 2, Name: "Christian Bale"}
	pacino   = catalog.Actor{ID: 3, Name: "Al Pacino"}
	robbie   = catalog.Actor{ID: 4, Name: "Margot Robbie"}
	action   = catalog.Genre{ID: 1, Name: "Action"}
	scifi    = catalog.Genre{ID: 2, Name: "Sci-Fi"}
	crime    = catalog.Genre{ID: 3, Name: "Crime"}
	comedy   = catalog.Genre{ID: 4, Name: "Comedy"}
)

// NewServer starts a Server that is closed when the test ends
func NewServer(t testing.TB) *Server {
	t.Helper()

	rating := 8.8
	s := &Server{
		movies: []catalog.MovieDetail{
			{Movie: catalog.Movie{ID: 1, Title: "Inception", ReleaseYear: 2010, Status: "Released", DurationMinutes: 148,
				Synopsis: "A thief who steals corporate secrets through dream-sharing technology.",
				Director: nolan, Genres: []catalog.Genre{action, scifi}, AverageRating: &rating, RatingCount: 1},
				Actors: []catalog.Actor{dicaprio}},
			{Movie: catalog.Movie{ID: 2, Title: "The Dark Knight", ReleaseYear: 2008, Status: "Released",
				Director: nolan, Genres: []catalog.Genre{action, crime}},
				Actors: []catalog.Actor{bale}},
			{Movie: catalog.Movie{ID: 3, Title: "Heat", ReleaseYear: 1995, Status: "Released",
				Director: mann, Genres: []catalog.Genre{crime}},
				Actors: []catalog.Actor{pacino}},
			{Movie: catalog.Movie{ID: 4, Title: "Barbie", ReleaseYear: 2023, Status: "Released",
				Director: gerwig, Genres: []catalog.Genre{comedy}},
				Actors: []catalog.Actor{robbie}},
		},
		actors:    []catalog.Actor{dicaprio, bale, pacino, robbie},
		directors: []catalog.Director{nolan, mann, gerwig},
		genres:    []catalog.Genre{action, scifi, crime, comedy},
		ratings:   []catalog.Rating{{ID: 1, MovieID: 1, Score: 8.8, Review: "Layered."}},
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Route("/api", func(r chi.Router) {
		r.Get("/movies", s.listMovies)
		r.Get("/movies/search", s.searchMovies)
		r.Get("/movies/{id}", s.getMovie)
		r.Get("/movies/{id}/ratings", s.movieRatings)
		r.Get("/actors", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, http.StatusOK, s.actors) })
		r.Get("/actors/{id}", s.getPerson(s.actors, "Actor not found"))
		r.Get("/directors", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, http.StatusOK, s.directors) })
		r.Get("/directors/{id}", s.getPerson(s.directors, "Director not found"))
		r.Get("/genres", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, http.StatusOK, s.genres) })
		r.Post("/ratings", s.createRating)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// SetDelay makes every response wait d, or until the client gives up
func (s *Server) SetDelay(d time.Duration) {
	s.delay.Store(int64(d))
}

// FailWith makes every request answer status with an empty body; 0 restores
func (s *Server) FailWith(status int) {
	s.failWith.Store(int32(status))
}

// Requests returns the request URIs received so far
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Count returns how many requests had the given URI
func (s *Server) Count(uri string) int {
	n := 0
	for _, r := range s.Requests() {
		if r == uri {
			n++
		}
	}
	return n
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.URL.RequestURI())
		s.mu.Unlock()

		if d := time.Duration(s.delay.Load()); d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
		if status := int(s.failWith.Load()); status != 0 {
			w.WriteHeader(status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listMovies(w http.ResponseWriter, r *http.Request) {
	f := catalog.ParseQuery(r.URL.Query()).Filter
	search := r.URL.Query().Get("search")

	out := []catalog.MovieDetail{}
	for _, m := range s.movies {
		switch {
		case f.Genre != "" && !anyGenre(m.Genres, f.Genre):
		case f.Actor != "" && !anyPerson(m.Actors, f.Actor):
		case f.Director != "" && !contains(m.Director.Name, f.Director):
		case f.Year != 0 && m.ReleaseYear != f.Year:
		case f.MinYear != 0 && m.ReleaseYear < f.MinYear:
		case f.MaxYear != 0 && m.ReleaseYear > f.MaxYear:
		case f.Status != "" && !contains(m.Status, f.Status):
		case search != "" && !contains(m.Title, search):
		default:
			out = append(out, m)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) searchMovies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"detail": []map[string]string{{"msg": "String should have at least 1 character"}},
		})
		return
	}

	out := []catalog.MovieDetail{}
	for _, m := range s.movies {
		if contains(m.Title, q) || contains(m.Director.Name, q) || anyPerson(m.Actors, q) || anyGenre(m.Genres, q) {
			out = append(out, m)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getMovie(w http.ResponseWriter, r *http.Request) {
	if m, ok := s.findMovie(chi.URLParam(r, "id")); ok {
		writeJSON(w, http.StatusOK, m)
		return
	}
	writeDetail(w, http.StatusNotFound, "Movie not found")
}

func (s *Server) movieRatings(w http.ResponseWriter, r *http.Request) {
	m, ok := s.findMovie(chi.URLParam(r, "id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Movie not found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []catalog.Rating{}
	for _, rt := range s.ratings {
		if rt.MovieID == m.ID {
			out = append(out, rt)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createRating(w http.ResponseWriter, r *http.Request) {
	var in catalog.RatingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if _, ok := s.findMovie(strconv.Itoa(in.MovieID)); !ok {
		writeDetail(w, http.StatusNotFound, "Movie not found")
		return
	}

	s.mu.Lock()
	rt := catalog.Rating{ID: len(s.ratings) + 1, MovieID: in.MovieID, Score: in.Score, Review: in.Review}
	s.ratings = append(s.ratings, rt)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, rt)
}

func (s *Server) getPerson(people []catalog.Person, notFound string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(chi.URLParam(r, "id"))
		for _, p := range people {
			if p.ID == id {
				writeJSON(w, http.StatusOK, p)
				return
			}
		}
		writeDetail(w, http.StatusNotFound, notFound)
	}
}

func (s *Server) findMovie(rawID string) (catalog.MovieDetail, bool) {
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return catalog.MovieDetail{}, false
	}
	for _, m := range s.movies {
		if m.ID == id {
			return m, true
		}
	}
	return catalog.MovieDetail{}, false
}

func contains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func anyGenre(genres []catalog.Genre, name string) bool {
	for _, g := range genres {
		if contains(g.Name, name) {
			return true
		}
	}
	return false
}

func anyPerson(people []catalog.Person, name string) bool {
	for _, p := range people {
		if contains(p.Name, name) {
			return true
		}
	}
	return false
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
