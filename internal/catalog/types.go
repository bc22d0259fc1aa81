package catalog

import (
	"fmt"
	"time"
)

// Genre is a movie genre
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Person is an actor or director
type Person struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Bio      string `json:"bio,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
}

type (
	Actor    = Person
	Director = Person
)

// Movie is a movie as listed by /api/movies
type Movie struct {
	ID              int      `json:"id"`
	Title           string   `json:"title"`
	ReleaseYear     int      `json:"release_year"`
	Synopsis        string   `json:"synopsis,omitempty"`
	PosterURL       string   `json:"poster_url,omitempty"`
	DurationMinutes int      `json:"duration_minutes,omitempty"`
	Status          string   `json:"status,omitempty"`
	Director        Director `json:"director"`
	Genres          []Genre  `json:"genres"`
	AverageRating   *float64 `json:"average_rating,omitempty"`
	RatingCount     int      `json:"rating_count"`
}

// MovieDetail is a movie with its cast
type MovieDetail struct {
	Movie
	Actors []Actor `json:"actors"`
}

// Rating is a user score for a movie
type Rating struct {
	ID        int        `json:"id"`
	MovieID   int        `json:"movie_id"`
	Score     float64    `json:"score"`
	Review    string     `json:"review,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// RatingInput is the body of POST /api/ratings
type RatingInput struct {
	MovieID int     `json:"movie_id"`
	Score   float64 `json:"score"`
	Review  string  `json:"review,omitempty"`
}

// Validate checks the bounds enforced by the remote API
func (in RatingInput) Validate() error {
	if in.MovieID <= 0 {
		return fmt.Errorf("%w: movie_id must be positive", ErrInvalidRating)
	}
	if in.Score < 0 || in.Score > 10 {
		return fmt.Errorf("%w: score must be between 0 and 10", ErrInvalidRating)
	}
	if len(in.Review) > 2000 {
		return fmt.Errorf("%w: review must be at most 2000 characters", ErrInvalidRating)
	}
	return nil
}
