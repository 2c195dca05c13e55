package models

import "time"

// User is the single durable aggregate: one document per email, with the
// watchlist embedded as an ordered array. The email doubles as the
// document id and the partition key.
type User struct {
	ID        string           `bson:"_id" json:"id"`
	Email     string           `bson:"email" json:"email" validate:"required,email"`
	Name      string           `bson:"name" json:"name"`
	Image     string           `bson:"image" json:"image"`
	GithubID  string           `bson:"github_id" json:"githubId"`
	CreatedAt time.Time        `bson:"created_at" json:"createdAt"`
	Watchlist []WatchlistEntry `bson:"watchlist" json:"watchlist"`
}

// WatchlistEntry is a saved reference to a TMDB movie with denormalized
// display fields. It has no identity outside its owning User; MovieID is
// unique within a single user's watchlist.
type WatchlistEntry struct {
	MovieID      int       `bson:"movie_id" json:"movieId"`
	Title        string    `bson:"title" json:"title"`
	PosterPath   string    `bson:"poster_path,omitempty" json:"posterPath"`
	BackdropPath string    `bson:"backdrop_path,omitempty" json:"backdropPath"`
	ReleaseDate  string    `bson:"release_date,omitempty" json:"releaseDate"`
	VoteAverage  float64   `bson:"vote_average" json:"voteAverage"`
	AddedAt      time.Time `bson:"added_at" json:"addedAt"`
}

// Profile carries the identity claims received from the OAuth provider.
type Profile struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Image    string `json:"image"`
	GithubID string `json:"githubId"`
}
