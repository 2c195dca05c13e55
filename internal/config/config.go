package config

import "os"

// Config holds every environment-driven setting. MongoURI is deliberately
// allowed to be empty here: the store reports a configuration error on
// first use instead of the process refusing to boot, so the discovery
// endpoints keep working without a database.
type Config struct {
	Port string

	MongoURI   string
	Database   string
	Collection string

	TMDBAPIKey string

	GithubClientID     string
	GithubClientSecret string
	OAuthRedirectURL   string

	JWTSecret string
}

// Load reads configuration from the environment, applying the same
// defaults for every optional value in one place.
func Load() Config {
	return Config{
		Port:               getenv("PORT", "8080"),
		MongoURI:           os.Getenv("MONGO_URI"),
		Database:           getenv("MONGO_DATABASE", "moviedb"),
		Collection:         getenv("MONGO_COLLECTION", "users"),
		TMDBAPIKey:         os.Getenv("TMDB_API_KEY"),
		GithubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GithubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		OAuthRedirectURL:   getenv("OAUTH_REDIRECT_URL", "http://localhost:8080/auth/callback"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
