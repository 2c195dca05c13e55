package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/arnavk09/cinetrack/internal/config"
	"github.com/arnavk09/cinetrack/internal/db"
	"github.com/arnavk09/cinetrack/internal/handlers"
	"github.com/arnavk09/cinetrack/internal/middleware"
	"github.com/arnavk09/cinetrack/internal/services"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	// The store connects lazily on first use; a missing MONGO_URI only
	// fails the endpoints that actually need the database.
	store := db.NewStore(cfg.MongoURI, cfg.Database, cfg.Collection)
	users := services.NewUserService(store)
	tmdb := services.NewTMDBService(cfg.TMDBAPIKey)

	authHandler := handlers.NewAuthHandler(cfg, users)
	movieHandler := handlers.NewMovieHandler(tmdb, users)
	watchlistHandler := handlers.NewWatchlistHandler(users)

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	auth := app.Group("/auth")
	auth.Get("/login", authHandler.Login)
	auth.Get("/callback", authHandler.Callback)
	auth.Post("/logout", authHandler.Logout)

	session := middleware.Session(cfg.JWTSecret)

	api := app.Group("/api")
	// Search stays open: the original surface never required a session here.
	api.Get("/search", movieHandler.Search)
	api.Get("/me", session, authHandler.Me)
	api.Get("/popular", session, movieHandler.Popular)
	api.Get("/movie/:id", session, movieHandler.Details)
	api.Get("/movie/:id/trailer", session, movieHandler.Trailer)
	api.Get("/movie/:id/recommendations", session, movieHandler.Recommendations)
	api.Get("/watchlist", session, watchlistHandler.Get)
	api.Post("/watchlist", session, watchlistHandler.Add)
	api.Delete("/watchlist", session, watchlistHandler.Remove)
	api.Get("/watchlist/contains", session, watchlistHandler.Contains)

	log.Fatal(app.Listen(":" + cfg.Port))
}
