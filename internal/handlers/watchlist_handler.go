package handlers

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/arnavk09/cinetrack/internal/models"
	"github.com/arnavk09/cinetrack/internal/services"
)

// WatchlistHandler serves the per-user watchlist. All routes sit behind
// the session middleware, so the email local is always present. Internal
// failures map to a generic 500 without detail leakage.
type WatchlistHandler struct {
	users *services.UserService
}

func NewWatchlistHandler(users *services.UserService) *WatchlistHandler {
	return &WatchlistHandler{users: users}
}

// Get returns the watchlist, most recently added first.
func (h *WatchlistHandler) Get(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	watchlist, err := h.users.GetWatchlist(c.UserContext(), email)
	if err != nil {
		log.Printf("fetching watchlist for %s: %v", email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch watchlist"})
	}
	return c.JSON(fiber.Map{"watchlist": watchlist})
}

// Add appends a movie to the watchlist. Adding a movie that is already
// present is reported as a non-success without touching the stored entry.
func (h *WatchlistHandler) Add(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	var body struct {
		MovieID      int     `json:"movieId"`
		Title        string  `json:"title"`
		PosterPath   string  `json:"posterPath"`
		BackdropPath string  `json:"backdropPath"`
		ReleaseDate  string  `json:"releaseDate"`
		VoteAverage  float64 `json:"voteAverage"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if body.MovieID <= 0 || body.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing required fields"})
	}

	result, err := h.users.AddToWatchlist(c.UserContext(), email, models.WatchlistEntry{
		MovieID:      body.MovieID,
		Title:        body.Title,
		PosterPath:   body.PosterPath,
		BackdropPath: body.BackdropPath,
		ReleaseDate:  body.ReleaseDate,
		VoteAverage:  body.VoteAverage,
	})
	if err != nil {
		log.Printf("adding movie %d for %s: %v", body.MovieID, email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to add to watchlist"})
	}
	if !result.Added {
		return c.JSON(fiber.Map{"success": false, "message": "Movie already in watchlist"})
	}
	return c.JSON(fiber.Map{"success": true, "watchlist": result.Watchlist})
}

// Remove deletes a movie from the watchlist. Removing a movie that was
// never added still succeeds with the unchanged list.
func (h *WatchlistHandler) Remove(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	raw := c.Query("movieId")
	if raw == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing movieId"})
	}
	movieID, err := strconv.Atoi(raw)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid movieId"})
	}

	watchlist, err := h.users.RemoveFromWatchlist(c.UserContext(), email, movieID)
	if err != nil {
		log.Printf("removing movie %d for %s: %v", movieID, email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to remove from watchlist"})
	}
	return c.JSON(fiber.Map{"success": true, "watchlist": watchlist})
}

// Contains reports whether a movie is on the watchlist. This check fails
// open: any internal failure reads as false.
func (h *WatchlistHandler) Contains(c *fiber.Ctx) error {
	email := c.Locals("email").(string)

	raw := c.Query("movieId")
	if raw == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing movieId"})
	}
	movieID, err := strconv.Atoi(raw)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid movieId"})
	}

	return c.JSON(fiber.Map{"inWatchlist": h.users.IsInWatchlist(c.UserContext(), email, movieID)})
}
