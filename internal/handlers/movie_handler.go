package handlers

import (
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/arnavk09/cinetrack/internal/models"
	"github.com/arnavk09/cinetrack/internal/services"
)

// MovieHandler serves the discovery endpoints. The TMDB service already
// fails open to empty results, so these handlers never see a metadata
// error; an empty page is the degraded state.
type MovieHandler struct {
	tmdb  *services.TMDBService
	users *services.UserService
}

func NewMovieHandler(tmdb *services.TMDBService, users *services.UserService) *MovieHandler {
	return &MovieHandler{tmdb: tmdb, users: users}
}

// Popular returns one page of popular movies with pagination metadata.
func (h *MovieHandler) Popular(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	return c.JSON(h.tmdb.PopularMoviesPaginated(c.UserContext(), page))
}

// Search handles free-text search. Deliberately reachable without a
// session, matching the original surface.
func (h *MovieHandler) Search(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"results": []models.Movie{}, "error": "Query required"})
	}
	return c.JSON(fiber.Map{"results": h.tmdb.SearchMovies(c.UserContext(), query)})
}

// Details aggregates everything the movie page needs: details, trailer,
// recommendations, and whether the movie is on the caller's watchlist.
// The four upstream reads are independent, so they run concurrently.
func (h *MovieHandler) Details(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid movie id"})
	}

	ctx := c.UserContext()
	email, _ := c.Locals("email").(string)

	var (
		details     *models.MovieDetails
		trailer     *models.Video
		recommended []models.Movie
		inWatchlist bool
	)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		details = h.tmdb.MovieDetails(ctx, id)
	}()
	go func() {
		defer wg.Done()
		trailer = h.tmdb.MovieTrailer(ctx, id)
	}()
	go func() {
		defer wg.Done()
		recommended = h.tmdb.RecommendedMovies(ctx, id)
	}()
	go func() {
		defer wg.Done()
		inWatchlist = h.users.IsInWatchlist(ctx, email, id)
	}()
	wg.Wait()

	if details == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Movie not found"})
	}

	return c.JSON(fiber.Map{
		"movie":           details,
		"trailer":         trailer,
		"recommendations": recommended,
		"inWatchlist":     inWatchlist,
	})
}

// Trailer returns the selected video for a movie, null when none exists.
func (h *MovieHandler) Trailer(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid movie id"})
	}
	return c.JSON(fiber.Map{"trailer": h.tmdb.MovieTrailer(c.UserContext(), id)})
}

// Recommendations returns movies related to the given one.
func (h *MovieHandler) Recommendations(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid movie id"})
	}
	return c.JSON(fiber.Map{"results": h.tmdb.RecommendedMovies(c.UserContext(), id)})
}
