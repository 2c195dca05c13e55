package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnavk09/cinetrack/internal/db"
	"github.com/arnavk09/cinetrack/internal/handlers"
	"github.com/arnavk09/cinetrack/internal/middleware"
	"github.com/arnavk09/cinetrack/internal/models"
	"github.com/arnavk09/cinetrack/internal/services"
)

const (
	testSecret = "test-secret"
	testEmail  = "a@example.com"
)

type memStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]models.User)}
}

func (m *memStore) GetByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[email]
	if !ok {
		return models.User{}, db.ErrNotFound
	}
	return user, nil
}

func (m *memStore) Insert(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return db.ErrAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *memStore) Replace(_ context.Context, email string, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[email]; !ok {
		return db.ErrNotFound
	}
	m.users[email] = user
	return nil
}

// newTestApp wires the watchlist and search routes the same way main does.
func newTestApp(t *testing.T) (*fiber.App, *services.UserService) {
	t.Helper()

	users := services.NewUserService(newMemStore())
	tmdb := services.NewTMDBService("")
	watchlistHandler := handlers.NewWatchlistHandler(users)
	movieHandler := handlers.NewMovieHandler(tmdb, users)

	app := fiber.New()
	session := middleware.Session(testSecret)

	api := app.Group("/api")
	api.Get("/search", movieHandler.Search)
	api.Get("/watchlist", session, watchlistHandler.Get)
	api.Post("/watchlist", session, watchlistHandler.Add)
	api.Delete("/watchlist", session, watchlistHandler.Remove)
	api.Get("/watchlist/contains", session, watchlistHandler.Contains)

	return app, users
}

func sessionToken(t *testing.T, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func request(t *testing.T, app *fiber.App, method, target, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestWatchlistRequiresSession(t *testing.T) {
	app, _ := newTestApp(t)

	for _, target := range []struct{ method, path string }{
		{http.MethodGet, "/api/watchlist"},
		{http.MethodPost, "/api/watchlist"},
		{http.MethodDelete, "/api/watchlist?movieId=1"},
		{http.MethodGet, "/api/watchlist/contains?movieId=1"},
	} {
		resp := request(t, app, target.method, target.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", target.method, target.path)
		resp.Body.Close()
	}
}

func TestWatchlistRejectsGarbageToken(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/watchlist", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestSearchIsOpenButValidatesQuery(t *testing.T) {
	app, _ := newTestApp(t)

	// No session: still reaches the handler and fails on the missing
	// query, not on authentication.
	resp := request(t, app, http.MethodGet, "/api/search", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAddValidatesRequiredFields(t *testing.T) {
	app, users := newTestApp(t)
	_, err := users.CreateUser(context.Background(), models.Profile{Email: testEmail})
	require.NoError(t, err)
	token := sessionToken(t, testEmail)

	resp := request(t, app, http.MethodPost, "/api/watchlist", token, fiber.Map{"title": "No ID"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = request(t, app, http.MethodPost, "/api/watchlist", token, fiber.Map{"movieId": 42})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = request(t, app, http.MethodPost, "/api/watchlist", token, fiber.Map{"movieId": -5, "title": "Negative"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRemoveRequiresMovieID(t *testing.T) {
	app, users := newTestApp(t)
	_, err := users.CreateUser(context.Background(), models.Profile{Email: testEmail})
	require.NoError(t, err)

	resp := request(t, app, http.MethodDelete, "/api/watchlist", sessionToken(t, testEmail), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestWatchlistEndToEnd(t *testing.T) {
	app, users := newTestApp(t)
	_, err := users.CreateUser(context.Background(), models.Profile{Email: testEmail, Name: "Ada"})
	require.NoError(t, err)
	token := sessionToken(t, testEmail)

	// Fresh user starts with an empty watchlist.
	var listResp struct {
		Watchlist []models.WatchlistEntry `json:"watchlist"`
	}
	resp := request(t, app, http.MethodGet, "/api/watchlist", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &listResp)
	assert.Empty(t, listResp.Watchlist)

	// Add movie 42.
	var addResp struct {
		Success   bool                    `json:"success"`
		Message   string                  `json:"message"`
		Watchlist []models.WatchlistEntry `json:"watchlist"`
	}
	resp = request(t, app, http.MethodPost, "/api/watchlist", token, fiber.Map{"movieId": 42, "title": "X"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &addResp)
	assert.True(t, addResp.Success)
	require.Len(t, addResp.Watchlist, 1)
	assert.Equal(t, 42, addResp.Watchlist[0].MovieID)

	// Adding it again is a reported no-op.
	resp = request(t, app, http.MethodPost, "/api/watchlist", token, fiber.Map{"movieId": 42, "title": "X"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &addResp)
	assert.False(t, addResp.Success)
	assert.Equal(t, "Movie already in watchlist", addResp.Message)

	// Contains sees it.
	var containsResp struct {
		InWatchlist bool `json:"inWatchlist"`
	}
	resp = request(t, app, http.MethodGet, "/api/watchlist/contains?movieId=42", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &containsResp)
	assert.True(t, containsResp.InWatchlist)

	// List returns exactly the one entry.
	resp = request(t, app, http.MethodGet, "/api/watchlist", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &listResp)
	require.Len(t, listResp.Watchlist, 1)
	assert.Equal(t, 42, listResp.Watchlist[0].MovieID)

	// Delete it and the list is empty again.
	var removeResp struct {
		Success   bool                    `json:"success"`
		Watchlist []models.WatchlistEntry `json:"watchlist"`
	}
	resp = request(t, app, http.MethodDelete, "/api/watchlist?movieId=42", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &removeResp)
	assert.True(t, removeResp.Success)
	assert.Empty(t, removeResp.Watchlist)

	resp = request(t, app, http.MethodGet, "/api/watchlist", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &listResp)
	assert.Empty(t, listResp.Watchlist)
}

func TestWatchlistOrderMostRecentFirst(t *testing.T) {
	app, users := newTestApp(t)
	_, err := users.CreateUser(context.Background(), models.Profile{Email: testEmail})
	require.NoError(t, err)
	token := sessionToken(t, testEmail)

	for i, title := range []string{"First", "Second", "Third"} {
		resp := request(t, app, http.MethodPost, "/api/watchlist", token, fiber.Map{"movieId": i + 1, "title": title})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
		time.Sleep(5 * time.Millisecond)
	}

	var listResp struct {
		Watchlist []models.WatchlistEntry `json:"watchlist"`
	}
	resp := request(t, app, http.MethodGet, "/api/watchlist", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &listResp)
	require.Len(t, listResp.Watchlist, 3)
	assert.Equal(t, "Third", listResp.Watchlist[0].Title)
	assert.Equal(t, "Second", listResp.Watchlist[1].Title)
	assert.Equal(t, "First", listResp.Watchlist[2].Title)
}
