package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/arnavk09/cinetrack/internal/config"
	"github.com/arnavk09/cinetrack/internal/middleware"
	"github.com/arnavk09/cinetrack/internal/models"
	"github.com/arnavk09/cinetrack/internal/services"
)

const (
	stateCookie   = "oauth_state"
	sessionMaxAge = 7 * 24 * time.Hour
	githubAPI     = "https://api.github.com"
)

// AuthHandler implements the GitHub OAuth code flow. Identity is fully
// delegated to GitHub: no credentials are ever stored, only the profile
// claims needed to provision the user document on first sign-in.
type AuthHandler struct {
	oauth     *oauth2.Config
	users     *services.UserService
	jwtSecret string
	apiBase   string
}

func NewAuthHandler(cfg config.Config, users *services.UserService) *AuthHandler {
	return &AuthHandler{
		oauth: &oauth2.Config{
			ClientID:     cfg.GithubClientID,
			ClientSecret: cfg.GithubClientSecret,
			Endpoint:     github.Endpoint,
			RedirectURL:  cfg.OAuthRedirectURL,
			Scopes:       []string{"read:user", "user:email"},
		},
		users:     users,
		jwtSecret: cfg.JWTSecret,
		apiBase:   githubAPI,
	}
}

// Login sends the browser to GitHub with a fresh state nonce.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	state := uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return c.Redirect(h.oauth.AuthCodeURL(state), fiber.StatusTemporaryRedirect)
}

// Callback completes the code exchange. Sign-in is rejected outright when
// the state does not match, when GitHub yields no usable email, or when
// the user document cannot be provisioned: this path fails closed.
func (h *AuthHandler) Callback(c *fiber.Ctx) error {
	state := c.Query("state")
	if state == "" || state != c.Cookies(stateCookie) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid OAuth state"})
	}
	c.Cookie(&fiber.Cookie{Name: stateCookie, Expires: time.Now().Add(-time.Hour), HTTPOnly: true})

	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing authorization code"})
	}

	ctx := c.UserContext()
	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		log.Printf("oauth exchange: %v", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Sign-in failed"})
	}

	profile, err := h.fetchProfile(ctx, token)
	if err != nil {
		log.Printf("github profile: %v", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Sign-in failed"})
	}
	if profile.Email == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "An email address is required to sign in"})
	}

	if _, err := h.users.EnsureUser(ctx, profile); err != nil {
		log.Printf("provisioning user %s: %v", profile.Email, err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Sign-in failed"})
	}

	session, err := h.signSession(profile)
	if err != nil {
		log.Printf("signing session for %s: %v", profile.Email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    session,
		Expires:  time.Now().Add(sessionMaxAge),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return c.Redirect("/", fiber.StatusFound)
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return c.JSON(fiber.Map{"success": true})
}

// Me returns the signed-in profile from the session claims.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	name, _ := c.Locals("name").(string)
	image, _ := c.Locals("image").(string)
	return c.JSON(fiber.Map{
		"email": c.Locals("email"),
		"name":  name,
		"image": image,
	})
}

func (h *AuthHandler) signSession(profile models.Profile) (string, error) {
	claims := jwt.MapClaims{
		"email": profile.Email,
		"name":  profile.Name,
		"image": profile.Image,
		"exp":   time.Now().Add(sessionMaxAge).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}

// fetchProfile reads the GitHub user record, falling back to the emails
// endpoint for accounts that keep their email private.
func (h *AuthHandler) fetchProfile(ctx context.Context, token *oauth2.Token) (models.Profile, error) {
	client := h.oauth.Client(ctx, token)

	var user struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, h.apiBase+"/user", &user); err != nil {
		return models.Profile{}, err
	}

	email := user.Email
	if email == "" {
		var addresses []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(ctx, client, h.apiBase+"/user/emails", &addresses); err != nil {
			return models.Profile{}, err
		}
		for _, a := range addresses {
			if a.Primary && a.Verified {
				email = a.Email
				break
			}
		}
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return models.Profile{
		Email:    email,
		Name:     name,
		Image:    user.AvatarURL,
		GithubID: strconv.FormatInt(user.ID, 10),
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github returned %d for %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New("decoding github response: " + err.Error())
	}
	return nil
}
