package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/arnavk09/cinetrack/internal/models"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"

// TMDBService is a stateless wrapper around the TMDB API. Every operation
// fails open: transport errors and non-success statuses are logged and
// turned into an empty result or nil, never surfaced to callers. The page
// must render with an empty state rather than break on an upstream outage.
//
// Responses other than search are cached for an hour; search is always
// fetched fresh.
type TMDBService struct {
	apiKey string
	client *http.Client
	cache  *expirable.LRU[string, []byte]

	// BaseURL points at the TMDB API and may be overridden before first
	// use, e.g. with a local stand-in server.
	BaseURL string
}

func NewTMDBService(apiKey string) *TMDBService {
	return &TMDBService{
		apiKey:  apiKey,
		BaseURL: tmdbBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   expirable.NewLRU[string, []byte](256, nil, time.Hour),
	}
}

// PopularMovies returns the requested page of popular movies, or an empty
// slice when the upstream call fails.
func (s *TMDBService) PopularMovies(ctx context.Context, page int) []models.Movie {
	return s.PopularMoviesPaginated(ctx, page).Results
}

// PopularMoviesPaginated returns the popular page together with TMDB's
// pagination envelope. On failure the envelope is empty but well-formed.
func (s *TMDBService) PopularMoviesPaginated(ctx context.Context, page int) models.MoviePage {
	if page < 1 {
		page = 1
	}

	empty := models.MoviePage{Page: 1, Results: []models.Movie{}}
	body, err := s.get(ctx, "/movie/popular", url.Values{"page": {strconv.Itoa(page)}}, true)
	if err != nil {
		log.Printf("tmdb: popular movies: %v", err)
		return empty
	}

	var out models.MoviePage
	if err := json.Unmarshal(body, &out); err != nil {
		log.Printf("tmdb: popular movies decode: %v", err)
		return empty
	}
	if out.Results == nil {
		out.Results = []models.Movie{}
	}
	return out
}

// SearchMovies queries TMDB by free text. Queries shorter than two
// characters return empty immediately, without a network call, and search
// responses are never cached.
func (s *TMDBService) SearchMovies(ctx context.Context, query string) []models.Movie {
	if len(query) < 2 {
		return []models.Movie{}
	}

	body, err := s.get(ctx, "/search/movie", url.Values{"query": {query}, "page": {"1"}}, false)
	if err != nil {
		log.Printf("tmdb: search %q: %v", query, err)
		return []models.Movie{}
	}

	var out models.MoviePage
	if err := json.Unmarshal(body, &out); err != nil {
		log.Printf("tmdb: search decode: %v", err)
		return []models.Movie{}
	}
	if out.Results == nil {
		out.Results = []models.Movie{}
	}
	return out.Results
}

// MovieDetails returns the full record for one movie, or nil when the
// movie does not exist or the upstream call fails.
func (s *TMDBService) MovieDetails(ctx context.Context, id int) *models.MovieDetails {
	body, err := s.get(ctx, fmt.Sprintf("/movie/%d", id), nil, true)
	if err != nil {
		log.Printf("tmdb: movie %d details: %v", id, err)
		return nil
	}

	var out models.MovieDetails
	if err := json.Unmarshal(body, &out); err != nil {
		log.Printf("tmdb: movie %d details decode: %v", id, err)
		return nil
	}
	return &out
}

// MovieTrailer picks the best available video for a movie: an official
// YouTube trailer, else any YouTube trailer, else the first video, else
// nil.
func (s *TMDBService) MovieTrailer(ctx context.Context, id int) *models.Video {
	body, err := s.get(ctx, fmt.Sprintf("/movie/%d/videos", id), nil, true)
	if err != nil {
		log.Printf("tmdb: movie %d videos: %v", id, err)
		return nil
	}

	var out models.VideoList
	if err := json.Unmarshal(body, &out); err != nil {
		log.Printf("tmdb: movie %d videos decode: %v", id, err)
		return nil
	}
	return pickTrailer(out.Results)
}

// RecommendedMovies returns recommendations for a movie, empty on failure.
func (s *TMDBService) RecommendedMovies(ctx context.Context, id int) []models.Movie {
	body, err := s.get(ctx, fmt.Sprintf("/movie/%d/recommendations", id), nil, true)
	if err != nil {
		log.Printf("tmdb: movie %d recommendations: %v", id, err)
		return []models.Movie{}
	}

	var out models.MoviePage
	if err := json.Unmarshal(body, &out); err != nil {
		log.Printf("tmdb: movie %d recommendations decode: %v", id, err)
		return []models.Movie{}
	}
	if out.Results == nil {
		out.Results = []models.Movie{}
	}
	return out.Results
}

func pickTrailer(videos []models.Video) *models.Video {
	for i := range videos {
		v := videos[i]
		if v.Type == "Trailer" && v.Site == "YouTube" && v.Official {
			return &v
		}
	}
	for i := range videos {
		v := videos[i]
		if v.Type == "Trailer" && v.Site == "YouTube" {
			return &v
		}
	}
	if len(videos) > 0 {
		return &videos[0]
	}
	return nil
}

// get performs one TMDB request. The cache key excludes the api key, and
// a request is retried once on a transport error or 5xx before giving up.
// Client errors from TMDB are not worth retrying.
func (s *TMDBService) get(ctx context.Context, path string, params url.Values, cacheable bool) ([]byte, error) {
	cacheKey := path
	if len(params) > 0 {
		cacheKey = path + "?" + params.Encode()
	}
	if cacheable {
		if body, ok := s.cache.Get(cacheKey); ok {
			return body, nil
		}
	}

	u, err := url.Parse(s.BaseURL + path)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("api_key", s.apiKey)
	q.Set("language", "en-US")
	for key, values := range params {
		q.Set(key, values[0])
	}
	u.RawQuery = q.Encode()

	var body []byte
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := s.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 {
				return fmt.Errorf("tmdb returned %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("tmdb returned %d", resp.StatusCode))
			}

			body, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Attempts(2),
		retry.Delay(200*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	if cacheable {
		s.cache.Add(cacheKey, body)
	}
	return body, nil
}
