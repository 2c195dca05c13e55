package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/arnavk09/cinetrack/internal/db"
	"github.com/arnavk09/cinetrack/internal/models"
)

var (
	// ErrUserNotFound is returned when an operation requires an existing user document.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned by CreateUser for an email that already has a document.
	ErrUserExists = errors.New("user already exists")
)

// UserStore is the slice of the document store the repository needs.
// *db.Store satisfies it; tests substitute an in-memory fake.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (models.User, error)
	Insert(ctx context.Context, user models.User) error
	Replace(ctx context.Context, email string, user models.User) error
}

// AddResult reports the outcome of a watchlist add. Added is false when
// the movie was already present and nothing was written.
type AddResult struct {
	Added     bool
	Watchlist []models.WatchlistEntry
}

// UserService wraps the store with the watchlist read-modify-write logic.
// Every mutation is a full-document replace, so concurrent writers for the
// same email would be last-write-wins; mutations are serialized per email
// with an in-process lock to close that gap. This only holds for a single
// process, which matches the single-instance deployment.
type UserService struct {
	store UserStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewUserService(store UserStore) *UserService {
	return &UserService{store: store, locks: make(map[string]*sync.Mutex)}
}

// lockEmail serializes watchlist mutations for one email. Locks are kept
// for the process lifetime; the user population is small enough that the
// map never needs eviction.
func (s *UserService) lockEmail(email string) func() {
	s.mu.Lock()
	l, ok := s.locks[email]
	if !ok {
		l = &sync.Mutex{}
		s.locks[email] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// CreateUser builds a user with an empty watchlist from the provider
// profile. The email is the document id.
func (s *UserService) CreateUser(ctx context.Context, profile models.Profile) (models.User, error) {
	user := models.User{
		ID:        profile.Email,
		Email:     profile.Email,
		Name:      profile.Name,
		Image:     profile.Image,
		GithubID:  profile.GithubID,
		CreatedAt: time.Now().UTC(),
		Watchlist: []models.WatchlistEntry{},
	}

	err := s.store.Insert(ctx, user)
	if errors.Is(err, db.ErrAlreadyExists) {
		return models.User{}, ErrUserExists
	}
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// GetUserByEmail returns nil without an error when the user simply does
// not exist; anything else is a real failure.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// EnsureUser is the get-or-create used by the sign-in callback. A create
// that loses a race to a concurrent sign-in falls back to the winner's
// document.
func (s *UserService) EnsureUser(ctx context.Context, profile models.Profile) (models.User, error) {
	existing, err := s.GetUserByEmail(ctx, profile.Email)
	if err != nil {
		return models.User{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	user, err := s.CreateUser(ctx, profile)
	if errors.Is(err, ErrUserExists) {
		winner, err := s.store.GetByEmail(ctx, profile.Email)
		if err != nil {
			return models.User{}, err
		}
		return winner, nil
	}
	return user, err
}

// AddToWatchlist appends entry to the user's watchlist unless the movie id
// is already present, in which case nothing is written and the add is
// reported as a no-op. The added-at stamp is always taken here, not from
// the caller.
func (s *UserService) AddToWatchlist(ctx context.Context, email string, entry models.WatchlistEntry) (AddResult, error) {
	unlock := s.lockEmail(email)
	defer unlock()

	user, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return AddResult{}, ErrUserNotFound
	}
	if err != nil {
		return AddResult{}, err
	}

	for _, existing := range user.Watchlist {
		if existing.MovieID == entry.MovieID {
			return AddResult{Added: false, Watchlist: sortedWatchlist(user.Watchlist)}, nil
		}
	}

	entry.AddedAt = time.Now().UTC()
	user.Watchlist = append(user.Watchlist, entry)

	if err := s.store.Replace(ctx, email, user); err != nil {
		return AddResult{}, err
	}
	return AddResult{Added: true, Watchlist: sortedWatchlist(user.Watchlist)}, nil
}

// RemoveFromWatchlist filters the movie id out of the watchlist. Removing
// an id that is not present is a success no-op and skips the write.
func (s *UserService) RemoveFromWatchlist(ctx context.Context, email string, movieID int) ([]models.WatchlistEntry, error) {
	unlock := s.lockEmail(email)
	defer unlock()

	user, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	kept := user.Watchlist[:0:0]
	for _, entry := range user.Watchlist {
		if entry.MovieID != movieID {
			kept = append(kept, entry)
		}
	}
	if len(kept) == len(user.Watchlist) {
		return sortedWatchlist(user.Watchlist), nil
	}

	user.Watchlist = kept
	if err := s.store.Replace(ctx, email, user); err != nil {
		return nil, err
	}
	return sortedWatchlist(user.Watchlist), nil
}

// GetWatchlist returns the watchlist sorted by added-at descending. A
// missing user is an empty watchlist, not an error.
func (s *UserService) GetWatchlist(ctx context.Context, email string) ([]models.WatchlistEntry, error) {
	user, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return []models.WatchlistEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return sortedWatchlist(user.Watchlist), nil
}

// IsInWatchlist is a read-only convenience check that fails open: any
// internal failure is logged and reported as false rather than surfaced.
func (s *UserService) IsInWatchlist(ctx context.Context, email string, movieID int) bool {
	watchlist, err := s.GetWatchlist(ctx, email)
	if err != nil {
		log.Printf("watchlist check for %s: %v", email, err)
		return false
	}
	for _, entry := range watchlist {
		if entry.MovieID == movieID {
			return true
		}
	}
	return false
}

// sortedWatchlist copies and orders entries most recently added first.
// The stable sort keeps the original relative order for equal timestamps.
func sortedWatchlist(entries []models.WatchlistEntry) []models.WatchlistEntry {
	out := make([]models.WatchlistEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AddedAt.After(out[j].AddedAt)
	})
	return out
}
