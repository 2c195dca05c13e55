package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arnavk09/cinetrack/internal/models"
)

var (
	// ErrNotConfigured is returned when no connection string was provided.
	ErrNotConfigured = errors.New("mongo: MONGO_URI is not set")
	// ErrNotFound is returned when no document exists for the given email.
	ErrNotFound = errors.New("mongo: document not found")
	// ErrAlreadyExists is returned on an insert for an email that already has a document.
	ErrAlreadyExists = errors.New("mongo: document already exists")
)

const opTimeout = 10 * time.Second

// Store is the document store adapter: one MongoDB collection holding one
// document per user, keyed by email. It is constructed up front by the
// composition root but connects lazily, on the first operation that needs
// the database. The connection, database and collection handles are
// process-wide state initialized at most once and never torn down.
type Store struct {
	uri        string
	database   string
	collection string

	once    sync.Once
	initErr error
	client  *mongo.Client
	coll    *mongo.Collection
}

// NewStore returns an unconnected Store. A missing URI is not an error
// until an operation actually needs the connection.
func NewStore(uri, database, collection string) *Store {
	return &Store{uri: uri, database: database, collection: collection}
}

// ensureReady establishes the connection on first use. Idempotent: every
// later call returns the outcome of the first. Creates the unique email
// index if absent, which is what makes email the collection's key.
func (s *Store) ensureReady(ctx context.Context) error {
	s.once.Do(func() {
		if s.uri == "" {
			s.initErr = ErrNotConfigured
			return
		}

		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
		if err != nil {
			s.initErr = fmt.Errorf("mongo connect: %w", err)
			return
		}
		if err := client.Ping(ctx, nil); err != nil {
			s.initErr = fmt.Errorf("mongo ping: %w", err)
			return
		}

		coll := client.Database(s.database).Collection(s.collection)
		_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			s.initErr = fmt.Errorf("mongo ensure email index: %w", err)
			return
		}

		s.client = client
		s.coll = coll
		log.Printf("connected to mongodb, collection %s.%s", s.database, s.collection)
	})
	return s.initErr
}

// GetByEmail returns the user document for email, or ErrNotFound.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if err := s.ensureReady(ctx); err != nil {
		return models.User{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var user models.User
	err := s.coll.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("mongo find %q: %w", email, err)
	}
	return user, nil
}

// Insert creates the document for a new user. Fails with ErrAlreadyExists
// when a document for the same email is already present.
func (s *Store) Insert(ctx context.Context, user models.User) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.coll.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("mongo insert %q: %w", user.Email, err)
	}
	return nil
}

// Replace performs a full-document replace, not a partial patch and not
// an upsert: replacing a document that does not exist is ErrNotFound.
func (s *Store) Replace(ctx context.Context, email string, user models.User) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.coll.ReplaceOne(ctx, bson.M{"email": email}, user)
	if err != nil {
		return fmt.Errorf("mongo replace %q: %w", email, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
