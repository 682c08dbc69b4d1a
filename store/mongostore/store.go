// Package mongostore keeps accounts in a MongoDB collection.
//
// Handle and address uniqueness are unique indexes created on open. Update
// replaces the document only when its version field still matches.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Anonymus123-11/login-register/account"
)

// ColAccounts is the collection holding account documents.
const ColAccounts = "accounts"

// ErrUnavailable wraps driver failures that are not duplicate keys.
var ErrUnavailable = errors.New("mongo account store unavailable")

// Store implements account.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ account.Store = (*Store)(nil)

// Open connects to uri, verifies the connection and creates the indexes.
//
// uri looks like "mongodb://localhost:27017"; dbName selects the database.
func Open(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ensure indexes failed: %w", err)
	}
	return s, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) col() *mongo.Collection {
	return s.db.Collection(ColAccounts)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.col().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "handle", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "address", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "refresh_digest", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	return err
}

func (s *Store) Insert(ctx context.Context, acc *account.Account) error {
	if acc == nil || acc.ID == "" {
		return errors.New("account id required")
	}
	doc := toDocument(acc)
	doc.Version = 1
	if _, err := s.col().InsertOne(ctx, doc); err != nil {
		return wrapError(err)
	}
	acc.Version = 1
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*account.Account, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *Store) FindByHandle(ctx context.Context, handle string) (*account.Account, error) {
	return s.findOne(ctx, bson.D{{Key: "handle", Value: handle}})
}

func (s *Store) FindByAddress(ctx context.Context, address string) (*account.Account, error) {
	return s.findOne(ctx, bson.D{{Key: "address", Value: address}})
}

func (s *Store) FindByHandleOrAddress(ctx context.Context, handle, address string) (*account.Account, error) {
	return s.findOne(ctx, bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "handle", Value: handle}},
		bson.D{{Key: "address", Value: address}},
	}}})
}

func (s *Store) FindByRefreshToken(ctx context.Context, digest string) (*account.Account, error) {
	if digest == "" {
		return nil, account.ErrNotFound
	}
	return s.findOne(ctx, bson.D{{Key: "refresh_digest", Value: digest}})
}

func (s *Store) Update(ctx context.Context, acc *account.Account, expectedVersion int64) error {
	if acc == nil || acc.ID == "" {
		return errors.New("account id required")
	}
	doc := toDocument(acc)
	doc.Version = expectedVersion + 1

	filter := bson.D{{Key: "_id", Value: acc.ID}, {Key: "version", Value: expectedVersion}}
	res, err := s.col().ReplaceOne(ctx, filter, doc)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.FindByID(ctx, acc.ID); err != nil {
			return err
		}
		return account.ErrVersionConflict
	}
	acc.Version = doc.Version
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.col().DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return wrapError(err)
	}
	if res.DeletedCount == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]*account.Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.col().Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	out := []*account.Account{}
	for cursor.Next(ctx) {
		var doc document
		if err := cursor.Decode(&doc); err != nil {
			return nil, wrapError(err)
		}
		out = append(out, doc.account())
	}
	if err := cursor.Err(); err != nil {
		return nil, wrapError(err)
	}
	return out, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.D) (*account.Account, error) {
	var doc document
	if err := s.col().FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, wrapError(err)
	}
	return doc.account(), nil
}

// wrapError maps driver errors onto account errors.
func wrapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return account.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return account.ErrDuplicate
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
