package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/forecast-collector/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Options selects the MongoDB deployment and the weather collection.
type Options struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
	SkipIndexes    bool // for administrative connections that never write records
}

// Store persists weather records in a MongoDB collection.
// It implements pipeline.RecordStore.
type Store struct {
	client *mongodriver.Client
	db     *mongodriver.Database
	coll   *mongodriver.Collection
	logger *slog.Logger
}

// Connect opens a client, verifies the server is reachable and, unless
// opts.SkipIndexes is set, ensures the collection's indexes exist. Index
// creation is idempotent.
func Connect(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(opts.Database)
	s := &Store{
		client: client,
		db:     db,
		coll:   db.Collection(opts.Collection),
		logger: logger,
	}
	if !opts.SkipIndexes {
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
	}
	logger.Info("connected to mongo", "database", opts.Database, "collection", opts.Collection)
	return s, nil
}

// EnsureIndexes creates the geospatial, timestamp, variable and pressure
// level indexes used by downstream queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	models := []mongodriver.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "variables.shortName", Value: 1}}},
		{Keys: bson.D{{Key: "pressureLevel", Value: 1}}},
	}
	names, err := s.coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return fmt.Errorf("mongo ensure indexes on %s: %w", s.coll.Name(), err)
	}
	s.logger.Debug("mongo indexes ensured", "collection", s.coll.Name(), "indexes", names)
	return nil
}

// WithCollection returns a Store sharing the same client that targets
// another collection of the same database.
func (s *Store) WithCollection(name string) *Store {
	return &Store{
		client: s.client,
		db:     s.db,
		coll:   s.db.Collection(name),
		logger: s.logger,
	}
}

// Insert writes a single record.
func (s *Store) Insert(ctx context.Context, rec domain.WeatherRecord) error {
	if _, err := s.coll.InsertOne(ctx, toDocument(rec)); err != nil {
		return fmt.Errorf("mongo insert: %w", err)
	}
	return nil
}

// InsertMany writes records in one unordered bulk call.
func (s *Store) InsertMany(ctx context.Context, recs []domain.WeatherRecord) error {
	if len(recs) == 0 {
		return nil
	}
	docs := make([]any, len(recs))
	for i := range recs {
		docs[i] = toDocument(recs[i])
	}
	if _, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return fmt.Errorf("mongo insert many: %w", err)
	}
	return nil
}

// DiscardBatch deletes every record tagged with batch.
func (s *Store) DiscardBatch(ctx context.Context, batch string) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"batch": batch})
	if err != nil {
		return 0, fmt.Errorf("mongo discard batch %s: %w", batch, err)
	}
	return res.DeletedCount, nil
}

// DeleteOlderThan deletes every record whose timestamp is strictly before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("mongo delete older than %s: %w", domain.FormatDate(cutoff), err)
	}
	return res.DeletedCount, nil
}

// Count returns the number of records in the collection.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("mongo count: %w", err)
	}
	return n, nil
}

// Records returns the records matching filter, e.g. bson.M{"batch": b}.
func (s *Store) Records(ctx context.Context, filter any) ([]domain.WeatherRecord, error) {
	cur, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	recs := make([]domain.WeatherRecord, len(docs))
	for i := range docs {
		recs[i] = fromDocument(docs[i])
	}
	return recs, nil
}

// DropCollection drops the named collection of the store's database.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	if err := s.db.Collection(name).Drop(ctx); err != nil {
		return fmt.Errorf("mongo drop collection %s: %w", name, err)
	}
	s.logger.Info("collection dropped", "database", s.db.Name(), "collection", name)
	return nil
}

// DropDatabase drops the named database.
func (s *Store) DropDatabase(ctx context.Context, name string) error {
	if err := s.client.Database(name).Drop(ctx); err != nil {
		return fmt.Errorf("mongo drop database %s: %w", name, err)
	}
	s.logger.Info("database dropped", "database", name)
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
