// Package mongodb stores applications, inbox messages and daily analytics in MongoDB.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Collection names
const (
	CollectionApplications = "jobapplications"
	CollectionMessages     = "messages"
	CollectionAnalytics    = "analytics"
)

// DefaultDatabase is used when the URI carries no database name
const DefaultDatabase = "siteapi"

// OpenConnection connects to MongoDB and verifies the primary is reachable
func OpenConnection(ctx context.Context, uri string) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetAppName("siteapi").
		SetServerSelectionTimeout(10 * time.Second).
		SetMaxPoolSize(25)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return client, nil
}

// EnsureIndexes creates the indexes the repositories rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	indexes := map[string][]mongo.IndexModel{
		CollectionAnalytics: {
			{Keys: bson.D{{Key: "date", Value: 1}}, Options: options.Index().SetUnique(true).SetName("date_unique")},
		},
		CollectionApplications: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "appliedAt", Value: -1}}, Options: options.Index().SetName("status_appliedAt")},
			{Keys: bson.D{{Key: "jobId", Value: 1}}, Options: options.Index().SetName("jobId")},
		},
		CollectionMessages: {
			{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("createdAt")},
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "read", Value: 1}}, Options: options.Index().SetName("kind_read")},
		},
	}

	for coll, models := range indexes {
		names, err := db.Collection(coll).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
		logger.Info("indexes ensured", zap.String("collection", coll), zap.Strings("indexes", names))
	}

	return nil
}

// Repositories holds all repository instances
type Repositories struct {
	client       *mongo.Client
	Applications *ApplicationRepository
	Messages     *MessageRepository
	Analytics    *AnalyticsRepository
}

// NewRepositories creates all repositories on db
func NewRepositories(client *mongo.Client, db *mongo.Database) *Repositories {
	return &Repositories{
		client:       client,
		Applications: NewApplicationRepository(db),
		Messages:     NewMessageRepository(db),
		Analytics:    NewAnalyticsRepository(db),
	}
}

// Ping checks the primary is reachable
func (r *Repositories) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client
func (r *Repositories) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// objectID parses a hex id; malformed ids are reported as not valid rather
// than as errors so callers can answer 404.
func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}

func findOptions(limit, offset int, sortField string, order int) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: sortField, Value: order}, {Key: "_id", Value: order}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return opts
}
