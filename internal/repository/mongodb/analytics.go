package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/seismolink/siteapi/internal/domain"
)

type analyticsDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Date         string             `bson:"date"`
	PageViews    int                `bson:"pageViews"`
	Visitors     []string           `bson:"visitors,omitempty"`
	VisitorCount *int               `bson:"visitorCount,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func (d *analyticsDoc) toDomain() *domain.DailyAnalytics {
	day := &domain.DailyAnalytics{
		Date:      d.Date,
		PageViews: d.PageViews,
		Visitors:  d.Visitors,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	if d.VisitorCount != nil {
		day.VisitorCount = *d.VisitorCount
	} else {
		day.VisitorCount = len(d.Visitors)
	}
	if day.Visitors == nil && d.VisitorCount == nil {
		day.Visitors = []string{}
	}
	return day
}

// AnalyticsRepository implements domain.AnalyticsRepository for MongoDB
type AnalyticsRepository struct {
	coll *mongo.Collection
}

// NewAnalyticsRepository creates a new AnalyticsRepository
func NewAnalyticsRepository(db *mongo.Database) *AnalyticsRepository {
	return &AnalyticsRepository{coll: db.Collection(CollectionAnalytics)}
}

// RecordVisit upserts the day's document in a single atomic update
func (r *AnalyticsRepository) RecordVisit(ctx context.Context, date, visitorID string, at time.Time) (*domain.DailyAnalytics, error) {
	update := bson.M{
		"$inc":         bson.M{"pageViews": 1},
		"$set":         bson.M{"updatedAt": at},
		"$setOnInsert": bson.M{"createdAt": at},
	}
	if visitorID != "" {
		update["$addToSet"] = bson.M{"visitors": visitorID}
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc analyticsDoc
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"date": date}, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Two first-visits raced on the upsert; the loser's retry matches the winner's document
		err = r.coll.FindOneAndUpdate(ctx, bson.M{"date": date}, update, opts).Decode(&doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record visit: %w", err)
	}

	return doc.toDomain(), nil
}

// GetByDate retrieves one day
func (r *AnalyticsRepository) GetByDate(ctx context.Context, date string) (*domain.DailyAnalytics, error) {
	var doc analyticsDoc
	err := r.coll.FindOne(ctx, bson.M{"date": date}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics: %w", err)
	}

	return doc.toDomain(), nil
}

// ListRange retrieves the days between from and to inclusive. Visitor lists
// are reduced to their size on the server.
func (r *AnalyticsRepository) ListRange(ctx context.Context, from, to string) ([]*domain.DailyAnalytics, error) {
	cur, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "date", Value: bson.D{{Key: "$gte", Value: from}, {Key: "$lte", Value: to}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "date", Value: 1}}}},
		{{Key: "$project", Value: bson.D{
			{Key: "date", Value: 1},
			{Key: "pageViews", Value: 1},
			{Key: "createdAt", Value: 1},
			{Key: "updatedAt", Value: 1},
			{Key: "visitorCount", Value: bson.D{{Key: "$size", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$visitors", bson.A{}}}}}}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list analytics: %w", err)
	}

	var docs []analyticsDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode analytics: %w", err)
	}

	days := make([]*domain.DailyAnalytics, 0, len(docs))
	for i := range docs {
		day := docs[i].toDomain()
		day.Visitors = nil
		days = append(days, day)
	}

	return days, nil
}
