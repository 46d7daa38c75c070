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

type applicationDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	JobID       string             `bson:"jobId"`
	JobTitle    string             `bson:"jobTitle"`
	Name        string             `bson:"name"`
	Email       string             `bson:"email"`
	Phone       string             `bson:"phone,omitempty"`
	LinkedIn    string             `bson:"linkedin,omitempty"`
	Portfolio   string             `bson:"portfolio,omitempty"`
	GitHub      string             `bson:"github,omitempty"`
	CoverLetter string             `bson:"coverLetter,omitempty"`
	Status      string             `bson:"status"`
	Notes       string             `bson:"notes"`
	AppliedAt   time.Time          `bson:"appliedAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d *applicationDoc) toDomain() *domain.JobApplication {
	return &domain.JobApplication{
		ID:          d.ID.Hex(),
		JobID:       d.JobID,
		JobTitle:    d.JobTitle,
		Name:        d.Name,
		Email:       d.Email,
		Phone:       d.Phone,
		LinkedIn:    d.LinkedIn,
		Portfolio:   d.Portfolio,
		GitHub:      d.GitHub,
		CoverLetter: d.CoverLetter,
		Status:      domain.ApplicationStatus(d.Status),
		Notes:       d.Notes,
		AppliedAt:   d.AppliedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

// ApplicationRepository implements domain.ApplicationRepository for MongoDB
type ApplicationRepository struct {
	coll *mongo.Collection
}

// NewApplicationRepository creates a new ApplicationRepository
func NewApplicationRepository(db *mongo.Database) *ApplicationRepository {
	return &ApplicationRepository{coll: db.Collection(CollectionApplications)}
}

// Create stores a new application
func (r *ApplicationRepository) Create(ctx context.Context, app *domain.JobApplication) error {
	doc := applicationDoc{
		ID:          primitive.NewObjectID(),
		JobID:       app.JobID,
		JobTitle:    app.JobTitle,
		Name:        app.Name,
		Email:       app.Email,
		Phone:       app.Phone,
		LinkedIn:    app.LinkedIn,
		Portfolio:   app.Portfolio,
		GitHub:      app.GitHub,
		CoverLetter: app.CoverLetter,
		Status:      string(app.Status),
		Notes:       app.Notes,
		AppliedAt:   app.AppliedAt,
		UpdatedAt:   app.UpdatedAt,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert application: %w", err)
	}

	app.ID = doc.ID.Hex()
	return nil
}

// GetByID retrieves an application by ID
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*domain.JobApplication, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}

	var doc applicationDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	return doc.toDomain(), nil
}

// List retrieves applications newest first
func (r *ApplicationRepository) List(ctx context.Context, params domain.ApplicationListParams) ([]*domain.JobApplication, int, error) {
	filter := applicationFilter(params)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count applications: %w", err)
	}

	cur, err := r.coll.Find(ctx, filter, findOptions(params.Limit, params.Offset, "appliedAt", -1))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}

	var docs []applicationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode applications: %w", err)
	}

	apps := make([]*domain.JobApplication, 0, len(docs))
	for i := range docs {
		apps = append(apps, docs[i].toDomain())
	}

	return apps, int(total), nil
}

// UpdateStatus changes the status and notes of an application
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, status domain.ApplicationStatus, notes string, at time.Time) (bool, error) {
	oid, ok := objectID(id)
	if !ok {
		return false, nil
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"status": string(status), "notes": notes, "updatedAt": at}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update application status: %w", err)
	}

	return res.MatchedCount > 0, nil
}

// Stream walks matching applications newest first
func (r *ApplicationRepository) Stream(ctx context.Context, params domain.ApplicationListParams, fn func(app *domain.JobApplication) error) error {
	cur, err := r.coll.Find(ctx, applicationFilter(params),
		options.Find().SetSort(bson.D{{Key: "appliedAt", Value: -1}}).SetBatchSize(200))
	if err != nil {
		return fmt.Errorf("failed to stream applications: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc applicationDoc
		if err := cur.Decode(&doc); err != nil {
			return fmt.Errorf("failed to decode application: %w", err)
		}
		if err := fn(doc.toDomain()); err != nil {
			return err
		}
	}

	return cur.Err()
}

// GetStats counts applications per status
func (r *ApplicationRepository) GetStats(ctx context.Context) (*domain.ApplicationStats, error) {
	cur, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$status"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate application stats: %w", err)
	}

	var rows []struct {
		Status string `bson:"_id"`
		Count  int    `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode application stats: %w", err)
	}

	stats := &domain.ApplicationStats{ByStatus: make(map[domain.ApplicationStatus]int)}
	for _, s := range domain.ApplicationStatuses {
		stats.ByStatus[s] = 0
	}
	for _, row := range rows {
		stats.ByStatus[domain.ApplicationStatus(row.Status)] = row.Count
		stats.Total += row.Count
	}

	return stats, nil
}

func applicationFilter(params domain.ApplicationListParams) bson.M {
	filter := bson.M{}
	if params.Status != nil {
		filter["status"] = string(*params.Status)
	}
	if params.JobID != "" {
		filter["jobId"] = params.JobID
	}
	return filter
}
