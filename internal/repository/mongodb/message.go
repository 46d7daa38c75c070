package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/seismolink/siteapi/internal/domain"
)

type messageDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Kind      string             `bson:"kind"`
	Name      string             `bson:"name,omitempty"`
	Email     string             `bson:"email"`
	Phone     string             `bson:"phone,omitempty"`
	Company   string             `bson:"company,omitempty"`
	Subject   string             `bson:"subject,omitempty"`
	Body      string             `bson:"body,omitempty"`
	Read      bool               `bson:"read"`
	IP        string             `bson:"ip,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
	ReadAt    *time.Time         `bson:"readAt,omitempty"`
}

func (d *messageDoc) toDomain() *domain.Message {
	msg := &domain.Message{
		ID:        d.ID.Hex(),
		Kind:      domain.MessageKind(d.Kind),
		Name:      d.Name,
		Email:     d.Email,
		Phone:     d.Phone,
		Company:   d.Company,
		Subject:   d.Subject,
		Body:      d.Body,
		Read:      d.Read,
		IP:        d.IP,
		CreatedAt: d.CreatedAt.UTC(),
	}
	if d.ReadAt != nil {
		t := d.ReadAt.UTC()
		msg.ReadAt = &t
	}
	return msg
}

// MessageRepository implements domain.MessageRepository for MongoDB
type MessageRepository struct {
	coll *mongo.Collection
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{coll: db.Collection(CollectionMessages)}
}

// Create stores a new message
func (r *MessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	doc := messageDoc{
		ID:        primitive.NewObjectID(),
		Kind:      string(msg.Kind),
		Name:      msg.Name,
		Email:     msg.Email,
		Phone:     msg.Phone,
		Company:   msg.Company,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Read:      msg.Read,
		IP:        msg.IP,
		CreatedAt: msg.CreatedAt,
		ReadAt:    msg.ReadAt,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	msg.ID = doc.ID.Hex()
	return nil
}

// GetByID retrieves a message by ID
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}

	var doc messageDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return doc.toDomain(), nil
}

// List retrieves messages newest first
func (r *MessageRepository) List(ctx context.Context, params domain.MessageListParams) ([]*domain.Message, int, error) {
	filter := bson.M{}
	if params.Kind != nil {
		filter["kind"] = string(*params.Kind)
	}
	if params.Read != nil {
		filter["read"] = *params.Read
	}
	if params.Query != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(params.Query), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": rx},
			bson.M{"email": rx},
			bson.M{"subject": rx},
			bson.M{"body": rx},
		}
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	cur, err := r.coll.Find(ctx, filter, findOptions(params.Limit, params.Offset, "createdAt", -1))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}

	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode messages: %w", err)
	}

	msgs := make([]*domain.Message, 0, len(docs))
	for i := range docs {
		msgs = append(msgs, docs[i].toDomain())
	}

	return msgs, int(total), nil
}

// SetRead marks a message read or unread
func (r *MessageRepository) SetRead(ctx context.Context, id string, read bool, at time.Time) (bool, error) {
	oid, ok := objectID(id)
	if !ok {
		return false, nil
	}

	update := bson.M{"$set": bson.M{"read": true, "readAt": at}}
	if !read {
		update = bson.M{"$set": bson.M{"read": false}, "$unset": bson.M{"readAt": ""}}
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return false, fmt.Errorf("failed to update message: %w", err)
	}

	return res.MatchedCount > 0, nil
}

// Delete removes a message
func (r *MessageRepository) Delete(ctx context.Context, id string) (bool, error) {
	oid, ok := objectID(id)
	if !ok {
		return false, nil
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("failed to delete message: %w", err)
	}

	return res.DeletedCount > 0, nil
}

// GetStats summarises the inbox
func (r *MessageRepository) GetStats(ctx context.Context) (*domain.MessageStats, error) {
	cur, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "kind", Value: "$kind"}, {Key: "read", Value: "$read"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate message stats: %w", err)
	}

	var rows []struct {
		Key struct {
			Kind string `bson:"kind"`
			Read bool   `bson:"read"`
		} `bson:"_id"`
		Count int `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode message stats: %w", err)
	}

	stats := &domain.MessageStats{}
	for _, row := range rows {
		stats.Total += row.Count
		if !row.Key.Read {
			stats.Unread += row.Count
		}
		switch domain.MessageKind(row.Key.Kind) {
		case domain.MessageKindContact:
			stats.Contact += row.Count
			if !row.Key.Read {
				stats.ContactUnread += row.Count
			}
		case domain.MessageKindNewsletter:
			stats.Newsletter += row.Count
			if !row.Key.Read {
				stats.NewsletterUnread += row.Count
			}
		}
	}

	return stats, nil
}
