package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/seismolink/siteapi/internal/domain"
)

func TestApplicationRepositoryMock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	appliedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mt.Run("create assigns object id", func(mt *mtest.T) {
		repo := NewApplicationRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		app := &domain.JobApplication{
			JobID:     "firmware-engineer",
			Name:      "Candidate",
			Email:     "candidate@example.com",
			Status:    domain.StatusUnderReview,
			AppliedAt: appliedAt,
			UpdatedAt: appliedAt,
		}
		require.NoError(mt, repo.Create(ctx, app))

		_, err := primitive.ObjectIDFromHex(app.ID)
		assert.NoError(mt, err)
	})

	mt.Run("get by id decodes document", func(mt *mtest.T) {
		repo := NewApplicationRepository(mt.DB)
		oid := primitive.NewObjectID()
		ns := mt.DB.Name() + "." + CollectionApplications

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "jobId", Value: "firmware-engineer"},
			{Key: "name", Value: "Candidate"},
			{Key: "email", Value: "candidate@example.com"},
			{Key: "status", Value: "Shortlisted"},
			{Key: "appliedAt", Value: appliedAt},
			{Key: "updatedAt", Value: appliedAt},
		}))

		app, err := repo.GetByID(ctx, oid.Hex())
		require.NoError(mt, err)
		require.NotNil(mt, app)
		assert.Equal(mt, oid.Hex(), app.ID)
		assert.Equal(mt, domain.StatusShortlisted, app.Status)
		assert.True(mt, app.AppliedAt.Equal(appliedAt))
	})

	mt.Run("malformed id is not found", func(mt *mtest.T) {
		repo := NewApplicationRepository(mt.DB)

		app, err := repo.GetByID(ctx, "not-an-object-id")
		require.NoError(mt, err)
		assert.Nil(mt, app)

		ok, err := repo.UpdateStatus(ctx, "not-an-object-id", domain.StatusHired, "", appliedAt)
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("update status reports match", func(mt *mtest.T) {
		repo := NewApplicationRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		ok, err := repo.UpdateStatus(ctx, primitive.NewObjectID().Hex(), domain.StatusHired, "welcome aboard", appliedAt)
		require.NoError(mt, err)
		assert.True(mt, ok)
	})
}

func TestAnalyticsRepositoryMock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mt.Run("record visit returns upserted day", func(mt *mtest.T) {
		repo := NewAnalyticsRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "date", Value: "2026-03-01"},
			{Key: "pageViews", Value: 1},
			{Key: "visitors", Value: bson.A{"visitor-a"}},
			{Key: "createdAt", Value: at},
			{Key: "updatedAt", Value: at},
		}}))

		day, err := repo.RecordVisit(ctx, "2026-03-01", "visitor-a", at)
		require.NoError(mt, err)
		assert.Equal(mt, 1, day.PageViews)
		assert.Equal(mt, 1, day.VisitorCount)
		assert.Equal(mt, []string{"visitor-a"}, day.Visitors)
	})

	mt.Run("list range uses projected counts", func(mt *mtest.T) {
		repo := NewAnalyticsRepository(mt.DB)
		ns := mt.DB.Name() + "." + CollectionAnalytics

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "date", Value: "2026-03-01"}, {Key: "pageViews", Value: 5}, {Key: "visitorCount", Value: 3}},
			bson.D{{Key: "date", Value: "2026-03-02"}, {Key: "pageViews", Value: 2}, {Key: "visitorCount", Value: 0}},
		))

		days, err := repo.ListRange(ctx, "2026-03-01", "2026-03-30")
		require.NoError(mt, err)
		require.Len(mt, days, 2)
		assert.Equal(mt, 3, days[0].VisitorCount)
		assert.Equal(mt, 0, days[1].VisitorCount)
		assert.Nil(mt, days[0].Visitors)
	})
}

func TestMessageRepositoryMock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("stats aggregate per kind", func(mt *mtest.T) {
		repo := NewMessageRepository(mt.DB)
		ns := mt.DB.Name() + "." + CollectionMessages

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: bson.D{{Key: "kind", Value: "contact"}, {Key: "read", Value: false}}}, {Key: "count", Value: 2}},
			bson.D{{Key: "_id", Value: bson.D{{Key: "kind", Value: "contact"}, {Key: "read", Value: true}}}, {Key: "count", Value: 3}},
			bson.D{{Key: "_id", Value: bson.D{{Key: "kind", Value: "newsletter"}, {Key: "read", Value: false}}}, {Key: "count", Value: 1}},
		))

		stats, err := repo.GetStats(ctx)
		require.NoError(mt, err)
		assert.Equal(mt, domain.MessageStats{
			Total: 6, Unread: 3,
			Contact: 5, ContactUnread: 2,
			Newsletter: 1, NewsletterUnread: 1,
		}, *stats)
	})

	mt.Run("delete reports missing", func(mt *mtest.T) {
		repo := NewMessageRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		ok, err := repo.Delete(ctx, primitive.NewObjectID().Hex())
		require.NoError(mt, err)
		assert.False(mt, ok)
	})
}
