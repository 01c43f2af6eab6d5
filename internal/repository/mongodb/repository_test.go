package mongodb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/mamadbah2/flockwatch/internal/domain/models"
)

const testDB = "flockwatch"

func batchDoc(version int64) bson.D {
	return bson.D{
		{Key: "_id", Value: "B-1"},
		{Key: "name", Value: "House 1"},
		{Key: "bird_count", Value: int32(1000)},
		{Key: "total_mortality", Value: int32(20)},
		{Key: "remaining_birds", Value: int32(980)},
		{Key: "mortality_rate", Value: 2.0},
		{Key: "health_score", Value: int32(80)},
		{Key: "health_status", Value: "Good"},
		{Key: "status", Value: "Active"},
		{Key: "version", Value: version},
	}
}

func TestFetchBatch(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		repo := NewWithClient(mt.Client, testDB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testDB+".batches", mtest.FirstBatch, batchDoc(4)))

		b, err := repo.FetchBatch(mt.Context(), "B-1")
		require.NoError(mt, err)
		assert.Equal(mt, "House 1", b.Name)
		assert.Equal(mt, 980, b.RemainingBirds)
		assert.Equal(mt, models.HealthGood, b.HealthStatus)
		assert.Equal(mt, int64(4), b.Version)
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewWithClient(mt.Client, testDB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testDB+".batches", mtest.FirstBatch))

		_, err := repo.FetchBatch(mt.Context(), "missing")
		assert.ErrorIs(mt, err, models.ErrBatchNotFound)
	})
}

func TestPersistBatch(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("bumps version", func(mt *mtest.T) {
		repo := NewWithClient(mt.Client, testDB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: int32(1)},
			bson.E{Key: "nModified", Value: int32(1)},
		))

		stored, err := repo.PersistBatch(mt.Context(), models.Batch{ID: "B-1", Version: 4})
		require.NoError(mt, err)
		assert.Equal(mt, int64(5), stored.Version)
	})

	mt.Run("stale version", func(mt *mtest.T) {
		repo := NewWithClient(mt.Client, testDB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}, bson.E{Key: "nModified", Value: int32(0)}),
			mtest.CreateCursorResponse(0, testDB+".batches", mtest.FirstBatch, batchDoc(5)),
		)

		_, err := repo.PersistBatch(mt.Context(), models.Batch{ID: "B-1", Version: 4})
		assert.ErrorIs(mt, err, models.ErrVersionConflict)
	})

	mt.Run("missing batch", func(mt *mtest.T) {
		repo := NewWithClient(mt.Client, testDB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}, bson.E{Key: "nModified", Value: int32(0)}),
			mtest.CreateCursorResponse(0, testDB+".batches", mtest.FirstBatch),
		)

		_, err := repo.PersistBatch(mt.Context(), models.Batch{ID: "gone", Version: 0})
		assert.ErrorIs(mt, err, models.ErrBatchNotFound)
	})
}

func TestRecentReports(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes ledger", func(mt *mtest.T) {
		repo := NewWithClient(mt.Client, testDB)
		created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testDB+".reports", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "R-2"},
				{Key: "batch_id", Value: "B-1"},
				{Key: "report_type", Value: "mortality"},
				{Key: "fields", Value: bson.D{{Key: "deathCount", Value: int32(25)}}},
				{Key: "urgency_level", Value: "High"},
				{Key: "resolved", Value: false},
				{Key: "created_at", Value: created},
			},
			bson.D{
				{Key: "_id", Value: "R-1"},
				{Key: "batch_id", Value: "B-1"},
				{Key: "report_type", Value: "feed"},
				{Key: "fields", Value: bson.D{{Key: "feedAmount", Value: 40.5}}},
				{Key: "urgency_level", Value: "Low"},
				{Key: "resolved", Value: false},
				{Key: "created_at", Value: created.Add(-time.Hour)},
			},
		))

		reports, err := repo.RecentReports(mt.Context(), "B-1", 50)
		require.NoError(mt, err)
		require.Len(mt, reports, 2)
		assert.Equal(mt, "R-2", reports[0].ID)
		assert.Equal(mt, models.ReportMortality, reports[0].ReportType)
		assert.Equal(mt, int32(25), reports[0].Fields["deathCount"])
		assert.Equal(mt, models.UrgencyHigh, reports[0].UrgencyLevel)
		assert.True(mt, reports[0].CreatedAt.Equal(created))
	})
}

func TestResolveReport(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns updated report", func(mt *mtest.T) {
		repo := NewWithClient(mt.Client, testDB)
		at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "R-9"},
			{Key: "batch_id", Value: "B-1"},
			{Key: "report_type", Value: "health"},
			{Key: "urgency_level", Value: "Critical"},
			{Key: "resolved", Value: true},
			{Key: "resolved_at", Value: at},
		}}))

		r, err := repo.ResolveReport(mt.Context(), "R-9", at)
		require.NoError(mt, err)
		assert.True(mt, r.Resolved)
		assert.False(mt, r.IsPendingCritical())
	})

	mt.Run("unknown report", func(mt *mtest.T) {
		repo := NewWithClient(mt.Client, testDB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := repo.ResolveReport(mt.Context(), "nope", time.Now())
		assert.ErrorIs(mt, err, models.ErrReportNotFound)
	})
}
