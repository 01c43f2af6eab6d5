package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/flockwatch/internal/domain/models"
)

const (
	batchesCollection = "batches"
	reportsCollection = "reports"
)

// Repository is the record store for batches and their report ledger.
type Repository interface {
	FetchBatch(ctx context.Context, id string) (models.Batch, error)
	InsertBatch(ctx context.Context, batch models.Batch) error
	PersistBatch(ctx context.Context, batch models.Batch) (models.Batch, error)
	ActiveBatches(ctx context.Context) ([]models.Batch, error)

	PersistReport(ctx context.Context, report models.Report) (models.Report, error)
	FetchReport(ctx context.Context, id string) (models.Report, error)
	ReportsForBatch(ctx context.Context, batchID string) ([]models.Report, error)
	RecentReports(ctx context.Context, batchID string, limit int) ([]models.Report, error)
	ReportsSince(ctx context.Context, since time.Time) ([]models.Report, error)
	UnresolvedCriticalReports(ctx context.Context) ([]models.Report, error)
	ResolveReport(ctx context.Context, id string, at time.Time) (models.Report, error)
}

// MongoDBRepository implements Repository on MongoDB.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDBRepository connects to MongoDB and makes sure the indexes exist.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	repo := NewWithClient(client, dbName)
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// NewWithClient wraps an already connected client.
func NewWithClient(client *mongo.Client, dbName string) *MongoDBRepository {
	return &MongoDBRepository{
		client: client,
		db:     client.Database(dbName),
	}
}

// EnsureIndexes creates the indexes the scans rely on.
func (r *MongoDBRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.reports().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "batch_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "urgency_level", Value: 1}, {Key: "resolved", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create report indexes: %w", err)
	}

	_, err = r.batches().Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}}})
	if err != nil {
		return fmt.Errorf("failed to create batch indexes: %w", err)
	}
	return nil
}

func (r *MongoDBRepository) batches() *mongo.Collection {
	return r.db.Collection(batchesCollection)
}

func (r *MongoDBRepository) reports() *mongo.Collection {
	return r.db.Collection(reportsCollection)
}

// FetchBatch loads one batch snapshot.
func (r *MongoDBRepository) FetchBatch(ctx context.Context, id string) (models.Batch, error) {
	var batch models.Batch
	err := r.batches().FindOne(ctx, bson.M{"_id": id}).Decode(&batch)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Batch{}, models.ErrBatchNotFound
	}
	if err != nil {
		return models.Batch{}, fmt.Errorf("failed to find batch %s: %w", id, err)
	}
	return batch, nil
}

// InsertBatch stores a newly registered batch.
func (r *MongoDBRepository) InsertBatch(ctx context.Context, batch models.Batch) error {
	if _, err := r.batches().InsertOne(ctx, batch); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	return nil
}

// PersistBatch replaces the stored batch only if its version still matches
// batch.Version. The written document carries the next version.
func (r *MongoDBRepository) PersistBatch(ctx context.Context, batch models.Batch) (models.Batch, error) {
	expected := batch.Version
	batch.Version = expected + 1

	res, err := r.batches().ReplaceOne(ctx, bson.M{"_id": batch.ID, "version": expected}, batch)
	if err != nil {
		return models.Batch{}, fmt.Errorf("failed to replace batch %s: %w", batch.ID, err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.FetchBatch(ctx, batch.ID); err != nil {
			return models.Batch{}, err
		}
		return models.Batch{}, models.ErrVersionConflict
	}
	return batch, nil
}

// ActiveBatches lists every batch in Active status.
func (r *MongoDBRepository) ActiveBatches(ctx context.Context) ([]models.Batch, error) {
	cursor, err := r.batches().Find(ctx, bson.M{"status": models.BatchActive},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query active batches: %w", err)
	}

	var out []models.Batch
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode active batches: %w", err)
	}
	return out, nil
}

// PersistReport appends a report to the ledger.
func (r *MongoDBRepository) PersistReport(ctx context.Context, report models.Report) (models.Report, error) {
	if _, err := r.reports().InsertOne(ctx, report); err != nil {
		return models.Report{}, fmt.Errorf("failed to insert report: %w", err)
	}
	return report, nil
}

// FetchReport loads one report.
func (r *MongoDBRepository) FetchReport(ctx context.Context, id string) (models.Report, error) {
	var report models.Report
	err := r.reports().FindOne(ctx, bson.M{"_id": id}).Decode(&report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Report{}, models.ErrReportNotFound
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("failed to find report %s: %w", id, err)
	}
	return report, nil
}

// ReportsForBatch returns the full ledger of a batch, oldest first.
func (r *MongoDBRepository) ReportsForBatch(ctx context.Context, batchID string) ([]models.Report, error) {
	return r.findReports(ctx, bson.M{"batch_id": batchID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
}

// RecentReports returns up to limit reports of a batch, newest first.
func (r *MongoDBRepository) RecentReports(ctx context.Context, batchID string, limit int) ([]models.Report, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.findReports(ctx, bson.M{"batch_id": batchID}, opts)
}

// ReportsSince returns every report created at or after since, newest first.
func (r *MongoDBRepository) ReportsSince(ctx context.Context, since time.Time) ([]models.Report, error) {
	return r.findReports(ctx, bson.M{"created_at": bson.M{"$gte": since}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// UnresolvedCriticalReports returns the Critical reports nobody resolved yet.
func (r *MongoDBRepository) UnresolvedCriticalReports(ctx context.Context) ([]models.Report, error) {
	return r.findReports(ctx, bson.M{"urgency_level": models.UrgencyCritical, "resolved": false},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// ResolveReport sets the resolution flag and returns the updated report.
func (r *MongoDBRepository) ResolveReport(ctx context.Context, id string, at time.Time) (models.Report, error) {
	var report models.Report
	err := r.reports().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"resolved": true, "resolved_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Report{}, models.ErrReportNotFound
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("failed to resolve report %s: %w", id, err)
	}
	return report, nil
}

func (r *MongoDBRepository) findReports(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Report, error) {
	cursor, err := r.reports().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}

	var out []models.Report
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}
	return out, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
