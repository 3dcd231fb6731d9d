// Package mongo provides the MongoDB implementation of the audit archive.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/google/uuid"
	"github.com/hospital-accounting-ledger/internal/domain/audit"
)

const (
	// AuditCollectionName is the name of the audit collection in MongoDB
	AuditCollectionName = "audit_entries"
)

// AuditRepository implements the audit.Repository interface for MongoDB.
// The archive is written only by the outbox poller; the HTTP layer reads it.
type AuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAuditRepository creates a new MongoDB audit repository
func NewAuditRepository(logger *slog.Logger, db *mongo.Database) audit.Repository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert archives one audit entry. Replays from the outbox are made safe
// by upserting on the entry's ID.
func (r *AuditRepository) Insert(ctx context.Context, entry *audit.Entry) error {
	collection := r.db.Collection(AuditCollectionName)

	filter := bson.M{"id": entry.ID}
	update := bson.M{"$setOnInsert": entry}
	opts := options.Update().SetUpsert(true)

	_, err := collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		r.logger.Error("Failed to archive audit entry",
			"entry_id", entry.ID.String(),
			"table_name", entry.TableName,
			"error", err)
		return fmt.Errorf("failed to archive audit entry: %w", err)
	}

	return nil
}

// Query retrieves paginated audit entries matching the filter.
// Results are sorted by timestamp in descending order (newest first).
func (r *AuditRepository) Query(ctx context.Context, filter audit.Filter, limit, offset int) ([]*audit.Entry, error) {
	collection := r.db.Collection(AuditCollectionName)

	opts := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		r.logger.Error("Failed to query audit entries",
			"hospital_id", filter.HospitalID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*audit.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode audit entries",
			"hospital_id", filter.HospitalID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode audit entries: %w", err)
	}

	return entries, nil
}

// Count counts the audit entries matching the filter
func (r *AuditRepository) Count(ctx context.Context, filter audit.Filter) (int64, error) {
	collection := r.db.Collection(AuditCollectionName)

	count, err := collection.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		r.logger.Error("Failed to count audit entries",
			"hospital_id", filter.HospitalID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}

func buildFilter(filter audit.Filter) bson.M {
	query := bson.M{}
	if filter.HospitalID != uuid.Nil {
		query["hospital_id"] = filter.HospitalID
	}
	if filter.TableName != "" {
		query["table_name"] = filter.TableName
	}
	timeRange := bson.M{}
	if !filter.From.IsZero() {
		timeRange["$gte"] = filter.From
	}
	if !filter.To.IsZero() {
		timeRange["$lte"] = filter.To
	}
	if len(timeRange) > 0 {
		query["timestamp"] = timeRange
	}
	return query
}
