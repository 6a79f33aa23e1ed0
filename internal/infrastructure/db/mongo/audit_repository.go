package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

const collectionAuditLogs = "user_audit_logs"

// AuditRepository is the append-only event store. Nothing here updates a row
// after the fact except Sever, which anonymization uses to cut linkage.
type AuditRepository struct {
	col *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{col: db.Collection(collectionAuditLogs)}
}

func (r *AuditRepository) Append(ctx context.Context, row *domain.UserAuditLog) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, row)
	return err
}

// Sever clears user and resource references on every row of the user and
// one-way re-hashes the origin fields. The rows themselves, their actions and
// their timestamps survive, so aggregate history stays intact.
func (r *AuditRepository) Sever(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cursor, err := r.col.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var row domain.UserAuditLog
		if err := cursor.Decode(&row); err != nil {
			return err
		}
		update := bson.M{
			"$unset": bson.M{"user_id": "", "resource_type": "", "resource_id": ""},
			"$set": bson.M{
				"origin_hash":     domain.HashSensitive(row.OriginHash),
				"user_agent_hash": domain.HashSensitive(row.UserAgentHash),
			},
		}
		if _, err := r.col.UpdateOne(ctx, bson.M{"_id": row.ID}, update); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (r *AuditRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return r.col.CountDocuments(ctx, bson.M{"user_id": userID})
}

// EnsureIndexes creates the per-user and chronological lookup indexes.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "action", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
