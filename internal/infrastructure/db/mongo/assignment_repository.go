package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

const collectionAssignments = "service_assignments"

type AssignmentRepository struct {
	col *mongo.Collection
}

func NewAssignmentRepository(db *mongo.Database) *AssignmentRepository {
	return &AssignmentRepository{col: db.Collection(collectionAssignments)}
}

func (r *AssignmentRepository) Create(ctx context.Context, a *domain.ServiceAssignment) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, a)
	return err
}

func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*domain.ServiceAssignment, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a domain.ServiceAssignment
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAssignmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AssignmentRepository) HasActive(ctx context.Context, userID string, position domain.ServicePosition) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, bson.M{
		"user_id":   userID,
		"position":  position,
		"is_active": true,
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *AssignmentRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.ServiceAssignment, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"user_id": userID, "is_active": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var assignments []*domain.ServiceAssignment
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

// Deactivate ends the assignment but keeps the row for service history.
func (r *AssignmentRepository) Deactivate(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"is_active":  false,
		"end_date":   now,
		"updated_at": now,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrAssignmentNotFound
	}
	return nil
}

// AnonymizeForUser redacts free-text notes on every assignment of the user.
// With sever the user reference and the creator reference are also unset
// while position, dates and group linkage stay, keeping the group's service
// history countable.
func (r *AssignmentRepository) AnonymizeForUser(ctx context.Context, userID string, sever bool) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"notes":      domain.RedactedNote,
		"updated_at": time.Now().UTC(),
	}}
	if sever {
		update["$unset"] = bson.M{"user_id": "", "created_by": ""}
	}
	_, err := r.col.UpdateMany(ctx, bson.M{"user_id": userID}, update)
	if err != nil {
		return err
	}
	if sever {
		// The user may also appear as the creator of someone else's row.
		_, err = r.col.UpdateMany(ctx, bson.M{"created_by": userID}, bson.M{"$unset": bson.M{"created_by": ""}})
	}
	return err
}

func (r *AssignmentRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return r.col.CountDocuments(ctx, bson.M{"user_id": userID})
}

// EnsureIndexes creates the duplicate-position guard and listing indexes.
func (r *AssignmentRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "position", Value: 1}, {Key: "is_active", Value: 1}}},
		{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "is_active", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
