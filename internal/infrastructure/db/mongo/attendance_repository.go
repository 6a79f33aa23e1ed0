package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

const collectionAttendance = "meeting_attendance"

type AttendanceRepository struct {
	col *mongo.Collection
}

func NewAttendanceRepository(db *mongo.Database) *AttendanceRepository {
	return &AttendanceRepository{col: db.Collection(collectionAttendance)}
}

// AnonymizeForUser severs the user reference on every attendance row of the
// user, stamps each with a fresh anonymous identifier and withdraws
// attendance sharing. Per-row updates: each row needs its own identifier so
// the scrubbed rows cannot be correlated with each other.
func (r *AttendanceRepository) AnonymizeForUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cursor, err := r.col.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var row domain.MeetingAttendance
		if err := cursor.Decode(&row); err != nil {
			return err
		}
		update := bson.M{
			"$unset": bson.M{"user_id": ""},
			"$set": bson.M{
				"anonymous_id":     domain.NewAnonymousID("anon"),
				"share_attendance": false,
			},
		}
		if _, err := r.col.UpdateOne(ctx, bson.M{"_id": row.ID}, update); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (r *AttendanceRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return r.col.CountDocuments(ctx, bson.M{"user_id": userID})
}

// EnsureIndexes creates the per-user and per-meeting lookup indexes.
func (r *AttendanceRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "meeting_id", Value: 1}, {Key: "joined_at", Value: -1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
