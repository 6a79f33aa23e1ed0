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

const collectionSessions = "login_sessions"

type SessionRepository struct {
	col *mongo.Collection
}

func NewSessionRepository(db *mongo.Database) *SessionRepository {
	return &SessionRepository{col: db.Collection(collectionSessions)}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.LoginSession) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*domain.LoginSession, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var s domain.LoginSession
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Rotate is the refresh compare-and-set. The filter requires the session to
// be active, unexpired and still at exactly expectedVersion; the update then
// increments the version and pushes expiry forward. A concurrent refresh
// that lost the race no longer matches the filter and gets ErrUnauthorized.
func (r *SessionRepository) Rotate(ctx context.Context, id string, expectedVersion int64, newExpiry time.Time) (*domain.LoginSession, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{
		"_id":           id,
		"is_active":     true,
		"token_version": expectedVersion,
		"expires_at":    bson.M{"$gt": now},
	}
	update := bson.M{
		"$inc": bson.M{"token_version": 1},
		"$set": bson.M{
			"expires_at":    newExpiry,
			"last_activity": now,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var s domain.LoginSession
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	return &s, nil
}

// Invalidate is idempotent and terminal: once inactive a session never
// matches the Rotate filter again.
func (r *SessionRepository) Invalidate(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"is_active": false}})
	return err
}

func (r *SessionRepository) InvalidateAllForUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.UpdateMany(ctx,
		bson.M{"user_id": userID, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false}},
	)
	return err
}

// DeactivateExpired flips sessions whose expiry has passed. Expiry is also
// checked on every read, so this sweep only keeps the collection tidy.
func (r *SessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateMany(ctx,
		bson.M{"is_active": true, "expires_at": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"is_active": false}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// AnonymizeForUser one-way re-hashes the device fingerprints of every session
// owned by the user and deactivates them. With sever the user reference is
// also unset, which the hard delete path needs before the user row goes away.
func (r *SessionRepository) AnonymizeForUser(ctx context.Context, userID string, sever bool) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cursor, err := r.col.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var s domain.LoginSession
		if err := cursor.Decode(&s); err != nil {
			return err
		}
		update := bson.M{"$set": bson.M{
			"device_fingerprint": domain.HashSensitive(s.DeviceFingerprint),
			"user_agent_hash":    domain.HashSensitive(s.UserAgentHash),
			"origin_hash":        domain.HashSensitive(s.OriginHash),
			"is_active":          false,
		}}
		if sever {
			update["$unset"] = bson.M{"user_id": ""}
		}
		if _, err := r.col.UpdateOne(ctx, bson.M{"_id": s.ID}, update); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (r *SessionRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return r.col.CountDocuments(ctx, bson.M{"user_id": userID})
}

// EnsureIndexes creates the per-user lookup index and the sweep index.
func (r *SessionRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_active", Value: 1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
