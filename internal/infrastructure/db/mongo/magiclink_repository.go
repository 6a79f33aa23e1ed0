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

const collectionMagicLinks = "magic_links"

type MagicLinkRepository struct {
	col *mongo.Collection
}

func NewMagicLinkRepository(db *mongo.Database) *MagicLinkRepository {
	return &MagicLinkRepository{col: db.Collection(collectionMagicLinks)}
}

func (r *MagicLinkRepository) Create(ctx context.Context, link *domain.MagicLink) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, link)
	return err
}

// Redeem flips the link from unused to used in a single FindOneAndUpdate.
// The filter matches only an unused, unexpired link, so of two concurrent
// redemptions of the same token exactly one document update succeeds; the
// loser sees ErrNoDocuments and gets ErrInvalidLink. Expired, already-used
// and unknown tokens are deliberately indistinguishable to the caller.
func (r *MagicLinkRepository) Redeem(ctx context.Context, tokenHash string, now time.Time, originHash string) (*domain.MagicLink, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"token_hash": tokenHash,
		"is_used":    false,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{
		"is_used":        true,
		"used_at":        now,
		"used_by_origin": originHash,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var link domain.MagicLink
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&link)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInvalidLink
		}
		return nil, err
	}
	return &link, nil
}

// AnonymizeByDestination scrubs every link sent to the given email or phone:
// the destination fields are unset and the recorded origin of use is one-way
// re-hashed. Rows survive so the audit trail keeps its shape.
func (r *MagicLinkRepository) AnonymizeByDestination(ctx context.Context, email, phone string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var or bson.A
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if phone != "" {
		or = append(or, bson.M{"phone": phone})
	}
	if len(or) == 0 {
		return nil
	}

	cursor, err := r.col.Find(ctx, bson.M{"$or": or})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	// Per-document updates: the re-hash depends on each row's current value.
	for cursor.Next(ctx) {
		var link domain.MagicLink
		if err := cursor.Decode(&link); err != nil {
			return err
		}
		update := bson.M{
			"$unset": bson.M{"email": "", "phone": ""},
			"$set":   bson.M{"used_by_origin": domain.HashSensitive(link.UsedByOrigin)},
		}
		if _, err := r.col.UpdateOne(ctx, bson.M{"_id": link.ID}, update); err != nil {
			return err
		}
	}
	return cursor.Err()
}

// EnsureIndexes creates the lookup index for redemption and a TTL index that
// lets MongoDB reap long-dead links on its own.
func (r *MagicLinkRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32((30 * 24 * time.Hour).Seconds())),
		},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
