package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/serenitygrove/membership-api/internal/core/domain"
	"github.com/serenitygrove/membership-api/internal/core/ports"
)

const collectionUsers = "users"

type UserRepository struct {
	col *mongo.Collection
	// assignments is read for the by-position slice of Stats; all writes to
	// that collection go through AssignmentRepository.
	assignments *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		col:         db.Collection(collectionUsers),
		assignments: db.Collection(collectionAssignments),
	}
}

// Create inserts a new user document. A duplicate active email or phone
// trips the unique partial index and is reported as ErrUserExists.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrUserExists
	}
	return err
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByEmail matches any account still carrying the address. Anonymized and
// soft-deleted accounts have the field unset and never match; deactivated
// accounts do match, and the login flow rejects them itself.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"phone": phone})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var u domain.User
	err := r.col.FindOne(ctx, filter).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Update replaces the full document. The struct's omitempty tags make cleared
// destination fields disappear from the stored document, which is what the
// unique partial indexes rely on.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	u.UpdatedAt = time.Now().UTC()
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrUserExists
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Delete removes the document itself. Callers run it inside the
// anonymization transaction, after every dependent collection is severed.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, filter ports.ListUsersFilter) ([]*domain.User, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := bson.M{}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if filter.IsActive != nil {
		query["is_active"] = *filter.IsActive
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"preferred_name": pattern},
			bson.M{"email": pattern},
		}
	}

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((filter.Page - 1) * filter.Limit)).
		SetLimit(int64(filter.Limit))

	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var users []*domain.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Directory returns active users who opted into the member directory,
// ordered by preferred name. Privacy filtering of individual fields happens
// in the domain projection, not here.
func (r *UserRepository) Directory(ctx context.Context) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "preferred_name", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{"is_active": true, "show_in_directory": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*domain.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Stats aggregates PII-free counters for the admin dashboard.
func (r *UserRepository) Stats(ctx context.Context, monthAgo, weekAgo time.Time) (*ports.UserStats, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats := &ports.UserStats{
		UsersByRole:      make(map[domain.Role]int64),
		ActiveByPosition: make(map[domain.ServicePosition]int64),
	}

	var err error
	if stats.TotalUsers, err = r.col.CountDocuments(ctx, bson.M{}); err != nil {
		return nil, err
	}
	if stats.ActiveUsers, err = r.col.CountDocuments(ctx, bson.M{"is_active": true}); err != nil {
		return nil, err
	}
	if stats.NewUsersThisMonth, err = r.col.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": monthAgo}}); err != nil {
		return nil, err
	}
	if stats.RecentLogins, err = r.col.CountDocuments(ctx, bson.M{"last_login": bson.M{"$gte": weekAgo}}); err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$role", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var buckets []struct {
		Role  domain.Role `bson:"_id"`
		Count int64       `bson:"count"`
	}
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, err
	}
	for _, b := range buckets {
		stats.UsersByRole[b.Role] = b.Count
	}

	posPipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"is_active": true}}},
		{{Key: "$group", Value: bson.M{"_id": "$position", "count": bson.M{"$sum": 1}}}},
	}
	posCursor, err := r.assignments.Aggregate(ctx, posPipeline)
	if err != nil {
		return nil, err
	}
	defer posCursor.Close(ctx)

	var posBuckets []struct {
		Position domain.ServicePosition `bson:"_id"`
		Count    int64                  `bson:"count"`
	}
	if err := posCursor.All(ctx, &posBuckets); err != nil {
		return nil, err
	}
	for _, b := range posBuckets {
		stats.ActiveByPosition[b.Position] = b.Count
	}
	return stats, nil
}

// EnsureIndexes creates the indexes the repository depends on. The partial
// unique indexes on email and phone only apply to documents that still carry
// the field, so anonymized accounts never collide with live ones.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}}),
		},
		{
			Keys: bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"phone": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "role", Value: 1}}},
		{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "show_in_directory", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
