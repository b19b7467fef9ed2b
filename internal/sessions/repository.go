package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository provides session persistence operations
type Repository interface {
	// Create inserts s, failing with ErrDuplicate when s.ID exists.
	Create(ctx context.Context, s *Session) error
	// Get returns the live session or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Touch moves the expiry of an existing session, or returns ErrNotFound.
	Touch(ctx context.Context, id string, expiresAt time.Time) error
	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}

// MongoRepository implements Repository using a Mongo collection. Expired
// documents are filtered on read and reaped by a TTL index.
type MongoRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col, now: time.Now}
}

// EnsureIndexes creates the TTL index on expiresAt.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("sessions_expires_ttl"),
	})
	if err != nil {
		return fmt.Errorf("create session ttl index: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, s *Session) error {
	if _, err := r.col.InsertOne(ctx, s); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*Session, error) {
	var s Session
	filter := bson.M{"_id": id, "expiresAt": bson.M{"$gt": r.now().UTC()}}
	if err := r.col.FindOne(ctx, filter).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &s, nil
}

func (r *MongoRepository) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "expiresAt": bson.M{"$gt": r.now().UTC()}},
		bson.M{"$set": bson.M{"expiresAt": expiresAt.UTC()}},
	)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
