package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	partnerserrors "rentkar/internal/partners/errors"
	"rentkar/pkg/config"
	"rentkar/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Partners"
)

type mongoPartnerRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

type PartnerRepository interface {
	FindByID(ctx context.Context, id string) (*model.Partner, error)
	FindAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Partner, error)
	Count(ctx context.Context, status string) (int64, error)
	FindNearestAvailable(ctx context.Context, city string, lat, lng float64, maxDistanceMeters int) (*model.Partner, error)
	SetLocation(ctx context.Context, id string, point model.GeoPoint, at time.Time) error
	AddBooking(ctx context.Context, partnerID, bookingID string) error
	RemoveBooking(ctx context.Context, partnerID, bookingID string) error
	SetStatus(ctx context.Context, id, status string) error
	EnsureIndexes(ctx context.Context) error
}

func NewMongoPartnerRepository(cfg *config.Config) PartnerRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPartnerRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoPartnerRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

// EnsureIndexes creates the 2dsphere index the availability query depends
// on. Safe to call on every startup; index creation is idempotent.
func (r *mongoPartnerRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "location", Value: "2dsphere"}},
		},
		{
			Keys: bson.D{{Key: "city", Value: 1}, {Key: "status", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create partner indexes: %w", err)
	}
	return nil
}

func (r *mongoPartnerRepository) FindByID(ctx context.Context, id string) (*model.Partner, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var partner model.Partner
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&partner)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, partnerserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find partner: %w", err)
	}

	return &partner, nil
}

func (r *mongoPartnerRepository) FindAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Partner, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find partners: %w", err)
	}
	defer cursor.Close(ctx)

	var partners []*model.Partner
	if err = cursor.All(ctx, &partners); err != nil {
		return nil, fmt.Errorf("failed to decode partners: %w", err)
	}

	return partners, nil
}

func (r *mongoPartnerRepository) Count(ctx context.Context, status string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count partners: %w", err)
	}
	return count, nil
}

// FindNearestAvailable returns the closest online, unoccupied partner in
// the given city within maxDistanceMeters of the pickup point. $near sorts
// by distance, so the first document is the match.
func (r *mongoPartnerRepository) FindNearestAvailable(ctx context.Context, city string, lat, lng float64, maxDistanceMeters int) (*model.Partner, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"city":   city,
		"status": model.PartnerOnline,
		"$or": []bson.M{
			{"currentBookings": bson.M{"$size": 0}},
			{"currentBookings": bson.M{"$exists": false}},
		},
		"location": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{lng, lat},
				},
				"$maxDistance": maxDistanceMeters,
			},
		},
	}

	var partner model.Partner
	err := r.collection.FindOne(ctx, filter).Decode(&partner)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, partnerserrors.ErrNoMatch
		}
		return nil, fmt.Errorf("failed to query nearest partner: %w", err)
	}

	return &partner, nil
}

func (r *mongoPartnerRepository) SetLocation(ctx context.Context, id string, point model.GeoPoint, at time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"location":      point,
			"lastGpsUpdate": at,
			"updatedAt":     time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update partner location: %w", err)
	}

	if result.MatchedCount == 0 {
		return partnerserrors.ErrNotFound
	}
	return nil
}

// AddBooking records the assignment and flips the partner to busy in one
// write. $addToSet keeps a retried assignment idempotent.
func (r *mongoPartnerRepository) AddBooking(ctx context.Context, partnerID, bookingID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$addToSet": bson.M{"currentBookings": bookingID},
		"$set": bson.M{
			"status":    model.PartnerBusy,
			"updatedAt": time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": partnerID}, update)
	if err != nil {
		return fmt.Errorf("failed to add booking to partner: %w", err)
	}

	if result.MatchedCount == 0 {
		return partnerserrors.ErrNotFound
	}
	return nil
}

func (r *mongoPartnerRepository) RemoveBooking(ctx context.Context, partnerID, bookingID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$pull": bson.M{"currentBookings": bookingID},
		"$set": bson.M{
			"updatedAt": time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": partnerID}, update)
	if err != nil {
		return fmt.Errorf("failed to remove booking from partner: %w", err)
	}

	if result.MatchedCount == 0 {
		return partnerserrors.ErrNotFound
	}
	return nil
}

func (r *mongoPartnerRepository) SetStatus(ctx context.Context, id, status string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"status":    status,
			"updatedAt": time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update partner status: %w", err)
	}

	if result.MatchedCount == 0 {
		return partnerserrors.ErrNotFound
	}
	return nil
}
