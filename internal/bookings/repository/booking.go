package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "rentkar/internal/bookings/errors"
	"rentkar/pkg/config"
	"rentkar/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context, status string) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	UpdateFields(ctx context.Context, id string, set bson.M) error
	SetPartnerAssignment(ctx context.Context, id, partnerID, assignedBy string, at time.Time) error
	SetDocumentReview(ctx context.Context, id string, documents []model.Document, status, reviewedBy string, at time.Time) error
	SetConfirmed(ctx context.Context, id, confirmedBy string, at time.Time) error
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout wraps the context with a timeout, respecting any tighter
// deadline already present.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter, err := idFilter(id)
	if err != nil {
		return nil, err
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, filter).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) Count(ctx context.Context, status string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate booking statuses: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode booking status counts: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *mongoBookingRepository) UpdateFields(ctx context.Context, id string, set bson.M) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter, err := idFilter(id)
	if err != nil {
		return err
	}

	set["updatedAt"] = time.Now().UTC().Truncate(time.Millisecond)

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}

	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

func (r *mongoBookingRepository) SetPartnerAssignment(ctx context.Context, id, partnerID, assignedBy string, at time.Time) error {
	return r.UpdateFields(ctx, id, bson.M{
		"partnerId":  partnerID,
		"status":     model.StatusPartnerAssigned,
		"assignedBy": assignedBy,
		"assignedAt": at,
	})
}

func (r *mongoBookingRepository) SetDocumentReview(ctx context.Context, id string, documents []model.Document, status, reviewedBy string, at time.Time) error {
	return r.UpdateFields(ctx, id, bson.M{
		"document":   documents,
		"status":     status,
		"reviewedBy": reviewedBy,
		"reviewedAt": at,
		"lockedBy":   reviewedBy,
		"lockedAt":   at,
	})
}

func (r *mongoBookingRepository) SetConfirmed(ctx context.Context, id, confirmedBy string, at time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter, err := idFilter(id)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"status":      model.StatusConfirmed,
			"confirmedBy": confirmedBy,
			"confirmedAt": at,
			"updatedAt":   time.Now().UTC().Truncate(time.Millisecond),
		},
		"$unset": bson.M{
			"lockedBy": "",
			"lockedAt": "",
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to confirm booking: %w", err)
	}

	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

// idFilter builds an _id filter for either hex ObjectIDs or plain string
// IDs, so test fixtures seeded with string keys still resolve.
func idFilter(id string) (bson.M, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty", bookingserrors.ErrInvalidID)
	}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": oid}, nil
	}
	return bson.M{"_id": id}, nil
}
