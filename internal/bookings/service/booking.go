package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	bookingserrors "rentkar/internal/bookings/errors"
	"rentkar/internal/bookings/repository"
	"rentkar/internal/bookings/validator"
	"rentkar/pkg/config"
	apperrors "rentkar/pkg/errors"
	"rentkar/pkg/lock"
	"rentkar/pkg/model"
	"rentkar/pkg/pubsub"
	"rentkar/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/bson"
)

// Lock keys are scoped per operation, so an assignment and a review of the
// same booking do not contend with each other. The state machine checks
// inside each critical section keep conflicting updates out.
const (
	lockKeyAssign  = "booking:assign:%s"
	lockKeyReview  = "booking:review:%s"
	lockKeyConfirm = "booking:confirm:%s"
)

// PartnerAssigner is the slice of the partners domain the coordinator
// needs during assignment.
type PartnerAssigner interface {
	FindNearestAvailable(ctx context.Context, city string, lat, lng float64) (*model.Partner, error)
	AddBooking(ctx context.Context, partnerID, bookingID string) error
}

type BookingService interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Booking, int64, error)
	Update(ctx context.Context, id string, updates *model.BookingUpdate) (*model.Booking, error)
	Stats(ctx context.Context) (*model.BookingStats, error)
	AssignPartner(ctx context.Context, id, assignedBy string) (*model.Booking, error)
	ReviewDocuments(ctx context.Context, id string, reviews []model.DocumentReview, reviewedBy string) (*model.Booking, error)
	Confirm(ctx context.Context, id, confirmedBy string) (*model.Booking, error)
	LockStatus(ctx context.Context, id string) (map[string]lock.Info, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	partners  PartnerAssigner
	locker    lock.Locker
	bus       pubsub.Bus
	validator *validator.BookingValidator
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	partners PartnerAssigner,
	locker lock.Locker,
	bus pubsub.Bus,
	bookingValidator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		partners:  partners,
		locker:    locker,
		bus:       bus,
		validator: bookingValidator,
		cfg:       cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, booking *model.Booking) error {
	s.applyDefaults(booking)
	s.sanitize(booking)

	if err := s.validator.Validate(booking); err != nil {
		return apperrors.Validation("Booking validation failed", map[string]any{
			"errors": err.Error(),
		})
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		s.cfg.Log.Error("Failed to create booking", "error", err)
		return apperrors.Internal("Failed to create booking", err)
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"user_id", booking.UserID,
		"location", booking.Location,
	)
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id)
	}
	return booking, nil
}

func (s *bookingService) GetAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Booking, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	bookings, err := s.repo.FindAll(ctx, status, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "error", err)
		return nil, 0, apperrors.Internal("Failed to list bookings", err)
	}

	total, err := s.repo.Count(ctx, status)
	if err != nil {
		s.cfg.Log.Error("Failed to count bookings", "error", err)
		return nil, 0, apperrors.Internal("Failed to count bookings", err)
	}

	return bookings, total, nil
}

func (s *bookingService) Update(ctx context.Context, id string, updates *model.BookingUpdate) (*model.Booking, error) {
	if err := s.validator.ValidateUpdate(updates); err != nil {
		return nil, apperrors.Validation("Booking update validation failed", map[string]any{
			"errors": err.Error(),
		})
	}

	set := bson.M{}
	if updates.StartDate != nil {
		set["startDate"] = *updates.StartDate
	}
	if updates.EndDate != nil {
		set["endDate"] = *updates.EndDate
	}
	if updates.IsSelfPickup != nil {
		set["isSelfPickup"] = *updates.IsSelfPickup
	}
	if updates.DeliveryTime != nil {
		set["deliveryTime"] = *updates.DeliveryTime
	}
	if updates.Address != nil {
		set["address"] = *updates.Address
	}

	if updates.Status != "" {
		// Lifecycle statuses advance only through their dedicated
		// operations; cancellation is the single externally settable one.
		if updates.Status != model.StatusCancelled {
			return nil, apperrors.Conflict("Booking status can only be set to CANCELLED directly")
		}

		current, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, s.mapRepoError(err, id)
		}
		if current.Status == model.StatusConfirmed || current.Status == model.StatusCancelled {
			return nil, apperrors.Conflict(fmt.Sprintf("Cannot cancel booking in status %s", current.Status))
		}
		set["status"] = model.StatusCancelled
	}

	if len(set) == 0 {
		return nil, apperrors.InvalidInput("No updatable fields provided")
	}

	if err := s.repo.UpdateFields(ctx, id, set); err != nil {
		return nil, s.mapRepoError(err, id)
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id)
	}

	s.cfg.Log.Info("Booking updated", "id", id)
	return booking, nil
}

func (s *bookingService) Stats(ctx context.Context) (*model.BookingStats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to aggregate booking stats", "error", err)
		return nil, apperrors.Internal("Failed to aggregate booking stats", err)
	}

	stats := &model.BookingStats{
		Pending:         counts[model.StatusPending],
		PartnerAssigned: counts[model.StatusPartnerAssigned],
		UnderReview:     counts[model.StatusDocumentsUnderReview],
		Confirmed:       counts[model.StatusConfirmed],
		Cancelled:       counts[model.StatusCancelled],
	}
	for _, count := range counts {
		stats.Total += count
	}
	return stats, nil
}

// AssignPartner attaches the nearest available partner under the
// assignment lease. The booking mutation commits before the partner flips
// busy; a failure in between leaves the booking assigned to a partner not
// yet marked busy, which the next matching query tolerates.
func (s *bookingService) AssignPartner(ctx context.Context, id, assignedBy string) (*model.Booking, error) {
	key := fmt.Sprintf(lockKeyAssign, id)

	var booking *model.Booking
	err := s.locker.WithLock(ctx, key, s.cfg.LockLease, func(ctx context.Context) error {
		current, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return s.mapRepoError(err, id)
		}

		if current.PartnerID != "" {
			return apperrors.Conflict(fmt.Sprintf("Booking already assigned to partner %s", current.PartnerID))
		}
		if current.Status == model.StatusCancelled || current.Status == model.StatusConfirmed {
			return apperrors.Conflict(fmt.Sprintf("Cannot assign partner to booking in status %s", current.Status))
		}

		partner, err := s.partners.FindNearestAvailable(ctx, current.Location, current.Address.Latitude, current.Address.Longitude)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := s.repo.SetPartnerAssignment(ctx, id, partner.ID, assignedBy, now); err != nil {
			return apperrors.Persistence("Failed to record partner assignment", err)
		}

		if err := s.partners.AddBooking(ctx, partner.ID, id); err != nil {
			return err
		}

		s.publish(ctx, model.ChannelBookingPartnerAssigned, map[string]any{
			"bookingId":  id,
			"partnerId":  partner.ID,
			"assignedBy": assignedBy,
		})
		s.publish(ctx, model.ChannelPartnerBookingAssigned, map[string]any{
			"partnerId": partner.ID,
			"bookingId": id,
		})

		current.PartnerID = partner.ID
		current.Status = model.StatusPartnerAssigned
		current.AssignedBy = assignedBy
		current.AssignedAt = &now
		booking = current
		return nil
	})
	if err != nil {
		return nil, s.mapLockError(err, key)
	}

	s.cfg.Log.Info("Partner assigned to booking",
		"booking_id", id,
		"partner_id", booking.PartnerID,
		"assigned_by", assignedBy,
	)
	return booking, nil
}

// ReviewDocuments applies a batch of review decisions under the review
// lease and forces the booking into DOCUMENTS_UNDER_REVIEW regardless of
// its prior status, including when every document in the batch was
// approved. Confirmation is a separate deliberate step.
func (s *bookingService) ReviewDocuments(ctx context.Context, id string, reviews []model.DocumentReview, reviewedBy string) (*model.Booking, error) {
	if err := s.validator.ValidateReviews(reviews); err != nil {
		return nil, apperrors.Validation("Document review validation failed", map[string]any{
			"errors": err.Error(),
		})
	}

	key := fmt.Sprintf(lockKeyReview, id)

	var booking *model.Booking
	err := s.locker.WithLock(ctx, key, s.cfg.LockLease, func(ctx context.Context) error {
		current, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return s.mapRepoError(err, id)
		}

		now := time.Now().UTC()
		documents, err := applyReviews(current.Documents, reviews, reviewedBy, now)
		if err != nil {
			return err
		}

		if err := s.repo.SetDocumentReview(ctx, id, documents, model.StatusDocumentsUnderReview, reviewedBy, now); err != nil {
			return apperrors.Persistence("Failed to record document review", err)
		}

		s.publish(ctx, model.ChannelBookingDocumentsReviewed, map[string]any{
			"bookingId":  id,
			"reviews":    reviews,
			"reviewedBy": reviewedBy,
		})

		current.Documents = documents
		current.Status = model.StatusDocumentsUnderReview
		current.ReviewedBy = reviewedBy
		current.ReviewedAt = &now
		current.LockedBy = reviewedBy
		current.LockedAt = &now
		booking = current
		return nil
	})
	if err != nil {
		return nil, s.mapLockError(err, key)
	}

	s.cfg.Log.Info("Booking documents reviewed",
		"booking_id", id,
		"reviewed_by", reviewedBy,
		"decisions", len(reviews),
	)
	return booking, nil
}

// Confirm completes the lifecycle under the confirmation lease. Every
// document must already be APPROVED; the rejection path goes back through
// another review, not through confirmation.
func (s *bookingService) Confirm(ctx context.Context, id, confirmedBy string) (*model.Booking, error) {
	key := fmt.Sprintf(lockKeyConfirm, id)

	var booking *model.Booking
	err := s.locker.WithLock(ctx, key, s.cfg.LockLease, func(ctx context.Context) error {
		current, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return s.mapRepoError(err, id)
		}

		if current.Status == model.StatusConfirmed {
			return apperrors.Conflict("Booking is already confirmed")
		}
		if current.Status == model.StatusCancelled {
			return apperrors.Conflict("Cannot confirm a cancelled booking")
		}

		if pending := unapprovedDocTypes(current.Documents); len(pending) > 0 {
			return apperrors.DocumentsNotApproved(pending)
		}

		now := time.Now().UTC()
		if err := s.repo.SetConfirmed(ctx, id, confirmedBy, now); err != nil {
			return apperrors.Persistence("Failed to record booking confirmation", err)
		}

		s.publish(ctx, model.ChannelBookingConfirmed, map[string]any{
			"bookingId":   id,
			"confirmedBy": confirmedBy,
		})

		current.Status = model.StatusConfirmed
		current.ConfirmedBy = confirmedBy
		current.ConfirmedAt = &now
		current.LockedBy = ""
		current.LockedAt = nil
		booking = current
		return nil
	})
	if err != nil {
		return nil, s.mapLockError(err, key)
	}

	s.cfg.Log.Info("Booking confirmed",
		"booking_id", id,
		"confirmed_by", confirmedBy,
	)
	return booking, nil
}

func (s *bookingService) LockStatus(ctx context.Context, id string) (map[string]lock.Info, error) {
	keys := map[string]string{
		"assign":  fmt.Sprintf(lockKeyAssign, id),
		"review":  fmt.Sprintf(lockKeyReview, id),
		"confirm": fmt.Sprintf(lockKeyConfirm, id),
	}

	status := make(map[string]lock.Info, len(keys))
	for name, key := range keys {
		info, err := s.locker.Info(ctx, key)
		if err != nil {
			return nil, apperrors.Internal("Failed to inspect lock state", err)
		}
		status[name] = info
	}
	return status, nil
}

func (s *bookingService) applyDefaults(booking *model.Booking) {
	if booking.Status == "" {
		booking.Status = model.StatusPending
	}
	if len(booking.Documents) == 0 {
		booking.Documents = []model.Document{
			{DocType: model.DocTypeSelfie, Status: model.DocStatusPending},
			{DocType: model.DocTypeSignature, Status: model.DocStatusPending},
		}
	}
	for i := range booking.Documents {
		if booking.Documents[i].Status == "" {
			booking.Documents[i].Status = model.DocStatusPending
		}
	}
}

func (s *bookingService) sanitize(booking *model.Booking) {
	booking.Location = sanitizer.NormalizeCity(booking.Location)
	booking.Address.BuildingAreaName = sanitizer.TrimAndNormalize(booking.Address.BuildingAreaName)
	booking.Address.StreetAddress = sanitizer.TrimAndNormalize(booking.Address.StreetAddress)
	for i := range booking.Documents {
		booking.Documents[i].DocType = sanitizer.NormalizeDocumentType(booking.Documents[i].DocType)
	}
}

func (s *bookingService) publish(ctx context.Context, channel string, payload map[string]any) {
	if _, err := s.bus.Publish(ctx, channel, payload); err != nil {
		// Best-effort fan-out: a dropped event never fails the state change.
		s.cfg.Log.Warn("Failed to publish event",
			"channel", channel,
			"error", err,
		)
	}
}

func (s *bookingService) mapRepoError(err error, id string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput(err.Error())
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("Booking lookup failed", err)
	}
}

func (s *bookingService) mapLockError(err error, key string) error {
	if errors.Is(err, lock.ErrLockBusy) {
		return apperrors.ResourceBusy(key)
	}
	return err
}

func applyReviews(documents []model.Document, reviews []model.DocumentReview, reviewedBy string, at time.Time) ([]model.Document, error) {
	byType := make(map[string]int, len(documents))
	for i, doc := range documents {
		byType[doc.DocType] = i
	}

	var unknown []string
	for _, review := range reviews {
		if _, ok := byType[review.DocType]; !ok {
			unknown = append(unknown, review.DocType)
		}
	}
	if len(unknown) > 0 {
		return nil, apperrors.Validation(fmt.Sprintf("Booking has no documents of type: %s", strings.Join(unknown, ", ")), map[string]any{
			"docTypes": unknown,
		})
	}

	updated := make([]model.Document, len(documents))
	copy(updated, documents)

	for _, review := range reviews {
		i := byType[review.DocType]
		reviewedAt := at
		updated[i].Status = review.Status
		updated[i].ReviewedBy = reviewedBy
		updated[i].ReviewedAt = &reviewedAt
	}

	return updated, nil
}

func unapprovedDocTypes(documents []model.Document) []string {
	var pending []string
	for _, doc := range documents {
		if doc.Status != model.DocStatusApproved {
			pending = append(pending, doc.DocType)
		}
	}
	return pending
}
