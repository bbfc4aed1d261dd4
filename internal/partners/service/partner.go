package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	partnerserrors "rentkar/internal/partners/errors"
	"rentkar/internal/partners/repository"
	"rentkar/pkg/config"
	apperrors "rentkar/pkg/errors"
	"rentkar/pkg/geo"
	"rentkar/pkg/model"
	"rentkar/pkg/pubsub"
	"rentkar/pkg/sanitizer"
)

type PartnerService interface {
	GetByID(ctx context.Context, id string) (*model.Partner, error)
	GetAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Partner, int64, error)
	FindNearestAvailable(ctx context.Context, city string, lat, lng float64) (*model.Partner, error)
	AddBooking(ctx context.Context, partnerID, bookingID string) error
	ReleaseFromBooking(ctx context.Context, partnerID, bookingID string) error
	UpdateLocation(ctx context.Context, partnerID string, lat, lng float64) (*model.GPSUpdate, error)
	GPSHistory(ctx context.Context, partnerID string, limit int) ([]model.GPSUpdate, error)
}

type partnerService struct {
	repo     repository.PartnerRepository
	tracking repository.TrackingStore
	bus      pubsub.Bus
	cfg      *config.Config

	// now is injectable so rate-window tests can pin the clock.
	now func() time.Time
}

func NewPartnerService(
	repo repository.PartnerRepository,
	tracking repository.TrackingStore,
	bus pubsub.Bus,
	cfg *config.Config,
) PartnerService {
	return &partnerService{
		repo:     repo,
		tracking: tracking,
		bus:      bus,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *partnerService) GetByID(ctx context.Context, id string) (*model.Partner, error) {
	partner, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id)
	}
	return partner, nil
}

func (s *partnerService) GetAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Partner, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	partners, err := s.repo.FindAll(ctx, status, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list partners", "error", err)
		return nil, 0, apperrors.Internal("Failed to list partners", err)
	}

	total, err := s.repo.Count(ctx, status)
	if err != nil {
		s.cfg.Log.Error("Failed to count partners", "error", err)
		return nil, 0, apperrors.Internal("Failed to count partners", err)
	}

	return partners, total, nil
}

func (s *partnerService) FindNearestAvailable(ctx context.Context, city string, lat, lng float64) (*model.Partner, error) {
	city = sanitizer.NormalizeCity(city)
	if city == "" {
		return nil, apperrors.InvalidInput("city is required for partner matching")
	}
	if err := geo.ValidateCoordinates(lat, lng); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	partner, err := s.repo.FindNearestAvailable(ctx, city, lat, lng, s.cfg.PartnerSearchRadiusMeters)
	if err != nil {
		if errors.Is(err, partnerserrors.ErrNoMatch) {
			return nil, apperrors.NoPartnerAvailable(city)
		}
		s.cfg.Log.Error("Partner matching query failed", "city", city, "error", err)
		return nil, apperrors.Internal("Partner matching failed", err)
	}

	s.cfg.Log.Info("Matched nearest available partner",
		"partner_id", partner.ID,
		"city", city,
		"distance_km", geo.HaversineKm(lat, lng, partner.Location.Latitude(), partner.Location.Longitude()),
	)
	return partner, nil
}

func (s *partnerService) AddBooking(ctx context.Context, partnerID, bookingID string) error {
	if err := s.repo.AddBooking(ctx, partnerID, bookingID); err != nil {
		return s.mapRepoError(err, partnerID)
	}

	s.cfg.Log.Info("Partner marked busy",
		"partner_id", partnerID,
		"booking_id", bookingID,
	)
	return nil
}

// ReleaseFromBooking detaches the booking and restores availability. Only
// a busy partner flips back to online; an administratively offline partner
// stays offline.
func (s *partnerService) ReleaseFromBooking(ctx context.Context, partnerID, bookingID string) error {
	if err := s.repo.RemoveBooking(ctx, partnerID, bookingID); err != nil {
		return s.mapRepoError(err, partnerID)
	}

	partner, err := s.repo.FindByID(ctx, partnerID)
	if err != nil {
		return s.mapRepoError(err, partnerID)
	}

	if partner.Status == model.PartnerBusy && len(partner.CurrentBookings) == 0 {
		if err := s.repo.SetStatus(ctx, partnerID, model.PartnerOnline); err != nil {
			return s.mapRepoError(err, partnerID)
		}
	}

	s.cfg.Log.Info("Partner released from booking",
		"partner_id", partnerID,
		"booking_id", bookingID,
	)
	return nil
}

// UpdateLocation applies one GPS report: validate, count it against the
// fixed rate window, persist, fan out, append to history. The window
// counter includes rejected reports, so a partner flooding past the limit
// keeps being rejected until the window rolls over.
func (s *partnerService) UpdateLocation(ctx context.Context, partnerID string, lat, lng float64) (*model.GPSUpdate, error) {
	if err := geo.ValidateCoordinates(lat, lng); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	now := s.now()

	count, err := s.tracking.IncrementRateWindow(ctx, partnerID, now, s.cfg.GPSRateWindow)
	if err != nil {
		s.cfg.Log.Error("GPS rate window increment failed", "partner_id", partnerID, "error", err)
		return nil, apperrors.Internal("Failed to rate limit GPS update", err)
	}
	if count > int64(s.cfg.GPSRateLimit) {
		return nil, apperrors.RateLimited(fmt.Sprintf("GPS update rate limit exceeded for partner %s", partnerID))
	}

	if err := s.repo.SetLocation(ctx, partnerID, model.NewGeoPoint(lat, lng), now); err != nil {
		return nil, s.mapRepoError(err, partnerID)
	}

	update := &model.GPSUpdate{Lat: lat, Lng: lng, Timestamp: now}

	if _, err := s.bus.Publish(ctx, model.ChannelPartnerGPSUpdate, map[string]any{
		"partnerId": partnerID,
		"lat":       lat,
		"lng":       lng,
	}); err != nil {
		s.cfg.Log.Warn("Failed to publish gps update",
			"partner_id", partnerID,
			"error", err,
		)
	}

	if err := s.tracking.PushHistory(ctx, partnerID, *update, s.cfg.GPSHistorySize, s.cfg.GPSHistoryTTL); err != nil {
		// History is best-effort; the accepted update already persisted.
		s.cfg.Log.Warn("Failed to append gps history",
			"partner_id", partnerID,
			"error", err,
		)
	}

	return update, nil
}

func (s *partnerService) GPSHistory(ctx context.Context, partnerID string, limit int) ([]model.GPSUpdate, error) {
	if limit <= 0 || limit > s.cfg.GPSHistorySize {
		limit = s.cfg.GPSHistorySize
	}

	updates, err := s.tracking.History(ctx, partnerID, limit)
	if err != nil {
		s.cfg.Log.Error("Failed to read gps history", "partner_id", partnerID, "error", err)
		return nil, apperrors.Internal("Failed to read GPS history", err)
	}
	return updates, nil
}

func (s *partnerService) mapRepoError(err error, id string) error {
	switch {
	case errors.Is(err, partnerserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Partner", id)
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("Partner lookup failed", err)
	}
}
