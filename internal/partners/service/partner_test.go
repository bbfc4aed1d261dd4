package service

import (
	"context"
	"sync"
	"testing"
	"time"

	partnerserrors "rentkar/internal/partners/errors"
	"rentkar/pkg/config"
	apperrors "rentkar/pkg/errors"
	"rentkar/pkg/logger"
	"rentkar/pkg/model"
	"rentkar/pkg/pubsub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePartnerRepo struct {
	mu       sync.Mutex
	partners map[string]*model.Partner
	nearest  *model.Partner
}

func newFakePartnerRepo() *fakePartnerRepo {
	return &fakePartnerRepo{partners: map[string]*model.Partner{}}
}

func (r *fakePartnerRepo) FindByID(_ context.Context, id string) (*model.Partner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	partner, ok := r.partners[id]
	if !ok {
		return nil, partnerserrors.ErrNotFound
	}
	clone := *partner
	clone.CurrentBookings = append([]string(nil), partner.CurrentBookings...)
	return &clone, nil
}

func (r *fakePartnerRepo) FindAll(_ context.Context, status string, _ int, _ int64) ([]*model.Partner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Partner
	for _, p := range r.partners {
		if status == "" || p.Status == status {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakePartnerRepo) Count(_ context.Context, status string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.partners {
		if status == "" || p.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *fakePartnerRepo) FindNearestAvailable(_ context.Context, _ string, _, _ float64, _ int) (*model.Partner, error) {
	if r.nearest == nil {
		return nil, partnerserrors.ErrNoMatch
	}
	return r.nearest, nil
}

func (r *fakePartnerRepo) SetLocation(_ context.Context, id string, point model.GeoPoint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	partner, ok := r.partners[id]
	if !ok {
		return partnerserrors.ErrNotFound
	}
	partner.Location = point
	partner.LastGPSUpdate = &at
	return nil
}

func (r *fakePartnerRepo) AddBooking(_ context.Context, partnerID, bookingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	partner, ok := r.partners[partnerID]
	if !ok {
		return partnerserrors.ErrNotFound
	}
	partner.CurrentBookings = append(partner.CurrentBookings, bookingID)
	partner.Status = model.PartnerBusy
	return nil
}

func (r *fakePartnerRepo) RemoveBooking(_ context.Context, partnerID, bookingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	partner, ok := r.partners[partnerID]
	if !ok {
		return partnerserrors.ErrNotFound
	}
	kept := partner.CurrentBookings[:0]
	for _, id := range partner.CurrentBookings {
		if id != bookingID {
			kept = append(kept, id)
		}
	}
	partner.CurrentBookings = kept
	return nil
}

func (r *fakePartnerRepo) SetStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	partner, ok := r.partners[id]
	if !ok {
		return partnerserrors.ErrNotFound
	}
	partner.Status = status
	return nil
}

func (r *fakePartnerRepo) EnsureIndexes(context.Context) error { return nil }

type fakeTracking struct {
	mu      sync.Mutex
	counts  map[string]int64
	history map[string][]model.GPSUpdate
	failInc bool
}

func newFakeTracking() *fakeTracking {
	return &fakeTracking{counts: map[string]int64{}, history: map[string][]model.GPSUpdate{}}
}

func (t *fakeTracking) IncrementRateWindow(_ context.Context, partnerID string, at time.Time, window time.Duration) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failInc {
		return 0, context.DeadlineExceeded
	}
	key := partnerID + ":" + at.Truncate(window).Format(time.RFC3339)
	t.counts[key]++
	return t.counts[key], nil
}

func (t *fakeTracking) PushHistory(_ context.Context, partnerID string, update model.GPSUpdate, size int, _ time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	hist := append([]model.GPSUpdate{update}, t.history[partnerID]...)
	if len(hist) > size {
		hist = hist[:size]
	}
	t.history[partnerID] = hist
	return nil
}

func (t *fakeTracking) History(_ context.Context, partnerID string, limit int) ([]model.GPSUpdate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	hist := t.history[partnerID]
	if len(hist) > limit {
		hist = hist[:limit]
	}
	return hist, nil
}

type recordedEvent struct {
	channel string
	payload map[string]any
}

type fakeBus struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload map[string]any) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{channel: channel, payload: payload})
	return 1, nil
}

func (b *fakeBus) Subscribe(string, pubsub.Handler) int { return 0 }
func (b *fakeBus) Unsubscribe(string, int)              {}
func (b *fakeBus) Close() error                         { return nil }

func testConfig() *config.Config {
	return &config.Config{
		GPSRateLimit:              6,
		GPSRateWindow:             time.Minute,
		GPSHistorySize:            100,
		GPSHistoryTTL:             24 * time.Hour,
		PartnerSearchRadiusMeters: 10000,
		Log:                       logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT}),
	}
}

func newTestService(repo *fakePartnerRepo, tracking *fakeTracking, bus *fakeBus) *partnerService {
	return &partnerService{
		repo:     repo,
		tracking: tracking,
		bus:      bus,
		cfg:      testConfig(),
		now:      func() time.Time { return time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC) },
	}
}

func seedPartner(repo *fakePartnerRepo, id, status string, bookings ...string) *model.Partner {
	partner := &model.Partner{
		ID:              id,
		Name:            "Partner " + id,
		City:            "mumbai",
		Status:          status,
		CurrentBookings: bookings,
	}
	repo.partners[id] = partner
	return partner
}

func TestUpdateLocation(t *testing.T) {
	t.Run("accepts update, publishes and records history", func(t *testing.T) {
		repo := newFakePartnerRepo()
		seedPartner(repo, "partner-1", model.PartnerOnline)
		tracking := newFakeTracking()
		bus := &fakeBus{}
		svc := newTestService(repo, tracking, bus)

		update, err := svc.UpdateLocation(context.Background(), "partner-1", 19.076, 72.8777)
		require.NoError(t, err)

		assert.Equal(t, 19.076, update.Lat)
		assert.Equal(t, 72.8777, update.Lng)

		stored := repo.partners["partner-1"]
		assert.Equal(t, 72.8777, stored.Location.Longitude())
		assert.Equal(t, 19.076, stored.Location.Latitude())
		require.NotNil(t, stored.LastGPSUpdate)

		require.Len(t, bus.events, 1)
		assert.Equal(t, model.ChannelPartnerGPSUpdate, bus.events[0].channel)
		assert.Equal(t, "partner-1", bus.events[0].payload["partnerId"])

		assert.Len(t, tracking.history["partner-1"], 1)
	})

	t.Run("rejects past the window limit", func(t *testing.T) {
		repo := newFakePartnerRepo()
		seedPartner(repo, "partner-1", model.PartnerOnline)
		svc := newTestService(repo, newFakeTracking(), &fakeBus{})

		for i := 0; i < 6; i++ {
			_, err := svc.UpdateLocation(context.Background(), "partner-1", 19.0, 72.0)
			require.NoError(t, err)
		}

		_, err := svc.UpdateLocation(context.Background(), "partner-1", 19.0, 72.0)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeRateLimited, apperrors.AsAppError(err).Code)
	})

	t.Run("rejected updates still count against the window", func(t *testing.T) {
		repo := newFakePartnerRepo()
		seedPartner(repo, "partner-1", model.PartnerOnline)
		tracking := newFakeTracking()
		svc := newTestService(repo, tracking, &fakeBus{})

		for i := 0; i < 10; i++ {
			svc.UpdateLocation(context.Background(), "partner-1", 19.0, 72.0)
		}

		var total int64
		for _, c := range tracking.counts {
			total += c
		}
		assert.Equal(t, int64(10), total)
	})

	t.Run("window rolls over with the clock", func(t *testing.T) {
		repo := newFakePartnerRepo()
		seedPartner(repo, "partner-1", model.PartnerOnline)
		svc := newTestService(repo, newFakeTracking(), &fakeBus{})

		for i := 0; i < 7; i++ {
			svc.UpdateLocation(context.Background(), "partner-1", 19.0, 72.0)
		}

		svc.now = func() time.Time { return time.Date(2026, 3, 14, 10, 31, 0, 0, time.UTC) }
		_, err := svc.UpdateLocation(context.Background(), "partner-1", 19.0, 72.0)
		assert.NoError(t, err)
	})

	t.Run("invalid coordinates rejected before counting", func(t *testing.T) {
		repo := newFakePartnerRepo()
		seedPartner(repo, "partner-1", model.PartnerOnline)
		tracking := newFakeTracking()
		svc := newTestService(repo, tracking, &fakeBus{})

		_, err := svc.UpdateLocation(context.Background(), "partner-1", 91.0, 72.0)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidInput, apperrors.AsAppError(err).Code)
		assert.Empty(t, tracking.counts)
	})

	t.Run("unknown partner is not found", func(t *testing.T) {
		svc := newTestService(newFakePartnerRepo(), newFakeTracking(), &fakeBus{})

		_, err := svc.UpdateLocation(context.Background(), "ghost", 19.0, 72.0)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNotFound, apperrors.AsAppError(err).Code)
	})
}

func TestFindNearestAvailable(t *testing.T) {
	t.Run("city normalized before matching", func(t *testing.T) {
		repo := newFakePartnerRepo()
		repo.nearest = &model.Partner{ID: "partner-3", City: "mumbai", Location: model.NewGeoPoint(19.0821, 72.8812)}
		svc := newTestService(repo, newFakeTracking(), &fakeBus{})

		partner, err := svc.FindNearestAvailable(context.Background(), "  Mumbai ", 19.076, 72.8777)
		require.NoError(t, err)
		assert.Equal(t, "partner-3", partner.ID)
	})

	t.Run("no match surfaces as no partner available", func(t *testing.T) {
		svc := newTestService(newFakePartnerRepo(), newFakeTracking(), &fakeBus{})

		_, err := svc.FindNearestAvailable(context.Background(), "pune", 18.52, 73.85)
		require.Error(t, err)

		appErr := apperrors.AsAppError(err)
		assert.Equal(t, apperrors.CodeNoPartnerAvailable, appErr.Code)
		assert.Contains(t, appErr.Message, "pune")
	})

	t.Run("empty city rejected", func(t *testing.T) {
		svc := newTestService(newFakePartnerRepo(), newFakeTracking(), &fakeBus{})

		_, err := svc.FindNearestAvailable(context.Background(), "   ", 18.52, 73.85)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidInput, apperrors.AsAppError(err).Code)
	})
}

func TestReleaseFromBooking(t *testing.T) {
	t.Run("last booking flips busy partner back online", func(t *testing.T) {
		repo := newFakePartnerRepo()
		seedPartner(repo, "partner-1", model.PartnerBusy, "booking-1")
		svc := newTestService(repo, newFakeTracking(), &fakeBus{})

		require.NoError(t, svc.ReleaseFromBooking(context.Background(), "partner-1", "booking-1"))
		assert.Equal(t, model.PartnerOnline, repo.partners["partner-1"].Status)
		assert.Empty(t, repo.partners["partner-1"].CurrentBookings)
	})

	t.Run("remaining bookings keep partner busy", func(t *testing.T) {
		repo := newFakePartnerRepo()
		seedPartner(repo, "partner-1", model.PartnerBusy, "booking-1", "booking-2")
		svc := newTestService(repo, newFakeTracking(), &fakeBus{})

		require.NoError(t, svc.ReleaseFromBooking(context.Background(), "partner-1", "booking-1"))
		assert.Equal(t, model.PartnerBusy, repo.partners["partner-1"].Status)
	})

	t.Run("offline partner stays offline", func(t *testing.T) {
		repo := newFakePartnerRepo()
		seedPartner(repo, "partner-1", model.PartnerOffline, "booking-1")
		svc := newTestService(repo, newFakeTracking(), &fakeBus{})

		require.NoError(t, svc.ReleaseFromBooking(context.Background(), "partner-1", "booking-1"))
		assert.Equal(t, model.PartnerOffline, repo.partners["partner-1"].Status)
	})
}

func TestGPSHistory(t *testing.T) {
	repo := newFakePartnerRepo()
	seedPartner(repo, "partner-1", model.PartnerOnline)
	tracking := newFakeTracking()
	svc := newTestService(repo, tracking, &fakeBus{})

	for i := 0; i < 3; i++ {
		_, err := svc.UpdateLocation(context.Background(), "partner-1", 19.0+float64(i)*0.001, 72.0)
		require.NoError(t, err)
	}

	history, err := svc.GPSHistory(context.Background(), "partner-1", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	// Newest first.
	assert.Equal(t, 19.002, history[0].Lat)
}
