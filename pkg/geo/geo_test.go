package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lng     float64
		wantErr error
	}{
		{"valid mumbai", 19.2033, 72.8279, nil},
		{"valid extremes", 90, 180, nil},
		{"valid negative extremes", -90, -180, nil},
		{"latitude too high", 91, 0, ErrInvalidLatitude},
		{"latitude too low", -90.5, 0, ErrInvalidLatitude},
		{"longitude too high", 0, 180.1, ErrInvalidLongitude},
		{"longitude too low", 0, -181, ErrInvalidLongitude},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinates(tt.lat, tt.lng)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHaversineKm(t *testing.T) {
	// Same point.
	assert.InDelta(t, 0, HaversineKm(19.2033, 72.8279, 19.2033, 72.8279), 1e-9)

	// Mumbai CST to Pune station, roughly 120km.
	d := HaversineKm(18.9398, 72.8355, 18.5289, 73.8744)
	assert.InDelta(t, 120, d, 10)

	// One degree of latitude is roughly 111km anywhere.
	d = HaversineKm(0, 0, 1, 0)
	assert.InDelta(t, 111.19, d, 0.2)

	// Symmetry.
	assert.InDelta(t,
		HaversineKm(19.20, 72.82, 19.21, 72.83),
		HaversineKm(19.21, 72.83, 19.20, 72.82),
		1e-9,
	)
}
