package model

import "time"

// Partner connectivity/availability statuses. A partner with one or more
// current bookings must be busy; a partner with none is online unless an
// administrator set it offline.
const (
	PartnerOnline  = "online"
	PartnerBusy    = "busy"
	PartnerOffline = "offline"
)

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude] —
// the GeoJSON ordering, not the conversational lat/lng one.
type GeoPoint struct {
	Type        string     `json:"type" bson:"type"`
	Coordinates [2]float64 `json:"coordinates" bson:"coordinates"`
}

func NewGeoPoint(lat, lng float64) GeoPoint {
	return GeoPoint{
		Type:        "Point",
		Coordinates: [2]float64{lng, lat},
	}
}

func (p GeoPoint) Longitude() float64 {
	return p.Coordinates[0]
}

func (p GeoPoint) Latitude() float64 {
	return p.Coordinates[1]
}

type Partner struct {
	ID              string     `json:"id" bson:"_id"`
	Name            string     `json:"name" bson:"name"`
	City            string     `json:"city" bson:"city"`
	Status          string     `json:"status" bson:"status" validate:"omitempty,oneof=online busy offline"`
	Location        GeoPoint   `json:"location" bson:"location"`
	LastGPSUpdate   *time.Time `json:"lastGpsUpdate,omitempty" bson:"lastGpsUpdate,omitempty"`
	CurrentBookings []string   `json:"currentBookings,omitempty" bson:"currentBookings,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Available reports whether the partner can take new work.
func (p *Partner) Available() bool {
	return p.Status == PartnerOnline && len(p.CurrentBookings) == 0
}

// GPSUpdate is a single accepted location report, as stored in the
// per-partner history ring.
type GPSUpdate struct {
	Lat       float64   `json:"lat" validate:"gte=-90,lte=90"`
	Lng       float64   `json:"lng" validate:"gte=-180,lte=180"`
	Timestamp time.Time `json:"timestamp"`
}
