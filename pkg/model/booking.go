package model

import "time"

// Booking lifecycle statuses. Transitions are monotonic except for
// cancellation, which is reachable from any non-terminal status.
const (
	StatusPending              = "PENDING"
	StatusPartnerAssigned      = "PARTNER_ASSIGNED"
	StatusDocumentsUnderReview = "DOCUMENTS_UNDER_REVIEW"
	StatusConfirmed            = "CONFIRMED"
	StatusCancelled            = "CANCELLED"
)

// Identity document types and review statuses.
const (
	DocTypeSelfie    = "SELFIE"
	DocTypeSignature = "SIGNATURE"

	DocStatusPending  = "PENDING"
	DocStatusApproved = "APPROVED"
	DocStatusRejected = "REJECTED"
)

// Document is an identity document owned by exactly one booking.
// Document types are unique within a booking's document list.
type Document struct {
	DocType    string     `json:"docType" bson:"docType" validate:"required,oneof=SELFIE SIGNATURE"`
	DocLink    string     `json:"docLink" bson:"docLink"`
	Status     string     `json:"status" bson:"status" validate:"required,oneof=PENDING APPROVED REJECTED"`
	ReviewedBy string     `json:"reviewedBy,omitempty" bson:"reviewedBy,omitempty"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty" bson:"reviewedAt,omitempty"`
}

// DocumentReview is a single review decision supplied by an admin.
type DocumentReview struct {
	DocType string `json:"docType" validate:"required"`
	Status  string `json:"status" validate:"required,oneof=APPROVED REJECTED"`
}

type Address struct {
	BuildingAreaName string  `json:"buildingAreaName" bson:"buildingAreaName"`
	HouseNumber      string  `json:"houseNumber" bson:"houseNumber"`
	StreetAddress    string  `json:"streetAddress" bson:"streetAddress"`
	Zip              string  `json:"zip" bson:"zip"`
	Latitude         float64 `json:"latitude" bson:"latitude" validate:"gte=-90,lte=90"`
	Longitude        float64 `json:"longitude" bson:"longitude" validate:"gte=-180,lte=180"`
}

type DeliveryWindow struct {
	StartHour int `json:"startHour" bson:"startHour" validate:"gte=0,lte=23"`
	EndHour   int `json:"endHour" bson:"endHour" validate:"gte=0,lte=23"`
}

type PlanSelection struct {
	Duration int     `json:"duration" bson:"duration"`
	Price    float64 `json:"price" bson:"price"`
}

type PriceBreakdown struct {
	BasePrice      float64 `json:"basePrice" bson:"basePrice"`
	DeliveryCharge float64 `json:"deliveryCharge" bson:"deliveryCharge"`
	GrandTotal     float64 `json:"grandTotal" bson:"grandTotal"`
}

type Booking struct {
	ID             string         `json:"id,omitempty" bson:"_id,omitempty"`
	UserID         string         `json:"userId" bson:"userId" validate:"required"`
	PackageID      string         `json:"packageId" bson:"packageId" validate:"required"`
	StartDate      time.Time      `json:"startDate" bson:"startDate" validate:"required"`
	EndDate        time.Time      `json:"endDate" bson:"endDate" validate:"required,gtfield=StartDate"`
	IsSelfPickup   bool           `json:"isSelfPickup" bson:"isSelfPickup"`
	Location       string         `json:"location" bson:"location" validate:"required"`
	DeliveryTime   DeliveryWindow `json:"deliveryTime" bson:"deliveryTime"`
	SelectedPlan   PlanSelection  `json:"selectedPlan" bson:"selectedPlan"`
	PriceBreakDown PriceBreakdown `json:"priceBreakDown" bson:"priceBreakDown"`
	Documents      []Document     `json:"document" bson:"document" validate:"dive"`
	Address        Address        `json:"address" bson:"address"`
	PartnerID      string         `json:"partnerId,omitempty" bson:"partnerId,omitempty"`
	Status         string         `json:"status" bson:"status" validate:"omitempty,oneof=PENDING PARTNER_ASSIGNED DOCUMENTS_UNDER_REVIEW CONFIRMED CANCELLED"`

	// Advisory annotation only; the Redis lease is the actual mutex.
	LockedBy string     `json:"lockedBy,omitempty" bson:"lockedBy,omitempty"`
	LockedAt *time.Time `json:"lockedAt,omitempty" bson:"lockedAt,omitempty"`

	AssignedBy  string     `json:"assignedBy,omitempty" bson:"assignedBy,omitempty"`
	AssignedAt  *time.Time `json:"assignedAt,omitempty" bson:"assignedAt,omitempty"`
	ReviewedBy  string     `json:"reviewedBy,omitempty" bson:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty" bson:"reviewedAt,omitempty"`
	ConfirmedBy string     `json:"confirmedBy,omitempty" bson:"confirmedBy,omitempty"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty" bson:"confirmedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// BookingUpdate carries the externally mutable subset of booking fields.
// Nil/zero fields are left untouched.
type BookingUpdate struct {
	StartDate    *time.Time      `json:"startDate,omitempty"`
	EndDate      *time.Time      `json:"endDate,omitempty"`
	IsSelfPickup *bool           `json:"isSelfPickup,omitempty"`
	DeliveryTime *DeliveryWindow `json:"deliveryTime,omitempty"`
	Address      *Address        `json:"address,omitempty"`
	Status       string          `json:"status,omitempty" validate:"omitempty,oneof=PENDING PARTNER_ASSIGNED DOCUMENTS_UNDER_REVIEW CONFIRMED CANCELLED"`
}

// BookingStats aggregates booking counts by lifecycle status.
type BookingStats struct {
	Total           int64 `json:"total"`
	Pending         int64 `json:"pending"`
	PartnerAssigned int64 `json:"partnerAssigned"`
	UnderReview     int64 `json:"underReview"`
	Confirmed       int64 `json:"confirmed"`
	Cancelled       int64 `json:"cancelled"`
}
