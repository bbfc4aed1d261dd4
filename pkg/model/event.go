package model

// Domain event channels. Delivery is at-most-once best-effort, in order
// within a single channel for a single publisher connection.
const (
	ChannelBookingPartnerAssigned   = "booking:partner:assigned"
	ChannelBookingDocumentsReviewed = "booking:documents:reviewed"
	ChannelBookingConfirmed         = "booking:confirmed"
	ChannelPartnerBookingAssigned   = "partner:booking:assigned"
	ChannelPartnerGPSUpdate         = "partner:gps:update"
)

// DomainChannels lists every channel the coordinator publishes on.
func DomainChannels() []string {
	return []string{
		ChannelBookingPartnerAssigned,
		ChannelBookingDocumentsReviewed,
		ChannelBookingConfirmed,
		ChannelPartnerBookingAssigned,
		ChannelPartnerGPSUpdate,
	}
}
