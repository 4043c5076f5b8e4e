// File: bloomify/models/notification.go
package models

import "time"

// NotificationKind enumerates the dispatcher's message types (§4.9).
type NotificationKind string

const (
	KindAppointmentBookedByStaff NotificationKind = "appointment-booked-by-staff"
	KindArrivalConfirmed        NotificationKind = "arrival-confirmed"
	KindTokenCalled             NotificationKind = "token-called"
	KindAppointmentCancelled    NotificationKind = "appointment-cancelled"
	KindDoctorRunningLate       NotificationKind = "doctor-running-late"
	KindBreakUpdate             NotificationKind = "break-update"
	KindAppointmentSkipped      NotificationKind = "appointment-skipped"
	KindPeopleAhead             NotificationKind = "people-ahead"
	KindConsultationStarted     NotificationKind = "doctor-consultation-started"
	KindDailyReminder           NotificationKind = "daily-reminder"
	KindFreeFollowUpExpiry      NotificationKind = "free-follow-up-expiry"
	KindConsultationCompleted   NotificationKind = "consultation-completed"
	KindAIFallback              NotificationKind = "ai-fallback"
	KindBookingLink              NotificationKind = "booking-link"
)

// Channel is a notification transport.
type Channel string

const (
	ChannelPush     Channel = "push"
	ChannelWhatsApp Channel = "whatsapp"
)

// ChannelToggle is the enablement flag for one (kind, channel) pair.
type ChannelToggle struct {
	WhatsappEnabled bool `bson:"whatsappEnabled" json:"whatsappEnabled"`
	PwaEnabled      bool `bson:"pwaEnabled" json:"pwaEnabled"`
}

// Notification is a single dispatched (or attempted) message.
type Notification struct {
	ID        string           `bson:"id" json:"id"`
	ClinicID  string           `bson:"clinicId" json:"clinicId"`
	Kind      NotificationKind `bson:"kind" json:"kind"`
	Recipient string           `bson:"recipient" json:"recipient"` // phone or user id
	Channel   Channel          `bson:"channel" json:"channel"`
	Title     string           `bson:"title" json:"title"`
	Body      string           `bson:"body" json:"body"`
	Data      map[string]any   `bson:"data" json:"data"`
	Sent      bool             `bson:"sent" json:"sent"`
	CreatedAt time.Time        `bson:"createdAt" json:"createdAt"`
}

// WhatsAppSession tracks a patient's free-text 24h window, keyed by phone.
type WhatsAppSession struct {
	Phone             string         `bson:"phone" json:"phone"`
	LastUserMessageAt time.Time      `bson:"lastUserMessageAt" json:"lastUserMessageAt"`
	BookingState      string         `bson:"bookingState" json:"bookingState"`
	BookingData       map[string]any `bson:"bookingData" json:"bookingData"`
}

// WindowOpen reports whether the free-form 24h WhatsApp window is open.
func (s WhatsAppSession) WindowOpen(now time.Time) bool {
	return now.Sub(s.LastUserMessageAt) < 24*time.Hour
}

// CampaignSend is an append-only log entry for a templated/campaign send.
type CampaignSend struct {
	Ref      string    `bson:"ref" json:"ref"`
	Campaign string    `bson:"campaign" json:"campaign"`
	Medium   Channel   `bson:"medium" json:"medium"`
	ClinicID string    `bson:"clinicId" json:"clinicId"`
	Phone    string    `bson:"phone" json:"phone"`
	SentAt   time.Time `bson:"sentAt" json:"sentAt"`
}
