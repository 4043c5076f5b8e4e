// Package notification implements C9: the notification dispatcher,
// deciding per-kind/per-channel toggles, the smart WhatsApp window,
// token-visibility and reporting-time policy, and the two fan-outs
// (consultation-start, people-ahead).
package notification

import "context"

// PushSender delivers one push message to a single device token.
// FCMSender is the concrete Firebase implementation (push.go).
type PushSender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// WhatsAppSender delivers one WhatsApp message, either free-form text
// (inside the 24h session window) or a paid Meta template (outside it).
// HTTPWhatsAppSender is the concrete gateway implementation (whatsapp.go).
type WhatsAppSender interface {
	SendFreeForm(ctx context.Context, to, text string) error
	SendTemplate(ctx context.Context, to, contentSid string, variables map[string]string) error
}

// PatientDirectory resolves a patient's contact channels. Patient
// identity lookup is someone else's system (an external collaborator);
// the dispatcher only needs this narrow read.
type PatientDirectory interface {
	Contact(ctx context.Context, patientID string) (phone, pushToken string, err error)
}
