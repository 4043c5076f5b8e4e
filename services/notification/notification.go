package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"bloomify/database/store"
	"bloomify/models"
	"bloomify/services/clock"
	"bloomify/services/queue"
	"bloomify/utils"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// windowPolicy decides what happens to a message when the WhatsApp
// session window is closed (§4.9).
type windowPolicy int

const (
	policySkipIfClosed windowPolicy = iota
	policyAlwaysSend
)

// closedWindowPolicy names, per kind, whether a closed WhatsApp window
// still gets a paid template. Anything clinic-initiated and
// time-sensitive (a booking, a call, a cancellation) always sends;
// softer status updates are dropped rather than billed.
var closedWindowPolicy = map[models.NotificationKind]windowPolicy{
	models.KindAppointmentBookedByStaff: policyAlwaysSend,
	models.KindArrivalConfirmed:         policySkipIfClosed,
	models.KindTokenCalled:              policyAlwaysSend,
	models.KindAppointmentCancelled:     policyAlwaysSend,
	models.KindDoctorRunningLate:        policyAlwaysSend,
	models.KindBreakUpdate:              policySkipIfClosed,
	models.KindAppointmentSkipped:       policyAlwaysSend,
	models.KindPeopleAhead:              policySkipIfClosed,
	models.KindConsultationStarted:      policyAlwaysSend,
	models.KindDailyReminder:            policyAlwaysSend,
	models.KindFreeFollowUpExpiry:       policySkipIfClosed,
	models.KindConsultationCompleted:    policySkipIfClosed,
	models.KindAIFallback:               policySkipIfClosed,
	models.KindBookingLink:              policyAlwaysSend,
}

// Dispatcher sends notifications through push and WhatsApp, applying
// the §4.9 toggle, window and token/reporting-time policies.
type Dispatcher struct {
	store    store.Store
	clock    *clock.Clock
	cache    *redis.Client
	push     PushSender
	whatsapp WhatsAppSender
	logger   *zap.Logger
}

// New builds a Dispatcher. cache may be nil, in which case the toggle
// lookup always falls through to the store.
func New(s store.Store, c *clock.Clock, push PushSender, whatsapp WhatsAppSender, cache *redis.Client, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Dispatcher{store: s, clock: c, cache: cache, push: push, whatsapp: whatsapp, logger: logger}
}

// Toggle returns the (whatsappEnabled, pwaEnabled) flags for one
// (clinic, kind) pair, cached for NotifCacheTTL (§5: "process-local,
// last-writer-wins"). Absent configuration defaults to both channels on.
func (d *Dispatcher) Toggle(ctx context.Context, clinicID string, kind models.NotificationKind) models.ChannelToggle {
	key := utils.NotifCachePrefix + clinicID + ":" + string(kind)

	if d.cache != nil {
		if raw, err := d.cache.Get(ctx, key).Result(); err == nil {
			var t models.ChannelToggle
			if json.Unmarshal([]byte(raw), &t) == nil {
				return t
			}
		}
	}

	toggle := models.ChannelToggle{WhatsappEnabled: true, PwaEnabled: true}
	doc, err := d.store.Get(ctx, "notificationToggles", clinicID+":"+string(kind))
	if err != nil {
		d.logger.Warn("notification: toggle lookup failed", zap.Error(err))
	} else if doc != nil {
		if v, ok := doc["whatsappEnabled"].(bool); ok {
			toggle.WhatsappEnabled = v
		}
		if v, ok := doc["pwaEnabled"].(bool); ok {
			toggle.PwaEnabled = v
		}
	}

	if d.cache != nil {
		if raw, err := json.Marshal(toggle); err == nil {
			d.cache.Set(ctx, key, raw, utils.NotifCacheTTL)
		}
	}
	return toggle
}

// DispatchRequest is one message to evaluate and (maybe) send.
type DispatchRequest struct {
	ClinicID        string
	Kind            models.NotificationKind
	Phone           string
	PushToken       string
	Appointment     models.Appointment
	Mode            models.TokenDistributionMode
	Now             time.Time
	// Extra carries fan-out specifics (position, peopleAhead,
	// breakMinutes) merged into the message body/variables.
	Extra map[string]string
}

// Dispatch sends req over every enabled, applicable channel and logs
// (never rolls back) on failure, per §4.9's failure semantics.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) bool {
	toggle := d.Toggle(ctx, req.ClinicID, req.Kind)
	token := visibleToken(req.Appointment, req.Mode)
	reportTime := d.clock.FormatTime(reportingTime(req.Appointment))
	title, body := buildMessage(req.Kind, token, reportTime, req.Extra)

	sentPush := false
	if toggle.PwaEnabled && req.PushToken != "" && d.push != nil {
		if err := d.push.Send(ctx, req.PushToken, title, body, req.Extra); err != nil {
			d.logger.Warn("notification: push send failed", zap.String("kind", string(req.Kind)), zap.Error(err))
		} else {
			sentPush = true
		}
	}

	sentWA := false
	if toggle.WhatsappEnabled && req.Phone != "" && d.whatsapp != nil {
		sentWA = d.dispatchWhatsApp(ctx, req, token, reportTime, body)
	}

	d.record(ctx, req, title, body, sentPush, sentWA)
	return sentPush || sentWA
}

func (d *Dispatcher) dispatchWhatsApp(ctx context.Context, req DispatchRequest, token, reportTime, body string) bool {
	session := d.loadSession(ctx, req.Phone)
	if session.WindowOpen(req.Now) {
		if err := d.whatsapp.SendFreeForm(ctx, req.Phone, body); err != nil {
			d.logger.Warn("notification: whatsapp free-form send failed", zap.Error(err))
			return false
		}
		return true
	}

	if closedWindowPolicy[req.Kind] == policySkipIfClosed {
		return false
	}

	sid, vars := templateFor(req.Kind, token, reportTime, req.Extra)
	if err := d.whatsapp.SendTemplate(ctx, req.Phone, sid, vars); err != nil {
		d.logger.Warn("notification: whatsapp template send failed", zap.Error(err))
		return false
	}
	return true
}

// loadSession fetches the patient's WhatsApp session by phone, defaulting
// to a closed window when none is on record.
func (d *Dispatcher) loadSession(ctx context.Context, phone string) models.WhatsAppSession {
	doc, err := d.store.Get(ctx, "whatsappSessions", phone)
	if err != nil || doc == nil {
		return models.WhatsAppSession{Phone: phone}
	}
	session := models.WhatsAppSession{Phone: phone}
	if v, ok := doc["lastUserMessageAt"].(time.Time); ok {
		session.LastUserMessageAt = v
	}
	if v, ok := doc["bookingState"].(string); ok {
		session.BookingState = v
	}
	if v, ok := doc["bookingData"].(map[string]any); ok {
		session.BookingData = v
	}
	return session
}

func (d *Dispatcher) record(ctx context.Context, req DispatchRequest, title, body string, sentPush, sentWA bool) {
	channel := models.ChannelPush
	if sentWA {
		channel = models.ChannelWhatsApp
	}
	notif := models.Notification{
		ID:        uuid.NewString(),
		ClinicID:  req.ClinicID,
		Kind:      req.Kind,
		Recipient: req.Phone,
		Channel:   channel,
		Title:     title,
		Body:      body,
		Data:      toAnyMap(req.Extra),
		Sent:      sentPush || sentWA,
		CreatedAt: req.Now,
	}
	err := d.store.Txn(ctx, func(ctx context.Context, tx store.Tx) error {
		tx.Set("notifications", notif.ID, notificationToDoc(notif))
		return nil
	})
	if err != nil {
		d.logger.Warn("notification: failed to record send", zap.Error(err))
	}
}

// visibleToken applies the §4.9 token-visibility policy.
func visibleToken(appt models.Appointment, mode models.TokenDistributionMode) string {
	if mode != models.DistributionClassic {
		return appt.TokenNumber
	}
	if appt.ClassicTokenNumber != "" &&
		!strings.HasPrefix(appt.ClassicTokenNumber, "A") &&
		!strings.HasPrefix(appt.ClassicTokenNumber, "W") {
		return appt.ClassicTokenNumber
	}
	if strings.HasPrefix(appt.TokenNumber, "W") {
		return appt.TokenNumber
	}
	return ""
}

// reportingTime applies the §4.9 reporting-time policy. ArriveByTime is
// already the -15min offset for advance bookings and the exact slot
// time for walk-ins (set once, at booking time, by the allocator), so
// no further adjustment happens here.
func reportingTime(appt models.Appointment) time.Time {
	if !appt.ArriveByTime.IsZero() {
		return appt.ArriveByTime
	}
	return appt.Time.Add(-15 * time.Minute)
}

func buildMessage(kind models.NotificationKind, token, reportTime string, extra map[string]string) (title, body string) {
	switch kind {
	case models.KindAppointmentBookedByStaff:
		return "Appointment booked", fmt.Sprintf("Your token is %s. Please arrive by %s.", token, reportTime)
	case models.KindArrivalConfirmed:
		return "Arrival confirmed", fmt.Sprintf("You're checked in. Your token is %s.", token)
	case models.KindTokenCalled:
		return "You're up", fmt.Sprintf("Token %s, please proceed to the consultation room.", token)
	case models.KindAppointmentCancelled:
		return "Appointment cancelled", fmt.Sprintf("Your appointment (token %s) has been cancelled.", token)
	case models.KindDoctorRunningLate:
		return "Doctor running late", fmt.Sprintf("The doctor is running behind by %s minutes.", extra["delayMinutes"])
	case models.KindBreakUpdate:
		return "Schedule update", fmt.Sprintf("The doctor is on a short break, back in %s minutes.", extra["breakMinutes"])
	case models.KindAppointmentSkipped:
		return "Token skipped", fmt.Sprintf("Token %s was skipped. Please check in at the desk.", token)
	case models.KindPeopleAhead:
		return "Queue update", fmt.Sprintf("You have %s people ahead of you (token %s).", extra["peopleAhead"], token)
	case models.KindConsultationStarted:
		return "Consultations started", fmt.Sprintf("The doctor has started. You are position %s in the queue (token %s).", extra["position"], token)
	case models.KindDailyReminder:
		return "Appointment reminder", fmt.Sprintf("Reminder: your appointment is coming up, token %s, arrive by %s.", token, reportTime)
	case models.KindFreeFollowUpExpiry:
		return "Follow-up expiring", "Your free follow-up window is about to expire."
	case models.KindConsultationCompleted:
		return "Consultation completed", fmt.Sprintf("Your consultation (token %s) is complete.", token)
	case models.KindAIFallback:
		return "Need help?", "We couldn't complete that automatically; a staff member will follow up."
	case models.KindBookingLink:
		return "Book your appointment", extra["link"]
	default:
		return string(kind), body
	}
}

// templateFor maps a kind to a Meta template name and its positional
// variables for a closed-window send.
func templateFor(kind models.NotificationKind, token, reportTime string, extra map[string]string) (string, map[string]string) {
	vars := map[string]string{"1": token, "2": reportTime}
	for k, v := range extra {
		vars[k] = v
	}
	return string(kind), vars
}

// ConsultationStartFanout implements the §4.9 consultation-start
// fan-out: when a session goes Out -> In, every non-terminal
// appointment in the session is notified with its position in queue
// order.
func (d *Dispatcher) ConsultationStartFanout(
	ctx context.Context,
	clinicID string,
	appointments []models.Appointment,
	mode models.TokenDistributionMode,
	recipient func(models.Appointment) (phone, pushToken string),
	now time.Time,
) {
	cmp := queue.ComparatorFor(mode)
	sorted := append([]models.Appointment(nil), appointments...)
	sort.SliceStable(sorted, func(i, j int) bool { return cmp(sorted[i], sorted[j]) })

	for idx, appt := range sorted {
		if appt.Status.IsTerminal() {
			continue
		}
		phone, pushToken := recipient(appt)
		d.Dispatch(ctx, DispatchRequest{
			ClinicID: clinicID, Kind: models.KindConsultationStarted,
			Phone: phone, PushToken: pushToken, Appointment: appt, Mode: mode,
			Now: now,
			Extra: map[string]string{"position": strconv.Itoa(idx)},
		})
	}
}

// PeopleAheadFanout implements the §4.9 people-ahead fan-out: on
// completion, the next up-to-3 non-terminal appointments are told how
// many people remain ahead of them and any break between.
func (d *Dispatcher) PeopleAheadFanout(
	ctx context.Context,
	clinicID string,
	upcoming []models.Appointment,
	mode models.TokenDistributionMode,
	breakMinutes *int,
	recipient func(models.Appointment) (phone, pushToken string),
	now time.Time,
) {
	limit := 3
	if len(upcoming) < limit {
		limit = len(upcoming)
	}
	for idx := 0; idx < limit; idx++ {
		appt := upcoming[idx]
		if appt.Status.IsTerminal() {
			continue
		}
		extra := map[string]string{"peopleAhead": strconv.Itoa(idx)}
		if breakMinutes != nil {
			extra["breakMinutes"] = strconv.Itoa(*breakMinutes)
		}
		phone, pushToken := recipient(appt)
		d.Dispatch(ctx, DispatchRequest{
			ClinicID: clinicID, Kind: models.KindPeopleAhead,
			Phone: phone, PushToken: pushToken, Appointment: appt, Mode: mode,
			Now: now, Extra: extra,
		})
	}
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func notificationToDoc(n models.Notification) store.Doc {
	return store.Doc{
		"id":        n.ID,
		"clinicId":  n.ClinicID,
		"kind":      string(n.Kind),
		"recipient": n.Recipient,
		"channel":   string(n.Channel),
		"title":     n.Title,
		"body":      n.Body,
		"data":      n.Data,
		"sent":      n.Sent,
		"createdAt": n.CreatedAt,
	}
}
