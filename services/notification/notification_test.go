package notification

import (
	"context"
	"testing"
	"time"

	"bloomify/database/store"
	"bloomify/models"
	"bloomify/services/clock"
)

// fakeStore is a minimal, non-isolated store.Store for unit tests.
type fakeStore struct {
	data map[string]map[string]store.Doc
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]map[string]store.Doc{}}
}

func (f *fakeStore) put(collection, id string, doc store.Doc) {
	if f.data[collection] == nil {
		f.data[collection] = map[string]store.Doc{}
	}
	f.data[collection][id] = doc
}

func (f *fakeStore) Get(ctx context.Context, collection, id string) (store.Doc, error) {
	return f.data[collection][id], nil
}

func (f *fakeStore) Query(ctx context.Context, collection string, filters store.Filter, order []store.Order) ([]store.Doc, error) {
	var out []store.Doc
	for _, d := range f.data[collection] {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeStore) Txn(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return fn(ctx, &fakeTx{f})
}

type fakeTx struct{ s *fakeStore }

func (t *fakeTx) Get(ctx context.Context, collection, id string) (store.Doc, error) {
	return t.s.Get(ctx, collection, id)
}
func (t *fakeTx) Query(ctx context.Context, collection string, filters store.Filter, order []store.Order) ([]store.Doc, error) {
	return t.s.Query(ctx, collection, filters, order)
}
func (t *fakeTx) Set(collection, id string, doc store.Doc) { t.s.put(collection, id, doc) }
func (t *fakeTx) Update(collection, id string, patch store.Doc) {
	existing := t.s.data[collection][id]
	if existing == nil {
		existing = store.Doc{}
	}
	for k, v := range patch {
		existing[k] = v
	}
	t.s.put(collection, id, existing)
}
func (t *fakeTx) Delete(collection, id string) { delete(t.s.data[collection], id) }

// fakePush records every push send.
type fakePush struct {
	calls []string
	err   error
}

func (p *fakePush) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	p.calls = append(p.calls, token)
	return p.err
}

// fakeWhatsApp records free-form and template sends separately.
type fakeWhatsApp struct {
	freeForm []string
	template []string
}

func (w *fakeWhatsApp) SendFreeForm(ctx context.Context, to, text string) error {
	w.freeForm = append(w.freeForm, to)
	return nil
}
func (w *fakeWhatsApp) SendTemplate(ctx context.Context, to, contentSid string, variables map[string]string) error {
	w.template = append(w.template, to)
	return nil
}

func testClock(t *testing.T) *clock.Clock {
	t.Helper()
	c, err := clock.New("UTC")
	if err != nil {
		t.Fatalf("clock.New: %v", err)
	}
	return c
}

func TestToggle_DefaultsEnabledWhenAbsent(t *testing.T) {
	fs := newFakeStore()
	d := New(fs, testClock(t), nil, nil, nil, nil)

	toggle := d.Toggle(context.Background(), "clinic-1", models.KindTokenCalled)
	if !toggle.WhatsappEnabled || !toggle.PwaEnabled {
		t.Fatalf("expected both channels enabled by default, got %+v", toggle)
	}
}

func TestToggle_ReadsStoredOverride(t *testing.T) {
	fs := newFakeStore()
	fs.put("notificationToggles", "clinic-1:"+string(models.KindTokenCalled), store.Doc{
		"whatsappEnabled": false,
		"pwaEnabled":      true,
	})
	d := New(fs, testClock(t), nil, nil, nil, nil)

	toggle := d.Toggle(context.Background(), "clinic-1", models.KindTokenCalled)
	if toggle.WhatsappEnabled {
		t.Fatalf("expected whatsapp disabled by stored override")
	}
	if !toggle.PwaEnabled {
		t.Fatalf("expected pwa still enabled")
	}
}

func TestVisibleToken_AdvancedShowsTokenNumber(t *testing.T) {
	appt := models.Appointment{TokenNumber: "A1-001", ClassicTokenNumber: "007"}
	got := visibleToken(appt, models.DistributionAdvanced)
	if got != "A1-001" {
		t.Fatalf("expected advanced mode to show tokenNumber, got %q", got)
	}
}

func TestVisibleToken_ClassicPrefersClassicToken(t *testing.T) {
	appt := models.Appointment{TokenNumber: "A1-001", ClassicTokenNumber: "007"}
	got := visibleToken(appt, models.DistributionClassic)
	if got != "007" {
		t.Fatalf("expected classic token number, got %q", got)
	}
}

func TestVisibleToken_ClassicOmitsAdvancePrefixedToken(t *testing.T) {
	appt := models.Appointment{TokenNumber: "A1-001"}
	got := visibleToken(appt, models.DistributionClassic)
	if got != "" {
		t.Fatalf("expected A-prefixed token hidden in classic mode, got %q", got)
	}
}

func TestVisibleToken_ClassicShowsWalkInToken(t *testing.T) {
	appt := models.Appointment{TokenNumber: "W1-003"}
	got := visibleToken(appt, models.DistributionClassic)
	if got != "W1-003" {
		t.Fatalf("expected walk-in token visible in classic mode, got %q", got)
	}
}

func TestReportingTime_UsesArriveByTimeWhenSet(t *testing.T) {
	arriveBy := time.Date(2026, 1, 5, 9, 45, 0, 0, time.UTC)
	appt := models.Appointment{ArriveByTime: arriveBy, Time: arriveBy.Add(15 * time.Minute)}
	got := reportingTime(appt)
	if !got.Equal(arriveBy) {
		t.Fatalf("expected reporting time to equal arriveByTime, got %v", got)
	}
}

func TestReportingTime_FallsBackToTimeMinus15(t *testing.T) {
	slotTime := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	appt := models.Appointment{Time: slotTime}
	got := reportingTime(appt)
	want := slotTime.Add(-15 * time.Minute)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDispatch_SkipsPushWhenToggleDisabled(t *testing.T) {
	fs := newFakeStore()
	fs.put("notificationToggles", "clinic-1:"+string(models.KindTokenCalled), store.Doc{
		"whatsappEnabled": false,
		"pwaEnabled":      false,
	})
	push := &fakePush{}
	d := New(fs, testClock(t), push, nil, nil, nil)

	d.Dispatch(context.Background(), DispatchRequest{
		ClinicID: "clinic-1", Kind: models.KindTokenCalled,
		PushToken: "tok-1", Appointment: models.Appointment{TokenNumber: "A1-001"},
		Mode: models.DistributionAdvanced, Now: time.Now(),
	})

	if len(push.calls) != 0 {
		t.Fatalf("expected push suppressed by toggle, got %v", push.calls)
	}
}

func TestDispatchWhatsApp_OpenWindowSendsFreeForm(t *testing.T) {
	fs := newFakeStore()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	fs.put("whatsappSessions", "+10000000000", store.Doc{
		"lastUserMessageAt": now.Add(-1 * time.Hour),
	})
	wa := &fakeWhatsApp{}
	d := New(fs, testClock(t), nil, wa, nil, nil)

	d.Dispatch(context.Background(), DispatchRequest{
		ClinicID: "clinic-1", Kind: models.KindTokenCalled,
		Phone: "+10000000000", Appointment: models.Appointment{TokenNumber: "A1-001"},
		Mode: models.DistributionAdvanced, Now: now,
	})

	if len(wa.freeForm) != 1 {
		t.Fatalf("expected one free-form send, got %d", len(wa.freeForm))
	}
	if len(wa.template) != 0 {
		t.Fatalf("expected no template send, got %d", len(wa.template))
	}
}

func TestDispatchWhatsApp_ClosedWindowSkipIfClosed(t *testing.T) {
	fs := newFakeStore()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	// No whatsappSessions doc at all: window defaults to closed.
	wa := &fakeWhatsApp{}
	d := New(fs, testClock(t), nil, wa, nil, nil)

	sent := d.Dispatch(context.Background(), DispatchRequest{
		ClinicID: "clinic-1", Kind: models.KindPeopleAhead,
		Phone: "+10000000000", Appointment: models.Appointment{TokenNumber: "A1-001"},
		Mode: models.DistributionAdvanced, Now: now,
	})

	if sent {
		t.Fatalf("expected skipIfClosed kind to drop the send")
	}
	if len(wa.freeForm) != 0 || len(wa.template) != 0 {
		t.Fatalf("expected no whatsapp sends at all")
	}
}

func TestDispatchWhatsApp_ClosedWindowAlwaysSendUsesTemplate(t *testing.T) {
	fs := newFakeStore()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	wa := &fakeWhatsApp{}
	d := New(fs, testClock(t), nil, wa, nil, nil)

	sent := d.Dispatch(context.Background(), DispatchRequest{
		ClinicID: "clinic-1", Kind: models.KindTokenCalled,
		Phone: "+10000000000", Appointment: models.Appointment{TokenNumber: "A1-001"},
		Mode: models.DistributionAdvanced, Now: now,
	})

	if !sent {
		t.Fatalf("expected alwaysSend kind to deliver via template")
	}
	if len(wa.template) != 1 {
		t.Fatalf("expected one template send, got %d", len(wa.template))
	}
}

func TestConsultationStartFanout_OrdersAndSkipsTerminal(t *testing.T) {
	fs := newFakeStore()
	push := &fakePush{}
	d := New(fs, testClock(t), push, nil, nil, nil)

	appts := []models.Appointment{
		{ID: "a", SlotIndex: 2, Status: models.StatusConfirmed},
		{ID: "b", SlotIndex: 0, Status: models.StatusConfirmed},
		{ID: "c", SlotIndex: 1, Status: models.StatusCancelled},
	}

	var notified []string
	d.ConsultationStartFanout(context.Background(), "clinic-1", appts, models.DistributionAdvanced,
		func(appt models.Appointment) (string, string) {
			notified = append(notified, appt.ID)
			return "", "push-" + appt.ID
		}, time.Now())

	if len(push.calls) != 2 {
		t.Fatalf("expected 2 pushes (cancelled appt skipped), got %d", len(push.calls))
	}
	if notified[0] != "b" || notified[1] != "a" {
		t.Fatalf("expected fanout sorted by slot index (b, a), got %v", notified)
	}
}
