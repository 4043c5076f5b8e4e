package breaks

import (
	"context"
	"testing"

	"bloomify/database/store"
	"bloomify/models"
	"bloomify/services/allocator"
	"bloomify/services/clock"
)

// fakeStore is a minimal, non-isolated store.Store for unit tests: Txn
// just runs fn directly against the same collections, with no conflict
// detection. Good enough for exercising the break service's logic.
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
		if matches(d, filters) {
			out = append(out, d)
		}
	}
	return out, nil
}

func matches(d store.Doc, filters store.Filter) bool {
	for k, v := range filters {
		if d[k] != v {
			return false
		}
	}
	return true
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
func (t *fakeTx) Delete(collection, id string) {
	delete(t.s.data[collection], id)
}

func testDoctor() models.Doctor {
	return models.Doctor{
		ID:                 "doc-1",
		ClinicID:           "clinic-1",
		Name:               "Dr Test",
		Availability:       models.WeeklyAvailability{1: {{From: "10:00", To: "13:00"}}},
		AverageConsultMins: 15,
		Status:             models.StatusIn,
	}
}

func setup(t *testing.T) (*fakeStore, *clock.Clock, *Service) {
	t.Helper()
	fs := newFakeStore()
	c, err := clock.New("UTC")
	if err != nil {
		t.Fatalf("clock.New: %v", err)
	}
	fs.put("doctors", "doc-1", allocator.DoctorToDoc(testDoctor()))
	svc := New(fs, c, nil)
	return fs, c, svc
}

// 2026-01-05 is a Monday (weekday 1).
const testDate = "2026-01-05"

func TestAddBreak_CreatesBreakBlockRows(t *testing.T) {
	fs, _, svc := setup(t)

	err := svc.AddBreak(context.Background(), AddBreakRequest{
		DoctorID: "doc-1", Date: testDate, SessionIndex: 0, SlotIndices: []int{1, 2},
	})
	if err != nil {
		t.Fatalf("AddBreak: %v", err)
	}

	doctorDoc, _ := fs.Get(context.Background(), "doctors", "doc-1")
	doctor := allocator.DoctorFromDoc(doctorDoc)
	breaksOn := doctor.BreaksOn(testDate)
	if len(breaksOn) != 1 {
		t.Fatalf("expected 1 break period, got %d", len(breaksOn))
	}
	if breaksOn[0].DurationMinutes != 30 {
		t.Fatalf("expected 30 minute break, got %d", breaksOn[0].DurationMinutes)
	}

	var blockCount int
	for _, d := range fs.data["appointments"] {
		if d["bookedVia"] == string(models.BookedViaBreakBlock) {
			blockCount++
		}
	}
	if blockCount != 2 {
		t.Fatalf("expected 2 break block rows, got %d", blockCount)
	}
}

func TestAddBreak_RejectsFourthBreak(t *testing.T) {
	fs, _, svc := setup(t)
	_ = fs

	for i, rel := range []int{0, 2, 4} {
		if err := svc.AddBreak(context.Background(), AddBreakRequest{
			DoctorID: "doc-1", Date: testDate, SessionIndex: 0, SlotIndices: []int{rel},
		}); err != nil {
			t.Fatalf("break %d: %v", i, err)
		}
	}
	err := svc.AddBreak(context.Background(), AddBreakRequest{
		DoctorID: "doc-1", Date: testDate, SessionIndex: 0, SlotIndices: []int{6},
	})
	if err == nil {
		t.Fatalf("expected 4th break in one session to be rejected")
	}
}

func TestAddBreak_RejectsOverlap(t *testing.T) {
	_, _, svc := setup(t)
	if err := svc.AddBreak(context.Background(), AddBreakRequest{
		DoctorID: "doc-1", Date: testDate, SessionIndex: 0, SlotIndices: []int{2, 3},
	}); err != nil {
		t.Fatalf("first break: %v", err)
	}
	err := svc.AddBreak(context.Background(), AddBreakRequest{
		DoctorID: "doc-1", Date: testDate, SessionIndex: 0, SlotIndices: []int{3, 4},
	})
	if err == nil {
		t.Fatalf("expected overlapping break to be rejected")
	}
}

func TestAddBreak_MergesAdjacentBreak(t *testing.T) {
	fs, _, svc := setup(t)
	if err := svc.AddBreak(context.Background(), AddBreakRequest{
		DoctorID: "doc-1", Date: testDate, SessionIndex: 0, SlotIndices: []int{0, 1},
	}); err != nil {
		t.Fatalf("first break: %v", err)
	}
	if err := svc.AddBreak(context.Background(), AddBreakRequest{
		DoctorID: "doc-1", Date: testDate, SessionIndex: 0, SlotIndices: []int{2, 3},
	}); err != nil {
		t.Fatalf("second break: %v", err)
	}

	doctorDoc, _ := fs.Get(context.Background(), "doctors", "doc-1")
	doctor := allocator.DoctorFromDoc(doctorDoc)
	breaksOn := doctor.BreaksOn(testDate)
	if len(breaksOn) != 1 {
		t.Fatalf("expected the two adjacent breaks to merge into 1, got %d", len(breaksOn))
	}
	if breaksOn[0].DurationMinutes != 60 {
		t.Fatalf("expected merged break to span 60 minutes, got %d", breaksOn[0].DurationMinutes)
	}
}

func TestRemoveBreak_DeletesBlockRowsAndExtension(t *testing.T) {
	fs, _, svc := setup(t)
	if err := svc.AddBreak(context.Background(), AddBreakRequest{
		DoctorID: "doc-1", Date: testDate, SessionIndex: 0, SlotIndices: []int{0, 1},
	}); err != nil {
		t.Fatalf("AddBreak: %v", err)
	}

	doctorDoc, _ := fs.Get(context.Background(), "doctors", "doc-1")
	doctor := allocator.DoctorFromDoc(doctorDoc)
	breakID := doctor.BreaksOn(testDate)[0].ID

	if err := svc.RemoveBreak(context.Background(), RemoveBreakRequest{
		DoctorID: "doc-1", Date: testDate, SessionIndex: 0, BreakID: breakID,
	}); err != nil {
		t.Fatalf("RemoveBreak: %v", err)
	}

	doctorDoc, _ = fs.Get(context.Background(), "doctors", "doc-1")
	doctor = allocator.DoctorFromDoc(doctorDoc)
	if len(doctor.BreaksOn(testDate)) != 0 {
		t.Fatalf("expected break removed, got %+v", doctor.BreaksOn(testDate))
	}
	for _, d := range fs.data["appointments"] {
		if d["bookedVia"] == string(models.BookedViaBreakBlock) {
			t.Fatalf("expected break block rows deleted, found %+v", d)
		}
	}
}
