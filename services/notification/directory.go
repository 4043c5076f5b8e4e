package notification

import (
	"context"

	"bloomify/database/store"
)

// StoreDirectory is the default PatientDirectory: a thin read over
// whatever the external patient-identity system has written into the
// store's "patients" collection. Patient profile CRUD itself is someone
// else's system; this only reads the two contact fields the dispatcher
// needs.
type StoreDirectory struct {
	store store.Store
}

// NewStoreDirectory builds a PatientDirectory backed by s.
func NewStoreDirectory(s store.Store) *StoreDirectory {
	return &StoreDirectory{store: s}
}

func (d *StoreDirectory) Contact(ctx context.Context, patientID string) (phone, pushToken string, err error) {
	doc, err := d.store.Get(ctx, "patients", patientID)
	if err != nil {
		return "", "", err
	}
	if doc == nil {
		return "", "", nil
	}
	phone, _ = doc["phone"].(string)
	pushToken, _ = doc["pushToken"].(string)
	return phone, pushToken, nil
}
