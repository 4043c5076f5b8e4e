// Package store defines the persistence interface consumed by the
// scheduler (§6). It models a document store with atomic multi-document
// transactions; the concrete implementation (Mongo) lives in mongostore.go.
// Everything above this interface — C2 through C9 — is store-agnostic.
package store

import "context"

// Doc is a generic document: the store is schema-less from the
// scheduler's point of view, which (de)serializes into its own models.
type Doc = map[string]any

// Filter is an equality/comparison predicate list passed to Query.
// Keys are field paths; values are compared with "$eq" unless the value
// itself is an Op (see Gt/Lt/In below).
type Filter map[string]any

// Op tags a comparison operator for use as a Filter value.
type Op struct {
	Operator string
	Value    any
}

func Eq(v any) Op  { return Op{"$eq", v} }
func Gte(v any) Op { return Op{"$gte", v} }
func Lte(v any) Op { return Op{"$lte", v} }
func In(v any) Op  { return Op{"$in", v} }

// Order is an ascending (false) or descending (true) sort on one field.
type Order struct {
	Field      string
	Descending bool
}

// ServerTimestamp is a write-side sentinel value: the store substitutes
// its own commit-time clock reading wherever this sentinel appears in a
// write payload.
type ServerTimestamp struct{}

// Increment is a write-side sentinel requesting an atomic $inc of Delta.
type Increment struct{ Delta int }

// ArrayUnion is a write-side sentinel requesting the store append Values
// to an array field without duplicating existing entries.
type ArrayUnion struct{ Values []any }

// Store is the persistence interface the scheduler is written against.
// Collection names are the plural lowercase entity name
// ("clinics", "doctors", "appointments", "reservations", "counters",
// "consultationCounters", "whatsappSessions", "campaignSends").
type Store interface {
	// Get fetches a single document by collection + id. Returns
	// (nil, nil) when absent — callers distinguish "not found" from
	// errors explicitly, never via a sentinel error.
	Get(ctx context.Context, collection, id string) (Doc, error)

	// Query runs filters + ordering over a collection, outside any
	// transaction (read-side views only: C6, C9).
	Query(ctx context.Context, collection string, filters Filter, order []Order) ([]Doc, error)

	// Txn runs fn inside a single atomic transaction. fn issues reads
	// via the passed Tx, then writes; at commit, if any document fn read
	// was concurrently written by another committed transaction, the
	// whole transaction aborts and Txn returns ErrTxnConflict so the
	// caller can retry (§5).
	Txn(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the read/write handle a Txn callback uses. Every Get/Query call
// through Tx is tracked for conflict detection at commit time.
type Tx interface {
	Get(ctx context.Context, collection, id string) (Doc, error)
	Query(ctx context.Context, collection string, filters Filter, order []Order) ([]Doc, error)
	Set(collection, id string, doc Doc)
	Update(collection, id string, patch Doc)
	Delete(collection, id string)
}

// ErrTxnConflict is returned by Txn when an optimistic-concurrency
// conflict aborted the transaction; the caller (C5) retries.
var ErrTxnConflict = &txnError{"transaction conflict: a read document was modified concurrently"}

type txnError struct{ msg string }

func (e *txnError) Error() string { return e.msg }
