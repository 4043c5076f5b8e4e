package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bloomify/database"
	"bloomify/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoStore implements Store against MongoDB, following the teacher's
// session/transaction wiring in database/repository/scheduler/transaction.go.
type MongoStore struct {
	db *mongo.Database
}

// NewMongoStore constructs a Store backed by the given Mongo database.
func NewMongoStore(dbName string) *MongoStore {
	return &MongoStore{db: database.MongoClient.Database(dbName)}
}

func (s *MongoStore) coll(collection string) *mongo.Collection {
	return s.db.Collection(collection)
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (Doc, error) {
	var doc bson.M
	err := s.coll(collection).FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s/%s: %w", collection, id, err)
	}
	return Doc(doc), nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, filters Filter, order []Order) ([]Doc, error) {
	mongoFilter := toBsonFilter(filters)
	opts := options.Find()
	if len(order) > 0 {
		sortDoc := bson.D{}
		for _, o := range order {
			dir := 1
			if o.Descending {
				dir = -1
			}
			sortDoc = append(sortDoc, bson.E{Key: o.Field, Value: dir})
		}
		opts.SetSort(sortDoc)
	}

	cur, err := s.coll(collection).Find(ctx, mongoFilter, opts)
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var docs []Doc
	for cur.Next(ctx) {
		var d bson.M
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", collection, err)
		}
		docs = append(docs, Doc(d))
	}
	return docs, cur.Err()
}

func toBsonFilter(filters Filter) bson.M {
	m := bson.M{}
	for field, v := range filters {
		if op, ok := v.(Op); ok {
			m[field] = bson.M{op.Operator: op.Value}
			continue
		}
		m[field] = v
	}
	return m
}

// Txn runs fn inside a Mongo session/transaction, retrying the whole
// attempt when the server reports a conflicting write at commit — the
// "reads-before-writes, abort & retry on conflict" contract from §5.
func (s *MongoStore) Txn(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	client := s.db.Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("store: could not start session: %w", err)
	}
	defer sess.EndSession(ctx)

	callback := func(sc mongo.SessionContext) (any, error) {
		tx := &mongoTx{store: s, sc: sc}
		if err := fn(sc, tx); err != nil {
			return nil, err
		}
		if err := tx.flush(sc); err != nil {
			return nil, err
		}
		return nil, nil
	}

	_, err = sess.WithTransaction(ctx, callback)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) || isWriteConflict(err) {
			return ErrTxnConflict
		}
		return fmt.Errorf("store: transaction failed: %w", err)
	}
	return nil
}

func isWriteConflict(err error) bool {
	if cmdErr, ok := err.(mongo.CommandError); ok {
		return cmdErr.HasErrorLabel("TransientTransactionError")
	}
	return false
}

// mongoTx buffers writes issued during a transaction and flushes them
// right before commit, the way BookSingleSlotTransactionally stages its
// insert+update pair inside one session callback.
type mongoTx struct {
	store *MongoStore
	sc    mongo.SessionContext

	mu      sync.Mutex
	writes  []pendingWrite
}

type writeKind int

const (
	writeSet writeKind = iota
	writeUpdate
	writeDelete
)

type pendingWrite struct {
	kind       writeKind
	collection string
	id         string
	doc        Doc
}

func (tx *mongoTx) Get(ctx context.Context, collection, id string) (Doc, error) {
	var doc bson.M
	err := tx.store.coll(collection).FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: tx get %s/%s: %w", collection, id, err)
	}
	return Doc(doc), nil
}

func (tx *mongoTx) Query(ctx context.Context, collection string, filters Filter, order []Order) ([]Doc, error) {
	return tx.store.Query(ctx, collection, filters, order)
}

func (tx *mongoTx) Set(collection, id string, doc Doc) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.writes = append(tx.writes, pendingWrite{kind: writeSet, collection: collection, id: id, doc: doc})
}

func (tx *mongoTx) Update(collection, id string, patch Doc) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.writes = append(tx.writes, pendingWrite{kind: writeUpdate, collection: collection, id: id, doc: patch})
}

func (tx *mongoTx) Delete(collection, id string) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.writes = append(tx.writes, pendingWrite{kind: writeDelete, collection: collection, id: id})
}

func (tx *mongoTx) flush(sc mongo.SessionContext) error {
	tx.mu.Lock()
	writes := tx.writes
	tx.mu.Unlock()

	for _, w := range writes {
		coll := tx.store.coll(w.collection)
		switch w.kind {
		case writeSet:
			body := resolveSentinels(w.doc)
			body["id"] = w.id
			_, err := coll.ReplaceOne(sc, bson.M{"id": w.id}, body, options.Replace().SetUpsert(true))
			if err != nil {
				return fmt.Errorf("store: set %s/%s: %w", w.collection, w.id, err)
			}
		case writeUpdate:
			update := toUpdateDoc(w.doc)
			_, err := coll.UpdateOne(sc, bson.M{"id": w.id}, update)
			if err != nil {
				return fmt.Errorf("store: update %s/%s: %w", w.collection, w.id, err)
			}
		case writeDelete:
			_, err := coll.DeleteOne(sc, bson.M{"id": w.id})
			if err != nil {
				return fmt.Errorf("store: delete %s/%s: %w", w.collection, w.id, err)
			}
		}
	}

	utils.GetLogger().Debug("store: flushed transaction writes", zap.Int("count", len(writes)))
	return nil
}

// resolveSentinels substitutes ServerTimestamp with the commit-time
// clock reading so a full document Set still honors the sentinel.
func resolveSentinels(doc Doc) bson.M {
	out := bson.M{}
	for k, v := range doc {
		if _, ok := v.(ServerTimestamp); ok {
			out[k] = time.Now().UTC()
			continue
		}
		out[k] = v
	}
	return out
}

// toUpdateDoc splits a patch into $set / $inc / $addToSet operators per
// field, honoring the ServerTimestamp / Increment / ArrayUnion sentinels
// named in §6.
func toUpdateDoc(patch Doc) bson.M {
	set := bson.M{}
	inc := bson.M{}
	addToSet := bson.M{}

	for field, v := range patch {
		switch val := v.(type) {
		case ServerTimestamp:
			set[field] = time.Now().UTC()
		case Increment:
			inc[field] = val.Delta
		case ArrayUnion:
			addToSet[field] = bson.M{"$each": val.Values}
		default:
			set[field] = val
		}
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	return update
}
