// internal/store/store.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"
)

// ErrNotFound is returned by Get and Update when the document does not exist.
var ErrNotFound = errors.New("DOCUMENT_NOT_FOUND")

// Document is one remote document. Data holds JSON-shaped values only
// (map[string]interface{}, []interface{}, string, float64, bool, nil).
type Document struct {
	ID     string                 `json:"id"`
	Data   map[string]interface{} `json:"data"`
	Exists bool                   `json:"exists"`
}

// Predicate is an equality filter on a top-level field.
type Predicate struct {
	Field string
	Value interface{}
}

func Where(field string, value interface{}) Predicate {
	return Predicate{Field: field, Value: value}
}

// Query selects the documents of a collection matching every predicate.
type Query struct {
	Collection string
	Predicates []Predicate
}

func NewQuery(collection string, predicates ...Predicate) Query {
	return Query{Collection: collection, Predicates: predicates}
}

// Matches reports whether data satisfies every predicate.
func (q Query) Matches(data map[string]interface{}) bool {
	for _, p := range q.Predicates {
		want, err := normalizeValue(p.Value)
		if err != nil {
			return false
		}
		got, ok := data[p.Field]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func (q Query) String() string {
	s := q.Collection
	for _, p := range q.Predicates {
		s += fmt.Sprintf(" %s==%v", p.Field, p.Value)
	}
	return s
}

type (
	SnapshotFunc func(docs []Document)
	DocFunc      func(doc Document)
	ErrorFunc    func(err error)
	Unsubscribe  func()
)

// DocStore is the live document store the feed is built on.
//
// Subscribe and SubscribeDoc deliver an initial snapshot and then one snapshot
// per change, in receipt order per subscription. A delivered snapshot is always
// the full current result, never a delta. Unsubscribe is idempotent.
type DocStore interface {
	Subscribe(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error)
	SubscribeDoc(ctx context.Context, collection, id string, onDoc DocFunc, onError ErrorFunc) (Unsubscribe, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
}

// Writer creates and removes whole documents. Used by seeding and tests; the
// feed itself only ever calls Update.
type Writer interface {
	Set(ctx context.Context, collection, id string, data map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
}

// AdminStore is a DocStore that can also create and remove documents.
type AdminStore interface {
	DocStore
	Writer
}

// ==========================
// Update sentinels
// ==========================

type arrayUnionOp struct {
	values []interface{}
}

type serverTimestampOp struct{}

// ArrayUnion appends each value to the array field unless an equal element is
// already present. A missing or non-array field is replaced by a new array.
func ArrayUnion(values ...interface{}) interface{} {
	return arrayUnionOp{values: values}
}

// ServerTimestamp is replaced by the store's clock at write time.
func ServerTimestamp() interface{} {
	return serverTimestampOp{}
}

// ApplyUpdate returns a copy of data with fields applied. data is not modified.
func ApplyUpdate(data, fields map[string]interface{}, now time.Time) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(data)+len(fields))
	for k, v := range data {
		out[k] = v
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, field := range keys {
		switch op := fields[field].(type) {
		case arrayUnionOp:
			existing, _ := out[field].([]interface{})
			merged := append([]interface{}{}, existing...)
			for _, v := range op.values {
				nv, err := normalizeValue(v)
				if err != nil {
					return nil, fmt.Errorf("field %s: %w", field, err)
				}
				if !containsValue(merged, nv) {
					merged = append(merged, nv)
				}
			}
			out[field] = merged
		case serverTimestampOp:
			out[field] = now.UTC().Format(time.RFC3339Nano)
		default:
			nv, err := normalizeValue(op)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field, err)
			}
			out[field] = nv
		}
	}
	return out, nil
}

// NormalizeData converts arbitrary Go values (structs, typed slices, time.Time)
// to their JSON-shaped equivalent so documents compare with reflect.DeepEqual.
func NormalizeData(data map[string]interface{}) (map[string]interface{}, error) {
	if data == nil {
		return map[string]interface{}{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return out, nil
}

func normalizeValue(v interface{}) (interface{}, error) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func containsValue(list []interface{}, v interface{}) bool {
	for _, item := range list {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}

// CloneData deep-copies a JSON-shaped map so receivers cannot mutate store state.
func CloneData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return CloneData(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// sortDocs orders documents by id so snapshots are deterministic.
func sortDocs(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}
