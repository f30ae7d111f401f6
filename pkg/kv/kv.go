// Package kv describes the key-value document store the library service persists to.
//
// Every table is addressed by a string name and every item by its "id" attribute.
// Drivers live in the sub-packages: dynamo (AWS DynamoDB), pgkv (Postgres JSONB)
// and memkv (in process).
package kv

import (
	"context"
	"errors"
	"maps"
)

// KeyAttr is the partition key attribute of every table.
const KeyAttr = "id"

var (
	// ErrNotFound is returned when no item exists for the requested key.
	ErrNotFound = errors.New("kv: item not found")
	// ErrConditionFailed is returned when a lock requested with Acquire is already held.
	ErrConditionFailed = errors.New("kv: condition failed")
)

// Store is the collaborator contract every driver implements.
type Store interface {
	Put(ctx context.Context, table string, item Item, opts ...WriteOption) error
	Get(ctx context.Context, table, id string) (Item, error)
	Update(ctx context.Context, table, id string, upd *Update, opts ...WriteOption) (Item, error)
	Delete(ctx context.Context, table, id string, opts ...WriteOption) error
	Scan(ctx context.Context, table string, filters ...Filter) ([]Item, error)
}

// Item is a single stored document.
type Item map[string]any

// ID returns the key attribute of the item.
func (i Item) ID() string {
	id, _ := i[KeyAttr].(string)
	return id
}

func (i Item) Clone() Item {
	return maps.Clone(i)
}

// Filter restricts a Scan to items whose attribute equals the value.
type Filter struct {
	Name  string
	Value any
}

func Eq(name string, value any) Filter {
	return Filter{Name: name, Value: value}
}

// Lock is a marker item that can exist at most once per (Table, ID).
// Writes acquire and release locks atomically with the main item.
type Lock struct {
	Table string
	ID    string
	Owner string
}

const lockOwnerAttr = "ownerId"

// Item returns the stored form of the lock.
func (l Lock) Item() Item {
	return Item{KeyAttr: l.ID, lockOwnerAttr: l.Owner}
}

type WriteOptions struct {
	Acquire []Lock
	Release []Lock
}

// HasLocks reports whether the write has to run as a multi-item transaction.
func (o WriteOptions) HasLocks() bool {
	return len(o.Acquire) > 0 || len(o.Release) > 0
}

type WriteOption func(*WriteOptions)

// Acquire makes the write fail with ErrConditionFailed when the lock item already exists.
func Acquire(l Lock) WriteOption {
	return func(o *WriteOptions) {
		o.Acquire = append(o.Acquire, l)
	}
}

// Release removes the lock item together with the write.
func Release(l Lock) WriteOption {
	return func(o *WriteOptions) {
		o.Release = append(o.Release, l)
	}
}

func ApplyOptions(opts ...WriteOption) WriteOptions {
	var o WriteOptions
	for _, op := range opts {
		op(&o)
	}
	return o
}
