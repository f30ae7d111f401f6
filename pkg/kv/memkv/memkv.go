// Package memkv is an in-process kv.Store. Multi-item writes are atomic under a single mutex.
package memkv

import (
	"context"
	"reflect"
	"sync"

	"github.com/Astemirdum/library-kv-service/pkg/kv"
)

type Store struct {
	mu     sync.RWMutex
	tables map[string]map[string]kv.Item
}

var _ kv.Store = (*Store)(nil)

func New() *Store {
	return &Store{tables: make(map[string]map[string]kv.Item)}
}

func (s *Store) Put(_ context.Context, table string, item kv.Item, opts ...kv.WriteOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.applyLocks(kv.ApplyOptions(opts...)); err != nil {
		return err
	}
	s.table(table)[item.ID()] = item.Clone()
	return nil
}

func (s *Store) Get(_ context.Context, table, id string) (kv.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.tables[table][id]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return item.Clone(), nil
}

func (s *Store) Update(_ context.Context, table, id string, upd *kv.Update, opts ...kv.WriteOption) (kv.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.tables[table][id]
	if !ok {
		return nil, kv.ErrNotFound
	}
	if err := s.applyLocks(kv.ApplyOptions(opts...)); err != nil {
		return nil, err
	}
	merged := upd.ApplyTo(item)
	s.table(table)[id] = merged
	return merged.Clone(), nil
}

func (s *Store) Delete(_ context.Context, table, id string, opts ...kv.WriteOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table][id]; !ok {
		return kv.ErrNotFound
	}
	if err := s.applyLocks(kv.ApplyOptions(opts...)); err != nil {
		return err
	}
	delete(s.tables[table], id)
	return nil
}

func (s *Store) Scan(_ context.Context, table string, filters ...kv.Filter) ([]kv.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]kv.Item, 0, len(s.tables[table]))
	for _, item := range s.tables[table] {
		if matches(item, filters) {
			items = append(items, item.Clone())
		}
	}
	return items, nil
}

// applyLocks checks every acquired lock before touching anything, so a failed
// write leaves the store unchanged. Callers hold s.mu.
func (s *Store) applyLocks(o kv.WriteOptions) error {
	for _, l := range o.Acquire {
		if _, held := s.tables[l.Table][l.ID]; held {
			return kv.ErrConditionFailed
		}
	}
	for _, l := range o.Release {
		delete(s.tables[l.Table], l.ID)
	}
	for _, l := range o.Acquire {
		s.table(l.Table)[l.ID] = l.Item()
	}
	return nil
}

func (s *Store) table(name string) map[string]kv.Item {
	t, ok := s.tables[name]
	if !ok {
		t = make(map[string]kv.Item)
		s.tables[name] = t
	}
	return t
}

func matches(item kv.Item, filters []kv.Filter) bool {
	for _, f := range filters {
		if !reflect.DeepEqual(item[f.Name], f.Value) {
			return false
		}
	}
	return true
}
