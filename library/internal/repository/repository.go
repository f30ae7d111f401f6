package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-kv-service/library/internal/errs"
	"github.com/Astemirdum/library-kv-service/library/internal/model"
	"github.com/Astemirdum/library-kv-service/pkg/kv"
)

type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		o.newID = newID
	}
}

func newOptions(opts []Option) options {
	o := options{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, op := range opts {
		op(&o)
	}
	return o
}

// table is a typed view of one kv table. Every store error leaving it is one of
// errs.ErrNotFound, errs.ErrConflict or errs.ErrInternal.
type table[T any] struct {
	store  kv.Store
	name   string
	entity string
	log    *zap.Logger
}

func newTable[T any](store kv.Store, name, entity string, log *zap.Logger) table[T] {
	return table[T]{
		store:  store,
		name:   name,
		entity: entity,
		log:    log,
	}
}

func (t table[T]) put(ctx context.Context, id string, v T, opts ...kv.WriteOption) error {
	item, err := kv.Marshal(v)
	if err != nil {
		return t.translate("put", id, err)
	}
	if err := t.store.Put(ctx, t.name, item, opts...); err != nil {
		return t.translate("put", id, err)
	}
	return nil
}

func (t table[T]) get(ctx context.Context, id string) (T, error) {
	var v T
	item, err := t.store.Get(ctx, t.name, id)
	if err != nil {
		return v, t.translate("get", id, err)
	}
	if err := kv.Unmarshal(item, &v); err != nil {
		return v, t.translate("get", id, err)
	}
	return v, nil
}

func (t table[T]) scan(ctx context.Context, filters ...kv.Filter) ([]T, error) {
	items, err := t.store.Scan(ctx, t.name, filters...)
	if err != nil {
		return nil, t.translate("scan", "", err)
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := kv.Unmarshal(item, &v); err != nil {
			return nil, t.translate("scan", item.ID(), err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (t table[T]) update(ctx context.Context, id string, upd *kv.Update, opts ...kv.WriteOption) (T, error) {
	var v T
	item, err := t.store.Update(ctx, t.name, id, upd, opts...)
	if err != nil {
		return v, t.translate("update", id, err)
	}
	if err := kv.Unmarshal(item, &v); err != nil {
		return v, t.translate("update", id, err)
	}
	return v, nil
}

func (t table[T]) delete(ctx context.Context, id string, opts ...kv.WriteOption) error {
	if err := t.store.Delete(ctx, t.name, id, opts...); err != nil {
		return t.translate("delete", id, err)
	}
	return nil
}

func (t table[T]) translate(op, id string, err error) error {
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return t.notFound(id)
	case errors.Is(err, kv.ErrConditionFailed):
		return fmt.Errorf("%s with ID %s: %w", t.entity, id, errs.ErrConflict)
	}
	t.log.Error("store call failed",
		zap.String("op", op),
		zap.String("table", t.name),
		zap.String("id", id),
		zap.Error(err))
	return errors.Wrapf(errs.ErrInternal, "%s %s", op, t.entity)
}

func (t table[T]) notFound(id string) error {
	return fmt.Errorf("%s with ID %s %w", t.entity, id, errs.ErrNotFound)
}

func (t table[T]) deleted(id string) model.Ack {
	return model.Ack{Message: fmt.Sprintf("%s with ID %s deleted successfully", t.entity, id)}
}

// creationFailed keeps domain errors and turns internal failures into errs.ErrCreationFailed.
func creationFailed(entity string, err error) error {
	if errors.Is(err, errs.ErrInternal) {
		return errors.Wrapf(errs.ErrCreationFailed, "failed to create %s", entity)
	}
	return err
}

func setIf[T any](u *kv.Update, name string, o model.Optional[T]) {
	if v, ok := o.Get(); ok {
		u.Set(name, v)
	}
}
