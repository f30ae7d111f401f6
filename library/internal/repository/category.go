package repository

import (
	"context"

	"go.uber.org/zap"

	"github.com/Astemirdum/library-kv-service/library/internal/model"
	"github.com/Astemirdum/library-kv-service/pkg/kv"
)

type CategoryRepository struct {
	t    table[model.Category]
	opts options
}

func NewCategoryRepository(store kv.Store, tableName string, log *zap.Logger, opts ...Option) *CategoryRepository {
	return &CategoryRepository{
		t:    newTable[model.Category](store, tableName, "Category", log.Named("repo")),
		opts: newOptions(opts),
	}
}

func (r *CategoryRepository) Create(ctx context.Context, req model.CreateCategory) (model.Category, error) {
	now := r.opts.now().UTC()
	c := model.Category{
		ID:          r.opts.newID(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.t.put(ctx, c.ID, c); err != nil {
		return model.Category{}, creationFailed("category", err)
	}
	return c, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (model.Category, error) {
	return r.t.get(ctx, id)
}

func (r *CategoryRepository) List(ctx context.Context) ([]model.Category, error) {
	return r.t.scan(ctx)
}

func (r *CategoryRepository) Update(ctx context.Context, id string, patch model.CategoryPatch) (model.Category, error) {
	if _, err := r.GetByID(ctx, id); err != nil {
		return model.Category{}, err
	}
	upd := kv.NewUpdate(r.opts.now())
	setIf(upd, "name", patch.Name)
	setIf(upd, "description", patch.Description)
	return r.t.update(ctx, id, upd)
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) (model.Ack, error) {
	if _, err := r.GetByID(ctx, id); err != nil {
		return model.Ack{}, err
	}
	if err := r.t.delete(ctx, id); err != nil {
		return model.Ack{}, err
	}
	return r.t.deleted(id), nil
}
