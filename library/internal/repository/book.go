package repository

import (
	"context"

	"go.uber.org/zap"

	"github.com/Astemirdum/library-kv-service/library/internal/model"
	"github.com/Astemirdum/library-kv-service/pkg/kv"
)

// CategoryFinder resolves the categoryId of a book.
type CategoryFinder interface {
	GetByID(ctx context.Context, id string) (model.Category, error)
}

type BookRepository struct {
	t          table[model.Book]
	categories CategoryFinder
	opts       options
}

func NewBookRepository(store kv.Store, tableName string, categories CategoryFinder, log *zap.Logger, opts ...Option) *BookRepository {
	return &BookRepository{
		t:          newTable[model.Book](store, tableName, "Book", log.Named("repo")),
		categories: categories,
		opts:       newOptions(opts),
	}
}

func (r *BookRepository) Create(ctx context.Context, req model.CreateBook) (model.Book, error) {
	if _, err := r.categories.GetByID(ctx, req.CategoryID); err != nil {
		return model.Book{}, err
	}
	now := r.opts.now().UTC()
	b := model.Book{
		ID:              r.opts.newID(),
		Title:           req.Title,
		Author:          req.Author,
		CategoryID:      req.CategoryID,
		Image:           req.Image,
		Description:     req.Description,
		AvailableCopies: req.AvailableCopies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.t.put(ctx, b.ID, b); err != nil {
		return model.Book{}, creationFailed("book", err)
	}
	return b, nil
}

func (r *BookRepository) GetByID(ctx context.Context, id string) (model.Book, error) {
	return r.t.get(ctx, id)
}

func (r *BookRepository) List(ctx context.Context) ([]model.Book, error) {
	return r.t.scan(ctx)
}

func (r *BookRepository) ListByCategory(ctx context.Context, categoryID string) ([]model.Book, error) {
	return r.t.scan(ctx, kv.Eq("categoryId", categoryID))
}

func (r *BookRepository) Update(ctx context.Context, id string, patch model.BookPatch) (model.Book, error) {
	if _, err := r.GetByID(ctx, id); err != nil {
		return model.Book{}, err
	}
	if categoryID, ok := patch.CategoryID.Get(); ok {
		if _, err := r.categories.GetByID(ctx, categoryID); err != nil {
			return model.Book{}, err
		}
	}

	upd := kv.NewUpdate(r.opts.now())
	setIf(upd, "title", patch.Title)
	setIf(upd, "author", patch.Author)
	setIf(upd, "categoryId", patch.CategoryID)
	setIf(upd, "image", patch.Image)
	setIf(upd, "description", patch.Description)
	setIf(upd, "available_copies", patch.AvailableCopies)
	return r.t.update(ctx, id, upd)
}

func (r *BookRepository) Delete(ctx context.Context, id string) (model.Ack, error) {
	if _, err := r.GetByID(ctx, id); err != nil {
		return model.Ack{}, err
	}
	if err := r.t.delete(ctx, id); err != nil {
		return model.Ack{}, err
	}
	return r.t.deleted(id), nil
}
