package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Astemirdum/library-kv-service/library/internal/errs"
	"github.com/Astemirdum/library-kv-service/library/internal/events"
	"github.com/Astemirdum/library-kv-service/library/internal/model"
	"github.com/Astemirdum/library-kv-service/library/internal/repository"
)

type CategoryRepository interface {
	Create(ctx context.Context, req model.CreateCategory) (model.Category, error)
	GetByID(ctx context.Context, id string) (model.Category, error)
	List(ctx context.Context) ([]model.Category, error)
	Update(ctx context.Context, id string, patch model.CategoryPatch) (model.Category, error)
	Delete(ctx context.Context, id string) (model.Ack, error)
}

type BookRepository interface {
	Create(ctx context.Context, req model.CreateBook) (model.Book, error)
	GetByID(ctx context.Context, id string) (model.Book, error)
	List(ctx context.Context) ([]model.Book, error)
	ListByCategory(ctx context.Context, categoryID string) ([]model.Book, error)
	Update(ctx context.Context, id string, patch model.BookPatch) (model.Book, error)
	Delete(ctx context.Context, id string) (model.Ack, error)
}

type EmpruntRepository interface {
	Create(ctx context.Context, req model.CreateEmprunt) (model.Emprunt, error)
	GetByID(ctx context.Context, id string) (model.Emprunt, error)
	List(ctx context.Context) ([]model.Emprunt, error)
	ListByBook(ctx context.Context, bookID string) ([]model.Emprunt, error)
	ListByUser(ctx context.Context, userID string) ([]model.Emprunt, error)
	Update(ctx context.Context, id string, patch model.EmpruntPatch) (model.Emprunt, error)
	Delete(ctx context.Context, id string) (model.Ack, error)
}

var (
	_ CategoryRepository = (*repository.CategoryRepository)(nil)
	_ BookRepository     = (*repository.BookRepository)(nil)
	_ EmpruntRepository  = (*repository.EmpruntRepository)(nil)
)

type Service struct {
	log        *zap.Logger
	categories CategoryRepository
	books      BookRepository
	emprunts   EmpruntRepository
	events     events.Publisher
	now        func() time.Time
}

func NewService(
	categories CategoryRepository,
	books BookRepository,
	emprunts EmpruntRepository,
	publisher events.Publisher,
	log *zap.Logger,
) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		log:        log.Named("service"),
		categories: categories,
		books:      books,
		emprunts:   emprunts,
		events:     publisher,
		now:        time.Now,
	}
}

func (s *Service) CreateCategory(ctx context.Context, req model.CreateCategory) (model.Category, error) {
	return s.categories.Create(ctx, req)
}

func (s *Service) GetCategory(ctx context.Context, id string) (model.Category, error) {
	return s.categories.GetByID(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.categories.List(ctx)
}

func (s *Service) UpdateCategory(ctx context.Context, id string, patch model.CategoryPatch) (model.Category, error) {
	return s.categories.Update(ctx, id, patch)
}

// DeleteCategory refuses to delete a category that books still reference.
func (s *Service) DeleteCategory(ctx context.Context, id string) (model.Ack, error) {
	books, err := s.books.ListByCategory(ctx, id)
	if err != nil {
		return model.Ack{}, err
	}
	if len(books) > 0 {
		return model.Ack{}, fmt.Errorf("Category with ID %s is referenced by %d book(s): %w", id, len(books), errs.ErrConflict)
	}
	return s.categories.Delete(ctx, id)
}

func (s *Service) CreateBook(ctx context.Context, req model.CreateBook) (model.Book, error) {
	return s.books.Create(ctx, req)
}

func (s *Service) GetBook(ctx context.Context, id string) (model.Book, error) {
	return s.books.GetByID(ctx, id)
}

func (s *Service) ListBooks(ctx context.Context) ([]model.Book, error) {
	return s.books.List(ctx)
}

func (s *Service) UpdateBook(ctx context.Context, id string, patch model.BookPatch) (model.Book, error) {
	return s.books.Update(ctx, id, patch)
}

// DeleteBook refuses to delete a book that is on loan.
func (s *Service) DeleteBook(ctx context.Context, id string) (model.Ack, error) {
	loans, err := s.emprunts.ListByBook(ctx, id)
	if err != nil {
		return model.Ack{}, err
	}
	if len(loans) > 0 {
		return model.Ack{}, fmt.Errorf("Book with ID %s is on loan: %w", id, errs.ErrConflict)
	}
	return s.books.Delete(ctx, id)
}

func (s *Service) CreateEmprunt(ctx context.Context, req model.CreateEmprunt) (model.Emprunt, error) {
	e, err := s.emprunts.Create(ctx, req)
	if err != nil {
		return model.Emprunt{}, err
	}
	s.publish(ctx, model.EmpruntCreated, e)
	return e, nil
}

func (s *Service) GetEmprunt(ctx context.Context, id string) (model.Emprunt, error) {
	return s.emprunts.GetByID(ctx, id)
}

func (s *Service) ListEmprunts(ctx context.Context) ([]model.Emprunt, error) {
	return s.emprunts.List(ctx)
}

func (s *Service) ListEmpruntsByUser(ctx context.Context, userID string) ([]model.Emprunt, error) {
	return s.emprunts.ListByUser(ctx, userID)
}

func (s *Service) UpdateEmprunt(ctx context.Context, id string, patch model.EmpruntPatch) (model.Emprunt, error) {
	e, err := s.emprunts.Update(ctx, id, patch)
	if err != nil {
		return model.Emprunt{}, err
	}
	s.publish(ctx, model.EmpruntUpdated, e)
	return e, nil
}

func (s *Service) DeleteEmprunt(ctx context.Context, id string) (model.Ack, error) {
	e, err := s.emprunts.GetByID(ctx, id)
	if err != nil {
		return model.Ack{}, err
	}
	ack, err := s.emprunts.Delete(ctx, id)
	if err != nil {
		return model.Ack{}, err
	}
	s.publish(ctx, model.EmpruntDeleted, e)
	return ack, nil
}

// publish is best effort: the loan is already stored.
func (s *Service) publish(ctx context.Context, typ model.EmpruntEventType, e model.Emprunt) {
	ev := model.EmpruntEvent{
		Type:       typ,
		EmpruntID:  e.ID,
		BookID:     e.BookID,
		UserID:     e.UserID,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish emprunt event",
			zap.String("type", string(typ)),
			zap.String("id", e.ID),
			zap.Error(err))
	}
}
