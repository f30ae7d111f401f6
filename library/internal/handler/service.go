package handler

import (
	"context"

	"github.com/Astemirdum/library-kv-service/library/internal/model"
	"github.com/Astemirdum/library-kv-service/library/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LibraryService interface {
	CreateCategory(ctx context.Context, req model.CreateCategory) (model.Category, error)
	GetCategory(ctx context.Context, id string) (model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	UpdateCategory(ctx context.Context, id string, patch model.CategoryPatch) (model.Category, error)
	DeleteCategory(ctx context.Context, id string) (model.Ack, error)

	CreateBook(ctx context.Context, req model.CreateBook) (model.Book, error)
	GetBook(ctx context.Context, id string) (model.Book, error)
	ListBooks(ctx context.Context) ([]model.Book, error)
	UpdateBook(ctx context.Context, id string, patch model.BookPatch) (model.Book, error)
	DeleteBook(ctx context.Context, id string) (model.Ack, error)

	CreateEmprunt(ctx context.Context, req model.CreateEmprunt) (model.Emprunt, error)
	GetEmprunt(ctx context.Context, id string) (model.Emprunt, error)
	ListEmprunts(ctx context.Context) ([]model.Emprunt, error)
	ListEmpruntsByUser(ctx context.Context, userID string) ([]model.Emprunt, error)
	UpdateEmprunt(ctx context.Context, id string, patch model.EmpruntPatch) (model.Emprunt, error)
	DeleteEmprunt(ctx context.Context, id string) (model.Ack, error)
}

var _ LibraryService = (*service.Service)(nil)
