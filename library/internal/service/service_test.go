package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Astemirdum/library-kv-service/library/internal/errs"
	"github.com/Astemirdum/library-kv-service/library/internal/events"
	"github.com/Astemirdum/library-kv-service/library/internal/model"
	"github.com/Astemirdum/library-kv-service/library/internal/repository"
	"github.com/Astemirdum/library-kv-service/library/internal/service"
	"github.com/Astemirdum/library-kv-service/pkg/kv/memkv"
)

type recorder struct {
	events []model.EmpruntEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, e model.EmpruntEvent) error {
	r.events = append(r.events, e)
	return r.err
}

func newService(t *testing.T, pub events.Publisher) (*service.Service, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core)
	store := memkv.New()
	categories := repository.NewCategoryRepository(store, "categories", log)
	books := repository.NewBookRepository(store, "books", categories, log)
	emprunts := repository.NewEmpruntRepository(store, "emprunts", "emprunt_locks", books, log)
	return service.NewService(categories, books, emprunts, pub, log), logs
}

func loanDate() string {
	return time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
}

func TestService_DeleteRestrictions(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t, &recorder{})
	ctx := context.Background()

	c, err := svc.CreateCategory(ctx, model.CreateCategory{Name: "Fiction"})
	require.NoError(t, err)
	b, err := svc.CreateBook(ctx, model.CreateBook{Title: "T", Author: "A", CategoryID: c.ID, AvailableCopies: 3})
	require.NoError(t, err)
	l, err := svc.CreateEmprunt(ctx, model.CreateEmprunt{UserID: "U1", BookID: b.ID, LoanDate: loanDate()})
	require.NoError(t, err)

	_, err = svc.DeleteCategory(ctx, c.ID)
	require.ErrorIs(t, err, errs.ErrConflict)
	_, err = svc.DeleteBook(ctx, b.ID)
	require.ErrorIs(t, err, errs.ErrConflict)

	_, err = svc.DeleteEmprunt(ctx, l.ID)
	require.NoError(t, err)
	_, err = svc.DeleteBook(ctx, b.ID)
	require.NoError(t, err)
	ack, err := svc.DeleteCategory(ctx, c.ID)
	require.NoError(t, err)
	require.Contains(t, ack.Message, "deleted successfully")

	_, err = svc.DeleteCategory(ctx, c.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestService_EmpruntEvents(t *testing.T) {
	t.Parallel()
	pub := &recorder{}
	svc, _ := newService(t, pub)
	ctx := context.Background()

	c, err := svc.CreateCategory(ctx, model.CreateCategory{Name: "Fiction"})
	require.NoError(t, err)
	b, err := svc.CreateBook(ctx, model.CreateBook{Title: "T", Author: "A", CategoryID: c.ID})
	require.NoError(t, err)

	l, err := svc.CreateEmprunt(ctx, model.CreateEmprunt{UserID: "U1", BookID: b.ID, LoanDate: loanDate()})
	require.NoError(t, err)
	_, err = svc.CreateEmprunt(ctx, model.CreateEmprunt{UserID: "U2", BookID: b.ID, LoanDate: loanDate()})
	require.ErrorIs(t, err, errs.ErrConflict)

	_, err = svc.UpdateEmprunt(ctx, l.ID, model.EmpruntPatch{UserID: model.Some("U3")})
	require.NoError(t, err)
	_, err = svc.DeleteEmprunt(ctx, l.ID)
	require.NoError(t, err)

	require.Len(t, pub.events, 3, "failed writes publish nothing")
	require.Equal(t, model.EmpruntCreated, pub.events[0].Type)
	require.Equal(t, model.EmpruntUpdated, pub.events[1].Type)
	require.Equal(t, "U3", pub.events[1].UserID)
	require.Equal(t, model.EmpruntDeleted, pub.events[2].Type)
	for _, e := range pub.events {
		require.Equal(t, l.ID, e.EmpruntID)
		require.Equal(t, b.ID, e.BookID)
	}
}

func TestService_PublishFailureIsLogged(t *testing.T) {
	t.Parallel()
	pub := &recorder{err: errors.New("broker down")}
	svc, logs := newService(t, pub)
	ctx := context.Background()

	c, err := svc.CreateCategory(ctx, model.CreateCategory{Name: "Fiction"})
	require.NoError(t, err)
	b, err := svc.CreateBook(ctx, model.CreateBook{Title: "T", Author: "A", CategoryID: c.ID})
	require.NoError(t, err)

	l, err := svc.CreateEmprunt(ctx, model.CreateEmprunt{UserID: "U1", BookID: b.ID, LoanDate: loanDate()})
	require.NoError(t, err, "event delivery does not fail the request")

	got, err := svc.GetEmprunt(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, l.ID, got.ID)
	require.Equal(t, 1, logs.FilterMessage("publish emprunt event").Len())
}

func TestService_ListEmpruntsByUser(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t, nil)
	ctx := context.Background()

	c, err := svc.CreateCategory(ctx, model.CreateCategory{Name: "Fiction"})
	require.NoError(t, err)
	for _, user := range []string{"U1", "U2", "U1"} {
		b, err := svc.CreateBook(ctx, model.CreateBook{Title: "T", Author: "A", CategoryID: c.ID})
		require.NoError(t, err)
		_, err = svc.CreateEmprunt(ctx, model.CreateEmprunt{UserID: user, BookID: b.ID, LoanDate: loanDate()})
		require.NoError(t, err)
	}

	loans, err := svc.ListEmpruntsByUser(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, loans, 2)

	all, err := svc.ListEmprunts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}
