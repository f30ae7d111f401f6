package pgkv

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-kv-service/pkg/kv"
)

func newStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return New(mock, zap.NewNop()), mock
}

func TestStore_Put(t *testing.T) {
	s, mock := newStore(t)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO documents .* ON CONFLICT \(collection, id\) DO UPDATE SET body = EXCLUDED.body`).
		WithArgs("books", "b1", `{"id":"b1","title":"Dune"}`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Put(context.Background(), "books", kv.Item{"id": "b1", "title": "Dune"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PutAcquireConflict(t *testing.T) {
	s, mock := newStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("emprunts", "l2", `{"bookId":"book-1","id":"l2"}`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("emprunt_locks", "book-1", `{"id":"book-1","ownerId":"l2"}`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
	mock.ExpectRollback()

	err := s.Put(context.Background(), "emprunts", kv.Item{"id": "l2", "bookId": "book-1"},
		kv.Acquire(kv.Lock{Table: "emprunt_locks", ID: "book-1", Owner: "l2"}))
	require.ErrorIs(t, err, kv.ErrConditionFailed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get(t *testing.T) {
	s, mock := newStore(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT body FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs("books", "b1").
		WillReturnRows(pgxmock.NewRows([]string{"body"}).AddRow([]byte(`{"id":"b1","title":"Dune"}`)))
	mock.ExpectQuery(`SELECT body FROM documents`).
		WithArgs("books", "missing").
		WillReturnError(pgx.ErrNoRows)

	item, err := s.Get(context.Background(), "books", "b1")
	require.NoError(t, err)
	require.Equal(t, "Dune", item["title"])

	_, err = s.Get(context.Background(), "books", "missing")
	require.ErrorIs(t, err, kv.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Update(t *testing.T) {
	s, mock := newStore(t)
	defer mock.Close()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE documents SET body = body \|\| \$1::jsonb WHERE collection = \$2 AND id = \$3 RETURNING body`).
		WithArgs(`{"title":"New","updatedAt":"2026-03-01T10:00:00Z"}`, "books", "b1").
		WillReturnRows(pgxmock.NewRows([]string{"body"}).
			AddRow([]byte(`{"id":"b1","title":"New","updatedAt":"2026-03-01T10:00:00Z"}`)))
	mock.ExpectQuery(`UPDATE documents`).
		WithArgs(`{"updatedAt":"2026-03-01T10:00:00Z"}`, "books", "missing").
		WillReturnError(pgx.ErrNoRows)

	item, err := s.Update(context.Background(), "books", "b1", kv.NewUpdate(now).Set("title", "New"))
	require.NoError(t, err)
	require.Equal(t, "New", item["title"])

	_, err = s.Update(context.Background(), "books", "missing", kv.NewUpdate(now))
	require.ErrorIs(t, err, kv.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteReleasesLock(t *testing.T) {
	s, mock := newStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs("emprunts", "l1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs("emprunt_locks", "book-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	err := s.Delete(context.Background(), "emprunts", "l1",
		kv.Release(kv.Lock{Table: "emprunt_locks", ID: "book-1", Owner: "l1"}))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteMissing(t *testing.T) {
	s, mock := newStore(t)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM documents`).
		WithArgs("books", "missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.ErrorIs(t, s.Delete(context.Background(), "books", "missing"), kv.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ScanContainment(t *testing.T) {
	s, mock := newStore(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT body FROM documents WHERE collection = \$1 AND body @> \$2::jsonb ORDER BY id`).
		WithArgs("emprunts", `{"userId":"u1"}`).
		WillReturnRows(pgxmock.NewRows([]string{"body"}).
			AddRow([]byte(`{"id":"l1","userId":"u1"}`)).
			AddRow([]byte(`{"id":"l3","userId":"u1"}`)))

	items, err := s.Scan(context.Background(), "emprunts", kv.Eq("userId", "u1"))
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "l3", items[1].ID())
	require.NoError(t, mock.ExpectationsWereMet())
}
