// Package pgkv implements kv.Store on a single Postgres table of JSONB documents.
//
// Tables of the key-value model become values of the "collection" column; lock
// items live in the same table, so the unique (collection, id) key is what makes
// an Acquire fail.
package pgkv

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-kv-service/pkg/kv"
)

// Pool is the part of *pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// querier is satisfied by both Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const documentsTableName = `documents`

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Store struct {
	pool Pool
	log  *zap.Logger
}

var _ kv.Store = (*Store)(nil)

func New(pool Pool, log *zap.Logger) *Store {
	return &Store{
		pool: pool,
		log:  log.Named("pgkv"),
	}
}

func (s *Store) Put(ctx context.Context, table string, item kv.Item, opts ...kv.WriteOption) error {
	body, err := kv.EncodeJSON(item)
	if err != nil {
		return err
	}
	query, args, err := qb.Insert(documentsTableName).
		Columns("collection", "id", "body").
		Values(table, item.ID(), sq.Expr("?::jsonb", string(body))).
		Suffix("ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body").
		ToSql()
	if err != nil {
		return err
	}

	return s.write(ctx, kv.ApplyOptions(opts...), func(q querier) error {
		_, err := q.Exec(ctx, query, args...)
		return err
	})
}

func (s *Store) Get(ctx context.Context, table, id string) (kv.Item, error) {
	query, args, err := qb.Select("body").
		From(documentsTableName).
		Where(sq.Eq{"collection": table, "id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var body []byte
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, kv.ErrNotFound
		}
		return nil, err
	}
	return kv.DecodeJSON(body)
}

func (s *Store) Update(ctx context.Context, table, id string, upd *kv.Update, opts ...kv.WriteOption) (kv.Item, error) {
	patch := make(kv.Item)
	for _, a := range upd.Assignments() {
		patch[a.Name] = a.Value
	}
	data, err := kv.EncodeJSON(patch)
	if err != nil {
		return nil, err
	}
	query, args, err := qb.Update(documentsTableName).
		Set("body", sq.Expr("body || ?::jsonb", string(data))).
		Where(sq.Eq{"collection": table, "id": id}).
		Suffix("RETURNING body").
		ToSql()
	if err != nil {
		return nil, err
	}

	var body []byte
	err = s.write(ctx, kv.ApplyOptions(opts...), func(q querier) error {
		if err := q.QueryRow(ctx, query, args...).Scan(&body); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return kv.ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return kv.DecodeJSON(body)
}

func (s *Store) Delete(ctx context.Context, table, id string, opts ...kv.WriteOption) error {
	query, args, err := qb.Delete(documentsTableName).
		Where(sq.Eq{"collection": table, "id": id}).
		ToSql()
	if err != nil {
		return err
	}

	return s.write(ctx, kv.ApplyOptions(opts...), func(q querier) error {
		tag, err := q.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return kv.ErrNotFound
		}
		return nil
	})
}

func (s *Store) Scan(ctx context.Context, table string, filters ...kv.Filter) ([]kv.Item, error) {
	q := qb.Select("body").
		From(documentsTableName).
		Where(sq.Eq{"collection": table}).
		OrderBy("id")
	if len(filters) > 0 {
		contains := make(kv.Item, len(filters))
		for _, f := range filters {
			contains[f.Name] = f.Value
		}
		data, err := kv.EncodeJSON(contains)
		if err != nil {
			return nil, err
		}
		q = q.Where("body @> ?::jsonb", string(data))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	bodies, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, err
	}

	items := make([]kv.Item, 0, len(bodies))
	for _, body := range bodies {
		item, err := kv.DecodeJSON(body)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// write runs fn directly when there are no locks, otherwise inside a transaction
// together with the lock statements.
func (s *Store) write(ctx context.Context, o kv.WriteOptions, fn func(q querier) error) (err error) {
	if !o.HasLocks() {
		return fn(s.pool)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	for _, l := range o.Release {
		if err = releaseLock(ctx, tx, l); err != nil {
			return err
		}
	}
	for _, l := range o.Acquire {
		if err = acquireLock(ctx, tx, l); err != nil {
			return err
		}
	}
	return nil
}

func acquireLock(ctx context.Context, q querier, l kv.Lock) error {
	body, err := kv.EncodeJSON(l.Item())
	if err != nil {
		return err
	}
	query, args, err := qb.Insert(documentsTableName).
		Columns("collection", "id", "body").
		Values(l.Table, l.ID, sq.Expr("?::jsonb", string(body))).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return kv.ErrConditionFailed
		}
		return err
	}
	return nil
}

func releaseLock(ctx context.Context, q querier, l kv.Lock) error {
	query, args, err := qb.Delete(documentsTableName).
		Where(sq.Eq{"collection": l.Table, "id": l.ID}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, query, args...)
	return err
}
