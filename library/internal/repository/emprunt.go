package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-kv-service/library/internal/errs"
	"github.com/Astemirdum/library-kv-service/library/internal/model"
	"github.com/Astemirdum/library-kv-service/pkg/kv"
)

// MaxLoanDays is the longest allowed span between loanDate and returnDate.
const MaxLoanDays = 15

// BookFinder resolves the bookId of a loan.
type BookFinder interface {
	GetByID(ctx context.Context, id string) (model.Book, error)
}

// EmpruntRepository stores loans. A book can be on loan at most once: every loan
// holds a lock item keyed by its bookId in the locks table, written atomically
// with the loan itself.
type EmpruntRepository struct {
	t          table[model.Emprunt]
	locksTable string
	books      BookFinder
	opts       options
}

// NewEmpruntRepository builds the loan repository. books may be nil, then bookId is not resolved.
func NewEmpruntRepository(
	store kv.Store, tableName, locksTable string, books BookFinder, log *zap.Logger, opts ...Option,
) *EmpruntRepository {
	return &EmpruntRepository{
		t:          newTable[model.Emprunt](store, tableName, "Emprunt", log.Named("repo")),
		locksTable: locksTable,
		books:      books,
		opts:       newOptions(opts),
	}
}

func (r *EmpruntRepository) Create(ctx context.Context, req model.CreateEmprunt) (model.Emprunt, error) {
	if err := r.ensureNotOnLoan(ctx, req.BookID, ""); err != nil {
		return model.Emprunt{}, err
	}
	now := r.opts.now().UTC()
	if err := ValidateLoanWindow(req.LoanDate, req.ReturnDate, now); err != nil {
		return model.Emprunt{}, err
	}
	if err := r.resolveBook(ctx, req.BookID); err != nil {
		return model.Emprunt{}, err
	}

	e := model.Emprunt{
		ID:         r.opts.newID(),
		UserID:     req.UserID,
		BookID:     req.BookID,
		LoanDate:   req.LoanDate,
		ReturnDate: req.ReturnDate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.t.put(ctx, e.ID, e, kv.Acquire(r.lock(e.BookID, e.ID))); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			return model.Emprunt{}, onLoan(e.BookID)
		}
		return model.Emprunt{}, creationFailed("emprunt", err)
	}
	return e, nil
}

func (r *EmpruntRepository) GetByID(ctx context.Context, id string) (model.Emprunt, error) {
	return r.t.get(ctx, id)
}

func (r *EmpruntRepository) List(ctx context.Context) ([]model.Emprunt, error) {
	return r.t.scan(ctx)
}

func (r *EmpruntRepository) ListByBook(ctx context.Context, bookID string) ([]model.Emprunt, error) {
	return r.t.scan(ctx, kv.Eq("bookId", bookID))
}

// ListByUser returns the loans of a user, most recently created first.
func (r *EmpruntRepository) ListByUser(ctx context.Context, userID string) ([]model.Emprunt, error) {
	loans, err := r.t.scan(ctx, kv.Eq("userId", userID))
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(loans, func(a, b model.Emprunt) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return loans, nil
}

// Update merges the patch and re-checks the loan window against the merged dates.
// The past-date rule applies only when loanDate itself changes. Moving the loan to
// another book transfers the lock.
func (r *EmpruntRepository) Update(ctx context.Context, id string, patch model.EmpruntPatch) (model.Emprunt, error) {
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return model.Emprunt{}, err
	}

	now := r.opts.now()
	loanDate, returnDate := cur.LoanDate, cur.ReturnDate
	var notBefore time.Time
	if v, ok := patch.LoanDate.Get(); ok {
		loanDate = v
		notBefore = now
	}
	if v, ok := patch.ReturnDate.Get(); ok {
		returnDate = v
	}
	if err := ValidateLoanWindow(loanDate, returnDate, notBefore); err != nil {
		return model.Emprunt{}, err
	}

	var writeOpts []kv.WriteOption
	if bookID, ok := patch.BookID.Get(); ok && bookID != cur.BookID {
		if err := r.ensureNotOnLoan(ctx, bookID, id); err != nil {
			return model.Emprunt{}, err
		}
		if err := r.resolveBook(ctx, bookID); err != nil {
			return model.Emprunt{}, err
		}
		writeOpts = append(writeOpts,
			kv.Release(r.lock(cur.BookID, id)),
			kv.Acquire(r.lock(bookID, id)))
	}

	upd := kv.NewUpdate(now)
	setIf(upd, "userId", patch.UserID)
	setIf(upd, "bookId", patch.BookID)
	setIf(upd, "loanDate", patch.LoanDate)
	setIf(upd, "returnDate", patch.ReturnDate)

	e, err := r.t.update(ctx, id, upd, writeOpts...)
	if err != nil {
		if bookID, ok := patch.BookID.Get(); ok && errors.Is(err, errs.ErrConflict) {
			return model.Emprunt{}, onLoan(bookID)
		}
		return model.Emprunt{}, err
	}
	return e, nil
}

func (r *EmpruntRepository) Delete(ctx context.Context, id string) (model.Ack, error) {
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return model.Ack{}, err
	}
	if err := r.t.delete(ctx, id, kv.Release(r.lock(cur.BookID, id))); err != nil {
		return model.Ack{}, err
	}
	return r.t.deleted(id), nil
}

// ensureNotOnLoan covers loans stored without a lock item.
func (r *EmpruntRepository) ensureNotOnLoan(ctx context.Context, bookID, exceptID string) error {
	loans, err := r.ListByBook(ctx, bookID)
	if err != nil {
		return err
	}
	for _, l := range loans {
		if l.ID != exceptID {
			return onLoan(bookID)
		}
	}
	return nil
}

func (r *EmpruntRepository) resolveBook(ctx context.Context, bookID string) error {
	if r.books == nil {
		return nil
	}
	_, err := r.books.GetByID(ctx, bookID)
	return err
}

func (r *EmpruntRepository) lock(bookID, loanID string) kv.Lock {
	return kv.Lock{Table: r.locksTable, ID: bookID, Owner: loanID}
}

func onLoan(bookID string) error {
	return fmt.Errorf("book %s is already on loan: %w", bookID, errs.ErrConflict)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	time.DateOnly,
}

func parseDate(field, s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%s %q is not an ISO-8601 date: %w", field, s, errs.ErrInvalidRequest)
}

// ValidateLoanWindow checks the dates of a loan. loanDate must not be before
// notBefore (skipped when zero); returnDate, when given, must fall within
// MaxLoanDays after loanDate.
func ValidateLoanWindow(loanDate, returnDate string, notBefore time.Time) error {
	loan, err := parseDate("loanDate", loanDate)
	if err != nil {
		return err
	}
	if !notBefore.IsZero() && loan.Before(notBefore) {
		return fmt.Errorf("loan date cannot be in the past: %w", errs.ErrInvalidRequest)
	}
	if returnDate == "" {
		return nil
	}
	ret, err := parseDate("returnDate", returnDate)
	if err != nil {
		return err
	}
	if ret.Before(loan) {
		return fmt.Errorf("return date cannot be before the loan date: %w", errs.ErrInvalidRequest)
	}
	if ret.Sub(loan) > MaxLoanDays*24*time.Hour {
		return fmt.Errorf("return date must be within %d days of the loan date: %w", MaxLoanDays, errs.ErrInvalidRequest)
	}
	return nil
}
