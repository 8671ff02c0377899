package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/book-library/library/internal/errs"
	"github.com/Astemirdum/book-library/library/internal/model"
)

const transactionColumns = `id, user_id, book_id, issue_date, return_date, status`

// CreateTransaction opens a transaction for an existing book. At most one
// transaction per book may be open; a second one fails with ErrAlreadyIssued.
// The book row is key-share locked so a concurrent DeleteBook, which locks it
// for update, waits for the insert instead of removing the book under it.
func (r *repository) CreateTransaction(ctx context.Context, userID, bookID int, issuedAt time.Time) (model.Transaction, error) {
	q := fmt.Sprintf(`
insert into %s (user_id, book_id, issue_date, status)
select $1, b.id, $3, $4 from %s b where b.id = $2
for key share of b
returning %s`, transactionsTableName, booksTableName, transactionColumns)

	var t model.Transaction
	if err := r.db.GetContext(ctx, &t, q, userID, bookID, issuedAt, model.StatusIssued); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Transaction{}, errs.ErrBookNotFound
		}
		if _, ok := uniqueViolation(err); ok {
			return model.Transaction{}, errs.ErrAlreadyIssued
		}
		if foreignKeyViolation(err) {
			return model.Transaction{}, errs.ErrUserNotFound
		}
		r.log.Error("CreateTransaction", zap.Int("user_id", userID), zap.Int("book_id", bookID), zap.Error(err))
		return model.Transaction{}, errors.Wrap(err, "insert transaction")
	}
	return t, nil
}

// ReturnTransaction closes an open transaction. Status and return_date are set
// by one statement. Returning an already returned transaction changes nothing
// and reports the stored row.
func (r *repository) ReturnTransaction(ctx context.Context, id int, returnedAt time.Time) (model.Transaction, error) {
	q := fmt.Sprintf(`
update %s
	set status = $3, return_date = $2
where id = $1 and status = $4
returning %s`, transactionsTableName, transactionColumns)

	var t model.Transaction
	err := r.db.GetContext(ctx, &t, q, id, returnedAt, model.StatusReturned, model.StatusIssued)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, errors.Wrap(err, "return transaction")
	}
	return r.GetTransaction(ctx, id)
}

func (r *repository) GetTransaction(ctx context.Context, id int) (model.Transaction, error) {
	q, args, err := qb.Select("id", "user_id", "book_id", "issue_date", "return_date", "status").
		From(transactionsTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Transaction{}, err
	}
	var t model.Transaction
	if err := r.db.GetContext(ctx, &t, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Transaction{}, errs.ErrTxNotFound
		}
		return model.Transaction{}, errors.Wrap(err, "select transaction")
	}
	return t, nil
}

func (r *repository) ListActive(ctx context.Context, userID int) ([]model.ActiveTransaction, error) {
	q, args, err := qb.Select("t.id").
		Column(sq.Expr("coalesce(b.title, ?) as book_title", model.UnknownBookTitle)).
		Columns("t.issue_date", "t.status").
		From(transactionsTableName+" t").
		LeftJoin(booksTableName+" b on b.id = t.book_id").
		Where(sq.Eq{"t.user_id": userID, "t.status": model.StatusIssued}).
		OrderBy("t.id").
		ToSql()
	if err != nil {
		return nil, err
	}
	r.log.Debug("ListActive", zap.String("query", q), zap.Any("args", args))

	items := make([]model.ActiveTransaction, 0)
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, errors.Wrap(err, "select active transactions")
	}
	return items, nil
}
