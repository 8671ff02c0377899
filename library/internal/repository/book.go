package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/book-library/library/internal/errs"
	"github.com/Astemirdum/book-library/library/internal/model"
)

var bookColumns = []string{"id", "title", "author", "isbn", "description"}

func (r *repository) CreateBook(ctx context.Context, book model.Book) (model.Book, error) {
	q, args, err := qb.Insert(booksTableName).
		Columns("title", "author", "isbn", "description").
		Values(book.Title, book.Author, book.ISBN, book.Description).
		Suffix("returning id, title, author, isbn, description").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var created model.Book
	if err := r.db.GetContext(ctx, &created, q, args...); err != nil {
		if _, ok := uniqueViolation(err); ok {
			return model.Book{}, errs.ErrBookExists
		}
		r.log.Error("CreateBook", zap.String("q", q), zap.Error(err))
		return model.Book{}, errors.Wrap(err, "insert book")
	}
	return created, nil
}

func (r *repository) GetBookByISBN(ctx context.Context, isbn string) (model.Book, error) {
	return r.getBook(ctx, sq.Eq{"isbn": isbn})
}

func (r *repository) GetBookByID(ctx context.Context, id int) (model.Book, error) {
	return r.getBook(ctx, sq.Eq{"id": id})
}

func (r *repository) getBook(ctx context.Context, where sq.Eq) (model.Book, error) {
	q, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := r.db.GetContext(ctx, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrBookNotFound
		}
		return model.Book{}, errors.Wrap(err, "select book")
	}
	return book, nil
}

func (r *repository) ListBooks(ctx context.Context, page, size int) ([]model.Book, error) {
	q := qb.Select(bookColumns...).
		From(booksTableName).
		OrderBy("id")
	if page > 0 && size > 0 {
		q = q.Limit(uint64(size)).Offset(uint64((page - 1) * size))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	books := make([]model.Book, 0)
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, errors.Wrap(err, "select books")
	}
	return books, nil
}

func (r *repository) SearchBooks(ctx context.Context, query string) ([]model.Book, error) {
	pattern := "%" + escapeLike(query) + "%"
	q, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Or{
			sq.ILike{"title": pattern},
			sq.ILike{"author": pattern},
		}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	r.log.Debug("SearchBooks", zap.String("query", q), zap.Any("args", args))

	books := make([]model.Book, 0)
	if err := r.db.SelectContext(ctx, &books, q, args...); err != nil {
		return nil, errors.Wrap(err, "search books")
	}
	return books, nil
}

// DeleteBook removes the book unless it is currently issued.
func (r *repository) DeleteBook(ctx context.Context, isbn string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck
		}
	}()

	var bookID int
	q := fmt.Sprintf(`select id from %s where isbn = $1 for update`, booksTableName)
	if err = tx.QueryRowxContext(ctx, q, isbn).Scan(&bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.ErrBookNotFound
		}
		return errors.Wrap(err, "lock book")
	}

	var open bool
	q = fmt.Sprintf(`select exists(select 1 from %s where book_id = $1 and status = $2)`, transactionsTableName)
	if err = tx.QueryRowxContext(ctx, q, bookID, model.StatusIssued).Scan(&open); err != nil {
		return errors.Wrap(err, "open transactions")
	}
	if open {
		err = errs.ErrBookIssued
		return err
	}

	q = fmt.Sprintf(`delete from %s where id = $1`, booksTableName)
	if _, err = tx.ExecContext(ctx, q, bookID); err != nil {
		return errors.Wrap(err, "delete book")
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

func escapeLike(s string) string {
	var b []rune
	for _, c := range s {
		if c == '%' || c == '_' || c == '\\' {
			b = append(b, '\\')
		}
		b = append(b, c)
	}
	return string(b)
}
