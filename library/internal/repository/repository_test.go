package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/book-library/library/internal/errs"
	"github.com/Astemirdum/book-library/library/internal/model"
)

func newRepo(t *testing.T) (*repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	repo, err := NewRepository(sqlx.NewDb(db, "sqlmock"), zap.NewNop())
	require.NoError(t, err)
	return repo, mock
}

var (
	txColumns = []string{"id", "user_id", "book_id", "issue_date", "return_date", "status"}
	bookRows  = []string{"id", "title", "author", "isbn", "description"}
)

func TestRepository_CreateUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (username,hashed_password,role) VALUES ($1,$2,$3)`)).
			WithArgs("alice", "hash", "member").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "hashed_password", "role"}).
				AddRow(1, "alice", "hash", "member"))

		u, err := repo.CreateUser(ctx, model.User{Username: "alice", HashedPassword: "hash", Role: "member"})
		require.NoError(t, err)
		require.Equal(t, model.User{ID: 1, Username: "alice", HashedPassword: "hash", Role: "member"}, u)
	})

	t.Run("duplicate", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_username_key"})

		_, err := repo.CreateUser(ctx, model.User{Username: "alice", HashedPassword: "hash", Role: "member"})
		require.ErrorIs(t, err, errs.ErrUsernameTaken)
		require.ErrorIs(t, err, errs.ErrConflict)
	})
}

func TestRepository_GetUser_NotFound(t *testing.T) {
	t.Parallel()
	repo, mock := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, hashed_password, role FROM users WHERE username = $1 LIMIT 1`)).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUser(context.Background(), "ghost")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRepository_CreateBook_Duplicate(t *testing.T) {
	t.Parallel()
	repo, mock := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO books (title,author,isbn,description) VALUES ($1,$2,$3,$4)`)).
		WithArgs("Example", "Someone", "9780143424888", nil).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "books_isbn_key"})

	_, err := repo.CreateBook(context.Background(), model.Book{Title: "Example", Author: "Someone", ISBN: "9780143424888"})
	require.ErrorIs(t, err, errs.ErrBookExists)
}

func TestRepository_SearchBooks(t *testing.T) {
	t.Parallel()
	repo, mock := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, title, author, isbn, description FROM books WHERE (title ILIKE $1 OR author ILIKE $2) ORDER BY id`)).
		WithArgs("%exa%", "%exa%").
		WillReturnRows(sqlmock.NewRows(bookRows).
			AddRow(1, "Example Title", "Someone", "9780143424888", "desc"))

	books, err := repo.SearchBooks(context.Background(), "exa")
	require.NoError(t, err)
	require.Len(t, books, 1)
	require.Equal(t, "Example Title", books[0].Title)
	require.Equal(t, sql.NullString{String: "desc", Valid: true}, books[0].Description)
}

func TestRepository_SearchBooks_EscapesWildcards(t *testing.T) {
	t.Parallel()
	repo, mock := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM books WHERE`)).
		WithArgs(`%50\%%`, `%50\%%`).
		WillReturnRows(sqlmock.NewRows(bookRows))

	books, err := repo.SearchBooks(context.Background(), "50%")
	require.NoError(t, err)
	require.Empty(t, books)
}

func TestRepository_CreateTransaction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	issuedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mock    func(m sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "ok",
			mock: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(`insert into transactions (user_id, book_id, issue_date, status)`) +
					`(?s).*` + regexp.QuoteMeta(`where b.id = $2`) + `\s+` + regexp.QuoteMeta(`for key share of b`)).
					WithArgs(7, 3, issuedAt, "issued").
					WillReturnRows(sqlmock.NewRows(txColumns).AddRow(11, 7, 3, issuedAt, nil, "issued"))
			},
		},
		{
			name: "book missing",
			mock: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(`insert into transactions`)).
					WillReturnRows(sqlmock.NewRows(txColumns))
			},
			wantErr: errs.ErrBookNotFound,
		},
		{
			name: "already issued",
			mock: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(`insert into transactions`)).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "transactions_open_book_uidx"})
			},
			wantErr: errs.ErrAlreadyIssued,
		},
		{
			name: "user missing",
			mock: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(`insert into transactions`)).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})
			},
			wantErr: errs.ErrUserNotFound,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo, mock := newRepo(t)
			tt.mock(mock)

			tx, err := repo.CreateTransaction(ctx, 7, 3, issuedAt)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, model.StatusIssued, tx.Status)
			require.Nil(t, tx.ReturnDate)
			require.True(t, tx.Consistent())
		})
	}
}

func TestRepository_ReturnTransaction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	issuedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	returnedAt := issuedAt.Add(48 * time.Hour)
	firstReturn := issuedAt.Add(time.Hour)

	t.Run("open", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`update transactions`)).
			WithArgs(11, returnedAt, "returned", "issued").
			WillReturnRows(sqlmock.NewRows(txColumns).AddRow(11, 7, 3, issuedAt, returnedAt, "returned"))

		tx, err := repo.ReturnTransaction(ctx, 11, returnedAt)
		require.NoError(t, err)
		require.Equal(t, model.StatusReturned, tx.Status)
		require.NotNil(t, tx.ReturnDate)
		require.True(t, tx.Consistent())
	})

	t.Run("already returned is a no-op", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`update transactions`)).
			WillReturnRows(sqlmock.NewRows(txColumns))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, book_id, issue_date, return_date, status FROM transactions WHERE id = $1`)).
			WithArgs(11).
			WillReturnRows(sqlmock.NewRows(txColumns).AddRow(11, 7, 3, issuedAt, firstReturn, "returned"))

		tx, err := repo.ReturnTransaction(ctx, 11, returnedAt)
		require.NoError(t, err)
		require.Equal(t, firstReturn, *tx.ReturnDate)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`update transactions`)).
			WillReturnRows(sqlmock.NewRows(txColumns))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM transactions WHERE id = $1`)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.ReturnTransaction(ctx, 404, returnedAt)
		require.ErrorIs(t, err, errs.ErrTxNotFound)
	})
}

func TestRepository_ListActive(t *testing.T) {
	t.Parallel()
	repo, mock := newRepo(t)
	issuedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT t.id, coalesce(b.title, $1) as book_title, t.issue_date, t.status FROM transactions t LEFT JOIN books b on b.id = t.book_id WHERE`)).
		WithArgs(model.UnknownBookTitle, "issued", 7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "book_title", "issue_date", "status"}).
			AddRow(1, "Example", issuedAt, "issued").
			AddRow(2, model.UnknownBookTitle, issuedAt, "issued"))

	items, err := repo.ListActive(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, []model.ActiveTransaction{
		{ID: 1, BookTitle: "Example", IssueDate: issuedAt, Status: model.StatusIssued},
		{ID: 2, BookTitle: model.UnknownBookTitle, IssueDate: issuedAt, Status: model.StatusIssued},
	}, items)
}

func TestRepository_DeleteBook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`select id from books where isbn = $1 for update`)).
			WithArgs("9780143424888").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
		mock.ExpectQuery(regexp.QuoteMeta(`select exists(select 1 from transactions where book_id = $1 and status = $2)`)).
			WithArgs(3, "issued").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(regexp.QuoteMeta(`delete from books where id = $1`)).
			WithArgs(3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.DeleteBook(ctx, "9780143424888"))
	})

	t.Run("issued", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`select id from books`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
		mock.ExpectQuery(regexp.QuoteMeta(`select exists`)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		require.ErrorIs(t, repo.DeleteBook(ctx, "9780143424888"), errs.ErrBookIssued)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		repo, mock := newRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`select id from books`)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		require.ErrorIs(t, repo.DeleteBook(ctx, "0000000000"), errs.ErrBookNotFound)
	})
}
