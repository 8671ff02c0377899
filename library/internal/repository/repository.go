package repository

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Astemirdum/book-library/library/internal/model"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go

type Repository interface {
	UserRepository
	BookRepository
	TransactionRepository
}

type UserRepository interface {
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	GetUser(ctx context.Context, username string) (model.User, error)
}

type BookRepository interface {
	CreateBook(ctx context.Context, book model.Book) (model.Book, error)
	GetBookByISBN(ctx context.Context, isbn string) (model.Book, error)
	GetBookByID(ctx context.Context, id int) (model.Book, error)
	ListBooks(ctx context.Context, page, size int) ([]model.Book, error)
	SearchBooks(ctx context.Context, query string) ([]model.Book, error)
	DeleteBook(ctx context.Context, isbn string) error
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, userID, bookID int, issuedAt time.Time) (model.Transaction, error)
	ReturnTransaction(ctx context.Context, id int, returnedAt time.Time) (model.Transaction, error)
	GetTransaction(ctx context.Context, id int) (model.Transaction, error)
	ListActive(ctx context.Context, userID int) ([]model.ActiveTransaction, error)
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	usersTableName        = `users`
	booksTableName        = `books`
	transactionsTableName = `transactions`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func uniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func foreignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
