package handler

import (
	"context"

	"github.com/Astemirdum/book-library/library/internal/model"
	"github.com/Astemirdum/book-library/library/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LibraryService interface {
	AuthService
	CatalogService
	LedgerService
}

type AuthService interface {
	Register(ctx context.Context, req model.UserCreateRequest) (model.User, error)
	Authenticate(ctx context.Context, req model.AuthRequest) (model.AuthResponse, error)
}

type CatalogService interface {
	AddBook(ctx context.Context, isbn string) (model.Book, error)
	ListBooks(ctx context.Context, page, size int) ([]model.Book, error)
	SearchBooks(ctx context.Context, query string) ([]model.Book, error)
	GetBook(ctx context.Context, isbn string) (model.Book, error)
	RemoveBook(ctx context.Context, isbn string) error
}

type LedgerService interface {
	IssueBook(ctx context.Context, username, ref string) (model.Transaction, error)
	ReturnBook(ctx context.Context, username, role string, transactionID int) (model.Transaction, error)
	MyBooks(ctx context.Context, username string) ([]model.ActiveTransaction, error)
}

var _ LibraryService = (*service.Service)(nil)
