package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/book-library/library/internal/errs"
	"github.com/Astemirdum/book-library/library/internal/model"
	"github.com/Astemirdum/book-library/pkg/validate"
)

// AddBook registers a book by ISBN using the metadata provider. The ISBN is
// stored normalized; the local duplicate check runs before the provider is asked.
func (s *Service) AddBook(ctx context.Context, isbn string) (model.Book, error) {
	isbn = validate.NormalizeISBN(isbn)
	_, err := s.repo.GetBookByISBN(ctx, isbn)
	switch {
	case err == nil:
		return model.Book{}, errs.ErrBookExists
	case !errors.Is(err, errs.ErrNotFound):
		return model.Book{}, err
	}

	meta, err := s.lookup.Lookup(ctx, isbn)
	if err != nil {
		return model.Book{}, err
	}

	book, err := s.repo.CreateBook(ctx, model.Book{
		Title:  meta.Title,
		Author: meta.Author,
		ISBN:   isbn,
		Description: sql.NullString{
			String: meta.Description,
			Valid:  meta.Description != "",
		},
	})
	if err != nil {
		return model.Book{}, err
	}
	s.log.Info("book added", zap.String("isbn", isbn), zap.Int("id", book.ID))
	return book, nil
}

func (s *Service) ListBooks(ctx context.Context, page, size int) ([]model.Book, error) {
	return s.repo.ListBooks(ctx, page, size)
}

func (s *Service) SearchBooks(ctx context.Context, query string) ([]model.Book, error) {
	return s.repo.SearchBooks(ctx, strings.TrimSpace(query))
}

func (s *Service) GetBook(ctx context.Context, isbn string) (model.Book, error) {
	return s.repo.GetBookByISBN(ctx, validate.NormalizeISBN(isbn))
}

func (s *Service) RemoveBook(ctx context.Context, isbn string) error {
	isbn = validate.NormalizeISBN(isbn)
	if err := s.repo.DeleteBook(ctx, isbn); err != nil {
		return err
	}
	s.log.Info("book removed", zap.String("isbn", isbn))
	return nil
}
