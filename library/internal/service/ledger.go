package service

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/book-library/library/internal/errs"
	"github.com/Astemirdum/book-library/library/internal/model"
	"github.com/Astemirdum/book-library/pkg/auth"
	"github.com/Astemirdum/book-library/pkg/validate"
)

// Issue lends a book to a user. A book can have at most one open transaction.
func (s *Service) Issue(ctx context.Context, userID, bookID int) (model.Transaction, error) {
	t, err := s.repo.CreateTransaction(ctx, userID, bookID, s.clock())
	if err != nil {
		return model.Transaction{}, err
	}
	s.publish(ctx, model.EventIssued, t)
	return t, nil
}

// Return closes a transaction. Returning it again is a no-op and emits no event.
func (s *Service) Return(ctx context.Context, transactionID int) (model.Transaction, error) {
	now := s.clock()
	t, err := s.repo.ReturnTransaction(ctx, transactionID, now)
	if err != nil {
		return model.Transaction{}, err
	}
	if t.ReturnDate != nil && t.ReturnDate.Equal(now) {
		s.publish(ctx, model.EventReturned, t)
	}
	return t, nil
}

func (s *Service) ListActive(ctx context.Context, userID int) ([]model.ActiveTransaction, error) {
	return s.repo.ListActive(ctx, userID)
}

// IssueBook issues the book identified by ref to the named user. ref is an
// ISBN; a numeric ref matching no ISBN is tried as a book id.
func (s *Service) IssueBook(ctx context.Context, username, ref string) (model.Transaction, error) {
	user, err := s.CurrentUser(ctx, username)
	if err != nil {
		return model.Transaction{}, err
	}
	book, err := s.resolveBook(ctx, ref)
	if err != nil {
		return model.Transaction{}, err
	}
	return s.Issue(ctx, user.ID, book.ID)
}

// ReturnBook closes a transaction on behalf of the caller. Only the borrower
// or a librarian may return it.
func (s *Service) ReturnBook(ctx context.Context, username, role string, transactionID int) (model.Transaction, error) {
	user, err := s.CurrentUser(ctx, username)
	if err != nil {
		return model.Transaction{}, err
	}
	t, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return model.Transaction{}, err
	}
	if t.UserID != user.ID && !auth.HasRole(role, auth.RoleLibrarian) {
		return model.Transaction{}, errs.ErrForbidden
	}
	return s.Return(ctx, transactionID)
}

func (s *Service) MyBooks(ctx context.Context, username string) ([]model.ActiveTransaction, error) {
	user, err := s.CurrentUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.ListActive(ctx, user.ID)
}

func (s *Service) resolveBook(ctx context.Context, ref string) (model.Book, error) {
	book, err := s.repo.GetBookByISBN(ctx, validate.NormalizeISBN(ref))
	if err == nil || !errors.Is(err, errs.ErrNotFound) {
		return book, err
	}
	id, convErr := strconv.Atoi(ref)
	if convErr != nil || id <= 0 {
		return model.Book{}, err
	}
	return s.repo.GetBookByID(ctx, id)
}

func (s *Service) publish(ctx context.Context, typ model.EventType, t model.Transaction) {
	event := newTransactionEvent(typ, t, s.clock())
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("publish transaction event",
			zap.String("type", string(typ)),
			zap.Int("transaction_id", t.ID),
			zap.Error(err))
	}
}
