package service_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Astemirdum/book-library/library/internal/errs"
	"github.com/Astemirdum/book-library/library/internal/model"
	"github.com/Astemirdum/book-library/library/internal/repository"
)

// memRepo keeps the same rules as the postgres repository: unique usernames
// and isbns, one open transaction per book, conditional return.
type memRepo struct {
	mu    sync.Mutex
	users map[string]model.User
	books map[int]model.Book
	txs   map[int]model.Transaction
	seq   int
}

var _ repository.Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		users: make(map[string]model.User),
		books: make(map[int]model.Book),
		txs:   make(map[int]model.Transaction),
	}
}

func (r *memRepo) next() int {
	r.seq++
	return r.seq
}

func (r *memRepo) CreateUser(_ context.Context, user model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Username]; ok {
		return model.User{}, errs.ErrUsernameTaken
	}
	user.ID = r.next()
	r.users[user.Username] = user
	return user, nil
}

func (r *memRepo) GetUser(_ context.Context, username string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok {
		return model.User{}, errs.ErrUserNotFound
	}
	return user, nil
}

func (r *memRepo) CreateBook(_ context.Context, book model.Book) (model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.books {
		if b.ISBN == book.ISBN {
			return model.Book{}, errs.ErrBookExists
		}
	}
	book.ID = r.next()
	r.books[book.ID] = book
	return book, nil
}

func (r *memRepo) GetBookByISBN(_ context.Context, isbn string) (model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.books {
		if b.ISBN == isbn {
			return b, nil
		}
	}
	return model.Book{}, errs.ErrBookNotFound
}

func (r *memRepo) GetBookByID(_ context.Context, id int) (model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return model.Book{}, errs.ErrBookNotFound
	}
	return b, nil
}

func (r *memRepo) sortedBooks() []model.Book {
	books := make([]model.Book, 0, len(r.books))
	for _, b := range r.books {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books
}

func (r *memRepo) ListBooks(_ context.Context, page, size int) ([]model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	books := r.sortedBooks()
	if page > 0 && size > 0 {
		from := (page - 1) * size
		if from >= len(books) {
			return []model.Book{}, nil
		}
		to := from + size
		if to > len(books) {
			to = len(books)
		}
		books = books[from:to]
	}
	return books, nil
}

func (r *memRepo) SearchBooks(_ context.Context, query string) ([]model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := strings.ToLower(query)
	found := make([]model.Book, 0)
	for _, b := range r.sortedBooks() {
		if strings.Contains(strings.ToLower(b.Title), q) || strings.Contains(strings.ToLower(b.Author), q) {
			found = append(found, b)
		}
	}
	return found, nil
}

func (r *memRepo) DeleteBook(_ context.Context, isbn string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, b := range r.books {
		if b.ISBN != isbn {
			continue
		}
		for _, t := range r.txs {
			if t.BookID == id && t.Status == model.StatusIssued {
				return errs.ErrBookIssued
			}
		}
		delete(r.books, id)
		return nil
	}
	return errs.ErrBookNotFound
}

func (r *memRepo) CreateTransaction(_ context.Context, userID, bookID int, issuedAt time.Time) (model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[bookID]; !ok {
		return model.Transaction{}, errs.ErrBookNotFound
	}
	for _, t := range r.txs {
		if t.BookID == bookID && t.Status == model.StatusIssued {
			return model.Transaction{}, errs.ErrAlreadyIssued
		}
	}
	t := model.Transaction{
		ID:        r.next(),
		UserID:    userID,
		BookID:    bookID,
		IssueDate: issuedAt,
		Status:    model.StatusIssued,
	}
	r.txs[t.ID] = t
	return t, nil
}

func (r *memRepo) ReturnTransaction(_ context.Context, id int, returnedAt time.Time) (model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txs[id]
	if !ok {
		return model.Transaction{}, errs.ErrTxNotFound
	}
	if t.Status == model.StatusIssued {
		t.Status = model.StatusReturned
		t.ReturnDate = &returnedAt
		r.txs[id] = t
	}
	return t, nil
}

func (r *memRepo) GetTransaction(_ context.Context, id int) (model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txs[id]
	if !ok {
		return model.Transaction{}, errs.ErrTxNotFound
	}
	return t, nil
}

func (r *memRepo) ListActive(_ context.Context, userID int) ([]model.ActiveTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0)
	for id, t := range r.txs {
		if t.UserID == userID && t.Status == model.StatusIssued {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	active := make([]model.ActiveTransaction, 0, len(ids))
	for _, id := range ids {
		t := r.txs[id]
		title := model.UnknownBookTitle
		if b, ok := r.books[t.BookID]; ok {
			title = b.Title
		}
		active = append(active, model.ActiveTransaction{
			ID:        t.ID,
			BookTitle: title,
			IssueDate: t.IssueDate,
			Status:    t.Status,
		})
	}
	return active, nil
}
