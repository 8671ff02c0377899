package model

import (
	"database/sql"
	"time"
)

type Status string

const (
	StatusIssued   Status = "issued"
	StatusReturned Status = "returned"
)

const UnknownBookTitle = "Unknown Book"

type Book struct {
	ID          int            `json:"id" db:"id"`
	Title       string         `json:"title" db:"title"`
	Author      string         `json:"author" db:"author"`
	ISBN        string         `json:"isbn" db:"isbn"`
	Description sql.NullString `json:"-" db:"description"`
}

// BookView is the wire shape of a Book.
type BookView struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	ISBN        string  `json:"isbn"`
	Description *string `json:"description"`
}

func (b Book) View() BookView {
	v := BookView{ID: b.ID, Title: b.Title, Author: b.Author, ISBN: b.ISBN}
	if b.Description.Valid {
		d := b.Description.String
		v.Description = &d
	}
	return v
}

func BookViews(books []Book) []BookView {
	views := make([]BookView, 0, len(books))
	for i := range books {
		views = append(views, books[i].View())
	}
	return views
}

// BookMetadata is what the metadata provider knows about an ISBN.
type BookMetadata struct {
	Title       string
	Author      string
	Description string
}

type User struct {
	ID             int    `json:"id" db:"id"`
	Username       string `json:"username" db:"username"`
	HashedPassword string `json:"-" db:"hashed_password"`
	Role           string `json:"role" db:"role"`
}

type UserCreateRequest struct {
	Username string `json:"username" form:"username" validate:"required,min=3,max=80"`
	Password string `json:"password" form:"password" validate:"required,min=3,bcryptmax"`
}

type AuthRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type Transaction struct {
	ID         int        `json:"id" db:"id"`
	UserID     int        `json:"user_id" db:"user_id"`
	BookID     int        `json:"book_id" db:"book_id"`
	IssueDate  time.Time  `json:"issue_date" db:"issue_date"`
	ReturnDate *time.Time `json:"return_date" db:"return_date"`
	Status     Status     `json:"status" db:"status"`
}

// Consistent reports whether return_date is set exactly when the transaction is returned.
func (t Transaction) Consistent() bool {
	return (t.Status == StatusReturned) == (t.ReturnDate != nil)
}

type ActiveTransaction struct {
	ID        int       `json:"id" db:"id"`
	BookTitle string    `json:"book_title" db:"book_title"`
	IssueDate time.Time `json:"issue_date" db:"issue_date"`
	Status    Status    `json:"status" db:"status"`
}

type EventType string

const (
	EventIssued   EventType = "issued"
	EventReturned EventType = "returned"
)

type TransactionEvent struct {
	EventID       string    `json:"event_id"`
	Type          EventType `json:"type"`
	TransactionID int       `json:"transaction_id"`
	UserID        int       `json:"user_id"`
	BookID        int       `json:"book_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Message struct {
	Message string `json:"message"`
}
