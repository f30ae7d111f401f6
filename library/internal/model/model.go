package model

import (
	"time"
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	CategoryID      string    `json:"categoryId"`
	Image           string    `json:"image,omitempty"`
	Description     string    `json:"description,omitempty"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Emprunt is a loan of a book to a user. Dates are kept as received (ISO-8601).
type Emprunt struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	BookID     string    `json:"bookId"`
	LoanDate   string    `json:"loanDate"`
	ReturnDate string    `json:"returnDate,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Ack is returned by deletes.
type Ack struct {
	Message string `json:"message"`
}

type EmpruntEventType string

const (
	EmpruntCreated EmpruntEventType = "created"
	EmpruntUpdated EmpruntEventType = "updated"
	EmpruntDeleted EmpruntEventType = "deleted"
)

type EmpruntEvent struct {
	Type       EmpruntEventType `json:"type"`
	EmpruntID  string           `json:"empruntId"`
	BookID     string           `json:"bookId,omitempty"`
	UserID     string           `json:"userId,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
}
