package model

import (
	"strings"

	"github.com/pkg/errors"
)

type CreateCategory struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type CategoryPatch struct {
	Name        Optional[string] `json:"name" swaggertype:"string"`
	Description Optional[string] `json:"description" swaggertype:"string"`
}

func (p CategoryPatch) Validate() error {
	return notBlank(map[string]Optional[string]{"name": p.Name})
}

type CreateBook struct {
	Title           string `json:"title" validate:"required"`
	Author          string `json:"author" validate:"required"`
	CategoryID      string `json:"categoryId" validate:"required"`
	Image           string `json:"image"`
	Description     string `json:"description"`
	AvailableCopies int    `json:"available_copies" validate:"gte=0"`
}

type BookPatch struct {
	Title           Optional[string] `json:"title" swaggertype:"string"`
	Author          Optional[string] `json:"author" swaggertype:"string"`
	CategoryID      Optional[string] `json:"categoryId" swaggertype:"string"`
	Image           Optional[string] `json:"image" swaggertype:"string"`
	Description     Optional[string] `json:"description" swaggertype:"string"`
	AvailableCopies Optional[int]    `json:"available_copies" swaggertype:"integer"`
}

func (p BookPatch) Validate() error {
	if err := notBlank(map[string]Optional[string]{
		"title":      p.Title,
		"author":     p.Author,
		"categoryId": p.CategoryID,
	}); err != nil {
		return err
	}
	if n, ok := p.AvailableCopies.Get(); ok && n < 0 {
		return errors.New("available_copies must not be negative")
	}
	return nil
}

type CreateEmprunt struct {
	UserID     string `json:"userId" validate:"required"`
	BookID     string `json:"bookId" validate:"required"`
	LoanDate   string `json:"loanDate" validate:"required"`
	ReturnDate string `json:"returnDate"`
}

type EmpruntPatch struct {
	UserID     Optional[string] `json:"userId" swaggertype:"string"`
	BookID     Optional[string] `json:"bookId" swaggertype:"string"`
	LoanDate   Optional[string] `json:"loanDate" swaggertype:"string"`
	ReturnDate Optional[string] `json:"returnDate" swaggertype:"string"`
}

func (p EmpruntPatch) Validate() error {
	return notBlank(map[string]Optional[string]{
		"userId":   p.UserID,
		"bookId":   p.BookID,
		"loanDate": p.LoanDate,
	})
}

func notBlank(fields map[string]Optional[string]) error {
	for name, f := range fields {
		if v, ok := f.Get(); ok && strings.TrimSpace(v) == "" {
			return errors.Errorf("%s must not be empty", name)
		}
	}
	return nil
}
