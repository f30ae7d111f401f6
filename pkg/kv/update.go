package kv

import (
	"fmt"
	"strings"
	"time"
)

// UpdatedAtAttr is stamped by every Update.
const UpdatedAtAttr = "updatedAt"

const (
	updatedAtName  = "#updatedAt"
	updatedAtValue = ":updatedAt"
)

// Assignment is one `name = value` pair of a partial update.
type Assignment struct {
	Name  string
	Value any
}

// Update collects the fields of a partial update. Fields never passed to Set
// are left untouched by the store; updatedAt is always refreshed.
type Update struct {
	assignments []Assignment
	stampedAt   time.Time
}

func NewUpdate(now time.Time) *Update {
	return &Update{stampedAt: now.UTC()}
}

func (u *Update) Set(name string, value any) *Update {
	u.assignments = append(u.assignments, Assignment{Name: name, Value: value})
	return u
}

// StampedAt is the updatedAt value the update writes.
func (u *Update) StampedAt() time.Time {
	return u.stampedAt
}

// Assignments returns the explicit assignments followed by the updatedAt stamp.
func (u *Update) Assignments() []Assignment {
	out := make([]Assignment, 0, len(u.assignments)+1)
	out = append(out, u.assignments...)
	return append(out, Assignment{Name: UpdatedAtAttr, Value: FormatTime(u.stampedAt)})
}

// Expression is an update rendered with name and value placeholders.
type Expression struct {
	Text   string
	Names  map[string]string
	Values map[string]any
}

// Expression renders the update as
//
//	SET #field0 = :value0, #field1 = :value1, #updatedAt = :updatedAt
func (u *Update) Expression() Expression {
	expr := Expression{
		Names:  make(map[string]string, len(u.assignments)+1),
		Values: make(map[string]any, len(u.assignments)+1),
	}
	parts := make([]string, 0, len(u.assignments)+1)
	for i, a := range u.assignments {
		name := fmt.Sprintf("#field%d", i)
		value := fmt.Sprintf(":value%d", i)
		parts = append(parts, name+" = "+value)
		expr.Names[name] = a.Name
		expr.Values[value] = a.Value
	}
	parts = append(parts, updatedAtName+" = "+updatedAtValue)
	expr.Names[updatedAtName] = UpdatedAtAttr
	expr.Values[updatedAtValue] = FormatTime(u.stampedAt)
	expr.Text = "SET " + strings.Join(parts, ", ")
	return expr
}

// ApplyTo returns a copy of item with the update merged in.
func (u *Update) ApplyTo(item Item) Item {
	out := item.Clone()
	if out == nil {
		out = make(Item, len(u.assignments)+1)
	}
	for _, a := range u.Assignments() {
		out[a.Name] = a.Value
	}
	return out
}

// FormatTime is the timestamp layout items are stored with.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
