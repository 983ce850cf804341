// Package whiskey defines collection records and the store contract the
// RBAC-gated routes operate on.
package whiskey

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a whiskey id does not exist.
var ErrNotFound = errors.New("whiskey not found")

// Whiskey is a bottle in the collection.
type Whiskey struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Distillery string    `json:"distillery,omitempty"`
	Type       string    `json:"type,omitempty"`
	Region     string    `json:"region,omitempty"`
	AgeYears   *int      `json:"ageYears,omitempty"`
	ABV        *float64  `json:"abv,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedBy  int64     `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Input is the writable part of a whiskey record.
type Input struct {
	Name       string   `json:"name" validate:"required,max=200"`
	Distillery string   `json:"distillery" validate:"max=200"`
	Type       string   `json:"type" validate:"max=50"`
	Region     string   `json:"region" validate:"max=100"`
	AgeYears   *int     `json:"ageYears" validate:"omitempty,min=0,max=100"`
	ABV        *float64 `json:"abv" validate:"omitempty,gt=0,lte=100"`
	Notes      string   `json:"notes" validate:"max=5000"`
}

// Store persists whiskey records.
type Store interface {
	List(ctx context.Context) ([]*Whiskey, error)
	Get(ctx context.Context, id int64) (*Whiskey, error)
	Create(ctx context.Context, in Input, createdBy int64) (*Whiskey, error)
	Update(ctx context.Context, id int64, in Input) (*Whiskey, error)
	Delete(ctx context.Context, id int64) error
}
