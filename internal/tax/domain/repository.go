package domain

import (
	"context"
	"errors"
)

var ErrDuplicateRate = errors.New("duplicate_tax_rate")

type Repository interface {
	ListAll(ctx context.Context) ([]Rate, error)
	Create(ctx context.Context, rate *Rate) error
}
