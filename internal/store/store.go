// Package store is the read side of the alert records owned by the CRUD service.
package store

import (
	"context"
	"errors"

	"PriceSentinel/internal/model"
)

// ErrNotFound is returned by GetAlert when no alert has the given id.
var ErrNotFound = errors.New("alert not found")

// Store is the query surface the pipeline needs. Every call sees whatever
// state is committed at query time; nothing spans a poll cycle.
type Store interface {
	ListActiveAlerts(ctx context.Context, symbol string) ([]model.Alert, error)
	ListDistinctActiveSymbols(ctx context.Context) ([]string, error)
	GetAlert(ctx context.Context, id int64) (*model.Alert, error)
	Close() error
}
