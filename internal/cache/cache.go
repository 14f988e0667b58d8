// Package cache persists enrichment results keyed by CRM record id.
package cache

import (
	"context"

	"github.com/sells-group/crm-enrich/internal/model"
)

// Store defines the analysis cache interface. Get returns (nil, nil) on a
// miss; Put replaces the whole record for the id.
type Store interface {
	Get(ctx context.Context, id string) (*model.CacheRecord, error)
	Put(ctx context.Context, rec *model.CacheRecord) error
	Delete(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
