package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows audit-log queries. Zero values mean "no constraint".
type Filter struct {
	HospitalID uuid.UUID
	TableName  string
	From       time.Time
	To         time.Time
}

// Repository is the queryable audit archive. Writes happen only through
// the outbox poller; there is no update or delete.
type Repository interface {
	Insert(ctx context.Context, entry *Entry) error
	Query(ctx context.Context, filter Filter, limit, offset int) ([]*Entry, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}
