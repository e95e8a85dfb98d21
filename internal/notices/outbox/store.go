package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract for outbox entries. Append joins the
// caller's transaction when one is in the context.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	CountPending(ctx context.Context) (int64, error)
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
