package audit

import "context"

// Store is the append-only persistence behind the sink. Implementations may
// write directly (memory) or stage rows for downstream publishing (postgres
// outbox).
type Store interface {
	Append(ctx context.Context, entry Entry) error
}
