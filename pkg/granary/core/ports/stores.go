// Package ports defines the interfaces of the non-relational collaborators
// the write coordinator drives: the legacy document store, the search
// index, the notification bus, and the file object store. Concrete
// implementations live under adapter/.
package ports

import (
	"context"
)

// Record kinds used to address per-type collections in the document store
// and the search index.
const (
	KindGranule   = "granule"
	KindExecution = "execution"
	KindPdr       = "pdr"
)

// Document is the natural-key addressed record shape of the legacy
// document store. The top-level fields are what the mirror's independent
// merge check reads; Fields carries the rest of the record.
type Document struct {
	// ID is the record's natural key (granule key, execution ARN, PDR name).
	ID   string
	Kind string
	// CreatedAt/UpdatedAt are epoch milliseconds, matching the legacy schema.
	CreatedAt    int64
	UpdatedAt    int64
	Status       string
	ExecutionARN string
	Published    bool
	Fields       map[string]interface{}
}

// DocumentStore is the legacy document-store mirror. It cannot share the
// relational transaction, so Upsert evaluates its own copy of the merge
// precedence rules, and Restore exists for the coordinator's compensation
// step.
type DocumentStore interface {
	// Get returns the stored document, or nil when none exists.
	Get(ctx context.Context, kind, id string) (*Document, error)
	// Upsert writes the document if the precedence rules allow it,
	// applying the mutable-field allowlist when the resulting status is
	// running. Returns false when the write was discarded as stale.
	Upsert(ctx context.Context, doc *Document) (applied bool, err error)
	// Restore puts the store back to a snapshot taken before an Upsert:
	// prev == nil deletes the document this call created, otherwise the
	// prior document is written back unconditionally.
	Restore(ctx context.Context, kind, id string, prev *Document) error
	// Delete removes the document. Deleting an absent document is a no-op.
	Delete(ctx context.Context, kind, id string) error
}

// IndexDocument is the denormalized, query-optimized read model projected
// from a committed relational write.
type IndexDocument struct {
	ID     string
	Kind   string
	Fields map[string]interface{}
}

// SearchIndex is the denormalized read-model store.
type SearchIndex interface {
	// Upsert replaces the read-model document for the record.
	Upsert(ctx context.Context, doc *IndexDocument) error
	// Delete removes the read-model document. Absent documents are a no-op.
	Delete(ctx context.Context, kind, id string) error
}

// EventType classifies a change notification.
type EventType string

const (
	EventCreate EventType = "Create"
	EventUpdate EventType = "Update"
	EventDelete EventType = "Delete"
)

// NotificationPublisher publishes exactly one change event per committed
// write. Delivery is at-most-once from this engine's perspective: publish
// failures are not retried here and surface as a per-record error.
type NotificationPublisher interface {
	Publish(ctx context.Context, eventType EventType, recordType string, record interface{}) error
}

// ObjectStore deletes the stored file objects backing granule files.
// Invoked only after the deleting transaction commits; failures are an
// accepted, separately-reconciled condition.
type ObjectStore interface {
	DeleteObject(ctx context.Context, bucket, key string) error
}
