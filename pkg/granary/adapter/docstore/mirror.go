// Package docstore implements the legacy document-store mirror over
// gocloud.dev docstore collections. The mirror cannot share the relational
// transaction, so it evaluates its own copy of the merge precedence rules
// on every update, and exposes snapshot/restore for the coordinator's
// compensation step.
package docstore

import (
	"context"
	"fmt"
	"time"

	"gocloud.dev/docstore"
	"gocloud.dev/gcerrors"

	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
	"github.com/orbitalworks/granary/pkg/granary/core/policy"
	"github.com/orbitalworks/granary/pkg/granary/core/ports"
	"github.com/orbitalworks/granary/pkg/granary/support/util/exception"
	"github.com/orbitalworks/granary/pkg/granary/support/util/logger"
)

// storedDocument is the wire shape of a mirrored record. The key field
// `_id` is the record's natural key.
type storedDocument struct {
	ID           string                 `docstore:"_id"`
	Kind         string                 `docstore:"kind"`
	CreatedAt    int64                  `docstore:"createdAt"`
	UpdatedAt    int64                  `docstore:"updatedAt"`
	Status       string                 `docstore:"status"`
	ExecutionARN string                 `docstore:"execution,omitempty"`
	Published    bool                   `docstore:"published"`
	Fields       map[string]interface{} `docstore:"fields,omitempty"`
}

// Mirror implements ports.DocumentStore over one docstore collection per
// record kind.
type Mirror struct {
	collections map[string]*docstore.Collection
}

// NewMirror creates a mirror over the given per-kind collections.
func NewMirror(granules, executions, pdrs *docstore.Collection) *Mirror {
	return &Mirror{
		collections: map[string]*docstore.Collection{
			ports.KindGranule:   granules,
			ports.KindExecution: executions,
			ports.KindPdr:       pdrs,
		},
	}
}

func (m *Mirror) collection(kind string) (*docstore.Collection, error) {
	coll, ok := m.collections[kind]
	if !ok || coll == nil {
		return nil, exception.NewWriteErrorf("mirror", "no document collection configured for kind '%s'", kind)
	}
	return coll, nil
}

// Get returns the stored document, or nil when none exists.
func (m *Mirror) Get(ctx context.Context, kind, id string) (*ports.Document, error) {
	coll, err := m.collection(kind)
	if err != nil {
		return nil, err
	}

	doc := storedDocument{ID: id}
	if err := coll.Get(ctx, &doc); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, exception.NewWriteError("mirror", fmt.Sprintf("failed to read document '%s'", id), err)
	}
	return toPortDocument(&doc), nil
}

// Upsert writes the document if the mirror's own evaluation of the merge
// precedence rules allows it. While the resulting status is running, only
// the mutable subset is taken from the incoming document; the prior
// field payload survives.
func (m *Mirror) Upsert(ctx context.Context, doc *ports.Document) (bool, error) {
	coll, err := m.collection(doc.Kind)
	if err != nil {
		return false, err
	}

	current, err := m.Get(ctx, doc.Kind, doc.ID)
	if err != nil {
		return false, err
	}

	decision, reason := policy.Decide(snapshotOf(current), snapshotOfValue(doc))
	if decision == policy.Discard {
		logger.Infof("Mirror: document '%s' write discarded (%s).", doc.ID, reason)
		return false, nil
	}

	out := doc
	if current != nil && policy.RestrictedUpdate(model.Status(doc.Status)) {
		out = mergeRestricted(current, doc)
	}

	if err := coll.Put(ctx, fromPortDocument(out)); err != nil {
		return false, exception.NewWriteError("mirror", fmt.Sprintf("failed to write document '%s'", doc.ID), err)
	}
	return true, nil
}

// Restore puts the collection back to a pre-write snapshot: a nil prev
// deletes the document this cycle created, otherwise the prior document
// is written back unconditionally.
func (m *Mirror) Restore(ctx context.Context, kind, id string, prev *ports.Document) error {
	coll, err := m.collection(kind)
	if err != nil {
		return err
	}

	if prev == nil {
		err = coll.Delete(ctx, &storedDocument{ID: id})
		if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return exception.NewWriteError("mirror", fmt.Sprintf("failed to remove document '%s' during restore", id), err)
		}
		return nil
	}
	if err := coll.Put(ctx, fromPortDocument(prev)); err != nil {
		return exception.NewWriteError("mirror", fmt.Sprintf("failed to restore document '%s'", id), err)
	}
	return nil
}

// Delete removes the document. Deleting an absent document is a no-op.
func (m *Mirror) Delete(ctx context.Context, kind, id string) error {
	coll, err := m.collection(kind)
	if err != nil {
		return err
	}
	err = coll.Delete(ctx, &storedDocument{ID: id})
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return exception.NewWriteError("mirror", fmt.Sprintf("failed to delete document '%s'", id), err)
	}
	return nil
}

// snapshotOf builds the policy view of a document; nil documents stay nil.
func snapshotOf(d *ports.Document) *policy.Snapshot {
	if d == nil {
		return nil
	}
	return &policy.Snapshot{
		Status:       model.Status(d.Status),
		ExecutionARN: d.ExecutionARN,
		CreatedAt:    time.UnixMilli(d.CreatedAt).UTC(),
	}
}

// snapshotOfValue adapts snapshotOf's result to the value the policy
// expects for the incoming side.
func snapshotOfValue(d *ports.Document) policy.Snapshot {
	return *snapshotOf(d)
}

// mergeRestricted applies the running-status allowlist: the stored field
// payload survives, only the ordering pivot, audit times, status and run
// identity move forward.
func mergeRestricted(current, incoming *ports.Document) *ports.Document {
	merged := *current
	merged.CreatedAt = incoming.CreatedAt
	merged.UpdatedAt = incoming.UpdatedAt
	merged.Status = incoming.Status
	merged.ExecutionARN = incoming.ExecutionARN
	if ts, ok := incoming.Fields["timestamp"]; ok {
		if merged.Fields == nil {
			merged.Fields = make(map[string]interface{})
		} else {
			copied := make(map[string]interface{}, len(merged.Fields))
			for k, v := range merged.Fields {
				copied[k] = v
			}
			merged.Fields = copied
		}
		merged.Fields["timestamp"] = ts
	}
	return &merged
}

func toPortDocument(d *storedDocument) *ports.Document {
	return &ports.Document{
		ID:           d.ID,
		Kind:         d.Kind,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		Status:       d.Status,
		ExecutionARN: d.ExecutionARN,
		Published:    d.Published,
		Fields:       d.Fields,
	}
}

func fromPortDocument(d *ports.Document) *storedDocument {
	return &storedDocument{
		ID:           d.ID,
		Kind:         d.Kind,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		Status:       d.Status,
		ExecutionARN: d.ExecutionARN,
		Published:    d.Published,
		Fields:       d.Fields,
	}
}

var _ ports.DocumentStore = (*Mirror)(nil)
