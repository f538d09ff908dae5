// Package searchindex implements the denormalized search-index projector
// over gocloud.dev docstore collections: one flattened, query-optimized
// read-model document per record, sourced from the committed relational
// write. The index is non-authoritative; an upsert simply replaces the
// prior document.
package searchindex

import (
	"context"
	"fmt"

	"gocloud.dev/docstore"
	"gocloud.dev/gcerrors"

	"github.com/orbitalworks/granary/pkg/granary/core/ports"
	"github.com/orbitalworks/granary/pkg/granary/support/util/exception"
)

// indexedDocument is the wire shape of one read-model document.
type indexedDocument struct {
	ID     string                 `docstore:"_id"`
	Kind   string                 `docstore:"kind"`
	Fields map[string]interface{} `docstore:"fields,omitempty"`
}

// Projector implements ports.SearchIndex over one collection per record kind.
type Projector struct {
	collections map[string]*docstore.Collection
}

// NewProjector creates a projector over the given per-kind collections.
func NewProjector(granules, executions, pdrs *docstore.Collection) *Projector {
	return &Projector{
		collections: map[string]*docstore.Collection{
			ports.KindGranule:   granules,
			ports.KindExecution: executions,
			ports.KindPdr:       pdrs,
		},
	}
}

func (p *Projector) collection(kind string) (*docstore.Collection, error) {
	coll, ok := p.collections[kind]
	if !ok || coll == nil {
		return nil, exception.NewWriteErrorf("searchindex", "no index collection configured for kind '%s'", kind)
	}
	return coll, nil
}

// Upsert replaces the read-model document for the record.
func (p *Projector) Upsert(ctx context.Context, doc *ports.IndexDocument) error {
	coll, err := p.collection(doc.Kind)
	if err != nil {
		return err
	}
	stored := &indexedDocument{ID: doc.ID, Kind: doc.Kind, Fields: doc.Fields}
	if err := coll.Put(ctx, stored); err != nil {
		return exception.NewWriteError("searchindex", fmt.Sprintf("failed to index document '%s'", doc.ID), err)
	}
	return nil
}

// Delete removes the read-model document. Absent documents are a no-op.
func (p *Projector) Delete(ctx context.Context, kind, id string) error {
	coll, err := p.collection(kind)
	if err != nil {
		return err
	}
	err = coll.Delete(ctx, &indexedDocument{ID: id})
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return exception.NewWriteError("searchindex", fmt.Sprintf("failed to delete index document '%s'", id), err)
	}
	return nil
}

var _ ports.SearchIndex = (*Projector)(nil)
