package searchindex_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/docstore"
	_ "gocloud.dev/docstore/memdocstore"

	"github.com/orbitalworks/granary/pkg/granary/adapter/searchindex"
	"github.com/orbitalworks/granary/pkg/granary/core/ports"
)

// readModel mirrors the projector's stored shape for reading back in tests.
type readModel struct {
	ID     string                 `docstore:"_id"`
	Kind   string                 `docstore:"kind"`
	Fields map[string]interface{} `docstore:"fields,omitempty"`
}

func newTestProjector(t *testing.T) (*searchindex.Projector, *docstore.Collection) {
	t.Helper()
	ctx := context.Background()
	open := func(name string) *docstore.Collection {
		coll, err := docstore.OpenCollection(ctx, "mem://"+name+"/_id")
		require.NoError(t, err)
		t.Cleanup(func() { coll.Close() })
		return coll
	}
	granules := open("granules-index")
	return searchindex.NewProjector(granules, open("executions-index"), open("pdrs-index")), granules
}

func TestProjector_UpsertReplaces(t *testing.T) {
	p, granules := newTestProjector(t)
	ctx := context.Background()

	require.NoError(t, p.Upsert(ctx, &ports.IndexDocument{
		ID:   "g1|MOD09GQ___006",
		Kind: ports.KindGranule,
		Fields: map[string]interface{}{
			"status":    "running",
			"cumulusId": int64(7),
		},
	}))

	// A later projection of the same record replaces the document whole.
	require.NoError(t, p.Upsert(ctx, &ports.IndexDocument{
		ID:   "g1|MOD09GQ___006",
		Kind: ports.KindGranule,
		Fields: map[string]interface{}{
			"status": "completed",
		},
	}))

	var doc readModel
	doc.ID = "g1|MOD09GQ___006"
	require.NoError(t, granules.Get(ctx, &doc))
	assert.Equal(t, "completed", doc.Fields["status"])
	assert.NotContains(t, doc.Fields, "cumulusId")
}

func TestProjector_Delete(t *testing.T) {
	p, granules := newTestProjector(t)
	ctx := context.Background()

	require.NoError(t, p.Upsert(ctx, &ports.IndexDocument{
		ID:     "g1|MOD09GQ___006",
		Kind:   ports.KindGranule,
		Fields: map[string]interface{}{"status": "completed"},
	}))
	require.NoError(t, p.Delete(ctx, ports.KindGranule, "g1|MOD09GQ___006"))

	var doc readModel
	doc.ID = "g1|MOD09GQ___006"
	assert.Error(t, granules.Get(ctx, &doc))

	// Deleting an absent document is a no-op.
	assert.NoError(t, p.Delete(ctx, ports.KindGranule, "never-indexed"))
}

func TestProjector_UnknownKind(t *testing.T) {
	p, _ := newTestProjector(t)
	err := p.Upsert(context.Background(), &ports.IndexDocument{ID: "x", Kind: "collection"})
	assert.Error(t, err)
}
