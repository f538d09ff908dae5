package write_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
	"github.com/orbitalworks/granary/pkg/granary/core/write"
)

func TestDispatchGranules_IsolatesFailures(t *testing.T) {
	f := newCoordFixture(t)
	ctx := context.Background()
	d := write.NewDispatcher(f.coordinator, 2, nil)

	granules := make([]*model.Granule, 0, 5)
	for i := 0; i < 5; i++ {
		g := f.granule(model.StatusCompleted, 100, "exec-1")
		g.GranuleID = fmt.Sprintf("g-%d", i)
		granules = append(granules, g)
	}
	// Record 2 fails validation; its siblings must still commit.
	granules[2].Status = model.Status("bogus")

	err := d.DispatchGranules(ctx, granules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "granule 'g-2'")
	assert.NotContains(t, err.Error(), "granule 'g-1'")

	for i := 0; i < 5; i++ {
		key := model.GranuleKey{GranuleID: fmt.Sprintf("g-%d", i), Collection: f.collection}
		exists, err := f.granules.Exists(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, i != 2, exists, "granule g-%d", i)
	}
}

func TestDispatchGranules_EmptyBatch(t *testing.T) {
	f := newCoordFixture(t)
	d := write.NewDispatcher(f.coordinator, 2, nil)
	assert.NoError(t, d.DispatchGranules(context.Background(), nil))
}

func TestDispatchMessage_WritesExecutionBeforeGranules(t *testing.T) {
	f := newCoordFixture(t)
	ctx := context.Background()
	d := write.NewDispatcher(f.coordinator, 4, nil)

	raw := map[string]interface{}{
		"execution": map[string]interface{}{
			"arn":               "exec-new",
			"status":            "completed",
			"collection":        map[string]interface{}{"name": "MOD09GQ", "version": "006"},
			"workflowStartTime": 400,
			"timestamp":         500,
		},
		"granules": []interface{}{
			map[string]interface{}{"granuleId": "g-a", "status": "completed"},
			map[string]interface{}{"granuleId": "g-b", "status": "completed"},
		},
	}
	msg, err := model.DecodeWorkflowMessage(raw)
	require.NoError(t, err)

	// The execution lands first, so the granules' run reference resolves
	// within the same message.
	require.NoError(t, d.DispatchMessage(ctx, msg))

	for _, id := range []string{"g-a", "g-b"} {
		g, _, err := f.granules.Get(ctx, model.GranuleKey{GranuleID: id, Collection: f.collection})
		require.NoError(t, err)
		assert.Equal(t, "exec-new", g.ExecutionARN)
		assert.Equal(t, model.EpochMillis(400), g.CreatedAt)
	}
}
