package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/docstore"
	_ "gocloud.dev/docstore/memdocstore"
	sqlite_driver "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	dbconfig "github.com/orbitalworks/granary/pkg/granary/adapter/database/config"
	gormadapter "github.com/orbitalworks/granary/pkg/granary/adapter/database/gorm"
	docstoreadapter "github.com/orbitalworks/granary/pkg/granary/adapter/docstore"
	"github.com/orbitalworks/granary/pkg/granary/core/application/usecase"
	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
	"github.com/orbitalworks/granary/pkg/granary/core/ports"
	"github.com/orbitalworks/granary/pkg/granary/core/write"
	sqlrepo "github.com/orbitalworks/granary/pkg/granary/infrastructure/repository/sql"
	"github.com/orbitalworks/granary/pkg/granary/support/util/exception"
)

type nullIndex struct{}

func (nullIndex) Upsert(ctx context.Context, doc *ports.IndexDocument) error { return nil }
func (nullIndex) Delete(ctx context.Context, kind, id string) error          { return nil }

type nullPublisher struct{}

func (nullPublisher) Publish(ctx context.Context, eventType ports.EventType, recordType string, record interface{}) error {
	return nil
}

type nullObjectStore struct{}

func (nullObjectStore) DeleteObject(ctx context.Context, bucket, key string) error { return nil }

type serviceFixture struct {
	granules   usecase.GranuleService
	executions usecase.ExecutionService
	pdrs       usecase.PdrService
	ingest     usecase.IngestService
	collection model.CollectionKey
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	ctx := context.Background()

	db, err := gorm.Open(sqlite_driver.Open(":memory:"), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(sqlrepo.AllEntities()...))

	conn := gormadapter.NewConnection(db, dbconfig.DatabaseConfig{Type: "sqlite", Database: ":memory:"})

	openColl := func(name string) *docstore.Collection {
		coll, err := docstore.OpenCollection(ctx, "mem://"+name+"/_id")
		require.NoError(t, err)
		t.Cleanup(func() { coll.Close() })
		return coll
	}
	mirror := docstoreadapter.NewMirror(openColl("granules"), openColl("executions"), openColl("pdrs"))

	granuleRepo := sqlrepo.NewSQLGranuleRepository(conn)
	executionRepo := sqlrepo.NewSQLExecutionRepository(conn)
	pdrRepo := sqlrepo.NewSQLPdrRepository(conn)

	coordinator := write.NewCoordinator(
		gormadapter.NewGormTransactionManager(conn),
		sqlrepo.NewSQLParentResolver(conn),
		granuleRepo,
		sqlrepo.NewSQLFileRepository(conn),
		executionRepo,
		pdrRepo,
		mirror,
		nullIndex{},
		nullPublisher{},
		nullObjectStore{},
		nil,
		nil,
	)

	coll := sqlrepo.CollectionEntity{Name: "MOD09GQ", Version: "006", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	require.NoError(t, db.Create(&coll).Error)
	exec1 := sqlrepo.ExecutionEntity{ARN: "exec-1", Status: "running", CreatedAt: model.EpochMillis(100), UpdatedAt: model.EpochMillis(100)}
	require.NoError(t, db.Create(&exec1).Error)

	return &serviceFixture{
		granules:   usecase.NewDefaultGranuleService(coordinator, granuleRepo),
		executions: usecase.NewDefaultExecutionService(coordinator, executionRepo),
		pdrs:       usecase.NewDefaultPdrService(coordinator, pdrRepo),
		ingest:     usecase.NewDefaultIngestService(write.NewDispatcher(coordinator, 2, nil)),
		collection: model.CollectionKey{Name: "MOD09GQ", Version: "006"},
	}
}

func (f *serviceFixture) granule(id string) *model.Granule {
	return &model.Granule{
		GranuleID:    id,
		Collection:   f.collection,
		Status:       model.StatusRunning,
		ExecutionARN: "exec-1",
		CreatedAt:    model.EpochMillis(100),
		UpdatedAt:    model.EpochMillis(100),
		Timestamp:    model.EpochMillis(100),
	}
}

func TestGranuleService_CreateConflictsOnExisting(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	stored, err := f.granules.Create(ctx, f.granule("g1"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, stored.Status)

	_, err = f.granules.Create(ctx, f.granule("g1"))
	require.Error(t, err)
	var conflict *exception.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestGranuleService_UpdateRequiresExisting(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.granules.Update(ctx, f.granule("g1"))
	assert.True(t, exception.IsNotFound(err))

	_, err = f.granules.Create(ctx, f.granule("g1"))
	require.NoError(t, err)

	updated := f.granule("g1")
	updated.Status = model.StatusCompleted
	updated.UpdatedAt = model.EpochMillis(200)
	stored, err := f.granules.Update(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, stored.Status)
}

func TestGranuleService_UnresolvedParentIsAnError(t *testing.T) {
	f := newServiceFixture(t)

	g := f.granule("g1")
	g.ExecutionARN = "exec-unknown"
	_, err := f.granules.Create(context.Background(), g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "referenced parent records are missing")
}

func TestGranuleService_DeleteAndAssociate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.granules.Create(ctx, f.granule("g1"))
	require.NoError(t, err)

	key := model.GranuleKey{GranuleID: "g1", Collection: f.collection}
	require.NoError(t, f.granules.AssociateExecution(ctx, key, "exec-1"))
	require.NoError(t, f.granules.Delete(ctx, key))

	err = f.granules.Delete(ctx, key)
	assert.True(t, exception.IsNotFound(err))
}

func TestExecutionService_CreateAndUpdate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	e := &model.Execution{
		ARN:       "exec-9",
		Status:    model.StatusRunning,
		CreatedAt: model.EpochMillis(100),
		UpdatedAt: model.EpochMillis(100),
		Timestamp: model.EpochMillis(100),
	}
	_, err := f.executions.Create(ctx, e)
	require.NoError(t, err)

	_, err = f.executions.Create(ctx, e)
	var conflict *exception.ConflictError
	assert.ErrorAs(t, err, &conflict)

	done := *e
	done.Status = model.StatusCompleted
	done.UpdatedAt = model.EpochMillis(200)
	stored, err := f.executions.Update(ctx, &done)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, stored.Status)

	require.NoError(t, f.executions.Delete(ctx, "exec-9"))
	_, err = f.executions.Update(ctx, &done)
	assert.True(t, exception.IsNotFound(err))
}

func TestPdrService_Lifecycle(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	p := &model.Pdr{
		Name:       "pdr-1",
		Status:     model.StatusRunning,
		Collection: f.collection,
		CreatedAt:  model.EpochMillis(100),
		UpdatedAt:  model.EpochMillis(100),
		Timestamp:  model.EpochMillis(100),
	}
	_, err := f.pdrs.Create(ctx, p)
	require.NoError(t, err)

	done := *p
	done.Status = model.StatusCompleted
	done.UpdatedAt = model.EpochMillis(200)
	done.Stats = model.PdrStats{Total: 2, Completed: 2}
	stored, err := f.pdrs.Update(ctx, &done)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, stored.Status)

	require.NoError(t, f.pdrs.Delete(ctx, "pdr-1"))
	err = f.pdrs.Delete(ctx, "pdr-1")
	assert.True(t, exception.IsNotFound(err))
}

func TestIngestService_ToleratesUnresolvedParents(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	// The granule references a collection that has not landed yet; the
	// ingest path defers it instead of failing.
	raw := map[string]interface{}{
		"granules": []interface{}{
			map[string]interface{}{
				"granuleId":         "g-late",
				"status":            "running",
				"execution":         "exec-1",
				"collection":        map[string]interface{}{"name": "unseen", "version": "001"},
				"workflowStartTime": 100,
			},
		},
	}
	assert.NoError(t, f.ingest.Ingest(ctx, raw))
}

func TestIngestService_WritesMessageRecords(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	raw := map[string]interface{}{
		"execution": map[string]interface{}{
			"arn":               "exec-ingest",
			"status":            "completed",
			"collection":        map[string]interface{}{"name": "MOD09GQ", "version": "006"},
			"workflowStartTime": 400,
			"timestamp":         500,
		},
		"granules": []interface{}{
			map[string]interface{}{"granuleId": "g-i1", "status": "completed"},
		},
	}
	require.NoError(t, f.ingest.Ingest(ctx, raw))

	updated := &model.Granule{
		GranuleID:    "g-i1",
		Collection:   f.collection,
		Status:       model.StatusCompleted,
		ExecutionARN: "exec-ingest",
		CreatedAt:    model.EpochMillis(400),
		UpdatedAt:    model.EpochMillis(600),
		Timestamp:    model.EpochMillis(600),
	}
	stored, err := f.granules.Update(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, "exec-ingest", stored.ExecutionARN)
}
