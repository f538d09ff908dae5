package sql_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sqlite_driver "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	dbconfig "github.com/orbitalworks/granary/pkg/granary/adapter/database/config"
	gormadapter "github.com/orbitalworks/granary/pkg/granary/adapter/database/gorm"
	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
	"github.com/orbitalworks/granary/pkg/granary/core/domain/repository"
	sqlrepo "github.com/orbitalworks/granary/pkg/granary/infrastructure/repository/sql"
	"github.com/orbitalworks/granary/pkg/granary/support/util/exception"
)

// testStore bundles one in-memory database with every repository over it.
type testStore struct {
	conn       *gormadapter.Connection
	granules   repository.GranuleRepository
	files      repository.FileRepository
	executions repository.ExecutionRepository
	pdrs       repository.PdrRepository
	resolver   repository.ParentResolver

	collection   model.CollectionKey
	collectionID int64
	providerID   int64
	exec1ID      int64
	exec2ID      int64
}

// newTestStore builds an isolated in-memory SQLite database, migrates the
// schema, and seeds the parent records the scenarios reference.
func newTestStore(t *testing.T) *testStore {
	t.Helper()

	db, err := gorm.Open(sqlite_driver.Open(":memory:"), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps every statement on the same in-memory DB.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(sqlrepo.AllEntities()...))

	conn := gormadapter.NewConnection(db, dbconfig.DatabaseConfig{Type: "sqlite", Database: ":memory:"})

	s := &testStore{
		conn:       conn,
		granules:   sqlrepo.NewSQLGranuleRepository(conn),
		files:      sqlrepo.NewSQLFileRepository(conn),
		executions: sqlrepo.NewSQLExecutionRepository(conn),
		pdrs:       sqlrepo.NewSQLPdrRepository(conn),
		resolver:   sqlrepo.NewSQLParentResolver(conn),
		collection: model.CollectionKey{Name: "MOD09GQ", Version: "006"},
	}

	coll := sqlrepo.CollectionEntity{Name: "MOD09GQ", Version: "006", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	require.NoError(t, db.Create(&coll).Error)
	s.collectionID = coll.CumulusID

	prov := sqlrepo.ProviderEntity{Name: "prov-1", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	require.NoError(t, db.Create(&prov).Error)
	s.providerID = prov.CumulusID

	exec1 := sqlrepo.ExecutionEntity{ARN: "exec-1", Status: "running", CreatedAt: model.EpochMillis(100), UpdatedAt: model.EpochMillis(100)}
	require.NoError(t, db.Create(&exec1).Error)
	s.exec1ID = exec1.CumulusID

	exec2 := sqlrepo.ExecutionEntity{ARN: "exec-2", Status: "running", CreatedAt: model.EpochMillis(300), UpdatedAt: model.EpochMillis(300)}
	require.NoError(t, db.Create(&exec2).Error)
	s.exec2ID = exec2.CumulusID

	return s
}

func (s *testStore) granuleRefs(executionID *int64) repository.ParentRefs {
	return repository.ParentRefs{
		CollectionID: &s.collectionID,
		ExecutionID:  executionID,
	}
}

func (s *testStore) granule(status model.Status, createdAtMs int64, executionARN string) *model.Granule {
	return &model.Granule{
		GranuleID:    "g1",
		Collection:   s.collection,
		Status:       status,
		ExecutionARN: executionARN,
		CreatedAt:    model.EpochMillis(createdAtMs),
		UpdatedAt:    model.EpochMillis(createdAtMs),
		Timestamp:    model.EpochMillis(createdAtMs),
	}
}

func TestGranuleUpsert_CreateThenComplete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stored, id, applied, err := s.granules.Upsert(ctx, s.granule(model.StatusRunning, 100, "exec-1"), s.granuleRefs(&s.exec1ID))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NotZero(t, id)
	assert.Equal(t, model.StatusRunning, stored.Status)
	assert.Equal(t, model.EpochMillis(100), stored.CreatedAt)

	completed := s.granule(model.StatusCompleted, 100, "exec-1")
	completed.UpdatedAt = model.EpochMillis(200)
	completed.Timestamp = model.EpochMillis(200)
	completed.Published = true

	stored, _, applied, err = s.granules.Upsert(ctx, completed, s.granuleRefs(&s.exec1ID))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, model.StatusCompleted, stored.Status)
	assert.True(t, stored.Published)
	assert.Equal(t, model.EpochMillis(200), stored.Timestamp)
}

func TestGranuleUpsert_LateDuplicateDiscarded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, _, err := s.granules.Upsert(ctx, s.granule(model.StatusRunning, 100, "exec-1"), s.granuleRefs(&s.exec1ID))
	require.NoError(t, err)

	completed := s.granule(model.StatusCompleted, 100, "exec-1")
	completed.UpdatedAt = model.EpochMillis(200)
	_, _, _, err = s.granules.Upsert(ctx, completed, s.granuleRefs(&s.exec1ID))
	require.NoError(t, err)

	// Late redelivery of the running event for the same, now finished run.
	stored, _, applied, err := s.granules.Upsert(ctx, s.granule(model.StatusRunning, 100, "exec-1"), s.granuleRefs(&s.exec1ID))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, model.StatusCompleted, stored.Status)
}

func TestGranuleUpsert_NewRunSupersedesFinished(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, _, err := s.granules.Upsert(ctx, s.granule(model.StatusCompleted, 100, "exec-1"), s.granuleRefs(&s.exec1ID))
	require.NoError(t, err)

	stored, _, applied, err := s.granules.Upsert(ctx, s.granule(model.StatusRunning, 300, "exec-2"), s.granuleRefs(&s.exec2ID))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, model.StatusRunning, stored.Status)
	assert.Equal(t, model.EpochMillis(300), stored.CreatedAt)
	assert.Equal(t, "exec-2", stored.ExecutionARN)
}

func TestGranuleUpsert_OlderRunDiscarded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, _, err := s.granules.Upsert(ctx, s.granule(model.StatusCompleted, 100, "exec-1"), s.granuleRefs(&s.exec1ID))
	require.NoError(t, err)

	stored, _, applied, err := s.granules.Upsert(ctx, s.granule(model.StatusCompleted, 50, "exec-1"), s.granuleRefs(&s.exec1ID))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, model.EpochMillis(100), stored.CreatedAt)
}

func TestGranuleUpsert_RunningUpdateIsRestricted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	completed := s.granule(model.StatusCompleted, 100, "exec-1")
	completed.Published = true
	completed.ProductVolume = 42
	_, _, _, err := s.granules.Upsert(ctx, completed, s.granuleRefs(&s.exec1ID))
	require.NoError(t, err)

	// The new run's running write carries neither published nor metrics;
	// the restricted column set must leave them untouched.
	stored, _, applied, err := s.granules.Upsert(ctx, s.granule(model.StatusRunning, 300, "exec-2"), s.granuleRefs(&s.exec2ID))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, model.StatusRunning, stored.Status)
	assert.True(t, stored.Published)
	assert.Equal(t, int64(42), stored.ProductVolume)
}

func TestGranuleUpsert_RedeliveryIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	completed := s.granule(model.StatusCompleted, 100, "exec-1")
	completed.UpdatedAt = model.EpochMillis(200)
	first, _, _, err := s.granules.Upsert(ctx, completed, s.granuleRefs(&s.exec1ID))
	require.NoError(t, err)

	redelivered := s.granule(model.StatusCompleted, 100, "exec-1")
	redelivered.UpdatedAt = model.EpochMillis(200)
	second, _, applied, err := s.granules.Upsert(ctx, redelivered, s.granuleRefs(&s.exec1ID))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, first.Timestamp, second.Timestamp)
}

func TestFileRepository_SetExactness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, id, _, err := s.granules.Upsert(ctx, s.granule(model.StatusCompleted, 100, "exec-1"), s.granuleRefs(&s.exec1ID))
	require.NoError(t, err)

	f1 := model.File{Bucket: "proto", Key: "g1/f1.hdf", FileName: "f1.hdf", Size: 10}
	f2 := model.File{Bucket: "proto", Key: "g1/f2.hdf", FileName: "f2.hdf", Size: 20}
	f3 := model.File{Bucket: "proto", Key: "g1/f3.hdf", FileName: "f3.hdf", Size: 30}

	_, err = s.files.UpsertFile(ctx, id, f1)
	require.NoError(t, err)
	_, err = s.files.UpsertFile(ctx, id, f2)
	require.NoError(t, err)

	// Reconcile to {f2, f3}: f2 updated in place, f3 created, f1 pruned.
	id2b, err := s.files.UpsertFile(ctx, id, f2)
	require.NoError(t, err)
	id3, err := s.files.UpsertFile(ctx, id, f3)
	require.NoError(t, err)
	require.NoError(t, s.files.DeleteFilesExcept(ctx, id, []int64{id2b, id3}))

	listed, err := s.files.ListFiles(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []model.File{f2, f3}, listed)

	// An empty keep set removes every file of the granule.
	require.NoError(t, s.files.DeleteFilesExcept(ctx, id, nil))
	listed, err = s.files.ListFiles(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestFileRepository_UpsertUpdatesInPlace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, id, _, err := s.granules.Upsert(ctx, s.granule(model.StatusCompleted, 100, "exec-1"), s.granuleRefs(&s.exec1ID))
	require.NoError(t, err)

	first, err := s.files.UpsertFile(ctx, id, model.File{Bucket: "proto", Key: "g1/f1.hdf", FileName: "f1.hdf", Size: 10})
	require.NoError(t, err)
	second, err := s.files.UpsertFile(ctx, id, model.File{Bucket: "proto", Key: "g1/f1.hdf", FileName: "f1.hdf", Size: 99})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	listed, err := s.files.ListFiles(ctx, id)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, int64(99), listed[0].Size)
}

func TestParentResolver(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.resolver.ResolveCollection(ctx, s.collection)
	require.NoError(t, err)
	assert.Equal(t, s.collectionID, id)

	_, err = s.resolver.ResolveCollection(ctx, model.CollectionKey{Name: "missing", Version: "001"})
	assert.True(t, exception.IsUnresolvedParent(err))

	id, err = s.resolver.ResolveProvider(ctx, "prov-1")
	require.NoError(t, err)
	assert.Equal(t, s.providerID, id)

	_, err = s.resolver.ResolveExecution(ctx, "exec-unknown")
	assert.True(t, exception.IsUnresolvedParent(err))

	_, err = s.resolver.ResolvePdr(ctx, "pdr-unknown")
	assert.True(t, exception.IsUnresolvedParent(err))
}

func TestGranuleRepository_GetAndExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := model.GranuleKey{GranuleID: "g1", Collection: s.collection}

	exists, err := s.granules.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	_, _, err = s.granules.Get(ctx, key)
	assert.True(t, exception.IsNotFound(err))

	_, _, _, err = s.granules.Upsert(ctx, s.granule(model.StatusRunning, 100, "exec-1"), s.granuleRefs(&s.exec1ID))
	require.NoError(t, err)

	exists, err = s.granules.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	g, _, err := s.granules.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "exec-1", g.ExecutionARN)
}

func TestGranuleRepository_AssociateExecution(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := model.GranuleKey{GranuleID: "g1", Collection: s.collection}

	err := s.granules.AssociateExecution(ctx, key, s.exec2ID)
	assert.True(t, exception.IsNotFound(err))

	_, _, _, err = s.granules.Upsert(ctx, s.granule(model.StatusRunning, 100, "exec-1"), s.granuleRefs(&s.exec1ID))
	require.NoError(t, err)

	require.NoError(t, s.granules.AssociateExecution(ctx, key, s.exec2ID))
	g, _, err := s.granules.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "exec-2", g.ExecutionARN)
}

func TestGranuleRepository_DeleteRemovesFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, id, _, err := s.granules.Upsert(ctx, s.granule(model.StatusCompleted, 100, "exec-1"), s.granuleRefs(&s.exec1ID))
	require.NoError(t, err)
	_, err = s.files.UpsertFile(ctx, id, model.File{Bucket: "proto", Key: "g1/f1.hdf", FileName: "f1.hdf", Size: 10})
	require.NoError(t, err)

	require.NoError(t, s.granules.Delete(ctx, id))

	_, _, err = s.granules.Get(ctx, model.GranuleKey{GranuleID: "g1", Collection: s.collection})
	assert.True(t, exception.IsNotFound(err))
	listed, err := s.files.ListFiles(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestExecutionUpsert_NoRegressionFromTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	done := &model.Execution{
		ARN:       "exec-3",
		Status:    model.StatusCompleted,
		CreatedAt: model.EpochMillis(100),
		UpdatedAt: model.EpochMillis(200),
		Timestamp: model.EpochMillis(200),
	}
	_, _, applied, err := s.executions.Upsert(ctx, done, repository.ParentRefs{})
	require.NoError(t, err)
	assert.True(t, applied)

	// Late running event for the same run: a finished run never goes back.
	late := &model.Execution{
		ARN:       "exec-3",
		Status:    model.StatusRunning,
		CreatedAt: model.EpochMillis(100),
		UpdatedAt: model.EpochMillis(100),
		Timestamp: model.EpochMillis(100),
	}
	stored, _, applied, err := s.executions.Upsert(ctx, late, repository.ParentRefs{})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, model.StatusCompleted, stored.Status)
}

func TestPdrUpsert_StaleDiscarded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	current := &model.Pdr{
		Name:       "pdr-1",
		Status:     model.StatusCompleted,
		Collection: s.collection,
		Stats:      model.PdrStats{Total: 4, Completed: 4},
		CreatedAt:  model.EpochMillis(200),
		UpdatedAt:  model.EpochMillis(300),
		Timestamp:  model.EpochMillis(300),
	}
	_, _, applied, err := s.pdrs.Upsert(ctx, current, repository.ParentRefs{CollectionID: &s.collectionID})
	require.NoError(t, err)
	assert.True(t, applied)

	stale := &model.Pdr{
		Name:       "pdr-1",
		Status:     model.StatusRunning,
		Collection: s.collection,
		CreatedAt:  model.EpochMillis(100),
		UpdatedAt:  model.EpochMillis(100),
		Timestamp:  model.EpochMillis(100),
	}
	stored, _, applied, err := s.pdrs.Upsert(ctx, stale, repository.ParentRefs{CollectionID: &s.collectionID})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, model.StatusCompleted, stored.Status)
	assert.Equal(t, 4, stored.Stats.Completed)
}
