package write

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
	"github.com/orbitalworks/granary/pkg/granary/core/tx"
	"github.com/orbitalworks/granary/pkg/granary/support/util/exception"
	"github.com/orbitalworks/granary/pkg/granary/support/util/logger"
)

// failedFilesMessage is the error recorded on a granule when one or more
// of its file rows could not be persisted.
const failedFilesMessage = "Failed writing files to PostgreSQL."

// reconcileFiles makes the granule's file rows equal the incoming set, in
// one transaction separate from the granule's own write. Each file upsert
// runs under its own savepoint so one failure cannot abort the others or
// the prune; failures are collected and returned as one aggregate after
// the surviving writes commit.
func (c *Coordinator) reconcileFiles(ctx context.Context, granuleCumulusID int64, files []model.File) error {
	var errs *multierror.Error

	err := tx.RunInTransaction(ctx, c.tm, func(ctx context.Context) error {
		t, _ := tx.FromContext(ctx)
		keep := make([]int64, 0, len(files))

		for i, f := range files {
			sp := fmt.Sprintf("file_%d", i)
			if t != nil {
				if err := t.Savepoint(sp); err != nil {
					return err
				}
			}
			id, err := c.files.UpsertFile(ctx, granuleCumulusID, f)
			if err != nil {
				if t != nil {
					if rbErr := t.RollbackToSavepoint(sp); rbErr != nil {
						return rbErr
					}
				}
				errs = multierror.Append(errs, exception.NewWriteError(
					"files", fmt.Sprintf("failed to write file %s/%s", f.Bucket, f.Key), err))
				continue
			}
			keep = append(keep, id)
		}

		if t != nil {
			if err := t.Savepoint("prune"); err != nil {
				return err
			}
		}
		if err := c.files.DeleteFilesExcept(ctx, granuleCumulusID, keep); err != nil {
			if t != nil {
				if rbErr := t.RollbackToSavepoint("prune"); rbErr != nil {
					return rbErr
				}
			}
			errs = multierror.Append(errs, exception.NewWriteError(
				"files", "failed to prune superseded file rows", err))
		}
		return nil
	})
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// failGranuleFiles downgrades a granule whose own write already committed
// but whose file reconciliation failed: a follow-up relational write sets
// status to failed with the aggregated cause, and emits its own
// notification. The follow-up bypasses file reconciliation so it cannot
// prune the rows that did persist.
func (c *Coordinator) failGranuleFiles(ctx context.Context, stored *model.Granule, cause error) (*model.Granule, string, error) {
	logger.Errorf("Coordinator: granule '%s' file reconciliation failed: %v", stored.Key(), cause)

	failed := *stored
	failed.Status = model.StatusFailed
	failed.Error = &model.RecordError{Error: failedFilesMessage, Cause: cause.Error()}
	now := time.Now().UTC()
	failed.UpdatedAt = now
	failed.Timestamp = now

	return c.writeGranule(ctx, &failed, false)
}
