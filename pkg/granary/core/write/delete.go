package write

import (
	"context"

	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
	"github.com/orbitalworks/granary/pkg/granary/core/ports"
	"github.com/orbitalworks/granary/pkg/granary/core/tx"
	"github.com/orbitalworks/granary/pkg/granary/support/util/exception"
	"github.com/orbitalworks/granary/pkg/granary/support/util/logger"
)

// DeleteGranule removes one granule from every store. A published granule
// is rejected with a deletion conflict and nothing is mutated. The file
// rows, the granule row, the mirror document, the index document, and the
// delete notification all belong to one transactional unit; the backing
// file objects are removed only after that unit commits, and an object
// that fails to delete is an accepted orphan, not a failure.
func (c *Coordinator) DeleteGranule(ctx context.Context, key model.GranuleKey) error {
	g, cumulusID, err := c.granules.Get(ctx, key)
	if err != nil {
		return err
	}
	if g.Published {
		return exception.NewDeletionConflictError(ports.KindGranule, key.String())
	}

	err = tx.RunInTransaction(ctx, c.tm, func(ctx context.Context) error {
		if err := c.granules.Delete(ctx, cumulusID); err != nil {
			return err
		}
		if err := c.mirror.Delete(ctx, ports.KindGranule, key.String()); err != nil {
			return err
		}
		if err := c.index.Delete(ctx, ports.KindGranule, key.String()); err != nil {
			return err
		}
		return c.publisher.Publish(ctx, ports.EventDelete, ports.KindGranule, map[string]interface{}{
			"granuleId":    key.GranuleID,
			"collectionId": key.Collection.String(),
		})
	})
	if err != nil {
		return err
	}

	for _, f := range g.Files {
		if err := c.objects.DeleteObject(ctx, f.Bucket, f.Key); err != nil {
			logger.Warnf("Coordinator: orphaned object %s/%s after deleting granule '%s': %v",
				f.Bucket, f.Key, key, err)
		}
	}
	return nil
}

// DeleteExecution removes one execution from every store.
func (c *Coordinator) DeleteExecution(ctx context.Context, arn string) error {
	_, cumulusID, err := c.executions.Get(ctx, arn)
	if err != nil {
		return err
	}

	return tx.RunInTransaction(ctx, c.tm, func(ctx context.Context) error {
		if err := c.executions.Delete(ctx, cumulusID); err != nil {
			return err
		}
		if err := c.mirror.Delete(ctx, ports.KindExecution, arn); err != nil {
			return err
		}
		if err := c.index.Delete(ctx, ports.KindExecution, arn); err != nil {
			return err
		}
		return c.publisher.Publish(ctx, ports.EventDelete, ports.KindExecution, map[string]interface{}{
			"arn": arn,
		})
	})
}

// DeletePdr removes one PDR from every store.
func (c *Coordinator) DeletePdr(ctx context.Context, name string) error {
	_, cumulusID, err := c.pdrs.Get(ctx, name)
	if err != nil {
		return err
	}

	return tx.RunInTransaction(ctx, c.tm, func(ctx context.Context) error {
		if err := c.pdrs.Delete(ctx, cumulusID); err != nil {
			return err
		}
		if err := c.mirror.Delete(ctx, ports.KindPdr, name); err != nil {
			return err
		}
		if err := c.index.Delete(ctx, ports.KindPdr, name); err != nil {
			return err
		}
		return c.publisher.Publish(ctx, ports.EventDelete, ports.KindPdr, map[string]interface{}{
			"pdrName": name,
		})
	})
}
