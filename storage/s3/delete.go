package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"go.uber.org/zap"

	"github.com/ckptstore/ckptstore/internal/chunkutil"
	"github.com/ckptstore/ckptstore/metrics"
	"github.com/ckptstore/ckptstore/storage"
)

// Delete removes every resource of the checkpoint from the bucket. Keys are
// deleted in batches of at most deleteBatchLimit; a failing batch aborts the
// remaining ones and surfaces the error. Deleting keys that no longer exist
// is not an error.
func (m *Manager) Delete(ctx context.Context, md storage.Metadata) (err error) {
	m.logger.Info("Deleting checkpoint from S3",
		zap.String("storage_id", md.StorageID),
		zap.String("bucket", m.bucket))

	start := time.Now()
	defer func() {
		metrics.ObserveOp(backendType, "delete", time.Since(start).Seconds(), err)
	}()

	return m.guard.Preserve(func() error {
		objects := make([]*s3.ObjectIdentifier, 0, len(md.Resources))
		for _, rel := range md.SortedResources() {
			objects = append(objects, &s3.ObjectIdentifier{
				Key: aws.String(m.key(md.StorageID, rel)),
			})
		}

		for chunk := range chunkutil.Chunks(objects, deleteBatchLimit) {
			m.logger.Debug("Deleting object batch",
				zap.Int("count", len(chunk)),
				zap.String("bucket", m.bucket))

			if err := m.wait(ctx); err != nil {
				return err
			}

			out, err := m.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(m.bucket),
				Delete: &s3.Delete{
					Objects: chunk,
					Quiet:   aws.Bool(true),
				},
			})
			if err != nil {
				return fmt.Errorf("failed to delete object batch: %w", err)
			}

			// S3 reports per-key failures in the response body, not the
			// request error.
			if len(out.Errors) > 0 {
				first := out.Errors[0]
				return fmt.Errorf("failed to delete %d objects, first: %s (%s)",
					len(out.Errors),
					aws.StringValue(first.Key),
					aws.StringValue(first.Message))
			}
		}
		return nil
	})
}
