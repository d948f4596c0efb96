// internal/cleanup/cleanup.go
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/javajoker/supplymatch-backend/internal/models"
	"github.com/javajoker/supplymatch-backend/internal/storage"
)

// Failure is a physical delete that did not succeed. It is logged and
// reported, never returned to the caller of the delete that caused it.
type Failure struct {
	FileID int64
	Path   string
	Err    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("storage cleanup failed for file %d (%s): %v", f.FileID, f.Path, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Missing reports whether the object was already gone.
func (f *Failure) Missing() bool {
	return errors.Is(f.Err, storage.ErrObjectNotFound)
}

// Batch collects the File rows a delete statement is about to remove,
// whether they are the direct target or removed by cascade.
type Batch struct {
	files []models.File
}

func NewBatch() *Batch {
	return &Batch{}
}

func (b *Batch) Add(files ...models.File) {
	b.files = append(b.files, files...)
}

func (b *Batch) Files() []models.File {
	return b.files
}

func (b *Batch) Len() int {
	return len(b.files)
}

type Report struct {
	Removed  int
	Failures []*Failure
}

func (r Report) Missing() int {
	n := 0
	for _, f := range r.Failures {
		if f.Missing() {
			n++
		}
	}
	return n
}

type RetryReport struct {
	Resolved     int
	StillFailing int
}

type Cleaner struct {
	backend storage.Backend
	db      *gorm.DB
	limiter *rate.Limiter
	log     logrus.FieldLogger
	now     func() time.Time
}

type Option func(*Cleaner)

// WithRecorder stores failures in file_cleanup_failures for later retries.
func WithRecorder(db *gorm.DB) Option {
	return func(c *Cleaner) {
		c.db = db
	}
}

// WithRetryRate throttles RetryFailures to r deletes per second.
func WithRetryRate(r float64, burst int) Option {
	return func(c *Cleaner) {
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

func NewCleaner(backend storage.Backend, log logrus.FieldLogger, opts ...Option) *Cleaner {
	c := &Cleaner{
		backend: backend,
		limiter: rate.NewLimiter(rate.Inf, 1),
		log:     log.WithField("component", "file_cleanup"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cleaner) Backend() storage.Backend {
	return c.backend
}

// Purge removes the stored objects for every file in batch. It never fails:
// each error is logged, recorded when a recorder is configured, and returned
// in the report.
func (c *Cleaner) Purge(ctx context.Context, batch *Batch) Report {
	var report Report
	if batch == nil || batch.Len() == 0 {
		return report
	}

	// The metadata delete is already committed; finish even if the caller
	// has gone away.
	ctx = context.WithoutCancel(ctx)

	for _, file := range batch.Files() {
		if err := c.backend.Remove(ctx, file.StoragePath); err != nil {
			failure := &Failure{FileID: file.ID, Path: file.StoragePath, Err: err}
			report.Failures = append(report.Failures, failure)
			c.logFailure(failure)
			if !failure.Missing() {
				c.record(ctx, failure)
			}
			continue
		}
		report.Removed++
	}

	c.log.WithFields(logrus.Fields{
		"removed": report.Removed,
		"failed":  len(report.Failures),
	}).Debug("Storage cleanup finished")
	return report
}

func (c *Cleaner) logFailure(f *Failure) {
	entry := c.log.WithFields(logrus.Fields{
		"file_id":      f.FileID,
		"storage_path": f.Path,
		"backend":      c.backend.Name(),
	}).WithError(f.Err)

	if f.Missing() {
		entry.Info("Stored object already missing, skipping")
		return
	}
	entry.Warn("Failed to remove stored object")
}

func (c *Cleaner) record(ctx context.Context, f *Failure) {
	if c.db == nil {
		return
	}

	row := models.CleanupFailure{
		FileID:      f.FileID,
		StoragePath: f.Path,
		Backend:     c.backend.Name(),
		LastError:   f.Err.Error(),
		Attempts:    1,
	}
	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		c.log.WithError(err).WithField("file_id", f.FileID).Error("Failed to record storage cleanup failure")
	}
}

// RetryFailures re-attempts up to limit unresolved failures recorded for
// this backend.
func (c *Cleaner) RetryFailures(ctx context.Context, limit int) (RetryReport, error) {
	var report RetryReport
	if c.db == nil {
		return report, errors.New("cleanup recorder is not configured")
	}

	var pending []models.CleanupFailure
	err := c.db.WithContext(ctx).
		Where("resolved_at IS NULL AND backend = ?", c.backend.Name()).
		Order("created_at ASC").
		Limit(limit).
		Find(&pending).Error
	if err != nil {
		return report, fmt.Errorf("failed to load cleanup failures: %w", err)
	}

	for _, row := range pending {
		if err := c.limiter.Wait(ctx); err != nil {
			return report, err
		}

		removeErr := c.backend.Remove(ctx, row.StoragePath)
		updates := map[string]interface{}{}
		if removeErr == nil || errors.Is(removeErr, storage.ErrObjectNotFound) {
			updates["resolved_at"] = c.now()
			report.Resolved++
		} else {
			updates["attempts"] = gorm.Expr("attempts + 1")
			updates["last_error"] = removeErr.Error()
			report.StillFailing++
			c.logFailure(&Failure{FileID: row.FileID, Path: row.StoragePath, Err: removeErr})
		}

		if err := c.db.WithContext(ctx).Model(&models.CleanupFailure{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
			return report, fmt.Errorf("failed to update cleanup failure %d: %w", row.ID, err)
		}
	}

	c.log.WithFields(logrus.Fields{
		"resolved":      report.Resolved,
		"still_failing": report.StillFailing,
	}).Info("Storage cleanup retry finished")
	return report, nil
}
