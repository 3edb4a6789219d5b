package workers

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/logging"
	"github.com/camden-git/photocatalog/metrics"
	"github.com/camden-git/photocatalog/models"
	"github.com/camden-git/photocatalog/realtime"
	"github.com/camden-git/photocatalog/repository"
	"github.com/camden-git/photocatalog/scanner"
	"github.com/camden-git/photocatalog/utils"
)

// FileCopier runs copy operations one at a time on a single goroutine.
// Files inside an operation are copied sequentially and cancellation is
// checked before each file.
type FileCopier struct {
	ops      repository.FileCopyRepositoryInterface
	queue    chan uuid.UUID
	StopChan chan struct{}
	Wg       sync.WaitGroup
	// Events receives per-file progress and the final status. May be nil.
	Events *realtime.Hub

	mu        sync.Mutex
	cancelled map[uuid.UUID]bool
	idle      *sync.Cond
	busy      int
	log       *zerolog.Logger
}

func NewFileCopier(db *gorm.DB, queueSize int) *FileCopier {
	if queueSize <= 0 {
		queueSize = 32
	}
	c := &FileCopier{
		ops:       repository.NewFileCopyRepository(db),
		queue:     make(chan uuid.UUID, queueSize),
		StopChan:  make(chan struct{}),
		cancelled: make(map[uuid.UUID]bool),
		log:       logging.Component("file_copy"),
	}
	c.idle = sync.NewCond(&c.mu)
	c.Wg.Add(1)
	go c.worker()
	return c
}

// Enqueue schedules an operation. It reports false when the queue is full.
func (c *FileCopier) Enqueue(id uuid.UUID) bool {
	c.mu.Lock()
	c.busy++
	c.mu.Unlock()

	select {
	case c.queue <- id:
		return true
	default:
		c.done()
		return false
	}
}

// Cancel asks a running operation to stop before its next file.
func (c *FileCopier) Cancel(id uuid.UUID) {
	c.mu.Lock()
	c.cancelled[id] = true
	c.mu.Unlock()
}

// Wait blocks until every enqueued operation has finished.
func (c *FileCopier) Wait() {
	c.mu.Lock()
	for c.busy > 0 {
		c.idle.Wait()
	}
	c.mu.Unlock()
}

func (c *FileCopier) Stop() {
	close(c.StopChan)
	c.Wg.Wait()
}

func (c *FileCopier) done() {
	c.mu.Lock()
	c.busy--
	if c.busy == 0 {
		c.idle.Broadcast()
	}
	c.mu.Unlock()
}

func (c *FileCopier) isCancelled(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled[id]
}

func (c *FileCopier) worker() {
	defer c.Wg.Done()
	for {
		select {
		case id := <-c.queue:
			c.run(id)
			c.mu.Lock()
			delete(c.cancelled, id)
			c.mu.Unlock()
			c.done()
		case <-c.StopChan:
			return
		}
	}
}

func (c *FileCopier) run(id uuid.UUID) {
	op, err := c.ops.GetByID(id)
	if err != nil {
		c.log.Error().Err(err).Str("operation", id.String()).Msg("copy operation vanished before start")
		return
	}

	files, collectErr := scanner.CollectCopySources(op.SourcePath, op.IncludeVideos)
	var bytesTotal int64
	for _, f := range files {
		bytesTotal += f.Size
	}

	claimed, err := c.ops.MarkRunning(id, len(files), bytesTotal)
	if err != nil {
		c.log.Error().Err(err).Str("operation", id.String()).Msg("cannot start copy operation")
		return
	}
	if !claimed {
		c.log.Info().Str("operation", id.String()).Msg("copy operation no longer pending, skipped")
		return
	}

	if collectErr != nil {
		c.fail(id, collectErr)
		return
	}
	if err := os.MkdirAll(op.DestinationPath, 0755); err != nil {
		c.fail(id, err)
		return
	}

	c.log.Info().Str("operation", id.String()).Int("files", len(files)).Int64("bytes", bytesTotal).Msg("copy operation started")
	for _, f := range files {
		if c.isCancelled(id) {
			c.finish(id, models.CopyStatusCancelled, nil)
			return
		}
		if err := c.copyOne(op, f); err != nil {
			c.fail(id, err)
			return
		}
	}
	c.finish(id, models.CopyStatusCompleted, nil)
}

// copyOne copies a single file. Only bookkeeping failures are returned;
// per-file problems become skip rows.
func (c *FileCopier) copyOne(op *models.FileCopyOperation, f scanner.SourceFile) error {
	dst := filepath.Join(op.DestinationPath, filepath.Base(f.Path))

	if _, err := os.Lstat(dst); err == nil {
		return c.skip(op.ID, f.Path, models.SkipReasonAlreadyExists, nil)
	} else if !errors.Is(err, fs.ErrNotExist) {
		detail := err.Error()
		return c.skip(op.ID, f.Path, models.SkipReasonWriteError, &detail)
	}

	srcHash, n, err := utils.CopyFile(f.Path, dst)
	if err != nil {
		detail := err.Error()
		return c.skip(op.ID, f.Path, models.SkipReasonWriteError, &detail)
	}

	if op.VerifyAfterCopy {
		dstHash, _, err := utils.HashFile(dst)
		if err != nil || dstHash != srcHash {
			os.Remove(dst)
			return c.skip(op.ID, f.Path, models.SkipReasonHashMismatch, nil)
		}
	}

	metrics.FileCopyFiles.WithLabelValues("copied").Inc()
	c.publish(op.ID, f.Path, "copied", "")
	return c.ops.RecordCopied(op.ID, n)
}

func (c *FileCopier) skip(id uuid.UUID, path, reason string, detail *string) error {
	metrics.FileCopyFiles.WithLabelValues(reason).Inc()
	c.publish(id, path, reason, "")
	return c.ops.RecordSkip(&models.FileCopySkip{
		OperationID: id,
		SourcePath:  path,
		Reason:      reason,
		Detail:      detail,
	})
}

func (c *FileCopier) fail(id uuid.UUID, cause error) {
	c.log.Error().Err(cause).Str("operation", id.String()).Msg("copy operation failed")
	msg := cause.Error()
	c.finish(id, models.CopyStatusFailed, &msg)
}

func (c *FileCopier) finish(id uuid.UUID, status string, errMsg *string) {
	if err := c.ops.Finish(id, status, errMsg); err != nil {
		c.log.Error().Err(err).Str("operation", id.String()).Msg("cannot record copy result")
		return
	}
	c.log.Info().Str("operation", id.String()).Str("status", status).Msg("copy operation finished")
	var msg string
	if errMsg != nil {
		msg = *errMsg
	}
	c.publish(id, "", status, msg)
}

func (c *FileCopier) publish(id uuid.UUID, path, status, errMsg string) {
	c.Events.Publish(realtime.Event{
		Type:        realtime.EventFileCopy,
		OperationID: &id,
		Path:        path,
		Status:      status,
		Error:       errMsg,
	})
}
