package database

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/models"
)

// gorm rebinds '?' placeholders for the active dialect, so statements are
// always built with sq.Question.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

const (
	CounterPhotos     = "photo_count"
	CounterDuplicates = "duplicate_count"
	CounterErrors     = "error_count"
)

var sessionCounters = map[string]bool{
	CounterPhotos:     true,
	CounterDuplicates: true,
	CounterErrors:     true,
}

// pathChunkSize keeps IN lists under sqlite's variable limit.
const pathChunkSize = 500

// IncrementSessionCounter adds delta to one session counter with a single
// UPDATE ... SET x = x + ? so concurrent writers never lose updates.
func IncrementSessionCounter(tx *gorm.DB, sessionID uuid.UUID, column string, delta int) error {
	if !sessionCounters[column] {
		return fmt.Errorf("invalid session counter column: %s", column)
	}

	sqlStr, args, err := psql.Update("input_sessions").
		Set(column, sq.Expr(column+" + ?", delta)).
		Where(sq.Eq{"id": sessionID.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL for IncrementSessionCounter: %w", err)
	}

	res := tx.Exec(sqlStr, args...)
	if res.Error != nil {
		return fmt.Errorf("failed to increment %s for session %s: %w", column, sessionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AdvanceSessionStatus moves a session to status `to` only if its current
// status is one of `from`. It reports whether the row changed.
func AdvanceSessionStatus(tx *gorm.DB, sessionID uuid.UUID, to string, from []string) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}

	q := psql.Update("input_sessions").
		Set("status", to).
		Where(sq.Eq{"id": sessionID.String(), "status": from})
	if models.IsTerminalSessionStatus(to) {
		q = q.Set("completed_at", time.Now().UTC())
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build SQL for AdvanceSessionStatus: %w", err)
	}

	res := tx.Exec(sqlStr, args...)
	if res.Error != nil {
		return false, fmt.Errorf("failed to move session %s to %s: %w", sessionID, to, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// FindRegisteredPaths returns the subset of paths already stored as
// ImageFile rows.
func FindRegisteredPaths(db *gorm.DB, paths []string) (map[string]bool, error) {
	known := make(map[string]bool, len(paths))
	for start := 0; start < len(paths); start += pathChunkSize {
		end := min(start+pathChunkSize, len(paths))

		sqlStr, args, err := psql.Select("file_path").
			From("image_files").
			Where(sq.Eq{"file_path": paths[start:end]}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build SQL for FindRegisteredPaths: %w", err)
		}

		var found []string
		if err := db.Raw(sqlStr, args...).Scan(&found).Error; err != nil {
			return nil, fmt.Errorf("failed to query registered paths: %w", err)
		}
		for _, p := range found {
			known[p] = true
		}
	}
	return known, nil
}

// CopyProgress is the per-file delta applied to a FileCopyOperation.
type CopyProgress struct {
	FilesCopied  int
	FilesSkipped int
	BytesCopied  int64
}

// IncrementCopyProgress applies a progress delta in one statement.
func IncrementCopyProgress(tx *gorm.DB, operationID uuid.UUID, delta CopyProgress) error {
	sqlStr, args, err := psql.Update("file_copy_operations").
		Set("files_copied", sq.Expr("files_copied + ?", delta.FilesCopied)).
		Set("files_skipped", sq.Expr("files_skipped + ?", delta.FilesSkipped)).
		Set("bytes_copied", sq.Expr("bytes_copied + ?", delta.BytesCopied)).
		Where(sq.Eq{"id": operationID.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL for IncrementCopyProgress: %w", err)
	}

	if err := tx.Exec(sqlStr, args...).Error; err != nil {
		return fmt.Errorf("failed to update copy progress for %s: %w", operationID, err)
	}
	return nil
}
