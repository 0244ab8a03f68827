package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type GenerationRunRepo interface {
	Create(dbc dbctx.Context, run *types.GenerationRun) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GenerationRun, error)
	GetLatestByLecture(dbc dbctx.Context, lectureID uuid.UUID) (*types.GenerationRun, error)
	HasActiveForLecture(dbc dbctx.Context, lectureID uuid.UUID) (bool, error)
	ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.GenerationRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	DeleteByLectureIDs(dbc dbctx.Context, lectureIDs []uuid.UUID) error
}

type generationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRunRepo {
	return &generationRunRepo{
		db:  db,
		log: baseLog.With("repo", "GenerationRunRepo"),
	}
}

func (r *generationRunRepo) Create(dbc dbctx.Context, run *types.GenerationRun) error {
	return dbc.DB(r.db).Create(run).Error
}

func (r *generationRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GenerationRun, error) {
	var run types.GenerationRun
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&run).Error; err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *generationRunRepo) GetLatestByLecture(dbc dbctx.Context, lectureID uuid.UUID) (*types.GenerationRun, error) {
	if lectureID == uuid.Nil {
		return nil, nil
	}
	var run types.GenerationRun
	err := dbc.DB(r.db).
		Where("lecture_id = ?", lectureID).
		Order("created_at DESC").
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *generationRunRepo) HasActiveForLecture(dbc dbctx.Context, lectureID uuid.UUID) (bool, error) {
	var count int64
	err := dbc.DB(r.db).
		Model(&types.GenerationRun{}).
		Where("lecture_id = ? AND status IN ?", lectureID, []string{types.RunStatusQueued, types.RunStatusRunning}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ClaimNextRunnable picks the oldest run that is queued, failed but due for a
// retry, or running with a stale heartbeat, and marks it running.
func (r *generationRunRepo) ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.GenerationRun, error) {
	now := time.Now()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.GenerationRun
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		var run types.GenerationRun
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
        (
          status = ?
          OR (
            status = ?
            AND attempts < ?
            AND (last_error_at IS NULL OR last_error_at < ?)
          )
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, types.RunStatusQueued, types.RunStatusFailed, maxAttempts, retryCutoff, types.RunStatusRunning, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&run).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.GenerationRun{}).
			Where("id = ?", run.ID).
			Updates(map[string]interface{}{
				"status":       types.RunStatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		run.Status = types.RunStatusRunning
		run.Attempts++
		run.LockedAt = &now
		run.HeartbeatAt = &now
		run.UpdatedAt = now
		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *generationRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.DB(r.db).
		Model(&types.GenerationRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *generationRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return dbc.DB(r.db).
		Model(&types.GenerationRun{}).
		Where("id = ? AND status = ?", id, types.RunStatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

func (r *generationRunRepo) DeleteByLectureIDs(dbc dbctx.Context, lectureIDs []uuid.UUID) error {
	if len(lectureIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("lecture_id IN ?", lectureIDs).Delete(&types.GenerationRun{}).Error
}
