package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lectern-backend/internal/data/repos"
	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
)

// lectureCascade removes lectures together with everything hanging off them.
// Rows go inside the caller's transaction; audio is removed after commit.
type lectureCascade struct {
	lectureRepo    repos.LectureRepo
	questionRepo   repos.QuestionRepo
	submissionRepo repos.SubmissionRepo
	runRepo        repos.GenerationRunRepo
	audio          AudioStore
}

func (c *lectureCascade) deleteRows(ctx context.Context, tx *gorm.DB, lectures []*types.Lecture) error {
	if len(lectures) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(lectures))
	for _, l := range lectures {
		ids = append(ids, l.ID)
	}
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	if err := c.submissionRepo.DeleteByLectureIDs(dbc, ids); err != nil {
		return repos.MapError("delete submissions", err)
	}
	if err := c.questionRepo.DeleteByLectureIDs(dbc, ids); err != nil {
		return repos.MapError("delete questions", err)
	}
	if err := c.runRepo.DeleteByLectureIDs(dbc, ids); err != nil {
		return repos.MapError("delete generation runs", err)
	}
	if err := c.lectureRepo.DeleteByIDs(dbc, ids); err != nil {
		return repos.MapError("delete lectures", err)
	}
	return nil
}

func (c *lectureCascade) removeAudio(ctx context.Context, lectures []*types.Lecture) {
	if c.audio == nil {
		return
	}
	for _, l := range lectures {
		if l.AudioPath == "" && l.AudioObject == "" {
			continue
		}
		c.audio.Remove(context.WithoutCancel(ctx), StoredAudio{Path: l.AudioPath, Object: l.AudioObject})
	}
}
