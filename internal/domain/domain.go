package domain

import (
	"github.com/yungbote/lectern-backend/internal/domain/classroom"
)

const (
	RoleTeacher = classroom.RoleTeacher
	RoleStudent = classroom.RoleStudent

	QuestionTypeMCQ = classroom.QuestionTypeMCQ
	QuestionTypeTF  = classroom.QuestionTypeTF

	RunStatusQueued    = classroom.RunStatusQueued
	RunStatusRunning   = classroom.RunStatusRunning
	RunStatusSucceeded = classroom.RunStatusSucceeded
	RunStatusFailed    = classroom.RunStatusFailed

	RunSourceAudio      = classroom.RunSourceAudio
	RunSourceTranscript = classroom.RunSourceTranscript
)

type User = classroom.User
type Course = classroom.Course
type Lecture = classroom.Lecture
type Question = classroom.Question
type Submission = classroom.Submission
type GenerationRun = classroom.GenerationRun

var (
	ValidRole       = classroom.ValidRole
	NormalizeAnswer = classroom.NormalizeAnswer
)
