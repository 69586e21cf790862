package domain

import (
	"github.com/yungbote/segbridge/internal/domain/runs"
)

type EnsembleRun = runs.EnsembleRun
type RunMember = runs.RunMember
type SampleResult = runs.SampleResult

const (
	RunStatusPending = runs.StatusPending
	RunStatusRunning = runs.StatusRunning
	RunStatusDone    = runs.StatusDone
	RunStatusFailed  = runs.StatusFailed

	SampleStatusDone   = runs.SampleStatusDone
	SampleStatusFailed = runs.SampleStatusFailed
)
