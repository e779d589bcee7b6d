package model

import "time"

// RunKind distinguishes extraction runs from validation runs in the audit log.
type RunKind string

const (
	RunKindExtract  RunKind = "extract"
	RunKindValidate RunKind = "validate"
)

// RunStatus is the lifecycle state of an audit run row.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one audit row for a processing pass over the record store.
type Run struct {
	ID            string
	Kind          RunKind
	Status        RunStatus
	FieldsUpdated int
	Failures      int
	StartedAt     time.Time
	FinishedAt    *time.Time
}
