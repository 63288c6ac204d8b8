package ui

import "github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/event"

// Event is the engine event consumed by presenters.
type Event = event.Event

// Re-export event types for convenience.
const (
	AcquireStarted     = event.AcquireStarted
	Progress           = event.Progress
	BadSector          = event.BadSector
	AcquireCompleted   = event.AcquireCompleted
	AcquireAborted     = event.AcquireAborted
	WriteBlockApplied  = event.WriteBlockApplied
	WriteBlockFailed   = event.WriteBlockFailed
	WriteBlockReleased = event.WriteBlockReleased
	VerifyStarted      = event.VerifyStarted
	VerifyOK           = event.VerifyOK
	VerifyFailed       = event.VerifyFailed
	StepStarted        = event.StepStarted
	StepCompleted      = event.StepCompleted
	StepFailed         = event.StepFailed
)
