package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	AcquireStarted Type = iota + 1
	Progress
	BadSector
	AcquireCompleted
	AcquireAborted
	WriteBlockApplied
	WriteBlockFailed
	WriteBlockReleased
	VerifyStarted
	VerifyOK
	VerifyFailed
	StepStarted
	StepCompleted
	StepFailed
)

var typeNames = [...]string{
	AcquireStarted:     "AcquireStarted",
	Progress:           "Progress",
	BadSector:          "BadSector",
	AcquireCompleted:   "AcquireCompleted",
	AcquireAborted:     "AcquireAborted",
	WriteBlockApplied:  "WriteBlockApplied",
	WriteBlockFailed:   "WriteBlockFailed",
	WriteBlockReleased: "WriteBlockReleased",
	VerifyStarted:      "VerifyStarted",
	VerifyOK:           "VerifyOK",
	VerifyFailed:       "VerifyFailed",
	StepStarted:        "StepStarted",
	StepCompleted:      "StepCompleted",
	StepFailed:         "StepFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress or lifecycle event from the engine.
type Event struct {
	Type       Type
	Timestamp  time.Time
	Path       string        // source, destination or step output
	Offset     int64         // source offset (BadSector)
	Size       int64         // bytes processed so far, or span length (BadSector)
	Total      int64         // total source length
	Elapsed    time.Duration // time since RUNNING began
	BadSectors int64         // bad sectors seen so far
	Percent    float64       // 0-100, two decimals
	MBps       float64       // MiB/s since start
	Step       string        // post-processing step name
	Error      error
}
