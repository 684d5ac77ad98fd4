package supervisor

import (
	"time"

	"modelgate/internal/config"
)

// Phase is the startup state of one model.
//
//	idle -> launching -> probing -> ready
//	                  \          \-> failed
//	                   \-> failed
//	idle -> skipped (startup halted before this model)
//	any  -> stopped (StopAll)
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLaunching Phase = "launching"
	PhaseProbing   Phase = "probing"
	PhaseReady     Phase = "ready"
	PhaseFailed    Phase = "failed"
	PhaseSkipped   Phase = "skipped"
	PhaseStopped   Phase = "stopped"
)

// WorkerHandle is the registry entry for a launched worker.
type WorkerHandle struct {
	Name     string
	Port     int
	LaunchID string
	Process  Process
}

// modelState tracks one configured model through startup.
type modelState struct {
	spec       config.ModelSpec
	phase      Phase
	pid        int
	launchID   string
	err        string
	launchedAt time.Time
	readyAfter time.Duration
}

// Report summarizes a StartAll run. Names appear in configuration order.
type Report struct {
	Ready   []string
	Failed  []string
	Skipped []string
	// Halted is true when a readiness failure stopped the sequence early.
	Halted bool
}
