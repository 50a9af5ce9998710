package session

import "slices"

// Phase is the client-visible state of a signing attempt.
type Phase string

// Attempt phases. Completed and Failed are terminal; only Reset leaves them.
const (
	PhaseIdle       Phase = "idle"
	PhaseUploading  Phase = "uploading"
	PhaseTriggering Phase = "triggering"
	PhaseSigning    Phase = "signing"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether p ends an attempt.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Attempt is everything retained for one signing attempt. URLs point at
// publicly readable objects and must be kept out of logs and output.
type Attempt struct {
	Phase Phase
	// RunID is zero until the run has been discovered.
	RunID int64
	// URLs are the stored objects awaiting cleanup.
	URLs []string
	// ArtifactURL is the same-origin download path once completed.
	ArtifactURL string
	// Error is the plain-language failure message.
	Error string
}

func (a Attempt) clone() Attempt {
	a.URLs = slices.Clone(a.URLs)
	return a
}

// pollState is threaded through every poll step of one attempt.
type pollState struct {
	gen      uint64
	runID    int64
	locates  int
	failures int
}
