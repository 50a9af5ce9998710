package github

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
)

// field records whether a JSON member was absent, null, or carried a value.
type field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// UnmarshalJSON is invoked for present members only, including null.
func (f *field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if string(b) == "null" {
		f.Null = true
		return nil
	}
	return json.Unmarshal(b, &f.Value)
}

func (f field[T]) present() bool {
	return f.Set && !f.Null
}

func schemaError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", signerrors.ErrUnexpectedResponse, fmt.Sprintf(format, args...))
}

// decode reads one JSON document; malformed bodies and type mismatches are schema errors.
func decode(r io.Reader, dst any) error {
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return schemaError("decode: %v", err)
	}
	return nil
}

type wireRun struct {
	ID         field[int64]     `json:"id"`
	Status     field[string]    `json:"status"`
	Conclusion field[string]    `json:"conclusion"`
	CreatedAt  field[time.Time] `json:"created_at"`
}

type wireRunList struct {
	WorkflowRuns field[[]wireRun] `json:"workflow_runs"`
}

type wireArtifact struct {
	ID      field[int64]  `json:"id"`
	Name    field[string] `json:"name"`
	Expired field[bool]   `json:"expired"`
}

type wireArtifactList struct {
	Artifacts field[[]wireArtifact] `json:"artifacts"`
}

// statuses maps every GitHub run status onto the three lifecycle states.
var statuses = map[string]Status{
	"queued":      StatusQueued,
	"requested":   StatusQueued,
	"waiting":     StatusQueued,
	"pending":     StatusQueued,
	"in_progress": StatusInProgress,
	"completed":   StatusCompleted,
}

// conclusions maps every GitHub conclusion onto success, failure or cancelled.
var conclusions = map[string]Conclusion{
	"success":         ConclusionSuccess,
	"cancelled":       ConclusionCancelled,
	"failure":         ConclusionFailure,
	"timed_out":       ConclusionFailure,
	"action_required": ConclusionFailure,
	"neutral":         ConclusionFailure,
	"skipped":         ConclusionFailure,
	"stale":           ConclusionFailure,
	"startup_failure": ConclusionFailure,
}

// run validates a decoded run. Conclusion is kept only for completed runs,
// and a completed run must carry one.
func (w wireRun) run() (Run, error) {
	if !w.ID.present() || w.ID.Value <= 0 {
		return Run{}, schemaError("run id absent or invalid")
	}
	if !w.Status.present() {
		return Run{}, schemaError("run %d: status absent", w.ID.Value)
	}
	status, ok := statuses[w.Status.Value]
	if !ok {
		return Run{}, schemaError("run %d: unknown status %q", w.ID.Value, w.Status.Value)
	}
	if !w.CreatedAt.present() {
		return Run{}, schemaError("run %d: created_at absent", w.ID.Value)
	}

	r := Run{ID: w.ID.Value, Status: status, CreatedAt: w.CreatedAt.Value}
	if status != StatusCompleted {
		return r, nil
	}
	if !w.Conclusion.present() {
		return Run{}, schemaError("run %d: completed without conclusion", w.ID.Value)
	}
	conclusion, ok := conclusions[w.Conclusion.Value]
	if !ok {
		return Run{}, schemaError("run %d: unknown conclusion %q", w.ID.Value, w.Conclusion.Value)
	}
	r.Conclusion = conclusion
	return r, nil
}

func (w wireRunList) runs() ([]Run, error) {
	if !w.WorkflowRuns.present() {
		return nil, schemaError("workflow_runs absent")
	}
	out := make([]Run, 0, len(w.WorkflowRuns.Value))
	for _, wr := range w.WorkflowRuns.Value {
		r, err := wr.run()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (w wireArtifactList) artifacts() ([]Artifact, error) {
	if !w.Artifacts.present() {
		return nil, schemaError("artifacts absent")
	}
	out := make([]Artifact, 0, len(w.Artifacts.Value))
	for _, wa := range w.Artifacts.Value {
		if !wa.ID.present() || !wa.Name.present() {
			return nil, schemaError("artifact id or name absent")
		}
		out = append(out, Artifact{ID: wa.ID.Value, Name: wa.Name.Value, Expired: wa.Expired.Value})
	}
	return out, nil
}
