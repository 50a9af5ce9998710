// Package session drives one signing attempt from the client side:
// upload both files, trigger the workflow, poll until the run is terminal,
// expose the download and clean up the staged objects.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
	"github.com/Testers-Community/android-aab-signer/internal/validation"
)

// ErrReset is returned by Submit when the attempt was reset while it ran.
var ErrReset = errors.New("signing attempt was reset")

// File is one input to sign. Body is read once.
type File struct {
	Name string
	Size int64
	Body io.Reader
}

// Request is one user submission.
type Request struct {
	AAB              File
	Keystore         File
	KeystorePassword string
	KeyAlias         string
	KeyPassword      string
}

// SignInput is what the trigger call receives once both files are stored.
type SignInput struct {
	AABURL           string
	KeystoreURL      string
	AABFileName      string
	KeystoreFileName string
	KeystorePassword string
	KeyAlias         string
	KeyPassword      string
}

// RunStatus is one status poll result.
type RunStatus struct {
	Status      string
	Conclusion  string
	ArtifactURL string
	Error       string
}

// Uploader stores a file under pathname and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, pathname string, f File) (string, error)
}

// Signer triggers the workflow and locates runs discovery missed.
type Signer interface {
	Sign(ctx context.Context, in SignInput) (runID int64, found bool, err error)
	LocateRun(ctx context.Context) (runID int64, found bool, err error)
}

// StatusChecker reads the state of a run.
type StatusChecker interface {
	Status(ctx context.Context, runID int64) (RunStatus, error)
}

// Cleaner deletes stored objects.
type Cleaner interface {
	Cleanup(ctx context.Context, urls []string) error
}

// Backend is everything an Orchestrator talks to.
type Backend interface {
	Uploader
	Signer
	StatusChecker
	Cleaner
}

// Options tunes polling. Zero values take the defaults below.
type Options struct {
	PollInterval      time.Duration
	MissingRunDelay   time.Duration
	MaxPollErrors     int
	MaxLocateAttempts int
	CleanupTimeout    time.Duration
	// OnTransition is called after every phase change, outside any lock.
	OnTransition func(from Phase, to Attempt)

	now   func() time.Time
	token func() string
}

// Polling defaults.
const (
	DefaultPollInterval      = 5 * time.Second
	DefaultMissingRunDelay   = 5 * time.Second
	DefaultMaxPollErrors     = 3
	DefaultMaxLocateAttempts = 12
	DefaultCleanupTimeout    = 30 * time.Second
)

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MissingRunDelay <= 0 {
		o.MissingRunDelay = DefaultMissingRunDelay
	}
	if o.MaxPollErrors <= 0 {
		o.MaxPollErrors = DefaultMaxPollErrors
	}
	if o.MaxLocateAttempts <= 0 {
		o.MaxLocateAttempts = DefaultMaxLocateAttempts
	}
	if o.CleanupTimeout <= 0 {
		o.CleanupTimeout = DefaultCleanupTimeout
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.token == nil {
		o.token = uuid.NewString
	}
	return o
}

// Orchestrator owns a single signing attempt at a time.
type Orchestrator struct {
	backend Backend
	opts    Options
	log     zerolog.Logger

	mu      sync.Mutex
	gen     uint64
	attempt Attempt
	task    *Task
	cancel  context.CancelFunc
	done    chan struct{}

	cleanups sync.WaitGroup
}

// New creates an idle Orchestrator.
func New(backend Backend, opts Options, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		backend: backend,
		opts:    opts.withDefaults(),
		log:     logger,
		attempt: Attempt{Phase: PhaseIdle},
	}
}

// Snapshot returns a copy of the current attempt.
func (o *Orchestrator) Snapshot() Attempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempt.clone()
}

// Submit validates req, uploads both files, triggers the workflow and starts
// polling. It returns once the attempt is signing or has failed; Wait blocks
// until the outcome. Validation failures leave the orchestrator idle.
func (o *Orchestrator) Submit(ctx context.Context, req Request) error {
	if err := validate(req); err != nil {
		return err
	}

	o.mu.Lock()
	if o.attempt.Phase != PhaseIdle {
		o.mu.Unlock()
		return signerrors.ErrBusy
	}
	o.gen++
	gen := o.gen
	opCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	o.mu.Unlock()
	defer cancel()

	if !o.advance(gen, PhaseUploading, nil) {
		return ErrReset
	}
	aabURL, keystoreURL, err := o.upload(opCtx, gen, req)
	if err != nil {
		return o.fail(gen, fmt.Errorf("upload: %w", err))
	}

	if !o.advance(gen, PhaseTriggering, nil) {
		return ErrReset
	}
	runID, found, err := o.backend.Sign(opCtx, SignInput{
		AABURL:           aabURL,
		KeystoreURL:      keystoreURL,
		AABFileName:      baseName(req.AAB.Name),
		KeystoreFileName: baseName(req.Keystore.Name),
		KeystorePassword: req.KeystorePassword,
		KeyAlias:         req.KeyAlias,
		KeyPassword:      req.KeyPassword,
	})
	if err != nil {
		return o.fail(gen, fmt.Errorf("trigger: %w", err))
	}

	delay := o.opts.PollInterval
	if !found {
		runID = 0
		delay = o.opts.MissingRunDelay
		o.log.Warn().Msg("session: run not discovered, waiting before locating it")
	}
	if !o.advance(gen, PhaseSigning, func(a *Attempt) { a.RunID = runID }) {
		return ErrReset
	}

	state := &pollState{gen: gen, runID: runID}
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen == o.gen {
		// The task outlives Submit's caller context; Reset or a terminal phase stops it.
		o.task = schedule(context.WithoutCancel(ctx), delay, o.opts.PollInterval, func(ctx context.Context) bool {
			return o.poll(ctx, state)
		})
	}
	return nil
}

// Wait blocks until the current attempt is terminal or reset, or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) (Attempt, error) {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done == nil {
		return o.Snapshot(), nil
	}
	select {
	case <-done:
		return o.Snapshot(), nil
	case <-ctx.Done():
		return o.Snapshot(), ctx.Err()
	}
}

// Reset stops observing the current attempt and clears it. The remote run is
// not cancelled. Objects of an attempt that had not reached a terminal phase
// are left for the bucket lifecycle rule, since the run may still fetch them.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	from := o.attempt.Phase
	o.gen++
	if o.task != nil {
		o.task.Stop()
		o.task = nil
	}
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	if o.done != nil && !from.Terminal() {
		close(o.done)
	}
	o.done = nil
	o.attempt = Attempt{Phase: PhaseIdle}
	snap := o.attempt.clone()
	o.mu.Unlock()

	if from != PhaseIdle {
		o.notify(from, snap)
	}
}

// Close stops polling, waits for an in-flight poll to return, then waits
// for outstanding cleanups.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	task := o.task
	if task != nil {
		task.Stop()
	}
	o.mu.Unlock()
	if task != nil {
		<-task.Done()
	}
	o.cleanups.Wait()
}

// upload stores both files in parallel under one unguessable prefix. URLs of
// files that did store are recorded even when the other upload fails.
func (o *Orchestrator) upload(ctx context.Context, gen uint64, req Request) (string, string, error) {
	prefix := fmt.Sprintf("%s%d-%s", validation.UploadPrefix, o.opts.now().UnixMilli(), o.opts.token())

	var aabURL, keystoreURL string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := o.backend.Upload(gctx, prefix+"/"+baseName(req.AAB.Name), req.AAB)
		if err != nil {
			return fmt.Errorf("aab: %w", err)
		}
		aabURL = u
		o.record(gen, u)
		return nil
	})
	g.Go(func() error {
		u, err := o.backend.Upload(gctx, prefix+"/"+baseName(req.Keystore.Name), req.Keystore)
		if err != nil {
			return fmt.Errorf("keystore: %w", err)
		}
		keystoreURL = u
		o.record(gen, u)
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return aabURL, keystoreURL, nil
}

func (o *Orchestrator) record(gen uint64, url string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen == o.gen {
		o.attempt.URLs = append(o.attempt.URLs, url)
	}
}

// poll is one tick. It returns false once polling must stop.
func (o *Orchestrator) poll(ctx context.Context, p *pollState) bool {
	if p.runID == 0 {
		runID, found, err := o.backend.LocateRun(ctx)
		if err != nil {
			return o.pollFailed(ctx, p, err)
		}
		if !found {
			p.locates++
			if p.locates >= o.opts.MaxLocateAttempts {
				o.fail(p.gen, signerrors.ErrDiscoveryMiss)
				return false
			}
			return true
		}
		p.runID = runID
		o.mu.Lock()
		if p.gen == o.gen {
			o.attempt.RunID = runID
		}
		o.mu.Unlock()
		o.log.Info().Int64("run_id", runID).Msg("session: run located")
	}

	st, err := o.backend.Status(ctx, p.runID)
	if err != nil {
		return o.pollFailed(ctx, p, err)
	}
	p.failures = 0
	if st.Status != "completed" {
		return true
	}

	if st.Conclusion == "success" && st.ArtifactURL != "" {
		o.advance(p.gen, PhaseCompleted, func(a *Attempt) { a.ArtifactURL = st.ArtifactURL })
		return false
	}
	msg := st.Error
	if msg == "" {
		msg = conclusionMessage(st.Conclusion)
	}
	o.advance(p.gen, PhaseFailed, func(a *Attempt) { a.Error = msg })
	return false
}

// pollFailed counts a transport error and fails the attempt past tolerance.
func (o *Orchestrator) pollFailed(ctx context.Context, p *pollState, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	p.failures++
	o.log.Warn().Err(err).Int("consecutive", p.failures).Msg("session: poll failed")
	if p.failures >= o.opts.MaxPollErrors {
		o.fail(p.gen, err)
		return false
	}
	return true
}

// fail moves the attempt to failed with the user message for err and returns err.
func (o *Orchestrator) fail(gen uint64, err error) error {
	if !o.advance(gen, PhaseFailed, func(a *Attempt) { a.Error = signerrors.UserMessage(err) }) {
		return ErrReset
	}
	return err
}

// advance moves attempt gen to phase to. It reports false when the attempt
// was reset or already terminal. Reaching a terminal phase stops polling and
// starts cleanup without waiting for it.
func (o *Orchestrator) advance(gen uint64, to Phase, mutate func(*Attempt)) bool {
	o.mu.Lock()
	from := o.attempt.Phase
	if gen != o.gen || from.Terminal() {
		o.mu.Unlock()
		return false
	}
	o.attempt.Phase = to
	if mutate != nil {
		mutate(&o.attempt)
	}
	snap := o.attempt.clone()
	if to.Terminal() {
		if o.task != nil {
			o.task.Stop()
		}
		close(o.done)
	}
	o.mu.Unlock()

	o.notify(from, snap)
	if to.Terminal() {
		o.cleanup(snap.URLs)
	}
	return true
}

func (o *Orchestrator) notify(from Phase, to Attempt) {
	ev := o.log.Info().Str("from", string(from)).Str("to", string(to.Phase))
	if to.RunID != 0 {
		ev = ev.Int64("run_id", to.RunID)
	}
	ev.Msg("session: transition")
	if o.opts.OnTransition != nil {
		o.opts.OnTransition(from, to)
	}
}

// cleanup deletes urls in the background. Failures are logged only.
func (o *Orchestrator) cleanup(urls []string) {
	if len(urls) == 0 {
		return
	}
	o.cleanups.Add(1)
	go func() {
		defer o.cleanups.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.opts.CleanupTimeout)
		defer cancel()
		if err := o.backend.Cleanup(ctx, urls); err != nil {
			o.log.Warn().Err(err).Int("objects", len(urls)).Msg("session: cleanup failed")
		}
	}()
}

func validate(req Request) error {
	if err := validation.AABFile(baseName(req.AAB.Name), req.AAB.Size); err != nil {
		return err
	}
	if err := validation.KeystoreFile(baseName(req.Keystore.Name), req.Keystore.Size); err != nil {
		return err
	}
	return validation.SigningParams(validation.Params{
		KeystorePassword: req.KeystorePassword,
		KeyAlias:         req.KeyAlias,
		KeyPassword:      req.KeyPassword,
	})
}

func conclusionMessage(conclusion string) string {
	if conclusion == "cancelled" {
		return signerrors.MsgRunCancelled
	}
	return signerrors.MsgRunFailed
}

// baseName strips any directory part, including Windows separators.
func baseName(name string) string {
	return path.Base(strings.ReplaceAll(name, `\`, "/"))
}
