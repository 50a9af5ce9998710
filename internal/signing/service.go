// Package signing is the server side of a signing attempt: it dispatches the
// signing workflow, reports run status, proxies the signed artifact and
// removes staged inputs.
package signing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Testers-Community/android-aab-signer/internal/config"
	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
	"github.com/Testers-Community/android-aab-signer/internal/github"
	"github.com/Testers-Community/android-aab-signer/internal/runclaim"
	"github.com/Testers-Community/android-aab-signer/internal/storage"
	"github.com/Testers-Community/android-aab-signer/internal/validation"
)

// Default file names sent to the workflow when the client omits them.
const (
	DefaultAABFileName      = "app.aab"
	DefaultKeystoreFileName = "keystore.jks"
)

// Workflow is the CI platform as seen by the service. *github.Client satisfies it.
type Workflow interface {
	Dispatch(ctx context.Context, inputs map[string]string, secrets ...string) error
	Discover(ctx context.Context, window time.Duration, perPage int, claimer github.Claimer) (int64, error)
	GetRun(ctx context.Context, runID int64) (github.Run, error)
	ArtifactLocator(ctx context.Context, runID int64) (string, error)
	Download(ctx context.Context, locator string) ([]byte, error)
}

// SignRequest is one submission. Credentials live only in this value for the
// duration of the request.
type SignRequest struct {
	AABURL           string
	KeystoreURL      string
	AABFileName      string
	KeystoreFileName string
	KeystorePassword string
	KeyAlias         string
	KeyPassword      string
}

// SignResult reports the dispatched run. RunID is zero when discovery missed.
type SignResult struct {
	RunID int64
}

// Found reports whether discovery located the run.
func (r SignResult) Found() bool {
	return r.RunID > 0
}

// StatusReport is the client-facing view of a run.
type StatusReport struct {
	Status      github.Status
	Conclusion  github.Conclusion
	ArtifactURL string
	Error       string
}

// Service coordinates the workflow, the claim ledger and staged storage.
type Service struct {
	wf     Workflow
	store  storage.Storage
	claims runclaim.Ledger
	cfg    config.SigningConfig
	log    zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewService creates a new signing Service.
func NewService(wf Workflow, store storage.Storage, claims runclaim.Ledger, cfg config.SigningConfig, logger zerolog.Logger) *Service {
	return &Service{
		wf:     wf,
		store:  store,
		claims: claims,
		cfg:    cfg,
		log:    logger,
		sleep:  sleepCtx,
	}
}

// Sign validates the request, dispatches the workflow, waits for GitHub to
// register the run, then tries to discover it. A discovery miss is not an
// error: the result simply carries no run id.
func (s *Service) Sign(ctx context.Context, req SignRequest) (SignResult, error) {
	if req.AABURL == "" || req.KeystoreURL == "" {
		return SignResult{}, signerrors.NewValidationError("files", "Missing file URLs")
	}
	if !s.store.Owns(req.AABURL) || !s.store.Owns(req.KeystoreURL) {
		return SignResult{}, signerrors.NewValidationError("files", "Invalid file URLs")
	}
	if err := validation.SigningParams(validation.Params{
		KeystorePassword: req.KeystorePassword,
		KeyAlias:         req.KeyAlias,
		KeyPassword:      req.KeyPassword,
	}); err != nil {
		return SignResult{}, err
	}

	inputs := map[string]string{
		"aab_url":           req.AABURL,
		"keystore_url":      req.KeystoreURL,
		"aab_filename":      orDefault(req.AABFileName, DefaultAABFileName),
		"keystore_filename": orDefault(req.KeystoreFileName, DefaultKeystoreFileName),
		"keystore_password": req.KeystorePassword,
		"key_alias":         req.KeyAlias,
		"key_password":      req.KeyPassword,
	}
	secrets := []string{req.KeystorePassword, req.KeyPassword, req.AABURL, req.KeystoreURL}
	if err := s.wf.Dispatch(ctx, inputs, secrets...); err != nil {
		return SignResult{}, fmt.Errorf("trigger signing workflow: %w", err)
	}
	s.log.Info().Msg("signing: workflow dispatched")

	if err := s.sleep(ctx, s.cfg.SettleDelay); err != nil {
		return SignResult{}, err
	}

	runID, err := s.discover(ctx)
	if err != nil {
		return SignResult{}, nil
	}
	return SignResult{RunID: runID}, nil
}

// Locate repeats discovery without dispatching. It backs clients that
// started without a run id. found is false on a miss.
func (s *Service) Locate(ctx context.Context) (runID int64, found bool, err error) {
	runID, err = s.discover(ctx)
	switch {
	case err == nil:
		return runID, true, nil
	case errors.Is(err, signerrors.ErrDiscoveryMiss):
		return 0, false, nil
	default:
		return 0, false, err
	}
}

// discover returns ErrDiscoveryMiss or the underlying failure; both are logged.
func (s *Service) discover(ctx context.Context) (int64, error) {
	runID, err := s.wf.Discover(ctx, s.cfg.DiscoveryWindow, s.cfg.DiscoveryPage, s.claims)
	switch {
	case err == nil:
		s.log.Info().Int64("run_id", runID).Msg("signing: run discovered")
		return runID, nil
	case errors.Is(err, signerrors.ErrDiscoveryMiss):
		s.log.Warn().Dur("window", s.cfg.DiscoveryWindow).Msg("signing: no run found in discovery window")
	default:
		s.log.Warn().Err(err).Msg("signing: run discovery failed")
	}
	return 0, err
}

// Status reads the run and, once it succeeded, looks up the signed artifact.
// A successful run without an artifact is reported as a failure.
func (s *Service) Status(ctx context.Context, runID int64) (StatusReport, error) {
	run, err := s.wf.GetRun(ctx, runID)
	if err != nil {
		return StatusReport{}, err
	}
	report := StatusReport{Status: run.Status, Conclusion: run.Conclusion}
	if !run.Completed() {
		return report, nil
	}

	if err := s.claims.Complete(ctx, runID, string(run.Conclusion)); err != nil {
		s.log.Warn().Err(err).Int64("run_id", runID).Msg("signing: could not record run conclusion")
	}

	switch run.Conclusion {
	case github.ConclusionSuccess:
		locator, err := s.wf.ArtifactLocator(ctx, runID)
		switch {
		case errors.Is(err, signerrors.ErrArtifactExpired):
			report.Error = signerrors.MsgArtifactExpired
		case err != nil:
			return StatusReport{}, err
		case locator == "":
			report.Error = signerrors.MsgArtifactMissing
		default:
			report.ArtifactURL = DownloadPath(runID)
		}
	case github.ConclusionCancelled:
		report.Error = signerrors.MsgRunCancelled
	default:
		report.Error = signerrors.MsgRunFailed
	}
	return report, nil
}

// Artifact downloads the signed archive of a successful run, bounded by the
// download timeout.
func (s *Service) Artifact(ctx context.Context, runID int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DownloadTimeout)
	defer cancel()

	run, err := s.wf.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !run.Completed() {
		return nil, signerrors.ErrRunNotReady
	}
	if run.Conclusion == github.ConclusionCancelled {
		return nil, signerrors.ErrRunCancelled
	}
	if !run.Succeeded() {
		return nil, signerrors.ErrRunFailed
	}

	locator, err := s.wf.ArtifactLocator(ctx, runID)
	if err != nil {
		return nil, err
	}
	if locator == "" {
		return nil, signerrors.ErrArtifactNotFound
	}
	return s.wf.Download(ctx, locator)
}

// Cleanup deletes staged objects. Failures are logged without URLs.
func (s *Service) Cleanup(ctx context.Context, urls []string) error {
	if err := s.store.Delete(ctx, urls); err != nil {
		s.log.Warn().Err(err).Int("objects", len(urls)).Msg("signing: cleanup incomplete")
		return err
	}
	s.log.Info().Int("objects", len(urls)).Msg("signing: staged objects removed")
	return nil
}

// DownloadPath is the same-origin download link for a run.
func DownloadPath(runID int64) string {
	return fmt.Sprintf("/api/download/%d", runID)
}

// ArchiveName is the attachment file name of a run's signed archive.
func ArchiveName(runID int64) string {
	return fmt.Sprintf("signed-aab-%d.zip", runID)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
