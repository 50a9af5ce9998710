package signing

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
	"github.com/Testers-Community/android-aab-signer/internal/response"
)

// Handler holds HTTP handlers for signing runs.
type Handler struct {
	svc *Service
}

// NewHandler creates a new signing Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type signRequest struct {
	AABURL           string `json:"aabUrl"`
	KeystoreURL      string `json:"keystoreUrl"`
	AABFileName      string `json:"aabFileName,omitempty"      example:"app-release.aab"`
	KeystoreFileName string `json:"keystoreFileName,omitempty" example:"release.jks"`
	KeystorePassword string `json:"keystorePassword"`
	KeyAlias         string `json:"keyAlias"                   example:"upload"`
	KeyPassword      string `json:"keyPassword"`
}

type signData struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RunID   *int64 `json:"runId"`
}

type locateData struct {
	Success bool   `json:"success"`
	RunID   *int64 `json:"runId"`
}

type statusData struct {
	Success     bool    `json:"success"`
	Status      string  `json:"status"               example:"in_progress"`
	Conclusion  *string `json:"conclusion"`
	ArtifactURL string  `json:"artifactUrl,omitempty" example:"/api/download/123456"`
	Error       string  `json:"error,omitempty"`
}

type cleanupRequest struct {
	URLs []string `json:"urls"`
}

type cleanupData struct {
	Success bool `json:"success"`
}

// Sign godoc
//
//	@Summary		Start a signing run
//	@Description	Validates the staged file URLs and signing parameters, dispatches the signing workflow and returns the run id when it could be discovered.
//	@Tags			signing
//	@Accept			json
//	@Produce		json
//	@Param			request	body		signRequest	true	"Staged files and signing parameters"
//	@Success		200		{object}	signData
//	@Failure		400		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Router			/sign [post]
func (h *Handler) Sign(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	result, err := h.svc.Sign(r.Context(), SignRequest(req))
	if err != nil {
		switch {
		case errors.Is(err, signerrors.ErrValidation):
			response.BadRequest(w, signerrors.UserMessage(err))
		case errors.Is(err, signerrors.ErrDispatch):
			h.svc.log.Error().Err(err).Msg("signing: dispatch rejected")
			response.BadGateway(w, signerrors.MsgDispatch)
		default:
			h.svc.log.Error().Err(err).Msg("signing: sign failed")
			response.InternalError(w, signerrors.UserMessage(err))
		}
		return
	}

	out := signData{Success: true, Message: "Signing started"}
	if result.Found() {
		out.RunID = &result.RunID
	}
	response.OK(w, out)
}

// Locate godoc
//
//	@Summary		Locate the latest signing run
//	@Description	Repeats run discovery for clients that started without a run id. runId is null when nothing new was found.
//	@Tags			signing
//	@Produce		json
//	@Success		200	{object}	locateData
//	@Failure		500	{object}	response.Envelope
//	@Router			/runs/recent [get]
func (h *Handler) Locate(w http.ResponseWriter, r *http.Request) {
	runID, found, err := h.svc.Locate(r.Context())
	if err != nil {
		response.InternalError(w, signerrors.UserMessage(err))
		return
	}
	out := locateData{Success: true}
	if found {
		out.RunID = &runID
	}
	response.OK(w, out)
}

// Status godoc
//
//	@Summary		Get run status
//	@Description	Reports the normalized status of a run. Completed successful runs carry a same-origin artifact link.
//	@Tags			signing
//	@Produce		json
//	@Param			runId	path		int	true	"Workflow run id"
//	@Success		200		{object}	statusData
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/status/{runId} [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(r)
	if !ok {
		response.BadRequest(w, "Invalid run ID")
		return
	}

	report, err := h.svc.Status(r.Context(), runID)
	if err != nil {
		if errors.Is(err, signerrors.ErrRunNotFound) {
			response.NotFound(w, "Run not found")
			return
		}
		h.svc.log.Error().Err(err).Int64("run_id", runID).Msg("signing: status check failed")
		response.InternalError(w, signerrors.UserMessage(err))
		return
	}

	out := statusData{
		Success:     true,
		Status:      string(report.Status),
		ArtifactURL: report.ArtifactURL,
		Error:       report.Error,
	}
	if report.Conclusion != "" {
		c := string(report.Conclusion)
		out.Conclusion = &c
	}
	response.OK(w, out)
}

// Download godoc
//
//	@Summary		Download the signed bundle
//	@Description	Proxies the signed artifact archive of a successful run.
//	@Tags			signing
//	@Produce		application/zip
//	@Param			runId	path		int	true	"Workflow run id"
//	@Success		200		{file}		binary
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		410		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/download/{runId} [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(r)
	if !ok {
		response.Download(w, http.StatusBadRequest, "Invalid run ID", false)
		return
	}

	data, err := h.svc.Artifact(r.Context(), runID)
	if err != nil {
		switch {
		case signerrors.IsExpired(err):
			response.Download(w, http.StatusGone, signerrors.MsgArtifactExpired, true)
		case errors.Is(err, signerrors.ErrRunNotReady):
			response.Download(w, http.StatusBadRequest, signerrors.ReasonRunPending, false)
		case errors.Is(err, signerrors.ErrRunFailed), errors.Is(err, signerrors.ErrRunCancelled):
			response.Download(w, http.StatusBadRequest, signerrors.ReasonRunUnsuccessful, false)
		case errors.Is(err, signerrors.ErrArtifactNotFound), errors.Is(err, signerrors.ErrRunNotFound):
			response.Download(w, http.StatusNotFound, signerrors.MsgArtifactMissing, false)
		default:
			h.svc.log.Error().Err(err).Int64("run_id", runID).Msg("signing: download failed")
			response.Download(w, http.StatusInternalServerError, "Failed to download signed bundle", false)
		}
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ArchiveName(runID)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Cleanup godoc
//
//	@Summary		Delete staged files
//	@Description	Removes staged uploads by URL. Missing objects count as deleted.
//	@Tags			signing
//	@Accept			json
//	@Produce		json
//	@Param			request	body		cleanupRequest	true	"Staged file URLs"
//	@Success		200		{object}	cleanupData
//	@Failure		400		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/cleanup [post]
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URLs == nil {
		response.BadRequest(w, "Invalid URLs")
		return
	}
	for _, u := range req.URLs {
		if !h.svc.store.Owns(u) {
			response.BadRequest(w, "Invalid URLs")
			return
		}
	}

	if err := h.svc.Cleanup(r.Context(), req.URLs); err != nil {
		response.InternalError(w, "Cleanup failed")
		return
	}
	response.OK(w, cleanupData{Success: true})
}

func parseRunID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "runId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
