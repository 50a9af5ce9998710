package upload

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
	"github.com/Testers-Community/android-aab-signer/internal/middleware"
	"github.com/Testers-Community/android-aab-signer/internal/response"
	"github.com/Testers-Community/android-aab-signer/internal/storage"
)

// Handler holds HTTP handlers for the upload intake.
type Handler struct {
	svc          *Service
	stageTimeout time.Duration
}

// NewHandler creates a new upload Handler. stageTimeout replaces the server's
// read and write deadlines for PUT uploads, which outlast every other route.
func NewHandler(svc *Service, stageTimeout time.Duration) *Handler {
	return &Handler{svc: svc, stageTimeout: stageTimeout}
}

type authorizeRequest struct {
	Pathname string `json:"pathname" example:"sign-1760443200000-3f2a9c1e/app-release.aab"`
	Size     int64  `json:"size"     example:"5242880"`
}

type authorizeData struct {
	Success bool `json:"success"`
	*Ticket
}

type stageData struct {
	Success  bool   `json:"success"`
	URL      string `json:"url"`
	Pathname string `json:"pathname"`
}

// Authorize godoc
//
//	@Summary		Authorize an upload
//	@Description	Validates the path hint (sign-<ts>-<token>/<file> with an allowed extension) and size, then returns a short-lived upload ticket.
//	@Tags			upload
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authorizeRequest	true	"Path hint and declared size"
//	@Success		200		{object}	authorizeData
//	@Failure		400		{object}	response.Envelope
//	@Router			/blob-upload [post]
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	ticket, err := h.svc.Authorize(req.Pathname, req.Size)
	if err != nil {
		if errors.Is(err, signerrors.ErrValidation) {
			response.BadRequest(w, signerrors.UserMessage(err))
			return
		}
		h.svc.log.Error().Err(err).Msg("upload: authorize failed")
		response.InternalError(w, signerrors.MsgGeneric)
		return
	}
	response.OK(w, authorizeData{Success: true, Ticket: ticket})
}

// Stage godoc
//
//	@Summary		Upload a file
//	@Description	Streams the request body into temporary storage under the ticket's pathname. Content-Length is required.
//	@Tags			upload
//	@Accept			application/octet-stream
//	@Produce		json
//	@Security		UploadTicket
//	@Success		201	{object}	stageData
//	@Failure		401	{object}	response.Envelope
//	@Failure		411	{object}	response.Envelope
//	@Failure		413	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/blob-upload [put]
func (h *Handler) Stage(w http.ResponseWriter, r *http.Request) {
	pathname, maxBytes, ok := ticketGrant(w, r)
	if !ok {
		return
	}
	if r.ContentLength <= 0 {
		response.Error(w, http.StatusLengthRequired, "Content-Length is required")
		return
	}
	if r.ContentLength > maxBytes {
		response.TooLarge(w, "file exceeds the authorized size")
		return
	}

	h.extendDeadlines(w)

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	url, err := h.svc.Stage(r.Context(), pathname, body, r.ContentLength)
	if err != nil {
		h.stageFailed(w, err, "upload: stage failed")
		return
	}
	response.Created(w, stageData{Success: true, URL: url, Pathname: pathname})
}

type beginData struct {
	Success  bool   `json:"success"`
	UploadID string `json:"uploadId"`
}

type partData struct {
	Success bool `json:"success"`
	storage.Part
}

type completeRequest struct {
	Parts []storage.Part `json:"parts"`
}

type abortData struct {
	Success bool `json:"success"`
}

// BeginParts godoc
//
//	@Summary		Start a multipart upload
//	@Description	Opens a multipart upload under the ticket's pathname for files larger than the ticket part size.
//	@Tags			upload
//	@Produce		json
//	@Security		UploadTicket
//	@Success		201	{object}	beginData
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/blob-upload/parts [post]
func (h *Handler) BeginParts(w http.ResponseWriter, r *http.Request) {
	pathname, _, ok := ticketGrant(w, r)
	if !ok {
		return
	}
	id, err := h.svc.BeginParts(r.Context(), pathname)
	if err != nil {
		h.svc.log.Error().Err(err).Msg("upload: begin parts failed")
		response.InternalError(w, "Upload failed")
		return
	}
	response.Created(w, beginData{Success: true, UploadID: id})
}

// StagePart godoc
//
//	@Summary		Upload one part
//	@Description	Stores one part of an open multipart upload. A failed part can be sent again under the same number.
//	@Tags			upload
//	@Accept			application/octet-stream
//	@Produce		json
//	@Security		UploadTicket
//	@Param			uploadId	path		string	true	"Multipart upload id"
//	@Param			partNumber	path		int		true	"Part number, from 1"
//	@Success		200			{object}	partData
//	@Failure		400			{object}	response.Envelope
//	@Failure		401			{object}	response.Envelope
//	@Failure		404			{object}	response.Envelope
//	@Failure		411			{object}	response.Envelope
//	@Failure		413			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/blob-upload/parts/{uploadId}/{partNumber} [put]
func (h *Handler) StagePart(w http.ResponseWriter, r *http.Request) {
	pathname, _, ok := ticketGrant(w, r)
	if !ok {
		return
	}
	number, err := strconv.Atoi(chi.URLParam(r, "partNumber"))
	if err != nil {
		response.BadRequest(w, "Invalid part number")
		return
	}
	if r.ContentLength <= 0 {
		response.Error(w, http.StatusLengthRequired, "Content-Length is required")
		return
	}

	h.extendDeadlines(w)

	part, err := h.svc.StagePart(r.Context(), pathname, chi.URLParam(r, "uploadId"), number, r.Body, r.ContentLength)
	if err != nil {
		h.stageFailed(w, err, "upload: stage part failed")
		return
	}
	response.OK(w, partData{Success: true, Part: part})
}

// CompleteParts godoc
//
//	@Summary		Finish a multipart upload
//	@Description	Assembles the listed parts into the staged file and returns its URL.
//	@Tags			upload
//	@Accept			json
//	@Produce		json
//	@Security		UploadTicket
//	@Param			uploadId	path		string			true	"Multipart upload id"
//	@Param			request		body		completeRequest	true	"Uploaded parts"
//	@Success		201			{object}	stageData
//	@Failure		400			{object}	response.Envelope
//	@Failure		401			{object}	response.Envelope
//	@Failure		404			{object}	response.Envelope
//	@Failure		413			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/blob-upload/parts/{uploadId}/complete [post]
func (h *Handler) CompleteParts(w http.ResponseWriter, r *http.Request) {
	pathname, maxBytes, ok := ticketGrant(w, r)
	if !ok {
		return
	}
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	url, err := h.svc.CompleteParts(r.Context(), pathname, chi.URLParam(r, "uploadId"), req.Parts, maxBytes)
	if err != nil {
		h.stageFailed(w, err, "upload: complete parts failed")
		return
	}
	response.Created(w, stageData{Success: true, URL: url, Pathname: pathname})
}

// AbortParts godoc
//
//	@Summary		Abandon a multipart upload
//	@Description	Discards an unfinished multipart upload and its parts.
//	@Tags			upload
//	@Produce		json
//	@Security		UploadTicket
//	@Param			uploadId	path		string	true	"Multipart upload id"
//	@Success		200			{object}	abortData
//	@Failure		401			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/blob-upload/parts/{uploadId} [delete]
func (h *Handler) AbortParts(w http.ResponseWriter, r *http.Request) {
	pathname, _, ok := ticketGrant(w, r)
	if !ok {
		return
	}
	if err := h.svc.AbortParts(r.Context(), pathname, chi.URLParam(r, "uploadId")); err != nil {
		h.svc.log.Error().Err(err).Msg("upload: abort parts failed")
		response.InternalError(w, "Upload failed")
		return
	}
	response.OK(w, abortData{Success: true})
}

// ticketGrant reads what the upload ticket middleware granted. It answers
// 401 itself when the request carries no grant.
func ticketGrant(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	pathname, _ := r.Context().Value(middleware.UploadPathKey).(string)
	maxBytes, _ := r.Context().Value(middleware.UploadMaxBytesKey).(int64)
	if pathname == "" || maxBytes <= 0 {
		response.Unauthorized(w, "upload ticket required")
		return "", 0, false
	}
	return pathname, maxBytes, true
}

func (h *Handler) stageFailed(w http.ResponseWriter, err error, msg string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), errors.Is(err, ErrTooLarge):
		response.TooLarge(w, "file exceeds the authorized size")
	case errors.Is(err, signerrors.ErrValidation):
		response.BadRequest(w, signerrors.UserMessage(err))
	case errors.Is(err, storage.ErrUnknownUpload):
		response.NotFound(w, "Upload not found")
	default:
		h.svc.log.Error().Err(err).Msg(msg)
		response.InternalError(w, "Upload failed")
	}
}

// extendDeadlines moves the connection deadlines out to stageTimeout so a
// slow upload is still answered once storage accepts it.
func (h *Handler) extendDeadlines(w http.ResponseWriter) {
	if h.stageTimeout <= 0 {
		return
	}
	deadline := time.Now().Add(h.stageTimeout)
	rc := http.NewResponseController(w)
	for _, set := range []func(time.Time) error{rc.SetReadDeadline, rc.SetWriteDeadline} {
		if err := set(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
			h.svc.log.Warn().Err(err).Msg("upload: extend deadline failed")
		}
	}
}
