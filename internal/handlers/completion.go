package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"fieldjob-backend/internal/completion"
	"fieldjob-backend/internal/geo"
	"fieldjob-backend/internal/media"
	"fieldjob-backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxSignatureBytes = 2 << 20

type CompletionHandler struct {
	service    *completion.Service
	store      completion.Store
	stager     *media.Stager
	geoTimeout time.Duration
}

func NewCompletionHandler(service *completion.Service, store completion.Store, stager *media.Stager, geoTimeout time.Duration) *CompletionHandler {
	return &CompletionHandler{
		service:    service,
		store:      store,
		stager:     stager,
		geoTimeout: geoTimeout,
	}
}

func (h *CompletionHandler) session(c *gin.Context) (*completion.Session, bool) {
	sess, err := h.service.Sessions().Get(c.Param("session_id"))
	if err != nil {
		respondError(c, "session not found", err)
		return nil, false
	}
	return sess, true
}

// Get godoc
// @Summary     Saved completion
// @Description Returns the stored completion record of a job, including one
// @Description embedded in the job notes by older clients.
// @Tags        completion
// @Produce     json
// @Security    Bearer
// @Param       job_id path string true "Job ID"
// @Success     200 {object} models.CompletionRecord
// @Failure     404 {object} models.ErrorResponse
// @Router      /jobs/{job_id}/completion [get]
func (h *CompletionHandler) Get(c *gin.Context) {
	rec, err := h.store.GetCompletion(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		respondError(c, "failed to load completion", err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "completion not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// OpenSession godoc
// @Summary     Open a completion session
// @Description Starts a completion form for a job. Media, rating, comment and signature
// @Description of a saved completion are preloaded; saved media count as uploaded.
// @Description If the job already has an unsubmitted session it is returned with 200.
// @Tags        completion
// @Produce     json
// @Security    Bearer
// @Param       job_id path string true "Job ID"
// @Success     200 {object} models.SessionResponse
// @Success     201 {object} models.SessionResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /jobs/{job_id}/completion/sessions [post]
func (h *CompletionHandler) OpenSession(c *gin.Context) {
	sess, resumed, err := h.service.OpenSession(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		respondError(c, "failed to open session", err)
		return
	}
	if resumed {
		c.JSON(http.StatusOK, sessionResponse(sess))
		return
	}
	c.JSON(http.StatusCreated, sessionResponse(sess))
}

// GetSession godoc
// @Summary     Completion session
// @Tags        completion
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Success     200 {object} models.SessionResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /completion/sessions/{session_id} [get]
func (h *CompletionHandler) GetSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionResponse(sess))
}

// AddMedia godoc
// @Summary     Stage photos or videos
// @Description Adds files to the session in selection order. One location is captured
// @Description for the whole batch from lat/lng; files without it keep their embedded location.
// @Tags        completion
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Param       files formData file true "Photos or videos (multiple allowed)"
// @Param       lat formData number false "Latitude"
// @Param       lng formData number false "Longitude"
// @Success     201 {array} models.MediaItemResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     415 {object} models.ErrorResponse
// @Router      /completion/sessions/{session_id}/media [post]
func (h *CompletionHandler) AddMedia(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to parse multipart form", Message: err.Error()})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "no files provided"})
		return
	}

	ctx := c.Request.Context()
	batchGeo := geo.Snapshot(ctx, geo.FromStrings(c.PostForm("lat"), c.PostForm("lng")), h.geoTimeout)

	added := make([]models.MediaItemResponse, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			respondError(c, "failed to read upload", err)
			return
		}
		d, err := h.stager.Stage(ctx, fh.Filename, f, batchGeo)
		f.Close()
		if err != nil {
			respondError(c, fmt.Sprintf("failed to stage %s", fh.Filename), err)
			return
		}
		if err := sess.List.Append(d); err != nil {
			_ = d.Discard()
			respondError(c, "failed to add media", err)
			return
		}
		added = append(added, mediaItem(sess.ID, *d))
	}

	logrus.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"added":      len(added),
		"has_geo":    batchGeo != nil,
	}).Info("media staged")
	c.JSON(http.StatusCreated, added)
}

// AnnotateMedia godoc
// @Summary     Set a media note
// @Tags        completion
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Param       media_id path string true "Media ID"
// @Param       request body models.UpdateNoteRequest true "Note"
// @Success     200 {object} models.MediaItemResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /completion/sessions/{session_id}/media/{media_id} [patch]
func (h *CompletionHandler) AnnotateMedia(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req models.UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	id := c.Param("media_id")
	if err := sess.List.Annotate(id, req.Note); err != nil {
		respondError(c, "failed to update note", err)
		return
	}
	d, _ := sess.List.Get(id)
	c.JSON(http.StatusOK, mediaItem(sess.ID, d))
}

// RemoveMedia godoc
// @Summary     Discard staged media
// @Tags        completion
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Param       media_id path string true "Media ID"
// @Success     204
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /completion/sessions/{session_id}/media/{media_id} [delete]
func (h *CompletionHandler) RemoveMedia(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.List.Remove(c.Param("media_id")); err != nil {
		respondError(c, "failed to remove media", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MediaPreview godoc
// @Summary     Local preview of staged media
// @Tags        completion
// @Produce     image/jpeg
// @Produce     video/mp4
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Param       media_id path string true "Media ID"
// @Success     200 {file} binary
// @Failure     404 {object} models.ErrorResponse
// @Router      /completion/sessions/{session_id}/media/{media_id}/preview [get]
func (h *CompletionHandler) MediaPreview(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	path, contentType, ok := sess.List.PreviewPath(c.Param("media_id"))
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "preview not available"})
		return
	}
	c.Header("Content-Type", contentType)
	c.File(path)
}

// PutSignature godoc
// @Summary     Set the customer signature
// @Description Stores a drawn signature (PNG). It is uploaded on submit.
// @Tags        completion
// @Accept      image/png
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Success     200 {object} models.SessionResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     413 {object} models.ErrorResponse
// @Failure     415 {object} models.ErrorResponse
// @Router      /completion/sessions/{session_id}/signature [put]
func (h *CompletionHandler) PutSignature(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	data, err := readSignature(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid signature", Message: err.Error()})
		return
	}
	if len(data) > maxSignatureBytes {
		c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "signature too large"})
		return
	}
	if http.DetectContentType(data) != "image/png" {
		c.JSON(http.StatusUnsupportedMediaType, models.ErrorResponse{Error: "signature must be a PNG image"})
		return
	}

	sess.SetSignature(data)
	c.JSON(http.StatusOK, sessionResponse(sess))
}

// readSignature accepts either a raw PNG body or a multipart "signature" file.
func readSignature(c *gin.Context) ([]byte, error) {
	if fh, err := c.FormFile("signature"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, maxSignatureBytes+1))
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSignatureBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty body")
	}
	return data, nil
}

// Submit godoc
// @Summary     Submit the completion
// @Description Uploads staged media one at a time in order, then the signature, saves the
// @Description completion record and marks the job done. A failed upload stops the run; items
// @Description already uploaded are kept and skipped on retry. When the record is saved but the
// @Description job update fails, the response is 500 with retryable=true and
// @Description POST /jobs/{job_id}/completion/retry-status retries only the job update.
// @Tags        completion
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Param       request body models.SubmitCompletionRequest true "Rating and comment"
// @Success     200 {object} models.SubmitResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     500 {object} models.SubmitErrorResponse
// @Failure     502 {object} models.SubmitErrorResponse
// @Router      /completion/sessions/{session_id}/submit [post]
func (h *CompletionHandler) Submit(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req models.SubmitCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	rec, err := h.service.Submit(c.Request.Context(), sess.ID, req.Rating, req.Comment)
	var cerr *completion.Error
	switch {
	case err == nil:
		c.JSON(http.StatusOK, models.SubmitResponse{
			JobID:      rec.JobID,
			Status:     models.JobStatusDone,
			Completion: *rec,
		})
	case errors.As(err, &cerr):
		code := http.StatusInternalServerError
		if cerr.Stage == completion.StageMedia || cerr.Stage == completion.StageSignature {
			code = http.StatusBadGateway
		}
		msg := "completion failed"
		if cerr.Partial() {
			msg = "completion saved but job status not updated"
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sess.ID,
			"job_id":     sess.JobID,
			"stage":      cerr.Stage,
		}).Warn("completion submit failed")
		_ = c.Error(err)
		c.JSON(code, models.SubmitErrorResponse{
			Error:     msg,
			Message:   err.Error(),
			Retryable: true,
			Media:     mediaItems(sess.ID, sess.List.Items()),
		})
	default:
		respondError(c, "completion failed", err)
	}
}

// RetryStatus godoc
// @Summary     Retry the job status update
// @Description Marks the job done for an already saved completion without uploading anything.
// @Tags        completion
// @Produce     json
// @Security    Bearer
// @Param       job_id path string true "Job ID"
// @Success     200 {object} models.Job
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /jobs/{job_id}/completion/retry-status [post]
func (h *CompletionHandler) RetryStatus(c *gin.Context) {
	job, err := h.service.RetryJobUpdate(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		respondError(c, "failed to update job status", err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// CloseSession godoc
// @Summary     Close a completion session
// @Description Discards staged media and releases the camera, if held.
// @Tags        completion
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Success     204
// @Failure     404 {object} models.ErrorResponse
// @Router      /completion/sessions/{session_id} [delete]
func (h *CompletionHandler) CloseSession(c *gin.Context) {
	if err := h.service.Sessions().Remove(c.Param("session_id")); err != nil {
		respondError(c, "session not found", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func sessionResponse(s *completion.Session) models.SessionResponse {
	return models.SessionResponse{
		SessionID:    s.ID,
		JobID:        s.JobID,
		Rating:       s.Rating(),
		Comment:      s.Comment(),
		SignatureURL: s.SignatureURL(),
		HasSignature: s.HasNewSignature(),
		Submitted:    s.Submitted(),
		Media:        mediaItems(s.ID, s.List.Items()),
	}
}

func mediaItems(sessionID string, items []media.Descriptor) []models.MediaItemResponse {
	out := make([]models.MediaItemResponse, len(items))
	for i, d := range items {
		out[i] = mediaItem(sessionID, d)
	}
	return out
}

func mediaItem(sessionID string, d media.Descriptor) models.MediaItemResponse {
	item := models.MediaItemResponse{
		ID:         d.ID,
		Kind:       d.Kind,
		State:      string(d.State),
		URL:        d.URL,
		PreviewURL: d.URL,
		Note:       d.Note,
		Geo:        d.Geo,
		Resolution: d.Resolution,
		Size:       d.Size,
		CapturedAt: d.CapturedAt,
	}
	if d.Preview != nil && d.Preview.Path != "" {
		item.PreviewURL = fmt.Sprintf("/api/v1/completion/sessions/%s/media/%s/preview", sessionID, d.ID)
	}
	if d.Err != nil {
		item.Error = d.Err.Error()
	}
	return item
}
