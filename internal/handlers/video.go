package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"fieldjob-backend/internal/capture"
	"fieldjob-backend/internal/completion"
	"fieldjob-backend/internal/geo"
	"fieldjob-backend/internal/media"
	"fieldjob-backend/internal/models"
	"github.com/gin-gonic/gin"
)

var errNoVideo = fmt.Errorf("%w: no video capture open", capture.ErrInvalidState)

// VideoHandler drives the in-app video recorder of a completion session.
type VideoHandler struct {
	service    *completion.Service
	device     capture.Device
	stager     *media.Stager
	geoTimeout time.Duration
}

func NewVideoHandler(service *completion.Service, device capture.Device, stager *media.Stager, geoTimeout time.Duration) *VideoHandler {
	return &VideoHandler{
		service:    service,
		device:     device,
		stager:     stager,
		geoTimeout: geoTimeout,
	}
}

func (h *VideoHandler) video(c *gin.Context) (*completion.Session, *capture.Session, bool) {
	sess, err := h.service.Sessions().Get(c.Param("session_id"))
	if err != nil {
		respondError(c, "session not found", err)
		return nil, nil, false
	}
	v := sess.Video()
	if v == nil {
		respondError(c, "no video capture", errNoVideo)
		return nil, nil, false
	}
	return sess, v, true
}

// Open godoc
// @Summary     Open the camera
// @Description Acquires the camera (back by default) and microphone for recording.
// @Description Any capture already open on the session is released first.
// @Tags        video
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Param       request body models.OpenVideoRequest false "Camera facing"
// @Success     201 {object} models.VideoSessionResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /completion/sessions/{session_id}/video [post]
func (h *VideoHandler) Open(c *gin.Context) {
	sess, err := h.service.Sessions().Get(c.Param("session_id"))
	if err != nil {
		respondError(c, "session not found", err)
		return
	}
	var req models.OpenVideoRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
			return
		}
	}

	// The device grant is exclusive, so the previous capture must let go
	// before the new one acquires.
	sess.SetVideo(nil)
	v, err := capture.Open(c.Request.Context(), h.device, capture.ParseFacing(req.Facing), capture.WithPreviewDir(h.stager.Dir))
	if err != nil {
		if errors.Is(err, capture.ErrPermissionDenied) {
			respondError(c, "camera or microphone permission denied", err)
			return
		}
		respondError(c, "failed to open camera", err)
		return
	}
	sess.SetVideo(v)
	c.JSON(http.StatusCreated, videoResponse(sess.ID, v))
}

// Get godoc
// @Summary     Video capture state
// @Tags        video
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Success     200 {object} models.VideoSessionResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /completion/sessions/{session_id}/video [get]
func (h *VideoHandler) Get(c *gin.Context) {
	sess, v, ok := h.video(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, videoResponse(sess.ID, v))
}

// Record godoc
// @Summary     Start recording
// @Tags        video
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Success     200 {object} models.VideoSessionResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /completion/sessions/{session_id}/video/record [post]
func (h *VideoHandler) Record(c *gin.Context) {
	h.transition(c, func(v *capture.Session) error { return v.StartRecording() })
}

// Stop godoc
// @Summary     Stop recording
// @Description Stops the recorder and switches to previewing the clip.
// @Tags        video
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Success     200 {object} models.VideoSessionResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /completion/sessions/{session_id}/video/stop [post]
func (h *VideoHandler) Stop(c *gin.Context) {
	h.transition(c, func(v *capture.Session) error { return v.StopRecording() })
}

// Retake godoc
// @Summary     Discard the clip and go live again
// @Tags        video
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Success     200 {object} models.VideoSessionResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /completion/sessions/{session_id}/video/retake [post]
func (h *VideoHandler) Retake(c *gin.Context) {
	h.transition(c, func(v *capture.Session) error { return v.Retake(c.Request.Context()) })
}

// Switch godoc
// @Summary     Switch between front and back camera
// @Tags        video
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Success     200 {object} models.VideoSessionResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /completion/sessions/{session_id}/video/switch [post]
func (h *VideoHandler) Switch(c *gin.Context) {
	h.transition(c, func(v *capture.Session) error { return v.SwitchFacing(c.Request.Context()) })
}

func (h *VideoHandler) transition(c *gin.Context, fn func(*capture.Session) error) {
	sess, v, ok := h.video(c)
	if !ok {
		return
	}
	if err := fn(v); err != nil {
		respondError(c, "video capture failed", err)
		return
	}
	c.JSON(http.StatusOK, videoResponse(sess.ID, v))
}

// Confirm godoc
// @Summary     Use the recorded clip
// @Description Stages the clip as a video item at the end of the list and releases the camera.
// @Tags        video
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Success     201 {object} models.MediaItemResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /completion/sessions/{session_id}/video/confirm [post]
func (h *VideoHandler) Confirm(c *gin.Context) {
	sess, v, ok := h.video(c)
	if !ok {
		return
	}
	clip, err := v.Confirm()
	if err != nil {
		respondError(c, "video capture failed", err)
		return
	}
	sess.SetVideo(nil)

	ctx := c.Request.Context()
	batchGeo := geo.Snapshot(ctx, geo.FromStrings(c.Query("lat"), c.Query("lng")), h.geoTimeout)
	d, err := h.stager.StageClip(ctx, clip.Data, clip.ContentType, batchGeo)
	if err != nil {
		respondError(c, "failed to stage clip", err)
		return
	}
	if err := sess.List.Append(d); err != nil {
		_ = d.Discard()
		respondError(c, "failed to add clip", err)
		return
	}
	c.JSON(http.StatusCreated, mediaItem(sess.ID, *d))
}

// Preview godoc
// @Summary     Recorded clip preview
// @Tags        video
// @Produce     video/mp4
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Success     200 {file} binary
// @Failure     404 {object} models.ErrorResponse
// @Router      /completion/sessions/{session_id}/video/preview [get]
func (h *VideoHandler) Preview(c *gin.Context) {
	_, v, ok := h.video(c)
	if !ok {
		return
	}
	path, contentType, ok := v.Preview()
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "no clip to preview"})
		return
	}
	c.Header("Content-Type", contentType)
	c.File(path)
}

// Close godoc
// @Summary     Close the camera
// @Description Discards any clip and releases the camera and microphone.
// @Tags        video
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Success     204
// @Failure     404 {object} models.ErrorResponse
// @Router      /completion/sessions/{session_id}/video [delete]
func (h *VideoHandler) Close(c *gin.Context) {
	sess, err := h.service.Sessions().Get(c.Param("session_id"))
	if err != nil {
		respondError(c, "session not found", err)
		return
	}
	sess.SetVideo(nil)
	c.Status(http.StatusNoContent)
}

func videoResponse(sessionID string, v *capture.Session) models.VideoSessionResponse {
	resp := models.VideoSessionResponse{
		State:   string(v.State()),
		Facing:  string(v.Facing()),
		Elapsed: v.Elapsed(),
	}
	if _, _, ok := v.Preview(); ok {
		resp.PreviewURL = fmt.Sprintf("/api/v1/completion/sessions/%s/video/preview", sessionID)
		resp.Size = media.FormatSize(int64(v.ClipSize()))
	}
	return resp
}
