package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/daybook/internal/notes"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type httpHandler struct {
	store  NotesStore
	logger *zap.Logger
}

type notesRangeQuery struct {
	Start   string `form:"start" binding:"required"`
	End     string `form:"end" binding:"required"`
	GuestID string `form:"guest_id" binding:"required"`
}

type addNotePayload struct {
	Date    *notes.Date `json:"date" binding:"required"`
	Content *string     `json:"content" binding:"required"`
	GuestID *int32      `json:"guest_id" binding:"required"`
}

type updateNotePayload struct {
	Date    *notes.Date `json:"date" binding:"required"`
	Content *string     `json:"content" binding:"required"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *httpHandler) handleAddGuest(c *gin.Context) {
	guest, err := h.store.AddGuest(c.Request.Context())
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, guest)
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	var query notesRangeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}
	start, err := notes.ParseDate(query.Start)
	if err != nil {
		h.respondInvalidRequest(c, err)
		return
	}
	end, err := notes.ParseDate(query.End)
	if err != nil {
		h.respondInvalidRequest(c, err)
		return
	}
	guestID, err := notes.ParseGuestID(query.GuestID)
	if err != nil {
		h.respondInvalidRequest(c, err)
		return
	}

	found, err := h.store.GetNotesInRange(c.Request.Context(), start, end, guestID)
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	if found == nil {
		found = []notes.Note{}
	}
	c.JSON(http.StatusOK, found)
}

func (h *httpHandler) handleAddNote(c *gin.Context) {
	var payload addNotePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}

	note, err := h.store.AddNote(c.Request.Context(), *payload.Date, *payload.Content, int64(*payload.GuestID))
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	noteID, ok := h.bindNoteID(c)
	if !ok {
		return
	}
	var payload updateNotePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}

	note, err := h.store.UpdateNote(c.Request.Context(), noteID, *payload.Date, *payload.Content)
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	noteID, ok := h.bindNoteID(c)
	if !ok {
		return
	}

	note, err := h.store.DeleteNote(c.Request.Context(), noteID)
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) bindNoteID(c *gin.Context) (notes.NoteID, bool) {
	noteID, err := notes.ParseNoteID(c.Param("note_id"))
	if err != nil {
		h.logger.Debug("invalid note id", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_note_id"})
		return 0, false
	}
	return noteID, true
}

func (h *httpHandler) respondInvalidRequest(c *gin.Context, err error) {
	h.logger.Debug("request rejected", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
}

func (h *httpHandler) respondStoreError(c *gin.Context, err error) {
	status, reason := classifyStoreError(err)
	body := gin.H{"error": reason}
	var serviceErr *notes.ServiceError
	if errors.As(err, &serviceErr) {
		body["code"] = serviceErr.Code()
	}
	c.JSON(status, body)
}

func classifyStoreError(err error) (int, string) {
	switch {
	case errors.Is(err, notes.ErrNoteNotFound):
		return http.StatusNotFound, "note_not_found"
	case errors.Is(err, notes.ErrGuestNotFound):
		return http.StatusUnprocessableEntity, "guest_not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
