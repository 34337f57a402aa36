package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/taskbook/internal/model"
	"github.com/stemsi/taskbook/internal/response"
	"github.com/stemsi/taskbook/internal/service"
	"github.com/stemsi/taskbook/internal/validator"
)

type SubjectHandler struct {
	subjectService *service.SubjectService
	catalogService *service.CatalogService
	log            zerolog.Logger
}

func NewSubjectHandler(subjectService *service.SubjectService, catalogService *service.CatalogService, log zerolog.Logger) *SubjectHandler {
	return &SubjectHandler{
		subjectService: subjectService,
		catalogService: catalogService,
		log:            log.With().Str("component", "subject_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/subjects
func (h *SubjectHandler) List(c *gin.Context) {
	summaries, err := h.catalogService.List(c.Request.Context())
	if err != nil {
		h.fail(c, err, response.ErrValidation)
		return
	}

	if summaries == nil {
		summaries = []model.SubjectSummary{}
	}
	response.Success(c, http.StatusOK, gin.H{"subjects": summaries})
}

// Create godoc
// POST /api/v1/subjects
func (h *SubjectHandler) Create(c *gin.Context) {
	var req model.CreateSubjectRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sub, err := h.subjectService.Create(c.Request.Context(), strings.ToLower(req.Name), req.Capacity)
	if err != nil {
		h.fail(c, err, response.ErrInvalidSubject)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"subject": sub})
}

// Get godoc
// GET /api/v1/subjects/:name
func (h *SubjectHandler) Get(c *gin.Context) {
	sub, err := h.subjectService.Read(c.Request.Context(), subjectParam(c))
	if err != nil {
		h.fail(c, err, response.ErrInvalidSubject)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"subject": sub})
}

// Delete godoc
// DELETE /api/v1/subjects/:name
func (h *SubjectHandler) Delete(c *gin.Context) {
	if err := h.subjectService.Delete(c.Request.Context(), subjectParam(c)); err != nil {
		h.fail(c, err, response.ErrInvalidSubject)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "subject deleted successfully"})
}

// ListFree godoc
// GET /api/v1/subjects/:name/free?all=true
func (h *SubjectHandler) ListFree(c *gin.Context) {
	name := subjectParam(c)
	verbose, _ := strconv.ParseBool(c.DefaultQuery("all", "false"))

	slots, err := h.subjectService.ListFree(c.Request.Context(), name, verbose)
	if err != nil {
		h.fail(c, err, response.ErrInvalidSubject)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"subject": name, "tasks": slots})
}

// Book godoc
// POST /api/v1/subjects/:name/book
func (h *SubjectHandler) Book(c *gin.Context) {
	var req model.BookSlotRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sub, err := h.subjectService.Book(c.Request.Context(), subjectParam(c), req.Slot, req.Claimant)
	if err != nil {
		h.fail(c, err, response.ErrInvalidTask)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"subject": sub})
}

func subjectParam(c *gin.Context) string {
	return strings.ToLower(strings.TrimSpace(c.Param("name")))
}

// fail maps a service error to a status and code. invalid is the code used
// for InvalidArgument, which depends on the endpoint.
func (h *SubjectHandler) fail(c *gin.Context, err error, invalid response.ErrCode) {
	var conflict *service.BookingConflictError
	if errors.As(err, &conflict) {
		code := response.ErrSlotTaken
		if errors.Is(err, service.ErrAlreadyBooked) {
			code = response.ErrAlreadyBooked
		}
		response.FailWithDetails(c, http.StatusConflict, code, map[string]any{"task": conflict.Slot})
		return
	}

	switch service.KindOf(err) {
	case service.KindInvalidArgument:
		response.Fail(c, http.StatusBadRequest, invalid)
	case service.KindNotFound:
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case service.KindAlreadyExists:
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	case service.KindStorageUnavailable:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Storage unavailable")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
