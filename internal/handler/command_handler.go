package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/taskbook/internal/model"
	"github.com/stemsi/taskbook/internal/response"
	"github.com/stemsi/taskbook/internal/service"
	"github.com/stemsi/taskbook/internal/validator"
)

// CommandHandler is the messaging collaborator's entry point.
type CommandHandler struct {
	commandService *service.CommandService
}

func NewCommandHandler(commandService *service.CommandService) *CommandHandler {
	return &CommandHandler{commandService: commandService}
}

// Execute godoc
// POST /api/v1/commands
// Always answers 200 once the payload binds: failures are part of the
// result, ready to be relayed to the conversation verbatim.
func (h *CommandHandler) Execute(c *gin.Context) {
	var req model.Command
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result := h.commandService.Execute(c.Request.Context(), req)
	response.Success(c, http.StatusOK, result)
}
