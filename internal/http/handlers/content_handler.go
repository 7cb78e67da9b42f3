package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-domain-mapper/internal/services"
)

// GenerateContent godoc
// @ID          generateContent
// @Summary     Generate website content from agent answers
// @Description Builds a prompt from the questionnaire, asks the model for site content as JSON, and scores each known section.
// @Tags        Content
// @Accept      json
// @Produce     json
// @Param       body  body  services.ContentRequest  true  "Questionnaire answers"
// @Success     200  {object}  services.ContentResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Model reply was not JSON"
// @Failure     503  {object}  handlers.ErrorResponse  "Generator not configured"
// @Router      /generate-content [post]
func (h *Handlers) GenerateContent(c *gin.Context) {
	if h.svc.Content == nil {
		notConfigured(c, "content generation")
		return
	}
	var req services.ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "agent_answers is required")
		return
	}
	res, err := h.svc.Content.Generate(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
