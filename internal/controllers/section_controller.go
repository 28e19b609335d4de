package controllers

import (
	"net/http"

	"github.com/clicktoassignment/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type SectionController struct {
	pipeline *services.PipelineService
	validate *validator.Validate
}

func NewSectionController(pipeline *services.PipelineService, validate *validator.Validate) *SectionController {
	return &SectionController{pipeline: pipeline, validate: validate}
}

type SectionActionRequest struct {
	Action      string `json:"action" validate:"required"`
	CouponCode  string `json:"couponCode" validate:"max=64"`
	ContextText string `json:"contextText"`
}

type MonsterRequest struct {
	CouponCode string `json:"couponCode" validate:"max=64"`
}

// Action handles POST /api/sections/:id/action
func (sc *SectionController) Action(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req SectionActionRequest
	if !bindJSON(c, sc.validate, &req) {
		return
	}

	result, err := sc.pipeline.Action(c.Request.Context(), id, actorFrom(c), req.Action, services.ActionOptions{
		CouponCode:  req.CouponCode,
		ContextText: req.ContextText,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// History handles GET /api/sections/:id/history
func (sc *SectionController) History(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	history, err := sc.pipeline.History(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, history)
}

// Pipeline handles GET /api/jobs/:id/pipeline
func (sc *SectionController) Pipeline(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := sc.pipeline.Pipeline(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, view)
}

// Monster handles POST /api/jobs/:id/monster
func (sc *SectionController) Monster(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req MonsterRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, sc.validate, &req) {
		return
	}

	result, err := sc.pipeline.Monster(c.Request.Context(), id, actorFrom(c), req.CouponCode)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}
