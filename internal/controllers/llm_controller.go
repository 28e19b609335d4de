package controllers

import (
	"net/http"

	"github.com/clicktoassignment/backend/internal/services"
	"github.com/gin-gonic/gin"
)

type LLMController struct {
	llm *services.LLMService
}

func NewLLMController(llm *services.LLMService) *LLMController {
	return &LLMController{llm: llm}
}

// Status handles GET /api/admin/llm/status
func (lc *LLMController) Status(c *gin.Context) {
	status := gin.H{
		"provider":   lc.llm.Provider(),
		"model":      lc.llm.Model(),
		"configured": lc.llm.Configured(),
		"healthy":    false,
	}

	if err := lc.llm.CheckLLMHealth(c.Request.Context()); err != nil {
		status["error"] = err.Error()
		respondOK(c, http.StatusOK, status)
		return
	}
	status["healthy"] = true

	models, err := lc.llm.GetAvailableModels(c.Request.Context())
	if err != nil {
		status["error"] = err.Error()
	} else {
		status["models"] = models
	}
	respondOK(c, http.StatusOK, status)
}

// APICalls handles GET /api/admin/llm/calls
func (lc *LLMController) APICalls(c *gin.Context) {
	calls := lc.llm.GetAPICalls()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    calls,
		"count":   len(calls),
	})
}

// ClearAPICalls handles DELETE /api/admin/llm/calls
func (lc *LLMController) ClearAPICalls(c *gin.Context) {
	lc.llm.ClearAPICalls()
	respondOK(c, http.StatusOK, gin.H{"message": "API call history cleared"})
}
