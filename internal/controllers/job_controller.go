package controllers

import (
	"net/http"

	"github.com/clicktoassignment/backend/internal/middleware"
	"github.com/clicktoassignment/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type JobController struct {
	jobs     *services.JobService
	validate *validator.Validate
}

func NewJobController(jobs *services.JobService, validate *validator.Validate) *JobController {
	return &JobController{jobs: jobs, validate: validate}
}

type DeleteJobRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

// CreateJob handles POST /api/jobs
func (jc *JobController) CreateJob(c *gin.Context) {
	var req services.JobInput
	if !bindJSON(c, jc.validate, &req) {
		return
	}
	job, err := jc.jobs.CreateJob(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, job)
}

// UpdateJob handles PUT /api/jobs/:id
func (jc *JobController) UpdateJob(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, err := jc.jobs.GetJobFor(c.Request.Context(), id, actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}

	var req services.JobInput
	if !bindJSON(c, jc.validate, &req) {
		return
	}
	job, err := jc.jobs.UpdateJob(c.Request.Context(), id, middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, job)
}

// GetJob handles GET /api/jobs/:id
func (jc *JobController) GetJob(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	job, err := jc.jobs.GetJobFor(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (jc *JobController) ListJobs(c *gin.Context) {
	filter := services.JobFilter{
		PendingOnly:    c.Query("pending") == "true",
		IncludeDeleted: c.Query("deleted") == "true",
		Page:           queryInt(c, "page", 1),
		PageSize:       queryInt(c, "limit", 20),
	}
	jobs, total, err := jc.jobs.ListJobs(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    jobs,
		"total":   total,
		"page":    filter.Page,
	})
}

// DeleteJob handles DELETE /api/admin/jobs/:id
func (jc *JobController) DeleteJob(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req DeleteJobRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, jc.validate, &req) {
		return
	}
	if err := jc.jobs.SoftDelete(c.Request.Context(), id, middleware.CurrentUserID(c), req.Notes); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "Job deleted"})
}

// RestoreJob handles POST /api/admin/jobs/:id/restore
func (jc *JobController) RestoreJob(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := jc.jobs.Restore(c.Request.Context(), id, middleware.CurrentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "Job restored"})
}

// ArchiveJob handles POST /api/admin/jobs/:id/archive
func (jc *JobController) ArchiveJob(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := jc.jobs.ArchiveJob(c.Request.Context(), id, middleware.CurrentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "Job archived"})
}

// AddHoliday handles POST /api/admin/holidays
func (jc *JobController) AddHoliday(c *gin.Context) {
	var req services.HolidayInput
	if !bindJSON(c, jc.validate, &req) {
		return
	}
	holiday, err := jc.jobs.AddHoliday(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, holiday)
}

// ListHolidays handles GET /api/holidays
func (jc *JobController) ListHolidays(c *gin.Context) {
	holidays, err := jc.jobs.ListHolidays(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, holidays)
}

// DeleteHoliday handles DELETE /api/admin/holidays/:id
func (jc *JobController) DeleteHoliday(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := jc.jobs.DeleteHoliday(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "Holiday deleted"})
}
