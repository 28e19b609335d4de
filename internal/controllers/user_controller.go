package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/clicktoassignment/backend/internal/middleware"
	"github.com/clicktoassignment/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

type UserController struct {
	db       *gorm.DB
	validate *validator.Validate
}

func NewUserController(db *gorm.DB, validate *validator.Validate) *UserController {
	return &UserController{db: db, validate: validate}
}

type CreateUserRequest struct {
	Username string          `json:"username" validate:"required,max=150"`
	Email    string          `json:"email" validate:"omitempty,email"`
	FullName string          `json:"fullName" validate:"max=255"`
	Role     models.UserRole `json:"role" validate:"required"`
}

type UpdateUserRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required"`
}

func (uc *UserController) GetCurrentUser(c *gin.Context) {
	var user models.User
	if err := uc.db.WithContext(c.Request.Context()).First(&user, middleware.CurrentUserID(c)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not_found", "message": "User not found"})
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"user":         user,
		"isSuperAdmin": user.Role.IsSuperAdmin(),
		"isMetered":    user.Role.IsMetered(),
	})
}

// GetUsers handles GET /api/admin/users
func (uc *UserController) GetUsers(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 10)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))

	query := uc.db.WithContext(c.Request.Context()).Model(&models.User{})
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", like, like, like)
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var total int64
	query.Count(&total)

	var users []models.User
	if err := query.Order("id asc").Offset((page - 1) * limit).Limit(limit).Find(&users).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    users,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// AddUser handles POST /api/admin/users
func (uc *UserController) AddUser(c *gin.Context) {
	var req CreateUserRequest
	if !bindJSON(c, uc.validate, &req) {
		return
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "validation_failed", "message": "Invalid role"})
		return
	}

	user := models.User{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		FullName: strings.TrimSpace(req.FullName),
		Role:     req.Role,
		IsActive: true,
	}
	if err := uc.db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "duplicate_user", "message": "User already exists"})
			return
		}
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, user)
}

// superAdminsLeft counts active super admins other than exceptID.
func (uc *UserController) superAdminsLeft(tx *gorm.DB, exceptID uint) (int64, error) {
	var n int64
	err := tx.Model(&models.User{}).
		Where("role IN ? AND is_active = ? AND id <> ?", []models.UserRole{models.RoleSuperAdmin, models.RoleCoSuperAdmin}, true, exceptID).
		Count(&n).Error
	return n, err
}

// UpdateUserRole handles PUT /api/admin/users/:id/role
func (uc *UserController) UpdateUserRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateUserRoleRequest
	if !bindJSON(c, uc.validate, &req) {
		return
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "validation_failed", "message": "Invalid role"})
		return
	}
	if id == middleware.CurrentUserID(c) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "validation_failed", "message": "Cannot change your own role"})
		return
	}

	db := uc.db.WithContext(c.Request.Context())
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not_found", "message": "User not found"})
			return
		}
		respondError(c, err)
		return
	}

	if user.Role.IsSuperAdmin() && !req.Role.IsSuperAdmin() {
		left, err := uc.superAdminsLeft(db, user.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		if left == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "validation_failed", "message": "At least one super admin must remain"})
			return
		}
	}

	if err := db.Model(&user).Update("role", req.Role).Error; err != nil {
		respondError(c, err)
		return
	}
	user.Role = req.Role
	respondOK(c, http.StatusOK, user)
}

// RemoveUser handles DELETE /api/admin/users/:id
func (uc *UserController) RemoveUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if id == middleware.CurrentUserID(c) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "validation_failed", "message": "Cannot delete your own account"})
		return
	}

	db := uc.db.WithContext(c.Request.Context())
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not_found", "message": "User not found"})
		return
	}
	if user.Role.IsSuperAdmin() {
		left, err := uc.superAdminsLeft(db, user.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		if left == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "validation_failed", "message": "At least one super admin must remain"})
			return
		}
	}

	if err := db.Model(&user).Update("is_active", false).Error; err != nil {
		respondError(c, err)
		return
	}
	if err := db.Delete(&user).Error; err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "User deleted"})
}
