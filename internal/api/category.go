package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"expense_tracker/internal/domain"
	"expense_tracker/internal/middleware"
	"expense_tracker/internal/service"
)

// Request struct for creating or updating a category
type CategoryRequest struct {
	Name   string            `json:"name" binding:"required,max=100"`
	Fields []domain.FieldDef `json:"fields" binding:"omitempty,dive"`
}

// Request struct for seeding default categories
type SeedRequest struct {
	Names []string `json:"names" binding:"required"`
}

// ListCategoriesHandler returns the user's categories by name
func ListCategoriesHandler(svc *service.CategoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		cats, err := svc.List(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": cats})
	}
}

// CreateCategoryHandler adds a category with its field schema
func CreateCategoryHandler(svc *service.CategoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
		cat, err := svc.Create(c.Request.Context(), middleware.UserID(c), req.Name, req.Fields)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"category": cat})
	}
}

// UpdateCategoryHandler renames a category and replaces its fields
func UpdateCategoryHandler(svc *service.CategoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
		cat, err := svc.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Name, req.Fields)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"category": cat})
	}
}

// DeleteCategoryHandler removes a category nothing refers to
func DeleteCategoryHandler(svc *service.CategoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
	}
}

// SeedCategoriesHandler creates the missing default categories
func SeedCategoriesHandler(svc *service.CategoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SeedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
		created, err := svc.SeedDefaults(c.Request.Context(), middleware.UserID(c), req.Names)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"created": created})
	}
}
