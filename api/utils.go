package api

import (
	"net/http"
	"strconv"

	"backend_crm/middleware"
	"backend_crm/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// getActor возвращает аутентифицированного пользователя из контекста
func getActor(c *gin.Context) *models.User {
	return middleware.GetCurrentUser(c)
}

// parsePagination извлекает параметры пагинации из запроса
func parsePagination(c *gin.Context) (page, limit, offset int) {
	page = 1
	limit = 20
	if p := c.Query("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	offset = (page - 1) * limit
	return page, limit, offset
}

// parseID разбирает числовой идентификатор из параметра пути
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный идентификатор",
		})
		return 0, false
	}
	return uint(id), true
}

// respondForbidden отвечает отказом в доступе
func respondForbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{
		"status": "error",
		"error":  "Недостаточно прав для выполнения операции",
	})
}

// respondNotFound отвечает ошибкой "не найдено"
func respondNotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{
		"status": "error",
		"error":  message,
	})
}

// respondBadRequest отвечает ошибкой валидации
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"status": "error",
		"error":  message,
	})
}

// targetExists проверяет существование цели полиморфной связи
func targetExists(db *gorm.DB, entityType string, id uint) bool {
	var count int64
	switch entityType {
	case models.EntityTypeLead:
		db.Model(&models.Lead{}).Where("id = ?", id).Count(&count)
	case models.EntityTypeClient:
		db.Model(&models.Client{}).Where("id = ?", id).Count(&count)
	case models.EntityTypeProject:
		db.Model(&models.Project{}).Where("id = ?", id).Count(&count)
	default:
		return false
	}
	return count > 0
}

// respondInternalError отвечает внутренней ошибкой сервера
func respondInternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"status": "error",
		"error":  message,
	})
}
