package api

import (
	"net/http"
	"time"

	"backend_crm/database"
	"backend_crm/models"

	"github.com/gin-gonic/gin"
)

// NotificationsAPI представляет API уведомлений пользователя
type NotificationsAPI struct{}

// NewNotificationsAPI создает новый экземпляр NotificationsAPI
func NewNotificationsAPI() *NotificationsAPI {
	return &NotificationsAPI{}
}

// GetNotifications возвращает уведомления текущего пользователя
// GET /api/notifications
func (a *NotificationsAPI) GetNotifications(c *gin.Context) {
	actor := getActor(c)

	db := database.GetDBFromContext(c)
	query := db.Model(&models.Notification{}).Where("user_id = ?", actor.ID)

	if unread := c.Query("unread"); unread == "true" {
		query = query.Where("read_at IS NULL")
	}

	page, limit, offset := parsePagination(c)

	var total int64
	query.Count(&total)

	var unreadCount int64
	db.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", actor.ID).Count(&unreadCount)

	var notifications []models.Notification
	if err := query.Offset(offset).Limit(limit).Order("id DESC").Find(&notifications).Error; err != nil {
		respondInternalError(c, "Ошибка при получении уведомлений")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   notifications,
		"count":  len(notifications),
		"total":  total,
		"unread": unreadCount,
		"page":   page,
		"limit":  limit,
	})
}

// MarkRead помечает уведомление прочитанным
// POST /api/notifications/:id/read
func (a *NotificationsAPI) MarkRead(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var notification models.Notification
	if err := db.Where("id = ? AND user_id = ?", id, actor.ID).First(&notification).Error; err != nil {
		respondNotFound(c, "Уведомление не найдено")
		return
	}

	if !notification.IsRead() {
		now := time.Now()
		if err := db.Model(&notification).Update("read_at", now).Error; err != nil {
			respondInternalError(c, "Ошибка при обновлении уведомления")
			return
		}
		notification.ReadAt = &now
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   notification,
	})
}

// MarkAllRead помечает все уведомления пользователя прочитанными
// POST /api/notifications/read-all
func (a *NotificationsAPI) MarkAllRead(c *gin.Context) {
	actor := getActor(c)

	db := database.GetDBFromContext(c)
	result := db.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", actor.ID).
		Update("read_at", time.Now())
	if result.Error != nil {
		respondInternalError(c, "Ошибка при обновлении уведомлений")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Уведомления прочитаны",
		"count":   result.RowsAffected,
	})
}

// RegisterRoutes регистрирует маршруты уведомлений
func (a *NotificationsAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/notifications", a.GetNotifications)
	router.POST("/notifications/:id/read", a.MarkRead)
	router.POST("/notifications/read-all", a.MarkAllRead)
}
