package api

import (
	"fmt"
	"net/http"
	"time"

	"backend_crm/database"
	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
)

// AppointmentsAPI представляет API управления встречами
type AppointmentsAPI struct {
	policy        *services.PolicyService
	notifications *services.NotificationService
	activities    *services.ActivityService
}

// NewAppointmentsAPI создает новый экземпляр AppointmentsAPI
func NewAppointmentsAPI(policy *services.PolicyService, notifications *services.NotificationService,
	activities *services.ActivityService) *AppointmentsAPI {
	return &AppointmentsAPI{policy: policy, notifications: notifications, activities: activities}
}

// GetAppointments возвращает список встреч с учетом прав доступа
// GET /api/appointments
func (a *AppointmentsAPI) GetAppointments(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionList, models.EntityTypeAppointment, nil) {
		respondForbidden(c)
		return
	}

	db := database.GetDBFromContext(c)
	scope := a.policy.ScopeList(actor, models.EntityTypeAppointment)
	query := scope(db.Model(&models.Appointment{}))

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if from := c.Query("from"); from != "" {
		query = query.Where("date >= ?", from)
	}
	if to := c.Query("to"); to != "" {
		query = query.Where("date <= ?", to)
	}
	if tag := c.Query("appointable_type"); tag != "" {
		query = query.Where("appointable_type = ?", models.ResolveEntityType(tag))
		if targetID := c.Query("appointable_id"); targetID != "" {
			query = query.Where("appointable_id = ?", targetID)
		}
	}

	page, limit, offset := parsePagination(c)

	var total int64
	query.Count(&total)

	var appointments []models.Appointment
	if err := query.Preload("Attendees").Preload("CreatedBy").
		Offset(offset).Limit(limit).Order("date").Find(&appointments).Error; err != nil {
		respondInternalError(c, "Ошибка при получении встреч")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   appointments,
		"count":  len(appointments),
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// GetAppointment возвращает встречу по ID
// GET /api/appointments/:id
func (a *AppointmentsAPI) GetAppointment(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var appointment models.Appointment
	if err := db.Preload("Attendees").Preload("CreatedBy").First(&appointment, id).Error; err != nil {
		respondNotFound(c, "Встреча не найдена")
		return
	}

	if !a.policy.Decide(actor, services.ActionView, models.EntityTypeAppointment, &appointment) {
		respondForbidden(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   appointment,
	})
}

// CreateAppointmentRequest запрос на создание встречи
type CreateAppointmentRequest struct {
	Title           string    `json:"title" binding:"required"`
	Description     string    `json:"description"`
	Date            time.Time `json:"date" binding:"required"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	AppointableType string    `json:"appointable_type" binding:"required"`
	AppointableID   uint      `json:"appointable_id" binding:"required"`
	AttendeeIDs     []uint    `json:"attendee_ids"`
}

// CreateAppointment создает встречу. О новой встрече уведомляются
// связанные со встречей пользователи, кроме администраторов и инициатора.
// POST /api/appointments
func (a *AppointmentsAPI) CreateAppointment(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionCreate, models.EntityTypeAppointment, nil) {
		respondForbidden(c)
		return
	}

	var req CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	if !models.IsAllowedTag(req.AppointableType, models.AppointableTags) {
		respondBadRequest(c, "Встречу можно привязать только к лиду, клиенту или проекту")
		return
	}

	db := database.GetDBFromContext(c)

	if !targetExists(db, models.ResolveEntityType(req.AppointableType), req.AppointableID) {
		respondNotFound(c, "Целевая сущность не найдена")
		return
	}

	appointment := models.Appointment{
		Title:           req.Title,
		Description:     req.Description,
		Date:            req.Date,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Status:          models.AppointmentStatusPending,
		AppointableType: models.ResolveEntityType(req.AppointableType),
		AppointableID:   req.AppointableID,
		CreatedByID:     actor.ID,
	}

	if len(req.AttendeeIDs) > 0 {
		var attendees []models.User
		if err := db.Find(&attendees, req.AttendeeIDs).Error; err != nil {
			respondBadRequest(c, "Участники не найдены")
			return
		}
		appointment.Attendees = attendees
	}

	if err := db.Create(&appointment).Error; err != nil {
		respondInternalError(c, "Ошибка при создании встречи")
		return
	}

	a.activities.RecordCreated(actor, models.EntityTypeAppointment, appointment.ID,
		fmt.Sprintf("Создана встреча «%s»", appointment.Title), &appointment)

	payload := services.NotificationPayload{
		Type:    string(services.EventAppointmentCreated),
		Message: fmt.Sprintf("Назначена встреча «%s» на %s", appointment.Title, appointment.Date.Format("02.01.2006")),
	}
	a.notifications.Notify(services.EventAppointmentCreated, &appointment, actor, payload,
		models.EntityTypeAppointment, appointment.ID)

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   appointment,
	})
}

// UpdateAppointmentRequest запрос на обновление встречи
type UpdateAppointmentRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Date        *time.Time `json:"date"`
	StartTime   *string    `json:"start_time"`
	EndTime     *string    `json:"end_time"`
	Status      *string    `json:"status"`
}

// UpdateAppointment обновляет встречу. Об изменении уведомляются связанные
// пользователи и администраторы; перенос даты сбрасывает флаг напоминания.
// PUT /api/appointments/:id
func (a *AppointmentsAPI) UpdateAppointment(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var appointment models.Appointment
	if err := db.Preload("Attendees").First(&appointment, id).Error; err != nil {
		respondNotFound(c, "Встреча не найдена")
		return
	}

	if !a.policy.Decide(actor, services.ActionUpdate, models.EntityTypeAppointment, &appointment) {
		respondForbidden(c)
		return
	}

	var req UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	if req.Status != nil && !models.IsValidAppointmentStatus(*req.Status) {
		respondBadRequest(c, "Недопустимый статус встречи")
		return
	}

	old := appointment

	if req.Title != nil {
		appointment.Title = *req.Title
	}
	if req.Description != nil {
		appointment.Description = *req.Description
	}
	if req.Date != nil {
		appointment.Date = *req.Date
		appointment.ReminderSentAt = nil
	}
	if req.StartTime != nil {
		appointment.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		appointment.EndTime = *req.EndTime
	}
	if req.Status != nil {
		appointment.Status = *req.Status
	}

	if err := db.Save(&appointment).Error; err != nil {
		respondInternalError(c, "Ошибка при обновлении встречи")
		return
	}

	a.activities.RecordUpdated(actor, models.EntityTypeAppointment, appointment.ID,
		fmt.Sprintf("Обновлена встреча «%s»", appointment.Title), &old, &appointment)

	payload := services.NotificationPayload{
		Type:    string(services.EventAppointmentUpdated),
		Message: fmt.Sprintf("Встреча «%s» изменена", appointment.Title),
	}
	a.notifications.Notify(services.EventAppointmentUpdated, &appointment, actor, payload,
		models.EntityTypeAppointment, appointment.ID)

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   appointment,
	})
}

// DeleteAppointment удаляет встречу
// DELETE /api/appointments/:id
func (a *AppointmentsAPI) DeleteAppointment(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var appointment models.Appointment
	if err := db.First(&appointment, id).Error; err != nil {
		respondNotFound(c, "Встреча не найдена")
		return
	}

	if !a.policy.Decide(actor, services.ActionDelete, models.EntityTypeAppointment, &appointment) {
		respondForbidden(c)
		return
	}

	if err := db.Delete(&appointment).Error; err != nil {
		respondInternalError(c, "Ошибка при удалении встречи")
		return
	}

	a.activities.RecordDeleted(actor, models.EntityTypeAppointment, appointment.ID,
		fmt.Sprintf("Удалена встреча «%s»", appointment.Title), &appointment)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Встреча удалена",
	})
}

// RegisterRoutes регистрирует маршруты управления встречами
func (a *AppointmentsAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/appointments", a.GetAppointments)
	router.GET("/appointments/:id", a.GetAppointment)
	router.POST("/appointments", a.CreateAppointment)
	router.PUT("/appointments/:id", a.UpdateAppointment)
	router.DELETE("/appointments/:id", a.DeleteAppointment)
}
