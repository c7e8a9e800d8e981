package api

import (
	"net/http"

	"backend_crm/database"
	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
)

// ActivitiesAPI представляет API журнала действий
type ActivitiesAPI struct {
	policy *services.PolicyService
}

// NewActivitiesAPI создает новый экземпляр ActivitiesAPI
func NewActivitiesAPI(policy *services.PolicyService) *ActivitiesAPI {
	return &ActivitiesAPI{policy: policy}
}

// GetActivities возвращает журнал действий с учетом прав доступа:
// администратор видит все, менеджер - все кроме действий администраторов,
// участник - только свои.
// GET /api/activities
func (a *ActivitiesAPI) GetActivities(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionList, models.EntityTypeActivity, nil) {
		respondForbidden(c)
		return
	}

	db := database.GetDBFromContext(c)
	scope := a.policy.ScopeList(actor, models.EntityTypeActivity)
	query := scope(db.Model(&models.Activity{}))

	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}
	if tag := c.Query("subject_type"); tag != "" {
		query = query.Where("subject_type = ?", models.ResolveEntityType(tag))
		if subjectID := c.Query("subject_id"); subjectID != "" {
			query = query.Where("subject_id = ?", subjectID)
		}
	}

	page, limit, offset := parsePagination(c)

	var total int64
	query.Count(&total)

	var activities []models.Activity
	if err := query.Preload("Causer").
		Offset(offset).Limit(limit).Order("id DESC").Find(&activities).Error; err != nil {
		respondInternalError(c, "Ошибка при получении журнала действий")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   activities,
		"count":  len(activities),
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// DeleteActivity удаляет запись журнала. Журнал пополняется только
// приложением, ручная чистка доступна администратору.
// DELETE /api/activities/:id
func (a *ActivitiesAPI) DeleteActivity(c *gin.Context) {
	actor := getActor(c)
	if actor == nil || actor.Role != models.RoleAdmin {
		respondForbidden(c)
		return
	}

	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)

	var activity models.Activity
	if err := db.First(&activity, id).Error; err != nil {
		respondNotFound(c, "Запись журнала не найдена")
		return
	}

	if err := db.Delete(&activity).Error; err != nil {
		respondInternalError(c, "Ошибка при удалении записи журнала")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Запись журнала удалена",
	})
}

// RegisterRoutes регистрирует маршруты журнала действий
func (a *ActivitiesAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/activities", a.GetActivities)
	router.DELETE("/activities/:id", a.DeleteActivity)
}
