package api

import (
	"errors"
	"fmt"
	"net/http"

	"backend_crm/database"
	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
)

// LeadsAPI представляет API управления лидами
type LeadsAPI struct {
	policy        *services.PolicyService
	conversion    *services.ConversionService
	notifications *services.NotificationService
	activities    *services.ActivityService
}

// NewLeadsAPI создает новый экземпляр LeadsAPI
func NewLeadsAPI(policy *services.PolicyService, conversion *services.ConversionService,
	notifications *services.NotificationService, activities *services.ActivityService) *LeadsAPI {
	return &LeadsAPI{
		policy:        policy,
		conversion:    conversion,
		notifications: notifications,
		activities:    activities,
	}
}

// GetLeads возвращает список лидов с учетом прав доступа
// GET /api/leads
func (a *LeadsAPI) GetLeads(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionList, models.EntityTypeLead, nil) {
		respondForbidden(c)
		return
	}

	db := database.GetDBFromContext(c)
	scope := a.policy.ScopeList(actor, models.EntityTypeLead)
	query := scope(db.Model(&models.Lead{}))

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if assignedTo := c.Query("assigned_to"); assignedTo != "" {
		query = query.Where("assigned_to_id = ?", assignedTo)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("name LIKE ? OR email LIKE ? OR company LIKE ?",
			"%"+search+"%", "%"+search+"%", "%"+search+"%")
	}

	page, limit, offset := parsePagination(c)

	var total int64
	query.Count(&total)

	var leads []models.Lead
	if err := query.Preload("AssignedTo").Preload("CreatedBy").
		Offset(offset).Limit(limit).Order("id DESC").Find(&leads).Error; err != nil {
		respondInternalError(c, "Ошибка при получении лидов")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   leads,
		"count":  len(leads),
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// GetLead возвращает лид по ID
// GET /api/leads/:id
func (a *LeadsAPI) GetLead(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var lead models.Lead
	if err := db.Preload("AssignedTo").Preload("CreatedBy").First(&lead, id).Error; err != nil {
		respondNotFound(c, "Лид не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionView, models.EntityTypeLead, &lead) {
		respondForbidden(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   lead,
	})
}

// CreateLeadRequest запрос на создание лида
type CreateLeadRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Company      string `json:"company"`
	Source       string `json:"source"`
	AssignedToID *uint  `json:"assigned_to_id"`
}

// CreateLead создает новый лид
// POST /api/leads
func (a *LeadsAPI) CreateLead(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionCreate, models.EntityTypeLead, nil) {
		respondForbidden(c)
		return
	}

	var req CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	lead := models.Lead{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Company:      req.Company,
		Source:       req.Source,
		Status:       models.LeadStatusNew,
		CreatedByID:  actor.ID,
		AssignedToID: req.AssignedToID,
	}

	db := database.GetDBFromContext(c)
	if err := db.Create(&lead).Error; err != nil {
		respondInternalError(c, "Ошибка при создании лида")
		return
	}

	a.activities.RecordCreated(actor, models.EntityTypeLead, lead.ID,
		fmt.Sprintf("Создан лид «%s»", lead.Name), &lead)

	// Уведомляем нового исполнителя, если он назначен сразу при создании
	a.notifications.NotifyAssignment(services.EventLeadAssigned, models.EntityTypeLead,
		lead.ID, lead.Name, lead.AssignedToID, nil, actor)

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   lead,
	})
}

// UpdateLeadRequest запрос на обновление лида
type UpdateLeadRequest struct {
	Name         *string `json:"name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	Company      *string `json:"company"`
	Source       *string `json:"source"`
	Status       *string `json:"status"`
	AssignedToID *uint   `json:"assigned_to_id"`
}

// UpdateLead обновляет лид. Перевод статуса в qualified запускает
// конвертацию в клиента: явного вызова endpoint конвертации не требуется.
// PUT /api/leads/:id
func (a *LeadsAPI) UpdateLead(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var lead models.Lead
	if err := db.First(&lead, id).Error; err != nil {
		respondNotFound(c, "Лид не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionUpdate, models.EntityTypeLead, &lead) {
		respondForbidden(c)
		return
	}

	var req UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	if req.Status != nil && !models.IsValidLeadStatus(*req.Status) {
		respondBadRequest(c, "Недопустимый статус лида")
		return
	}

	old := lead
	prevAssignee := lead.AssignedToID

	if req.Name != nil {
		lead.Name = *req.Name
	}
	if req.Email != nil {
		lead.Email = *req.Email
	}
	if req.Phone != nil {
		lead.Phone = *req.Phone
	}
	if req.Company != nil {
		lead.Company = *req.Company
	}
	if req.Source != nil {
		lead.Source = *req.Source
	}
	if req.AssignedToID != nil {
		lead.AssignedToID = req.AssignedToID
	}

	// Переход статуса через таблицу эффектов: конвертация выполняется
	// сервисом в своей транзакции и сама выставляет qualified
	var converted *models.Client
	if req.Status != nil && services.TransitionTriggersConversion(old.Status, *req.Status) {
		client, err := a.conversion.Convert(&lead, actor, true)
		if err != nil {
			if errors.Is(err, services.ErrLeadAlreadyConverted) {
				c.JSON(http.StatusConflict, gin.H{
					"status": "error",
					"error":  "Лид уже сконвертирован в клиента",
				})
				return
			}
			respondInternalError(c, "Ошибка при конвертации лида")
			return
		}
		converted = client
	} else if req.Status != nil {
		lead.Status = *req.Status
	}

	if err := db.Save(&lead).Error; err != nil {
		respondInternalError(c, "Ошибка при обновлении лида")
		return
	}

	a.activities.RecordUpdated(actor, models.EntityTypeLead, lead.ID,
		fmt.Sprintf("Обновлен лид «%s»", lead.Name), &old, &lead)

	a.notifications.NotifyAssignment(services.EventLeadAssigned, models.EntityTypeLead,
		lead.ID, lead.Name, lead.AssignedToID, prevAssignee, actor)

	response := gin.H{
		"status": "success",
		"data":   lead,
	}
	if converted != nil {
		response["client"] = converted
	}

	c.JSON(http.StatusOK, response)
}

// ConvertLeadRequest запрос на конвертацию лида
type ConvertLeadRequest struct {
	InheritAssignment *bool `json:"inherit_assignment"`
}

// ConvertLead конвертирует лид в клиента
// POST /api/leads/:id/convert
func (a *LeadsAPI) ConvertLead(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var lead models.Lead
	if err := db.First(&lead, id).Error; err != nil {
		respondNotFound(c, "Лид не найден")
		return
	}

	// Конвертация - это обновление лида с созданием клиента
	if !a.policy.Decide(actor, services.ActionUpdate, models.EntityTypeLead, &lead) ||
		!a.policy.Decide(actor, services.ActionCreate, models.EntityTypeClient, nil) {
		respondForbidden(c)
		return
	}

	inherit := true
	var req ConvertLeadRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.InheritAssignment != nil {
		inherit = *req.InheritAssignment
	}

	client, err := a.conversion.Convert(&lead, actor, inherit)
	if err != nil {
		if errors.Is(err, services.ErrLeadAlreadyConverted) {
			c.JSON(http.StatusConflict, gin.H{
				"status": "error",
				"error":  "Лид уже сконвертирован в клиента",
			})
			return
		}
		respondInternalError(c, "Ошибка при конвертации лида")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data": gin.H{
			"lead":   lead,
			"client": client,
		},
	})
}

// DeleteLead удаляет лид
// DELETE /api/leads/:id
func (a *LeadsAPI) DeleteLead(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var lead models.Lead
	if err := db.First(&lead, id).Error; err != nil {
		respondNotFound(c, "Лид не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionDelete, models.EntityTypeLead, &lead) {
		respondForbidden(c)
		return
	}

	if err := db.Delete(&lead).Error; err != nil {
		respondInternalError(c, "Ошибка при удалении лида")
		return
	}

	a.activities.RecordDeleted(actor, models.EntityTypeLead, lead.ID,
		fmt.Sprintf("Удален лид «%s»", lead.Name), &lead)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Лид удален",
	})
}

// RegisterRoutes регистрирует маршруты управления лидами
func (a *LeadsAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/leads", a.GetLeads)
	router.GET("/leads/:id", a.GetLead)
	router.POST("/leads", a.CreateLead)
	router.PUT("/leads/:id", a.UpdateLead)
	router.POST("/leads/:id/convert", a.ConvertLead)
	router.DELETE("/leads/:id", a.DeleteLead)
}
