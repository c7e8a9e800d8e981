package api

import (
	"fmt"
	"net/http"

	"backend_crm/database"
	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
)

// ClientsAPI представляет API управления клиентами
type ClientsAPI struct {
	policy        *services.PolicyService
	notifications *services.NotificationService
	activities    *services.ActivityService
}

// NewClientsAPI создает новый экземпляр ClientsAPI
func NewClientsAPI(policy *services.PolicyService, notifications *services.NotificationService,
	activities *services.ActivityService) *ClientsAPI {
	return &ClientsAPI{policy: policy, notifications: notifications, activities: activities}
}

// GetClients возвращает список клиентов с учетом прав доступа
// GET /api/clients
func (a *ClientsAPI) GetClients(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionList, models.EntityTypeClient, nil) {
		respondForbidden(c)
		return
	}

	db := database.GetDBFromContext(c)
	scope := a.policy.ScopeList(actor, models.EntityTypeClient)
	query := scope(db.Model(&models.Client{}))

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

	var clients []models.Client
	if err := query.Preload("AssignedTo").Preload("Lead").
		Offset(offset).Limit(limit).Order("id DESC").Find(&clients).Error; err != nil {
		respondInternalError(c, "Ошибка при получении клиентов")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   clients,
		"count":  len(clients),
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// GetClient возвращает клиента по ID
// GET /api/clients/:id
func (a *ClientsAPI) GetClient(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var client models.Client
	if err := db.Preload("AssignedTo").Preload("Lead").First(&client, id).Error; err != nil {
		respondNotFound(c, "Клиент не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionView, models.EntityTypeClient, &client) {
		respondForbidden(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   client,
	})
}

// CreateClientRequest запрос на создание клиента
type CreateClientRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Company      string `json:"company"`
	Address      string `json:"address"`
	AssignedToID *uint  `json:"assigned_to_id"`
}

// CreateClient создает нового клиента напрямую, без лида
// POST /api/clients
func (a *ClientsAPI) CreateClient(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionCreate, models.EntityTypeClient, nil) {
		respondForbidden(c)
		return
	}

	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	client := models.Client{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Company:      req.Company,
		Address:      req.Address,
		CreatedByID:  actor.ID,
		AssignedToID: req.AssignedToID,
	}

	db := database.GetDBFromContext(c)
	if err := db.Create(&client).Error; err != nil {
		respondInternalError(c, "Ошибка при создании клиента")
		return
	}

	a.activities.RecordCreated(actor, models.EntityTypeClient, client.ID,
		fmt.Sprintf("Создан клиент «%s»", client.Name), &client)

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   client,
	})
}

// UpdateClientRequest запрос на обновление клиента
type UpdateClientRequest struct {
	Name         *string `json:"name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	Company      *string `json:"company"`
	Address      *string `json:"address"`
	AssignedToID *uint   `json:"assigned_to_id"`
}

// UpdateClient обновляет клиента
// PUT /api/clients/:id
func (a *ClientsAPI) UpdateClient(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var client models.Client
	if err := db.First(&client, id).Error; err != nil {
		respondNotFound(c, "Клиент не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionUpdate, models.EntityTypeClient, &client) {
		respondForbidden(c)
		return
	}

	var req UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	old := client

	if req.Name != nil {
		client.Name = *req.Name
	}
	if req.Email != nil {
		client.Email = *req.Email
	}
	if req.Phone != nil {
		client.Phone = *req.Phone
	}
	if req.Company != nil {
		client.Company = *req.Company
	}
	if req.Address != nil {
		client.Address = *req.Address
	}
	if req.AssignedToID != nil {
		client.AssignedToID = req.AssignedToID
	}

	if err := db.Save(&client).Error; err != nil {
		respondInternalError(c, "Ошибка при обновлении клиента")
		return
	}

	a.activities.RecordUpdated(actor, models.EntityTypeClient, client.ID,
		fmt.Sprintf("Обновлен клиент «%s»", client.Name), &old, &client)

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   client,
	})
}

// DeleteClient удаляет клиента
// DELETE /api/clients/:id
func (a *ClientsAPI) DeleteClient(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var client models.Client
	if err := db.First(&client, id).Error; err != nil {
		respondNotFound(c, "Клиент не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionDelete, models.EntityTypeClient, &client) {
		respondForbidden(c)
		return
	}

	if err := db.Delete(&client).Error; err != nil {
		respondInternalError(c, "Ошибка при удалении клиента")
		return
	}

	a.activities.RecordDeleted(actor, models.EntityTypeClient, client.ID,
		fmt.Sprintf("Удален клиент «%s»", client.Name), &client)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Клиент удален",
	})
}

// RegisterRoutes регистрирует маршруты управления клиентами
func (a *ClientsAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/clients", a.GetClients)
	router.GET("/clients/:id", a.GetClient)
	router.POST("/clients", a.CreateClient)
	router.PUT("/clients/:id", a.UpdateClient)
	router.DELETE("/clients/:id", a.DeleteClient)
}
