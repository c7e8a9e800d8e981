package api

import (
	"fmt"
	"net/http"

	"backend_crm/database"
	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
)

// ProjectsAPI представляет API управления проектами
type ProjectsAPI struct {
	policy        *services.PolicyService
	notifications *services.NotificationService
	activities    *services.ActivityService
}

// NewProjectsAPI создает новый экземпляр ProjectsAPI
func NewProjectsAPI(policy *services.PolicyService, notifications *services.NotificationService,
	activities *services.ActivityService) *ProjectsAPI {
	return &ProjectsAPI{policy: policy, notifications: notifications, activities: activities}
}

// GetProjects возвращает список проектов с учетом прав доступа
// GET /api/projects
func (a *ProjectsAPI) GetProjects(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionList, models.EntityTypeProject, nil) {
		respondForbidden(c)
		return
	}

	db := database.GetDBFromContext(c)
	scope := a.policy.ScopeList(actor, models.EntityTypeProject)
	query := scope(db.Model(&models.Project{}))

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if clientID := c.Query("client_id"); clientID != "" {
		query = query.Where("client_id = ?", clientID)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}

	page, limit, offset := parsePagination(c)

	var total int64
	query.Count(&total)

	var projects []models.Project
	if err := query.Preload("Members").Preload("Client").
		Offset(offset).Limit(limit).Order("id DESC").Find(&projects).Error; err != nil {
		respondInternalError(c, "Ошибка при получении проектов")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   projects,
		"count":  len(projects),
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// GetProject возвращает проект по ID
// GET /api/projects/:id
func (a *ProjectsAPI) GetProject(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var project models.Project
	if err := db.Preload("Members").Preload("Client").Preload("CreatedBy").
		First(&project, id).Error; err != nil {
		respondNotFound(c, "Проект не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionView, models.EntityTypeProject, &project) {
		respondForbidden(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   project,
	})
}

// CreateProjectRequest запрос на создание проекта
type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ClientID    *uint  `json:"client_id"`
	LeadID      *uint  `json:"lead_id"`
	MemberIDs   []uint `json:"member_ids"`
}

// CreateProject создает новый проект
// POST /api/projects
func (a *ProjectsAPI) CreateProject(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionCreate, models.EntityTypeProject, nil) {
		respondForbidden(c)
		return
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	db := database.GetDBFromContext(c)

	project := models.Project{
		Name:        req.Name,
		Description: req.Description,
		Status:      models.ProjectStatusPlanning,
		ClientID:    req.ClientID,
		LeadID:      req.LeadID,
		CreatedByID: actor.ID,
	}

	if len(req.MemberIDs) > 0 {
		var members []models.User
		if err := db.Find(&members, req.MemberIDs).Error; err != nil {
			respondBadRequest(c, "Участники не найдены")
			return
		}
		project.Members = members
	}

	if err := db.Create(&project).Error; err != nil {
		respondInternalError(c, "Ошибка при создании проекта")
		return
	}

	a.activities.RecordCreated(actor, models.EntityTypeProject, project.ID,
		fmt.Sprintf("Создан проект «%s»", project.Name), &project)

	// Каждому участнику, добавленному при создании, уходит уведомление о назначении
	for _, member := range project.Members {
		memberID := member.ID
		a.notifications.NotifyAssignment(services.EventProjectAssigned, models.EntityTypeProject,
			project.ID, project.Name, &memberID, nil, actor)
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   project,
	})
}

// UpdateProjectRequest запрос на обновление проекта
type UpdateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	ClientID    *uint   `json:"client_id"`
}

// UpdateProject обновляет проект
// PUT /api/projects/:id
func (a *ProjectsAPI) UpdateProject(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var project models.Project
	if err := db.Preload("Members").First(&project, id).Error; err != nil {
		respondNotFound(c, "Проект не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionUpdate, models.EntityTypeProject, &project) {
		respondForbidden(c)
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	if req.Status != nil && !models.IsValidProjectStatus(*req.Status) {
		respondBadRequest(c, "Недопустимый статус проекта")
		return
	}

	old := project

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Status != nil {
		project.Status = *req.Status
	}
	if req.ClientID != nil {
		project.ClientID = req.ClientID
	}

	if err := db.Save(&project).Error; err != nil {
		respondInternalError(c, "Ошибка при обновлении проекта")
		return
	}

	a.activities.RecordUpdated(actor, models.EntityTypeProject, project.ID,
		fmt.Sprintf("Обновлен проект «%s»", project.Name), &old, &project)

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   project,
	})
}

// AddMemberRequest запрос на добавление участника проекта
type AddMemberRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// AddMember добавляет участника в проект
// POST /api/projects/:id/members
func (a *ProjectsAPI) AddMember(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var project models.Project
	if err := db.Preload("Members").First(&project, id).Error; err != nil {
		respondNotFound(c, "Проект не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionUpdate, models.EntityTypeProject, &project) {
		respondForbidden(c)
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	if project.HasMember(req.UserID) {
		respondBadRequest(c, "Пользователь уже участвует в проекте")
		return
	}

	var user models.User
	if err := db.First(&user, req.UserID).Error; err != nil {
		respondNotFound(c, "Пользователь не найден")
		return
	}

	if err := db.Model(&project).Association("Members").Append(&user); err != nil {
		respondInternalError(c, "Ошибка при добавлении участника")
		return
	}

	a.activities.Record(actor, models.ActivityActionAssigned, models.EntityTypeProject, project.ID,
		fmt.Sprintf("Пользователь «%s» добавлен в проект «%s»", user.Name, project.Name), nil, nil)

	a.notifications.NotifyAssignment(services.EventProjectAssigned, models.EntityTypeProject,
		project.ID, project.Name, &user.ID, nil, actor)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Участник добавлен",
	})
}

// RemoveMember исключает участника из проекта
// DELETE /api/projects/:id/members/:user_id
func (a *ProjectsAPI) RemoveMember(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var project models.Project
	if err := db.Preload("Members").First(&project, id).Error; err != nil {
		respondNotFound(c, "Проект не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionUpdate, models.EntityTypeProject, &project) {
		respondForbidden(c)
		return
	}

	var user models.User
	if err := db.First(&user, c.Param("user_id")).Error; err != nil {
		respondNotFound(c, "Пользователь не найден")
		return
	}

	if err := db.Model(&project).Association("Members").Delete(&user); err != nil {
		respondInternalError(c, "Ошибка при исключении участника")
		return
	}

	a.activities.Record(actor, models.ActivityActionUpdated, models.EntityTypeProject, project.ID,
		fmt.Sprintf("Пользователь «%s» исключен из проекта «%s»", user.Name, project.Name), nil, nil)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Участник исключен",
	})
}

// DeleteProject удаляет проект
// DELETE /api/projects/:id
func (a *ProjectsAPI) DeleteProject(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var project models.Project
	if err := db.First(&project, id).Error; err != nil {
		respondNotFound(c, "Проект не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionDelete, models.EntityTypeProject, &project) {
		respondForbidden(c)
		return
	}

	if err := db.Delete(&project).Error; err != nil {
		respondInternalError(c, "Ошибка при удалении проекта")
		return
	}

	a.activities.RecordDeleted(actor, models.EntityTypeProject, project.ID,
		fmt.Sprintf("Удален проект «%s»", project.Name), &project)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Проект удален",
	})
}

// RegisterRoutes регистрирует маршруты управления проектами
func (a *ProjectsAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/projects", a.GetProjects)
	router.GET("/projects/:id", a.GetProject)
	router.POST("/projects", a.CreateProject)
	router.PUT("/projects/:id", a.UpdateProject)
	router.POST("/projects/:id/members", a.AddMember)
	router.DELETE("/projects/:id/members/:user_id", a.RemoveMember)
	router.DELETE("/projects/:id", a.DeleteProject)
}
