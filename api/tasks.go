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

// TasksAPI представляет API управления задачами
type TasksAPI struct {
	policy        *services.PolicyService
	notifications *services.NotificationService
	activities    *services.ActivityService
}

// NewTasksAPI создает новый экземпляр TasksAPI
func NewTasksAPI(policy *services.PolicyService, notifications *services.NotificationService,
	activities *services.ActivityService) *TasksAPI {
	return &TasksAPI{policy: policy, notifications: notifications, activities: activities}
}

// GetTasks возвращает список задач с учетом прав доступа
// GET /api/tasks
func (a *TasksAPI) GetTasks(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionList, models.EntityTypeTask, nil) {
		respondForbidden(c)
		return
	}

	db := database.GetDBFromContext(c)
	scope := a.policy.ScopeList(actor, models.EntityTypeTask)
	query := scope(db.Model(&models.Task{}))

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if priority := c.Query("priority"); priority != "" {
		query = query.Where("priority = ?", priority)
	}
	if assignedTo := c.Query("assigned_to"); assignedTo != "" {
		query = query.Where("assigned_to_id = ?", assignedTo)
	}
	// Фильтр по полиморфной цели: ?taskable_type=lead&taskable_id=5
	if tag := c.Query("taskable_type"); tag != "" {
		query = query.Where("taskable_type = ?", models.ResolveEntityType(tag))
		if targetID := c.Query("taskable_id"); targetID != "" {
			query = query.Where("taskable_id = ?", targetID)
		}
	}

	page, limit, offset := parsePagination(c)

	var total int64
	query.Count(&total)

	var tasks []models.Task
	if err := query.Preload("AssignedTo").Preload("CreatedBy").
		Offset(offset).Limit(limit).Order("id DESC").Find(&tasks).Error; err != nil {
		respondInternalError(c, "Ошибка при получении задач")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   tasks,
		"count":  len(tasks),
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// GetTask возвращает задачу по ID
// GET /api/tasks/:id
func (a *TasksAPI) GetTask(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var task models.Task
	if err := db.Preload("AssignedTo").Preload("CreatedBy").First(&task, id).Error; err != nil {
		respondNotFound(c, "Задача не найдена")
		return
	}

	if !a.policy.Decide(actor, services.ActionView, models.EntityTypeTask, &task) {
		respondForbidden(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   task,
	})
}

// CreateTaskRequest запрос на создание задачи
type CreateTaskRequest struct {
	Title        string     `json:"title" binding:"required"`
	Description  string     `json:"description"`
	Priority     string     `json:"priority"`
	DueDate      *time.Time `json:"due_date"`
	TaskableType string     `json:"taskable_type" binding:"required"`
	TaskableID   uint       `json:"taskable_id" binding:"required"`
	AssignedToID *uint      `json:"assigned_to_id"`
}

// CreateTask создает новую задачу, привязанную к лиду, клиенту или проекту
// POST /api/tasks
func (a *TasksAPI) CreateTask(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionCreate, models.EntityTypeTask, nil) {
		respondForbidden(c)
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	if !models.IsAllowedTag(req.TaskableType, models.TaskableTags) {
		respondBadRequest(c, "Задачу можно привязать только к лиду, клиенту или проекту")
		return
	}
	if req.Priority == "" {
		req.Priority = models.TaskPriorityMedium
	}
	if !models.IsValidTaskPriority(req.Priority) {
		respondBadRequest(c, "Недопустимый приоритет задачи")
		return
	}

	db := database.GetDBFromContext(c)

	// Цель должна существовать
	if !targetExists(db, models.ResolveEntityType(req.TaskableType), req.TaskableID) {
		respondNotFound(c, "Целевая сущность не найдена")
		return
	}

	task := models.Task{
		Title:        req.Title,
		Description:  req.Description,
		Status:       models.TaskStatusPending,
		Priority:     req.Priority,
		DueDate:      req.DueDate,
		TaskableType: models.ResolveEntityType(req.TaskableType),
		TaskableID:   req.TaskableID,
		CreatedByID:  actor.ID,
		AssignedToID: req.AssignedToID,
	}

	if err := db.Create(&task).Error; err != nil {
		respondInternalError(c, "Ошибка при создании задачи")
		return
	}

	a.activities.RecordCreated(actor, models.EntityTypeTask, task.ID,
		fmt.Sprintf("Создана задача «%s»", task.Title), &task)

	a.notifications.NotifyAssignment(services.EventTaskAssigned, models.EntityTypeTask,
		task.ID, task.Title, task.AssignedToID, nil, actor)

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   task,
	})
}

// UpdateTaskRequest запрос на обновление задачи
type UpdateTaskRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Status       *string    `json:"status"`
	Priority     *string    `json:"priority"`
	DueDate      *time.Time `json:"due_date"`
	AssignedToID *uint      `json:"assigned_to_id"`
}

// UpdateTask обновляет задачу
// PUT /api/tasks/:id
func (a *TasksAPI) UpdateTask(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var task models.Task
	if err := db.First(&task, id).Error; err != nil {
		respondNotFound(c, "Задача не найдена")
		return
	}

	if !a.policy.Decide(actor, services.ActionUpdate, models.EntityTypeTask, &task) {
		respondForbidden(c)
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	if req.Status != nil && !models.IsValidTaskStatus(*req.Status) {
		respondBadRequest(c, "Недопустимый статус задачи")
		return
	}
	if req.Priority != nil && !models.IsValidTaskPriority(*req.Priority) {
		respondBadRequest(c, "Недопустимый приоритет задачи")
		return
	}

	old := task
	prevAssignee := task.AssignedToID

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.AssignedToID != nil {
		task.AssignedToID = req.AssignedToID
	}

	if err := db.Save(&task).Error; err != nil {
		respondInternalError(c, "Ошибка при обновлении задачи")
		return
	}

	a.activities.RecordUpdated(actor, models.EntityTypeTask, task.ID,
		fmt.Sprintf("Обновлена задача «%s»", task.Title), &old, &task)

	a.notifications.NotifyAssignment(services.EventTaskAssigned, models.EntityTypeTask,
		task.ID, task.Title, task.AssignedToID, prevAssignee, actor)

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   task,
	})
}

// DeleteTask удаляет задачу
// DELETE /api/tasks/:id
func (a *TasksAPI) DeleteTask(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var task models.Task
	if err := db.First(&task, id).Error; err != nil {
		respondNotFound(c, "Задача не найдена")
		return
	}

	if !a.policy.Decide(actor, services.ActionDelete, models.EntityTypeTask, &task) {
		respondForbidden(c)
		return
	}

	if err := db.Delete(&task).Error; err != nil {
		respondInternalError(c, "Ошибка при удалении задачи")
		return
	}

	a.activities.RecordDeleted(actor, models.EntityTypeTask, task.ID,
		fmt.Sprintf("Удалена задача «%s»", task.Title), &task)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Задача удалена",
	})
}

// RegisterRoutes регистрирует маршруты управления задачами
func (a *TasksAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/tasks", a.GetTasks)
	router.GET("/tasks/:id", a.GetTask)
	router.POST("/tasks", a.CreateTask)
	router.PUT("/tasks/:id", a.UpdateTask)
	router.DELETE("/tasks/:id", a.DeleteTask)
}
