package api

import (
	"fmt"
	"net/http"

	"backend_crm/database"
	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
)

// NotesAPI представляет API управления заметками
type NotesAPI struct {
	policy        *services.PolicyService
	notifications *services.NotificationService
	activities    *services.ActivityService
}

// NewNotesAPI создает новый экземпляр NotesAPI
func NewNotesAPI(policy *services.PolicyService, notifications *services.NotificationService,
	activities *services.ActivityService) *NotesAPI {
	return &NotesAPI{policy: policy, notifications: notifications, activities: activities}
}

// GetNotes возвращает список заметок
// GET /api/notes
func (a *NotesAPI) GetNotes(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionList, models.EntityTypeNote, nil) {
		respondForbidden(c)
		return
	}

	db := database.GetDBFromContext(c)
	query := db.Model(&models.Note{})

	if tag := c.Query("noteable_type"); tag != "" {
		query = query.Where("noteable_type = ?", models.ResolveEntityType(tag))
		if targetID := c.Query("noteable_id"); targetID != "" {
			query = query.Where("noteable_id = ?", targetID)
		}
	}

	page, limit, offset := parsePagination(c)

	var total int64
	query.Count(&total)

	var notes []models.Note
	if err := query.Preload("User").
		Offset(offset).Limit(limit).Order("id DESC").Find(&notes).Error; err != nil {
		respondInternalError(c, "Ошибка при получении заметок")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   notes,
		"count":  len(notes),
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// CreateNoteRequest запрос на создание заметки
type CreateNoteRequest struct {
	Content      string `json:"content" binding:"required"`
	NoteableType string `json:"noteable_type" binding:"required"`
	NoteableID   uint   `json:"noteable_id" binding:"required"`
}

// CreateNote создает заметку по лиду или клиенту.
// О новой заметке уведомляются все пользователи системы, включая автора.
// POST /api/notes
func (a *NotesAPI) CreateNote(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionCreate, models.EntityTypeNote, nil) {
		respondForbidden(c)
		return
	}

	var req CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	if !models.IsAllowedTag(req.NoteableType, models.NoteableTags) {
		respondBadRequest(c, "Заметку можно привязать только к лиду или клиенту")
		return
	}

	db := database.GetDBFromContext(c)

	if !targetExists(db, models.ResolveEntityType(req.NoteableType), req.NoteableID) {
		respondNotFound(c, "Целевая сущность не найдена")
		return
	}

	note := models.Note{
		Content:      req.Content,
		UserID:       actor.ID,
		NoteableType: models.ResolveEntityType(req.NoteableType),
		NoteableID:   req.NoteableID,
	}

	if err := db.Create(&note).Error; err != nil {
		respondInternalError(c, "Ошибка при создании заметки")
		return
	}

	a.activities.RecordCreated(actor, models.EntityTypeNote, note.ID,
		fmt.Sprintf("Добавлена заметка к %s #%d", req.NoteableType, req.NoteableID), &note)

	payload := services.NotificationPayload{
		Type:    string(services.EventNoteCreated),
		Message: fmt.Sprintf("%s добавил(а) заметку", actor.Name),
	}
	a.notifications.Notify(services.EventNoteCreated, &note, actor, payload,
		models.EntityTypeNote, note.ID)

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   note,
	})
}

// UpdateNoteRequest запрос на обновление заметки
type UpdateNoteRequest struct {
	Content string `json:"content" binding:"required"`
}

// UpdateNote обновляет заметку
// PUT /api/notes/:id
func (a *NotesAPI) UpdateNote(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var note models.Note
	if err := db.First(&note, id).Error; err != nil {
		respondNotFound(c, "Заметка не найдена")
		return
	}

	if !a.policy.Decide(actor, services.ActionUpdate, models.EntityTypeNote, &note) {
		respondForbidden(c)
		return
	}

	var req UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	old := note
	note.Content = req.Content

	if err := db.Save(&note).Error; err != nil {
		respondInternalError(c, "Ошибка при обновлении заметки")
		return
	}

	a.activities.RecordUpdated(actor, models.EntityTypeNote, note.ID, "Обновлена заметка", &old, &note)

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   note,
	})
}

// DeleteNote удаляет заметку
// DELETE /api/notes/:id
func (a *NotesAPI) DeleteNote(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var note models.Note
	if err := db.First(&note, id).Error; err != nil {
		respondNotFound(c, "Заметка не найдена")
		return
	}

	if !a.policy.Decide(actor, services.ActionDelete, models.EntityTypeNote, &note) {
		respondForbidden(c)
		return
	}

	if err := db.Delete(&note).Error; err != nil {
		respondInternalError(c, "Ошибка при удалении заметки")
		return
	}

	a.activities.RecordDeleted(actor, models.EntityTypeNote, note.ID, "Удалена заметка", &note)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Заметка удалена",
	})
}

// RegisterRoutes регистрирует маршруты управления заметками
func (a *NotesAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/notes", a.GetNotes)
	router.POST("/notes", a.CreateNote)
	router.PUT("/notes/:id", a.UpdateNote)
	router.DELETE("/notes/:id", a.DeleteNote)
}
