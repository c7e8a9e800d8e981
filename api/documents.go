package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"backend_crm/database"
	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxUploadSize максимальный размер загружаемого файла (20 МБ)
const maxUploadSize = 20 << 20

// DocumentsAPI представляет API управления документами
type DocumentsAPI struct {
	policy     *services.PolicyService
	storage    services.FileStorage
	activities *services.ActivityService
}

// NewDocumentsAPI создает новый экземпляр DocumentsAPI
func NewDocumentsAPI(policy *services.PolicyService, storage services.FileStorage,
	activities *services.ActivityService) *DocumentsAPI {
	return &DocumentsAPI{policy: policy, storage: storage, activities: activities}
}

// GetDocuments возвращает список документов с учетом прав доступа
// GET /api/documents
func (a *DocumentsAPI) GetDocuments(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionList, models.EntityTypeDocument, nil) {
		respondForbidden(c)
		return
	}

	db := database.GetDBFromContext(c)
	scope := a.policy.ScopeList(actor, models.EntityTypeDocument)
	query := scope(db.Model(&models.Document{}))

	if docType := c.Query("type"); docType != "" {
		query = query.Where("type = ?", docType)
	}
	if tag := c.Query("documentable_type"); tag != "" {
		query = query.Where("documentable_type = ?", models.ResolveEntityType(tag))
		if targetID := c.Query("documentable_id"); targetID != "" {
			query = query.Where("documentable_id = ?", targetID)
		}
	}

	page, limit, offset := parsePagination(c)

	var total int64
	query.Count(&total)

	var documents []models.Document
	if err := query.Preload("UploadedBy").
		Offset(offset).Limit(limit).Order("id DESC").Find(&documents).Error; err != nil {
		respondInternalError(c, "Ошибка при получении документов")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   documents,
		"count":  len(documents),
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// UploadDocument загружает файл и прикрепляет его к лиду или клиенту
// POST /api/documents
func (a *DocumentsAPI) UploadDocument(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionCreate, models.EntityTypeDocument, nil) {
		respondForbidden(c)
		return
	}

	tag := c.PostForm("documentable_type")
	if !models.IsAllowedTag(tag, models.DocumentableTags) {
		respondBadRequest(c, "Документ можно прикрепить только к лиду или клиенту")
		return
	}

	var targetID uint
	if _, err := fmt.Sscanf(c.PostForm("documentable_id"), "%d", &targetID); err != nil || targetID == 0 {
		respondBadRequest(c, "Некорректный идентификатор целевой сущности")
		return
	}

	docType := c.PostForm("type")
	if docType == "" {
		docType = models.DocumentTypeOther
	}

	db := database.GetDBFromContext(c)
	if !targetExists(db, models.ResolveEntityType(tag), targetID) {
		respondNotFound(c, "Целевая сущность не найдена")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "Файл не передан")
		return
	}
	if fileHeader.Size > maxUploadSize {
		respondBadRequest(c, "Файл слишком большой")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondInternalError(c, "Ошибка чтения файла")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondInternalError(c, "Ошибка чтения файла")
		return
	}

	path := fmt.Sprintf("documents/%s%s", uuid.New().String(), filepath.Ext(fileHeader.Filename))
	storedPath, err := a.storage.Store(data, path)
	if err != nil {
		respondInternalError(c, "Ошибка сохранения файла")
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = fileHeader.Filename
	}

	document := models.Document{
		Title:            title,
		Type:             docType,
		FilePath:         storedPath,
		FileSize:         fileHeader.Size,
		UploadedByID:     actor.ID,
		DocumentableType: models.ResolveEntityType(tag),
		DocumentableID:   targetID,
	}

	if err := db.Create(&document).Error; err != nil {
		a.storage.Delete(storedPath)
		respondInternalError(c, "Ошибка при создании документа")
		return
	}

	a.activities.RecordCreated(actor, models.EntityTypeDocument, document.ID,
		fmt.Sprintf("Загружен документ «%s»", document.Title), &document)

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   document,
	})
}

// DownloadDocument отдает содержимое файла документа
// GET /api/documents/:id/download
func (a *DocumentsAPI) DownloadDocument(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var document models.Document
	if err := db.First(&document, id).Error; err != nil {
		respondNotFound(c, "Документ не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionView, models.EntityTypeDocument, &document) {
		respondForbidden(c)
		return
	}

	data, err := a.storage.Read(document.FilePath)
	if err != nil {
		respondNotFound(c, "Файл документа не найден в хранилище")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(document.FilePath)))
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// DeleteDocument удаляет документ вместе с файлом
// DELETE /api/documents/:id
func (a *DocumentsAPI) DeleteDocument(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var document models.Document
	if err := db.First(&document, id).Error; err != nil {
		respondNotFound(c, "Документ не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionDelete, models.EntityTypeDocument, &document) {
		respondForbidden(c)
		return
	}

	if err := db.Delete(&document).Error; err != nil {
		respondInternalError(c, "Ошибка при удалении документа")
		return
	}

	a.storage.Delete(document.FilePath)

	a.activities.RecordDeleted(actor, models.EntityTypeDocument, document.ID,
		fmt.Sprintf("Удален документ «%s»", document.Title), &document)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Документ удален",
	})
}

// RegisterRoutes регистрирует маршруты управления документами
func (a *DocumentsAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/documents", a.GetDocuments)
	router.POST("/documents", a.UploadDocument)
	router.GET("/documents/:id/download", a.DownloadDocument)
	router.DELETE("/documents/:id", a.DeleteDocument)
}
