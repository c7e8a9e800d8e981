package api

import (
	"io"
	"net/http"

	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
)

// xlsxContentType MIME тип файлов XLSX
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportsAPI представляет API экспорта и импорта данных
type ExportsAPI struct {
	policy  *services.PolicyService
	exports *services.ExportService
}

// NewExportsAPI создает новый экземпляр ExportsAPI
func NewExportsAPI(policy *services.PolicyService, exports *services.ExportService) *ExportsAPI {
	return &ExportsAPI{policy: policy, exports: exports}
}

// ExportLeads выгружает лиды в XLSX
// GET /api/exports/leads
func (a *ExportsAPI) ExportLeads(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionList, models.EntityTypeLead, nil) {
		respondForbidden(c)
		return
	}

	scope := a.policy.ScopeList(actor, models.EntityTypeLead)
	data, err := a.exports.ExportLeads(actor, scope)
	if err != nil {
		respondInternalError(c, "Ошибка при экспорте лидов")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="leads.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ExportClients выгружает клиентов в XLSX
// GET /api/exports/clients
func (a *ExportsAPI) ExportClients(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionList, models.EntityTypeClient, nil) {
		respondForbidden(c)
		return
	}

	scope := a.policy.ScopeList(actor, models.EntityTypeClient)
	data, err := a.exports.ExportClients(actor, scope)
	if err != nil {
		respondInternalError(c, "Ошибка при экспорте клиентов")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="clients.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ImportLeads загружает лиды из XLSX файла
// POST /api/exports/leads
func (a *ExportsAPI) ImportLeads(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionCreate, models.EntityTypeLead, nil) {
		respondForbidden(c)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "Файл не передан")
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

	result, err := a.exports.ImportLeads(actor, data)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"status": "error",
			"error":  "Импорт прерван: " + err.Error(),
			"data":   result,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   result,
	})
}

// RegisterRoutes регистрирует маршруты экспорта и импорта
func (a *ExportsAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/exports/leads", a.ExportLeads)
	router.GET("/exports/clients", a.ExportClients)
	router.POST("/exports/leads", a.ImportLeads)
}
