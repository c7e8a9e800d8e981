package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"backend_crm/database"
	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// InvoicesAPI представляет API управления счетами
type InvoicesAPI struct {
	policy     *services.PolicyService
	invoices   *services.InvoiceService
	pdf        *services.InvoicePDFService
	activities *services.ActivityService
}

// NewInvoicesAPI создает новый экземпляр InvoicesAPI
func NewInvoicesAPI(policy *services.PolicyService, invoices *services.InvoiceService,
	pdf *services.InvoicePDFService, activities *services.ActivityService) *InvoicesAPI {
	return &InvoicesAPI{policy: policy, invoices: invoices, pdf: pdf, activities: activities}
}

// GetInvoices возвращает список счетов
// GET /api/invoices
func (a *InvoicesAPI) GetInvoices(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionList, models.EntityTypeInvoice, nil) {
		respondForbidden(c)
		return
	}

	db := database.GetDBFromContext(c)
	query := db.Model(&models.Invoice{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if clientID := c.Query("client_id"); clientID != "" {
		query = query.Where("client_id = ?", clientID)
	}
	if overdue := c.Query("overdue"); overdue == "true" {
		query = query.Where("status NOT IN ? AND due_date < ?",
			[]string{models.InvoiceStatusPaid, models.InvoiceStatusCancelled}, time.Now())
	}

	page, limit, offset := parsePagination(c)

	var total int64
	query.Count(&total)

	var invoices []models.Invoice
	if err := query.Preload("Client").Preload("Project").
		Offset(offset).Limit(limit).Order("id DESC").Find(&invoices).Error; err != nil {
		respondInternalError(c, "Ошибка при получении счетов")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   invoices,
		"count":  len(invoices),
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// GetInvoice возвращает счет по ID
// GET /api/invoices/:id
func (a *InvoicesAPI) GetInvoice(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var invoice models.Invoice
	if err := db.Preload("Client").Preload("Project").First(&invoice, id).Error; err != nil {
		respondNotFound(c, "Счет не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionView, models.EntityTypeInvoice, &invoice) {
		respondForbidden(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   invoice,
	})
}

// CreateInvoiceRequest запрос на создание счета
type CreateInvoiceRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	IssueDate *time.Time      `json:"issue_date"`
	DueDate   time.Time       `json:"due_date" binding:"required"`
	ClientID  *uint           `json:"client_id"`
	ProjectID *uint           `json:"project_id"`
	Notes     string          `json:"notes"`
}

// CreateInvoice создает счет с автоматически сгенерированным номером
// POST /api/invoices
func (a *InvoicesAPI) CreateInvoice(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionCreate, models.EntityTypeInvoice, nil) {
		respondForbidden(c)
		return
	}

	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	if req.Amount.LessThanOrEqual(decimal.Zero) {
		respondBadRequest(c, "Сумма счета должна быть положительной")
		return
	}

	issueDate := time.Now()
	if req.IssueDate != nil {
		issueDate = *req.IssueDate
	}

	invoice := models.Invoice{
		Amount:      req.Amount,
		AmountPaid:  decimal.Zero,
		Status:      models.InvoiceStatusDraft,
		IssueDate:   issueDate,
		DueDate:     req.DueDate,
		ClientID:    req.ClientID,
		ProjectID:   req.ProjectID,
		CreatedByID: actor.ID,
		Notes:       req.Notes,
	}

	if err := a.invoices.CreateInvoice(&invoice); err != nil {
		if errors.Is(err, services.ErrDuplicateInvoiceNumber) {
			c.JSON(http.StatusConflict, gin.H{
				"status": "error",
				"error":  "Не удалось сгенерировать уникальный номер счета",
			})
			return
		}
		respondInternalError(c, "Ошибка при создании счета")
		return
	}

	a.activities.RecordCreated(actor, models.EntityTypeInvoice, invoice.ID,
		fmt.Sprintf("Создан счет %s", invoice.Number), &invoice)

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   invoice,
	})
}

// UpdateInvoiceRequest запрос на обновление счета
type UpdateInvoiceRequest struct {
	Status  *string    `json:"status"`
	DueDate *time.Time `json:"due_date"`
	Notes   *string    `json:"notes"`
}

// UpdateInvoice обновляет счет. Сумма и оплаты через этот endpoint
// не меняются: платежи регистрируются отдельной операцией.
// PUT /api/invoices/:id
func (a *InvoicesAPI) UpdateInvoice(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var invoice models.Invoice
	if err := db.First(&invoice, id).Error; err != nil {
		respondNotFound(c, "Счет не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionUpdate, models.EntityTypeInvoice, &invoice) {
		respondForbidden(c)
		return
	}

	var req UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	old := invoice

	if req.Status != nil {
		valid := false
		for _, s := range models.InvoiceStatuses {
			if s == *req.Status {
				valid = true
				break
			}
		}
		if !valid {
			respondBadRequest(c, "Недопустимый статус счета")
			return
		}
		invoice.Status = *req.Status
	}
	if req.DueDate != nil {
		invoice.DueDate = *req.DueDate
	}
	if req.Notes != nil {
		invoice.Notes = *req.Notes
	}

	if err := db.Save(&invoice).Error; err != nil {
		respondInternalError(c, "Ошибка при обновлении счета")
		return
	}

	a.activities.RecordUpdated(actor, models.EntityTypeInvoice, invoice.ID,
		fmt.Sprintf("Обновлен счет %s", invoice.Number), &old, &invoice)

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   invoice,
	})
}

// RecordPaymentRequest запрос на регистрацию платежа
type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// RecordPayment регистрирует платеж по счету
// POST /api/invoices/:id/payments
func (a *InvoicesAPI) RecordPayment(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var invoice models.Invoice
	if err := db.First(&invoice, id).Error; err != nil {
		respondNotFound(c, "Счет не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionUpdate, models.EntityTypeInvoice, &invoice) {
		respondForbidden(c)
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	if err := a.invoices.RecordPayment(&invoice, req.Amount); err != nil {
		switch {
		case errors.Is(err, services.ErrPaymentExceedsAmount):
			respondBadRequest(c, "Сумма платежа превышает остаток по счету")
		case errors.Is(err, services.ErrInvoiceNotPayable):
			respondBadRequest(c, "Счет не подлежит оплате")
		default:
			respondBadRequest(c, err.Error())
		}
		return
	}

	// Перечитываем счет после обновления
	db.First(&invoice, id)

	a.activities.Record(actor, models.ActivityActionPayment, models.EntityTypeInvoice, invoice.ID,
		fmt.Sprintf("Платеж %s по счету %s", req.Amount.StringFixed(2), invoice.Number), nil, &invoice)

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   invoice,
	})
}

// GetInvoicePDF возвращает PDF счета, используя кэш на основе Document
// GET /api/invoices/:id/pdf
func (a *InvoicesAPI) GetInvoicePDF(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var invoice models.Invoice
	if err := db.First(&invoice, id).Error; err != nil {
		respondNotFound(c, "Счет не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionView, models.EntityTypeInvoice, &invoice) {
		respondForbidden(c)
		return
	}

	data, _, err := a.pdf.GetOrGeneratePDF(&invoice)
	if err != nil {
		respondInternalError(c, "Ошибка генерации PDF")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", invoice.Number+".pdf"))
	c.Data(http.StatusOK, "application/pdf", data)
}

// DeleteInvoice удаляет счет
// DELETE /api/invoices/:id
func (a *InvoicesAPI) DeleteInvoice(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var invoice models.Invoice
	if err := db.First(&invoice, id).Error; err != nil {
		respondNotFound(c, "Счет не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionDelete, models.EntityTypeInvoice, &invoice) {
		respondForbidden(c)
		return
	}

	if err := db.Delete(&invoice).Error; err != nil {
		respondInternalError(c, "Ошибка при удалении счета")
		return
	}

	a.activities.RecordDeleted(actor, models.EntityTypeInvoice, invoice.ID,
		fmt.Sprintf("Удален счет %s", invoice.Number), &invoice)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Счет удален",
	})
}

// RegisterRoutes регистрирует маршруты управления счетами
func (a *InvoicesAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/invoices", a.GetInvoices)
	router.GET("/invoices/:id", a.GetInvoice)
	router.POST("/invoices", a.CreateInvoice)
	router.PUT("/invoices/:id", a.UpdateInvoice)
	router.POST("/invoices/:id/payments", a.RecordPayment)
	router.GET("/invoices/:id/pdf", a.GetInvoicePDF)
	router.DELETE("/invoices/:id", a.DeleteInvoice)
}
