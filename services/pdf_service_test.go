package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"backend_crm/models"
	"backend_crm/testutils"
)

// fakeRenderer считает обращения к рендерингу и возвращает разные байты
// для каждого вызова, чтобы отличать кэш от повторной генерации
type fakeRenderer struct {
	calls int
}

func (r *fakeRenderer) RenderInvoice(invoice *models.Invoice, client *models.Client) ([]byte, error) {
	r.calls++
	return []byte(fmt.Sprintf("pdf-%s-%d", invoice.Number, r.calls)), nil
}

func setupPDFTest(t *testing.T) (*gorm.DB, *InvoicePDFService, *fakeRenderer, *models.Invoice) {
	db := testutils.SetupTestDB(t)
	actor := testutils.CreateTestUser(t, db, "manager", models.RoleManager)

	renderer := &fakeRenderer{}
	storage := NewLocalFileStorage(t.TempDir(), "http://localhost:8080/files")
	pdf := NewInvoicePDFService(db, storage, renderer)

	invoice := &models.Invoice{
		Number:      "INV-202609-0001",
		Amount:      decimal.RequireFromString("1000.00"),
		AmountPaid:  decimal.Zero,
		Status:      models.InvoiceStatusSent,
		IssueDate:   time.Now(),
		DueDate:     time.Now().AddDate(0, 0, 14),
		CreatedByID: actor.ID,
	}
	require.NoError(t, db.Create(invoice).Error)

	return db, pdf, renderer, invoice
}

func TestGetOrGeneratePDF_CachesRenderedFile(t *testing.T) {
	db, pdf, renderer, invoice := setupPDFTest(t)

	first, document, err := pdf.GetOrGeneratePDF(invoice)
	require.NoError(t, err)
	require.NotNil(t, document)
	assert.Equal(t, 1, renderer.calls)
	assert.Equal(t, models.EntityTypeInvoice, document.DocumentableType)
	assert.Equal(t, invoice.ID, document.DocumentableID)
	assert.Equal(t, models.DocumentTypeInvoice, document.Type)

	// Повторный вызов без правок счета не рендерит заново
	second, _, err := pdf.GetOrGeneratePDF(invoice)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, renderer.calls)

	// Запись Document ровно одна
	var count int64
	db.Model(&models.Document{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestGetOrGeneratePDF_InvoiceUpdateInvalidatesCache(t *testing.T) {
	db, pdf, renderer, invoice := setupPDFTest(t)

	first, _, err := pdf.GetOrGeneratePDF(invoice)
	require.NoError(t, err)

	// Правка счета двигает updated_at вперед относительно документа
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, db.Model(invoice).Update("notes", "Оплата до конца месяца").Error)
	require.NoError(t, db.First(invoice, invoice.ID).Error)

	second, document, err := pdf.GetOrGeneratePDF(invoice)
	require.NoError(t, err)
	assert.Equal(t, 2, renderer.calls)
	assert.NotEqual(t, first, second)

	// Документ обновлен, а не задублирован
	var count int64
	db.Model(&models.Document{}).Count(&count)
	assert.Equal(t, int64(1), count)
	assert.False(t, document.UpdatedAt.Before(invoice.UpdatedAt))
}

func TestGetOrGeneratePDF_MissingFileRegenerates(t *testing.T) {
	_, pdf, renderer, invoice := setupPDFTest(t)

	_, document, err := pdf.GetOrGeneratePDF(invoice)
	require.NoError(t, err)

	// Файл потерян в хранилище - запись Document осталась
	require.NoError(t, pdf.storage.Delete(document.FilePath))

	data, _, err := pdf.GetOrGeneratePDF(invoice)
	require.NoError(t, err)
	assert.Equal(t, 2, renderer.calls)
	assert.NotEmpty(t, data)
}

func TestGofpdfRenderer_ProducesPDF(t *testing.T) {
	invoice := &models.Invoice{
		Number:     "INV-202609-0042",
		Amount:     decimal.RequireFromString("2500.50"),
		AmountPaid: decimal.RequireFromString("500.50"),
		Status:     models.InvoiceStatusPartiallyPaid,
		IssueDate:  time.Now(),
		DueDate:    time.Now().AddDate(0, 0, 14),
		Notes:      "Prepayment received",
	}
	client := &models.Client{Name: "Acme LLC", Email: "billing@acme.example"}

	renderer := &GofpdfRenderer{}
	data, err := renderer.RenderInvoice(invoice, client)
	require.NoError(t, err)
	assert.True(t, len(data) > 4)
	assert.Equal(t, "%PDF", string(data[:4]))
}
