package services

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"backend_crm/models"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"gorm.io/gorm"
)

// PDFRenderer рендерит PDF счета. Вынесен в интерфейс, чтобы в тестах
// подменять рендерер и считать обращения.
type PDFRenderer interface {
	RenderInvoice(invoice *models.Invoice, client *models.Client) ([]byte, error)
}

// GofpdfRenderer рендерит PDF счета через gofpdf
type GofpdfRenderer struct{}

// RenderInvoice формирует PDF документ счета
func (r *GofpdfRenderer) RenderInvoice(invoice *models.Invoice, client *models.Client) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(100, 12, "INVOICE")
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(90, 12, invoice.Number)
	pdf.Ln(16)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(40, 8, "Issue date:")
	pdf.Cell(60, 8, invoice.IssueDate.Format("02.01.2006"))
	pdf.Ln(6)
	pdf.Cell(40, 8, "Due date:")
	pdf.Cell(60, 8, invoice.DueDate.Format("02.01.2006"))
	pdf.Ln(12)

	if client != nil {
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(100, 8, "Bill to:")
		pdf.Ln(7)
		pdf.SetFont("Arial", "", 10)
		pdf.Cell(100, 6, client.Name)
		pdf.Ln(5)
		if client.Company != "" {
			pdf.Cell(100, 6, client.Company)
			pdf.Ln(5)
		}
		if client.Email != "" {
			pdf.Cell(100, 6, client.Email)
			pdf.Ln(5)
		}
		pdf.Ln(6)
	}

	// Итоги
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(50, 8, "Amount:")
	pdf.Cell(60, 8, invoice.Amount.StringFixed(2))
	pdf.Ln(7)
	pdf.Cell(50, 8, "Paid:")
	pdf.Cell(60, 8, invoice.AmountPaid.StringFixed(2))
	pdf.Ln(7)
	pdf.Cell(50, 8, "Balance due:")
	pdf.Cell(60, 8, invoice.GetRemainingAmount().StringFixed(2))
	pdf.Ln(10)

	if invoice.Notes != "" {
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(180, 5, invoice.Notes, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("ошибка рендеринга PDF: %w", err)
	}

	return buf.Bytes(), nil
}

// InvoicePDFService генерирует PDF счетов и кэширует их через записи Document
type InvoicePDFService struct {
	db       *gorm.DB
	storage  FileStorage
	renderer PDFRenderer
}

// NewInvoicePDFService создает новый экземпляр InvoicePDFService
func NewInvoicePDFService(db *gorm.DB, storage FileStorage, renderer PDFRenderer) *InvoicePDFService {
	return &InvoicePDFService{db: db, storage: storage, renderer: renderer}
}

// GetOrGeneratePDF возвращает PDF счета, переиспользуя закэшированный файл.
// Кэш - запись Document с ключом {documentable=Invoice, type=invoice}.
// Файл переиспользуется, только если он существует в хранилище и документ
// не старше updated_at счета: правка счета после первой генерации
// инвалидирует кэш. Повторный вызов без правок не выполняет ни рендеринга,
// ни записи в хранилище.
func (ps *InvoicePDFService) GetOrGeneratePDF(invoice *models.Invoice) ([]byte, *models.Document, error) {
	var document models.Document
	err := ps.db.Where("documentable_type = ? AND documentable_id = ? AND type = ?",
		models.EntityTypeInvoice, invoice.ID, models.DocumentTypeInvoice).
		First(&document).Error

	if err == nil && ps.storage.Exists(document.FilePath) && !document.UpdatedAt.Before(invoice.UpdatedAt) {
		data, readErr := ps.storage.Read(document.FilePath)
		if readErr == nil {
			return data, &document, nil
		}
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("ошибка поиска документа счета: %w", err)
	}

	// Кэш отсутствует, устарел или файл потерян - рендерим заново
	var client *models.Client
	if invoice.ClientID != nil {
		var loaded models.Client
		if loadErr := ps.db.First(&loaded, *invoice.ClientID).Error; loadErr == nil {
			client = &loaded
		}
	}

	data, err := ps.renderer.RenderInvoice(invoice, client)
	if err != nil {
		return nil, nil, err
	}

	path := fmt.Sprintf("invoices/%s-%s.pdf", invoice.Number, uuid.New().String())
	storedPath, err := ps.storage.Store(data, path)
	if err != nil {
		return nil, nil, err
	}

	// Upsert записи Document по ключу {documentable, type}
	now := time.Now()
	if document.ID == 0 {
		document = models.Document{
			Title:            fmt.Sprintf("Счет %s", invoice.Number),
			Type:             models.DocumentTypeInvoice,
			FilePath:         storedPath,
			FileSize:         int64(len(data)),
			UploadedByID:     invoice.CreatedByID,
			DocumentableType: models.EntityTypeInvoice,
			DocumentableID:   invoice.ID,
		}
		if err := ps.db.Create(&document).Error; err != nil {
			return nil, nil, fmt.Errorf("ошибка создания документа счета: %w", err)
		}
	} else {
		oldPath := document.FilePath
		document.FilePath = storedPath
		document.FileSize = int64(len(data))
		document.UpdatedAt = now
		if err := ps.db.Save(&document).Error; err != nil {
			return nil, nil, fmt.Errorf("ошибка обновления документа счета: %w", err)
		}
		if oldPath != storedPath {
			ps.storage.Delete(oldPath)
		}
	}

	return data, &document, nil
}
