package services

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	"backend_crm/models"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ExportService выгружает и загружает лиды и клиентов в формате XLSX
type ExportService struct {
	db    *gorm.DB
	cache *CacheService
}

// NewExportService создает новый экземпляр ExportService
func NewExportService(db *gorm.DB, cache *CacheService) *ExportService {
	return &ExportService{db: db, cache: cache}
}

// ImportResult результат импорта из XLSX
type ImportResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// ExportLeads выгружает лиды в XLSX с учетом прав доступа.
// Готовый файл кэшируется per-user; scope передается из PolicyService,
// чтобы участник не выгрузил чужие записи.
func (es *ExportService) ExportLeads(actor *models.User, scope func(*gorm.DB) *gorm.DB) ([]byte, error) {
	if es.cache != nil {
		if data, err := es.cache.GetCachedExport(actor.ID, "leads"); err == nil && len(data) > 0 {
			return data, nil
		}
	}

	var leads []models.Lead
	query := es.db.Preload("AssignedTo").Preload("CreatedBy").Order("id")
	if scope != nil {
		query = scope(query)
	}
	if err := query.Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("ошибка выборки лидов для экспорта: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Leads"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Имя", "Email", "Телефон", "Компания", "Источник", "Статус", "Ответственный", "Создан"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for i, lead := range leads {
		row := i + 2
		assignee := ""
		if lead.AssignedTo != nil {
			assignee = lead.AssignedTo.Name
		}
		values := []interface{}{
			lead.ID, lead.Name, lead.Email, lead.Phone, lead.Company,
			lead.Source, lead.Status, assignee, lead.CreatedAt.Format("02.01.2006 15:04"),
		}
		for j, value := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("ошибка записи XLSX: %w", err)
	}

	data := buf.Bytes()
	if es.cache != nil {
		if err := es.cache.CacheExport(actor.ID, "leads", data); err != nil {
			log.Printf("Не удалось закэшировать экспорт лидов: %v", err)
		}
	}

	return data, nil
}

// ExportClients выгружает клиентов в XLSX с учетом прав доступа
func (es *ExportService) ExportClients(actor *models.User, scope func(*gorm.DB) *gorm.DB) ([]byte, error) {
	if es.cache != nil {
		if data, err := es.cache.GetCachedExport(actor.ID, "clients"); err == nil && len(data) > 0 {
			return data, nil
		}
	}

	var clients []models.Client
	query := es.db.Preload("AssignedTo").Order("id")
	if scope != nil {
		query = scope(query)
	}
	if err := query.Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("ошибка выборки клиентов для экспорта: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Clients"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Имя", "Email", "Телефон", "Компания", "Адрес", "Ответственный", "Создан"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for i, client := range clients {
		row := i + 2
		assignee := ""
		if client.AssignedTo != nil {
			assignee = client.AssignedTo.Name
		}
		values := []interface{}{
			client.ID, client.Name, client.Email, client.Phone, client.Company,
			client.Address, assignee, client.CreatedAt.Format("02.01.2006 15:04"),
		}
		for j, value := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("ошибка записи XLSX: %w", err)
	}

	data := buf.Bytes()
	if es.cache != nil {
		if err := es.cache.CacheExport(actor.ID, "clients", data); err != nil {
			log.Printf("Не удалось закэшировать экспорт клиентов: %v", err)
		}
	}

	return data, nil
}

// ImportLeads загружает лиды из XLSX. Ожидаются колонки:
// Имя, Email, Телефон, Компания, Источник. Строки без имени пропускаются,
// статус у новых лидов всегда new.
func (es *ExportService) ImportLeads(actor *models.User, data []byte) (*ImportResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения XLSX: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения листа %s: %w", sheet, err)
	}

	result := &ImportResult{}

	err = es.db.Transaction(func(tx *gorm.DB) error {
		for i, row := range rows {
			if i == 0 {
				// Заголовок
				continue
			}

			cell := func(idx int) string {
				if idx < len(row) {
					return strings.TrimSpace(row[idx])
				}
				return ""
			}

			name := cell(0)
			if name == "" {
				result.Skipped++
				continue
			}

			lead := models.Lead{
				Name:        name,
				Email:       cell(1),
				Phone:       cell(2),
				Company:     cell(3),
				Source:      cell(4),
				Status:      models.LeadStatusNew,
				CreatedByID: actor.ID,
			}

			if err := tx.Create(&lead).Error; err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("строка %d: %v", i+1, err))
				return fmt.Errorf("ошибка импорта строки %d: %w", i+1, err)
			}
			result.Created++
		}
		return nil
	})

	if err != nil {
		return result, err
	}

	// Новые записи делают закэшированные экспорты неактуальными
	if es.cache != nil {
		if cacheErr := es.cache.InvalidateExportCache(actor.ID, "leads"); cacheErr != nil {
			log.Printf("Не удалось инвалидировать кэш экспорта лидов: %v", cacheErr)
		}
	}

	return result, nil
}
