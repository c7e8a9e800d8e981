package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"backend_crm/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// invoiceNumberPrefix префикс номера счета
const invoiceNumberPrefix = "INV"

// maxNumberAttempts число попыток создания счета при конфликте номера
const maxNumberAttempts = 3

// InvoiceService отвечает за нумерацию счетов и платежи
type InvoiceService struct {
	db *gorm.DB
}

// NewInvoiceService создает новый экземпляр InvoiceService
func NewInvoiceService(db *gorm.DB) *InvoiceService {
	return &InvoiceService{db: db}
}

// GenerateInvoiceNumber генерирует следующий номер счета формата INV-YYYYMM-NNNN.
// Суффикс - максимальный номер в текущем календарном месяце плюс один,
// начиная с 0001. Сам по себе запрос "максимум + 1" не защищает от
// конкурентного создания: уникальность закреплена индексом, конфликт
// обрабатывается повтором в CreateInvoice.
func (is *InvoiceService) GenerateInvoiceNumber(now time.Time) (string, error) {
	prefix := fmt.Sprintf("%s-%04d%02d-", invoiceNumberPrefix, now.Year(), int(now.Month()))

	var lastNumbers []string
	err := is.db.Model(&models.Invoice{}).
		Where("number LIKE ?", prefix+"%").
		Order("number DESC").
		Limit(1).
		Pluck("number", &lastNumbers).Error
	if err != nil {
		return "", fmt.Errorf("ошибка поиска последнего номера счета: %w", err)
	}

	sequence := 1
	if len(lastNumbers) > 0 {
		suffix := strings.TrimPrefix(lastNumbers[0], prefix)
		if parsed, err := strconv.Atoi(suffix); err == nil {
			sequence = parsed + 1
		}
	}

	return fmt.Sprintf("%s%04d", prefix, sequence), nil
}

// CreateInvoice создает счет, генерируя номер с повтором при конфликте
// уникального индекса (до трех попыток)
func (is *InvoiceService) CreateInvoice(invoice *models.Invoice) error {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := is.GenerateInvoiceNumber(time.Now())
		if err != nil {
			return err
		}
		invoice.Number = number

		err = is.db.Create(invoice).Error
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("ошибка создания счета: %w", err)
		}
		// Конкурентное создание заняло этот номер - пробуем следующий
		invoice.ID = 0
	}

	return ErrDuplicateInvoiceNumber
}

// RecordPayment регистрирует платеж по счету.
// Инвариант amount_paid <= amount проверяется здесь, на уровне валидации;
// при полной оплате устанавливается paid_at, при частичной - статус
// partially_paid.
func (is *InvoiceService) RecordPayment(invoice *models.Invoice, amount decimal.Decimal) error {
	if invoice.Status == models.InvoiceStatusCancelled || invoice.Status == models.InvoiceStatusPaid {
		return ErrInvoiceNotPayable
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("сумма платежа должна быть положительной")
	}

	newPaid := invoice.AmountPaid.Add(amount)
	if newPaid.GreaterThan(invoice.Amount) {
		return ErrPaymentExceedsAmount
	}

	return is.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"amount_paid": newPaid,
		}

		if newPaid.GreaterThanOrEqual(invoice.Amount) {
			now := time.Now()
			updates["status"] = models.InvoiceStatusPaid
			updates["paid_at"] = &now
		} else {
			updates["status"] = models.InvoiceStatusPartiallyPaid
		}

		if err := tx.Model(invoice).Updates(updates).Error; err != nil {
			return fmt.Errorf("ошибка регистрации платежа: %w", err)
		}

		return nil
	})
}

// MarkOverdueInvoices помечает просроченные счета.
// Вызывается планировщиком; возвращает количество обновленных счетов.
func (is *InvoiceService) MarkOverdueInvoices() (int64, error) {
	result := is.db.Model(&models.Invoice{}).
		Where("status IN ? AND due_date < ?",
			[]string{models.InvoiceStatusSent, models.InvoiceStatusPartiallyPaid}, time.Now()).
		Update("status", models.InvoiceStatusOverdue)

	if result.Error != nil {
		return 0, fmt.Errorf("ошибка пометки просроченных счетов: %w", result.Error)
	}

	return result.RowsAffected, nil
}
