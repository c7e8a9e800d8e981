package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Статусы счета
const (
	InvoiceStatusDraft         = "draft"
	InvoiceStatusSent          = "sent"
	InvoiceStatusPartiallyPaid = "partially_paid"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusCancelled     = "cancelled"
	InvoiceStatusOverdue       = "overdue"
)

// InvoiceStatuses все допустимые статусы счета
var InvoiceStatuses = []string{
	InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPartiallyPaid,
	InvoiceStatusPaid, InvoiceStatusCancelled, InvoiceStatusOverdue,
}

// Invoice представляет счет на оплату
type Invoice struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Номер формата INV-YYYYMM-NNNN, уникальность закреплена индексом
	Number string `json:"number" gorm:"not null;type:varchar(50);index"`

	// Финансовая информация
	Amount     decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null"`
	AmountPaid decimal.Decimal `json:"amount_paid" gorm:"type:decimal(15,2);default:0"`

	// Статус и даты
	Status    string     `json:"status" gorm:"default:'draft';type:varchar(20);index"`
	IssueDate time.Time  `json:"issue_date" gorm:"not null"`
	DueDate   time.Time  `json:"due_date" gorm:"not null"`
	PaidAt    *time.Time `json:"paid_at"` // Устанавливается только при полной оплате

	// Связи
	ClientID  *uint    `json:"client_id" gorm:"index"`
	Client    *Client  `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	ProjectID *uint    `json:"project_id" gorm:"index"`
	Project   *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`

	// Владение
	CreatedByID uint  `json:"created_by_id" gorm:"not null;index"`
	CreatedBy   *User `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`

	// Дополнительная информация
	Notes string `json:"notes" gorm:"type:text"`
}

// TableName задает имя таблицы для модели Invoice
func (Invoice) TableName() string {
	return "invoices"
}

// IsOverdue проверяет, просрочен ли счет
func (i *Invoice) IsOverdue() bool {
	return i.Status != InvoiceStatusPaid && i.Status != InvoiceStatusCancelled && time.Now().After(i.DueDate)
}

// GetRemainingAmount возвращает оставшуюся к доплате сумму
func (i *Invoice) GetRemainingAmount() decimal.Decimal {
	return i.Amount.Sub(i.AmountPaid)
}

// IsFullyPaid проверяет, полностью ли оплачен счет
func (i *Invoice) IsFullyPaid() bool {
	return i.AmountPaid.GreaterThanOrEqual(i.Amount)
}

// GetCreatedByID возвращает создателя счета
func (i *Invoice) GetCreatedByID() uint {
	return i.CreatedByID
}

// GetAssignedToID у счета нет назначенного исполнителя
func (i *Invoice) GetAssignedToID() *uint {
	return nil
}
