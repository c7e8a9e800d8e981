package models

import (
	"time"

	"gorm.io/gorm"
)

// Статусы лида
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusLost      = "lost"
)

// LeadStatuses все допустимые статусы лида
var LeadStatuses = []string{LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusLost}

// Lead представляет потенциального клиента
type Lead struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Контактные данные
	Name    string `json:"name" gorm:"not null;type:varchar(100)"`
	Email   string `json:"email" gorm:"type:varchar(100)"`
	Phone   string `json:"phone" gorm:"type:varchar(30)"`
	Company string `json:"company" gorm:"type:varchar(100)"`
	Source  string `json:"source" gorm:"type:varchar(50)"` // web, referral, cold_call, ...

	// Статус: new, contacted, qualified, lost
	Status string `json:"status" gorm:"default:'new';type:varchar(20);index"`

	// Владение и назначение
	CreatedByID  uint  `json:"created_by_id" gorm:"not null;index"`
	CreatedBy    *User `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
	AssignedToID *uint `json:"assigned_to_id" gorm:"index"`
	AssignedTo   *User `json:"assigned_to,omitempty" gorm:"foreignKey:AssignedToID"`
}

// TableName задает имя таблицы для модели Lead
func (Lead) TableName() string {
	return "leads"
}

// GetCreatedByID возвращает создателя лида
func (l *Lead) GetCreatedByID() uint {
	return l.CreatedByID
}

// GetAssignedToID возвращает назначенного исполнителя
func (l *Lead) GetAssignedToID() *uint {
	return l.AssignedToID
}

// IsValidLeadStatus проверяет допустимость статуса лида
func IsValidLeadStatus(status string) bool {
	for _, s := range LeadStatuses {
		if s == status {
			return true
		}
	}
	return false
}
