package models

import (
	"time"

	"gorm.io/gorm"
)

// Client представляет действующего клиента
type Client struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Контактные данные
	Name    string `json:"name" gorm:"not null;type:varchar(100)"`
	Email   string `json:"email" gorm:"type:varchar(100)"`
	Phone   string `json:"phone" gorm:"type:varchar(30)"`
	Company string `json:"company" gorm:"type:varchar(100)"`
	Address string `json:"address" gorm:"type:text"`

	// Обратная ссылка на лид, из которого клиент был создан конвертацией.
	// Уникальность lead_id закреплена частичным индексом (database/indexes.go).
	LeadID *uint `json:"lead_id" gorm:"index"`
	Lead   *Lead `json:"lead,omitempty" gorm:"foreignKey:LeadID"`

	// Владение и назначение
	CreatedByID  uint  `json:"created_by_id" gorm:"not null;index"`
	CreatedBy    *User `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
	AssignedToID *uint `json:"assigned_to_id" gorm:"index"`
	AssignedTo   *User `json:"assigned_to,omitempty" gorm:"foreignKey:AssignedToID"`
}

// TableName задает имя таблицы для модели Client
func (Client) TableName() string {
	return "clients"
}

// GetCreatedByID возвращает создателя клиента
func (c *Client) GetCreatedByID() uint {
	return c.CreatedByID
}

// GetAssignedToID возвращает назначенного исполнителя
func (c *Client) GetAssignedToID() *uint {
	return c.AssignedToID
}
