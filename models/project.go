package models

import (
	"time"

	"gorm.io/gorm"
)

// Статусы проекта
const (
	ProjectStatusPlanning   = "planning"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusOnHold     = "on_hold"
	ProjectStatusCompleted  = "completed"
)

// ProjectStatuses все допустимые статусы проекта
var ProjectStatuses = []string{ProjectStatusPlanning, ProjectStatusInProgress, ProjectStatusOnHold, ProjectStatusCompleted}

// Project представляет проект
type Project struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля
	Name        string `json:"name" gorm:"not null;type:varchar(150)"`
	Description string `json:"description" gorm:"type:text"`
	Status      string `json:"status" gorm:"default:'planning';type:varchar(20);index"`

	// Связи с клиентом или лидом
	ClientID *uint   `json:"client_id" gorm:"index"`
	Client   *Client `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	LeadID   *uint   `json:"lead_id" gorm:"index"`
	Lead     *Lead   `json:"lead,omitempty" gorm:"foreignKey:LeadID"`

	// Владение
	CreatedByID uint  `json:"created_by_id" gorm:"not null;index"`
	CreatedBy   *User `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`

	// Участники - полноценная связь many-to-many, отличная от назначения
	Members []User `json:"members,omitempty" gorm:"many2many:project_members;"`
}

// TableName задает имя таблицы для модели Project
func (Project) TableName() string {
	return "projects"
}

// GetCreatedByID возвращает создателя проекта
func (p *Project) GetCreatedByID() uint {
	return p.CreatedByID
}

// GetAssignedToID у проекта нет единственного исполнителя
func (p *Project) GetAssignedToID() *uint {
	return nil
}

// MemberIDs возвращает идентификаторы участников проекта
func (p *Project) MemberIDs() []uint {
	ids := make([]uint, len(p.Members))
	for i, m := range p.Members {
		ids[i] = m.ID
	}
	return ids
}

// HasMember проверяет, является ли пользователь участником проекта
func (p *Project) HasMember(userID uint) bool {
	for _, m := range p.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// IsValidProjectStatus проверяет допустимость статуса проекта
func IsValidProjectStatus(status string) bool {
	for _, s := range ProjectStatuses {
		if s == status {
			return true
		}
	}
	return false
}
