package models

import (
	"time"

	"gorm.io/gorm"
)

// Note представляет заметку к лиду или клиенту
type Note struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Содержимое заметки
	Content string `json:"content" gorm:"not null;type:text"`

	// Автор
	UserID uint  `json:"user_id" gorm:"not null;index"`
	User   *User `json:"user,omitempty" gorm:"foreignKey:UserID"`

	// Полиморфная связь: Lead | Client (проекты недопустимы)
	NoteableType string `json:"noteable_type" gorm:"not null;type:varchar(30)"`
	NoteableID   uint   `json:"noteable_id" gorm:"not null"`
}

// TableName задает имя таблицы для модели Note
func (Note) TableName() string {
	return "notes"
}
