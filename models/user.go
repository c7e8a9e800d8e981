package models

import (
	"time"

	"gorm.io/gorm"
)

// Роли пользователей в системе
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
)

// User представляет пользователя системы
type User struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля
	Name     string `json:"name" gorm:"not null;type:varchar(100)"`
	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Password string `json:"-" gorm:"not null"` // Пароль не возвращается в JSON

	// Роль: admin, manager, member. Меняется только администратором.
	Role     string `json:"role" gorm:"default:'member';type:varchar(20)"`
	IsActive bool   `json:"is_active" gorm:"default:true"`

	// Контакт для Telegram уведомлений
	TelegramChatID string `json:"telegram_chat_id" gorm:"type:varchar(50)"`
}

// TableName задает имя таблицы для модели User
func (User) TableName() string {
	return "users"
}

// IsAdmin проверяет, является ли пользователь администратором
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsManager проверяет, является ли пользователь менеджером
func (u *User) IsManager() bool {
	return u.Role == RoleManager
}

// IsStaff проверяет, имеет ли пользователь расширенный доступ (admin или manager)
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleManager
}

// IsValidRole проверяет допустимость роли
func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleManager || role == RoleMember
}
