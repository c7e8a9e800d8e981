package models

import (
	"time"
)

// Статусы доставки уведомления
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
	NotificationStatusRetry   = "retry"
)

// Notification представляет персистентное уведомление пользователя
// (канал "database"). Побочные каналы (email, telegram) отправляются
// асинхронно и фиксируют статус доставки в этой же записи.
type Notification struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	// Получатель
	UserID uint  `json:"user_id" gorm:"not null;index"`
	User   *User `json:"user,omitempty" gorm:"foreignKey:UserID"`

	// Полезная нагрузка: тег типа, сообщение, ссылка и метаданные события.
	// Фронтенд сопоставляет обработчики по полю type.
	Type     string `json:"type" gorm:"not null;type:varchar(50);index"`
	Message  string `json:"message" gorm:"not null;type:text"`
	URL      string `json:"url" gorm:"type:varchar(300)"`
	Metadata string `json:"metadata" gorm:"type:text"` // JSON с полями события

	// Связанная сущность
	RelatedType string `json:"related_type" gorm:"type:varchar(30)"`
	RelatedID   *uint  `json:"related_id"`

	// Состояние доставки по побочным каналам
	Status       string     `json:"status" gorm:"default:'pending';type:varchar(20);index"`
	SentAt       *time.Time `json:"sent_at"`
	ErrorMessage string     `json:"error_message" gorm:"type:text"`
	AttemptCount int        `json:"attempt_count" gorm:"default:0"`
	NextRetryAt  *time.Time `json:"next_retry_at"`

	// Отметка о прочтении в интерфейсе
	ReadAt *time.Time `json:"read_at"`
}

// TableName задает имя таблицы для модели Notification
func (Notification) TableName() string {
	return "notifications"
}

// IsRead проверяет, прочитано ли уведомление
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
