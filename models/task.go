package models

import (
	"time"

	"gorm.io/gorm"
)

// Статусы задачи
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
)

// Приоритеты задачи
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
	TaskPriorityUrgent = "urgent"
)

var (
	// TaskStatuses все допустимые статусы задачи
	TaskStatuses = []string{TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted}
	// TaskPriorities все допустимые приоритеты задачи
	TaskPriorities = []string{TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent}
)

// Task представляет задачу, привязанную к лиду, клиенту или проекту
type Task struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля
	Title       string     `json:"title" gorm:"not null;type:varchar(200)"`
	Description string     `json:"description" gorm:"type:text"`
	Status      string     `json:"status" gorm:"default:'pending';type:varchar(20);index"`
	Priority    string     `json:"priority" gorm:"default:'medium';type:varchar(20)"`
	DueDate     *time.Time `json:"due_date"`

	// Полиморфная связь: Lead | Client | Project
	TaskableType string `json:"taskable_type" gorm:"not null;type:varchar(30)"`
	TaskableID   uint   `json:"taskable_id" gorm:"not null"`

	// Владение и назначение
	CreatedByID  uint  `json:"created_by_id" gorm:"not null;index"`
	CreatedBy    *User `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
	AssignedToID *uint `json:"assigned_to_id" gorm:"index"`
	AssignedTo   *User `json:"assigned_to,omitempty" gorm:"foreignKey:AssignedToID"`
}

// TableName задает имя таблицы для модели Task
func (Task) TableName() string {
	return "tasks"
}

// GetCreatedByID возвращает создателя задачи
func (t *Task) GetCreatedByID() uint {
	return t.CreatedByID
}

// GetAssignedToID возвращает назначенного исполнителя
func (t *Task) GetAssignedToID() *uint {
	return t.AssignedToID
}

// IsValidTaskStatus проверяет допустимость статуса задачи
func IsValidTaskStatus(status string) bool {
	for _, s := range TaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsValidTaskPriority проверяет допустимость приоритета задачи
func IsValidTaskPriority(priority string) bool {
	for _, p := range TaskPriorities {
		if p == priority {
			return true
		}
	}
	return false
}
