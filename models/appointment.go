package models

import (
	"time"

	"gorm.io/gorm"
)

// Статусы встречи
const (
	AppointmentStatusPending   = "pending"
	AppointmentStatusConfirmed = "confirmed"
	AppointmentStatusCancelled = "cancelled"
)

// AppointmentStatuses все допустимые статусы встречи
var AppointmentStatuses = []string{AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusCancelled}

// Appointment представляет встречу, привязанную к лиду, клиенту или проекту
type Appointment struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля
	Title       string    `json:"title" gorm:"not null;type:varchar(200)"`
	Description string    `json:"description" gorm:"type:text"`
	Date        time.Time `json:"date" gorm:"not null;index"`
	StartTime   string    `json:"start_time" gorm:"type:varchar(5)"` // формат 15:04
	EndTime     string    `json:"end_time" gorm:"type:varchar(5)"`
	Status      string    `json:"status" gorm:"default:'pending';type:varchar(20);index"`

	// Отметка отправленного напоминания, чтобы не рассылать его повторно
	ReminderSentAt *time.Time `json:"reminder_sent_at" gorm:"index"`

	// Полиморфная связь: Lead | Client | Project
	AppointableType string `json:"appointable_type" gorm:"not null;type:varchar(30)"`
	AppointableID   uint   `json:"appointable_id" gorm:"not null"`

	// Владение
	CreatedByID uint  `json:"created_by_id" gorm:"not null;index"`
	CreatedBy   *User `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`

	// Участники встречи
	Attendees []User `json:"attendees,omitempty" gorm:"many2many:appointment_attendees;"`
}

// TableName задает имя таблицы для модели Appointment
func (Appointment) TableName() string {
	return "appointments"
}

// GetCreatedByID возвращает создателя встречи
func (a *Appointment) GetCreatedByID() uint {
	return a.CreatedByID
}

// GetAssignedToID у встречи нет назначенного исполнителя
func (a *Appointment) GetAssignedToID() *uint {
	return nil
}

// MemberIDs возвращает идентификаторы участников встречи
func (a *Appointment) MemberIDs() []uint {
	ids := make([]uint, len(a.Attendees))
	for i, u := range a.Attendees {
		ids[i] = u.ID
	}
	return ids
}

// HasAttendee проверяет, является ли пользователь участником встречи
func (a *Appointment) HasAttendee(userID uint) bool {
	for _, u := range a.Attendees {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// IsValidAppointmentStatus проверяет допустимость статуса встречи
func IsValidAppointmentStatus(status string) bool {
	for _, s := range AppointmentStatuses {
		if s == status {
			return true
		}
	}
	return false
}
