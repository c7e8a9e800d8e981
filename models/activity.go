package models

import (
	"time"
)

// Действия журнала активности
const (
	ActivityActionCreated   = "created"
	ActivityActionUpdated   = "updated"
	ActivityActionDeleted   = "deleted"
	ActivityActionConverted = "converted"
	ActivityActionAssigned  = "assigned"
	ActivityActionPayment   = "payment"
)

// Activity представляет запись журнала действий.
// Журнал только пополняется: записи никогда не обновляются,
// удалять их может только администратор.
type Activity struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	// Инициатор действия; NULL для системных событий
	CauserID *uint `json:"causer_id" gorm:"index"`
	Causer   *User `json:"causer,omitempty" gorm:"foreignKey:CauserID"`

	// Действие и объект
	Action      string `json:"action" gorm:"not null;type:varchar(30);index"`
	SubjectType string `json:"subject_type" gorm:"not null;type:varchar(30)"`
	SubjectID   uint   `json:"subject_id" gorm:"not null"`
	Description string `json:"description" gorm:"type:text"`

	// Снимок изменений до/после в JSON
	Changes string `json:"changes" gorm:"type:text"`
}

// TableName задает имя таблицы для модели Activity
func (Activity) TableName() string {
	return "activities"
}
