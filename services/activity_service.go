package services

import (
	"encoding/json"
	"log"

	"backend_crm/models"

	"gorm.io/gorm"
)

// ActivityService ведет журнал действий над сущностями.
// Записи только добавляются; сбой записи журнала логируется,
// но не прерывает основную операцию.
type ActivityService struct {
	db *gorm.DB
}

// NewActivityService создает новый сервис журнала действий
func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db}
}

// activityChanges снимок значений до и после изменения
type activityChanges struct {
	Old interface{} `json:"old,omitempty"`
	New interface{} `json:"new,omitempty"`
}

// Record записывает действие в журнал
func (as *ActivityService) Record(causer *models.User, action, subjectType string, subjectID uint, description string, oldValues, newValues interface{}) error {
	activity := models.Activity{
		Action:      action,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Description: description,
	}

	if causer != nil {
		activity.CauserID = &causer.ID
	}

	// Сериализуем снимок изменений
	if oldValues != nil || newValues != nil {
		if changesJSON, err := json.Marshal(activityChanges{Old: oldValues, New: newValues}); err == nil {
			activity.Changes = string(changesJSON)
		}
	}

	if err := as.db.Create(&activity).Error; err != nil {
		log.Printf("Ошибка записи в журнал действий (%s %s #%d): %v", action, subjectType, subjectID, err)
		return err
	}

	return nil
}

// RecordCreated фиксирует создание сущности
func (as *ActivityService) RecordCreated(causer *models.User, subjectType string, subjectID uint, description string, newValues interface{}) error {
	return as.Record(causer, models.ActivityActionCreated, subjectType, subjectID, description, nil, newValues)
}

// RecordUpdated фиксирует обновление сущности
func (as *ActivityService) RecordUpdated(causer *models.User, subjectType string, subjectID uint, description string, oldValues, newValues interface{}) error {
	return as.Record(causer, models.ActivityActionUpdated, subjectType, subjectID, description, oldValues, newValues)
}

// RecordDeleted фиксирует удаление сущности
func (as *ActivityService) RecordDeleted(causer *models.User, subjectType string, subjectID uint, description string, oldValues interface{}) error {
	return as.Record(causer, models.ActivityActionDeleted, subjectType, subjectID, description, oldValues, nil)
}
