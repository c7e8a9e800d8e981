package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"backend_crm/models"

	"gorm.io/gorm"
)

// LeadTransition переход статуса лида
type LeadTransition struct {
	From string
	To   string
}

// Эффекты переходов статусов
const (
	EffectConvert = "convert"
)

// leadTransitionEffects таблица переходов с побочными эффектами.
// Конвертация привязана к явному переходу в qualified, а не спрятана
// в обобщенном обработчике изменения полей: и явный endpoint конвертации,
// и обычное обновление статуса идут через эту таблицу.
var leadTransitionEffects = map[LeadTransition][]string{
	{models.LeadStatusNew, models.LeadStatusQualified}:       {EffectConvert},
	{models.LeadStatusContacted, models.LeadStatusQualified}: {EffectConvert},
	{models.LeadStatusLost, models.LeadStatusQualified}:      {EffectConvert},
}

// EffectsForTransition возвращает эффекты перехода статуса лида
func EffectsForTransition(from, to string) []string {
	return leadTransitionEffects[LeadTransition{From: from, To: to}]
}

// TransitionTriggersConversion проверяет, запускает ли переход конвертацию
func TransitionTriggersConversion(from, to string) bool {
	for _, effect := range EffectsForTransition(from, to) {
		if effect == EffectConvert {
			return true
		}
	}
	return false
}

// ConversionService выполняет конвертацию лида в клиента
type ConversionService struct {
	db            *gorm.DB
	notifications *NotificationService
	activities    *ActivityService
}

// NewConversionService создает новый экземпляр ConversionService
func NewConversionService(db *gorm.DB, notifications *NotificationService, activities *ActivityService) *ConversionService {
	return &ConversionService{db: db, notifications: notifications, activities: activities}
}

// Convert конвертирует лид в клиента в одной транзакции.
// Лид переводится в статус qualified, создается клиент с копией контактных
// данных; назначение наследуется при inheritAssignment. Повторная конвертация
// возвращает ErrLeadAlreadyConverted: предварительная проверка отсекает
// обычный случай, а гонку конкурентных вызовов разрешает уникальный индекс
// на clients.lead_id - конфликт записи отображается в ту же ошибку.
// Лид сохраняет свой ID и не удаляется.
func (cs *ConversionService) Convert(lead *models.Lead, actor *models.User, inheritAssignment bool) (*models.Client, error) {
	var client *models.Client

	err := cs.db.Transaction(func(tx *gorm.DB) error {
		// Проверка: лид уже сконвертирован?
		var existing models.Client
		err := tx.Where("lead_id = ?", lead.ID).First(&existing).Error
		if err == nil {
			return ErrLeadAlreadyConverted
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("ошибка проверки существующего клиента: %w", err)
		}

		// Переводим лид в qualified в той же транзакции
		if lead.Status != models.LeadStatusQualified {
			if err := tx.Model(lead).Update("status", models.LeadStatusQualified).Error; err != nil {
				return fmt.Errorf("ошибка обновления статуса лида: %w", err)
			}
			lead.Status = models.LeadStatusQualified
		}

		newClient := models.Client{
			Name:        lead.Name,
			Email:       lead.Email,
			Phone:       lead.Phone,
			Company:     lead.Company,
			LeadID:      &lead.ID,
			CreatedByID: actor.ID,
		}
		if inheritAssignment {
			newClient.AssignedToID = lead.AssignedToID
		}

		if err := tx.Create(&newClient).Error; err != nil {
			if isUniqueViolation(err) {
				// Конкурентная конвертация успела раньше
				return ErrLeadAlreadyConverted
			}
			return fmt.Errorf("ошибка создания клиента: %w", err)
		}

		client = &newClient
		return nil
	})

	if err != nil {
		return nil, err
	}

	// Журнал и уведомления - после фиксации транзакции
	if cs.activities != nil {
		cs.activities.Record(actor, models.ActivityActionConverted, models.EntityTypeLead, lead.ID,
			fmt.Sprintf("Лид «%s» сконвертирован в клиента #%d", lead.Name, client.ID), nil, client)
	}

	if cs.notifications != nil {
		if err := cs.notifications.NotifyLeadConverted(lead, client, actor); err != nil {
			// Сбой уведомлений не откатывает конвертацию
			log.Printf("Ошибка отправки уведомлений о конвертации лида %d: %v", lead.ID, err)
		}
	}

	return client, nil
}

// isUniqueViolation распознает нарушение уникального ограничения
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique") ||
		strings.Contains(msg, "constraint")
}
