package services

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"backend_crm/config"
	"backend_crm/models"

	"gorm.io/gorm"
)

// Event представляет доменное событие, порождающее уведомления
type Event string

const (
	EventAppointmentCreated  Event = "appointment.created"
	EventAppointmentUpdated  Event = "appointment.updated"
	EventAppointmentReminder Event = "appointment.reminder"
	EventLeadAssigned        Event = "lead.assigned"
	EventTaskAssigned        Event = "task.assigned"
	EventProjectAssigned     Event = "project.assigned"
	EventNoteCreated         Event = "note.created"
	EventLeadConverted       Event = "lead.converted"
	EventInvoiceOverdue      Event = "invoice.overdue"
)

// RecipientStrategy именованная стратегия вычисления получателей
type RecipientStrategy string

const (
	StrategyRelated        RecipientStrategy = "related"         // Назначенный по лиду/клиенту или участники проекта
	StrategySingleAssignee RecipientStrategy = "single-assignee" // Только новый исполнитель
	StrategyAllAdmins      RecipientStrategy = "all-admins"      // Все администраторы
	StrategyAllUsers       RecipientStrategy = "all-users"       // Широковещательная рассылка
	StrategyCreator        RecipientStrategy = "creator"         // Создатель сущности
)

// recipientStrategies выбирает стратегии получателей по типу события.
// Таблица вместо разрозненного кода в каждом обработчике: добавление
// события - это строка здесь, а не новая ветка условий в сервисе.
var recipientStrategies = map[Event][]RecipientStrategy{
	EventAppointmentCreated:  {StrategyRelated},
	EventAppointmentUpdated:  {StrategyRelated, StrategyAllAdmins},
	EventAppointmentReminder: {StrategyCreator, StrategyRelated, StrategyAllAdmins},
	EventLeadAssigned:        {StrategySingleAssignee},
	EventTaskAssigned:        {StrategySingleAssignee},
	EventProjectAssigned:     {StrategySingleAssignee},
	EventNoteCreated:         {StrategyAllUsers},
	EventLeadConverted:       {StrategyAllAdmins},
	EventInvoiceOverdue:      {StrategyAllAdmins},
}

// eventChannels статическая декларация каналов доставки по типу события.
// Канал database подразумевается всегда (строка в таблице notifications).
var eventChannels = map[Event][]string{
	EventAppointmentCreated:  {"email"},
	EventAppointmentUpdated:  {"email"},
	EventAppointmentReminder: {"email", "telegram"},
	EventLeadAssigned:        {"email"},
	EventTaskAssigned:        {"email"},
	EventProjectAssigned:     {"email"},
	EventNoteCreated:         {},
	EventLeadConverted:       {"email", "telegram"},
	EventInvoiceOverdue:      {"email"},
}

// NotificationPayload полезная нагрузка уведомления.
// Потребители (фронтенд) сопоставляют обработчики по полю Type.
type NotificationPayload struct {
	Type     string                 `json:"type"`
	Message  string                 `json:"message"`
	URL      string                 `json:"url"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NotificationService вычисляет получателей доменных событий и
// рассылает уведомления по настроенным каналам
type NotificationService struct {
	db       *gorm.DB
	cfg      *config.Config
	telegram *TelegramClient
}

// NewNotificationService создает новый экземпляр NotificationService.
// Telegram клиент может быть nil - канал тогда пропускается.
func NewNotificationService(db *gorm.DB, cfg *config.Config, telegram *TelegramClient) *NotificationService {
	return &NotificationService{db: db, cfg: cfg, telegram: telegram}
}

// RecipientsFor вычисляет множество получателей события без побочных эффектов.
// Результат дедуплицирован; действующий пользователь исключается из
// результата, кроме напоминаний и широковещательных заметок.
func (ns *NotificationService) RecipientsFor(event Event, entity interface{}, actor *models.User) ([]models.User, error) {
	strategies, ok := recipientStrategies[event]
	if !ok {
		return nil, fmt.Errorf("неизвестное событие: %s", event)
	}

	var recipients []models.User
	for _, strategy := range strategies {
		users, err := ns.applyStrategy(strategy, entity)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, users...)
	}

	// Встречи при создании не беспокоят администраторов;
	// при обновлении администраторы, наоборот, включаются.
	if event == EventAppointmentCreated {
		recipients = excludeRole(recipients, models.RoleAdmin)
	}

	// Напоминания уходят всем причастным независимо от инициатора,
	// широковещательная заметка - вообще всем пользователям.
	if actor != nil && event != EventAppointmentReminder && event != EventNoteCreated {
		recipients = excludeUser(recipients, actor.ID)
	}

	return uniqueUsers(recipients), nil
}

// RemindersFor вычисляет получателей напоминания о встрече:
// создатель + связанные пользователи + все администраторы, без исключения инициатора
func (ns *NotificationService) RemindersFor(appointment *models.Appointment) ([]models.User, error) {
	return ns.RecipientsFor(EventAppointmentReminder, appointment, nil)
}

// applyStrategy выполняет одну именованную стратегию
func (ns *NotificationService) applyStrategy(strategy RecipientStrategy, entity interface{}) ([]models.User, error) {
	switch strategy {
	case StrategyRelated:
		appointment, ok := entity.(*models.Appointment)
		if !ok {
			return nil, fmt.Errorf("стратегия related применима только к встречам")
		}
		return ns.relatedRecipients(appointment.AppointableType, appointment.AppointableID)
	case StrategyAllAdmins:
		return ns.usersByRole(models.RoleAdmin)
	case StrategyAllUsers:
		var users []models.User
		err := ns.db.Find(&users).Error
		return users, err
	case StrategyCreator:
		appointment, ok := entity.(*models.Appointment)
		if !ok {
			return nil, fmt.Errorf("стратегия creator применима только к встречам")
		}
		var creator models.User
		if err := ns.db.First(&creator, appointment.CreatedByID).Error; err != nil {
			return nil, err
		}
		return []models.User{creator}, nil
	case StrategySingleAssignee:
		// Новый исполнитель известен только в момент назначения,
		// вычисляется в NotifyAssignment
		return nil, nil
	}
	return nil, fmt.Errorf("неизвестная стратегия: %s", strategy)
}

// relatedRecipients возвращает пользователей, связанных с полиморфной целью:
// назначенного по лиду/клиенту или всех участников проекта
func (ns *NotificationService) relatedRecipients(appointableType string, appointableID uint) ([]models.User, error) {
	switch appointableType {
	case models.EntityTypeLead:
		var lead models.Lead
		if err := ns.db.Preload("AssignedTo").First(&lead, appointableID).Error; err != nil {
			return nil, err
		}
		if lead.AssignedTo != nil {
			return []models.User{*lead.AssignedTo}, nil
		}
		return nil, nil
	case models.EntityTypeClient:
		var client models.Client
		if err := ns.db.Preload("AssignedTo").First(&client, appointableID).Error; err != nil {
			return nil, err
		}
		if client.AssignedTo != nil {
			return []models.User{*client.AssignedTo}, nil
		}
		return nil, nil
	case models.EntityTypeProject:
		var project models.Project
		if err := ns.db.Preload("Members").First(&project, appointableID).Error; err != nil {
			return nil, err
		}
		return project.Members, nil
	}
	return nil, nil
}

// usersByRole возвращает всех активных пользователей с указанной ролью
func (ns *NotificationService) usersByRole(role string) ([]models.User, error) {
	var users []models.User
	err := ns.db.Where("role = ?", role).Find(&users).Error
	return users, err
}

// excludeRole убирает из списка пользователей с указанной ролью
func excludeRole(users []models.User, role string) []models.User {
	filtered := users[:0]
	for _, u := range users {
		if u.Role != role {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

// excludeUser убирает из списка пользователя с указанным ID
func excludeUser(users []models.User, userID uint) []models.User {
	filtered := users[:0]
	for _, u := range users {
		if u.ID != userID {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

// uniqueUsers дедуплицирует список пользователей по ID.
// Пользователь, достижимый двумя путями (например, назначенный и
// одновременно администратор), получает ровно одно уведомление.
func uniqueUsers(users []models.User) []models.User {
	seen := make(map[uint]bool, len(users))
	result := make([]models.User, 0, len(users))
	for _, u := range users {
		if !seen[u.ID] {
			seen[u.ID] = true
			result = append(result, u)
		}
	}
	return result
}

// Notify вычисляет получателей события и рассылает им уведомление
func (ns *NotificationService) Notify(event Event, entity interface{}, actor *models.User, payload NotificationPayload, relatedType string, relatedID uint) error {
	recipients, err := ns.RecipientsFor(event, entity, actor)
	if err != nil {
		return err
	}
	return ns.Dispatch(event, recipients, payload, relatedType, relatedID)
}

// Dispatch создает по одной записи уведомления на получателя и отправляет
// по побочным каналам согласно декларации eventChannels. Сбои каналов
// логируются и помечаются для повторной отправки, но не возвращаются
// вызывающей стороне.
func (ns *NotificationService) Dispatch(event Event, recipients []models.User, payload NotificationPayload, relatedType string, relatedID uint) error {
	metadataJSON := ""
	if payload.Metadata != nil {
		if data, err := json.Marshal(payload.Metadata); err == nil {
			metadataJSON = string(data)
		}
	}

	channels := eventChannels[event]

	for _, recipient := range recipients {
		notification := models.Notification{
			UserID:      recipient.ID,
			Type:        payload.Type,
			Message:     payload.Message,
			URL:         payload.URL,
			Metadata:    metadataJSON,
			RelatedType: relatedType,
			RelatedID:   &relatedID,
			Status:      models.NotificationStatusPending,
		}

		if err := ns.db.Create(&notification).Error; err != nil {
			log.Printf("Ошибка создания уведомления для пользователя %d: %v", recipient.ID, err)
			continue
		}

		ns.deliver(&notification, &recipient, channels)
	}

	return nil
}

// deliver отправляет уведомление по побочным каналам и обновляет статус доставки
func (ns *NotificationService) deliver(notification *models.Notification, recipient *models.User, channels []string) {
	var deliveryErr error

	for _, channel := range channels {
		switch channel {
		case "email":
			if ns.cfg != nil && ns.cfg.SMTP.Enabled && recipient.Email != "" {
				if err := ns.sendEmail(recipient.Email, notification.Type, notification.Message); err != nil {
					log.Printf("Ошибка отправки email пользователю %d: %v", recipient.ID, err)
					deliveryErr = err
				}
			}
		case "telegram":
			if ns.telegram != nil && recipient.TelegramChatID != "" {
				if err := ns.telegram.SendMessage(recipient.TelegramChatID, notification.Message); err != nil {
					log.Printf("Ошибка отправки Telegram пользователю %d: %v", recipient.ID, err)
					deliveryErr = err
				}
			}
		}
	}

	now := time.Now()
	if deliveryErr != nil {
		notification.Status = models.NotificationStatusRetry
		notification.ErrorMessage = deliveryErr.Error()
		notification.AttemptCount = 1
		nextRetry := now.Add(5 * time.Minute)
		notification.NextRetryAt = &nextRetry
	} else {
		notification.Status = models.NotificationStatusSent
		notification.SentAt = &now
	}

	ns.db.Save(notification)
}

// sendEmail отправляет email уведомление через SMTP
func (ns *NotificationService) sendEmail(recipient, subject, message string) error {
	settings := ns.cfg.SMTP
	auth := smtp.PlainAuth("", settings.Username, settings.Password, settings.Host)

	msg := fmt.Sprintf("From: %s <%s>\r\n", settings.FromName, settings.FromEmail)
	msg += fmt.Sprintf("To: %s\r\n", recipient)
	msg += fmt.Sprintf("Subject: %s\r\n", subject)
	msg += "Content-Type: text/html; charset=UTF-8\r\n"
	msg += "\r\n"
	msg += message

	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)

	if settings.Port == 465 {
		// Неявный TLS
		tlsConfig := &tls.Config{ServerName: settings.Host}

		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("ошибка TLS подключения: %w", err)
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, settings.Host)
		if err != nil {
			return fmt.Errorf("ошибка создания SMTP клиента: %w", err)
		}
		defer client.Quit()

		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("ошибка аутентификации: %w", err)
		}
		if err = client.Mail(settings.FromEmail); err != nil {
			return fmt.Errorf("ошибка установки отправителя: %w", err)
		}
		if err = client.Rcpt(recipient); err != nil {
			return fmt.Errorf("ошибка установки получателя: %w", err)
		}

		w, err := client.Data()
		if err != nil {
			return fmt.Errorf("ошибка получения writer: %w", err)
		}
		if _, err = w.Write([]byte(msg)); err != nil {
			return fmt.Errorf("ошибка записи сообщения: %w", err)
		}
		return w.Close()
	}

	if err := smtp.SendMail(addr, auth, settings.FromEmail, []string{recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("ошибка отправки email: %w", err)
	}
	return nil
}

// AssignmentRecipient возвращает ID получателя уведомления о назначении.
// Пустое переназначение (новый == старый) и самоназначение молча
// пропускаются - это не ошибки.
func AssignmentRecipient(newAssigneeID, prevAssigneeID *uint, actor *models.User) *uint {
	if newAssigneeID == nil {
		return nil
	}
	if prevAssigneeID != nil && *prevAssigneeID == *newAssigneeID {
		return nil
	}
	if actor != nil && actor.ID == *newAssigneeID {
		return nil
	}
	return newAssigneeID
}

// NotifyAssignment уведомляет нового исполнителя о назначении
func (ns *NotificationService) NotifyAssignment(event Event, entityKind string, entityID uint, entityTitle string, newAssigneeID, prevAssigneeID *uint, actor *models.User) error {
	recipientID := AssignmentRecipient(newAssigneeID, prevAssigneeID, actor)
	if recipientID == nil {
		return nil
	}

	var recipient models.User
	if err := ns.db.First(&recipient, *recipientID).Error; err != nil {
		return err
	}

	payload := NotificationPayload{
		Type:    string(event),
		Message: fmt.Sprintf("Вам назначено: %s", entityTitle),
		URL:     ns.entityURL(entityKind, entityID),
		Metadata: map[string]interface{}{
			"entity_id": entityID,
		},
	}

	return ns.Dispatch(event, []models.User{recipient}, payload, entityKind, entityID)
}

// NotifyLeadConverted уведомляет администраторов и прежнего исполнителя
// о конвертации лида в клиента
func (ns *NotificationService) NotifyLeadConverted(lead *models.Lead, client *models.Client, actor *models.User) error {
	recipients, err := ns.usersByRole(models.RoleAdmin)
	if err != nil {
		return err
	}

	// Прежний исполнитель лида тоже получает уведомление
	if lead.AssignedToID != nil {
		var assignee models.User
		if err := ns.db.First(&assignee, *lead.AssignedToID).Error; err == nil {
			recipients = append(recipients, assignee)
		}
	}

	if actor != nil {
		recipients = excludeUser(recipients, actor.ID)
	}
	recipients = uniqueUsers(recipients)

	payload := NotificationPayload{
		Type:    string(EventLeadConverted),
		Message: fmt.Sprintf("Лид «%s» сконвертирован в клиента", lead.Name),
		URL:     ns.entityURL(models.EntityTypeClient, client.ID),
		Metadata: map[string]interface{}{
			"lead_id":   lead.ID,
			"client_id": client.ID,
		},
	}

	return ns.Dispatch(EventLeadConverted, recipients, payload, models.EntityTypeClient, client.ID)
}

// entityURL строит ссылку на сущность для перехода из уведомления
func (ns *NotificationService) entityURL(kind string, id uint) string {
	base := ""
	if ns.cfg != nil {
		base = ns.cfg.Server.BaseURL
	}
	return fmt.Sprintf("%s/%ss/%d", base, strings.ToLower(models.ShortenEntityType(kind)), id)
}

// ProcessRetryNotifications повторно отправляет уведомления со статусом retry.
// Вызывается планировщиком; после трех неудачных попыток уведомление
// помечается как failed.
func (ns *NotificationService) ProcessRetryNotifications() error {
	var notifications []models.Notification
	err := ns.db.Where("status = ? AND next_retry_at <= ?", models.NotificationStatusRetry, time.Now()).
		Preload("User").Find(&notifications).Error
	if err != nil {
		return fmt.Errorf("ошибка получения уведомлений для повтора: %w", err)
	}

	for _, notification := range notifications {
		if notification.AttemptCount >= 3 {
			notification.Status = models.NotificationStatusFailed
			ns.db.Save(&notification)
			continue
		}

		var deliveryErr error
		if ns.cfg != nil && ns.cfg.SMTP.Enabled && notification.User != nil && notification.User.Email != "" {
			deliveryErr = ns.sendEmail(notification.User.Email, notification.Type, notification.Message)
		}

		notification.AttemptCount++
		if deliveryErr != nil {
			notification.ErrorMessage = deliveryErr.Error()
			if notification.AttemptCount >= 3 {
				notification.Status = models.NotificationStatusFailed
			} else {
				nextRetry := time.Now().Add(time.Duration(notification.AttemptCount*5) * time.Minute)
				notification.NextRetryAt = &nextRetry
			}
		} else {
			now := time.Now()
			notification.Status = models.NotificationStatusSent
			notification.SentAt = &now
			notification.ErrorMessage = ""
		}

		ns.db.Save(&notification)
	}

	return nil
}
