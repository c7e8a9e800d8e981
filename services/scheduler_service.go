package services

import (
	"fmt"
	"log"
	"time"

	"backend_crm/models"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// SchedulerService выполняет фоновые задачи по расписанию:
// напоминания о встречах, пометку просроченных счетов и повторные
// попытки доставки уведомлений.
type SchedulerService struct {
	db            *gorm.DB
	notifications *NotificationService
	invoices      *InvoiceService
	cron          *cron.Cron
}

// NewSchedulerService создает новый экземпляр SchedulerService
func NewSchedulerService(db *gorm.DB, notifications *NotificationService, invoices *InvoiceService) *SchedulerService {
	return &SchedulerService{
		db:            db,
		notifications: notifications,
		invoices:      invoices,
		cron:          cron.New(),
	}
}

// Start регистрирует задачи и запускает планировщик
func (ss *SchedulerService) Start() error {
	// Напоминания о встречах - каждый час
	if _, err := ss.cron.AddFunc("0 * * * *", func() {
		if err := ss.SendAppointmentReminders(); err != nil {
			log.Printf("Ошибка отправки напоминаний о встречах: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to add reminder job: %w", err)
	}

	// Просроченные счета - ежедневно в 6 утра
	if _, err := ss.cron.AddFunc("0 6 * * *", func() {
		if err := ss.MarkOverdueInvoices(); err != nil {
			log.Printf("Ошибка пометки просроченных счетов: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to add overdue job: %w", err)
	}

	// Повторная доставка уведомлений - каждые 10 минут
	if _, err := ss.cron.AddFunc("*/10 * * * *", func() {
		if err := ss.notifications.ProcessRetryNotifications(); err != nil {
			log.Printf("Ошибка повторной доставки уведомлений: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to add retry job: %w", err)
	}

	ss.cron.Start()
	log.Println("Планировщик фоновых задач запущен")
	return nil
}

// Stop останавливает планировщик
func (ss *SchedulerService) Stop() {
	ss.cron.Stop()
	log.Println("Планировщик фоновых задач остановлен")
}

// SendAppointmentReminders рассылает напоминания о встречах, начинающихся
// в ближайшие 24 часа. Напоминание идет и создателю, и назначенному
// исполнителю связанной сущности без исключения актора: актора здесь нет.
// Повторные напоминания по одной встрече отсекаются флагом reminder_sent_at.
func (ss *SchedulerService) SendAppointmentReminders() error {
	now := time.Now()
	windowEnd := now.Add(24 * time.Hour)

	var appointments []models.Appointment
	err := ss.db.Preload("Attendees").
		Where("status IN ? AND date >= ? AND date <= ? AND reminder_sent_at IS NULL",
			[]string{models.AppointmentStatusPending, models.AppointmentStatusConfirmed}, now, windowEnd).
		Find(&appointments).Error
	if err != nil {
		return fmt.Errorf("ошибка выборки встреч для напоминаний: %w", err)
	}

	for i := range appointments {
		appointment := &appointments[i]

		recipients, err := ss.notifications.RemindersFor(appointment)
		if err != nil {
			log.Printf("Ошибка вычисления получателей напоминания по встрече %d: %v", appointment.ID, err)
			continue
		}

		payload := NotificationPayload{
			Type:    string(EventAppointmentReminder),
			Message: fmt.Sprintf("Напоминание: встреча «%s» %s в %s", appointment.Title, appointment.Date.Format("02.01.2006"), appointment.StartTime),
			URL:     ss.notifications.entityURL(models.EntityTypeAppointment, appointment.ID),
		}

		if err := ss.notifications.Dispatch(EventAppointmentReminder, recipients, payload, models.EntityTypeAppointment, appointment.ID); err != nil {
			log.Printf("Ошибка рассылки напоминания по встрече %d: %v", appointment.ID, err)
			continue
		}

		if err := ss.db.Model(appointment).Update("reminder_sent_at", now).Error; err != nil {
			log.Printf("Ошибка пометки напоминания по встрече %d: %v", appointment.ID, err)
		}
	}

	return nil
}

// MarkOverdueInvoices помечает просроченные счета и уведомляет администраторов.
// Кандидаты выбираются до пометки: уведомление уходит один раз при переходе
// в overdue, а не при каждом проходе планировщика.
func (ss *SchedulerService) MarkOverdueInvoices() error {
	var overdue []models.Invoice
	err := ss.db.Where("status IN ? AND due_date < ?",
		[]string{models.InvoiceStatusSent, models.InvoiceStatusPartiallyPaid}, time.Now()).
		Find(&overdue).Error
	if err != nil {
		return fmt.Errorf("ошибка выборки просроченных счетов: %w", err)
	}

	count, err := ss.invoices.MarkOverdueInvoices()
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	log.Printf("Помечено просроченных счетов: %d", count)

	for i := range overdue {
		invoice := &overdue[i]
		payload := NotificationPayload{
			Type:    string(EventInvoiceOverdue),
			Message: fmt.Sprintf("Счет %s просрочен, остаток %s", invoice.Number, invoice.GetRemainingAmount().StringFixed(2)),
			URL:     ss.notifications.entityURL(models.EntityTypeInvoice, invoice.ID),
		}
		if err := ss.notifications.Notify(EventInvoiceOverdue, invoice, nil, payload, models.EntityTypeInvoice, invoice.ID); err != nil {
			log.Printf("Ошибка уведомления о просроченном счете %d: %v", invoice.ID, err)
		}
	}

	return nil
}
