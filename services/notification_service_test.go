package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"backend_crm/config"
	"backend_crm/models"
	"backend_crm/testutils"
)

func setupNotificationTest(t *testing.T) (*gorm.DB, *NotificationService) {
	db := testutils.SetupTestDB(t)
	return db, NewNotificationService(db, config.Load(), nil)
}

func recipientIDs(users []models.User) map[uint]bool {
	ids := make(map[uint]bool, len(users))
	for _, u := range users {
		ids[u.ID] = true
	}
	return ids
}

func TestRecipientsFor_AppointmentCreated(t *testing.T) {
	db, ns := setupNotificationTest(t)

	admin := testutils.CreateTestUser(t, db, "admin", models.RoleAdmin)
	manager := testutils.CreateTestUser(t, db, "manager", models.RoleManager)
	assignee := testutils.CreateTestUser(t, db, "assignee", models.RoleMember)

	lead := testutils.CreateTestLead(t, db, "acme", manager, assignee)

	appointment := &models.Appointment{
		Title:           "Демо продукта",
		AppointableType: models.EntityTypeLead,
		AppointableID:   lead.ID,
		CreatedByID:     manager.ID,
	}
	require.NoError(t, db.Create(appointment).Error)

	t.Run("Администраторы исключаются при создании встречи", func(t *testing.T) {
		recipients, err := ns.RecipientsFor(EventAppointmentCreated, appointment, manager)
		require.NoError(t, err)

		ids := recipientIDs(recipients)
		assert.True(t, ids[assignee.ID], "назначенный по лиду должен получить уведомление")
		assert.False(t, ids[admin.ID], "администратор не получает уведомление о создании")
	})

	t.Run("Инициатор исключается из получателей", func(t *testing.T) {
		// Встреча по лиду, назначенному на самого инициатора
		selfLead := testutils.CreateTestLead(t, db, "self", manager, manager)
		selfAppointment := &models.Appointment{
			Title:           "Звонок",
			AppointableType: models.EntityTypeLead,
			AppointableID:   selfLead.ID,
			CreatedByID:     manager.ID,
		}
		require.NoError(t, db.Create(selfAppointment).Error)

		recipients, err := ns.RecipientsFor(EventAppointmentCreated, selfAppointment, manager)
		require.NoError(t, err)
		assert.Empty(t, recipients)
	})

	t.Run("При обновлении администраторы включаются и дедуплицируются", func(t *testing.T) {
		recipients, err := ns.RecipientsFor(EventAppointmentUpdated, appointment, assignee)
		require.NoError(t, err)

		ids := recipientIDs(recipients)
		assert.True(t, ids[admin.ID])
		assert.False(t, ids[assignee.ID], "инициатор исключен")
		assert.Len(t, recipients, len(ids), "получатели не дублируются")
	})
}

func TestRecipientsFor_ProjectAppointment(t *testing.T) {
	db, ns := setupNotificationTest(t)

	manager := testutils.CreateTestUser(t, db, "manager", models.RoleManager)
	memberA := testutils.CreateTestUser(t, db, "member-a", models.RoleMember)
	memberB := testutils.CreateTestUser(t, db, "member-b", models.RoleMember)

	project := &models.Project{
		Name:        "Внедрение",
		CreatedByID: manager.ID,
		Members:     []models.User{*memberA, *memberB},
	}
	require.NoError(t, db.Create(project).Error)

	appointment := &models.Appointment{
		Title:           "Планерка",
		AppointableType: models.EntityTypeProject,
		AppointableID:   project.ID,
		CreatedByID:     memberA.ID,
	}
	require.NoError(t, db.Create(appointment).Error)

	recipients, err := ns.RecipientsFor(EventAppointmentCreated, appointment, memberA)
	require.NoError(t, err)

	ids := recipientIDs(recipients)
	assert.True(t, ids[memberB.ID], "участники проекта получают уведомление")
	assert.False(t, ids[memberA.ID], "инициатор исключен")
}

func TestRecipientsFor_NoteBroadcastIncludesActor(t *testing.T) {
	db, ns := setupNotificationTest(t)

	testutils.CreateTestUser(t, db, "admin", models.RoleAdmin)
	author := testutils.CreateTestUser(t, db, "author", models.RoleMember)
	testutils.CreateTestUser(t, db, "colleague", models.RoleMember)

	note := &models.Note{Content: "Важно", UserID: author.ID, NoteableType: models.EntityTypeLead, NoteableID: 1}

	recipients, err := ns.RecipientsFor(EventNoteCreated, note, author)
	require.NoError(t, err)

	var total int64
	db.Model(&models.User{}).Count(&total)

	// Широковещательная рассылка: все пользователи, автор не исключается
	assert.Equal(t, int(total), len(recipients))
	assert.True(t, recipientIDs(recipients)[author.ID])
}

func TestRemindersFor_NoActorExclusion(t *testing.T) {
	db, ns := setupNotificationTest(t)

	admin := testutils.CreateTestUser(t, db, "admin", models.RoleAdmin)
	creator := testutils.CreateTestUser(t, db, "creator", models.RoleMember)
	assignee := testutils.CreateTestUser(t, db, "assignee", models.RoleMember)

	lead := testutils.CreateTestLead(t, db, "acme", creator, assignee)

	appointment := &models.Appointment{
		Title:           "Встреча",
		AppointableType: models.EntityTypeLead,
		AppointableID:   lead.ID,
		CreatedByID:     creator.ID,
	}
	require.NoError(t, db.Create(appointment).Error)

	recipients, err := ns.RemindersFor(appointment)
	require.NoError(t, err)

	ids := recipientIDs(recipients)
	assert.True(t, ids[creator.ID], "создатель получает напоминание")
	assert.True(t, ids[assignee.ID], "назначенный получает напоминание")
	assert.True(t, ids[admin.ID], "администратор получает напоминание")
}

func TestAssignmentRecipient(t *testing.T) {
	actor := &models.User{ID: 1}
	two := uint(2)
	three := uint(3)

	t.Run("Новое назначение возвращает исполнителя", func(t *testing.T) {
		got := AssignmentRecipient(&two, nil, actor)
		require.NotNil(t, got)
		assert.Equal(t, two, *got)
	})

	t.Run("Переназначение на другого возвращает нового", func(t *testing.T) {
		got := AssignmentRecipient(&three, &two, actor)
		require.NotNil(t, got)
		assert.Equal(t, three, *got)
	})

	t.Run("Снятие назначения молча пропускается", func(t *testing.T) {
		assert.Nil(t, AssignmentRecipient(nil, &two, actor))
	})

	t.Run("Пустое переназначение молча пропускается", func(t *testing.T) {
		assert.Nil(t, AssignmentRecipient(&two, &two, actor))
	})

	t.Run("Самоназначение не уведомляется", func(t *testing.T) {
		one := uint(1)
		assert.Nil(t, AssignmentRecipient(&one, nil, actor))
	})
}

func TestNotifyAssignment_CreatesNotification(t *testing.T) {
	db, ns := setupNotificationTest(t)

	actor := testutils.CreateTestUser(t, db, "manager", models.RoleManager)
	assignee := testutils.CreateTestUser(t, db, "assignee", models.RoleMember)

	err := ns.NotifyAssignment(EventTaskAssigned, models.EntityTypeTask, 7, "Позвонить клиенту",
		&assignee.ID, nil, actor)
	require.NoError(t, err)

	var notifications []models.Notification
	require.NoError(t, db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, assignee.ID, notifications[0].UserID)
	assert.Equal(t, string(EventTaskAssigned), notifications[0].Type)
	assert.Contains(t, notifications[0].URL, "task")
}

func TestNotifyLeadConverted(t *testing.T) {
	db, ns := setupNotificationTest(t)

	adminA := testutils.CreateTestUser(t, db, "admin-a", models.RoleAdmin)
	adminB := testutils.CreateTestUser(t, db, "admin-b", models.RoleAdmin)
	prevAssignee := testutils.CreateTestUser(t, db, "assignee", models.RoleMember)

	lead := testutils.CreateTestLead(t, db, "acme", adminA, prevAssignee)
	client := &models.Client{Name: lead.Name, LeadID: &lead.ID, CreatedByID: adminA.ID}
	require.NoError(t, db.Create(client).Error)

	// Конвертирует adminA: он исключается, adminB и прежний исполнитель получают
	require.NoError(t, ns.NotifyLeadConverted(lead, client, adminA))

	var notifications []models.Notification
	require.NoError(t, db.Find(&notifications).Error)

	got := make(map[uint]bool)
	for _, n := range notifications {
		got[n.UserID] = true
	}
	assert.False(t, got[adminA.ID], "инициатор конвертации исключен")
	assert.True(t, got[adminB.ID])
	assert.True(t, got[prevAssignee.ID])
	assert.Len(t, notifications, 2)
}

func TestDispatch_PersistsNotificationRow(t *testing.T) {
	db, ns := setupNotificationTest(t)

	recipient := testutils.CreateTestUser(t, db, "recipient", models.RoleMember)

	payload := NotificationPayload{
		Type:    string(EventNoteCreated),
		Message: "Новая заметка",
	}
	require.NoError(t, ns.Dispatch(EventNoteCreated, []models.User{*recipient}, payload, models.EntityTypeNote, 5))

	var notification models.Notification
	require.NoError(t, db.First(&notification).Error)
	assert.Equal(t, recipient.ID, notification.UserID)
	assert.Equal(t, "Новая заметка", notification.Message)
	assert.Equal(t, models.EntityTypeNote, notification.RelatedType)
	// Без побочных каналов уведомление сразу помечается отправленным
	assert.Equal(t, models.NotificationStatusSent, notification.Status)
}
