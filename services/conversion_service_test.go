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

func setupConversionTest(t *testing.T) (*gorm.DB, *ConversionService) {
	db := testutils.SetupTestDB(t)

	notifications := NewNotificationService(db, config.Load(), nil)
	activities := NewActivityService(db)
	conversion := NewConversionService(db, notifications, activities)

	return db, conversion
}

func TestConvert_CreatesClientAndQualifiesLead(t *testing.T) {
	db, cs := setupConversionTest(t)

	actor := testutils.CreateTestUser(t, db, "manager", models.RoleManager)
	assignee := testutils.CreateTestUser(t, db, "assignee", models.RoleMember)
	lead := testutils.CreateTestLead(t, db, "acme", actor, assignee)
	lead.Phone = "+7 900 000-00-00"
	lead.Company = "Acme LLC"
	require.NoError(t, db.Save(lead).Error)

	client, err := cs.Convert(lead, actor, true)
	require.NoError(t, err)
	require.NotNil(t, client)

	// Контактные данные скопированы, связь с лидом установлена
	assert.Equal(t, lead.Name, client.Name)
	assert.Equal(t, lead.Email, client.Email)
	assert.Equal(t, lead.Phone, client.Phone)
	assert.Equal(t, lead.Company, client.Company)
	require.NotNil(t, client.LeadID)
	assert.Equal(t, lead.ID, *client.LeadID)

	// Назначение унаследовано, создатель - инициатор конвертации
	require.NotNil(t, client.AssignedToID)
	assert.Equal(t, assignee.ID, *client.AssignedToID)
	assert.Equal(t, actor.ID, client.CreatedByID)

	// Лид переведен в qualified и не удален
	var stored models.Lead
	require.NoError(t, db.First(&stored, lead.ID).Error)
	assert.Equal(t, models.LeadStatusQualified, stored.Status)
}

func TestConvert_WithoutAssignmentInheritance(t *testing.T) {
	db, cs := setupConversionTest(t)

	actor := testutils.CreateTestUser(t, db, "manager", models.RoleManager)
	assignee := testutils.CreateTestUser(t, db, "assignee", models.RoleMember)
	lead := testutils.CreateTestLead(t, db, "acme", actor, assignee)

	client, err := cs.Convert(lead, actor, false)
	require.NoError(t, err)
	assert.Nil(t, client.AssignedToID)
}

func TestConvert_SecondCallFails(t *testing.T) {
	db, cs := setupConversionTest(t)

	actor := testutils.CreateTestUser(t, db, "manager", models.RoleManager)
	lead := testutils.CreateTestLead(t, db, "acme", actor, nil)

	first, err := cs.Convert(lead, actor, true)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := cs.Convert(lead, actor, true)
	assert.ErrorIs(t, err, ErrLeadAlreadyConverted)
	assert.Nil(t, second)

	// Ровно один клиент на лид
	var count int64
	db.Model(&models.Client{}).Where("lead_id = ?", lead.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestConvert_UniqueIndexStopsRace(t *testing.T) {
	db, cs := setupConversionTest(t)

	actor := testutils.CreateTestUser(t, db, "manager", models.RoleManager)
	lead := testutils.CreateTestLead(t, db, "acme", actor, nil)

	// Конкурент успел записать клиента между проверкой и вставкой:
	// моделируем прямой записью в обход сервиса
	rival := models.Client{Name: "rival", LeadID: &lead.ID, CreatedByID: actor.ID}
	require.NoError(t, db.Create(&rival).Error)

	_, err := cs.Convert(lead, actor, true)
	assert.ErrorIs(t, err, ErrLeadAlreadyConverted)
}

func TestConvert_RecordsActivity(t *testing.T) {
	db, cs := setupConversionTest(t)

	actor := testutils.CreateTestUser(t, db, "manager", models.RoleManager)
	lead := testutils.CreateTestLead(t, db, "acme", actor, nil)

	_, err := cs.Convert(lead, actor, true)
	require.NoError(t, err)

	var activity models.Activity
	err = db.Where("subject_type = ? AND subject_id = ? AND action = ?",
		models.EntityTypeLead, lead.ID, models.ActivityActionConverted).First(&activity).Error
	require.NoError(t, err)
	require.NotNil(t, activity.CauserID)
	assert.Equal(t, actor.ID, *activity.CauserID)
}

func TestTransitionEffects(t *testing.T) {
	t.Run("Переходы в qualified запускают конвертацию", func(t *testing.T) {
		assert.True(t, TransitionTriggersConversion(models.LeadStatusNew, models.LeadStatusQualified))
		assert.True(t, TransitionTriggersConversion(models.LeadStatusContacted, models.LeadStatusQualified))
		assert.True(t, TransitionTriggersConversion(models.LeadStatusLost, models.LeadStatusQualified))
	})

	t.Run("Остальные переходы без эффектов", func(t *testing.T) {
		assert.False(t, TransitionTriggersConversion(models.LeadStatusNew, models.LeadStatusContacted))
		assert.False(t, TransitionTriggersConversion(models.LeadStatusQualified, models.LeadStatusLost))
		assert.False(t, TransitionTriggersConversion(models.LeadStatusQualified, models.LeadStatusQualified))
		assert.Empty(t, EffectsForTransition(models.LeadStatusNew, models.LeadStatusLost))
	})
}
