package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"backend_crm/models"
)

func setupPolicyTest(t *testing.T) (*gorm.DB, *PolicyService) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{}, &models.Lead{}, &models.Client{}, &models.Project{},
		&models.Task{}, &models.Note{}, &models.Document{}, &models.Activity{},
		&models.Appointment{},
	)
	require.NoError(t, err)

	return db, NewPolicyService()
}

func policyTestUser(db *gorm.DB, name, role string) *models.User {
	user := models.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: "hash",
		Role:     role,
		IsActive: true,
	}
	db.Create(&user)
	return &user
}

func TestPolicyDecide_Leads(t *testing.T) {
	db, policy := setupPolicyTest(t)

	admin := policyTestUser(db, "admin", models.RoleAdmin)
	manager := policyTestUser(db, "manager", models.RoleManager)
	member := policyTestUser(db, "member", models.RoleMember)
	stranger := policyTestUser(db, "stranger", models.RoleMember)

	lead := &models.Lead{Name: "Acme", Status: models.LeadStatusNew, CreatedByID: member.ID}
	db.Create(lead)

	t.Run("Список и создание доступны всем ролям", func(t *testing.T) {
		for _, u := range []*models.User{admin, manager, member} {
			assert.True(t, policy.Decide(u, ActionList, models.EntityTypeLead, nil))
			assert.True(t, policy.Decide(u, ActionCreate, models.EntityTypeLead, nil))
		}
	})

	t.Run("Участник видит и правит только свои лиды", func(t *testing.T) {
		assert.True(t, policy.Decide(member, ActionView, models.EntityTypeLead, lead))
		assert.True(t, policy.Decide(member, ActionUpdate, models.EntityTypeLead, lead))
		assert.False(t, policy.Decide(stranger, ActionView, models.EntityTypeLead, lead))
		assert.False(t, policy.Decide(stranger, ActionUpdate, models.EntityTypeLead, lead))
	})

	t.Run("Назначенный исполнитель получает доступ", func(t *testing.T) {
		assigned := &models.Lead{Name: "Beta", CreatedByID: admin.ID, AssignedToID: &stranger.ID}
		db.Create(assigned)
		assert.True(t, policy.Decide(stranger, ActionView, models.EntityTypeLead, assigned))
		assert.True(t, policy.Decide(stranger, ActionUpdate, models.EntityTypeLead, assigned))
	})

	t.Run("Удаление только администратору", func(t *testing.T) {
		assert.True(t, policy.Decide(admin, ActionDelete, models.EntityTypeLead, lead))
		assert.False(t, policy.Decide(manager, ActionDelete, models.EntityTypeLead, lead))
		assert.False(t, policy.Decide(member, ActionDelete, models.EntityTypeLead, lead))
	})

	t.Run("Nil пользователь всегда получает отказ", func(t *testing.T) {
		assert.False(t, policy.Decide(nil, ActionList, models.EntityTypeLead, nil))
	})
}

func TestPolicyDecide_Projects(t *testing.T) {
	db, policy := setupPolicyTest(t)

	admin := policyTestUser(db, "admin", models.RoleAdmin)
	manager := policyTestUser(db, "manager", models.RoleManager)
	member := policyTestUser(db, "member", models.RoleMember)
	outsider := policyTestUser(db, "outsider", models.RoleMember)

	project := &models.Project{Name: "CRM Rollout", CreatedByID: manager.ID, Members: []models.User{*member}}
	db.Create(project)

	t.Run("Создание проектов только для admin и manager", func(t *testing.T) {
		assert.True(t, policy.Decide(admin, ActionCreate, models.EntityTypeProject, nil))
		assert.True(t, policy.Decide(manager, ActionCreate, models.EntityTypeProject, nil))
		assert.False(t, policy.Decide(member, ActionCreate, models.EntityTypeProject, nil))
	})

	t.Run("Просмотр для создателя, участника и администратора", func(t *testing.T) {
		assert.True(t, policy.Decide(admin, ActionView, models.EntityTypeProject, project))
		assert.True(t, policy.Decide(manager, ActionView, models.EntityTypeProject, project))
		assert.True(t, policy.Decide(member, ActionView, models.EntityTypeProject, project))
		assert.False(t, policy.Decide(outsider, ActionView, models.EntityTypeProject, project))
	})

	t.Run("Участник проекта не правит проект", func(t *testing.T) {
		assert.False(t, policy.Decide(member, ActionUpdate, models.EntityTypeProject, project))
	})

	t.Run("Менеджер-участник правит чужой проект", func(t *testing.T) {
		other := &models.Project{Name: "Side", CreatedByID: admin.ID, Members: []models.User{*manager}}
		db.Create(other)
		assert.True(t, policy.Decide(manager, ActionUpdate, models.EntityTypeProject, other))
	})
}

func TestPolicyDecide_Invoices(t *testing.T) {
	_, policy := setupPolicyTest(t)

	admin := &models.User{Role: models.RoleAdmin}
	manager := &models.User{Role: models.RoleManager}
	member := &models.User{Role: models.RoleMember}

	t.Run("Счета недоступны участникам целиком", func(t *testing.T) {
		for _, action := range []Action{ActionList, ActionView, ActionCreate, ActionUpdate, ActionDelete} {
			assert.False(t, policy.Decide(member, action, models.EntityTypeInvoice, nil),
				"участнику должно быть отказано в %s", action)
		}
	})

	t.Run("Менеджер работает со счетами, но не удаляет", func(t *testing.T) {
		assert.True(t, policy.Decide(manager, ActionList, models.EntityTypeInvoice, nil))
		assert.True(t, policy.Decide(manager, ActionCreate, models.EntityTypeInvoice, nil))
		assert.False(t, policy.Decide(manager, ActionDelete, models.EntityTypeInvoice, nil))
		assert.True(t, policy.Decide(admin, ActionDelete, models.EntityTypeInvoice, nil))
	})
}

func TestPolicyDecide_Activities(t *testing.T) {
	db, policy := setupPolicyTest(t)

	admin := policyTestUser(db, "admin", models.RoleAdmin)
	manager := policyTestUser(db, "manager", models.RoleManager)
	member := policyTestUser(db, "member", models.RoleMember)

	adminActivity := &models.Activity{CauserID: &admin.ID, Causer: admin, Action: models.ActivityActionCreated, SubjectType: models.EntityTypeLead, SubjectID: 1}
	memberActivity := &models.Activity{CauserID: &member.ID, Causer: member, Action: models.ActivityActionCreated, SubjectType: models.EntityTypeLead, SubjectID: 2}

	t.Run("Менеджер не видит действия администраторов", func(t *testing.T) {
		assert.False(t, policy.Decide(manager, ActionView, models.EntityTypeActivity, adminActivity))
		assert.True(t, policy.Decide(manager, ActionView, models.EntityTypeActivity, memberActivity))
	})

	t.Run("Участник видит только свои действия", func(t *testing.T) {
		assert.True(t, policy.Decide(member, ActionView, models.EntityTypeActivity, memberActivity))
		assert.False(t, policy.Decide(member, ActionView, models.EntityTypeActivity, adminActivity))
	})

	t.Run("Журнал нельзя создавать и править через политику", func(t *testing.T) {
		for _, u := range []*models.User{admin, manager, member} {
			assert.False(t, policy.Decide(u, ActionCreate, models.EntityTypeActivity, nil))
			assert.False(t, policy.Decide(u, ActionUpdate, models.EntityTypeActivity, adminActivity))
		}
	})
}

// TestPolicyMonotonicity проверяет монотонность ролей: все, что разрешено
// участнику, разрешено менеджеру; все, что разрешено менеджеру, - администратору.
func TestPolicyMonotonicity(t *testing.T) {
	db, policy := setupPolicyTest(t)

	admin := policyTestUser(db, "admin", models.RoleAdmin)
	manager := policyTestUser(db, "manager", models.RoleManager)
	member := policyTestUser(db, "member", models.RoleMember)

	// Ресурсы без владения со стороны проверяемых ролей:
	// на них решения зависят только от роли
	owner := policyTestUser(db, "owner", models.RoleMember)
	resources := map[string]interface{}{
		models.EntityTypeLead:        &models.Lead{CreatedByID: owner.ID},
		models.EntityTypeClient:      &models.Client{CreatedByID: owner.ID},
		models.EntityTypeTask:        &models.Task{CreatedByID: owner.ID},
		models.EntityTypeNote:        &models.Note{UserID: owner.ID},
		models.EntityTypeDocument:    &models.Document{UploadedByID: owner.ID},
		models.EntityTypeProject:     &models.Project{CreatedByID: owner.ID},
		models.EntityTypeAppointment: &models.Appointment{CreatedByID: owner.ID},
		models.EntityTypeInvoice:     &models.Invoice{CreatedByID: owner.ID},
	}

	actions := []Action{ActionList, ActionView, ActionCreate, ActionUpdate, ActionDelete}

	for kind, resource := range resources {
		for _, action := range actions {
			name := fmt.Sprintf("%s/%s", kind, action)

			memberAllowed := policy.Decide(member, action, kind, resource)
			managerAllowed := policy.Decide(manager, action, kind, resource)
			adminAllowed := policy.Decide(admin, action, kind, resource)

			if memberAllowed {
				assert.True(t, managerAllowed, "%s: разрешено участнику, но запрещено менеджеру", name)
			}
			if managerAllowed {
				assert.True(t, adminAllowed, "%s: разрешено менеджеру, но запрещено администратору", name)
			}
		}
	}
}

// TestScopeList_Member проверяет, что выборка участника - подмножество
// выборки администратора и содержит только доступные ему записи.
func TestScopeList_Member(t *testing.T) {
	db, policy := setupPolicyTest(t)

	admin := policyTestUser(db, "admin", models.RoleAdmin)
	member := policyTestUser(db, "member", models.RoleMember)

	mine := &models.Lead{Name: "mine", CreatedByID: member.ID}
	assigned := &models.Lead{Name: "assigned", CreatedByID: admin.ID, AssignedToID: &member.ID}
	foreign := &models.Lead{Name: "foreign", CreatedByID: admin.ID}
	db.Create(mine)
	db.Create(assigned)
	db.Create(foreign)

	var memberLeads []models.Lead
	scope := policy.ScopeList(member, models.EntityTypeLead)
	require.NoError(t, scope(db.Model(&models.Lead{})).Find(&memberLeads).Error)

	var adminLeads []models.Lead
	adminScope := policy.ScopeList(admin, models.EntityTypeLead)
	require.NoError(t, adminScope(db.Model(&models.Lead{})).Find(&adminLeads).Error)

	assert.Len(t, adminLeads, 3)
	assert.Len(t, memberLeads, 2)

	// Каждая видимая участнику запись проходит точечную проверку View
	adminIDs := make(map[uint]bool)
	for _, l := range adminLeads {
		adminIDs[l.ID] = true
	}
	for i := range memberLeads {
		assert.True(t, adminIDs[memberLeads[i].ID], "запись участника отсутствует в выборке администратора")
		assert.True(t, policy.Decide(member, ActionView, models.EntityTypeLead, &memberLeads[i]))
	}
}

func TestScopeList_ManagerActivities(t *testing.T) {
	db, policy := setupPolicyTest(t)

	admin := policyTestUser(db, "admin", models.RoleAdmin)
	manager := policyTestUser(db, "manager", models.RoleManager)
	member := policyTestUser(db, "member", models.RoleMember)

	db.Create(&models.Activity{CauserID: &admin.ID, Action: models.ActivityActionCreated, SubjectType: models.EntityTypeLead, SubjectID: 1})
	db.Create(&models.Activity{CauserID: &member.ID, Action: models.ActivityActionCreated, SubjectType: models.EntityTypeLead, SubjectID: 2})
	db.Create(&models.Activity{CauserID: &manager.ID, Action: models.ActivityActionUpdated, SubjectType: models.EntityTypeClient, SubjectID: 3})

	var visible []models.Activity
	scope := policy.ScopeList(manager, models.EntityTypeActivity)
	require.NoError(t, scope(db.Model(&models.Activity{})).Find(&visible).Error)

	assert.Len(t, visible, 2)
	for _, a := range visible {
		require.NotNil(t, a.CauserID)
		assert.NotEqual(t, admin.ID, *a.CauserID, "действие администратора попало в выборку менеджера")
	}
}
