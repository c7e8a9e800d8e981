package services

import (
	"backend_crm/models"

	"gorm.io/gorm"
)

// Action представляет действие, проверяемое политикой авторизации
type Action string

const (
	ActionList   Action = "list"
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// PolicyService реализует ролевую модель доступа в два слоя:
// грубая проверка роль+действие (Decide) и построчное ограничение
// списков для ролей без полного доступа (ScopeList).
type PolicyService struct{}

// NewPolicyService создает новый экземпляр PolicyService
func NewPolicyService() *PolicyService {
	return &PolicyService{}
}

// Decide проверяет, разрешено ли действующему пользователю действие над сущностью.
// Не паникует и не возвращает ошибок: false - окончательный отказ,
// вызывающая сторона отвечает 403 без повторных попыток.
// Для list и create ресурс не передается (nil).
func (ps *PolicyService) Decide(actor *models.User, action Action, kind string, resource interface{}) bool {
	if actor == nil {
		return false
	}

	switch kind {
	case models.EntityTypeLead, models.EntityTypeClient:
		return ps.decideOwnedRecord(actor, action, resource)
	case models.EntityTypeProject:
		return ps.decideProject(actor, action, resource)
	case models.EntityTypeTask:
		return ps.decideTask(actor, action, resource)
	case models.EntityTypeNote:
		return ps.decideNote(actor, action, resource)
	case models.EntityTypeDocument:
		return ps.decideDocument(actor, action, resource)
	case models.EntityTypeInvoice:
		return ps.decideInvoice(actor, action)
	case models.EntityTypeAppointment:
		return ps.decideAppointment(actor, action, resource)
	case models.EntityTypeActivity:
		return ps.decideActivity(actor, action, resource)
	case models.EntityTypeUser:
		return ps.decideUser(actor, action)
	default:
		return false
	}
}

// ownsOrAssigned проверяет, что пользователь - создатель или назначенный исполнитель
func ownsOrAssigned(actor *models.User, resource interface{}) bool {
	scoped, ok := resource.(models.OwnershipScoped)
	if !ok {
		return false
	}
	if scoped.GetCreatedByID() == actor.ID {
		return true
	}
	if assigned := scoped.GetAssignedToID(); assigned != nil && *assigned == actor.ID {
		return true
	}
	return false
}

// isCreator проверяет, что пользователь - создатель записи
func isCreator(actor *models.User, resource interface{}) bool {
	scoped, ok := resource.(models.OwnershipScoped)
	return ok && scoped.GetCreatedByID() == actor.ID
}

// isMemberOf проверяет участие пользователя в сущности с участниками
func isMemberOf(actor *models.User, resource interface{}) bool {
	scoped, ok := resource.(models.MembershipScoped)
	if !ok {
		return false
	}
	for _, id := range scoped.MemberIDs() {
		if id == actor.ID {
			return true
		}
	}
	return false
}

// decideOwnedRecord правила для лидов и клиентов (таблицы совпадают)
func (ps *PolicyService) decideOwnedRecord(actor *models.User, action Action, resource interface{}) bool {
	switch action {
	case ActionList, ActionCreate:
		return true
	case ActionView, ActionUpdate:
		if actor.IsStaff() {
			return true
		}
		return ownsOrAssigned(actor, resource)
	case ActionDelete:
		return actor.IsAdmin()
	}
	return false
}

// decideProject правила для проектов
func (ps *PolicyService) decideProject(actor *models.User, action Action, resource interface{}) bool {
	switch action {
	case ActionList:
		return true
	case ActionCreate:
		return actor.IsStaff()
	case ActionView:
		if actor.IsAdmin() {
			return true
		}
		return isCreator(actor, resource) || isMemberOf(actor, resource)
	case ActionUpdate:
		if actor.IsAdmin() || isCreator(actor, resource) {
			return true
		}
		return actor.IsManager() && isMemberOf(actor, resource)
	case ActionDelete:
		return actor.IsAdmin() || isCreator(actor, resource)
	}
	return false
}

// decideTask правила для задач
func (ps *PolicyService) decideTask(actor *models.User, action Action, resource interface{}) bool {
	switch action {
	case ActionList, ActionCreate:
		return true
	case ActionView:
		if actor.IsStaff() {
			return true
		}
		return ownsOrAssigned(actor, resource)
	case ActionUpdate:
		if actor.IsAdmin() {
			return true
		}
		// Менеджер и участник правят только свои или назначенные им задачи
		return ownsOrAssigned(actor, resource)
	case ActionDelete:
		return actor.IsAdmin()
	}
	return false
}

// decideNote правила для заметок
func (ps *PolicyService) decideNote(actor *models.User, action Action, resource interface{}) bool {
	switch action {
	case ActionList, ActionView, ActionCreate:
		return true
	case ActionUpdate, ActionDelete:
		if actor.IsAdmin() {
			return true
		}
		note, ok := resource.(*models.Note)
		return ok && note.UserID == actor.ID
	}
	return false
}

// decideDocument правила для документов
func (ps *PolicyService) decideDocument(actor *models.User, action Action, resource interface{}) bool {
	switch action {
	case ActionList, ActionCreate:
		return true
	case ActionView:
		if actor.IsStaff() {
			return true
		}
		return isCreator(actor, resource)
	case ActionUpdate:
		if actor.IsAdmin() {
			return true
		}
		return isCreator(actor, resource)
	case ActionDelete:
		return actor.IsAdmin() || isCreator(actor, resource)
	}
	return false
}

// decideInvoice правила для счетов: доступ только admin/manager,
// удаление - только admin
func (ps *PolicyService) decideInvoice(actor *models.User, action Action) bool {
	switch action {
	case ActionList, ActionView, ActionCreate, ActionUpdate:
		return actor.IsStaff()
	case ActionDelete:
		return actor.IsAdmin()
	}
	return false
}

// decideAppointment правила для встреч
func (ps *PolicyService) decideAppointment(actor *models.User, action Action, resource interface{}) bool {
	switch action {
	case ActionList, ActionCreate:
		return true
	case ActionView:
		if actor.IsStaff() {
			return true
		}
		return isCreator(actor, resource) || isMemberOf(actor, resource)
	case ActionUpdate:
		if actor.IsAdmin() {
			return true
		}
		return isCreator(actor, resource)
	case ActionDelete:
		return actor.IsAdmin() || isCreator(actor, resource)
	}
	return false
}

// decideActivity правила для журнала действий.
// Записи создаются только системой: create и update всегда запрещены.
func (ps *PolicyService) decideActivity(actor *models.User, action Action, resource interface{}) bool {
	switch action {
	case ActionList:
		return true
	case ActionView:
		if actor.IsAdmin() {
			return true
		}
		activity, ok := resource.(*models.Activity)
		if !ok {
			return false
		}
		if actor.IsManager() {
			// Менеджер не видит действия администраторов
			return activity.Causer == nil || !activity.Causer.IsAdmin()
		}
		return activity.CauserID != nil && *activity.CauserID == actor.ID
	case ActionDelete:
		return actor.IsAdmin()
	}
	return false
}

// decideUser правила для управления пользователями
func (ps *PolicyService) decideUser(actor *models.User, action Action) bool {
	switch action {
	case ActionList, ActionView:
		return true
	case ActionCreate, ActionUpdate, ActionDelete:
		return actor.IsAdmin()
	}
	return false
}

// ScopeList возвращает gorm-scope, сужающий списочную выборку по правам
// пользователя. Грубая проверка ActionList выполняется отдельно через Decide;
// этот слой отвечает только за построчную фильтрацию.
func (ps *PolicyService) ScopeList(actor *models.User, kind string) func(*gorm.DB) *gorm.DB {
	identity := func(db *gorm.DB) *gorm.DB { return db }
	if actor == nil {
		return func(db *gorm.DB) *gorm.DB { return db.Where("1 = 0") }
	}
	if actor.IsAdmin() {
		return identity
	}

	if actor.IsManager() {
		// Единственное сужение для менеджера - журнал без действий администраторов
		if kind == models.EntityTypeActivity {
			return func(db *gorm.DB) *gorm.DB {
				return db.Where("causer_id IS NULL OR causer_id NOT IN (SELECT id FROM users WHERE role = ?)", models.RoleAdmin)
			}
		}
		return identity
	}

	// role = member
	switch kind {
	case models.EntityTypeLead, models.EntityTypeClient, models.EntityTypeTask:
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("created_by_id = ? OR assigned_to_id = ?", actor.ID, actor.ID)
		}
	case models.EntityTypeProject:
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("created_by_id = ? OR id IN (SELECT project_id FROM project_members WHERE user_id = ?)", actor.ID, actor.ID)
		}
	case models.EntityTypeAppointment:
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("created_by_id = ? OR id IN (SELECT appointment_id FROM appointment_attendees WHERE user_id = ?)", actor.ID, actor.ID)
		}
	case models.EntityTypeDocument:
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("uploaded_by_id = ?", actor.ID)
		}
	case models.EntityTypeActivity:
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("causer_id = ?", actor.ID)
		}
	}
	return identity
}
