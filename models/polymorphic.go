package models

import "strings"

// Канонические типы сущностей, хранимые в полиморфных колонках *_type
const (
	EntityTypeLead        = "Lead"
	EntityTypeClient      = "Client"
	EntityTypeProject     = "Project"
	EntityTypeTask        = "Task"
	EntityTypeNote        = "Note"
	EntityTypeDocument    = "Document"
	EntityTypeInvoice     = "Invoice"
	EntityTypeAppointment = "Appointment"
	EntityTypeUser        = "User"
	EntityTypeActivity    = "Activity"
)

// entityTypeByTag отображает короткие внешние теги на канонические типы
var entityTypeByTag = map[string]string{
	"lead":    EntityTypeLead,
	"client":  EntityTypeClient,
	"project": EntityTypeProject,
}

// Допустимые теги полиморфных связей по сущностям.
// Note и Document намеренно ограничены {lead, client} - асимметрия
// зафиксирована и не расширяется без решения бизнеса.
var (
	TaskableTags     = []string{"lead", "client", "project"}
	AppointableTags  = []string{"lead", "client", "project"}
	NoteableTags     = []string{"lead", "client"}
	DocumentableTags = []string{"lead", "client"}
)

// ResolveEntityType преобразует короткий тег в канонический тип сущности.
// Неизвестные теги возвращаются без изменений: валидация тега - обязанность
// вызывающей стороны, резолвер намеренно пропускает свободные значения.
func ResolveEntityType(tag string) string {
	if canonical, ok := entityTypeByTag[tag]; ok {
		return canonical
	}
	return tag
}

// ShortenEntityType преобразует канонический тип обратно в короткий тег.
// Сравнение нечувствительно к регистру; неизвестные типы возвращаются как есть.
func ShortenEntityType(entityType string) string {
	for tag, canonical := range entityTypeByTag {
		if strings.EqualFold(entityType, canonical) {
			return tag
		}
	}
	return entityType
}

// IsAllowedTag проверяет, входит ли тег в допустимый набор для сущности
func IsAllowedTag(tag string, allowed []string) bool {
	for _, a := range allowed {
		if a == tag {
			return true
		}
	}
	return false
}

// OwnershipScoped реализуется сущностями с владельцем и назначенным исполнителем
type OwnershipScoped interface {
	GetCreatedByID() uint
	GetAssignedToID() *uint
}

// MembershipScoped реализуется сущностями с участниками (many-to-many)
type MembershipScoped interface {
	MemberIDs() []uint
}
