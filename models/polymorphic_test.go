package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveEntityType(t *testing.T) {
	t.Run("Известные теги преобразуются в канонические типы", func(t *testing.T) {
		assert.Equal(t, EntityTypeLead, ResolveEntityType("lead"))
		assert.Equal(t, EntityTypeClient, ResolveEntityType("client"))
		assert.Equal(t, EntityTypeProject, ResolveEntityType("project"))
	})

	t.Run("Неизвестный тег возвращается без изменений", func(t *testing.T) {
		assert.Equal(t, "unknown", ResolveEntityType("unknown"))
		assert.Equal(t, "", ResolveEntityType(""))
	})

	t.Run("Резолвер чувствителен к регистру", func(t *testing.T) {
		// "Lead" - не короткий тег, проходит насквозь
		assert.Equal(t, "Lead", ResolveEntityType("Lead"))
	})
}

func TestShortenEntityType(t *testing.T) {
	t.Run("Канонические типы преобразуются в короткие теги", func(t *testing.T) {
		assert.Equal(t, "lead", ShortenEntityType(EntityTypeLead))
		assert.Equal(t, "client", ShortenEntityType(EntityTypeClient))
		assert.Equal(t, "project", ShortenEntityType(EntityTypeProject))
	})

	t.Run("Сравнение нечувствительно к регистру", func(t *testing.T) {
		assert.Equal(t, "lead", ShortenEntityType("LEAD"))
		assert.Equal(t, "client", ShortenEntityType("client"))
	})

	t.Run("Неизвестный тип возвращается без изменений", func(t *testing.T) {
		assert.Equal(t, "Invoice", ShortenEntityType("Invoice"))
	})
}

func TestResolveRoundTrip(t *testing.T) {
	// Для каждого допустимого тега прямое и обратное преобразование
	// возвращают исходное значение
	for _, tag := range TaskableTags {
		assert.Equal(t, tag, ShortenEntityType(ResolveEntityType(tag)))
	}
}

func TestAllowedTagSets(t *testing.T) {
	t.Run("Задачи и встречи привязываются к лидам, клиентам и проектам", func(t *testing.T) {
		for _, tag := range []string{"lead", "client", "project"} {
			assert.True(t, IsAllowedTag(tag, TaskableTags))
			assert.True(t, IsAllowedTag(tag, AppointableTags))
		}
	})

	t.Run("Заметки и документы не привязываются к проектам", func(t *testing.T) {
		assert.True(t, IsAllowedTag("lead", NoteableTags))
		assert.True(t, IsAllowedTag("client", NoteableTags))
		assert.False(t, IsAllowedTag("project", NoteableTags))

		assert.True(t, IsAllowedTag("lead", DocumentableTags))
		assert.True(t, IsAllowedTag("client", DocumentableTags))
		assert.False(t, IsAllowedTag("project", DocumentableTags))
	})

	t.Run("Посторонние теги не входят ни в один набор", func(t *testing.T) {
		assert.False(t, IsAllowedTag("task", TaskableTags))
		assert.False(t, IsAllowedTag("user", AppointableTags))
	})
}
