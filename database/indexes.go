package database

import (
	"log"

	"gorm.io/gorm"
)

// CreateIndexes создает уникальные индексы, закрепляющие инварианты на уровне схемы.
// Проверки "прочитал - записал" в сервисах остаются, но гонка между ними
// разрешается конфликтом записи, а не дубликатом.
func CreateIndexes(db *gorm.DB) error {
	indexes := []string{
		// Лид конвертируется максимум в одного клиента
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_clients_lead_id ON clients (lead_id) WHERE lead_id IS NOT NULL AND deleted_at IS NULL",

		// Номер счета уникален глобально
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_number ON invoices (number) WHERE deleted_at IS NULL",

		// Ускорение выборок по полиморфным связям
		"CREATE INDEX IF NOT EXISTS idx_tasks_taskable ON tasks (taskable_type, taskable_id)",
		"CREATE INDEX IF NOT EXISTS idx_notes_noteable ON notes (noteable_type, noteable_id)",
		"CREATE INDEX IF NOT EXISTS idx_documents_documentable ON documents (documentable_type, documentable_id)",
		"CREATE INDEX IF NOT EXISTS idx_appointments_appointable ON appointments (appointable_type, appointable_id)",
		"CREATE INDEX IF NOT EXISTS idx_activities_subject ON activities (subject_type, subject_id)",
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			log.Printf("⚠️  Не удалось создать индекс: %v", err)
			return err
		}
	}

	log.Println("✅ Индексы базы данных созданы")
	return nil
}
