package models

import (
	"time"

	"gorm.io/gorm"
)

// Типы документов
const (
	DocumentTypeContract = "contract"
	DocumentTypeProposal = "proposal"
	DocumentTypeInvoice  = "invoice" // PDF счета, создаются системой
	DocumentTypeOther    = "other"
)

// Document представляет загруженный файл, привязанный к сущности.
// Через API документы прикрепляются только к лидам и клиентам; записи с
// documentable_type = Invoice создает сервис генерации PDF.
type Document struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля
	Title    string `json:"title" gorm:"not null;type:varchar(200)"`
	Type     string `json:"type" gorm:"default:'other';type:varchar(30);index"`
	FilePath string `json:"file_path" gorm:"not null;type:varchar(500)"`
	FileSize int64  `json:"file_size"`

	// Загрузивший пользователь
	UploadedByID uint  `json:"uploaded_by_id" gorm:"not null;index"`
	UploadedBy   *User `json:"uploaded_by,omitempty" gorm:"foreignKey:UploadedByID"`

	// Полиморфная связь
	DocumentableType string `json:"documentable_type" gorm:"not null;type:varchar(30)"`
	DocumentableID   uint   `json:"documentable_id" gorm:"not null"`
}

// TableName задает имя таблицы для модели Document
func (Document) TableName() string {
	return "documents"
}

// GetCreatedByID возвращает загрузившего пользователя
func (d *Document) GetCreatedByID() uint {
	return d.UploadedByID
}

// GetAssignedToID у документа нет назначенного исполнителя
func (d *Document) GetAssignedToID() *uint {
	return nil
}
