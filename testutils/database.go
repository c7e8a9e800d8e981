package testutils

import (
	"fmt"
	"testing"

	"backend_crm/database"
	"backend_crm/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB создает in-memory SQLite базу со всеми миграциями и индексами
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, database.CreateIndexes(db))

	return db
}

// CreateTestUser создает пользователя с указанной ролью
func CreateTestUser(t *testing.T, db *gorm.DB, name, role string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		Name:     name,
		Email:    fmt.Sprintf("%s@example.com", name),
		Password: string(hash),
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, db.Create(&user).Error)

	return &user
}

// CreateTestLead создает лид от имени пользователя
func CreateTestLead(t *testing.T, db *gorm.DB, name string, createdBy *models.User, assignedTo *models.User) *models.Lead {
	t.Helper()

	lead := models.Lead{
		Name:        name,
		Email:       fmt.Sprintf("%s@lead.example.com", name),
		Status:      models.LeadStatusNew,
		CreatedByID: createdBy.ID,
	}
	if assignedTo != nil {
		lead.AssignedToID = &assignedTo.ID
	}
	require.NoError(t, db.Create(&lead).Error)

	return &lead
}

// CreateTestClient создает клиента от имени пользователя
func CreateTestClient(t *testing.T, db *gorm.DB, name string, createdBy *models.User) *models.Client {
	t.Helper()

	client := models.Client{
		Name:        name,
		Email:       fmt.Sprintf("%s@client.example.com", name),
		CreatedByID: createdBy.ID,
	}
	require.NoError(t, db.Create(&client).Error)

	return &client
}
