package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"backend_crm/config"
	"backend_crm/models"
	"backend_crm/services"
	"backend_crm/testutils"
)

// setupLeadsRouter поднимает тестовый роутер с подменой БД и пользователя
// через контекст запроса
func setupLeadsRouter(t *testing.T, db *gorm.DB, actor *models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("db", db)
		c.Set("user", actor)
		c.Next()
	})

	policy := services.NewPolicyService()
	notifications := services.NewNotificationService(db, config.Load(), nil)
	activities := services.NewActivityService(db)
	conversion := services.NewConversionService(db, notifications, activities)

	leads := NewLeadsAPI(policy, conversion, notifications, activities)
	leads.RegisterRoutes(router.Group("/api"))

	return router
}

func performJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateLead(t *testing.T) {
	db := testutils.SetupTestDB(t)
	manager := testutils.CreateTestUser(t, db, "manager", models.RoleManager)
	router := setupLeadsRouter(t, db, manager)

	t.Run("Создание лида со статусом new", func(t *testing.T) {
		w := performJSON(router, http.MethodPost, "/api/leads", gin.H{
			"name":    "Acme",
			"email":   "sales@acme.example",
			"company": "Acme LLC",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var lead models.Lead
		require.NoError(t, db.Where("name = ?", "Acme").First(&lead).Error)
		assert.Equal(t, models.LeadStatusNew, lead.Status)
		assert.Equal(t, manager.ID, lead.CreatedByID)
	})

	t.Run("Запрос без имени отклоняется", func(t *testing.T) {
		w := performJSON(router, http.MethodPost, "/api/leads", gin.H{
			"email": "noname@acme.example",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetLeads_MemberScope(t *testing.T) {
	db := testutils.SetupTestDB(t)
	manager := testutils.CreateTestUser(t, db, "manager", models.RoleManager)
	member := testutils.CreateTestUser(t, db, "member", models.RoleMember)

	testutils.CreateTestLead(t, db, "mine", member, nil)
	testutils.CreateTestLead(t, db, "assigned", manager, member)
	testutils.CreateTestLead(t, db, "foreign", manager, nil)

	router := setupLeadsRouter(t, db, member)
	w := performJSON(router, http.MethodGet, "/api/leads", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Status string        `json:"status"`
		Data   []models.Lead `json:"data"`
		Total  int64         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "success", response.Status)

	// Участник видит только созданные им и назначенные на него лиды
	assert.Equal(t, int64(2), response.Total)
	for _, lead := range response.Data {
		assert.NotEqual(t, "foreign", lead.Name)
	}
}

func TestUpdateLead_QualifiedTriggersConversion(t *testing.T) {
	db := testutils.SetupTestDB(t)
	manager := testutils.CreateTestUser(t, db, "manager", models.RoleManager)
	lead := testutils.CreateTestLead(t, db, "acme", manager, nil)

	router := setupLeadsRouter(t, db, manager)
	w := performJSON(router, http.MethodPut, "/api/leads/1", gin.H{
		"status": models.LeadStatusQualified,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Status string         `json:"status"`
		Client *models.Client `json:"client"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.NotNil(t, response.Client, "ответ содержит созданного клиента")
	require.NotNil(t, response.Client.LeadID)
	assert.Equal(t, lead.ID, *response.Client.LeadID)

	var stored models.Lead
	require.NoError(t, db.First(&stored, lead.ID).Error)
	assert.Equal(t, models.LeadStatusQualified, stored.Status)
}

func TestConvertLead(t *testing.T) {
	db := testutils.SetupTestDB(t)
	manager := testutils.CreateTestUser(t, db, "manager", models.RoleManager)
	assignee := testutils.CreateTestUser(t, db, "assignee", models.RoleMember)
	lead := testutils.CreateTestLead(t, db, "acme", manager, assignee)

	router := setupLeadsRouter(t, db, manager)

	t.Run("Явная конвертация создает клиента", func(t *testing.T) {
		w := performJSON(router, http.MethodPost, "/api/leads/1/convert", gin.H{})
		require.Equal(t, http.StatusCreated, w.Code)

		var client models.Client
		require.NoError(t, db.Where("lead_id = ?", lead.ID).First(&client).Error)
		require.NotNil(t, client.AssignedToID)
		assert.Equal(t, assignee.ID, *client.AssignedToID)
	})

	t.Run("Повторная конвертация возвращает конфликт", func(t *testing.T) {
		w := performJSON(router, http.MethodPost, "/api/leads/1/convert", gin.H{})
		assert.Equal(t, http.StatusConflict, w.Code)

		var count int64
		db.Model(&models.Client{}).Where("lead_id = ?", lead.ID).Count(&count)
		assert.Equal(t, int64(1), count)
	})
}

func TestLeads_MemberForbidden(t *testing.T) {
	db := testutils.SetupTestDB(t)
	manager := testutils.CreateTestUser(t, db, "manager", models.RoleManager)
	member := testutils.CreateTestUser(t, db, "member", models.RoleMember)
	testutils.CreateTestLead(t, db, "foreign", manager, nil)

	router := setupLeadsRouter(t, db, member)

	t.Run("Чужой лид недоступен для просмотра", func(t *testing.T) {
		w := performJSON(router, http.MethodGet, "/api/leads/1", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Удаление недоступно участнику", func(t *testing.T) {
		w := performJSON(router, http.MethodDelete, "/api/leads/1", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
