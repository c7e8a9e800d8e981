package api

import (
	"net/http"

	"backend_crm/database"
	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// UsersAPI представляет API управления пользователями
type UsersAPI struct {
	policy *services.PolicyService
}

// NewUsersAPI создает новый экземпляр UsersAPI
func NewUsersAPI(policy *services.PolicyService) *UsersAPI {
	return &UsersAPI{policy: policy}
}

// GetUsers возвращает список пользователей
// GET /api/users
func (a *UsersAPI) GetUsers(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionList, models.EntityTypeUser, nil) {
		respondForbidden(c)
		return
	}

	db := database.GetDBFromContext(c)
	query := db.Model(&models.User{})

	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("name LIKE ? OR email LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	page, limit, offset := parsePagination(c)

	var total int64
	query.Count(&total)

	var users []models.User
	if err := query.Offset(offset).Limit(limit).Order("id").Find(&users).Error; err != nil {
		respondInternalError(c, "Ошибка при получении пользователей")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   users,
		"count":  len(users),
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// GetUser возвращает пользователя по ID
// GET /api/users/:id
func (a *UsersAPI) GetUser(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		respondNotFound(c, "Пользователь не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionView, models.EntityTypeUser, &user) {
		respondForbidden(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   user,
	})
}

// CreateUserRequest запрос на создание пользователя
type CreateUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

// CreateUser создает нового пользователя
// POST /api/users
func (a *UsersAPI) CreateUser(c *gin.Context) {
	actor := getActor(c)
	if !a.policy.Decide(actor, services.ActionCreate, models.EntityTypeUser, nil) {
		respondForbidden(c)
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	if req.Role == "" {
		req.Role = models.RoleMember
	}
	if !models.IsValidRole(req.Role) {
		respondBadRequest(c, "Недопустимая роль")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondInternalError(c, "Ошибка при хешировании пароля")
		return
	}

	user := models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hash),
		Role:     req.Role,
		IsActive: true,
	}

	db := database.GetDBFromContext(c)
	if err := db.Create(&user).Error; err != nil {
		respondBadRequest(c, "Пользователь с таким email уже существует")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   user,
	})
}

// UpdateUserRequest запрос на обновление пользователя
type UpdateUserRequest struct {
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	Password       *string `json:"password"`
	Role           *string `json:"role"`
	IsActive       *bool   `json:"is_active"`
	TelegramChatID *string `json:"telegram_chat_id"`
}

// UpdateUser обновляет пользователя
// PUT /api/users/:id
func (a *UsersAPI) UpdateUser(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		respondNotFound(c, "Пользователь не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionUpdate, models.EntityTypeUser, &user) {
		respondForbidden(c)
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondInternalError(c, "Ошибка при хешировании пароля")
			return
		}
		user.Password = string(hash)
	}
	if req.Role != nil {
		if !models.IsValidRole(*req.Role) {
			respondBadRequest(c, "Недопустимая роль")
			return
		}
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.TelegramChatID != nil {
		user.TelegramChatID = *req.TelegramChatID
	}

	if err := db.Save(&user).Error; err != nil {
		respondInternalError(c, "Ошибка при обновлении пользователя")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   user,
	})
}

// DeleteUser удаляет пользователя
// DELETE /api/users/:id
func (a *UsersAPI) DeleteUser(c *gin.Context) {
	actor := getActor(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	db := database.GetDBFromContext(c)
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		respondNotFound(c, "Пользователь не найден")
		return
	}

	if !a.policy.Decide(actor, services.ActionDelete, models.EntityTypeUser, &user) {
		respondForbidden(c)
		return
	}

	if user.ID == actor.ID {
		respondBadRequest(c, "Нельзя удалить собственную учетную запись")
		return
	}

	if err := db.Delete(&user).Error; err != nil {
		respondInternalError(c, "Ошибка при удалении пользователя")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Пользователь удален",
	})
}

// RegisterRoutes регистрирует маршруты управления пользователями
func (a *UsersAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/users", a.GetUsers)
	router.GET("/users/:id", a.GetUser)
	router.POST("/users", a.CreateUser)
	router.PUT("/users/:id", a.UpdateUser)
	router.DELETE("/users/:id", a.DeleteUser)
}
