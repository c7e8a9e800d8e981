package api

import (
	"net/http"

	"backend_crm/database"
	"backend_crm/middleware"
	"backend_crm/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AuthAPI представляет API аутентификации
type AuthAPI struct {
	auth *middleware.AuthMiddleware
}

// NewAuthAPI создает новый экземпляр AuthAPI
func NewAuthAPI(auth *middleware.AuthMiddleware) *AuthAPI {
	return &AuthAPI{auth: auth}
}

// LoginRequest запрос на вход
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login аутентифицирует пользователя и выдает JWT
// POST /api/auth/login
func (a *AuthAPI) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Неверный формат данных")
		return
	}

	db := database.GetDBFromContext(c)

	var user models.User
	if err := db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Неверный email или пароль",
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Неверный email или пароль",
		})
		return
	}

	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Учетная запись деактивирована",
		})
		return
	}

	token, err := a.auth.GenerateToken(&user)
	if err != nil {
		respondInternalError(c, "Ошибка создания токена")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"token": token,
			"user":  user,
		},
	})
}

// Me возвращает текущего пользователя
// GET /api/auth/me
func (a *AuthAPI) Me(c *gin.Context) {
	user := getActor(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Authentication required",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   user,
	})
}

// RegisterRoutes регистрирует маршруты аутентификации
func (a *AuthAPI) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/auth/login", a.Login)
	protected.GET("/auth/me", a.Me)
}
