package main

import (
	"log"

	"backend_crm/api"
	"backend_crm/config"
	"backend_crm/database"
	"backend_crm/middleware"
	"backend_crm/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// initDB инициализирует подключение к базе данных
func initDB() {
	log.Println("🔧 Инициализация базы данных...")

	// Создаем базу данных, если она не существует
	if err := database.CreateDatabaseIfNotExists(); err != nil {
		log.Fatal("❌ Ошибка при создании базы данных:", err)
	}

	// Подключаемся к базе данных
	if err := database.ConnectDatabase(); err != nil {
		log.Fatal("❌ Ошибка подключения к базе данных:", err)
	}

	log.Println("✅ База данных успешно инициализирована")
}

func main() {
	// Загружаем переменные окружения из .env файла
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Файл .env не найден, используются системные переменные окружения")
	}

	cfg := config.Load()

	// Инициализируем базу данных
	initDB()

	// Инициализируем Redis (кэш и rate limiting работают без него в режиме заглушки)
	if err := database.InitRedis(); err != nil {
		log.Printf("⚠️  Redis недоступен, кэширование отключено: %v", err)
	} else {
		log.Println("✅ Redis успешно подключен")
	}

	db := database.GetDB()

	// Telegram клиент для уведомлений
	var telegram *services.TelegramClient
	if cfg.Telegram.Enabled {
		var err error
		telegram, err = services.NewTelegramClient(cfg.Telegram.BotToken)
		if err != nil {
			log.Printf("⚠️  Не удалось инициализировать Telegram бота: %v", err)
		} else {
			log.Println("✅ Telegram бот подключен")
		}
	}

	// Собираем сервисы
	policy := services.NewPolicyService()
	activities := services.NewActivityService(db)
	notifications := services.NewNotificationService(db, cfg, telegram)
	conversion := services.NewConversionService(db, notifications, activities)
	invoices := services.NewInvoiceService(db)
	storage := services.NewLocalFileStorage(cfg.Storage.Root, cfg.Storage.BaseURL)
	pdfService := services.NewInvoicePDFService(db, storage, &services.GofpdfRenderer{})
	cache := services.NewCacheService(database.GetRedis(), log.Default())
	exports := services.NewExportService(db, cache)

	// Фоновые задачи: напоминания, просроченные счета, повторная доставка
	scheduler := services.NewSchedulerService(db, notifications, invoices)
	if err := scheduler.Start(); err != nil {
		log.Fatal("❌ Ошибка запуска планировщика:", err)
	}
	defer scheduler.Stop()

	// Настраиваем Gin router
	r := gin.Default()
	r.Use(cors.Default()) // Для избежания CORS-ошибок

	// Базовые роуты
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":   "success",
			"message":  "pong",
			"database": "connected",
		})
	})

	auth := middleware.NewAuthMiddleware(cfg)

	public := r.Group("/api")
	public.Use(middleware.AuthRateLimit())

	protected := r.Group("/api")
	protected.Use(auth.RequireAuth(), middleware.ModerateRateLimit())

	// Тяжелые операции с отдельным, более строгим лимитом
	heavy := r.Group("/api")
	heavy.Use(auth.RequireAuth(), middleware.StrictRateLimit())

	api.NewAuthAPI(auth).RegisterRoutes(public, protected)
	api.NewUsersAPI(policy).RegisterRoutes(protected)
	api.NewLeadsAPI(policy, conversion, notifications, activities).RegisterRoutes(protected)
	api.NewClientsAPI(policy, notifications, activities).RegisterRoutes(protected)
	api.NewProjectsAPI(policy, notifications, activities).RegisterRoutes(protected)
	api.NewTasksAPI(policy, notifications, activities).RegisterRoutes(protected)
	api.NewNotesAPI(policy, notifications, activities).RegisterRoutes(protected)
	api.NewDocumentsAPI(policy, storage, activities).RegisterRoutes(protected)
	api.NewInvoicesAPI(policy, invoices, pdfService, activities).RegisterRoutes(protected)
	api.NewAppointmentsAPI(policy, notifications, activities).RegisterRoutes(protected)
	api.NewActivitiesAPI(policy).RegisterRoutes(protected)
	api.NewNotificationsAPI().RegisterRoutes(protected)
	api.NewDashboardAPI(policy, cache).RegisterRoutes(protected)
	api.NewExportsAPI(policy, exports).RegisterRoutes(heavy)

	log.Printf("🚀 Сервер запущен на порту %s", cfg.Server.Port)
	r.Run(":" + cfg.Server.Port)
}
