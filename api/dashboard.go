package api

import (
	"log"
	"net/http"
	"time"

	"backend_crm/database"
	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
)

// DashboardAPI представляет API сводной статистики
type DashboardAPI struct {
	policy *services.PolicyService
	cache  *services.CacheService
}

// NewDashboardAPI создает новый экземпляр DashboardAPI
func NewDashboardAPI(policy *services.PolicyService, cache *services.CacheService) *DashboardAPI {
	return &DashboardAPI{policy: policy, cache: cache}
}

// DashboardStats сводные счетчики дашборда
type DashboardStats struct {
	Leads              int64 `json:"leads"`
	LeadsNew           int64 `json:"leads_new"`
	Clients            int64 `json:"clients"`
	Projects           int64 `json:"projects"`
	TasksOpen          int64 `json:"tasks_open"`
	TasksOverdue       int64 `json:"tasks_overdue"`
	UpcomingMeetings   int64 `json:"upcoming_meetings"`
	InvoicesUnpaid     int64 `json:"invoices_unpaid"`
	InvoicesOverdue    int64 `json:"invoices_overdue"`
	UnreadNotification int64 `json:"unread_notifications"`
}

// GetStats возвращает счетчики дашборда. Каждый счетчик считается в границах
// видимости пользователя (ScopeList), результат кэшируется per-user.
// GET /api/dashboard
func (a *DashboardAPI) GetStats(c *gin.Context) {
	actor := getActor(c)

	if a.cache != nil {
		var cached DashboardStats
		if err := a.cache.GetCachedDashboardStats(actor.ID, &cached); err == nil {
			c.JSON(http.StatusOK, gin.H{
				"status": "success",
				"data":   cached,
				"cached": true,
			})
			return
		}
	}

	db := database.GetDBFromContext(c)
	now := time.Now()

	var stats DashboardStats

	leadScope := a.policy.ScopeList(actor, models.EntityTypeLead)
	leadScope(db.Model(&models.Lead{})).Count(&stats.Leads)
	leadScope(db.Model(&models.Lead{})).Where("status = ?", models.LeadStatusNew).Count(&stats.LeadsNew)

	clientScope := a.policy.ScopeList(actor, models.EntityTypeClient)
	clientScope(db.Model(&models.Client{})).Count(&stats.Clients)

	projectScope := a.policy.ScopeList(actor, models.EntityTypeProject)
	projectScope(db.Model(&models.Project{})).Count(&stats.Projects)

	taskScope := a.policy.ScopeList(actor, models.EntityTypeTask)
	taskScope(db.Model(&models.Task{})).
		Where("status != ?", models.TaskStatusCompleted).Count(&stats.TasksOpen)
	taskScope(db.Model(&models.Task{})).
		Where("status != ? AND due_date < ?", models.TaskStatusCompleted, now).Count(&stats.TasksOverdue)

	appointmentScope := a.policy.ScopeList(actor, models.EntityTypeAppointment)
	appointmentScope(db.Model(&models.Appointment{})).
		Where("status != ? AND date >= ?", models.AppointmentStatusCancelled, now).Count(&stats.UpcomingMeetings)

	// Счета видят только admin и manager
	if a.policy.Decide(actor, services.ActionList, models.EntityTypeInvoice, nil) {
		db.Model(&models.Invoice{}).
			Where("status IN ?", []string{models.InvoiceStatusSent, models.InvoiceStatusPartiallyPaid}).
			Count(&stats.InvoicesUnpaid)
		db.Model(&models.Invoice{}).
			Where("status = ?", models.InvoiceStatusOverdue).Count(&stats.InvoicesOverdue)
	}

	db.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", actor.ID).Count(&stats.UnreadNotification)

	if a.cache != nil {
		if err := a.cache.CacheDashboardStats(actor.ID, &stats); err != nil {
			log.Printf("Не удалось закэшировать статистику дашборда: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   stats,
	})
}

// RegisterRoutes регистрирует маршруты дашборда
func (a *DashboardAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/dashboard", a.GetStats)
}
