package routes

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/clicktoassignment/backend/internal/config"
	"github.com/clicktoassignment/backend/internal/controllers"
	"github.com/clicktoassignment/backend/internal/middleware"
	"github.com/clicktoassignment/backend/internal/models"
	"github.com/clicktoassignment/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Services bundles the domain services behind the HTTP layer so commands
// other than the server can reuse the same wiring.
type Services struct {
	LLM      *services.LLMService
	Ledger   *services.LedgerService
	Pricing  *services.PricingService
	Coupons  *services.CouponService
	Jobs     *services.JobService
	Pipeline *services.PipelineService
}

// NewServices builds the service graph from configuration.
func NewServices(db *gorm.DB, cfg *config.Config, node *snowflake.Node) *Services {
	llmService := services.NewLLMService(cfg.LLM)
	ledger := services.NewLedgerService(db, decimal.NewFromInt(int64(cfg.Gems.WelcomeBonus)))
	pricing := services.NewPricingService(db, decimal.NewFromInt(int64(cfg.Gems.MonsterCost)))
	coupons := services.NewCouponService(db, ledger)

	genTimeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	pipeline := services.NewPipelineService(db, ledger, coupons, pricing, services.NewLLMGenerator(llmService), genTimeout)

	return &Services{
		LLM:      llmService,
		Ledger:   ledger,
		Pricing:  pricing,
		Coupons:  coupons,
		Jobs:     services.NewJobService(db, node),
		Pipeline: pipeline,
	}
}

// SetupRoutes configures all application routes
func SetupRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config, svc *Services, redisClient *redis.Client) {
	validate := validator.New()
	limiter := middleware.NewRateLimiter(redisClient)

	sectionController := controllers.NewSectionController(svc.Pipeline, validate)
	jobController := controllers.NewJobController(svc.Jobs, validate)
	gemsController := controllers.NewGemsController(svc.Ledger, svc.Pricing, validate)
	couponController := controllers.NewCouponController(svc.Coupons, svc.Pricing, validate)
	userController := controllers.NewUserController(db, validate)
	llmController := controllers.NewLLMController(svc.LLM)

	generationLimit := limiter.GenerationLimit(cfg.RateLimit.GenerationPerMin)

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg.JWT.Secret, db))
	{
		api.GET("/users/me", userController.GetCurrentUser)
		api.GET("/holidays", jobController.ListHolidays)

		// Jobs
		jobs := api.Group("/jobs")
		{
			jobs.GET("", jobController.ListJobs)
			jobs.POST("", middleware.RequireRoles(models.RoleMarketing, models.RoleGlobal, models.RoleSuperAdmin, models.RoleCoSuperAdmin), jobController.CreateJob)
			jobs.GET("/:id", jobController.GetJob)
			jobs.PUT("/:id", middleware.RequireRoles(models.RoleMarketing, models.RoleGlobal, models.RoleSuperAdmin, models.RoleCoSuperAdmin), jobController.UpdateJob)
			jobs.GET("/:id/pipeline", sectionController.Pipeline)
			jobs.POST("/:id/monster", generationLimit, sectionController.Monster)
		}

		// Sections
		sections := api.Group("/sections")
		{
			sections.POST("/:id/action", generationLimit, sectionController.Action)
			sections.GET("/:id/history", sectionController.History)
		}

		// Gems
		gems := api.Group("/gems")
		{
			gems.GET("/balance", gemsController.Balance)
			gems.GET("/transactions", gemsController.Transactions)
			gems.GET("/costs", gemsController.Costs)
		}

		// Coupons
		coupons := api.Group("/coupons")
		{
			coupons.POST("/preview", couponController.Preview)
			coupons.GET("/best", couponController.Best)
		}

		// Admin routes
		admin := api.Group("/admin")
		admin.Use(middleware.RequireSuperAdmin())
		{
			admin.GET("/users", userController.GetUsers)
			admin.POST("/users", userController.AddUser)
			admin.PUT("/users/:id/role", userController.UpdateUserRole)
			admin.DELETE("/users/:id", userController.RemoveUser)

			admin.DELETE("/jobs/:id", jobController.DeleteJob)
			admin.POST("/jobs/:id/restore", jobController.RestoreJob)
			admin.POST("/jobs/:id/archive", jobController.ArchiveJob)

			admin.POST("/holidays", jobController.AddHoliday)
			admin.DELETE("/holidays/:id", jobController.DeleteHoliday)

			admin.GET("/gems/:userId", gemsController.UserBalance)
			admin.POST("/gems/credit", gemsController.Credit)
			admin.PUT("/gems/costs/:key", gemsController.SetCost)

			admin.GET("/coupons", couponController.ListCoupons)
			admin.POST("/coupons", couponController.CreateCoupon)
			admin.GET("/coupons/:id", couponController.GetCoupon)
			admin.PUT("/coupons/:id", couponController.UpdateCoupon)
			admin.PUT("/coupons/:id/users", couponController.AssignCoupon)
			admin.DELETE("/coupons/:id", couponController.DeleteCoupon)
			admin.GET("/coupons/:id/redemptions", couponController.Redemptions)

			admin.GET("/llm/status", llmController.Status)
			admin.GET("/llm/calls", llmController.APICalls)
			admin.DELETE("/llm/calls", llmController.ClearAPICalls)
		}
	}
}
