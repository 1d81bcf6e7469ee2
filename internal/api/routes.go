package api

import (
	"net/http"

	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/metrics"
	"alcyxob/coach-sessions/internal/realtime"
	"alcyxob/coach-sessions/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	AuthService     service.AuthService
	AdminService    service.AdminService
	SessionService  service.SessionService
	RoundService    service.RoundService
	FeedbackService service.FeedbackService
	ExerciseService service.ExerciseService
	WeightService   service.WeightService
	TrainerService  service.TrainerService
	Subscriber      realtime.Subscriber

	// RateLimiter may be nil, which disables login throttling.
	RateLimiter    RequestRateLimiter
	LoginPerMinute int

	Metrics  *metrics.Manager
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	authHandler := NewAuthHandler(deps.AuthService)
	adminHandler := NewAdminHandler(deps.AdminService)
	sessionHandler := NewSessionHandler(deps.SessionService)
	roundHandler := NewRoundHandler(deps.RoundService, deps.FeedbackService)
	eventsHandler := NewEventsHandler(deps.SessionService, deps.Subscriber)
	exerciseHandler := NewExerciseHandler(deps.ExerciseService)
	weightHandler := NewWeightHandler(deps.WeightService)
	trainerHandler := NewTrainerHandler(deps.TrainerService)

	router.Use(RequestID(), Logger(deps.Log), RequestMetrics(deps.Metrics))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/login",
				RateLimit(deps.RateLimiter, "login", deps.LoginPerMinute, deps.Metrics),
				authHandler.Login,
			)
		}
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(deps.AuthService))
	{
		// --- Own account ---
		protected.GET("/me", authHandler.Me)
		protected.PUT("/me/password", authHandler.ChangePassword)
		protected.POST("/me/weights", weightHandler.AddEntry)
		protected.GET("/me/weights", weightHandler.ListOwnEntries)
		protected.DELETE("/me/weights/:entryId", weightHandler.DeleteEntry)
		protected.GET("/users/:userId/weights", weightHandler.ListUserEntries)

		// --- Exercise catalogue ---
		exerciseGroup := protected.Group("/exercises")
		{
			exerciseGroup.GET("", exerciseHandler.ListExercises)
			exerciseGroup.GET("/:exerciseId", exerciseHandler.GetExercise)
			exerciseGroup.GET("/:exerciseId/video", exerciseHandler.GetVideoURL)

			adminOnly := RoleMiddleware(domain.RoleAdmin)
			exerciseGroup.POST("", adminOnly, exerciseHandler.CreateExercise)
			exerciseGroup.PUT("/:exerciseId", adminOnly, exerciseHandler.UpdateExercise)
			exerciseGroup.DELETE("/:exerciseId", adminOnly, exerciseHandler.DeleteExercise)
			exerciseGroup.POST("/:exerciseId/video/upload-url", adminOnly, exerciseHandler.RequestVideoUpload)
			exerciseGroup.PUT("/:exerciseId/video", adminOnly, exerciseHandler.ConfirmVideoUpload)
			exerciseGroup.DELETE("/:exerciseId/video", adminOnly, exerciseHandler.DeleteVideo)
		}

		// --- Sessions ---
		// Cancel and the event stream are shared by athlete and trainer; the service decides.
		sessionGroup := protected.Group("/sessions")
		{
			sessionGroup.POST("/:sessionId/cancel", sessionHandler.CancelSession)
			sessionGroup.GET("/:sessionId/events", eventsHandler.StreamSessionEvents)

			athleteOnly := RoleMiddleware(domain.RoleAthlete)
			sessionGroup.POST("", athleteOnly, sessionHandler.StartSession)
			sessionGroup.GET("/current", athleteOnly, sessionHandler.GetCurrentSession)
			sessionGroup.GET("/history", athleteOnly, sessionHandler.GetSessionHistory)
			sessionGroup.GET("/:sessionId", athleteOnly, sessionHandler.GetAthleteSession)
		}
		protected.POST("/rounds/:roundId/complete", RoleMiddleware(domain.RoleAthlete), roundHandler.CompleteRound)

		// --- Trainer Specific Routes ---
		trainerApiGroup := protected.Group("/trainer")
		trainerApiGroup.Use(RoleMiddleware(domain.RoleTrainer))
		{
			trainerApiGroup.GET("/athletes", trainerHandler.GetManagedAthletes)
			trainerApiGroup.GET("/athletes/:athleteId/sessions", trainerHandler.GetAthleteSessions)

			trainerApiGroup.GET("/sessions", sessionHandler.GetTrainerSessions)
			trainerApiGroup.GET("/sessions/:sessionId", sessionHandler.GetTrainerSession)
			trainerApiGroup.POST("/sessions/:sessionId/join", sessionHandler.JoinSession)
			trainerApiGroup.POST("/sessions/:sessionId/rounds", roundHandler.CreateRound)
			trainerApiGroup.PUT("/sessions/:sessionId/rounds/:roundId", roundHandler.UpdateRound)

			trainerApiGroup.POST("/rounds/:roundId/release", roundHandler.ReleaseRound)
			trainerApiGroup.DELETE("/rounds/:roundId", roundHandler.DeleteRound)
		}

		// --- Administration ---
		adminGroup := protected.Group("/admin")
		adminGroup.Use(RoleMiddleware(domain.RoleAdmin))
		{
			adminGroup.POST("/users", adminHandler.CreateUser)
			adminGroup.GET("/users", adminHandler.ListUsers)
			adminGroup.PUT("/users/:userId/active", adminHandler.SetUserActive)
			adminGroup.PUT("/users/:userId/roles", adminHandler.SetUserRoles)
			adminGroup.PUT("/users/:userId/trainer", adminHandler.AssignTrainer)
		}
	}
}
