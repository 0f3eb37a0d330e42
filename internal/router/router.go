package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/roamly/tours-api/internal/config"
	"github.com/roamly/tours-api/internal/handler"
	"github.com/roamly/tours-api/internal/middleware"
	"github.com/roamly/tours-api/internal/model"
)

// Deps carries everything route registration needs.
type Deps struct {
	Cfg      config.Config
	CacheCfg config.CacheConfig
	DB       *sql.DB
	Redis    *redis.Client
	Auth     *handler.AuthHandler
	Users    *handler.UserHandler
	Tours    *handler.TourHandler
	Reviews  *handler.ReviewHandler
}

// Register mounts the full /api/v1 surface on the Echo instance.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))

	protect := middleware.Protect(d.Cfg, d.Users.Users)

	registerUsers(e, d, protect)
	registerTours(e, d, protect)
	registerReviews(e, d, protect)
}

func registerUsers(e *echo.Echo, d Deps, protect echo.MiddlewareFunc) {
	g := e.Group("/api/v1/users")

	// Session lifecycle; no authentication required.
	g.POST("/signup", d.Auth.SignUp)
	g.POST("/login", d.Auth.Login)
	g.POST("/logout", d.Auth.Logout)
	g.POST("/refreshToken", d.Auth.RefreshToken)

	// Password reset flow.
	g.POST("/forgotPassword", d.Auth.ForgotPassword)
	g.PATCH("/resetPassword/:token", d.Auth.ResetPassword)

	// Self-service endpoints for the logged-in user.
	me := g.Group("", protect)
	me.GET("/me", d.Users.GetMe)
	me.PATCH("/updateMe", d.Users.UpdateMe)
	me.DELETE("/deleteMe", d.Users.DeleteMe)
	me.PATCH("/updateMyPassword", d.Auth.UpdatePassword)

	// Administrative user management.
	admin := g.Group("", protect, middleware.RestrictTo(model.RoleAdmin))
	admin.GET("", d.Users.Resource.GetAll(nil))
	admin.POST("", d.Users.CreateUser)
	admin.GET("/:id", d.Users.Resource.GetOne())
	admin.PATCH("/:id", d.Users.Resource.UpdateOne("name", "email", "photo", "role", "active"))
	admin.DELETE("/:id", d.Users.Resource.DeleteOne())
}

func registerTours(e *echo.Echo, d Deps, protect echo.MiddlewareFunc) {
	g := e.Group("/api/v1/tours")

	// Read endpoints are public and sit behind the response cache when
	// Redis is reachable.
	cache := middleware.ResponseCache(d.CacheCfg, d.Redis)
	g.GET("", d.Tours.Resource.GetAll(nil), cache)
	g.GET("/top-5-cheap", d.Tours.TopCheapTours(d.Tours.Resource.GetAll(nil)), cache)
	g.GET("/tour-stats", d.Tours.TourStats, cache)
	g.GET("/:id", d.Tours.Resource.GetOne(), cache)

	g.GET("/monthly-plan/:year", d.Tours.MonthlyPlan,
		protect, middleware.RestrictTo(model.RoleAdmin, model.RoleLeadGuide, model.RoleGuide))

	// Writes are reserved for staff.
	staff := g.Group("", protect, middleware.RestrictTo(model.RoleAdmin, model.RoleLeadGuide))
	staff.POST("", d.Tours.CreateTour)
	staff.PATCH("/:id", d.Tours.Resource.UpdateOne(
		"name", "duration", "maxGroupSize", "difficulty", "price",
		"priceDiscount", "summary", "description", "imageCover", "secretTour"))
	staff.DELETE("/:id", d.Tours.Resource.DeleteOne())
}

func registerReviews(e *echo.Echo, d Deps, protect echo.MiddlewareFunc) {
	// Flat review routes; every one requires a session.
	g := e.Group("/api/v1/reviews", protect)
	g.GET("", d.Reviews.ListReviews())
	g.POST("", d.Reviews.CreateReview, middleware.RestrictTo(model.RoleUser))
	g.GET("/:id", d.Reviews.Resource.GetOne())
	g.PATCH("/:id", d.Reviews.Resource.UpdateOne("review", "rating"),
		middleware.RestrictTo(model.RoleUser, model.RoleAdmin))
	g.DELETE("/:id", d.Reviews.Resource.DeleteOne(),
		middleware.RestrictTo(model.RoleUser, model.RoleAdmin))

	// Nested access scoped to one tour.
	nested := e.Group("/api/v1/tours/:tourId/reviews", protect)
	nested.GET("", d.Reviews.ListReviews())
	nested.POST("", d.Reviews.CreateReview, middleware.RestrictTo(model.RoleUser))
}
