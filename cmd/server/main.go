package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/roamly/tours-api/internal/apperr"
	"github.com/roamly/tours-api/internal/config"
	"github.com/roamly/tours-api/internal/database"
	"github.com/roamly/tours-api/internal/handler"
	"github.com/roamly/tours-api/internal/queue"
	"github.com/roamly/tours-api/internal/repository"
	"github.com/roamly/tours-api/internal/router"
	"github.com/roamly/tours-api/internal/service"
)

func main() {
	// .env is a development convenience; in production the variables come
	// from the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	cacheCfg := config.LoadCacheConfig()

	// The mail consumer reconnects on its own; a broker outage must not
	// take the API down with it.
	go func() {
		if err := queue.StartMailConsumer(); err != nil {
			log.Printf("mail consumer stopped: %v", err)
		}
	}()

	users := repository.NewUserRepo(db)
	tours := repository.NewTourRepo(db)
	reviews := repository.NewReviewRepo(db)
	ratings := service.NewRatingAggregator(db)
	mailer := service.NewQueueMailer()

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apperr.Handler(cfg.IsProd())
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.Register(e, router.Deps{
		Cfg:      cfg,
		CacheCfg: cacheCfg,
		DB:       db,
		Redis:    rdb,
		Auth:     handler.NewAuthHandler(cfg, users, mailer),
		Users:    handler.NewUserHandler(users),
		Tours:    handler.NewTourHandler(tours),
		Reviews:  handler.NewReviewHandler(reviews, ratings),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
