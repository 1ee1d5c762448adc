package main

import (
	"context"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	authcore "github.com/authcore-io/authcore"
	"github.com/authcore-io/authcore/httpapi"
	"github.com/authcore-io/authcore/store/postgres"
)

func main() {
	cfg, err := authcore.LoadEnv()
	if err != nil {
		log.Fatal(err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis unreachable: %v", err)
	}

	pool, err := postgres.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	cfg.Audit.Enabled = true

	builder := authcore.New().
		WithConfig(cfg.Config).
		WithRedis(redisClient).
		WithRoleStore(postgres.NewStore(pool)).
		WithAuditSink(authcore.NewJSONWriterSink(os.Stdout))

	engine, err := builder.Build()
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	app := fiber.New()
	httpapi.RegisterRoutes(app, httpapi.NewHandler(engine))

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
