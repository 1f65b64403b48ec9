package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"wedding-gallery/golib"
	"wedding-gallery/photoserver"
	"wedding-gallery/storage"
)

func main() {
	_ = godotenv.Load()

	logger, err := golib.NewLogger(golib.GetEnv("APP_ENV", "production") == "development")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	databaseURL := golib.GetEnv("DATABASE_URL", "")
	if databaseURL == "" {
		databaseURL = "postgres://" + golib.GetEnv("POSTGRES_USER", "postgres") + ":" +
			golib.GetEnv("POSTGRES_PASSWORD", "postgres") + "@" +
			golib.GetEnv("POSTGRES_HOST", "localhost") + ":" +
			golib.GetEnv("POSTGRES_PORT", "5432") + "/" +
			golib.GetEnv("POSTGRES_DB", "wedding") + "?sslmode=disable"
	}

	cfg := photoserver.Config{
		Listen: golib.GetEnv("LISTEN_ADDR", ":8080"),
		Storage: storage.Config{
			Endpoint:      golib.GetEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:     golib.GetEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:     golib.GetEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:        golib.GetEnv("MINIO_BUCKET", "wedding-photos"),
			UseSSL:        golib.GetEnvBool("MINIO_USE_SSL", false),
			PublicBaseURL: golib.GetEnv("PUBLIC_BASE_URL", ""),
		},
		DatabaseURL:      databaseURL,
		RedisAddr:        golib.GetEnv("REDIS_ADDR", ""),
		RedisPassword:    golib.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:          golib.GetEnvInt("REDIS_DB", 0),
		UploadRateLimit:  golib.GetEnvInt("UPLOAD_RATE_LIMIT", 20),
		UploadRateWindow: time.Duration(golib.GetEnvInt("UPLOAD_RATE_WINDOW_SECONDS", 60)) * time.Second,
		MaxUploadBytes:   golib.GetEnvInt64("UPLOAD_MAX_BYTES", photoserver.DefaultMaxUploadBytes),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := photoserver.Run(ctx, cfg, logger); err != nil {
		logger.Fatalw("server", "error", err)
	}
}
