// Package photoserver exposes the gallery over HTTP.
package photoserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"wedding-gallery/gallery"
	"wedding-gallery/metastore"
	"wedding-gallery/storage"
)

const objectsPrefix = "/objects/"

type Config struct {
	Listen      string
	Storage     storage.Config
	DatabaseURL string

	// RedisAddr enables per-IP upload rate limiting when set.
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	UploadRateLimit  int
	UploadRateWindow time.Duration

	MaxUploadBytes int64
}

// Deps are the collaborators NewHandler wires into the routes. Blobs and
// Limiter are optional.
type Deps struct {
	Gallery        Gallery
	Reconciler     gallery.Reconciler
	Blobs          BlobOpener
	Metrics        *Metrics
	Limiter        *RateLimiter
	Log            *zap.SugaredLogger
	MaxUploadBytes int64
}

// NewHandler builds the routed, middleware-wrapped HTTP handler.
func NewHandler(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = DefaultMaxUploadBytes
	}
	limit := func(h http.Handler) http.Handler { return h }
	if d.Limiter != nil {
		limit = d.Limiter.Middleware
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/health/", healthHandler)
	mux.Handle("/metrics", d.Metrics.Handler())
	mux.HandleFunc("/photos", listPhotosHandler(d.Gallery, d.Log))
	mux.HandleFunc("/photos/delete", deletePhotoHandler(d.Gallery, d.Metrics, d.Log))
	mux.Handle("/upload", limit(uploadHandler(d.Gallery, d.Metrics, d.MaxUploadBytes, d.Log)))
	mux.Handle("/couple-photo", limit(couplePhotoHandler(d.Gallery, d.MaxUploadBytes, d.Log)))
	if d.Reconciler != nil {
		mux.HandleFunc("/admin/orphans", orphansHandler(d.Reconciler, d.Log))
	}
	if d.Blobs != nil {
		mux.HandleFunc(objectsPrefix, objectsHandler(d.Blobs, objectsPrefix, d.Log))
	}

	return Chain(recoverMiddleware(d.Log), corsMiddleware, logMiddleware(d.Log))(mux)
}

// Run connects to the stores, serves until ctx is canceled and then shuts
// down gracefully.
func Run(ctx context.Context, cfg Config, log *zap.SugaredLogger) error {
	blobs, err := storage.NewMinioStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("object storage: %w", err)
	}

	pool, err := metastore.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	records := metastore.NewPostgres(pool)
	if err := records.Migrate(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	metrics := NewMetrics()
	svc := gallery.NewService(blobs, records, records,
		gallery.WithLogger(log),
		gallery.WithOrphanHook(metrics.OrphanObserved),
	)

	var limiter *RateLimiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		limiter = NewRateLimiter(rdb, "ratelimit:upload", cfg.UploadRateLimit, cfg.UploadRateWindow, log)
		log.Infow("upload rate limit enabled", "limit", cfg.UploadRateLimit, "window", cfg.UploadRateWindow)
	}

	srv := &http.Server{
		Addr: cfg.Listen,
		Handler: NewHandler(Deps{
			Gallery:        svc,
			Reconciler:     &gallery.StoreReconciler{Blobs: blobs, Photos: records},
			Blobs:          blobs,
			Metrics:        metrics,
			Limiter:        limiter,
			Log:            log,
			MaxUploadBytes: cfg.MaxUploadBytes,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("gallery api listening", "addr", cfg.Listen, "bucket", cfg.Storage.Bucket)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
