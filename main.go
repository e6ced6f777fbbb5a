package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"

	"pokaimon_back/cache"
	"pokaimon_back/config"
	"pokaimon_back/creatures"
	"pokaimon_back/genai"
	"pokaimon_back/logging"
	"pokaimon_back/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/joho/godotenv"
)

func mustLoadEnv() {
	_ = godotenv.Load()
}

func main() {
	mustLoadEnv()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	ctx := context.Background()

	db, err := creatures.OpenDatabase(cfg.DatabaseDriver, cfg.DatabaseDSN, logger)
	if err != nil {
		fatal(logger, "open database", err)
	}
	store := creatures.NewStore(db)
	if err := store.AutoMigrate(); err != nil {
		fatal(logger, "migrate database", err)
	}

	galleryCache := cache.NewStore(nil, logger)
	if cfg.CacheEnabled {
		client, err := cache.NewRedisClient(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Warn("redis unavailable, gallery cache disabled", "error", err)
		} else {
			defer client.Close()
			galleryCache = cache.NewStore(client, logger)
		}
	}

	r := gin.Default()
	r.Use(cors.New(corsConfig(cfg.CORSOrigin)))

	var images creatures.ImageStore
	if cfg.MinioConfigured() {
		objects, err := storage.NewObjectStorage(ctx, storage.ObjectConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			fatal(logger, "connect object storage", err)
		}
		images = objects
	} else {
		if err := os.MkdirAll(cfg.ImagesDir, 0o755); err != nil {
			fatal(logger, "create images dir", err)
		}
		images = storage.NewLocalStorage(osfs.New(cfg.ImagesDir), cfg.ImagesURLPrefix)
		r.Static(cfg.ImagesURLPrefix, cfg.ImagesDir)
	}

	ai, err := genai.NewClient(genai.Config{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		ImageModel: cfg.GeminiImageModel,
		TextModel:  cfg.GeminiTextModel,
		Timeout:    cfg.AICallTimeout(),
	})
	if err != nil {
		fatal(logger, "configure gemini client", err)
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set; requests without a key will use the fallback generator")
	}

	service := creatures.NewService(creatures.Options{
		Repository:                    store,
		Images:                        images,
		Generator:                     ai,
		Cache:                         galleryCache,
		Logger:                        logger,
		GalleryTTL:                    cfg.GalleryCacheTTL(),
		ActionImageInvalidatesGallery: cfg.ActionImageInvalidatesGallery,
		DedupeActionImages:            cfg.ActionImageDedupe,
	})
	creatures.NewModule(service, logger, cfg.MaxBodyBytes).RegisterRoutes(r)

	logger.Info("server starting", "port", cfg.Port, "cache", galleryCache.Enabled(), "object_storage", cfg.MinioConfigured())
	if err := r.Run(":" + cfg.Port); err != nil {
		fatal(logger, "start server", err)
	}
}

func corsConfig(origin string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}

	var origins []string
	for _, o := range strings.Split(origin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
