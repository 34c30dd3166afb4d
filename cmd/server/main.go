package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/screenlab/reports/internal/application/services"
	"github.com/screenlab/reports/internal/infrastructure/database"
	"github.com/screenlab/reports/internal/interfaces/middleware"
	"github.com/screenlab/reports/internal/interfaces/rest"
	"github.com/screenlab/reports/pkg/serialize"
)

func main() {
	// Optional .env for local development
	for _, path := range []string{".env", "../.env"} {
		if err := godotenv.Load(path); err == nil {
			log.Printf("INFO: loaded environment from %s", path)
			break
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3002"
	}

	db, err := database.GetInstance()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Database connection established")

	mediaDir := os.Getenv("REPORTS_MEDIA_DIR")
	var (
		images    *rest.FileImageResolver
		fetchFile func(string) ([]byte, error)
	)
	if mediaDir != "" {
		images = rest.NewFileImageResolver(mediaDir, os.Getenv("REPORTS_MEDIA_URL"))
		fetchFile = images.Fetch
	}

	maxCacheable := 0
	if raw := os.Getenv("REPORTS_MAX_CACHEABLE_ROWS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			maxCacheable = n
		}
	}

	svcMgr := services.NewServiceManager(db, services.ManagerConfig{
		MaxCacheableRows: maxCacheable,
		ExportDir:        os.Getenv("REPORTS_EXPORT_DIR"),
		Images:           imageResolverOrNil(images),
		FetchFile:        fetchFile,
	})
	log.Println("Service manager initialized")

	if schemaDir := os.Getenv("REPORTS_SCHEMA_DIR"); schemaDir != "" {
		if err := svcMgr.Registry.LoadDir(schemaDir); err != nil {
			log.Fatalf("Failed to load resource schemas: %v", err)
		}
	} else {
		log.Println("WARN: REPORTS_SCHEMA_DIR not set, no resources registered")
	}

	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	requireAuth := middleware.RequireAuth(os.Getenv("REPORTS_JWT_SECRET"))

	api := router.Group("/api")
	api.Use(requireAuth)
	rest.NewReportHandler(svcMgr.Reports).RegisterRoutes(api)

	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Report engine listening on http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}
	if err := db.Close(); err != nil {
		log.Printf("WARN: closing database: %v", err)
	}

	log.Println("Server exiting")
}

// imageResolverOrNil keeps a typed-nil *FileImageResolver out of the
// interface value
func imageResolverOrNil(r *rest.FileImageResolver) serialize.ImageResolver {
	if r == nil {
		return nil
	}
	return r
}
