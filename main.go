// @title           Linha Viva API
// @version         1.0
// @description     Transmission line construction backend - production progress tracking, tower imports and work stage reporting.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    https://linhaviva.blueinvent.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      https://linhaviva.blueinvent.com

// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @schemes http https
package main

import (
	"backend/handlers"
	"backend/repository"
	"backend/services"
	"backend/storage"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func CORSConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{
		"https://linhaviva.blueinvent.com",
		"http://localhost:9000",
		"http://localhost:8080",
		"http://localhost:3000",
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		"X-Requested-With", "Cache-Control",
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	return corsConfig
}

var cronRunning int32

func safeGo(
	ctx context.Context,
	wg *sync.WaitGroup,
	name string,
	fn func(context.Context) error,
	cronLogger *log.Logger,
) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in %s: %v\n%s", name, r, debug.Stack())
				if cronLogger != nil {
					cronLogger.Printf("PANIC in %s: %v\n%s", name, r, debug.Stack())
				}
			}
		}()

		if err := fn(ctx); err != nil {
			log.Printf("%s failed: %v", name, err)
			if cronLogger != nil {
				cronLogger.Printf("%s failed: %v", name, err)
			}
		} else {
			log.Printf("%s completed successfully", name)
			if cronLogger != nil {
				cronLogger.Printf("%s completed successfully", name)
			}
		}
	}()
}

// ginPathToSwaggerPath converts Gin path params :param to Swagger {param}
var ginPathParamRe = regexp.MustCompile(`:([^/]+)`)

func ginPathToSwaggerPath(path string) string {
	return ginPathParamRe.ReplaceAllString(path, "{$1}")
}

// Common API response/request models for Swagger so Example Value and Model show real JSON structure.
var swaggerDefinitions = map[string]interface{}{
	"ApiResponseDataItem": map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id":              map[string]interface{}{"type": "string", "example": "8f14e45f-ea2b-4d1c-a5c7-0b1f6f0e9b21"},
			"projectId":       map[string]interface{}{"type": "string", "example": "proj_731623920"},
			"elementId":       map[string]interface{}{"type": "string", "example": "el_0412"},
			"activityId":      map[string]interface{}{"type": "string", "example": "act_foundation"},
			"currentStatus":   map[string]interface{}{"type": "string", "example": "IN_PROGRESS"},
			"progressPercent": map[string]interface{}{"type": "number", "example": 42.5},
			"createdAt":       map[string]interface{}{"type": "string", "format": "date-time", "example": "2026-01-28T05:49:18.445326Z"},
			"updatedAt":       map[string]interface{}{"type": "string", "format": "date-time", "example": "2026-02-04T12:26:17.582917Z"},
		},
	},
	"ApiResponse": map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"data": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"$ref": "#/definitions/ApiResponseDataItem"},
				"description": "List of items (structure may vary by endpoint)",
			},
			"message": map[string]interface{}{"type": "string", "example": "progress fetched successfully"},
		},
	},
	"ApiRequest": map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"elementId":  map[string]interface{}{"type": "string", "example": "el_0412"},
			"activityId": map[string]interface{}{"type": "string", "example": "act_foundation"},
			"status":     map[string]interface{}{"type": "string", "example": "IN_PROGRESS"},
			"progress":   map[string]interface{}{"type": "number", "example": 42.5},
		},
		"description": "Request body (fields may vary by endpoint)",
	},
}

// buildSwaggerFromRoutes returns a handler that serves Swagger 2.0 JSON with all registered routes.
func buildSwaggerFromRoutes(engine *gin.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		paths := make(map[string]interface{})
		for _, route := range engine.Routes() {
			if strings.HasPrefix(route.Path, "/swagger") {
				continue
			}
			path := ginPathToSwaggerPath(route.Path)
			if paths[path] == nil {
				paths[path] = make(map[string]interface{})
			}
			method := strings.ToLower(route.Method)

			op := map[string]interface{}{
				"summary":     route.Method + " " + route.Path,
				"description": "API endpoint: " + route.Path,
				"tags":        []string{"API"},
				"produces":    []string{"application/json"},
				"responses": map[string]interface{}{
					"200": map[string]interface{}{
						"description": "Success - returns JSON",
						"schema":      map[string]interface{}{"$ref": "#/definitions/ApiResponse"},
					},
					"400": map[string]interface{}{
						"description": "Bad Request",
						"schema": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"error": map[string]interface{}{"type": "string"},
							},
						},
					},
					"500": map[string]interface{}{
						"description": "Internal Server Error",
						"schema": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"error": map[string]interface{}{"type": "string"},
							},
						},
					},
				},
			}

			if method == "post" || method == "put" || method == "patch" {
				op["consumes"] = []string{"application/json"}
				op["parameters"] = []map[string]interface{}{
					{
						"in":          "body",
						"name":        "body",
						"required":    true,
						"description": "JSON body. See model below; fields may vary by endpoint.",
						"schema":      map[string]interface{}{"$ref": "#/definitions/ApiRequest"},
					},
				}
			}

			(paths[path].(map[string]interface{}))[method] = op
		}

		c.JSON(http.StatusOK, map[string]interface{}{
			"swagger": "2.0",
			"info": map[string]interface{}{
				"title":       "Linha Viva API",
				"version":     "1.0",
				"description": "Transmission line construction backend.",
			},
			"basePath":    "/",
			"paths":       paths,
			"definitions": swaggerDefinitions,
		})
	}
}

func main() {
	db := storage.InitDB()
	gormDB := storage.InitGormDB()

	if err := storage.AutoMigrate(gormDB); err != nil {
		log.Fatalf("Failed to migrate database schema: %v", err)
	}

	// Repositories and services
	progressRepo := repository.NewGormProgressRepository(gormDB)
	towerProdRepo := repository.NewGormTowerProductionRepository(gormDB)
	towerConstrRepo := repository.NewGormTowerConstructionRepository(gormDB)
	elementRepo := repository.NewGormMapElementRepository(gormDB)
	workStageRepo := repository.NewGormWorkStageRepository(gormDB)

	progressSvc := services.NewProgressService(progressRepo)
	towerImportSvc := services.NewTowerImportService(towerProdRepo, towerConstrRepo, elementRepo)
	constructionSvc := services.NewTowerConstructionService(towerProdRepo, towerConstrRepo, elementRepo)

	// Setup cron job to run maintenance daily at 02:30
	c := cron.New(
		cron.WithLogger(cron.VerbosePrintfLogger(log.New(os.Stdout, "cron: ", log.LstdFlags))),
	)

	cronLogFile, err := os.OpenFile("cron_errors.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Printf("Failed to open cron error log file: %v", err)
	}
	cronLogger := log.New(cronLogFile, "CRON_ERROR: ", log.LstdFlags)

	_, err = c.AddFunc("30 2 * * *", func() {
		if !atomic.CompareAndSwapInt32(&cronRunning, 0, 1) {
			log.Println("Previous cron still running. Skipping this run.")
			if cronLogger != nil {
				cronLogger.Println("Previous cron still running. Skipping this run.")
			}
			return
		}
		defer atomic.StoreInt32(&cronRunning, 0)

		log.Println("Starting nightly maintenance cron job")

		ctx, cancel := context.WithTimeout(context.Background(), 25*time.Minute)
		defer cancel()

		var wg sync.WaitGroup

		safeGo(ctx, &wg, "CleanupExpiredSessions", func(ctx context.Context) error {
			return storage.CleanupExpiredSessions(db)
		}, cronLogger)

		safeGo(ctx, &wg, "CleanupOldActivityLogs", func(ctx context.Context) error {
			return storage.CleanupOldActivityLogs(db)
		}, cronLogger)

		safeGo(ctx, &wg, "ResyncWorkStages", func(ctx context.Context) error {
			targets, err := workStageRepo.FindSyncTargets()
			if err != nil {
				return err
			}
			for _, t := range targets {
				if err := progressSvc.SyncProjectActivity(t.ProjectID, t.ActivityID, "nightly-sync"); err != nil {
					log.Printf("nightly sync failed for project %s activity %s: %v", t.ProjectID, t.ActivityID, err)
				}
			}
			return nil
		}, cronLogger)

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			log.Println("All cron jobs finished")
		case <-ctx.Done():
			log.Println("Cron timeout reached, jobs cancelled")
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule nightly maintenance cron job: %v", err)
	}

	c.Start()

	r := gin.Default()
	r.MaxMultipartMemory = 8 << 20

	r.Use(cors.New(CORSConfig()))

	// ==================== PRODUCTION PROGRESS ====================
	r.POST("/api/production/progress", handlers.UpdateProgress(progressSvc, db))
	r.POST("/api/production/progress/batch", handlers.UpdateProgressBatch(progressSvc, db))
	r.POST("/api/production/progress/:progress_id/approve", handlers.ApproveProgressLog(progressSvc, db))
	r.POST("/api/production/progress/:progress_id/daily", handlers.RecordDailyProduction(progressSvc, db))
	r.GET("/api/production/pending-logs", handlers.GetPendingLogs(progressSvc))
	r.POST("/api/production/sync/:project_id/:activity_id", handlers.SyncProjectActivity(progressSvc))

	r.GET("/api/element/:element_id/progress", handlers.GetElementProgress(progressSvc))
	r.GET("/api/element/:element_id/logs", handlers.GetElementLogs(progressSvc))
	r.GET("/api/project/:project_id/progress", handlers.GetProjectProgress(progressSvc))

	// ==================== TOWERS & IMPORTS ====================
	r.POST("/api/project/:project_id/towers/import", handlers.ImportTowers(towerImportSvc, db))
	r.POST("/api/project/:project_id/construction/import", handlers.ImportConstructionData(constructionSvc, db))
	r.GET("/api/project/:project_id/towers", handlers.GetProjectTowers(elementRepo))
	r.GET("/api/project/:project_id/towers/production", handlers.GetProjectProductionTowers(towerProdRepo))
	r.GET("/api/project/:project_id/towers/construction", handlers.GetProjectConstructionTowers(towerConstrRepo))
	r.GET("/api/tower/:tower_id/qrcode", handlers.GetTowerQRCode(elementRepo))

	// ==================== WORK STAGES ====================
	r.GET("/api/site/:site_id/work-stages", handlers.GetSiteWorkStages(workStageRepo))

	// ==================== EXPORTS & REPORTS ====================
	r.POST("/api/project/:project_id/progress/export-link", handlers.RequestProgressExport())
	r.GET("/api/project/:project_id/progress/export", handlers.ExportProjectProgress(progressSvc))
	r.GET("/api/project/:project_id/progress/summary.pdf", handlers.GetProgressSummaryPDF(progressSvc))

	// ==================== AUDIT ====================
	r.GET("/api/logs", handlers.GetActivityLogsHandler(db))
	r.GET("/api/log/search", handlers.SearchActivityLogsHandler(db))

	// ==================== SWAGGER ====================
	swaggerDoc := buildSwaggerFromRoutes(r)
	swaggerUI := ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json"))
	r.GET("/swagger/*any", func(c *gin.Context) {
		// doc.json is served from the route table, everything else is the UI
		if c.Param("any") == "/doc.json" {
			swaggerDoc(c)
			return
		}
		swaggerUI(c)
	})

	// Get port from environment variable or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "9000"
	}

	portInt, err := strconv.Atoi(port)
	if err != nil {
		log.Fatalf("Invalid PORT environment variable: %s. Must be a number.", port)
	}
	if portInt < 0 || portInt > 65535 {
		log.Fatalf("Invalid PORT: %d. Must be between 0 and 65535.", portInt)
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exiting")
}
