package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"achievement-sync-system/handlers"
	"achievement-sync-system/middleware"
	"achievement-sync-system/models"
	"achievement-sync-system/services"
	"achievement-sync-system/utils"
	"achievement-sync-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// --- CONFIGURE remote achievement service ---
	remoteURL := os.Getenv("ACHIEVEMENT_SERVICE_URL")
	if remoteURL == "" {
		log.Fatal("ACHIEVEMENT_SERVICE_URL environment variable not set")
	}
	remoteToken := os.Getenv("ACHIEVEMENT_SERVICE_TOKEN")
	remote := services.NewRemoteClient(remoteURL, remoteToken)
	// --- END CONFIG ---

	// Optional R2 (published catalog object)
	catalogObjectKey := os.Getenv("CATALOG_OBJECT_KEY")
	if os.Getenv("CLOUDFLARE_ACCOUNT_ID") != "" {
		if err := utils.InitR2(); err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
	}

	// Catalog: local file wins, then R2 object, then the built-in defaults
	var catalog *services.Catalog
	if path := os.Getenv("CATALOG_PATH"); path != "" {
		var err error
		catalog, err = services.LoadCatalogFromFile(path)
		if err != nil {
			log.Fatal("failed to load catalog file:", err)
		}
		log.Printf("✅ Catalog loaded from %s", path)
	} else if utils.R2Enabled() && catalogObjectKey != "" {
		data, err := utils.FetchCatalogObject(context.Background(), catalogObjectKey)
		if err != nil {
			log.Fatal("failed to fetch catalog from R2:", err)
		}
		defs, disabled, err := services.ParseCatalog(data)
		if err != nil {
			log.Fatal("failed to parse R2 catalog:", err)
		}
		catalog = services.NewCatalog(defs, disabled)
		log.Printf("✅ Catalog loaded from R2 object %s", catalogObjectKey)
	} else {
		catalog = services.NewCatalog(models.DefaultCatalog, nil)
		log.Println("✅ Catalog loaded from built-in defaults")
	}

	// Persistence: postgres when configured, in-memory for local dev
	var store services.ProfileStore
	var notificationService *services.NotificationService
	var db *gorm.DB

	dsn := os.Getenv("DATABASE_URL")
	if dsn != "" {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			log.Fatal("failed to connect to database:", err)
		}

		if err := db.AutoMigrate(
			&models.ProfileSnapshot{},
			&models.Notification{},
		); err != nil {
			log.Fatal("failed to migrate database:", err)
		}

		store = services.NewGormProfileStore(db)
		notificationService = services.NewNotificationService(db)
	} else {
		log.Println("⚠️  DATABASE_URL not set — using in-memory profile store (dev mode, no SSE feed)")
		store = services.NewMemoryProfileStore()
	}

	achievementService := services.NewAchievementService(catalog, store, remote, notificationService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if db != nil {
		resyncWorker := workers.NewAchievementResyncWorker(db, achievementService, 5*time.Minute)
		resyncWorker.Start(ctx)
	}

	achievementService.StartCatalogRefreshScheduler(catalogObjectKey, 15*time.Minute)

	// ✅ Setup routes — enforced Gateway auth, guests allowed on user routes
	handlers.SetupAchievementRoutes(app, achievementService, notificationService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Achievement sync engine ready")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
