package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"filevault/internal/auth"
	"filevault/internal/cache"
	"filevault/internal/config"
	"filevault/internal/domain"
	"filevault/internal/handler"
	"filevault/internal/repository"
	"filevault/internal/service"
	"filevault/internal/service/s3"
)

func connectWithRetry(cfg *config.Config, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	dsn := cfg.Database.GetDSN()

	// Сначала подключаемся к системной базе postgres, она всегда существует
	pgDSN := strings.Replace(dsn, "dbname="+cfg.Database.Name, "dbname=postgres", 1)
	pgDB, err := sqlx.Connect("postgres", pgDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %v", err)
	}
	defer pgDB.Close()

	// Проверяем, существует ли рабочая база
	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", cfg.Database.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %v", err)
	}

	if !exists {
		log.Printf("Database %s does not exist, creating...", cfg.Database.Name)
		_, err = pgDB.Exec("CREATE DATABASE " + cfg.Database.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	var db *sqlx.DB
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", databaseURL)
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// seedAdmin создает учетную запись администратора при первом запуске
func seedAdmin(ctx context.Context, users *repository.UserRepository, cfg config.AdminConfig) error {
	if cfg.Email == "" || cfg.Password == "" {
		return nil
	}

	_, err := users.GetByEmail(ctx, cfg.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(cfg.Password)
	if err != nil {
		return err
	}

	role, err := users.GetRoleByName(ctx, string(domain.RoleAdmin))
	if err != nil {
		return err
	}

	admin := &domain.User{
		Email:          cfg.Email,
		HashedPassword: hash,
		IsActive:       true,
		IsVerified:     true,
		RoleID:         &role.ID,
	}

	if err := users.Create(ctx, admin); err != nil {
		return err
	}

	log.Printf("Seeded admin user %s", cfg.Email)
	return nil
}

func main() {
	// Загружаем конфигурации
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := connectWithRetry(appConfig, 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Подключение к Redis
	redisConfig, err := cache.NewConfig(".redis.env")
	if err != nil {
		log.Fatalf("Failed to load redis config: %v", err)
	}

	cacheClient, err := cache.NewClient(redisConfig)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer cacheClient.Close()

	// Инициализация S3 клиента
	s3Config, err := s3.NewConfig(".s3.env")
	if err != nil {
		log.Fatalf("Failed to load S3 config: %v", err)
	}

	s3Client, err := s3.NewClient(s3Config)
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	// Настройка JWT
	authConfig, err := auth.NewConfig(".auth.env")
	if err != nil {
		log.Fatalf("Failed to load auth config: %v", err)
	}
	tokenManager := auth.NewManager(authConfig)

	// Инициализация репозиториев
	userRepo := repository.NewUserRepository(db)
	fileRepo := repository.NewFileRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	shareRepo := repository.NewShareRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	ctx := context.Background()
	if err := seedAdmin(ctx, userRepo, appConfig.Admin); err != nil {
		log.Fatalf("Failed to seed admin user: %v", err)
	}

	// Инициализация сервисов
	hasher := auth.BcryptHasher{}
	auditService := service.NewAuditService(auditRepo)
	authService := service.NewAuthService(userRepo, tokenManager, hasher, cacheClient, auditService)
	userService := service.NewUserService(userRepo, auditService)
	fileService := service.NewFileService(fileRepo, permRepo, s3Client, auditService, s3Config.Bucket, appConfig.Server.MaxFileSizeMB)
	shareService := service.NewShareService(fileRepo, permRepo, shareRepo, cacheClient, auditService, hasher, appConfig.Server.BaseURL)

	// Инициализация хендлеров
	authHandler := handler.NewAuthHandler(tokenManager, authService)
	userHandler := handler.NewUserHandler(tokenManager, authService, userService)
	fileHandler := handler.NewFileHandler(tokenManager, authService, fileService, appConfig.Server.MaxFileSizeMB)
	shareHandler := handler.NewShareHandler(tokenManager, authService, shareService, s3Client)
	auditHandler := handler.NewAuditHandler(tokenManager, authService, auditService)
	healthHandler := handler.NewHealthHandler(db, cacheClient, s3Client)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Minute))
	r.Use(handler.RequestMeta)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// HTTP маршруты
	r.Route("/api/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r)
		userHandler.RegisterRoutes(r)
		fileHandler.RegisterRoutes(r)
		shareHandler.RegisterRoutes(r)
		auditHandler.RegisterRoutes(r)
		healthHandler.RegisterRoutes(r)
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	// Канал для сигналов завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("HTTP server listening on :%s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
