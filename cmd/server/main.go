package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/doc2md/backend/internal/api"
	"github.com/doc2md/backend/internal/batch"
	"github.com/doc2md/backend/internal/config"
	"github.com/doc2md/backend/internal/convert"
	"github.com/doc2md/backend/internal/credentials"
	"github.com/doc2md/backend/internal/filecheck"
	"github.com/doc2md/backend/internal/storage"
	"github.com/doc2md/backend/internal/upstream/cloudflare"
	"github.com/doc2md/backend/internal/upstream/mistral"
	"github.com/doc2md/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	configPath := flag.StringP("config", "c", filepath.Join(exeDir, "doc2md.config"), "path to the XML configuration file")
	port := flag.IntP("port", "p", 0, "listen port (overrides config and PORT)")
	flag.Parse()

	// .env files only fill variables that are not already set
	envFiles := config.LoadDotEnv(".")
	if abs, _ := filepath.Abs("."); abs != exeDir {
		envFiles = append(envFiles, config.LoadDotEnv(exeDir)...)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger := config.NewLogger(os.Stdout, cfg.Advanced)
	slog.SetDefault(logger)

	// Only fails on an invalid GOMAXPROCS value; runtime defaults apply then.
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))
	for _, f := range envFiles {
		logger.Info("loaded environment file", "path", f)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Error("failed to create directories", "error", err)
		os.Exit(1)
	}

	embeddedMode := web.HasEmbeddedFiles()

	tempStore, err := storage.NewLocalStore(cfg.GetTempDir())
	if err != nil {
		logger.Error("failed to initialize temp storage", "error", err)
		os.Exit(1)
	}

	credStore := credentials.NewStore(credentials.NewFileStorage(cfg.Storage.CredentialsFile), cfg.Credentials)
	if err := credStore.Load(); err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}

	upstreamClient := &http.Client{Timeout: time.Duration(cfg.Services.UpstreamTimeoutSeconds) * time.Second}

	cfClient := cloudflare.NewClient(cfg.Services.CloudflareBaseURL, upstreamClient, logger)
	mistralClient := mistral.NewClient(mistral.Options{
		BaseURL:     cfg.Services.MistralBaseURL,
		Model:       cfg.Services.MistralModel,
		Purpose:     cfg.Services.MistralPurpose,
		ExpiryHours: cfg.Services.SignedURLExpiryHours,
		HTTPClient:  upstreamClient,
		Logger:      logger,
	})

	orchestrator := convert.NewOrchestrator(
		convert.NewForwardingBackend(cfg.GetForwarderURL(), nil),
		convert.NewOCRBackend(mistralClient),
		logger,
	)
	batchMgr := batch.NewManager(orchestrator, tempStore, cfg.PrimaryTimeout(), logger)

	// Start background batch cleanup
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Conversion.CleanupIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			batchMgr.CleanupOldBatches(time.Duration(cfg.Conversion.BatchRetentionMinutes) * time.Minute)
		}
	}()

	handlers := api.NewHandlers(&api.Dependencies{
		Store:          tempStore,
		Converter:      cfClient,
		Credentials:    credStore,
		Validator:      filecheck.New(cfg.MaxSecondaryFileSize()),
		Batches:        batchMgr,
		EnvCredentials: cfg.Credentials,
		Version:        Version,
		Logger:         logger,
	})

	e := echo.New()
	e.HideBanner = true
	api.SetupMiddleware(e, logger)

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || strings.HasPrefix(path, "/api/ws/")
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/api/ws/") ||
				strings.HasSuffix(path, "/convert") ||
				path == "/api/batches"
		},
		ErrorMessage: "Request timeout",
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, "/api/ws/")
		},
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{
				echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept,
				convert.HeaderAccountID, convert.HeaderAPIToken, api.HeaderSecondaryKey,
			},
		}))
	}

	api.RegisterRoutes(e, handlers)

	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logger.Warn("failed to register static routes", "error", err)
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           doc2md Conversion Server                        ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Credentials:%-45s║\n", " "+string(credStore.State()))
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", *configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}

	if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
