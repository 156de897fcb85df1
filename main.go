package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	apihttp "utilibill/internal/api/http"
	"utilibill/internal/auth"
	billingcycle "utilibill/internal/billingcycle/domain"
	"utilibill/internal/docstore"
	"utilibill/internal/maildraft"
	"utilibill/internal/notification"
	"utilibill/internal/observability/metrics"
	"utilibill/internal/orchestrator"
	portalapp "utilibill/internal/portal/application"
	"utilibill/internal/portal/infrastructure/chrome"
	reconcile "utilibill/internal/reconcile/domain"
	reconcilexlsx "utilibill/internal/reconcile/infrastructure/excel"
	registry "utilibill/internal/registry/domain"
	registryxlsx "utilibill/internal/registry/infrastructure/excel"
	runstore "utilibill/internal/runstore/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
	}
	metrics.Init(db, logger)

	profile, err := portalapp.LoadProfile()
	if err != nil {
		logger.Fatalf("portal profile error: %v", err)
	}

	factory, err := chrome.NewFactory(chrome.Config{
		Headless:    cfg.Headless,
		DownloadDir: profile.DownloadDir,
	})
	if err != nil {
		logger.Fatalf("chrome factory error: %v", err)
	}
	acquirer, err := portalapp.NewAcquirer(profile,
		portalapp.WithAcquirerLogger(logger),
		portalapp.WithAttemptObserver(metrics.IncAcquisitionAttempt),
	)
	if err != nil {
		logger.Fatalf("acquirer error: %v", err)
	}
	fetcher, err := portalapp.NewFetcher(factory, profile, acquirer,
		portalapp.WithFetcherLogger(logger),
		portalapp.WithSessionOptions(portalapp.WithSessionLogger(logger)),
	)
	if err != nil {
		logger.Fatalf("fetcher error: %v", err)
	}

	norm := registry.NewNormalizer()
	loader, err := registryxlsx.NewLoader(norm, registryxlsx.WithLogger(logger))
	if err != nil {
		logger.Fatalf("registry loader error: %v", err)
	}
	parser, err := reconcilexlsx.NewParser(norm, reconcilexlsx.WithLogger(logger))
	if err != nil {
		logger.Fatalf("export parser error: %v", err)
	}

	calculator := billingcycle.NewCalculator(billingcycle.WithGraceDays(cfg.GraceDays))

	store, err := docstore.NewClient(cfg.DocstoreURL, cfg.DocstoreToken)
	if err != nil {
		logger.Fatalf("docstore client error: %v", err)
	}
	assembler, err := notification.NewAssembler(store,
		notification.WithCurrency(cfg.Currency),
		notification.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("assembler error: %v", err)
	}

	serviceOpts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	var runsRepo *runstore.Repository
	if db != nil {
		runsRepo = runstore.NewRepository(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := runsRepo.EnsureSchema(ctx); err != nil {
			logger.Fatalf("archive schema error: %v", err)
		}
		cancel()
		serviceOpts = append(serviceOpts, orchestrator.WithArchive(runsRepo))
	}
	if cfg.MaildraftURL != "" {
		drafter, err := maildraft.NewClient(cfg.MaildraftURL, cfg.MaildraftToken)
		if err != nil {
			logger.Fatalf("maildraft client error: %v", err)
		}
		serviceOpts = append(serviceOpts, orchestrator.WithDrafter(drafter))
	}

	service, err := orchestrator.NewService(calculator, fetcher, parser, loader,
		cfg.RegistryPath, reconcile.NewReconciler(reconcile.WithLogger(logger)), assembler, serviceOpts...)
	if err != nil {
		logger.Fatalf("orchestrator error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	latest := &apihttp.LatestStore{}
	mux := http.NewServeMux()
	mux.Handle("/api/v1/reconciliations", apihttp.NewRunHandler(service, latest, logger))
	mux.Handle("/api/v1/reconciliations/latest", apihttp.NewLatestHandler(latest))
	mux.Handle("/api/v1/exports/results.xlsx", apihttp.NewExportXLSXHandler(latest, cfg.Currency))
	mux.Handle("/api/v1/notifications", apihttp.NewNotificationHandler(service, latest, logger))
	mux.Handle("/api/v1/runs", apihttp.NewRunsHandler(runsRepo))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL    string
	HTTPAddr       string
	RegistryPath   string
	Currency       string
	GraceDays      int
	Headless       bool
	DocstoreURL    string
	DocstoreToken  string
	MaildraftURL   string
	MaildraftToken string
	JWTSecret      string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:    getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		RegistryPath:   getenvDefault("REGISTRY_PATH", "registry.xlsx"),
		Currency:       getenvDefault("CURRENCY", "EUR"),
		GraceDays:      getenvIntDefault("CYCLE_GRACE_DAYS", billingcycle.DefaultGraceDays),
		Headless:       getenvBoolDefault("BROWSER_HEADLESS", true),
		DocstoreURL:    getenvDefault("DOCSTORE_URL", ""),
		DocstoreToken:  getenvDefault("DOCSTORE_TOKEN", ""),
		MaildraftURL:   getenvDefault("MAILDRAFT_URL", ""),
		MaildraftToken: getenvDefault("MAILDRAFT_TOKEN", ""),
		JWTSecret:      getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DocstoreURL == "" {
		log.Fatal("DOCSTORE_URL is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
