package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tableside-pos/internal/config"
	"tableside-pos/internal/db"
	httpapi "tableside-pos/internal/http"
	"tableside-pos/internal/http/handlers"
	"tableside-pos/internal/layout"
	"tableside-pos/internal/logger"
	"tableside-pos/internal/menu"
	"tableside-pos/internal/mirror"
	"tableside-pos/internal/order"
	"tableside-pos/internal/printer"
	"tableside-pos/internal/rates"
	"tableside-pos/internal/reconcile"
	"tableside-pos/internal/session"
	"tableside-pos/internal/storage"
	"tableside-pos/internal/store/memstore"
	"tableside-pos/internal/store/postgres"
	"tableside-pos/internal/utils"
	"tableside-pos/internal/ws"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	loc := utils.LoadLocation(cfg.BusinessTimezone)

	var store order.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()
		pg := postgres.New(pool)
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal("database migration failed", zap.Error(err))
		}
		store = pg
	} else {
		if cfg.Env == "production" {
			log.Fatal("DATABASE_URL is required in production")
		}
		log.Warn("DATABASE_URL is empty; orders are kept in memory")
		store = memstore.New()
	}
	engine := reconcile.NewEngine(store, log)

	catalog := menu.Default()
	if cfg.MenuFile != "" {
		loaded, err := menu.LoadFile(cfg.MenuFile)
		if err != nil {
			log.Fatal("menu load failed", zap.String("path", cfg.MenuFile), zap.Error(err))
		}
		catalog = loaded
	}
	log.Info("menu loaded", zap.Int("items", len(catalog.Items())))

	rateCatalog := rates.NewCatalog(rates.DefaultOptions())
	if cfg.DefaultGratuityPercent > 0 {
		if _, err := rateCatalog.AddCustomGratuity(cfg.DefaultGratuityPercent); err != nil {
			log.Warn("default gratuity ignored", zap.Float64("percent", cfg.DefaultGratuityPercent), zap.Error(err))
		}
	}
	if cfg.DefaultDiscountPercent > 0 {
		if _, err := rateCatalog.AddCustomDiscount(cfg.DefaultDiscountPercent); err != nil {
			log.Warn("default discount ignored", zap.Float64("percent", cfg.DefaultDiscountPercent), zap.Error(err))
		}
	}

	printerClient := printer.NewClient(printer.Config{
		Host:           cfg.PrinterHost,
		Port:           cfg.PrinterPort,
		ConnectTimeout: cfg.PrinterConnectTimeout,
		BusinessName:   cfg.BusinessName,
	}, log)
	if printerClient.Configured() {
		log.Info("printer enabled", zap.String("addr", printerClient.Address()))
	} else {
		log.Info("printer disabled (PRINTER_HOST is empty)")
	}
	spooler := printer.NewSpooler(printerClient, cfg.PrinterQueueSize, cfg.PrinterJobTimeout, log)
	go spooler.Run(ctx)

	deps := session.Deps{
		Engine:   engine,
		Rates:    rateCatalog,
		Menu:     catalog,
		Spooler:  spooler,
		Business: session.Business{Name: cfg.BusinessName, Address: cfg.BusinessAddress},
		Location: loc,
		Logger:   log,
	}

	driver, err := mirror.ParseDriver(cfg.MirrorDriver)
	if err != nil {
		log.Fatal("invalid MIRROR_DRIVER", zap.Error(err))
	}
	var mirrorWorker *mirror.Worker
	if driver != mirror.DriverNone {
		pub, err := mirror.NewPublisher(mirror.Options{Driver: driver, URL: cfg.MirrorURL, Timeout: cfg.MirrorTimeout})
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("mirror connection failed", zap.String("driver", string(driver)), zap.Error(err))
			}
			log.Warn("mirror connection failed; continuing without mirror", zap.String("driver", string(driver)), zap.Error(err))
		} else {
			defer pub.Close()
			mirrorWorker = mirror.NewWorker(pub, cfg.MirrorQueueSize, log)
			mirrorWorker.Start(ctx)
			deps.Mirror = mirrorWorker
			log.Info("mirror enabled", zap.String("driver", string(driver)))
		}
	} else {
		log.Info("mirror disabled (MIRROR_DRIVER is none)")
	}

	storeCfg := storage.Config{
		Endpoint:        cfg.ObjectStoreEndpoint,
		Region:          cfg.ObjectStoreRegion,
		AccessKeyID:     cfg.ObjectStoreAccessKeyID,
		SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
		Bucket:          cfg.ObjectStoreBucket,
		PublicBaseURL:   cfg.ObjectStorePublicBaseURL,
		StorageClass:    cfg.ObjectStoreStorageClass,
	}
	if storeCfg.Enabled() {
		archive, err := storage.NewReceiptArchive(ctx, storeCfg)
		if err != nil {
			log.Warn("receipt archive disabled", zap.Error(err))
		} else {
			deps.Archive = archive
			log.Info("receipt archive enabled", zap.String("bucket", storeCfg.Bucket))
		}
	}

	var layoutClient *layout.Client
	if cfg.LayoutURL != "" {
		layoutClient = layout.NewClient(cfg.LayoutURL, cfg.LayoutTimeout)
	}

	sessions := session.NewManager(deps)
	spooler.OnResult(sessions.HandlePrintResult)
	rateCatalog.OnChange(sessions.HandleRatesChange)

	wsServer := ws.New(sessions, log, cfg.WSHeartbeatInterval)
	h := &handlers.Handler{
		Logger:   log,
		Config:   cfg,
		Sessions: sessions,
		Rates:    rateCatalog,
		Menu:     catalog,
		Layout:   layoutClient,
	}
	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(h, wsServer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("pos api ready", zap.String("base", "/api"))
		log.Info("pos ws ready", zap.String("base", "/ws"))
		log.Info("pos service listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}

	stopWorkers()
	<-spooler.Done()
	if mirrorWorker != nil {
		mirrorWorker.Wait()
	}
}
