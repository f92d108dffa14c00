package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"learnhub/cache"
	"learnhub/config"
	authControllers "learnhub/controllers/auth"
	controllers "learnhub/controllers/course"
	"learnhub/database"
	"learnhub/jobs"
	"learnhub/logger"
	"learnhub/renderer"
	"learnhub/routers"
	"learnhub/services"
	"learnhub/storage"
	"learnhub/utils"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.LoadConfig()

	appLog, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer appLog.Sync()

	db := database.ConnectDb(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg, appLog)
	if err != nil {
		appLog.Fatal("Failed to initialise storage", "error", err)
	}

	// a nil interface keeps verification uncached
	var verifyCache services.Cache
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(cfg.RedisAddr, "learnhub")
		if err != nil {
			appLog.Warn("Redis unavailable, verification cache disabled", "error", err)
		} else {
			defer rc.Close()
			verifyCache = rc
		}
	}

	queue := jobs.NewQueue(db)
	issuer := services.NewCertificateIssuer(db, queue, store, renderer.NewCertificatePDF("LearnHub"), verifyCache, appLog,
		services.IssuerOptions{
			Prefix:         cfg.CertificatePrefix,
			Attempts:       cfg.CertificateIssueAttempts,
			PublicBaseURL:  cfg.PublicBaseURL,
			VerifyCacheTTL: cfg.VerifyCacheTTL,
			MaxRenderJobs:  cfg.CertificateMaxRenderJobs,
		})

	mailer, err := utils.NewMailer(cfg, appLog)
	if err != nil {
		appLog.Fatal("Failed to initialise mailer", "error", err)
	}
	issuer.OnReady(utils.CertificateMailHook(mailer))
	if cfg.CertificateWebhookURL != "" {
		issuer.OnReady(utils.NewCertificateWebhook(cfg.CertificateWebhookURL).Hook())
	}

	completion := services.NewCompletionWorkflow(db, issuer, appLog)
	tracker := services.NewEnrollmentTracker(db, completion, appLog)

	courseHandler := &controllers.CourseController{
		Catalog:    services.NewCatalog(db, appLog),
		Tracker:    tracker,
		Completion: completion,
		Grader:     services.NewQuizGrader(db, appLog),
		Issuer:     issuer,
		Reviews:    services.NewReviews(db, appLog),
		Log:        appLog,
	}
	authHandler := &authControllers.AuthController{
		Accounts: services.NewAccounts(db, cfg.SaltRound, appLog),
		Log:      appLog,
	}

	worker := jobs.NewWorker(db, appLog, jobs.WorkerOptions{
		Concurrency:  cfg.PdfWorkerConcurrency,
		PollInterval: cfg.PdfWorkerPollInterval,
		MaxAttempts:  cfg.PdfJobMaxAttempts,
		RetryDelay:   cfg.PdfJobRetryDelay,
		StaleAfter:   cfg.PdfJobStaleAfter,
	})
	worker.Register(services.JobTypeRenderCertificate, issuer.RenderPDF)

	maintenance := &utils.Maintenance{Tracker: tracker, Issuer: issuer, Log: appLog}
	scheduler, err := maintenance.StartScheduler(ctx)
	if err != nil {
		appLog.Fatal("Failed to start scheduler", "error", err)
	}
	defer scheduler.Stop()

	app := routers.New(authHandler, courseHandler, routers.Options{
		RequestLog: !cfg.IsProduction(),
		PublicDir:  "./public",
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		appLog.Info("Server is running", "port", cfg.Port)
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		appLog.Info("Shutting down")
		return app.Shutdown()
	})

	if err := g.Wait(); err != nil {
		appLog.Error("Stopped with error", "error", err)
	}
}
