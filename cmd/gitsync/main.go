package main

import (
	"context"
	"log"
	"os"
	"time"

	v1 "go_gitsync/api/v1"
	"go_gitsync/internal/activity"
	"go_gitsync/internal/alert"
	"go_gitsync/internal/cache"
	"go_gitsync/internal/catalog"
	"go_gitsync/internal/config"
	"go_gitsync/internal/db"
	"go_gitsync/internal/gitconf"
	"go_gitsync/internal/gitsync"
	"go_gitsync/internal/lock"
	"go_gitsync/internal/queue"
	"go_gitsync/internal/syncerrors"
	"go_gitsync/internal/tree"
	"go_gitsync/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
		os.Exit(1)
	}
	log.Println("✓ Configuration loaded")

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger := logrus.NewEntry(logrus.StandardLogger())

	// 2. Initialize MySQL
	if err := db.InitMySQL(cfg.MySQL.DSN); err != nil {
		log.Fatalf("Failed to initialize MySQL: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Migrate {
		if err := db.Migrate(db.Get()); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
			os.Exit(1)
		}
	}

	// 3. Initialize Redis (backs the per-account selection lock)
	if err := cache.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
		os.Exit(1)
	}
	defer cache.Close()

	// 4. Wire the service layer
	gdb := db.Get()
	gitConfigs := gitconf.NewService(gdb)
	changeSets := queue.NewChangeSetService(gdb, gitConfigs, logger, cfg.QueueRunner.MaxRetryCount)
	commits := gitsync.NewCommitService(gdb, logger)
	activities := activity.NewService(gdb, logger)
	alerts := alert.NewService(gdb, logger)
	syncErrors := syncerrors.NewService(gdb, alerts, logger)
	trees := tree.NewBuilder(gdb, logger)
	processor := catalog.NewProcessor(gdb, logger)
	waiter := gitsync.NewWaiter(logger)
	tasks := gitsync.NewHTTPTaskClient(cfg.GitTask)
	dispatcher := gitsync.NewService(changeSets, gitConfigs, commits, activities, syncErrors, alerts,
		waiter, tasks, trees, processor, cfg.GitTask, logger)
	catalogSvc := catalog.NewService(gdb, changeSets, trees, logger)
	tokens := webhook.NewTokenService(gdb)
	ingestor := webhook.NewIngestor(gitConfigs, commits, changeSets, tokens, logger)

	// 5. Start the queue runner
	runnerCtx, stopRunner := context.WithCancel(context.Background())
	defer stopRunner()
	if cfg.QueueRunner.Enabled {
		locker := lock.NewRedisLocker(cache.Client, logger)
		runner := queue.NewRunner(changeSets, dispatcher, locker, queue.RunnerConfig{
			Interval:             time.Duration(cfg.QueueRunner.IntervalSec) * time.Second,
			MaxRunningPerAccount: cfg.QueueRunner.MaxRunningPerAccount,
			LockWaitTimeout:      time.Duration(cfg.QueueRunner.LockWaitTimeoutSec) * time.Second,
			LockLease:            time.Duration(cfg.QueueRunner.LockLeaseSec) * time.Second,
		}, logger)
		go runner.RunLoop(runnerCtx)
	}

	// 6. Initialize Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	v1.SetupRouter(r, &v1.Services{
		Config:     cfg,
		GitConfigs: gitConfigs,
		ChangeSets: changeSets,
		Commits:    commits,
		Activities: activities,
		SyncErrors: syncErrors,
		Alerts:     alerts,
		Catalog:    catalogSvc,
		Dispatcher: dispatcher,
		Ingestor:   ingestor,
		Tokens:     tokens,
	})

	log.Printf("✓ Server starting on %s", cfg.HTTPAddr)

	// Start server
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
		os.Exit(1)
	}
}
