package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	httpadapter "github.com/pecorino-jp/ledger/internal/adapter/http"
	"github.com/pecorino-jp/ledger/internal/adapter/notification"
	"github.com/pecorino-jp/ledger/internal/adapter/repository/postgres"
	"github.com/pecorino-jp/ledger/internal/adapter/sequence"
	"github.com/pecorino-jp/ledger/internal/config"
	"github.com/pecorino-jp/ledger/internal/domain"
	"github.com/pecorino-jp/ledger/internal/usecase/account"
	"github.com/pecorino-jp/ledger/internal/usecase/accountnumber"
	"github.com/pecorino-jp/ledger/internal/usecase/deposit"
	"github.com/pecorino-jp/ledger/internal/usecase/exporter"
	"github.com/pecorino-jp/ledger/internal/usecase/pay"
	"github.com/pecorino-jp/ledger/internal/usecase/settlement"
	"github.com/pecorino-jp/ledger/internal/usecase/taskrunner"
	"github.com/pecorino-jp/ledger/internal/usecase/transfer"
	"github.com/pecorino-jp/ledger/internal/usecase/withdraw"
)

const defaultConfigPath = "ledger.yml"

func main() {
	// .env is optional; container deployments set real environment variables.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// 1. Setup Database
	db, err := postgres.NewDB(cfg.ConnectionString())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := sequence.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	// 2. Initialize Repositories
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	actionRepo := postgres.NewActionRepository(db)
	taskRepo := postgres.NewTaskRepository(db)

	// 3. Initialize Services (Use Cases)
	issuer := accountnumber.NewIssuer(sequence.NewRedisDayCounter(redisClient))
	accountService := account.NewService(accountRepo, issuer)
	depositService := deposit.NewService(accountRepo, transactionRepo)
	withdrawService := withdraw.NewService(accountRepo, transactionRepo)
	transferService := transfer.NewService(accountRepo, transactionRepo)
	payService := pay.NewService(accountRepo, transactionRepo)
	settlementService := settlement.NewService(accountRepo, transactionRepo, actionRepo, logger)
	exportService := exporter.NewExporter(transactionRepo, taskRepo, logger, cfg.Scheduler.TaskMaxTries)

	var reporter taskrunner.Reporter
	if cfg.Notification.WebhookURL != "" {
		reporter = notification.NewWebhookReporter(cfg.Notification.WebhookURL)
	}

	registry := taskrunner.NewRegistry()
	registry.Register(domain.TaskNameMoneyTransfer, func(ctx context.Context, data json.RawMessage) error {
		var payload domain.MoneyTransferTaskData
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		_, err := settlementService.TransferMoney(ctx, payload.ActionAttributes)
		return err
	})
	registry.Register(domain.TaskNameCancelMoneyTransfer, func(ctx context.Context, data json.RawMessage) error {
		var payload domain.CancelMoneyTransferTaskData
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return settlementService.CancelMoneyTransfer(ctx, payload.Transaction)
	})
	registry.Register(domain.TaskNameReturnMoneyTransfer, func(ctx context.Context, data json.RawMessage) error {
		var payload domain.ReturnMoneyTransferTaskData
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return settlementService.ReturnMoneyTransfer(ctx, payload.Purpose)
	})

	runner := taskrunner.NewRunner(taskRepo, registry, reporter, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 4. Start the HTTP API
	accountHandler := httpadapter.NewAccountHandler(accountService, accountRepo)
	transactionHandler := httpadapter.NewTransactionHandler(depositService, withdrawService, transferService, payService, exportService)
	router := httpadapter.NewRouter(accountHandler, transactionHandler)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// 5. Start the scheduler loops

	var wg sync.WaitGroup
	sched := cfg.Scheduler

	// One claim loop per task name, all sharing one pool of worker slots.
	workers := make(chan struct{}, sched.MaxParallelTasks)
	taskNames := []domain.TaskName{
		domain.TaskNameMoneyTransfer,
		domain.TaskNameCancelMoneyTransfer,
		domain.TaskNameReturnMoneyTransfer,
	}
	for _, name := range taskNames {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			runTaskLoop(ctx, runner, name, workers, sched.PollInterval.Std(), logger)
		}()
	}

	// Export loops drain finished transactions into tasks.
	exportTargets := []struct {
		typeOf domain.TransactionType
		status domain.TransactionStatus
	}{
		{domain.TransactionTypeDeposit, domain.TransactionStatusConfirmed},
		{domain.TransactionTypeDeposit, domain.TransactionStatusCanceled},
		{domain.TransactionTypeDeposit, domain.TransactionStatusExpired},
		{domain.TransactionTypeWithdraw, domain.TransactionStatusConfirmed},
		{domain.TransactionTypeWithdraw, domain.TransactionStatusCanceled},
		{domain.TransactionTypeWithdraw, domain.TransactionStatusExpired},
		{domain.TransactionTypeTransfer, domain.TransactionStatusConfirmed},
		{domain.TransactionTypeTransfer, domain.TransactionStatusCanceled},
		{domain.TransactionTypeTransfer, domain.TransactionStatusExpired},
		{domain.TransactionTypePay, domain.TransactionStatusConfirmed},
		{domain.TransactionTypePay, domain.TransactionStatusCanceled},
		{domain.TransactionTypePay, domain.TransactionStatusExpired},
	}
	for _, target := range exportTargets {
		target := target
		wg.Add(1)
		go func() {
			defer wg.Done()
			runExportLoop(ctx, exportService, target.typeOf, target.status, sched.PollInterval.Std(), logger)
		}()
	}

	// Sweeps recover everything the happy path dropped.
	sweeps := []struct {
		name     string
		interval time.Duration
		run      func(context.Context) error
	}{
		{"makeExpired", sched.SweepInterval.Std(), exportService.MakeExpired},
		{"reexportTasks", sched.SweepInterval.Std(), func(ctx context.Context) error {
			return exportService.Reexport(ctx, sched.RetryInterval.Std())
		}},
		{"retryTasks", sched.SweepInterval.Std(), func(ctx context.Context) error {
			return runner.Retry(ctx, sched.RetryInterval.Std())
		}},
		{"abortTasks", sched.SweepInterval.Std(), func(ctx context.Context) error {
			for {
				aborted, err := runner.Abort(ctx, sched.AbortInterval.Std())
				if err != nil || !aborted {
					return err
				}
			}
		}},
	}
	for _, sweep := range sweeps {
		sweep := sweep
		wg.Add(1)
		go func() {
			defer wg.Done()
			runSweepLoop(ctx, sweep.name, sweep.interval, sweep.run, logger)
		}()
	}

	logger.Info("ledger scheduler started",
		zap.Int("maxParallelTasks", sched.MaxParallelTasks),
		zap.Duration("pollInterval", sched.PollInterval.Std()))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", zap.Error(err))
	}

	wg.Wait()
	logger.Info("stopped")
}

// runTaskLoop polls for runnable tasks with the given name. Each claim takes
// a worker slot, so the combined loops never run more than the configured
// number of tasks at once.
func runTaskLoop(ctx context.Context, runner *taskrunner.Runner, name domain.TaskName, workers chan struct{}, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		select {
		case <-ctx.Done():
			return
		case workers <- struct{}{}:
		}

		// Drain the backlog before sleeping again.
		for ctx.Err() == nil {
			claimed, err := runner.ExecuteOneByName(ctx, name)
			if err != nil && ctx.Err() == nil {
				logger.Error("task loop error", zap.String("name", string(name)), zap.Error(err))
			}
			if !claimed {
				break
			}
		}
		<-workers
	}
}

func runExportLoop(ctx context.Context, e *exporter.Exporter, typeOf domain.TransactionType, status domain.TransactionStatus, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Drain everything that is ready before sleeping again.
		for {
			exported, err := e.ExportTasks(ctx, typeOf, status)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("export loop error",
						zap.String("typeOf", string(typeOf)),
						zap.String("status", string(status)),
						zap.Error(err))
				}
				break
			}
			if !exported {
				break
			}
		}
	}
}

func runSweepLoop(ctx context.Context, name string, interval time.Duration, run func(context.Context) error, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("sweep error", zap.String("sweep", name), zap.Error(err))
		}
	}
}
