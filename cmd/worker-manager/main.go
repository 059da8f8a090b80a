// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"soloparent-workers/internal/audit"
	"soloparent-workers/internal/cache"
	"soloparent-workers/internal/common/aws"
	"soloparent-workers/internal/common/camunda"
	"soloparent-workers/internal/common/config"
	"soloparent-workers/internal/common/database"
	httpclient "soloparent-workers/internal/common/http"
	"soloparent-workers/internal/common/logger"
	"soloparent-workers/internal/common/observability"
	"soloparent-workers/internal/common/salesforce"
	"soloparent-workers/internal/notify"
	"soloparent-workers/internal/search"
	"soloparent-workers/internal/submission"

	da "soloparent-workers/internal/workers/application/delete-application"
	la "soloparent-workers/internal/workers/application/list-applications"
	ra "soloparent-workers/internal/workers/application/read-application"
	sa "soloparent-workers/internal/workers/application/search-applications"
	sn "soloparent-workers/internal/workers/application/send-notification"
	sub "soloparent-workers/internal/workers/application/submit-application"
	ua "soloparent-workers/internal/workers/application/update-application"
	ct "soloparent-workers/internal/workers/support/create-ticket"
	lt "soloparent-workers/internal/workers/support/list-tickets"
)

// retryWithBackoff retries operation with exponential backoff.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// deps are the shared clients the workers are built from. Optional ones are nil when disabled.
type deps struct {
	zeebe    *camunda.Client
	pg       *database.PostgresClient
	redis    *database.RedisClient
	es       *database.ElasticsearchClient
	store    *salesforce.Client
	audit    *audit.Recorder
	cache    *cache.Cache
	index    *search.Index
	notifier *notify.Notifier
	obs      *observability.Observability
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.Build(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()
	camunda.SetJobObserver(obs)

	ctx := context.Background()

	d, err := connect(ctx, cfg, log, zapLog)
	if err != nil {
		zapLog.Fatal("startup failed", zap.Error(err))
	}
	d.obs = obs
	defer d.close(zapLog)

	workers := registerWorkers(cfg, d, log)
	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	srv := opsServer(cfg.App.Port, d, zapLog)
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// stop polling first, then let in-flight jobs (and their rollbacks) finish
	for _, w := range workers {
		w.Close()
	}
	for _, w := range workers {
		w.AwaitClose()
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func connect(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger) (*deps, error) {
	d := &deps{}

	var err error
	d.zeebe, err = camunda.NewClient(ctx, cfg.Camunda.BrokerAddress)
	if err != nil {
		return nil, err
	}
	zapLog.Info("Zeebe client connected successfully")

	err = retryWithBackoff(func() error {
		var err error
		d.pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return d.pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	zapLog.Info("PostgreSQL connected successfully")

	d.audit = audit.NewRecorder(d.pg.DB, log)
	if err := d.audit.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	if cfg.Cache.Enabled {
		err = retryWithBackoff(func() error {
			d.redis = database.NewRedis(cfg.Database.Redis)
			return d.redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			return nil, err
		}
		zapLog.Info("Redis connected successfully")
		d.cache = cache.New(redis.Cmdable(d.redis.Client), cfg.Cache, log)
	}

	if cfg.Search.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			d.es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return d.es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return nil, err
		}
		zapLog.Info("Elasticsearch connected successfully")
		d.index = search.New(d.es.Client, cfg.Search, log)
		if err := d.index.EnsureIndex(ctx); err != nil {
			return nil, err
		}
	}

	httpClient := httpclient.NewClient(config.GetDuration(cfg.Salesforce.Timeout)).HTTPClient()
	session := salesforce.NewSession(cfg.Salesforce, httpClient)
	err = retryWithBackoff(func() error {
		return session.Open(ctx)
	}, 5, 2*time.Second, zapLog, "Salesforce login")
	if err != nil {
		return nil, err
	}
	d.store = salesforce.NewClient(session, httpClient, cfg.Salesforce.APIVersion)
	zapLog.Info("Salesforce session opened", zap.Time("issuedAt", session.IssuedAt()))

	notifier, err := newNotifier(ctx, cfg.Notifications, log)
	if err != nil {
		return nil, err
	}
	d.notifier = notifier

	return d, nil
}

// newNotifier builds the SES and SNS senders that are enabled. Disabled channels stay untyped nil.
func newNotifier(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*notify.Notifier, error) {
	var (
		email notify.EmailSender
		sms   notify.SMSSender
	)
	if cfg.Email.Enabled || cfg.SMS.Enabled {
		awsCfg, err := aws.LoadConfig(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		if cfg.Email.Enabled {
			email = aws.NewSESClient(awsCfg, cfg.Email.FromEmail)
		}
		if cfg.SMS.Enabled {
			sms = aws.NewSNSClient(awsCfg, cfg.SMS.SenderID)
		}
	}
	return notify.New(email, sms, log), nil
}

func (d *deps) close(zapLog *zap.Logger) {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			zapLog.Error("Error closing Redis client", zap.Error(err))
		}
	}
	if d.pg != nil {
		if err := d.pg.Close(); err != nil {
			zapLog.Error("Error closing PostgreSQL pool", zap.Error(err))
		}
	}
	if d.zeebe != nil {
		if err := d.zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
}

func registerWorkers(cfg *config.Config, d *deps, log logger.Logger) []worker.JobWorker {
	timeout := func(taskType string, fallback time.Duration) time.Duration {
		if ms := config.GetWorkerConfig(cfg, taskType).Timeout; ms > 0 {
			return config.GetDuration(ms)
		}
		return fallback
	}

	orchestrator := submission.NewOrchestrator(d.store, submission.Config{
		MaxParallel:     cfg.Submission.MaxParallel,
		RollbackTimeout: config.GetDuration(cfg.Submission.RollbackTimeout),
		AttachmentOwner: cfg.Submission.AttachmentOwner,
	}, log, d.obs.Tracer())

	subCfg := sub.LoadConfig(cfg.Submission)
	// the job timeout also covers rollback and reporting; validateConfig keeps this positive
	subCfg.Timeout = config.SubmissionHandlerTimeout(config.GetWorkerConfig(cfg, sub.TaskType), cfg.Submission)
	raCfg := ra.LoadConfig()
	raCfg.Timeout = timeout(ra.TaskType, raCfg.Timeout)
	laCfg := la.LoadConfig()
	laCfg.Timeout = timeout(la.TaskType, laCfg.Timeout)
	uaCfg := ua.LoadConfig()
	uaCfg.Timeout = timeout(ua.TaskType, uaCfg.Timeout)
	daCfg := da.LoadConfig()
	daCfg.Timeout = timeout(da.TaskType, daCfg.Timeout)
	saCfg := sa.LoadConfig()
	saCfg.Timeout = timeout(sa.TaskType, saCfg.Timeout)
	snCfg := sn.LoadConfig()
	snCfg.Timeout = timeout(sn.TaskType, snCfg.Timeout)
	ctCfg := ct.LoadConfig()
	ctCfg.Timeout = timeout(ct.TaskType, ctCfg.Timeout)
	ltCfg := lt.LoadConfig()
	ltCfg.Timeout = timeout(lt.TaskType, ltCfg.Timeout)

	handlers := []struct {
		taskType string
		handle   worker.JobHandler
	}{
		{sub.TaskType, sub.NewHandler(subCfg, orchestrator, d.audit, d.index, log).Handle},
		{ra.TaskType, ra.NewHandler(raCfg, d.store, d.cache, d.audit, log).Handle},
		{la.TaskType, la.NewHandler(laCfg, d.store, log).Handle},
		{ua.TaskType, ua.NewHandler(uaCfg, d.store, d.cache, d.index, d.audit, log).Handle},
		{da.TaskType, da.NewHandler(daCfg, d.store, d.cache, d.index, d.audit, log).Handle},
		{sa.TaskType, sa.NewHandler(saCfg, d.index, log).Handle},
		{sn.TaskType, sn.NewHandler(snCfg, d.store, d.notifier, log).Handle},
		{ct.TaskType, ct.NewHandler(ctCfg, d.store, d.audit, log).Handle},
		{lt.TaskType, lt.NewHandler(ltCfg, d.store, log).Handle},
	}

	var workers []worker.JobWorker
	for _, h := range handlers {
		if w := camunda.StartWorker(d.zeebe.GetClient(), h.taskType, config.GetWorkerConfig(cfg, h.taskType), h.handle, log); w != nil {
			workers = append(workers, w)
		}
	}
	return workers
}

func opsServer(port int, d *deps, zapLog *zap.Logger) *http.Server {
	checks := map[string]database.Pinger{
		"zeebe":    database.PingFunc(d.zeebe.HealthCheck),
		"postgres": d.pg,
	}
	if d.redis != nil {
		checks["redis"] = d.redis
	}
	if d.es != nil {
		checks["elasticsearch"] = d.es
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		results, ok := database.CheckAll(r.Context(), 3*time.Second, checks)
		status, code := "ready", http.StatusOK
		if !ok {
			status, code = "not ready", http.StatusServiceUnavailable
			zapLog.Warn("readiness check failed", zap.Any("checks", results))
		}
		writeJSON(w, code, map[string]interface{}{
			"status": status,
			"checks": results,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
