package server

import (
	"context"
	"errors"
	nethttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/dwarvesf/onchain-tracker/internal/chain"
	"github.com/dwarvesf/onchain-tracker/internal/consts"
	"github.com/dwarvesf/onchain-tracker/internal/evmrpc"
	"github.com/dwarvesf/onchain-tracker/internal/handler"
	"github.com/dwarvesf/onchain-tracker/internal/handler/health"
	"github.com/dwarvesf/onchain-tracker/internal/handler/metrics"
	"github.com/dwarvesf/onchain-tracker/internal/model"
	"github.com/dwarvesf/onchain-tracker/internal/monitoring"
	"github.com/dwarvesf/onchain-tracker/internal/notifier"
	"github.com/dwarvesf/onchain-tracker/internal/reconciler"
	"github.com/dwarvesf/onchain-tracker/internal/solanarpc"
	"github.com/dwarvesf/onchain-tracker/internal/store"
	pgstore "github.com/dwarvesf/onchain-tracker/internal/store/postgres"
	"github.com/dwarvesf/onchain-tracker/internal/telemetry"
	"github.com/dwarvesf/onchain-tracker/internal/transport/http"
	"github.com/dwarvesf/onchain-tracker/internal/utils/config"
	"github.com/dwarvesf/onchain-tracker/internal/utils/logger"
	"github.com/dwarvesf/onchain-tracker/internal/utils/webhook"
)

// snapshotJobTimeout bounds one aggregation pass over the snapshot window.
const snapshotJobTimeout = 2 * time.Minute

func Init() {
	appConfig := config.New()
	logger := logger.New(appConfig.Environment)
	defer logger.Sync()

	if err := appConfig.Validate(); err != nil {
		logger.Fatal("[Server][Init] invalid configuration", map[string]string{
			"error": err.Error(),
		})
	}

	db := pgstore.New(appConfig, logger)
	s := store.New()

	registry := metrics.NewRegistry()
	apiMetrics := monitoring.NewExternalAPIMetrics()
	reconcilerMetrics := monitoring.NewReconcilerMetrics()
	notifierMetrics := monitoring.NewNotifierMetrics()
	httpMetrics := monitoring.NewHTTPMetrics()
	jobMetrics := monitoring.NewBackgroundJobMetrics()
	apiMetrics.MustRegister(registry)
	reconcilerMetrics.MustRegister(registry)
	notifierMetrics.MustRegister(registry)
	httpMetrics.MustRegister(registry)
	jobMetrics.MustRegister(registry)

	adapters, err := newAdapters(appConfig, logger, apiMetrics)
	if err != nil {
		logger.Fatal("[Server][Init] failed to init chain adapters", map[string]string{
			"error": err.Error(),
		})
	}

	n := notifier.New(appConfig.Notifier, logger, notifierMetrics)
	if !n.Enabled() {
		logger.Warn("[Server][Init] no webhook configured, notifications are disabled")
	}
	// the drain outlives the root context so Stop can flush the queue
	n.Start(context.Background())

	reconcilers := newReconcilers(appConfig, logger, adapters, db, s, n, reconcilerMetrics)
	tel := telemetry.New(db, s, appConfig, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// jobs keep their own context so a tick in flight at shutdown can
	// finish within the grace period
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	jsm := monitoring.NewJobStatusManager(logger, jobMetrics, 0)
	go jsm.Run(jobCtx)

	c := cron.New(
		cron.WithLogger(logger.CronLogger()),
		cron.WithChain(
			cron.Recover(logger.CronLogger()),
			cron.SkipIfStillRunning(logger.CronLogger()),
		),
	)
	uptime := webhook.New(logger)

	for _, r := range reconcilers {
		job := monitoring.NewInstrumentedJobWithWebhook(
			reconcileJobName(r.Network()),
			r.Run,
			jsm,
			logger,
			appConfig.Reconciler.FetchTimeout+time.Minute,
			uptime,
			reconcileUptimeURL(appConfig, r.Network()),
		)
		schedule(jobCtx, c, logger, appConfig.Reconciler.PollInterval, job)

		// first pass right away instead of one interval after boot
		go job.Execute(jobCtx)
	}

	snapshotJob := monitoring.NewInstrumentedJobWithWebhook(
		consts.JobSnapshot,
		func(ctx context.Context) error {
			_, err := tel.SnapshotAll(ctx, appConfig.Stats.SnapshotWindowHours)
			return err
		},
		jsm,
		logger,
		snapshotJobTimeout,
		uptime,
		appConfig.UptimeWebhooks.SnapshotURL,
	)
	schedule(jobCtx, c, logger, appConfig.Stats.SnapshotInterval, snapshotJob)

	c.Start()

	reporters := make([]health.DegradedReporter, 0, len(reconcilers))
	for _, r := range reconcilers {
		reporters = append(reporters, r)
	}
	h := handler.New(appConfig, logger, handler.Deps{
		Telemetry:        tel,
		DB:               db,
		Adapters:         adapters,
		Reconcilers:      reporters,
		JobStatusManager: jsm,
		MetricsRegistry:  registry,
		QueryMetrics:     monitoring.NewQueryMetricsRecorder(httpMetrics),
	})

	srv := &nethttp.Server{
		Addr:              ":" + appConfig.ApiServer.Port,
		Handler:           http.NewHttpServer(appConfig, logger, h, httpMetrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("[Server][Init] listening", map[string]string{
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Error("[Server][Init] http server stopped", map[string]string{
				"error": err.Error(),
			})
			stop()
		}
	}()

	<-ctx.Done()
	shutdown(appConfig, logger, c, cancelJobs, n, srv, db)
}

func newAdapters(appConfig *config.AppConfig, logger *logger.Logger, apiMetrics *monitoring.ExternalAPIMetrics) ([]chain.IAdapter, error) {
	var adapters []chain.IAdapter

	if len(appConfig.Chain.EVMAddresses) > 0 {
		evm, err := evmrpc.New(appConfig, logger)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, monitoring.NewCircuitBreakerAdapter(evm, monitoring.CircuitBreakerConfigs["evm_rpc"], apiMetrics, logger))
	}

	if len(appConfig.Chain.NonEVMAddresses) > 0 {
		sol := solanarpc.New(appConfig, logger)
		adapters = append(adapters, monitoring.NewCircuitBreakerAdapter(sol, monitoring.CircuitBreakerConfigs["nonevm_rpc"], apiMetrics, logger))
	}

	if len(adapters) == 0 {
		logger.Warn("[Server][newAdapters] no watched addresses configured, nothing will be polled")
	}
	return adapters, nil
}

func newReconcilers(
	appConfig *config.AppConfig,
	logger *logger.Logger,
	adapters []chain.IAdapter,
	db *gorm.DB,
	s *store.Store,
	n notifier.INotifier,
	m *monitoring.ReconcilerMetrics,
) []*reconciler.Reconciler {
	watched := append(
		model.NewWatchedAddresses(model.NetworkEVM, appConfig.Chain.EVMAddresses),
		model.NewWatchedAddresses(model.NetworkNonEVM, appConfig.Chain.NonEVMAddresses)...,
	)

	reconcilers := make([]*reconciler.Reconciler, 0, len(adapters))
	for _, a := range adapters {
		overlap := appConfig.Chain.EVMOverlapBlocks
		if a.Network() == model.NetworkNonEVM {
			overlap = appConfig.Chain.NonEVMOverlapSlots
		}

		reconcilers = append(reconcilers, reconciler.New(a, watched, db, s, n, logger, m, reconciler.Options{
			Overlap:          overlap,
			Interval:         appConfig.Reconciler.PollInterval,
			FetchTimeout:     appConfig.Reconciler.FetchTimeout,
			BackoffThreshold: appConfig.Reconciler.BackoffThreshold,
			MaxBackoff:       appConfig.Reconciler.MaxBackoff,
		}))
	}
	return reconcilers
}

func schedule(ctx context.Context, c *cron.Cron, logger *logger.Logger, every time.Duration, job *monitoring.InstrumentedJob) {
	spec := "@every " + every.String()
	if _, err := c.AddFunc(spec, func() {
		_ = job.Execute(ctx)
	}); err != nil {
		logger.Fatal("[Server][schedule] invalid schedule", map[string]string{
			"spec":  spec,
			"error": err.Error(),
		})
	}
}

// shutdown stops scheduling, waits for running jobs up to the grace period,
// drains the notifier, then closes the HTTP server and the database.
func shutdown(
	appConfig *config.AppConfig,
	logger *logger.Logger,
	c *cron.Cron,
	cancelJobs context.CancelFunc,
	n *notifier.Notifier,
	srv *nethttp.Server,
	db *gorm.DB,
) {
	logger.Info("[Server][shutdown] signal received, shutting down", map[string]string{
		"grace_period": appConfig.ShutdownGracePeriod.String(),
	})

	graceCtx, cancel := context.WithTimeout(context.Background(), appConfig.ShutdownGracePeriod)
	defer cancel()

	select {
	case <-c.Stop().Done():
	case <-graceCtx.Done():
		logger.Warn("[Server][shutdown] running jobs did not finish in time")
	}
	cancelJobs()

	if err := n.Stop(graceCtx); err != nil {
		logger.Warn("[Server][shutdown] notifier queue not fully drained", map[string]string{
			"error": err.Error(),
		})
	}

	if err := srv.Shutdown(graceCtx); err != nil {
		logger.Error("[Server][shutdown] http server shutdown failed", map[string]string{
			"error": err.Error(),
		})
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("[Server][shutdown] stopped")
}

func reconcileJobName(network model.Network) string {
	if network == model.NetworkNonEVM {
		return consts.JobReconcileNonEVM
	}
	return consts.JobReconcileEVM
}

func reconcileUptimeURL(appConfig *config.AppConfig, network model.Network) string {
	if network == model.NetworkNonEVM {
		return appConfig.UptimeWebhooks.ReconcileNonEVMURL
	}
	return appConfig.UptimeWebhooks.ReconcileEVMURL
}
