package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bravo1goingdark/schedcore/config"
	"github.com/bravo1goingdark/schedcore/internal/concurrency"
	"github.com/bravo1goingdark/schedcore/internal/introspect"
	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
	"github.com/bravo1goingdark/schedcore/internal/jobstore"
	"github.com/bravo1goingdark/schedcore/internal/logging"
	"github.com/bravo1goingdark/schedcore/internal/metrics"
	"github.com/bravo1goingdark/schedcore/internal/notify"
	"github.com/bravo1goingdark/schedcore/internal/ratelimiter"
	"github.com/bravo1goingdark/schedcore/internal/readiness"
	"github.com/bravo1goingdark/schedcore/internal/runner"
	"github.com/bravo1goingdark/schedcore/scheduler"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// Run wires every collaborator into a Scheduler and blocks serving the
// metrics/introspection HTTP servers until ctx is cancelled.
func Run(ctx context.Context, args CLIArgs) error {
	log := logging.New("schedcored")

	cfg := config.Default()
	if args.ConfigPath != "" {
		loaded, err := config.Load(args.ConfigPath)
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		cfg = loaded
	}

	store, err := openStore(args)
	if err != nil {
		return errors.Wrap(err, "open job store")
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Warnf("store close: %v", closeErr)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	notifier := notify.NewClient(log)
	hub := introspect.NewHub()

	// sched is filled in once the scheduler is constructed below; the
	// runner only invokes this callback after jobs have started running,
	// by which point sched is always set.
	var sched *scheduler.Scheduler
	r := runner.NewInProcessRunner(runCtx, func(job *jobmodel.Job, wt jobmodel.WorkType) {
		sched.OnJobFinished(job, wt, false)
	})
	r.Register(args.DemoPackage, demoWorkFunc(log))

	configs := cfg.ApplyOverrides(jobmodel.DefaultConfigs())
	guarantees := guaranteesFromConfig(cfg)
	minExec := func(job *jobmodel.Job, startedAt, now time.Time) bool {
		return guarantees.HasExceededMinimumGuarantee(job, startedAt, now)
	}
	cm := concurrency.NewConcurrencyManager(
		configs,
		time.Duration(cfg.ScreenOffAdjustmentDelayMs)*time.Millisecond,
		r,
		minExec,
		log.WithField("subsystem", "concurrency"),
	)
	cm.PackageLimiter().SetLimits(cfg.PkgConcurrencyLimitEJ, cfg.PkgConcurrencyLimitRegular)

	sched = scheduler.New(scheduler.Deps{
		Store:       store,
		Concurrency: cm,
		RateLimit:   ratelimiter.New(cfg.AQScheduleCount, time.Duration(cfg.AQScheduleWindowMs)*time.Millisecond),
		Guarantees:  guarantees,
		Notifier:    notifier,
		Introspect:  hub,
		Log:         log.WithField("subsystem", "scheduler"),
	})
	defer sched.Stop()

	evaluator := readiness.New(noopConstraints{}, store, sched, sched, nil)
	sched.SetReadinessEvaluator(evaluator)

	sched.OnUserStarted(0)

	for i := 0; i < args.DemoJobs; i++ {
		job := jobmodel.NewJob(jobmodel.Identity{
			SourceUID:     1000 + i,
			SourceUserID:  0,
			SourcePackage: args.DemoPackage,
			JobID:         int64(i),
		})
		job.AcceptableTypes = jobmodel.NewWorkTypeSet(jobmodel.WorkTypeBG)
		if res := sched.Schedule(job, false); res != scheduler.ResultSuccess {
			log.Warnf("demo job %d failed to schedule", i)
		}
	}

	servers := startServers(args, hub, log)
	defer stopServers(servers)

	reconsider := cron.New()
	if _, err := reconsider.AddFunc("@every 30s", sched.ReconsiderAll); err != nil {
		return errors.Wrap(err, "schedule reconsideration sweep")
	}
	reconsider.Start()
	defer reconsider.Stop()

	<-ctx.Done()
	return nil
}

func demoWorkFunc(log logging.Logger) runner.WorkFunc {
	return func(ctx context.Context, job *jobmodel.Job) error {
		log.Infof("running demo job uid=%d jobID=%d", job.SourceUID, job.JobID)
		select {
		case <-time.After(100 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func openStore(args CLIArgs) (jobstore.JobStore, error) {
	switch args.StoreDriver {
	case "bolt":
		return jobstore.NewBoltStore(args.StorePath)
	default:
		return jobstore.NewMemoryStore(), nil
	}
}

func guaranteesFromConfig(cfg *config.SchedulerConfig) scheduler.RuntimeGuarantees {
	return scheduler.RuntimeGuarantees{
		RuntimeMin:             time.Duration(cfg.RuntimeMinGuaranteeMs) * time.Millisecond,
		RuntimeMinEJ:           time.Duration(cfg.RuntimeMinEJGuaranteeMs) * time.Millisecond,
		RuntimeMinHighPriority: time.Duration(cfg.RuntimeMinHighPriorityGuaranteeMs) * time.Millisecond,
		RuntimeFreeQuotaMax:    time.Duration(cfg.RuntimeFreeQuotaMaxLimitMs) * time.Millisecond,
	}
}

type noopConstraints struct{}

func (noopConstraints) IsReady(*jobmodel.Job) bool { return true }
func (noopConstraints) Prepare(*jobmodel.Job)      {}
func (noopConstraints) Unprepare(*jobmodel.Job)    {}

// stoppable is satisfied by metrics.Server and by httpStoppable, which
// wraps the http.Server serving introspect.Server.
type stoppable interface {
	Stop(ctx context.Context) error
}

func startServers(args CLIArgs, hub *introspect.Hub, log logging.Logger) []stoppable {
	var handles []stoppable

	if !args.NoMetrics {
		srv := metrics.NewServer(metrics.Get(), args.MetricsPort, func() bool { return true })
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				log.Errorf("metrics server: %v", err)
			}
		}()
		handles = append(handles, srv)
		log.Infof("metrics listening on :%d", args.MetricsPort)
	}

	if !args.NoStatus {
		statusSrv := &httpStoppable{inner: &http.Server{Addr: fmt.Sprintf(":%d", args.StatusPort), Handler: introspect.NewServer(hub)}}
		go func() {
			if err := statusSrv.inner.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("status server: %v", err)
			}
		}()
		handles = append(handles, statusSrv)
		log.Infof("status listening on :%d", args.StatusPort)
	}

	return handles
}

type httpStoppable struct{ inner *http.Server }

func (h *httpStoppable) Stop(ctx context.Context) error { return h.inner.Shutdown(ctx) }

func stopServers(handles []stoppable) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, h := range handles {
		_ = h.Stop(ctx)
	}
}
