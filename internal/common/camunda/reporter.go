package camunda

import (
	"context"
	"sync/atomic"
	"time"

	"soloparent-workers/internal/common/errors"
	"soloparent-workers/internal/common/logger"
	"soloparent-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// JobObserver receives one record per finished job in addition to the Prometheus collectors.
type JobObserver interface {
	RecordJobProcessed(ctx context.Context, taskType, status string)
	RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string)
}

var observer atomic.Value

// commandTimeout bounds each job command sent to the gateway.
const commandTimeout = 10 * time.Second

// commandContext keeps ctx values but drops its deadline, so a job whose handler ran out of time
// still gets its outcome reported.
func commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), commandTimeout)
}

// SetJobObserver installs o for every reporter. Call it before workers start.
func SetJobObserver(o JobObserver) {
	observer.Store(&o)
}

func currentObserver() JobObserver {
	if p, ok := observer.Load().(*JobObserver); ok {
		return *p
	}
	return nil
}

// Reporter maps a handler outcome to the engine: success completes the job with the output as
// variables, failure fails the job or throws a BPMN error depending on the error code.
type Reporter struct {
	taskType string
	logger   logger.Logger
	errs     *errors.ErrorHandler
}

func NewReporter(taskType string, log logger.Logger) *Reporter {
	return &Reporter{
		taskType: taskType,
		logger:   log,
		errs:     errors.NewErrorHandler(log),
	}
}

// Begin starts job metrics; pass the returned func to Complete or Fail.
func (r *Reporter) Begin(job entities.Job) func(string) {
	r.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})
	track := metrics.TrackJob(r.taskType)
	start := time.Now()
	return func(errorCode string) {
		track(errorCode)
		o := currentObserver()
		if o == nil {
			return
		}
		status := "completed"
		if errorCode != "" {
			status = "failed"
		}
		o.RecordJobProcessed(context.Background(), r.taskType, status)
		o.RecordJobDuration(context.Background(), r.taskType, time.Since(start), status)
	}
}

func (r *Reporter) Complete(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}, done func(string)) {
	ctx, cancel := commandContext(ctx)
	defer cancel()

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		r.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		r.Fail(ctx, client, job, errors.NewInternalError(err), nil, done)
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		r.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
	} else {
		r.logger.Info("job completed successfully", map[string]interface{}{
			"jobKey": job.Key,
		})
	}
	if done != nil {
		done("")
	}
}

// Fail reports err with optional extra error variables.
func (r *Reporter) Fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, extra map[string]interface{}, done func(string)) {
	ctx, cancel := commandContext(ctx)
	defer cancel()

	stdErr := errors.Normalize(err)
	r.errs.HandleJobErrorWithVariables(ctx, client, job, stdErr, extra)
	if done != nil {
		done(string(stdErr.Code))
	}
}
