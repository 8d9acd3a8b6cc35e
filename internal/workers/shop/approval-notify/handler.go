package approvalnotify

import (
	"context"
	"fmt"
	"time"

	"shop-notifier/internal/changefeed"
	"shop-notifier/internal/common/camunda"
	"shop-notifier/internal/common/config"
	"shop-notifier/internal/common/errors"
	"shop-notifier/internal/common/logger"
	"shop-notifier/internal/common/metrics"
	"shop-notifier/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// SourceZeebe labels events that arrive as workflow jobs.
const SourceZeebe = "zeebe"

// settleTimeout bounds the complete/throw command sent after the job's own
// timeout may already have been spent on the mail transport.
const settleTimeout = 5 * time.Second

// jobResponder settles a job with the engine; *camunda.JobResponder in
// production.
type jobResponder interface {
	errors.JobSettler
	Complete(ctx context.Context, jobKey int64, vars map[string]interface{}) error
}

// Handler adapts the notifier to Zeebe jobs whose variables carry a change
// event (shopId, before, after).
type Handler struct {
	config     *Config
	logger     logger.Logger
	notifier   *ApprovalNotifier
	errHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Notifier     *ApprovalNotifier
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := ConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", workerConfig.JobType, err)
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": workerConfig.JobType})

	return &Handler{
		config:     workerConfig,
		logger:     log,
		notifier:   opts.Notifier,
		errHandler: errors.NewErrorHandler(log),
	}, nil
}

// Handle is the worker.JobHandler registered with the job worker.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.handle(camunda.NewJobResponder(client), job)
}

func (h *Handler) handle(responder jobResponder, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(h.config.JobType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(h.config.JobType).Dec()
	metrics.ChangeEventsReceived.WithLabelValues(SourceZeebe).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Debug("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	event, err := h.parseJob(job)
	if err != nil {
		metrics.ChangeEventsRejected.WithLabelValues(SourceZeebe, errors.CodeOf(err)).Inc()
		h.failJob(ctx, responder, job, err)
		return
	}

	output := h.execute(ctx, event)

	// A send may have used up ctx; completing on it would let the engine
	// re-activate the job and mail the owner again.
	settleCtx, settleCancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer settleCancel()

	if err := responder.Complete(settleCtx, job.GetKey(), output.Variables()); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return
	}
	metrics.WorkerJobDuration.WithLabelValues(h.config.JobType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) execute(ctx context.Context, event models.ChangeEvent) JobOutput {
	if h.config.EventTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.EventTimeout)
		defer cancel()
	}
	return JobOutput{
		ShopID:  event.ShopID,
		Outcome: h.notifier.Handle(ctx, event),
	}
}

func (h *Handler) parseJob(job entities.Job) (models.ChangeEvent, error) {
	vars, err := job.GetVariablesAsMap()
	if err != nil {
		return models.ChangeEvent{}, errors.NewEventDecodeFailedError(SourceZeebe, err)
	}
	return changefeed.DecodeMap(SourceZeebe, vars)
}

func (h *Handler) failJob(ctx context.Context, responder jobResponder, job entities.Job, err error) {
	info := errors.JobInfo{
		Key:                job.GetKey(),
		Type:               job.GetType(),
		ProcessInstanceKey: job.GetProcessInstanceKey(),
	}
	if sendErr := h.errHandler.HandleJobError(ctx, responder, info, err); sendErr != nil {
		h.logger.Error("failed to report job error", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  sendErr,
		})
	}
}
