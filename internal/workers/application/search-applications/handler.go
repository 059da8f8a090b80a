package searchapplications

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"soloparent-workers/internal/common/camunda"
	"soloparent-workers/internal/common/errors"
	"soloparent-workers/internal/common/logger"
	"soloparent-workers/internal/models"
	"soloparent-workers/internal/search"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "search-solo-parent-applications"
)

type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

type Handler struct {
	config   *Config
	index    Searcher
	reporter *camunda.Reporter
	logger   logger.Logger
}

func NewHandler(config *Config, index Searcher, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		index:    index,
		reporter: camunda.NewReporter(TaskType, l),
		logger:   l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	done := h.reporter.Begin(job)

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.reporter.Fail(context.Background(), client, job, errors.NewInputParsingError(err), nil, done)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.reporter.Fail(ctx, client, job, err, nil, done)
		return
	}
	h.reporter.Complete(ctx, client, job, output, done)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.From < 0 || input.Size < 0 {
		return nil, errors.NewValidationError("from and size must not be negative")
	}
	if input.Size > h.config.MaxSize {
		return nil, errors.NewValidationError(fmt.Sprintf("size must be at most %d", h.config.MaxSize))
	}
	if !models.CivilStatus(input.CivilStatus).Valid() {
		return nil, errors.NewValidationError(fmt.Sprintf("unknown civilStatus %q", input.CivilStatus))
	}

	result, err := h.index.Search(ctx, search.Query{
		Text:        input.Query,
		CivilStatus: input.CivilStatus,
		From:        input.From,
		Size:        input.Size,
	})
	if err != nil {
		stdErr := errors.NewSearchQueryFailedError(err)
		if stderrors.Is(err, search.ErrDisabled) {
			stdErr.Retryable = false
		}
		return nil, stdErr
	}

	hits := result.Hits
	if hits == nil {
		hits = []search.Hit{}
	}
	h.logger.Info("applications searched", map[string]interface{}{
		"query": input.Query,
		"total": result.Total,
		"hits":  len(hits),
	})
	return &Output{Results: hits, Total: result.Total}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
