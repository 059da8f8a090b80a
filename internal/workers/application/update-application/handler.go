package updateapplication

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"

	"soloparent-workers/internal/audit"
	"soloparent-workers/internal/cache"
	"soloparent-workers/internal/common/camunda"
	"soloparent-workers/internal/common/errors"
	"soloparent-workers/internal/common/logger"
	"soloparent-workers/internal/common/salesforce"
	"soloparent-workers/internal/models"
	"soloparent-workers/internal/search"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "update-solo-parent-application"
)

type Store interface {
	Update(ctx context.Context, sobject, id string, fields interface{}) error
	Retrieve(ctx context.Context, sobject, id string, fields []string, out interface{}) error
}

type Handler struct {
	config   *Config
	store    Store
	cache    *cache.Cache
	index    *search.Index
	audit    *audit.Recorder
	reporter *camunda.Reporter
	logger   logger.Logger
}

func NewHandler(config *Config, store Store, c *cache.Cache, index *search.Index, auditLog *audit.Recorder, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		store:    store,
		cache:    c,
		index:    index,
		audit:    auditLog,
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

func validate(input *Input) error {
	if !salesforce.ValidID(input.ApplicationID) {
		return errors.NewValidationError("applicationId must be a 15 or 18 character record id")
	}
	if input.PersonalInfo.IsEmpty() {
		return errors.NewValidationError("personalInfo must set at least one field")
	}
	if !input.PersonalInfo.CivilStatus.Valid() {
		return errors.NewValidationError(fmt.Sprintf("unknown civilStatus %q", input.PersonalInfo.CivilStatus))
	}
	if !input.PersonalInfo.Sex.Valid() {
		return errors.NewValidationError(fmt.Sprintf("unknown sex %q", input.PersonalInfo.Sex))
	}
	return nil
}

// changedFields lists the record fields a patch sets.
func changedFields(form models.ApplicationForm) ([]string, error) {
	raw, err := json.Marshal(form)
	if err != nil {
		return nil, err
	}
	var set map[string]json.RawMessage
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, err
	}
	fields := make([]string, 0, len(set))
	for k := range set {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	patch := input.PersonalInfo.Form()
	fields, err := changedFields(patch)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	if err := h.store.Update(ctx, models.SObjectApplicationForm, input.ApplicationID, patch); err != nil {
		if stderrors.Is(err, salesforce.ErrNotFound) {
			return nil, errors.NewRecordNotFoundError(models.SObjectApplicationForm, input.ApplicationID)
		}
		return nil, errors.NewRecordUpdateError(err)
	}

	h.cache.Invalidate(ctx, input.ApplicationID)
	h.reindex(ctx, input.ApplicationID)
	h.audit.RecordBestEffort(ctx, audit.Entry{
		ApplicationID: input.ApplicationID,
		Action:        audit.ActionUpdated,
		Status:        "updated",
		Details:       map[string]interface{}{"fields": fields},
	})

	h.logger.Info("application updated", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"fields":        fields,
	})
	return &Output{ApplicationID: input.ApplicationID, UpdatedFields: fields}, nil
}

// reindex reads the whole record back since a patch may not carry the indexed names.
func (h *Handler) reindex(ctx context.Context, id string) {
	if h.index == nil {
		return
	}
	var form models.ApplicationForm
	if err := h.store.Retrieve(ctx, models.SObjectApplicationForm, id, models.FormFields, &form); err != nil {
		h.logger.Warn("search reindex skipped", map[string]interface{}{
			"applicationId": id,
			"error":         err,
		})
		return
	}
	h.index.PutBestEffort(ctx, search.DocumentFor(id, form.Applicant()))
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
