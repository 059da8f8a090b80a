package deleteapplication

import (
	"context"
	"encoding/json"
	stderrors "errors"

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
	TaskType = "delete-solo-parent-application"
)

type Store interface {
	DocumentLinks(ctx context.Context, entityID string) ([]salesforce.DocumentLink, error)
	Destroy(ctx context.Context, sobject string, ids ...string) ([]salesforce.DeleteResult, error)
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

// missing reports whether a delete failed because the record is already gone.
func missing(err error) bool {
	if stderrors.Is(err, salesforce.ErrNotFound) {
		return true
	}
	var apiErr *salesforce.APIError
	return stderrors.As(err, &apiErr) &&
		(apiErr.Code == "ENTITY_IS_DELETED" || apiErr.Code == "INVALID_CROSS_REFERENCE_KEY")
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	id := input.ApplicationID
	if !salesforce.ValidID(id) {
		return nil, errors.NewValidationError("applicationId must be a 15 or 18 character record id")
	}

	// links disappear with the form, so collect the documents first
	links, err := h.store.DocumentLinks(ctx, id)
	if err != nil {
		return nil, errors.NewRecordQueryError(err)
	}

	results, err := h.store.Destroy(ctx, models.SObjectApplicationForm, id)
	if err == nil && len(results) > 0 {
		err = results[0].Err()
	}
	if err != nil {
		if missing(err) {
			return nil, errors.NewRecordNotFoundError(models.SObjectApplicationForm, id)
		}
		return nil, errors.NewRecordDeleteError(err)
	}

	output := &Output{ApplicationID: id, Deleted: true}
	output.DocumentsDeleted, output.Warnings = h.deleteDocuments(ctx, id, links)

	h.cache.Invalidate(ctx, id)
	h.index.DeleteBestEffort(ctx, id)
	h.audit.RecordBestEffort(ctx, audit.Entry{
		ApplicationID: id,
		Action:        audit.ActionDeleted,
		Status:        "deleted",
		Details: map[string]interface{}{
			"documentsDeleted": output.DocumentsDeleted,
			"warnings":         len(output.Warnings),
		},
	})

	h.logger.Info("application deleted", map[string]interface{}{
		"applicationId":    id,
		"documentsDeleted": output.DocumentsDeleted,
	})
	return output, nil
}

// deleteDocuments removes the files that were linked to the form. Failures become warnings.
func (h *Handler) deleteDocuments(ctx context.Context, formID string, links []salesforce.DocumentLink) (int, []string) {
	seen := make(map[string]bool, len(links))
	docIDs := make([]string, 0, len(links))
	for _, l := range links {
		if l.ContentDocumentID != "" && !seen[l.ContentDocumentID] {
			seen[l.ContentDocumentID] = true
			docIDs = append(docIDs, l.ContentDocumentID)
		}
	}
	if len(docIDs) == 0 {
		return 0, nil
	}

	var warnings []string
	results, err := h.store.Destroy(ctx, models.SObjectContentDocument, docIDs...)
	if err != nil && len(results) == 0 {
		h.logger.Warn("attachment delete failed", map[string]interface{}{
			"applicationId": formID,
			"documents":     docIDs,
			"error":         err,
		})
		return 0, []string{err.Error()}
	}

	deleted := 0
	for _, res := range results {
		if rerr := res.Err(); rerr != nil {
			h.logger.Warn("attachment delete failed", map[string]interface{}{
				"applicationId": formID,
				"documentId":    res.ID,
				"error":         rerr,
			})
			warnings = append(warnings, res.ID+": "+rerr.Error())
			continue
		}
		deleted++
	}
	return deleted, warnings
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
