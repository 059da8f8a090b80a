// Package submission creates an application form, its family members and its attachments in the
// record store as one unit, deleting whatever was created when a later step fails.
package submission

import (
	"context"
	"errors"
	"sync"
	"time"

	"soloparent-workers/internal/common/logger"
	"soloparent-workers/internal/common/metrics"
	"soloparent-workers/internal/common/salesforce"
	"soloparent-workers/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const defaultRollbackTimeout = 30 * time.Second

// Store is the part of the record store client a submission needs.
type Store interface {
	Create(ctx context.Context, sobject string, fields interface{}) (string, error)
	UploadAttachment(ctx context.Context, u salesforce.Upload) (string, error)
	LinkAttachment(ctx context.Context, documentID, entityID string) (string, error)
	Destroy(ctx context.Context, sobject string, ids ...string) ([]salesforce.DeleteResult, error)
}

type Config struct {
	// MaxParallel caps concurrent calls within one batch; 0 means unbounded.
	MaxParallel     int
	RollbackTimeout time.Duration
	// AttachmentOwner is set as OwnerId on uploaded files when not empty.
	AttachmentOwner string
}

type Request struct {
	Applicant   models.Applicant
	Members     []models.FamilyMember
	Attachments []Attachment
}

// Receipt describes a committed submission.
type Receipt struct {
	ApplicationID string
	MemberIDs     []string
	DocumentIDs   []string
	LinkIDs       []string
}

type Orchestrator struct {
	store  Store
	cfg    Config
	logger logger.Logger
	tracer trace.Tracer
}

func NewOrchestrator(store Store, cfg Config, log logger.Logger, tracer trace.Tracer) *Orchestrator {
	if cfg.RollbackTimeout <= 0 {
		cfg.RollbackTimeout = defaultRollbackTimeout
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Orchestrator{store: store, cfg: cfg, logger: log, tracer: tracer}
}

// Submit runs the steps in order and returns the new form id. Any failure is returned as *Error
// after the records created so far have been deleted.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (Receipt, error) {
	ctx, span := o.tracer.Start(ctx, "submission.submit", trace.WithAttributes(
		attribute.Int("members", len(req.Members)),
		attribute.Int("attachments", len(req.Attachments)),
	))
	defer span.End()

	r := &run{
		o:     o,
		state: StatePendingPrimary,
		log: o.logger.WithFields(map[string]interface{}{
			"submissionId": uuid.NewString(),
		}),
	}

	receipt, err := r.execute(ctx, req)
	if err != nil {
		var subErr *Error
		if errors.As(err, &subErr) {
			span.SetAttributes(attribute.String("kind", string(subErr.Kind)),
				attribute.Bool("rollback_incomplete", subErr.RollbackIncomplete()))
			metrics.SubmissionOutcomes.WithLabelValues(string(subErr.Kind)).Inc()
		}
		span.SetStatus(codes.Error, err.Error())
		return Receipt{}, err
	}

	span.SetAttributes(attribute.String("application_id", receipt.ApplicationID))
	metrics.SubmissionOutcomes.WithLabelValues("committed").Inc()
	return receipt, nil
}

// run is the state of one submission.
type run struct {
	o     *Orchestrator
	log   logger.Logger
	state State
}

func (r *run) transition(next State) {
	r.log.Debug("submission state change", map[string]interface{}{
		"from": r.state.String(),
		"to":   next.String(),
	})
	r.state = next
}

func (r *run) execute(ctx context.Context, req Request) (Receipt, error) {
	store := r.o.store

	primaryID, err := r.step(ctx, "submission.create_primary", func(ctx context.Context) (string, error) {
		return store.Create(ctx, models.SObjectApplicationForm, req.Applicant.Form())
	})
	if err != nil {
		return Receipt{}, r.fail(ctx, KindPrimaryCreateFailed, err, nil)
	}
	r.log.Info("application form created", map[string]interface{}{"applicationId": primaryID})
	receipt := Receipt{ApplicationID: primaryID}
	primary := deletion{sobject: models.SObjectApplicationForm, ids: []string{primaryID}}

	r.transition(StatePendingDependents)
	if len(req.Members) > 0 {
		results := r.batch(ctx, "submission.create_dependents", len(req.Members), func(ctx context.Context, i int) (string, error) {
			return store.Create(ctx, models.SObjectFamilyMember, req.Members[i].Record(primaryID))
		})
		ids, err := results.split()
		if err != nil {
			r.transition(StateRollbackPrimary)
			// family members are master-detail children of the form and go with it
			return Receipt{}, r.fail(ctx, KindDependentCreateFailed, err, nil, primary)
		}
		receipt.MemberIDs = ids
	}

	r.transition(StatePendingAttachments)
	if len(req.Attachments) == 0 {
		r.transition(StateCommitted)
		return receipt, nil
	}

	uploads := r.batch(ctx, "submission.upload_attachments", len(req.Attachments), func(ctx context.Context, i int) (string, error) {
		a := req.Attachments[i]
		return store.UploadAttachment(ctx, salesforce.Upload{Title: a.Name, Data: a.Data, OwnerID: r.o.cfg.AttachmentOwner})
	})
	docIDs, err := uploads.split()
	if err != nil {
		r.transition(StateRollbackDependentsAndPrimary)
		documents := deletion{sobject: models.SObjectContentDocument, ids: uploads.succeeded()}
		return Receipt{}, r.fail(ctx, KindAttachmentUploadFailed, err, uploads.orphanedVersions(), documents, primary)
	}
	receipt.DocumentIDs = docIDs

	r.transition(StatePendingLinks)
	links := r.batch(ctx, "submission.link_attachments", len(docIDs), func(ctx context.Context, i int) (string, error) {
		return store.LinkAttachment(ctx, docIDs[i], primaryID)
	})
	linkIDs, err := links.split()
	if err != nil {
		r.transition(StateRollbackAttachmentsAndAncestors)
		return Receipt{}, r.fail(ctx, KindAttachmentLinkFailed, err, nil,
			deletion{sobject: models.SObjectContentDocumentLink, ids: links.succeeded()},
			deletion{sobject: models.SObjectContentDocument, ids: docIDs},
			primary,
		)
	}
	receipt.LinkIDs = linkIDs

	r.transition(StateCommitted)
	r.log.Info("submission committed", map[string]interface{}{
		"applicationId": primaryID,
		"members":       len(receipt.MemberIDs),
		"attachments":   len(receipt.DocumentIDs),
	})
	return receipt, nil
}

func (r *run) step(ctx context.Context, name string, call func(context.Context) (string, error)) (string, error) {
	ctx, span := r.o.tracer.Start(ctx, name)
	defer span.End()
	id, err := call(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return id, err
}

type outcome struct {
	id  string
	err error
}

type outcomes []outcome

// split returns the ids in member order, or every member error joined.
func (res outcomes) split() ([]string, error) {
	ids := make([]string, 0, len(res))
	var errs []error
	for _, o := range res {
		if o.err != nil {
			errs = append(errs, o.err)
			continue
		}
		ids = append(ids, o.id)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return ids, nil
}

func (res outcomes) succeeded() []string {
	var ids []string
	for _, o := range res {
		if o.err == nil {
			ids = append(ids, o.id)
		}
	}
	return ids
}

// orphanedVersions lists uploads whose version exists but whose document could not be resolved.
func (res outcomes) orphanedVersions() []RollbackFailure {
	var left []RollbackFailure
	for _, o := range res {
		var partial *salesforce.PartialUploadError
		if errors.As(o.err, &partial) {
			left = append(left, RollbackFailure{SObject: models.SObjectContentVersion, ID: partial.VersionID, Err: partial})
		}
	}
	return left
}

// batch runs call for every index and returns once all of them have settled. Results are stored
// by index so completion order does not matter.
func (r *run) batch(ctx context.Context, name string, n int, call func(ctx context.Context, i int) (string, error)) outcomes {
	ctx, span := r.o.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int("size", n)))
	defer span.End()

	var sem chan struct{}
	if r.o.cfg.MaxParallel > 0 {
		sem = make(chan struct{}, r.o.cfg.MaxParallel)
	}

	res := make(outcomes, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			id, err := call(ctx, i)
			res[i] = outcome{id: id, err: err}
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, o := range res {
		if o.err != nil {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("failed", failed))
	if failed > 0 {
		span.SetStatus(codes.Error, "batch member failed")
	}
	return res
}

type deletion struct {
	sobject string
	ids     []string
}

func (r *run) fail(ctx context.Context, kind Kind, cause error, left []RollbackFailure, deletions ...deletion) error {
	left = append(left, r.rollback(ctx, deletions)...)
	r.transition(StateFailed)

	fields := map[string]interface{}{
		"kind":               string(kind),
		"error":              cause,
		"rollbackIncomplete": len(left) > 0,
	}
	if len(left) > 0 {
		leftover := make([]string, 0, len(left))
		for _, f := range left {
			leftover = append(leftover, f.SObject+"/"+f.ID)
		}
		fields["leftover"] = leftover
	}
	r.log.Error("submission failed", fields)

	return &Error{Kind: kind, Cause: cause, Rollback: left}
}

// rollback deletes in the given order on a context that outlives the request, so a cancelled
// job still cleans up. Each delete is attempted once.
func (r *run) rollback(ctx context.Context, deletions []deletion) []RollbackFailure {
	if len(deletions) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.o.cfg.RollbackTimeout)
	defer cancel()
	ctx, span := r.o.tracer.Start(ctx, "submission.rollback")
	defer span.End()

	var failures []RollbackFailure
	for _, d := range deletions {
		if len(d.ids) == 0 {
			continue
		}
		results, err := r.o.store.Destroy(ctx, d.sobject, d.ids...)

		settled := make(map[string]bool, len(results))
		for _, res := range results {
			settled[res.ID] = true
			if rerr := res.Err(); rerr != nil {
				failures = append(failures, r.rollbackFailed(d.sobject, res.ID, rerr))
				continue
			}
			metrics.SubmissionRollbackDeletes.WithLabelValues(d.sobject, "deleted").Inc()
		}
		for _, id := range d.ids {
			if settled[id] {
				continue
			}
			if err == nil {
				err = errors.New("no delete result returned")
			}
			failures = append(failures, r.rollbackFailed(d.sobject, id, err))
		}
	}

	span.SetAttributes(attribute.Int("failures", len(failures)))
	return failures
}

func (r *run) rollbackFailed(sobject, id string, err error) RollbackFailure {
	metrics.SubmissionRollbackDeletes.WithLabelValues(sobject, "failed").Inc()
	r.log.Warn("rollback delete failed", map[string]interface{}{
		"sobject": sobject,
		"id":      id,
		"error":   err,
	})
	return RollbackFailure{SObject: sobject, ID: id, Err: err}
}
