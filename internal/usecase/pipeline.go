package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/V4T54L/dealboard/internal/domain"
	"github.com/V4T54L/dealboard/internal/pipeline"
)

// Mutation statuses reported to the MutationRecorder.
const (
	StatusOK       = "ok"
	StatusInvalid  = "invalid"
	StatusNotFound = "not_found"
	StatusNoop     = "noop"
	StatusError    = "error"
)

// MutationRecorder counts use case outcomes.
type MutationRecorder interface {
	RecordMutation(op, status string)
}

type nopRecorder struct{}

func (nopRecorder) RecordMutation(string, string) {}

// PipelineUseCase performs user-facing pipeline mutations: it changes the
// store and then tells the notification sink what happened.
type PipelineUseCase struct {
	store    *pipeline.Store
	notifier domain.Notifier
	recorder MutationRecorder
	logger   *slog.Logger
}

// NewPipelineUseCase creates a new PipelineUseCase. recorder may be nil.
func NewPipelineUseCase(store *pipeline.Store, notifier domain.Notifier, recorder MutationRecorder, logger *slog.Logger) *PipelineUseCase {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &PipelineUseCase{
		store:    store,
		notifier: notifier,
		recorder: recorder,
		logger:   logger.With("component", "pipeline_usecase"),
	}
}

// CreateDeal adds a deal from the new-deal form. Empty stage and priority
// fall back to the form defaults.
func (uc *PipelineUseCase) CreateDeal(ctx context.Context, fields domain.NewDealFields) (domain.Deal, error) {
	ctx, span := otel.Tracer("pipeline-usecase").Start(ctx, "CreateDeal")
	defer span.End()

	deal, err := uc.store.Add(fields.WithDefaults())
	uc.record("create", err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.Deal{}, err
	}
	span.SetAttributes(attribute.String("deal.id", deal.ID), attribute.String("deal.stage", string(deal.Stage)))

	uc.notify(ctx, domain.Toast{
		Title:       "Deal Created",
		Description: fmt.Sprintf("%s has been added to your pipeline.", deal.Title),
	})
	return deal, nil
}

// EditDeal applies a partial update from the edit form.
func (uc *PipelineUseCase) EditDeal(ctx context.Context, id string, patch domain.DealPatch) (domain.Deal, error) {
	ctx, span := otel.Tracer("pipeline-usecase").Start(ctx, "EditDeal")
	defer span.End()
	span.SetAttributes(attribute.String("deal.id", id))

	deal, err := uc.store.Update(id, patch)
	uc.record("edit", err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.Deal{}, err
	}

	uc.notify(ctx, domain.Toast{
		Title:       "Deal Updated",
		Description: fmt.Sprintf("%s has been successfully updated.", deal.Title),
	})
	return deal, nil
}

// MoveDeal moves a deal to another stage.
func (uc *PipelineUseCase) MoveDeal(ctx context.Context, id string, stage domain.StageID) (domain.Deal, error) {
	ctx, span := otel.Tracer("pipeline-usecase").Start(ctx, "MoveDeal")
	defer span.End()
	span.SetAttributes(attribute.String("deal.id", id), attribute.String("deal.stage", string(stage)))

	deal, err := uc.store.Move(id, stage)
	uc.record("move", err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.Deal{}, err
	}

	uc.notify(ctx, uc.movedToast(deal))
	return deal, nil
}

// DropDeal handles a drag-and-drop gesture that released a deal card from
// column source onto column destination. Dropping onto the same column is
// a no-op and reports moved=false.
func (uc *PipelineUseCase) DropDeal(ctx context.Context, id string, source, destination domain.StageID) (deal domain.Deal, moved bool, err error) {
	ctx, span := otel.Tracer("pipeline-usecase").Start(ctx, "DropDeal")
	defer span.End()
	span.SetAttributes(
		attribute.String("deal.id", id),
		attribute.String("drop.source", string(source)),
		attribute.String("drop.destination", string(destination)),
	)

	if source == destination {
		uc.recorder.RecordMutation("drop", StatusNoop)
		deal, err = uc.store.Get(id)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		return deal, false, err
	}

	deal, err = uc.store.Move(id, destination)
	uc.record("drop", err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.Deal{}, false, err
	}

	uc.notify(ctx, uc.movedToast(deal))
	return deal, true, nil
}

// DeleteDeal removes a deal permanently. It returns *domain.NotFoundError
// when no deal has the id.
func (uc *PipelineUseCase) DeleteDeal(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("pipeline-usecase").Start(ctx, "DeleteDeal")
	defer span.End()
	span.SetAttributes(attribute.String("deal.id", id))

	if !uc.store.Delete(id) {
		err := &domain.NotFoundError{ID: id}
		uc.record("delete", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	uc.record("delete", nil)

	uc.notify(ctx, domain.Toast{
		Title:       "Deal Deleted",
		Description: "Deal has been removed from pipeline.",
		Severity:    domain.SeverityDestructive,
	})
	return nil
}

func (uc *PipelineUseCase) movedToast(deal domain.Deal) domain.Toast {
	return domain.Toast{
		Title:       "Deal Moved",
		Description: fmt.Sprintf("%s moved to %s", deal.Title, uc.store.Registry().DisplayName(deal.Stage)),
	}
}

// notify never fails the caller; the mutation has already happened.
func (uc *PipelineUseCase) notify(ctx context.Context, toast domain.Toast) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Notify(ctx, toast); err != nil {
		uc.logger.Warn("failed to deliver toast", "error", err, "title", toast.Title)
	}
}

func (uc *PipelineUseCase) record(op string, err error) {
	uc.recorder.RecordMutation(op, statusOf(err))
}

func statusOf(err error) string {
	var verrs domain.ValidationErrors
	switch {
	case err == nil:
		return StatusOK
	case errors.As(err, &verrs), errors.Is(err, domain.ErrInvalidStage):
		return StatusInvalid
	case errors.Is(err, domain.ErrNotFound):
		return StatusNotFound
	default:
		return StatusError
	}
}
