package whitelist

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ststudios/whitelist/db"
	"github.com/ststudios/whitelist/types"
)

// Action is an admin decision on a pending application
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Validation bounds for submissions
const (
	MinAge              = 13
	MaxAge              = 99
	MinExperienceLength = 100
	MaxExperienceLength = 5000
	MinReasonLength     = 5
)

// Sink delivers decision notifications to applicants. Delivery is
// best-effort: implementations report the outcome as a boolean and never
// fail a decision because the recipient is unreachable.
type Sink interface {
	Notify(ctx context.Context, app types.Application) bool
}

// Workflow enforces the whitelist application state machine. It is the sole
// writer of applications: gateways authenticate callers and delegate here,
// never touching the store directly.
type Workflow struct {
	store  db.Store
	sink   Sink
	logger *logrus.Entry
}

// NewWorkflow creates the workflow on top of a store and a notification sink
func NewWorkflow(store db.Store, sink Sink, logger *logrus.Entry) *Workflow {
	return &Workflow{
		store:  store,
		sink:   sink,
		logger: logger,
	}
}

// SubmitInput carries the authenticated applicant identity and the form
// fields of one submission.
type SubmitInput struct {
	ApplicantID     string
	ApplicantName   string
	ApplicantAvatar string
	GameHandle      string
	Age             int64
	Experience      string
}

// Decision is the result of a decide call. Delivered reports whether the
// notification reached the applicant; the status change is committed either
// way.
type Decision struct {
	Application *types.Application
	Delivered   bool
}

// Submit validates a submission and creates the applicant's application, or
// resubmits over a rejected one. A pending or approved application blocks
// new submissions.
func (w *Workflow) Submit(ctx context.Context, in SubmitInput) (*types.Application, error) {
	if err := validateSubmit(in); err != nil {
		return nil, err
	}

	existing, err := w.store.FindByApplicantID(ctx, in.ApplicantID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		switch existing.Status {
		case types.StatusPending:
			return nil, &ConflictError{
				Status:  string(types.StatusPending),
				Message: "Você já tem um formulário pendente de análise. Aguarde a resposta.",
			}
		case types.StatusApproved:
			return nil, &ConflictError{
				Status:  string(types.StatusApproved),
				Message: "Seu formulário já foi APROVADO! Você não pode enviar outro.",
			}
		}
		// Rejected: overwrite in place and send it back to review
		existing.ApplicantName = in.ApplicantName
		existing.ApplicantAvatar = in.ApplicantAvatar
		existing.GameHandle = in.GameHandle
		existing.Age = in.Age
		existing.Experience = in.Experience
		existing.Status = types.StatusPending
		existing.RejectionReason = ""
		updated, err := w.store.Update(ctx, existing)
		if err != nil {
			return nil, err
		}
		w.logger.WithFields(logrus.Fields{
			"id":        updated.ID,
			"applicant": updated.ApplicantID,
		}).Info("Application resubmitted")
		return updated, nil
	}

	created, err := w.store.Insert(ctx, &types.Application{
		ApplicantID:     in.ApplicantID,
		ApplicantName:   in.ApplicantName,
		ApplicantAvatar: in.ApplicantAvatar,
		GameHandle:      in.GameHandle,
		Age:             in.Age,
		Experience:      in.Experience,
		Status:          types.StatusPending,
	})
	if errors.Is(err, db.ErrDuplicateApplicant) {
		// Lost a race against a concurrent submission by the same applicant
		return nil, &ConflictError{
			Status:  string(types.StatusPending),
			Message: "Você já tem um formulário cadastrado.",
		}
	}
	if err != nil {
		return nil, err
	}
	w.logger.WithFields(logrus.Fields{
		"id":        created.ID,
		"applicant": created.ApplicantID,
	}).Info("New application submitted")
	return created, nil
}

// Decide applies an admin decision to the application with the given id,
// then notifies the applicant. Notification failures are absorbed: the
// commit stands and Delivered carries the outcome.
func (w *Workflow) Decide(ctx context.Context, id string, action Action, reason string) (*Decision, error) {
	reason = strings.TrimSpace(reason)
	switch action {
	case ActionApprove:
		reason = ""
	case ActionReject:
		if len([]rune(reason)) < MinReasonLength {
			return nil, &ValidationError{
				Field:   "motivo",
				Message: "Motivo da reprovação é obrigatório (mínimo 5 caracteres)",
			}
		}
	default:
		return nil, &ValidationError{Field: "action", Message: "Ação inválida"}
	}

	app, err := w.store.FindByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}

	if action == ActionApprove {
		app.Status = types.StatusApproved
	} else {
		app.Status = types.StatusRejected
	}
	app.RejectionReason = reason

	updated, err := w.store.Update(ctx, app)
	if errors.Is(err, db.ErrNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}

	delivered := w.sink.Notify(ctx, *updated)
	w.logger.WithFields(logrus.Fields{
		"id":        updated.ID,
		"applicant": updated.ApplicantID,
		"status":    updated.Status,
		"delivered": delivered,
	}).Info("Application decided")

	return &Decision{Application: updated, Delivered: delivered}, nil
}

// GetByID fetches one application
func (w *Workflow) GetByID(ctx context.Context, id string) (*types.Application, error) {
	app, err := w.store.FindByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	return app, err
}

// GetByApplicantID fetches the application owned by a Discord user
func (w *Workflow) GetByApplicantID(ctx context.Context, applicantID string) (*types.Application, error) {
	app, err := w.store.FindByApplicantID(ctx, applicantID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, &NotFoundError{ID: applicantID}
	}
	return app, err
}

// List returns applications with the given status, most recent first. An
// empty status lists all applications.
func (w *Workflow) List(ctx context.Context, status types.Status, limit int64) ([]types.Application, error) {
	if status != "" && !status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "Status inválido"}
	}
	return w.store.ListByStatus(ctx, status, limit)
}

// Stats returns the per-status application counts
func (w *Workflow) Stats(ctx context.Context) ([]types.StatusCount, error) {
	counts, err := w.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	stats := make([]types.StatusCount, 0, 3)
	for _, status := range []types.Status{types.StatusPending, types.StatusApproved, types.StatusRejected} {
		stats = append(stats, types.StatusCount{Status: status, Count: counts[status]})
	}
	return stats, nil
}

// Search finds applications by id, applicant id, or a name/handle substring
func (w *Workflow) Search(ctx context.Context, query string, limit int64) ([]types.Application, error) {
	return w.store.Search(ctx, query, limit)
}

func validateSubmit(in SubmitInput) error {
	if strings.TrimSpace(in.GameHandle) == "" {
		return &ValidationError{Field: "roblox", Message: "Preencha todos os campos"}
	}
	if strings.TrimSpace(in.Experience) == "" {
		return &ValidationError{Field: "experiencia", Message: "Preencha todos os campos"}
	}
	if in.Age < MinAge || in.Age > MaxAge {
		return &ValidationError{Field: "idade", Message: "Idade deve ser entre 13 e 99 anos"}
	}
	if length := len([]rune(in.Experience)); length < MinExperienceLength {
		return &ValidationError{Field: "experiencia", Message: "A experiência deve ter no mínimo 100 caracteres"}
	} else if length > MaxExperienceLength {
		return &ValidationError{Field: "experiencia", Message: "A experiência deve ter no máximo 5000 caracteres"}
	}
	return nil
}
