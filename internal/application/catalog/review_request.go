package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// Decision is an administrator's review outcome.
type Decision string

// Review decisions.
const (
	DecisionApprove              Decision = "approve"
	DecisionReject               Decision = "reject"
	DecisionRequestModifications Decision = "request_modifications"
)

// ParseDecision parses a decision name.
func ParseDecision(s string) (Decision, error) {
	d := Decision(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DecisionApprove, DecisionReject, DecisionRequestModifications:
		return d, nil
	}
	return "", fmt.Errorf("unknown decision %q", s)
}

// ReviewRequestInput represents the input for the ReviewRequest use case.
type ReviewRequestInput struct {
	Actor     Actor
	RequestID int64
	Decision  Decision
	Notes     string
	Reason    string

	// Optional endpoint overrides applied on approval.
	EndpointBase string
	EndpointSlug string
}

// Validate validates the ReviewRequestInput.
func (i *ReviewRequestInput) Validate() error {
	const op = "catalog.ReviewRequest"
	if err := requireAdmin(op, i.Actor); err != nil {
		return err
	}

	var fe apperrors.FieldErrors
	if i.RequestID <= 0 {
		fe.Add("request_id", "is required")
	}
	switch i.Decision {
	case DecisionApprove:
		textLength(&fe, "review_notes", i.Notes, 0, MaxReviewTextLength)
	case DecisionReject:
		textLength(&fe, "rejection_reason", i.Reason, MinReviewTextLength, MaxReviewTextLength)
	case DecisionRequestModifications:
		textLength(&fe, "review_notes", i.Notes, MinReviewTextLength, MaxReviewTextLength)
	default:
		fe.Addf("decision", "must be one of %s, %s, %s",
			DecisionApprove, DecisionReject, DecisionRequestModifications)
	}
	return fe.ToError(op)
}

// ReviewRequestOutput represents the output of the ReviewRequest use case.
type ReviewRequestOutput struct {
	Request *catalog.ServiceRequest
	// Service is set when the request was approved.
	Service *catalog.Service
	// Attempts is how many transactions were tried.
	Attempts int
}

// ReviewRequestUseCase applies an administrator's decision to a pending request.
type ReviewRequestUseCase struct {
	store    Store
	promoter *Promoter
	retry    RetryPolicy
	logger   *slog.Logger
}

// NewReviewRequestUseCase creates a new ReviewRequestUseCase.
func NewReviewRequestUseCase(store Store, promoter *Promoter, retry RetryPolicy) *ReviewRequestUseCase {
	if promoter == nil {
		promoter = NewPromoter(nil)
	}
	return &ReviewRequestUseCase{
		store:    store,
		promoter: promoter,
		retry:    retry,
		logger:   slog.Default().With("usecase", "review_request"),
	}
}

// Execute executes the review request use case. Approval runs promotion and
// the request update in a single unit of work, retried on storage conflicts.
func (uc *ReviewRequestUseCase) Execute(ctx context.Context, input ReviewRequestInput) (*ReviewRequestOutput, error) {
	const op = "catalog.ReviewRequest"

	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	attempts := 0
	out, err := withRetry(ctx, uc.retry, func(ctx context.Context) (*ReviewRequestOutput, error) {
		attempts++
		out := &ReviewRequestOutput{}
		err := catalog.WithTransaction(ctx, uc.store, func(uow catalog.UnitOfWork) error {
			req, err := uow.Requests().FindByID(ctx, input.RequestID)
			if err != nil {
				return fmt.Errorf("failed to find request: %w", err)
			}
			if !req.Status().IsReviewable() {
				return apperrors.StateWrap(catalog.ErrInvalidStateTransition, op,
					fmt.Sprintf("request %d is %s; only pending_review requests can be reviewed", req.ID(), req.Status())).
					WithDetail("status", string(req.Status()))
			}
			out.Request = req

			switch input.Decision {
			case DecisionApprove:
				svc, err := uc.promoter.Promote(ctx, uow, req, PromoteOptions{
					ReviewerID:   input.Actor.ID,
					Notes:        input.Notes,
					EndpointBase: input.EndpointBase,
					EndpointSlug: input.EndpointSlug,
				})
				if err != nil {
					return err
				}
				out.Service = svc
				return nil
			case DecisionReject:
				if err := req.Reject(input.Actor.ID, input.Reason); err != nil {
					return err
				}
			case DecisionRequestModifications:
				if err := req.RequestModifications(input.Actor.ID, input.Notes); err != nil {
					return err
				}
			}
			if err := uow.Requests().Save(ctx, req); err != nil {
				return fmt.Errorf("failed to save request: %w", err)
			}
			return nil
		})
		if err != nil {
			if apperrors.IsRetryableConflict(err) {
				uc.logger.Warn("review transaction conflicted",
					"request_id", input.RequestID,
					"attempt", attempts,
					"error", err)
			}
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	out.Attempts = attempts

	attrs := []any{
		"request_id", out.Request.ID(),
		"decision", string(input.Decision),
		"reviewer_id", input.Actor.ID,
	}
	if out.Service != nil {
		attrs = append(attrs, "service_id", out.Service.ID(), "endpoint", out.Service.URL())
	}
	uc.logger.Info("service request reviewed", attrs...)

	return out, nil
}
