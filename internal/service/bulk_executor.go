package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
	"github.com/noah-isme/brosis-admin-api/internal/models"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
)

// BulkTarget is anything addressable by ID in a bulk call.
type BulkTarget interface {
	TargetID() string
}

// BulkActor is the operator running a bulk call.
type BulkActor struct {
	ID       string
	Username string
	Role     models.UserRole
	Area     string
	Meta     models.RequestMeta
}

// IsRoot reports whether the actor holds the top-level role.
func (a BulkActor) IsRoot() bool {
	return a.Role == models.RoleRoot
}

// BulkSource loads targets for the executor. Candidates backs "all" mode and
// is expected to leave protected rows out already.
type BulkSource[T BulkTarget] interface {
	Candidates(ctx context.Context, actor BulkActor) ([]T, error)
	FindByIDs(ctx context.Context, ids []string) ([]T, error)
}

// BulkMutation describes one kind of bulk change.
//
// Authorize and NoOp are optional and return a reason when they stop a
// target. Apply returning sql.ErrNoRows means the target vanished meanwhile.
type BulkMutation[T BulkTarget] struct {
	Name        string
	Destructive bool
	Authorize   func(actor BulkActor, target T) (bool, string)
	NoOp        func(target T) (bool, string)
	Apply       func(ctx context.Context, target T) error
}

// GuardHook is told about every protected target the executor refused.
type GuardHook[T BulkTarget] func(ctx context.Context, actor BulkActor, target T, mutation string)

// BulkExecutor applies a mutation to a selection while honouring a guard.
type BulkExecutor[T BulkTarget] struct {
	source  BulkSource[T]
	guard   func(T) bool
	onGuard GuardHook[T]
	reason  func(T) string
	noun    string
	logger  *zap.Logger
}

// BulkExecutorOption customises a BulkExecutor.
type BulkExecutorOption[T BulkTarget] func(*BulkExecutor[T])

// WithGuard installs the protection predicate together with the hook that
// records refused targets and the reason shown to the caller.
func WithGuard[T BulkTarget](guard func(T) bool, reason func(T) string, hook GuardHook[T]) BulkExecutorOption[T] {
	return func(e *BulkExecutor[T]) {
		e.guard = guard
		e.reason = reason
		e.onGuard = hook
	}
}

// WithNoun sets the word used in not-found reasons.
func WithNoun[T BulkTarget](noun string) BulkExecutorOption[T] {
	return func(e *BulkExecutor[T]) {
		e.noun = noun
	}
}

// NewBulkExecutor constructs an executor.
func NewBulkExecutor[T BulkTarget](source BulkSource[T], logger *zap.Logger, opts ...BulkExecutorOption[T]) *BulkExecutor[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	exec := &BulkExecutor[T]{source: source, noun: "record", logger: logger}
	for _, opt := range opts {
		opt(exec)
	}
	return exec
}

// Execute runs mutation over the selection described by req. Per-target
// failures are counted and never stop the pass; only an unreachable store
// aborts it, returning the partial result together with the error.
func (e *BulkExecutor[T]) Execute(ctx context.Context, req dto.BulkRequest, mutation BulkMutation[T], actor BulkActor) (dto.OperationResult, error) {
	var result dto.OperationResult
	if mutation.Apply == nil {
		return result, appErrors.Clone(appErrors.ErrInternal, "bulk mutation has no apply step")
	}

	switch req.Mode {
	case dto.BulkModeAll:
		targets, err := e.source.Candidates(ctx, actor)
		if err != nil {
			return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to load %s candidates", e.noun))
		}
		for _, target := range targets {
			if mutation.Destructive && target.TargetID() == actor.ID {
				continue
			}
			if err := e.process(ctx, &result, target, mutation, actor); err != nil {
				return result, err
			}
		}
	case dto.BulkModeSelected:
		ids := uniqueIDs(req.IDs)
		if len(ids) == 0 {
			return result, nil
		}
		found, err := e.source.FindByIDs(ctx, ids)
		if err != nil {
			return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to load selected %ss", e.noun))
		}
		byID := make(map[string]T, len(found))
		for _, target := range found {
			byID[target.TargetID()] = target
		}
		for _, id := range ids {
			target, ok := byID[id]
			if !ok {
				result.RecordSkip(id, dto.DetailKindNotFound, e.noun+" not found")
				continue
			}
			if err := e.process(ctx, &result, target, mutation, actor); err != nil {
				return result, err
			}
		}
	default:
		return result, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported bulk mode %q", req.Mode))
	}

	e.logger.Info("bulk operation completed",
		zap.String("mutation", mutation.Name),
		zap.String("mode", string(req.Mode)),
		zap.String("actor_id", actor.ID),
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)

	return result, nil
}

func (e *BulkExecutor[T]) process(ctx context.Context, result *dto.OperationResult, target T, mutation BulkMutation[T], actor BulkActor) error {
	id := target.TargetID()

	if e.guard != nil && e.guard(target) {
		reason := "protected account"
		if e.reason != nil {
			reason = e.reason(target)
		}
		result.RecordSkip(id, dto.DetailKindRootProtection, reason)
		e.logger.Warn("bulk operation refused protected target",
			zap.String("mutation", mutation.Name),
			zap.String("target_id", id),
			zap.String("actor_id", actor.ID),
		)
		if e.onGuard != nil {
			e.onGuard(ctx, actor, target, mutation.Name)
		}
		return nil
	}

	if mutation.Destructive && id == actor.ID {
		result.RecordSkip(id, dto.DetailKindSelf, "cannot delete your own account")
		return nil
	}

	if mutation.Authorize != nil {
		if ok, reason := mutation.Authorize(actor, target); !ok {
			result.RecordSkip(id, dto.DetailKindForbidden, reason)
			return nil
		}
	}

	if mutation.NoOp != nil {
		if noop, reason := mutation.NoOp(target); noop {
			result.RecordSkip(id, dto.DetailKindNoOp, reason)
			return nil
		}
	}

	if err := mutation.Apply(ctx, target); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			result.RecordSkip(id, dto.DetailKindNotFound, e.noun+" already deleted")
		case IsFatalStoreError(err):
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "database unavailable during bulk operation")
		default:
			e.logger.Error("bulk mutation failed",
				zap.String("mutation", mutation.Name),
				zap.String("target_id", id),
				zap.Error(err),
			)
			result.RecordFailure(id, err.Error())
		}
		return nil
	}

	result.RecordSuccess(id)
	return nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
