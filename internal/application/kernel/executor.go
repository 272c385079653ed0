// Package kernel runs every state-changing operation of a finance entity
// through one template: load, version check, period gate, state graph,
// segregation of duties, entity rules, then the guarded write plus its audit
// record, all inside one transaction.
package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/finkernel/internal/domain/audit"
	"github.com/erp/finkernel/internal/domain/period"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/domain/sod"
	sm "github.com/erp/finkernel/internal/domain/statemachine"
	"github.com/erp/finkernel/internal/infrastructure/logger"
	"github.com/erp/finkernel/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Audit actions written by the executor besides the graph actions.
const (
	AuditCreate      = "create"
	AuditUpdate      = "update"
	AuditAutoApprove = "auto_approve"
)

// TxRunner runs fn inside one database transaction. The transaction is
// carried by the context passed to fn.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PeriodGate checks whether a posting date accepts a posting.
type PeriodGate interface {
	CheckPosting(ctx context.Context, tc shared.TenantContext, p period.Posting) (period.PeriodStatus, error)
}

// Policy evaluates segregation of duties. *sod.Policy implements it.
type Policy interface {
	EvaluateSoD(ctx context.Context, tc shared.TenantContext, makerID, checkerID string) (sod.Decision, error)
	EvaluateApproval(ctx context.Context, tc shared.TenantContext, req sod.ApprovalRequest) (sod.Decision, error)
	GetApprovalRequirements(ctx context.Context, tc shared.TenantContext, amount decimal.Decimal, currency string) (sod.ApprovalRequirement, error)
	HasRoleAtLeast(ctx context.Context, tc shared.TenantContext, actorID string, min sod.Role) (sod.Decision, error)
}

// Approvable is implemented by entities that go through maker/checker
// approval.
type Approvable interface {
	ApprovalProgress() *shared.ApprovalProgress
}

// Deps are the collaborators shared by every executor.
type Deps struct {
	Tx      TxRunner
	Periods PeriodGate
	Policy  Policy
	Audit   audit.Recorder
	Clock   shared.Clock
	IDs     shared.IDGenerator
	Metrics *telemetry.KernelMetrics
}

// Config describes one entity type.
type Config[T shared.Versioned] struct {
	Entity shared.EntityKind
	Graph  *sm.Graph
	Repo   shared.VersionedRepository[T]

	// Amount returns the value judged by the approval tiers.
	Amount func(T) (decimal.Decimal, string)
	// FixedRole replaces the amount tiers with a single-level approval by
	// this role or higher.
	FixedRole sod.Role
	// Posting reports whether action posts against a fiscal period.
	Posting func(entity T, action sm.Action) (period.Posting, bool)
	// Authorize guards actions other than approve and reject.
	Authorize func(ctx context.Context, tc shared.TenantContext, entity T, action sm.Action) error
}

// Executor applies the mutation template to entities of type T.
type Executor[T shared.Versioned] struct {
	deps   Deps
	cfg    Config[T]
	locked []string
}

// New creates an executor. Clock and IDs default to the system clock and
// random UUIDs.
func New[T shared.Versioned](deps Deps, cfg Config[T]) *Executor[T] {
	if deps.Clock == nil {
		deps.Clock = shared.SystemClock{}
	}
	if deps.IDs == nil {
		deps.IDs = shared.UUIDGenerator{}
	}
	locked := cfg.Graph.LockedStates()
	names := make([]string, len(locked))
	for i, s := range locked {
		names[i] = string(s)
	}
	return &Executor[T]{deps: deps, cfg: cfg, locked: names}
}

// Entity returns the entity kind handled by the executor
func (e *Executor[T]) Entity() shared.EntityKind { return e.cfg.Entity }

// Graph returns the state graph of the entity
func (e *Executor[T]) Graph() *sm.Graph { return e.cfg.Graph }

// Now returns the executor clock's time
func (e *Executor[T]) Now() time.Time { return e.deps.Clock.Now() }

// InTx runs fn in a transaction without mutation bookkeeping. Services use it
// for composite operations.
func (e *Executor[T]) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return e.deps.Tx.InTx(ctx, fn)
}

// Get loads one entity of the tenant.
func (e *Executor[T]) Get(ctx context.Context, tc shared.TenantContext, id uuid.UUID) (T, error) {
	if err := tc.Validate(); err != nil {
		var zero T
		return zero, err
	}
	return e.cfg.Repo.FindByID(ctx, tc, id)
}

// List returns one page of the tenant's entities.
func (e *Executor[T]) List(ctx context.Context, tc shared.TenantContext, opts shared.ListOptions) ([]T, int64, error) {
	if err := tc.Validate(); err != nil {
		return nil, 0, err
	}
	return e.cfg.Repo.List(ctx, tc, opts)
}

// AvailableActions lists the actions the graph accepts from the entity's
// current status. It does not evaluate SoD or period rules.
func (e *Executor[T]) AvailableActions(ctx context.Context, tc shared.TenantContext, id uuid.UUID) ([]sm.Action, error) {
	entity, err := e.Get(ctx, tc, id)
	if err != nil {
		return nil, err
	}
	return e.cfg.Graph.AvailableActions(sm.State(entity.Base().Status)), nil
}

// Create runs build inside a transaction, stamps the result as a new record
// in the graph's initial state and writes it with a create audit event.
// build performs the entity rules, e.g. duplicate detection.
func (e *Executor[T]) Create(ctx context.Context, tc shared.TenantContext, build func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.run(ctx, tc, AuditCreate, uuid.Nil, func(ctx context.Context) error {
		entity, err := build(ctx)
		if err != nil {
			return err
		}
		e.Stamp(tc, entity, e.cfg.Graph.Initial())
		if err := e.cfg.Repo.Create(ctx, tc, entity); err != nil {
			return err
		}
		if err := e.Audit(ctx, tc, AuditCreate, entity.Base().ID, nil, entity); err != nil {
			return err
		}
		out = entity
		return nil
	})
	return out, err
}

// UpdateRequest describes a field edit.
type UpdateRequest[T shared.Versioned] struct {
	ID              uuid.UUID
	ExpectedVersion *int
	// Apply mutates the loaded entity and runs the entity rules.
	Apply func(ctx context.Context, entity T) error
}

// Update applies a field edit. Immutable, terminal and review records refuse
// edits in the service and again in the storage guard.
func (e *Executor[T]) Update(ctx context.Context, tc shared.TenantContext, req UpdateRequest[T]) (T, error) {
	var out T
	err := e.run(ctx, tc, AuditUpdate, req.ID, func(ctx context.Context) error {
		entity, err := e.cfg.Repo.FindByID(ctx, tc, req.ID)
		if err != nil {
			return err
		}
		base := entity.Base()
		if err := shared.CheckVersion(e.cfg.Entity, base.ID, req.ExpectedVersion, base.Version); err != nil {
			return err
		}
		if !e.cfg.Graph.IsEditable(sm.State(base.Status)) {
			return shared.InvalidTransition(e.cfg.Entity, base.Status, AuditUpdate).WithDetail("reason", "immutable")
		}
		before, err := json.Marshal(entity)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", e.cfg.Entity, err)
		}
		if err := req.Apply(ctx, entity); err != nil {
			return err
		}
		e.touch(tc, base)
		if err := e.cfg.Repo.Update(ctx, tc, entity, base.Version, e.locked); err != nil {
			return err
		}
		if err := e.Audit(ctx, tc, AuditUpdate, base.ID, json.RawMessage(before), entity); err != nil {
			return err
		}
		out = entity
		return nil
	})
	return out, err
}

// TransitionRequest describes a state change.
type TransitionRequest[T shared.Versioned] struct {
	ID              uuid.UUID
	ExpectedVersion *int
	Action          sm.Action
	// Hook runs the entity rules once the transition is authorized. It may
	// mutate the entity and write related records inside the transaction.
	Hook func(ctx context.Context, entity T, to sm.State) error
}

// Transition applies req.Action to the entity.
func (e *Executor[T]) Transition(ctx context.Context, tc shared.TenantContext, req TransitionRequest[T]) (T, error) {
	var out T
	err := e.run(ctx, tc, string(req.Action), req.ID, func(ctx context.Context) error {
		// 1. load
		entity, err := e.cfg.Repo.FindByID(ctx, tc, req.ID)
		if err != nil {
			return err
		}
		base := entity.Base()

		// 2. version
		if err := shared.CheckVersion(e.cfg.Entity, base.ID, req.ExpectedVersion, base.Version); err != nil {
			return err
		}

		// 3. period
		if err := e.checkPeriod(ctx, tc, entity, req); err != nil {
			return err
		}

		// 4. graph
		from := sm.State(base.Status)
		to, err := e.cfg.Graph.Next(from, req.Action)
		if err != nil {
			return e.illegal(err)
		}

		before, err := json.Marshal(entity)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", e.cfg.Entity, err)
		}

		// 5. segregation of duties
		auditAction := string(req.Action)
		to, auditAction, err = e.authorize(ctx, tc, entity, req.Action, from, to, auditAction)
		if err != nil {
			return err
		}

		// 6. entity rules
		if req.Hook != nil {
			if err := req.Hook(ctx, entity, to); err != nil {
				return err
			}
		}

		// 7. write + audit
		if to == e.cfg.Graph.Initial() && from != to {
			if a, ok := any(entity).(Approvable); ok {
				a.ApprovalProgress().Reset()
			}
		}
		base.Status = string(to)
		e.touch(tc, base)
		if err := e.cfg.Repo.Update(ctx, tc, entity, base.Version, nil); err != nil {
			return err
		}
		if err := e.Audit(ctx, tc, auditAction, base.ID, json.RawMessage(before), entity); err != nil {
			return err
		}
		logger.L(ctx).Info("State transition committed",
			zap.String("entity", string(e.cfg.Entity)),
			zap.String("entity_id", base.ID.String()),
			zap.String("action", auditAction),
			zap.String("from_state", string(from)),
			zap.String("to_state", string(to)),
			zap.Int("version", base.Version),
		)
		out = entity
		return nil
	})
	return out, err
}

func (e *Executor[T]) checkPeriod(ctx context.Context, tc shared.TenantContext, entity T, req TransitionRequest[T]) error {
	if e.cfg.Posting == nil || e.deps.Periods == nil {
		return nil
	}
	posting, ok := e.cfg.Posting(entity, req.Action)
	if !ok {
		return nil
	}
	return e.CheckPosting(ctx, tc, posting)
}

// CheckPosting runs the period gate for a posting that is not dated by the
// entity being transitioned, such as the counter entry of a reversal.
func (e *Executor[T]) CheckPosting(ctx context.Context, tc shared.TenantContext, p period.Posting) error {
	if e.deps.Periods == nil {
		return nil
	}
	_, err := e.deps.Periods.CheckPosting(ctx, tc, p)
	return err
}

func (e *Executor[T]) illegal(err error) error {
	var ite *sm.IllegalTransitionError
	if errors.As(err, &ite) {
		return shared.InvalidTransition(e.cfg.Entity, string(ite.From), string(ite.Action))
	}
	return err
}

// authorize runs the SoD checks of action and returns the effective target
// state and audit action.
func (e *Executor[T]) authorize(ctx context.Context, tc shared.TenantContext, entity T, action sm.Action, from, to sm.State, auditAction string) (sm.State, string, error) {
	approvable, isApprovable := any(entity).(Approvable)
	switch {
	case isApprovable && action == submitAction:
		return e.submit(ctx, tc, entity, approvable.ApprovalProgress(), to, auditAction)
	case isApprovable && action == approveAction:
		return e.approve(ctx, tc, entity, approvable.ApprovalProgress(), from, to, auditAction)
	case isApprovable && action == rejectAction:
		for _, maker := range approvable.ApprovalProgress().Makers(entity.Base().CreatedBy) {
			d, err := e.deps.Policy.EvaluateSoD(ctx, tc, maker, tc.ActorID)
			if err != nil {
				return to, auditAction, err
			}
			if err := e.decide(ctx, d); err != nil {
				return to, auditAction, err
			}
		}
		return to, auditAction, nil
	case e.cfg.Authorize != nil:
		return to, auditAction, e.cfg.Authorize(ctx, tc, entity, action)
	}
	return to, auditAction, nil
}

const (
	submitAction  sm.Action = "submit"
	approveAction sm.Action = "approve"
	rejectAction  sm.Action = "reject"
)

func (e *Executor[T]) submit(ctx context.Context, tc shared.TenantContext, entity T, progress *shared.ApprovalProgress, to sm.State, auditAction string) (sm.State, string, error) {
	progress.Reset()
	progress.SubmittedBy = tc.ActorID
	if e.cfg.FixedRole != "" {
		progress.RequiredLevels = 1
		return to, auditAction, nil
	}
	amount, currency := e.amount(entity)
	req, err := e.deps.Policy.GetApprovalRequirements(ctx, tc, amount, currency)
	if err != nil {
		return to, auditAction, err
	}
	progress.RequiredLevels = req.Levels
	if !req.AutoApprove() {
		return to, auditAction, nil
	}
	approved, err := e.cfg.Graph.Next(to, approveAction)
	if err != nil {
		return to, auditAction, e.illegal(err)
	}
	now := e.deps.Clock.Now()
	progress.ApprovedAt = &now
	e.deps.Metrics.RecordApprovedAmount(ctx, tc.TenantID, string(e.cfg.Entity), amount, currency)
	return approved, AuditAutoApprove, nil
}

func (e *Executor[T]) approve(ctx context.Context, tc shared.TenantContext, entity T, progress *shared.ApprovalProgress, from, to sm.State, auditAction string) (sm.State, string, error) {
	amount, currency := e.amount(entity)
	level := progress.Level + 1
	d, err := e.deps.Policy.EvaluateApproval(ctx, tc, sod.ApprovalRequest{
		Makers:            progress.Makers(entity.Base().CreatedBy),
		CheckerID:         tc.ActorID,
		PreviousApprovers: progress.ApprovedBy,
		Amount:            amount,
		Currency:          currency,
		Level:             level,
		FixedRole:         e.cfg.FixedRole,
	})
	if err != nil {
		return to, auditAction, err
	}
	if err := e.decide(ctx, d); err != nil {
		return to, auditAction, err
	}

	if e.cfg.FixedRole == "" {
		req, err := e.deps.Policy.GetApprovalRequirements(ctx, tc, amount, currency)
		if err != nil {
			return to, auditAction, err
		}
		progress.RequiredLevels = max(progress.RequiredLevels, req.Levels)
	}
	progress.Level = level
	progress.ApprovedBy = append(progress.ApprovedBy, tc.ActorID)
	required := max(progress.RequiredLevels, 1)
	if level < required {
		return from, auditAction, nil
	}
	now := e.deps.Clock.Now()
	progress.ApprovedAt = &now
	e.deps.Metrics.RecordApprovedAmount(ctx, tc.TenantID, string(e.cfg.Entity), amount, currency)
	return to, auditAction, nil
}

// decide turns a policy decision into an error, logging exemption use.
func (e *Executor[T]) decide(ctx context.Context, d sod.Decision) error {
	if d.Allowed && d.PolicyCode == sod.PolicyExempt {
		logger.L(ctx).Warn("SoD exemption applied",
			zap.String("entity", string(e.cfg.Entity)),
			zap.String("policy_code", d.PolicyCode),
			zap.String("reason", d.Reason),
		)
	}
	return d.Err(e.cfg.Entity)
}

func (e *Executor[T]) amount(entity T) (decimal.Decimal, string) {
	if e.cfg.Amount == nil {
		return decimal.Zero, ""
	}
	return e.cfg.Amount(entity)
}

// Stamp initializes the versioned columns of a new entity.
func (e *Executor[T]) Stamp(tc shared.TenantContext, entity T, status sm.State) {
	*entity.Base() = shared.NewVersionedEntity(tc, e.deps.IDs.NewID(), string(status), e.deps.Clock.Now())
}

// Insert stamps entity in status and writes it with a create audit event.
// It must run inside a transaction opened by the caller.
func (e *Executor[T]) Insert(ctx context.Context, tc shared.TenantContext, entity T, status sm.State) error {
	e.Stamp(tc, entity, status)
	if err := e.cfg.Repo.Create(ctx, tc, entity); err != nil {
		return err
	}
	return e.Audit(ctx, tc, AuditCreate, entity.Base().ID, nil, entity)
}

// Save applies mutate to a loaded entity and writes it under its current
// version with an audit event named action. It skips the editable-state guard
// and must run inside a transaction opened by the caller.
func (e *Executor[T]) Save(ctx context.Context, tc shared.TenantContext, entity T, action string, mutate func(T) error) error {
	before, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", e.cfg.Entity, err)
	}
	if err := mutate(entity); err != nil {
		return err
	}
	base := entity.Base()
	e.touch(tc, base)
	if err := e.cfg.Repo.Update(ctx, tc, entity, base.Version, nil); err != nil {
		return err
	}
	return e.Audit(ctx, tc, action, base.ID, json.RawMessage(before), entity)
}

func (e *Executor[T]) touch(tc shared.TenantContext, base *shared.VersionedEntity) {
	base.UpdatedBy = tc.ActorID
	base.UpdatedAt = e.deps.Clock.Now()
}

// Audit records an event for a record of this executor's entity kind in the
// current transaction.
func (e *Executor[T]) Audit(ctx context.Context, tc shared.TenantContext, action string, resourceID uuid.UUID, before, after any) error {
	return RecordAudit(ctx, e.deps, tc, e.cfg.Entity, action, resourceID, before, after)
}

// RecordAudit builds and records one success event.
func RecordAudit(ctx context.Context, deps Deps, tc shared.TenantContext, entity shared.EntityKind, action string, resourceID uuid.UUID, before, after any) error {
	ev, err := audit.NewEvent(tc, deps.IDs.NewID(), action, entity, resourceID, before, after, deps.Clock.Now())
	if err != nil {
		return err
	}
	if err := deps.Audit.Record(ctx, tc, ev); err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// run wraps fn in a transaction and records the outcome.
func (e *Executor[T]) run(ctx context.Context, tc shared.TenantContext, action string, id uuid.UUID, fn func(ctx context.Context) error) error {
	if err := tc.Validate(); err != nil {
		return err
	}
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, string(e.cfg.Entity), action,
		telemetry.SpanAttrTenantID, tc.TenantID,
		telemetry.SpanAttrActorID, tc.ActorID,
		telemetry.SpanAttrCorrelationID, tc.CorrelationID,
		telemetry.SpanAttrEntityID, id,
	)
	defer span.End()

	err := e.deps.Tx.InTx(ctx, fn)
	result := Outcome(ctx, e.cfg.Entity, action, id, err)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	e.deps.Metrics.RecordMutation(ctx, telemetry.Mutation{
		TenantID: tc.TenantID,
		Entity:   string(e.cfg.Entity),
		Action:   action,
		Result:   result,
		Code:     string(shared.CodeOf(err)),
		Duration: time.Since(start),
	})
	return err
}

// Outcome classifies and logs the result of a mutation. Kernel rule
// refusals are denials; anything else is an internal error.
func Outcome(ctx context.Context, entity shared.EntityKind, action string, id uuid.UUID, err error) string {
	if err == nil {
		return telemetry.ResultSuccess
	}
	fields := []zap.Field{
		zap.String("entity", string(entity)),
		zap.String("action", action),
		zap.String("entity_id", id.String()),
	}
	if ke, ok := shared.AsKernelError(err); ok && ke.Code != shared.CodeInternal {
		logger.L(ctx).Warn("Mutation denied", append(fields,
			zap.String("result", string(audit.ResultDenied)),
			zap.String("code", string(ke.Code)),
			zap.String("reason", ke.Message),
		)...)
		return telemetry.ResultDenied
	}
	logger.L(ctx).Error("Mutation failed", append(fields,
		zap.String("result", string(audit.ResultError)),
		zap.Error(err),
	)...)
	return telemetry.ResultError
}
