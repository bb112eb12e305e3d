package refactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	"github.com/mamaar/sigrefactor/pkg/types"
)

var tracer = otel.Tracer("sigrefactor.refactor")

// ProcessorOptions configures a ChangeSignatureProcessor.
type ProcessorOptions struct {
	Logger         *slog.Logger
	Metrics        *Metrics
	SkipValidation bool
}

// ChangeSignatureProcessor runs the change signature pipeline: checks,
// ripple, search, update and assembly. Stages run one after another and the
// context is checked between them.
type ChangeSignatureProcessor struct {
	ws        *types.Workspace
	cache     *analysis.HierarchyCache
	hierarchy *analysis.TypeHierarchy
	checker   *PreconditionChecker
	resolver  *RippleResolver
	finder    *OccurrenceFinder
	updater   *OccurrenceUpdateEngine
	assembler *ChangeAssembler
	metrics   *Metrics
	logger    *slog.Logger
}

func NewChangeSignatureProcessor(ws *types.Workspace, opts ProcessorOptions) *ChangeSignatureProcessor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cache := analysis.NewHierarchyCache()
	hierarchy := analysis.NewTypeHierarchy(ws, cache)
	return &ChangeSignatureProcessor{
		ws:        ws,
		cache:     cache,
		hierarchy: hierarchy,
		checker:   NewPreconditionChecker(ws, hierarchy),
		resolver:  NewRippleResolver(hierarchy, logger),
		finder:    NewOccurrenceFinder(analysis.NewSearchEngine(ws, hierarchy, logger), logger),
		updater:   NewOccurrenceUpdateEngine(logger),
		assembler: NewChangeAssembler(NewSourceValidator(ws, hierarchy, logger), opts.SkipValidation, logger),
		metrics:   opts.Metrics,
		logger:    logger,
	}
}

// Hierarchy returns the type hierarchy the processor resolves against.
func (p *ChangeSignatureProcessor) Hierarchy() *analysis.TypeHierarchy { return p.hierarchy }

// CheckInitialConditions finds the method of handle and returns its initial
// model. The model is nil when the status is Fatal.
func (p *ChangeSignatureProcessor) CheckInitialConditions(ctx context.Context, handle string) (*SignatureModel, *types.Status) {
	m, status := p.initial(ctx, handle)
	if status.HasFatal() {
		return nil, status
	}
	return NewSignatureModel(m), status
}

func (p *ChangeSignatureProcessor) initial(ctx context.Context, handle string) (*types.MethodDecl, *types.Status) {
	m := p.ws.FindMethod(handle)
	if m == nil {
		status := types.NewStatus()
		status.AddEntry(types.SeverityFatal, CodeMethodNotFound, fmt.Sprintf("The method '%s' does not exist in the workspace", handle), nil)
		return nil, status
	}
	return m, p.checker.CheckInitial(ctx, m)
}

// runState is what the checking stages hand to the update stages.
type runState struct {
	model  *SignatureModel
	ripple RippleSet
	files  []FileOccurrences
}

type stage struct {
	name string
	run  func(context.Context) (*types.Status, error)
}

// CheckFinalConditions validates model against the current workspace
// without producing edits.
func (p *ChangeSignatureProcessor) CheckFinalConditions(ctx context.Context, model *SignatureModel) (*types.Status, types.Outcome, error) {
	_, status, err := p.checkFinal(ctx, model)
	if err != nil {
		return status, types.OutcomeRejected, err
	}
	return status, types.OutcomeOf(ctx, status), nil
}

func (p *ChangeSignatureProcessor) checkFinal(ctx context.Context, model *SignatureModel) (*runState, *types.Status, error) {
	p.cache.Reset()
	state := &runState{model: model.Clone()}
	resolveBindings(state.model, p.hierarchy)

	stages := []stage{
		{"signature", func(ctx context.Context) (*types.Status, error) {
			st := p.checker.CheckUnchanged(state.model)
			if st.HasFatal() {
				return st, nil
			}
			st.Merge(p.checker.CheckSignature(ctx, state.model))
			return st, nil
		}},
		{"ripple", func(ctx context.Context) (*types.Status, error) {
			ripple, st, err := p.resolver.Resolve(ctx, state.model)
			state.ripple = ripple
			return st, err
		}},
		{"ripple-checks", func(ctx context.Context) (*types.Status, error) {
			return p.checker.CheckRipple(ctx, state.model, state.ripple), nil
		}},
		{"search", func(ctx context.Context) (*types.Status, error) {
			files, st, err := p.finder.Find(ctx, state.ripple)
			state.files = files
			p.metrics.RecordOccurrences(files)
			return st, err
		}},
	}
	status, err := p.runStages(ctx, stages)
	return state, status, err
}

// runStages runs stages until one is Fatal, fails or the context ends. A
// failure caused by cancellation is not an error.
func (p *ChangeSignatureProcessor) runStages(ctx context.Context, stages []stage) (*types.Status, error) {
	status := types.NewStatus()
	for _, s := range stages {
		if ctx.Err() != nil {
			return status, nil
		}
		st, err := p.runStage(ctx, s)
		status.Merge(st)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return status, nil
			}
			return status, err
		}
		if status.HasFatal() {
			return status, nil
		}
	}
	return status, nil
}

func (p *ChangeSignatureProcessor) runStage(ctx context.Context, s stage) (*types.Status, error) {
	ctx, span := tracer.Start(ctx, "ChangeSignature."+s.name)
	defer span.End()
	start := time.Now()
	st, err := s.run(ctx)
	p.metrics.RecordStage(s.name, start)
	if st == nil {
		st = types.NewStatus()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return st, err
	}
	span.SetAttributes(
		attribute.Int("status.entries", st.Len()),
		attribute.String("status.severity", st.Severity().String()),
	)
	if st.HasFatal() {
		span.SetStatus(codes.Error, st.FirstMessage(types.SeverityFatal))
	}
	return st, nil
}

// Run executes the whole pipeline for model. Business rule violations are
// reported in the status; the error is reserved for infrastructure
// failures. A cancelled run returns OutcomeCancelled and no change set.
func (p *ChangeSignatureProcessor) Run(ctx context.Context, model *SignatureModel) (*ChangeSet, *types.Status, types.Outcome, error) {
	return p.run(ctx, model, nil, types.ChangeSignatureOperation)
}

func (p *ChangeSignatureProcessor) run(ctx context.Context, model *SignatureModel, po *parameterObject, op types.OperationType) (cs *ChangeSet, status *types.Status, outcome types.Outcome, err error) {
	ctx, span := tracer.Start(ctx, op.String(), trace.WithAttributes(
		attribute.String("method", model.Handle),
		attribute.String("workspace", p.ws.RootPath),
	))
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("outcome", outcome.String()))
		p.metrics.RecordRun(op, outcome, status)
		p.metrics.RecordChangeSet(cs)
		p.logger.Info("refactoring finished", "operation", op, "method", model.Handle, "outcome", outcome, "severity", status.Severity())
	}()

	state, status, err := p.checkFinal(ctx, model)
	if err != nil {
		return nil, status, types.OutcomeRejected, err
	}
	if outcome := types.OutcomeOf(ctx, status); outcome != types.OutcomeCompleted {
		return nil, status, outcome, nil
	}

	uc, err := newUpdateContext(ctx, state.model, state.ripple, p.hierarchy, p.ws)
	if err != nil {
		if ctx.Err() != nil {
			return nil, status, types.OutcomeCancelled, nil
		}
		return nil, status, types.OutcomeRejected, err
	}
	if po != nil {
		uc.paramObject = po.bind(state.model)
	}
	rewrites := newRewriteSet()
	stages := []stage{
		{"update", func(ctx context.Context) (*types.Status, error) {
			st, err := p.updater.Update(ctx, uc, state.files, rewrites)
			if err == nil && uc.paramObject != nil {
				uc.paramObject.emit(rewrites)
			}
			return st, err
		}},
		{"assemble", func(ctx context.Context) (*types.Status, error) {
			set, st, err := p.assembler.Assemble(ctx, state.model, rewrites)
			cs = set
			return st, err
		}},
	}
	st, err := p.runStages(ctx, stages)
	status.Merge(st)
	if err != nil {
		return nil, status, types.OutcomeRejected, err
	}
	if outcome := types.OutcomeOf(ctx, status); outcome != types.OutcomeCompleted {
		return nil, status, outcome, nil
	}
	cs.Status = status
	return cs, status, types.OutcomeCompleted, nil
}

// ChangeSignatureOperation runs a change signature request or a replayed
// descriptor as an Operation.
type ChangeSignatureOperation struct {
	Request    *ChangeSignatureRequest
	Descriptor Descriptor
	Options    ProcessorOptions
}

func (op *ChangeSignatureOperation) Type() types.OperationType {
	return types.ChangeSignatureOperation
}

// Model builds the signature model the operation asks for.
func (op *ChangeSignatureOperation) Model(ctx context.Context, p *ChangeSignatureProcessor, ws *types.Workspace) (*SignatureModel, *types.Status) {
	if op.Descriptor != nil {
		return DecodeDescriptor(ws, op.Descriptor)
	}
	if op.Request == nil {
		return nil, types.FatalStatus("No change requested", nil)
	}
	model, status := p.CheckInitialConditions(ctx, op.Request.Method)
	if status.HasFatal() {
		return nil, status
	}
	if err := op.Request.Apply(model); err != nil {
		status.AddEntry(types.SeverityFatal, CodeInvalidRequest, err.Error(), nil)
		return nil, status
	}
	return model, status
}

func (op *ChangeSignatureOperation) Validate(ctx context.Context, ws *types.Workspace) *types.Status {
	p := NewChangeSignatureProcessor(ws, op.Options)
	model, status := op.Model(ctx, p, ws)
	if status.HasFatal() {
		return status
	}
	st, _, err := p.CheckFinalConditions(ctx, model)
	status.Merge(st)
	if err != nil {
		status.AddEntry(types.SeverityFatal, "", err.Error(), nil)
	}
	return status
}

func (op *ChangeSignatureOperation) Execute(ctx context.Context, ws *types.Workspace) (*types.RefactoringPlan, types.Outcome, error) {
	p := NewChangeSignatureProcessor(ws, op.Options)
	model, status := op.Model(ctx, p, ws)
	if status.HasFatal() {
		return planOf(nil, status), types.OutcomeOf(ctx, status), nil
	}
	cs, st, outcome, err := p.Run(ctx, model)
	status.Merge(st)
	return planOf(cs, status), outcome, err
}

func (op *ChangeSignatureOperation) Description() string {
	if op.Request != nil {
		return fmt.Sprintf("Change signature of %s", op.Request.Method)
	}
	return fmt.Sprintf("Replay change signature of %s", op.Descriptor[AttrInput])
}

// planOf returns the plan of cs, or an empty plan carrying status.
func planOf(cs *ChangeSet, status *types.Status) *types.RefactoringPlan {
	if cs == nil {
		return &types.RefactoringPlan{Status: status, Previews: map[string][]byte{}}
	}
	plan := cs.AsPlan()
	plan.Status = status
	return plan
}
