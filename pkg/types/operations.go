package types

import "context"

// Operation represents any refactoring operation
type Operation interface {
	Type() OperationType
	Validate(ctx context.Context, ws *Workspace) *Status
	Execute(ctx context.Context, ws *Workspace) (*RefactoringPlan, Outcome, error)
	Description() string
}

type OperationType int

const (
	ChangeSignatureOperation OperationType = iota
	IntroduceParameterObjectOperation
)

// String returns the string representation of OperationType
func (t OperationType) String() string {
	switch t {
	case ChangeSignatureOperation:
		return "change-signature"
	case IntroduceParameterObjectOperation:
		return "introduce-parameter-object"
	default:
		return "unknown"
	}
}

// Outcome is the terminal state of a refactoring run. Cancellation is an
// outcome, not an error.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeRejected          // status carries a fatal entry
	OutcomeCancelled
)

// String returns the string representation of Outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeRejected:
		return "rejected"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// OutcomeOf maps a context error and a status to an outcome.
func OutcomeOf(ctx context.Context, status *Status) Outcome {
	if ctx.Err() != nil {
		return OutcomeCancelled
	}
	if status.HasFatal() {
		return OutcomeRejected
	}
	return OutcomeCompleted
}

// RefactoringPlan is the final change object of a run. It is never modified
// after it has been returned.
type RefactoringPlan struct {
	ID            string
	Name          string
	Changes       []Change
	AffectedFiles []string
	Previews      map[string][]byte // path -> materialized content
	Status        *Status
	Descriptor    map[string]string
}

// Change represents a specific change to be made
type Change struct {
	File        string
	Start       int
	End         int
	OldText     string
	NewText     string
	Description string
}

// ProblemKind classifies problems found by re-parsing a file.
type ProblemKind int

const (
	ProblemSyntax ProblemKind = iota
	ProblemMissingNode
	ProblemDuplicateParameter
	ProblemDuplicateMethod
	ProblemUndefinedType
	ProblemUnresolvedImport
)

// String returns the string representation of ProblemKind
func (k ProblemKind) String() string {
	switch k {
	case ProblemSyntax:
		return "Syntax"
	case ProblemMissingNode:
		return "Missing"
	case ProblemDuplicateParameter:
		return "DuplicateParameter"
	case ProblemDuplicateMethod:
		return "DuplicateMethod"
	case ProblemUndefinedType:
		return "UndefinedType"
	case ProblemUnresolvedImport:
		return "UnresolvedImport"
	default:
		return "Unknown"
	}
}

// Problem is a compile problem reported for a file.
type Problem struct {
	Kind    ProblemKind
	Message string
	Start   int
	End     int
	Line    int
}

// Key identifies a problem independently of its position.
func (p Problem) Key() string {
	return p.Kind.String() + ":" + p.Message
}
