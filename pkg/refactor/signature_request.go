package refactor

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/mamaar/sigrefactor/pkg/types"
)

// ParameterAddition adds a parameter. Index -1 appends.
type ParameterAddition struct {
	Index   int
	Type    string
	Name    string
	Default string
}

// ParameterMove moves the parameter at From to To. Indexes address the
// parameter list of the model, deleted parameters included.
type ParameterMove struct {
	From int
	To   int
}

// ChangeSignatureRequest is a change request in terms of the old
// signature. Apply replays it onto a model in a fixed order: renames,
// retypes, deletions, additions, moves.
type ChangeSignatureRequest struct {
	Method           string
	NewName          string
	ReturnType       string
	Visibility       string
	Rename           map[string]string
	Retype           map[string]string
	Delete           []string
	Add              []ParameterAddition
	Move             []ParameterMove
	AddExceptions    []string
	DeleteExceptions []string
	Delegate         bool
	Deprecate        bool
}

// Apply edits model as requested.
func (r *ChangeSignatureRequest) Apply(model *SignatureModel) error {
	if r.NewName != "" {
		model.SetNewName(r.NewName)
	}
	if r.ReturnType != "" {
		model.SetReturnType(r.ReturnType)
	}
	if r.Visibility != "" {
		v, ok := types.ParseVisibility(r.Visibility)
		if !ok {
			return invalidOperation("unknown visibility %q", r.Visibility)
		}
		model.SetVisibility(v)
	}
	for _, old := range slices.Sorted(maps.Keys(r.Rename)) {
		if err := model.RenameParameter(old, r.Rename[old]); err != nil {
			return err
		}
	}
	for _, name := range slices.Sorted(maps.Keys(r.Retype)) {
		target := name
		if renamed, ok := r.Rename[name]; ok {
			target = renamed
		}
		if err := model.RetypeParameter(target, r.Retype[name]); err != nil {
			return err
		}
	}
	for _, name := range r.Delete {
		if err := model.DeleteParameter(name); err != nil {
			return err
		}
	}
	for _, a := range r.Add {
		if a.Index < 0 {
			model.AddParameter(a.Type, a.Name, a.Default)
			continue
		}
		if _, err := model.InsertParameter(a.Index, a.Type, a.Name, a.Default); err != nil {
			return err
		}
	}
	for _, m := range r.Move {
		if err := model.MoveParameter(m.From, m.To); err != nil {
			return err
		}
	}
	for _, e := range r.AddExceptions {
		model.AddException(e)
	}
	for _, e := range r.DeleteExceptions {
		if err := model.DeleteException(e); err != nil {
			return err
		}
	}
	model.SetDelegate(r.Delegate, r.Deprecate)
	return nil
}

// ParseParameterAddition parses "Type name[=default][@index]". The type may
// contain spaces inside generic arguments; the name is the last word before
// the default.
func ParseParameterAddition(s string) (ParameterAddition, error) {
	a := ParameterAddition{Index: -1}
	if at := strings.LastIndex(s, "@"); at >= 0 && !strings.ContainsAny(s[at:], "=)\"'") {
		idx, err := strconv.Atoi(strings.TrimSpace(s[at+1:]))
		if err != nil {
			return a, invalidOperation("invalid parameter index in %q", s)
		}
		a.Index = idx
		s = s[:at]
	}
	if eq := strings.Index(s, "="); eq >= 0 {
		a.Default = strings.TrimSpace(s[eq+1:])
		s = s[:eq]
	}
	s = strings.TrimSpace(s)
	sp := strings.LastIndexAny(s, " \t")
	if sp < 0 {
		return a, invalidOperation("parameter %q needs a type and a name", s)
	}
	a.Type, a.Name = strings.TrimSpace(s[:sp]), s[sp+1:]
	return a, nil
}

// ParseParameterMove parses "from:to".
func ParseParameterMove(s string) (ParameterMove, error) {
	from, to, ok := strings.Cut(s, ":")
	if !ok {
		return ParameterMove{}, invalidOperation("move %q is not of the form from:to", s)
	}
	f, err1 := strconv.Atoi(strings.TrimSpace(from))
	t, err2 := strconv.Atoi(strings.TrimSpace(to))
	if err1 != nil || err2 != nil {
		return ParameterMove{}, invalidOperation("move %q is not of the form from:to", s)
	}
	return ParameterMove{From: f, To: t}, nil
}

// ParsePairs parses "key=value" items into a map.
func ParsePairs(items []string) (map[string]string, error) {
	out := make(map[string]string, len(items))
	for _, it := range items {
		k, v, ok := strings.Cut(it, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%q is not of the form key=value", it)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}
