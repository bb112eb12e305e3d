package refactor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	"github.com/mamaar/sigrefactor/pkg/types"
)

// RippleSet is the family of declarations that must keep one signature.
type RippleSet struct {
	Methods []*types.MethodDecl
	Top     *types.MethodDecl
}

// Contains reports whether m is a member of the ripple.
func (r RippleSet) Contains(m *types.MethodDecl) bool {
	for _, member := range r.Methods {
		if member == m {
			return true
		}
	}
	return false
}

// RippleResolver computes the override family of a method.
type RippleResolver struct {
	hierarchy analysis.HierarchyOracle
	logger    *slog.Logger
}

func NewRippleResolver(hierarchy analysis.HierarchyOracle, logger *slog.Logger) *RippleResolver {
	return &RippleResolver{hierarchy: hierarchy, logger: logger}
}

// Resolve returns the ripple of model.Method. The status is Fatal when the
// change renames or re-scopes a method whose contract comes from an
// interface declared elsewhere.
func (r *RippleResolver) Resolve(ctx context.Context, model *SignatureModel) (RippleSet, *types.Status, error) {
	m := model.Method
	status := types.NewStatus()
	if !m.IsVirtual() {
		return RippleSet{Methods: []*types.MethodDecl{m}, Top: m}, status, nil
	}

	top, err := r.topMethod(ctx, m)
	if err != nil {
		return RippleSet{}, nil, err
	}
	methods, err := r.family(ctx, top)
	if err != nil {
		return RippleSet{}, nil, err
	}
	if !containsMethod(methods, m) {
		methods = append(methods, m)
	}
	ripple := RippleSet{Methods: methods, Top: top}

	if top != m {
		ctxTop := top.File().NodeContext(top.Node)
		if top.Declaring.IsInterface() && (!model.IsNameSame() || !model.IsVisibilitySame()) {
			status.AddEntry(types.SeverityFatal, CodeDeclaredInInterface,
				fmt.Sprintf("The method %s is declared in interface %s; change the interface method instead",
					m.Signature(), top.Declaring.QualifiedName), ctxTop)
		} else {
			status.AddEntry(types.SeverityInfo, CodeOverridesMethod,
				fmt.Sprintf("The method %s overrides %s.%s; the change is applied to all %d methods of the hierarchy",
					m.Signature(), top.Declaring.QualifiedName, top.Signature(), len(methods)), ctxTop)
		}
	}
	r.logger.Info("ripple resolved", "method", m.Handle(), "top", top.Handle(), "methods", len(methods))
	return ripple, status, nil
}

// topMethod returns the farthest interface method m overrides, else the
// farthest overridden class method, else m.
func (r *RippleResolver) topMethod(ctx context.Context, m *types.MethodDecl) (*types.MethodDecl, error) {
	supers, err := r.hierarchy.SuperTypes(ctx, m.Declaring)
	if err != nil {
		return nil, err
	}
	var topInterface, topClass *types.MethodDecl
	for _, s := range supers {
		for _, sm := range s.Methods {
			if !r.hierarchy.Overrides(m, sm) {
				continue
			}
			if s.IsInterface() {
				topInterface = sm
			} else {
				topClass = sm
			}
		}
	}
	switch {
	case topInterface != nil:
		return topInterface, nil
	case topClass != nil:
		return topClass, nil
	default:
		return m, nil
	}
}

// family collects top and every method connected to it by overriding,
// following both directions until no member is added. This also picks up
// a method that implements two interfaces declaring the same method.
func (r *RippleResolver) family(ctx context.Context, top *types.MethodDecl) ([]*types.MethodDecl, error) {
	members := []*types.MethodDecl{top}
	seen := map[*types.MethodDecl]bool{top: true}
	for i := 0; i < len(members); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := members[i]
		subs, err := r.hierarchy.SubTypes(ctx, cur.Declaring)
		if err != nil {
			return nil, err
		}
		supers, err := r.hierarchy.SuperTypes(ctx, cur.Declaring)
		if err != nil {
			return nil, err
		}
		for _, t := range subs {
			for _, sm := range t.Methods {
				if !seen[sm] && r.hierarchy.Overrides(sm, cur) {
					seen[sm] = true
					members = append(members, sm)
				}
			}
		}
		for _, t := range supers {
			for _, sm := range t.Methods {
				if !seen[sm] && r.hierarchy.Overrides(cur, sm) {
					seen[sm] = true
					members = append(members, sm)
				}
			}
		}
	}
	rest := members[1:]
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Handle() < rest[j].Handle() })
	return members, nil
}

func containsMethod(methods []*types.MethodDecl, m *types.MethodDecl) bool {
	for _, x := range methods {
		if x == m {
			return true
		}
	}
	return false
}

// topsOfRipple returns the members no other member is declared above. Only
// those receive new Javadoc tags.
func topsOfRipple(ctx context.Context, ripple RippleSet, hierarchy analysis.HierarchyOracle) (map[*types.MethodDecl]bool, error) {
	tops := make(map[*types.MethodDecl]bool)
	for _, m := range ripple.Methods {
		supers, err := hierarchy.SuperTypes(ctx, m.Declaring)
		if err != nil {
			return nil, err
		}
		above := make(map[*types.TypeDecl]bool, len(supers))
		for _, s := range supers {
			above[s] = true
		}
		top := true
		for _, other := range ripple.Methods {
			if other != m && above[other.Declaring] {
				top = false
				break
			}
		}
		tops[m] = top
	}
	return tops, nil
}
