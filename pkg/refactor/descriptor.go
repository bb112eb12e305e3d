package refactor

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mamaar/sigrefactor/pkg/types"
)

// Descriptor attribute keys.
const (
	AttrInput       = "input"
	AttrName        = "name"
	AttrDelegate    = "delegate"
	AttrDeprecate   = "deprecate"
	AttrReturn      = "return"
	AttrVisibility  = "visibility"
	AttrParameter   = "parameter"
	AttrDefault     = "default"
	AttrElement     = "element"
	AttrKind        = "kind"
	AttrComment     = "comment"
	AttrDescription = "description"
	AttrID          = "id"
)

const (
	addedToken   = "{added}"
	deletedToken = "{deleted}"
)

// Descriptor is the flat attribute map that replays a signature change.
type Descriptor map[string]string

// EncodeDescriptor serializes the requested change of model.
func EncodeDescriptor(model *SignatureModel, id string) Descriptor {
	d := Descriptor{
		AttrInput:       model.Handle,
		AttrName:        model.NewName,
		AttrDelegate:    strconv.FormatBool(model.Delegate),
		AttrDeprecate:   strconv.FormatBool(model.Deprecate),
		AttrDescription: fmt.Sprintf("Change signature of '%s'", model.OldName),
		AttrComment:     fmt.Sprintf("Change signature of %s to %s", model.Method.Signature(), model.NewSignature()),
	}
	if id != "" {
		d[AttrID] = id
	}
	if model.Return.IsChanged() {
		d[AttrReturn] = model.Return.NewTypeName
	}
	if !model.IsVisibilitySame() {
		d[AttrVisibility] = strconv.Itoa(int(model.NewVisibility))
	}
	for i, p := range model.Params {
		n := i + 1
		oldType, oldName := addedToken, addedToken
		if !p.IsAdded() {
			oldType, oldName = compactType(p.OldTypeName), p.OldName
		}
		newType, newName := compactType(p.NewTypeName), p.NewName
		if p.Deleted {
			newType, newName = deletedToken, deletedToken
		}
		d[AttrParameter+strconv.Itoa(n)] = strings.Join([]string{
			oldType, oldName, strconv.Itoa(p.OldIndex), newType, newName, strconv.FormatBool(p.Deleted),
		}, " ")
		if p.DefaultValue != "" {
			d[AttrDefault+strconv.Itoa(n)] = p.DefaultValue
		}
	}
	for i, e := range model.Exceptions {
		n := strconv.Itoa(i + 1)
		d[AttrElement+n] = e.Identity()
		d[AttrKind+n] = strconv.Itoa(int(e.Kind))
	}
	return d
}

// DecodeDescriptor rebuilds the model a descriptor describes. Malformed or
// missing attributes are reported as Fatal entries.
func DecodeDescriptor(ws *types.Workspace, d Descriptor) (*SignatureModel, *types.Status) {
	fatal := func(format string, args ...any) (*SignatureModel, *types.Status) {
		status := types.NewStatus()
		status.AddEntry(types.SeverityFatal, CodeInvalidDescriptor, fmt.Sprintf(format, args...), nil)
		return nil, status
	}

	handle, ok := d[AttrInput]
	if !ok {
		return fatal("Required attribute '%s' not found", AttrInput)
	}
	m := ws.FindMethod(handle)
	if m == nil {
		return fatal("The method '%s' does not exist in the workspace", handle)
	}
	model := NewSignatureModel(m)

	name, ok := d[AttrName]
	if !ok {
		return fatal("Required attribute '%s' not found", AttrName)
	}
	model.SetNewName(name)
	if v := d[AttrReturn]; v != "" {
		model.SetReturnType(v)
	}
	if v := d[AttrVisibility]; v != "" {
		code, err := strconv.Atoi(v)
		if err != nil || types.Visibility(code).Rank() < 0 {
			return fatal("Illegal value '%s' for attribute '%s'", v, AttrVisibility)
		}
		model.SetVisibility(types.Visibility(code))
	}

	if _, ok := d[AttrParameter+"1"]; ok {
		model.Params = nil
	}
	for n := 1; ; n++ {
		value, ok := d[AttrParameter+strconv.Itoa(n)]
		if !ok {
			break
		}
		tokens := strings.Fields(value)
		if len(tokens) < 6 {
			return fatal("Illegal value '%s' for attribute '%s'", value, AttrParameter)
		}
		index, err := strconv.Atoi(tokens[2])
		if err != nil || index < -1 || index >= len(m.Params) {
			return fatal("Illegal value '%s' for attribute '%s'", value, AttrParameter)
		}
		if index == -1 {
			model.Params = append(model.Params, NewAddedParameter(formatType(tokens[3]), tokens[4], d[AttrDefault+strconv.Itoa(n)]))
			continue
		}
		info := newOldParameter(index, m.Params[index])
		if deleted, _ := strconv.ParseBool(tokens[5]); deleted {
			info.Deleted = true
		} else {
			info.NewTypeName = newTypeText(info.OldTypeName, tokens[3])
			info.NewName = tokens[4]
		}
		model.Params = append(model.Params, info)
	}

	for n := 1; ; n++ {
		key := strconv.Itoa(n)
		element, ok := d[AttrElement+key]
		if !ok {
			break
		}
		kind, ok := d[AttrKind+key]
		if !ok {
			return fatal("Illegal value '%s' for attribute '%s'", kind, AttrKind)
		}
		k, err := strconv.Atoi(kind)
		if err != nil || k < int(ExceptionOld) || k > int(ExceptionDeleted) {
			return fatal("Illegal value '%s' for attribute '%s'", kind, AttrKind)
		}
		if !applyExceptionKind(model, element, ExceptionKind(k)) {
			return fatal("The exception '%s' is not thrown by '%s'", element, handle)
		}
	}

	deprecate, ok := d[AttrDeprecate]
	if !ok {
		return fatal("Required attribute '%s' not found", AttrDeprecate)
	}
	delegate, ok := d[AttrDelegate]
	if !ok {
		return fatal("Required attribute '%s' not found", AttrDelegate)
	}
	dep, _ := strconv.ParseBool(deprecate)
	del, _ := strconv.ParseBool(delegate)
	model.SetDelegate(del, dep)
	return model, types.NewStatus()
}

func applyExceptionKind(model *SignatureModel, element string, kind ExceptionKind) bool {
	for _, e := range model.Exceptions {
		if e.Matches(element) {
			e.Kind = kind
			if strings.Contains(element, ".") {
				e.QualifiedName = element
			}
			return true
		}
	}
	if kind != ExceptionAdded {
		return false
	}
	model.AddException(element)
	return true
}

// WriteDescriptor writes d as a YAML mapping.
func WriteDescriptor(w io.Writer, d Descriptor) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]string(d)); err != nil {
		return &types.RefactorError{Type: types.DescriptorError, Message: "failed to encode descriptor", Cause: err}
	}
	return enc.Close()
}

// ReadDescriptor reads a descriptor written by WriteDescriptor.
func ReadDescriptor(r io.Reader) (Descriptor, error) {
	var d map[string]string
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		return nil, &types.RefactorError{Type: types.DescriptorError, Message: "failed to decode descriptor", Cause: err}
	}
	return Descriptor(d), nil
}
