package shacl

import (
	"fmt"

	"github.com/shaclpipe/shaclpipe/mapping"
)

// Severity distinguishes a blocking mapping-validation finding from an
// advisory one.
type Severity string

// Severity values.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding from [ValidateMapping].
type Issue struct {
	Severity Severity
	Path     string // slot, or slot.target for a field-level finding
	Message  string
}

// Report is the accumulated result of [ValidateMapping].
type Report struct {
	Issues []Issue
}

// Errors returns the error-severity issues.
func (r *Report) Errors() []Issue { return r.bySeverity(SeverityError) }

// Warnings returns the warning-severity issues.
func (r *Report) Warnings() []Issue { return r.bySeverity(SeverityWarning) }

// Conforms reports whether no error-severity issue was found.
func (r *Report) Conforms() bool { return len(r.Errors()) == 0 }

func (r *Report) bySeverity(s Severity) []Issue {
	var out []Issue

	for _, i := range r.Issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}

	return out
}

func (r *Report) addError(path, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) addWarning(path, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidateMapping cross-validates cfg against the shape tree rooted at
// cfg.Shape: a root property with sh:minCount>=1 and no sub-shape plan is
// an error, as is a property with sh:minCount>=1 inside a mapped sub-shape
// with no matching Field Rule; any other unmapped property is a
// warning; a Field Rule target absent from the shape's properties is an
// error ("unknown target"); a datatype mismatch between the mapping and
// sh:datatype is a warning.
func ValidateMapping(cfg *mapping.Config, tree map[string]*NodeShapeInfo) (*Report, error) {
	root, ok := tree[cfg.Shape]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, cfg.Shape)
	}

	report := &Report{}

	for _, prop := range root.Properties {
		child, hasChild := root.ChildShapes[prop.LocalName]
		if hasChild && isStructural(child) {
			continue
		}

		plan, found := cfg.Find(prop.LocalName)

		switch {
		case !found && prop.Required():
			report.addError(prop.LocalName, "sub-shape %q is required (min_count >= 1) but has no mapping", prop.LocalName)
			continue
		case !found:
			report.addWarning(prop.LocalName, "sub-shape %q is optional and unused by the mapping", prop.LocalName)
			continue
		}

		if hasChild {
			validateSubShapeFields(prop.LocalName, plan, child, report)
		}
	}

	return report, nil
}

func validateSubShapeFields(slot string, plan *mapping.SubShapePlan, shape *NodeShapeInfo, report *Report) {
	known := make(map[string]PropertyInfo, len(shape.Properties))
	for _, p := range shape.Properties {
		known[p.LocalName] = p
	}

	for _, f := range plan.Fields {
		path := slot + "." + f.Target

		p, ok := known[f.Target]
		if !ok {
			report.addError(path, "target %q is not declared by shape %q", f.Target, shape.Name)
			continue
		}

		if p.Datatype != "" && f.Rule.Datatype.IsTyped() && f.Rule.Datatype.IRI() != p.Datatype {
			report.addWarning(path, "mapping declares datatype %s but shape declares %s", f.Rule.Datatype, p.Datatype)
		}
	}

	for _, p := range shape.Properties {
		if _, mapped := plan.Find(p.LocalName); mapped {
			continue
		}

		path := slot + "." + p.LocalName

		if p.Required() {
			report.addError(path, "field %q is required (min_count >= 1) but has no Field Rule", p.LocalName)
		} else {
			report.addWarning(path, "field %q is optional and unused by the mapping", p.LocalName)
		}
	}
}
