package validate

import (
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strings"

	"github.com/shaclpipe/shaclpipe/mapping"
	"github.com/shaclpipe/shaclpipe/sanitize"
	"github.com/shaclpipe/shaclpipe/shacl"
	"github.com/shaclpipe/shaclpipe/shape"
)

var (
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dateTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)
	integerRe  = regexp.MustCompile(`^[+-]?\d+$`)
)

// fieldRule is one compiled pre-build check, derived once at construction so
// validating a record is a flat slice walk with no lookups.
type fieldRule struct {
	slot     string
	target   string
	source   string
	required bool
	datatype mapping.Datatype
	allowed  []string // local names of sh:in members, empty when unconstrained
}

// PreBuild runs the fast validation tier over raw records. Rules are
// synthesized from the shape definition at construction: required-ness from
// the mapping's optional flags and the shape's sh:minCount, enumerations
// from sh:in, datatypes from the mapping's declared datatype.
type PreBuild struct {
	rules    []fieldRule
	idSource string
}

// NewPreBuild compiles the pre-build rule set for def.
func NewPreBuild(def *shape.Definition) *PreBuild {
	v := &PreBuild{idSource: def.Mapping.IDSource}

	root, _ := def.RootShape()

	for _, prop := range def.Mapping.Properties {
		var child *shacl.NodeShapeInfo
		if root != nil {
			child = root.ChildShapes[prop.Slot]
		}

		for _, f := range prop.Plan.Fields {
			rule := f.Rule
			if rule.Source == "" {
				continue
			}

			fr := fieldRule{
				slot:     prop.Slot,
				target:   f.Target,
				source:   rule.Source,
				required: !rule.EffectiveOptional(),
				datatype: rule.Datatype,
			}

			if child != nil {
				for _, p := range child.Properties {
					if p.LocalName != f.Target {
						continue
					}

					if p.Required() {
						fr.required = true
					}

					for _, iri := range p.AllowedValues {
						fr.allowed = append(fr.allowed, localFragment(iri))
					}
				}
			}

			v.rules = append(v.rules, fr)
		}
	}

	return v
}

// ValidateRecord runs every compiled rule against one raw record and
// returns its findings. Hot path: no allocation when the record is clean.
func (v *PreBuild) ValidateRecord(recordID string, raw mapping.RawRecord) []Issue {
	var issues []Issue

	for i := range v.rules {
		rule := &v.rules[i]

		val, ok := raw[rule.source]
		if !ok || val == "" {
			if rule.required {
				issues = append(issues, Issue{
					RecordID:  recordID,
					FieldPath: rule.slot + "." + rule.target,
					Severity:  SeverityError,
					Kind:      "RequiredMissing",
					Message: fmt.Sprintf("required field %q has no value in source column %q; %s",
						rule.target, rule.source, availableColumns(raw)),
				})
			}

			continue
		}

		if issue, bad := v.checkDatatype(recordID, rule, val); bad {
			issues = append(issues, issue)
			continue
		}

		if issue, bad := v.checkEnum(recordID, rule, val); bad {
			issues = append(issues, issue)
		}
	}

	if v.idSource != "" {
		if val := raw[v.idSource]; val != "" {
			if _, err := sanitize.SanitizeIRIComponent(val); err != nil {
				issues = append(issues, Issue{
					RecordID:  recordID,
					FieldPath: v.idSource,
					Severity:  SeverityError,
					Kind:      "UnsafeIRI",
					Message:   fmt.Sprintf("id source column %q: %v", v.idSource, err),
				})
			}
		}
	}

	return issues
}

func (v *PreBuild) checkDatatype(recordID string, rule *fieldRule, val string) (Issue, bool) {
	var problem string

	switch rule.datatype {
	case mapping.DatatypeDate:
		if !dateRe.MatchString(val) {
			problem = "is not a YYYY-MM-DD date"
		}
	case mapping.DatatypeDateTime:
		if !dateTimeRe.MatchString(val) {
			problem = "is not a YYYY-MM-DDTHH:MM:SS dateTime"
		}
	case mapping.DatatypeInteger:
		if !integerRe.MatchString(val) {
			problem = "is not an integer"
		}
	case mapping.DatatypeDecimal:
		if nonFinite(val) {
			problem = "is not a finite decimal"
		}
	}

	if problem == "" {
		return Issue{}, false
	}

	return Issue{
		RecordID:  recordID,
		FieldPath: rule.slot + "." + rule.target,
		Severity:  SeverityError,
		Kind:      "DatatypeMismatch",
		Message:   fmt.Sprintf("value %q in column %q %s", val, rule.source, problem),
	}, true
}

// checkEnum tests val against the sh:in members. Raw values are
// pre-transform ("Female") while the enumeration holds named-individual
// local names ("Sex_Female"), so a suffix match after "_" also passes.
func (v *PreBuild) checkEnum(recordID string, rule *fieldRule, val string) (Issue, bool) {
	if len(rule.allowed) == 0 {
		return Issue{}, false
	}

	for _, a := range rule.allowed {
		if a == val || strings.HasSuffix(a, "_"+val) {
			return Issue{}, false
		}
	}

	return Issue{
		RecordID:  recordID,
		FieldPath: rule.slot + "." + rule.target,
		Severity:  SeverityError,
		Kind:      "EnumViolation",
		Message: fmt.Sprintf("value %q in column %q is not in the allowed set: %s",
			val, rule.source, strings.Join(rule.allowed, ", ")),
	}, true
}

// Records is the minimal iteration seam the validators need; it matches the
// pipeline's source adapter contract.
type Records func(yield func(string, mapping.RawRecord) bool)

// Validate runs the rule set over records under mode. In sample mode a
// seeded RNG selects sampleRate of the input; in strict mode validation
// stops at, and returns an [*Error] for, the first error-severity issue.
func (v *PreBuild) Validate(records Records, mode Mode, sampleRate float64, seed int64) (*Result, error) {
	result := NewResult()

	rng := rand.New(rand.NewSource(seed))

	var stopErr error

	records(func(id string, raw mapping.RawRecord) bool {
		if mode == ModeSample && rng.Float64() >= sampleRate {
			return true
		}

		for _, issue := range v.ValidateRecord(id, raw) {
			result.Add(issue)

			if mode == ModeStrict && issue.Severity == SeverityError {
				stopErr = &Error{Result: result}

				return false
			}
		}

		return true
	})

	return result, stopErr
}

func availableColumns(raw mapping.RawRecord) string {
	if len(raw) == 0 {
		return "the record has no columns"
	}

	cols := make([]string, 0, len(raw))
	for k := range raw {
		cols = append(cols, k)
	}

	sort.Strings(cols)

	return "available columns: " + strings.Join(cols, ", ")
}

func nonFinite(s string) bool {
	lower := strings.ToLower(s)

	return lower == "nan" || strings.Contains(lower, "inf")
}

func localFragment(iri string) string {
	if idx := strings.LastIndexByte(iri, '#'); idx >= 0 {
		return iri[idx+1:]
	}

	if idx := strings.LastIndexByte(iri, '/'); idx >= 0 {
		return iri[idx+1:]
	}

	return iri
}
