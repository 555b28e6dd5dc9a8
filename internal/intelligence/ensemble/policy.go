package ensemble

import (
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// Op names a reconciliation step.
type Op string

const (
	// OpOverwrite runs OverwriteClass per label.
	OpOverwrite Op = "overwrite"
	// OpReplace runs ReplaceClass per label.
	OpReplace Op = "replace"
	// OpOverlay runs OverlayClass per label.
	OpOverlay Op = "overlay"
	// OpRemove runs Remove per label.  It takes no source.
	OpRemove Op = "remove"
	// OpMerge appends the source's label entities without resolving overlaps.
	OpMerge Op = "merge"
)

// Valid reports whether o is a known op.
func (o Op) Valid() bool {
	switch o {
	case OpOverwrite, OpReplace, OpOverlay, OpRemove, OpMerge:
		return true
	}
	return false
}

// NeedsSource reports whether the op reads a source set.
func (o Op) NeedsSource() bool {
	return o != OpRemove
}

// Step is one row of a policy table.  Labels are processed in order.
type Step struct {
	Op     Op       `json:"op" yaml:"op"`
	Source string   `json:"source,omitempty" yaml:"source,omitempty"`
	Labels []string `json:"labels" yaml:"labels"`
}

// Policy is an ordered reconciliation table.  Later steps see the output of
// earlier ones, so label precedence is encoded by order alone.
type Policy struct {
	Name string `json:"name" yaml:"name"`
	// Base is the source the fold starts from.
	Base  string `json:"base" yaml:"base"`
	Steps []Step `json:"steps" yaml:"steps"`
	// Output is the source name the result is registered under when policies
	// are chained.  Defaults to Name with dashes replaced by underscores.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
}

// OutputName returns the source name the policy's result is published as.
func (p *Policy) OutputName() string {
	if p.Output != "" {
		return p.Output
	}
	return strings.ReplaceAll(p.Name, "-", "_")
}

// Sources returns every source the policy reads, base first, without
// duplicates.
func (p *Policy) Sources() []string {
	seen := map[string]bool{p.Base: true}
	out := []string{p.Base}
	for _, s := range p.Steps {
		if !s.Op.NeedsSource() || seen[s.Source] {
			continue
		}
		seen[s.Source] = true
		out = append(out, s.Source)
	}
	return out
}

// Validate checks the policy and canonicalizes every step label in place.
func (p *Policy) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New(errors.ErrCodeInvalidPolicy, "policy name is required")
	}
	if strings.TrimSpace(p.Base) == "" {
		return errors.Newf(errors.ErrCodeInvalidPolicy, "policy %s: base source is required", p.Name)
	}
	if len(p.Steps) == 0 {
		return errors.Newf(errors.ErrCodeInvalidPolicy, "policy %s: at least one step is required", p.Name)
	}
	for i := range p.Steps {
		s := &p.Steps[i]
		s.Op = Op(strings.ToLower(strings.TrimSpace(string(s.Op))))
		if !s.Op.Valid() {
			return errors.Newf(errors.ErrCodeInvalidPolicy, "policy %s: step %d: unknown op %q", p.Name, i, s.Op)
		}
		if s.Op.NeedsSource() && strings.TrimSpace(s.Source) == "" {
			return errors.Newf(errors.ErrCodeInvalidPolicy, "policy %s: step %d: %s needs a source", p.Name, i, s.Op)
		}
		if len(s.Labels) == 0 {
			return errors.Newf(errors.ErrCodeInvalidPolicy, "policy %s: step %d: no labels", p.Name, i)
		}
		for j, l := range s.Labels {
			if strings.TrimSpace(l) == "" {
				return errors.Newf(errors.ErrCodeInvalidPolicy, "policy %s: step %d: empty label", p.Name, i)
			}
			s.Labels[j] = annotation.CanonicalLabel(l)
		}
	}
	return nil
}

// ParsePolicies decodes one policy object or a list of them from YAML or
// JSON, validating each.
func ParsePolicies(data []byte) ([]*Policy, error) {
	var list []*Policy
	if err := yaml.Unmarshal(data, &list); err != nil {
		var single Policy
		if err2 := yaml.Unmarshal(data, &single); err2 != nil {
			return nil, errors.Wrap(err2, errors.ErrCodeInvalidPolicy, "parse policy")
		}
		list = []*Policy{&single}
	}
	if len(list) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidPolicy, "no policy defined")
	}
	names := make(map[string]bool, len(list))
	for _, p := range list {
		if p == nil {
			return nil, errors.New(errors.ErrCodeInvalidPolicy, "empty policy entry")
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if names[p.Name] {
			return nil, errors.Newf(errors.ErrCodeInvalidPolicy, "duplicate policy %s", p.Name)
		}
		names[p.Name] = true
	}
	return list, nil
}

// LoadPolicyFile reads and parses a policy file.
func LoadPolicyFile(path string) ([]*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidPolicy, "read policy file").WithDetail(path)
	}
	return ParsePolicies(data)
}

// ---------------------------------------------------------------------------
// Built-in policies
// ---------------------------------------------------------------------------

// Built-in policy names.
const (
	PolicyEnsemble1 = "ensemble-1"
	PolicyEnsemble2 = "ensemble-2"
	PolicyEnsemble3 = "ensemble-3"
)

func builtins() []*Policy {
	return []*Policy{
		{
			Name: PolicyEnsemble1,
			Base: "recall",
			Steps: []Step{
				{Op: OpOverwrite, Source: "model_3", Labels: []string{annotation.LabelAnatomicalLocation, annotation.LabelAnimal, annotation.LabelHuman}},
				{Op: OpOverlay, Source: "precision", Labels: []string{annotation.LabelDDF, annotation.LabelBiomedicalTechnique, annotation.LabelDietarySupplement}},
				{Op: OpReplace, Source: "precision", Labels: []string{annotation.LabelMicrobiome, annotation.LabelStatisticalTechnique}},
			},
		},
		{
			Name: PolicyEnsemble2,
			Base: "model_4",
			Steps: []Step{
				{Op: OpOverwrite, Source: "model_5", Labels: []string{
					annotation.LabelAnatomicalLocation, annotation.LabelAnimal, annotation.LabelBacteria,
					annotation.LabelBiomedicalTechnique, annotation.LabelStatisticalTechnique,
				}},
			},
		},
		{
			Name: PolicyEnsemble3,
			Base: "ensemble_2",
			Steps: []Step{
				{Op: OpOverwrite, Source: "ensemble_1", Labels: []string{annotation.LabelAnatomicalLocation, annotation.LabelAnimal, annotation.LabelDrug}},
			},
		},
	}
}

// BuiltinPolicies returns fresh copies of the built-in policies in
// dependency order.
func BuiltinPolicies() []*Policy {
	return builtins()
}

// Registry resolves policies by name.
type Registry struct {
	byName map[string]*Policy
}

// NewRegistry returns a registry holding the built-in policies overlaid by
// extra.  An extra policy with a built-in name replaces it.
func NewRegistry(extra ...*Policy) *Registry {
	r := &Registry{byName: make(map[string]*Policy)}
	for _, p := range builtins() {
		r.byName[p.Name] = p
	}
	for _, p := range extra {
		if p != nil {
			r.byName[p.Name] = p
		}
	}
	return r
}

// Get returns the named policy.
func (r *Registry) Get(name string) (*Policy, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidPolicy, "unknown policy %q", name)
	}
	return p, nil
}

// Names returns the registered policy names in ascending order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Plan orders the named policies so that every policy runs after the ones
// whose output it reads.  With no names it plans every registered policy.
func (r *Registry) Plan(names ...string) ([]*Policy, error) {
	if len(names) == 0 {
		names = r.Names()
	}
	selected := make([]*Policy, 0, len(names))
	producers := make(map[string]*Policy, len(names))
	for _, n := range names {
		p, err := r.Get(n)
		if err != nil {
			return nil, err
		}
		selected = append(selected, p)
		producers[p.OutputName()] = p
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(selected))
	plan := make([]*Policy, 0, len(selected))
	var visit func(p *Policy) error
	visit = func(p *Policy) error {
		switch state[p.Name] {
		case done:
			return nil
		case visiting:
			return errors.Newf(errors.ErrCodeInvalidPolicy, "policy %s depends on itself", p.Name)
		}
		state[p.Name] = visiting
		for _, src := range p.Sources() {
			if dep, ok := producers[src]; ok && dep != p {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		state[p.Name] = done
		plan = append(plan, p)
		return nil
	}
	for _, p := range selected {
		if err := visit(p); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

//Personal.AI order the ending
