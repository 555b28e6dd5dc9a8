package ensemble

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/pkg/errors"
)

const policyYAML = `
- name: custom
  base: recall
  steps:
    - op: Overwrite
      source: model_3
      labels: [Human, ddf]
    - op: remove
      labels: [food]
- name: follow-up
  base: custom
  steps:
    - op: merge
      source: precision
      labels: [gene]
`

func TestParsePolicies_List(t *testing.T) {
	list, err := ParsePolicies([]byte(policyYAML))
	require.NoError(t, err)
	require.Len(t, list, 2)

	p := list[0]
	assert.Equal(t, OpOverwrite, p.Steps[0].Op)
	assert.Equal(t, []string{annotation.LabelHuman, annotation.LabelDDF}, p.Steps[0].Labels)
	assert.Equal(t, []string{"recall", "model_3"}, p.Sources())
	assert.Equal(t, "follow_up", list[1].OutputName())
}

func TestParsePolicies_SingleJSON(t *testing.T) {
	list, err := ParsePolicies([]byte(`{"name":"j","base":"a","output":"out","steps":[{"op":"replace","source":"b","labels":["gene"]}]}`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "out", list[0].OutputName())
}

func TestPolicy_ValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{"no name", Policy{Base: "a", Steps: []Step{{Op: OpRemove, Labels: []string{"gene"}}}}},
		{"no base", Policy{Name: "p", Steps: []Step{{Op: OpRemove, Labels: []string{"gene"}}}}},
		{"no steps", Policy{Name: "p", Base: "a"}},
		{"bad op", Policy{Name: "p", Base: "a", Steps: []Step{{Op: "swap", Source: "b", Labels: []string{"gene"}}}}},
		{"no source", Policy{Name: "p", Base: "a", Steps: []Step{{Op: OpOverwrite, Labels: []string{"gene"}}}}},
		{"no labels", Policy{Name: "p", Base: "a", Steps: []Step{{Op: OpOverwrite, Source: "b"}}}},
		{"blank label", Policy{Name: "p", Base: "a", Steps: []Step{{Op: OpOverwrite, Source: "b", Labels: []string{" "}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidPolicy), "%v", err)
		})
	}
}

func TestParsePolicies_Errors(t *testing.T) {
	_, err := ParsePolicies([]byte("[]"))
	assert.Error(t, err)

	_, err = ParsePolicies([]byte("- name: a\n  base: x\n  steps: [{op: remove, labels: [gene]}]\n- name: a\n  base: y\n  steps: [{op: remove, labels: [gene]}]\n"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidPolicy))
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(policyYAML), 0o644))

	list, err := LoadPolicyFile(path)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = LoadPolicyFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidPolicy))
}

func TestBuiltinPolicies_Valid(t *testing.T) {
	for _, p := range BuiltinPolicies() {
		assert.NoError(t, p.Validate(), p.Name)
	}
	assert.Equal(t, []string{"recall", "model_3", "precision"}, BuiltinPolicies()[0].Sources())
}

func TestRegistry(t *testing.T) {
	custom := &Policy{Name: PolicyEnsemble2, Base: "x", Steps: []Step{{Op: OpRemove, Labels: []string{"gene"}}}}
	reg := NewRegistry(custom)

	assert.Equal(t, []string{PolicyEnsemble1, PolicyEnsemble2, PolicyEnsemble3}, reg.Names())
	p, err := reg.Get(PolicyEnsemble2)
	require.NoError(t, err)
	assert.Equal(t, "x", p.Base)

	_, err = reg.Get("nope")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidPolicy))
}

func TestRegistry_PlanDetectsCycle(t *testing.T) {
	a := &Policy{Name: "a", Base: "b", Steps: []Step{{Op: OpRemove, Labels: []string{"gene"}}}}
	b := &Policy{Name: "b", Base: "a", Steps: []Step{{Op: OpRemove, Labels: []string{"gene"}}}}

	_, err := NewRegistry(a, b).Plan("a", "b")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidPolicy))
}

//Personal.AI order the ending
