package ensemble

import (
	"context"
	"time"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// StepReport records the effect of one (op, source, label) application.
type StepReport struct {
	Index  int    `json:"index"`
	Op     Op     `json:"op"`
	Source string `json:"source,omitempty"`
	Label  string `json:"label"`
	Before int    `json:"before"`
	After  int    `json:"after"`
}

// Report summarizes one policy run.
type Report struct {
	Policy    string        `json:"policy"`
	Base      string        `json:"base"`
	Documents int           `json:"documents"`
	Entities  int           `json:"entities"`
	Steps     []StepReport  `json:"steps"`
	Duration  time.Duration `json:"duration"`
}

// Reconciler folds policy steps over named source sets.
type Reconciler struct {
	logger logging.Logger
}

// NewReconciler returns a Reconciler.  A nil logger discards output.
func NewReconciler(logger logging.Logger) *Reconciler {
	return &Reconciler{logger: logging.OrNop(logger).Named("ensemble")}
}

// Reconcile applies policy to sources.  Every source the policy names must be
// present; a source document missing for a given id simply contributes no
// interference.  The sources are not modified.
func (r *Reconciler) Reconcile(ctx context.Context, policy *Policy, sources map[string]annotation.DocumentSet) (annotation.DocumentSet, *Report, error) {
	if policy == nil {
		return nil, nil, errors.New(errors.ErrCodeInvalidPolicy, "policy is nil")
	}
	for _, name := range policy.Sources() {
		if _, ok := sources[name]; !ok {
			return nil, nil, errors.Newf(errors.ErrCodeMissingSource, "policy %s needs source %q", policy.Name, name)
		}
	}

	start := time.Now()
	report := &Report{Policy: policy.Name, Base: policy.Base}
	current := sources[policy.Base]

	for _, step := range policy.Steps {
		for _, label := range step.Labels {
			if err := ctx.Err(); err != nil {
				return nil, nil, errors.Wrap(err, errors.ErrCodeTimeout, "reconcile cancelled")
			}
			before := current.EntityCount()
			current = apply(step.Op, current, sources[step.Source], label)
			sr := StepReport{
				Index:  len(report.Steps),
				Op:     step.Op,
				Source: step.Source,
				Label:  label,
				Before: before,
				After:  current.EntityCount(),
			}
			report.Steps = append(report.Steps, sr)
			r.logger.Debug("step applied",
				logging.String(logging.FieldPolicy, policy.Name),
				logging.String(logging.FieldStep, string(step.Op)),
				logging.String(logging.FieldSource, step.Source),
				logging.String(logging.FieldLabel, label),
				logging.Int("before", sr.Before),
				logging.Int("after", sr.After),
			)
		}
	}

	if current == nil {
		current = annotation.DocumentSet{}
	}
	report.Documents = len(current)
	report.Entities = current.EntityCount()
	report.Duration = time.Since(start)
	r.logger.Info("policy reconciled",
		logging.String(logging.FieldPolicy, policy.Name),
		logging.Int("documents", report.Documents),
		logging.Int("entities", report.Entities),
		logging.Duration(logging.FieldDuration, report.Duration),
	)
	return current, report, nil
}

// RunPlan reconciles policies in order.  Each result is added to a copy of
// sources under the policy's output name, so later policies can read it.  It
// returns every produced set keyed by output name.
func (r *Reconciler) RunPlan(ctx context.Context, plan []*Policy, sources map[string]annotation.DocumentSet) (map[string]annotation.DocumentSet, []*Report, error) {
	avail := make(map[string]annotation.DocumentSet, len(sources)+len(plan))
	for k, v := range sources {
		avail[k] = v
	}
	results := make(map[string]annotation.DocumentSet, len(plan))
	reports := make([]*Report, 0, len(plan))
	for _, p := range plan {
		set, rep, err := r.Reconcile(ctx, p, avail)
		if err != nil {
			return nil, nil, err
		}
		avail[p.OutputName()] = set
		results[p.OutputName()] = set
		reports = append(reports, rep)
	}
	return results, reports, nil
}

func apply(op Op, current, src annotation.DocumentSet, label string) annotation.DocumentSet {
	switch op {
	case OpOverwrite:
		return OverwriteClass(current, src, label)
	case OpReplace:
		return ReplaceClass(current, src, label)
	case OpOverlay:
		return OverlayClass(current, src, label)
	case OpRemove:
		return Remove(current, label)
	case OpMerge:
		return Merge(current, Extract(src, label))
	default:
		return current
	}
}

//Personal.AI order the ending
