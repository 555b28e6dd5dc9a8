package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/NERRecon/internal/application/reconciliation"
	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/internal/infrastructure/codec"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NERRecon/internal/infrastructure/storage/file"
	"github.com/turtacn/NERRecon/internal/intelligence/ensemble"
	"github.com/turtacn/NERRecon/internal/intelligence/postprocess"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// SetSummary describes a document set written by a command.
type SetSummary struct {
	Output    string                        `json:"output"`
	Documents int                           `json:"documents"`
	Entities  int                           `json:"entities"`
	Labels    map[string]int                `json:"labels"`
	Stats     map[string]int                `json:"stats,omitempty"`
	Decode    map[string]codec.DecodeReport `json:"decode,omitempty"`
	Reports   []*ensemble.Report            `json:"reports,omitempty"`
}

func newSetSummary(output string, set annotation.DocumentSet) *SetSummary {
	return &SetSummary{
		Output:    output,
		Documents: len(set),
		Entities:  set.EntityCount(),
		Labels:    set.LabelCounts(),
	}
}

// TableHeaders implements tableData.
func (s *SetSummary) TableHeaders() []string { return []string{"LABEL", "ENTITIES"} }

// TableRows implements tableData.
func (s *SetSummary) TableRows() [][]string {
	labels := make([]string, 0, len(s.Labels))
	for l := range s.Labels {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	rows := make([][]string, 0, len(labels))
	for _, l := range labels {
		rows = append(rows, []string{l, strconv.Itoa(s.Labels[l])})
	}
	return rows
}

func (s *SetSummary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "wrote %s: %d documents, %d entities", s.Output, s.Documents, s.Entities)
	for _, row := range s.TableRows() {
		fmt.Fprintf(&sb, "\n  %-12s %s", row[0], row[1])
	}
	for name, rep := range s.Decode {
		if rep.Skipped > 0 {
			fmt.Fprintf(&sb, "\n  %s: %d records skipped", name, rep.Skipped)
		}
	}
	return sb.String()
}

// pipelineEnv bundles what the file commands share.
type pipelineEnv struct {
	cc    *CLIContext
	svc   *reconciliation.Service
	files *file.Store
}

func newPipelineEnv(cmd *cobra.Command) (*pipelineEnv, error) {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return nil, err
	}
	svc, err := cc.LocalService()
	if err != nil {
		return nil, err
	}
	return &pipelineEnv{cc: cc, svc: svc, files: file.NewStore(".", cc.Logger)}, nil
}

func (e *pipelineEnv) readDocuments(cmd *cobra.Command, path string) (annotation.DocumentSet, codec.DecodeReport, error) {
	data, err := e.files.Read(cmd.Context(), path)
	if err != nil {
		return nil, codec.DecodeReport{}, err
	}
	set, report, err := e.svc.Codec().DecodeDocuments(data)
	if err != nil {
		return nil, report, errors.Wrap(err, errors.ErrCodeMalformedInput, "invalid document set").WithDetail(path)
	}
	if report.Skipped > 0 {
		e.cc.Logger.Warn("skipped malformed documents", logging.String(logging.FieldPath, path), logging.Int("skipped", report.Skipped))
	}
	return set, report, nil
}

func (e *pipelineEnv) writeDocuments(cmd *cobra.Command, path string, set annotation.DocumentSet, strip bool) error {
	if strip {
		set = annotation.StripMetadata(set)
	}
	data, err := e.svc.Codec().EncodeDocuments(set)
	if err != nil {
		return err
	}
	return e.files.Write(cmd.Context(), path, data)
}

// ─────────────────────────────────────────────────────────────────────────────
// postprocess
// ─────────────────────────────────────────────────────────────────────────────

// NewPostprocessCmd converts raw predictions into a canonical set.
func NewPostprocessCmd() *cobra.Command {
	var (
		preds, thresholds, output string
		rules, strip              bool
	)
	cmd := &cobra.Command{
		Use:   "postprocess",
		Short: "Filter, merge and normalize raw predictions",
		Long: "Drop predictions under their label threshold, merge consecutive spans,\n" +
			"and convert offsets into the canonical per-field form.",
		Example: "  nerrecon postprocess --preds recall.json --thresholds thresholds.yaml --output recall.canonical.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newPipelineEnv(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, env.cc)
			defer cancel()
			cmd.SetContext(ctx)

			thr, err := env.svc.LoadThresholds(ctx, thresholds)
			if err != nil {
				return err
			}
			data, err := env.files.Read(ctx, preds)
			if err != nil {
				return err
			}
			articles, decode, err := env.svc.Codec().DecodeRaw(data)
			if err != nil {
				return err
			}
			res, err := env.svc.Postprocess(ctx, articles, thr)
			if err != nil {
				return err
			}

			set := res.Set
			stats := res.Stats.Flatten()
			if rules || (!cmd.Flags().Changed("rules") && env.cc.Config.Rules.Enabled) {
				var report postprocess.RuleReport
				if set, report, err = env.svc.ApplyRules(ctx, set); err != nil {
					return err
				}
				totals := report.Totals()
				stats["rules_extended"] = totals.Extended
				stats["rules_reverted"] = totals.Reverted
			}
			if err := env.writeDocuments(cmd, output, set, strip); err != nil {
				return err
			}

			summary := newSetSummary(output, set)
			summary.Stats = stats
			summary.Decode = map[string]codec.DecodeReport{preds: decode}
			return PrintResult(cmd, summary)
		},
	}

	f := cmd.Flags()
	f.StringVar(&preds, "preds", "", "raw predictions file (required)")
	f.StringVar(&thresholds, "thresholds", "", "label thresholds file (default: postprocess.thresholds_file)")
	f.StringVar(&output, "output", "", "canonical output file (required)")
	f.BoolVar(&rules, "rules", false, "apply the span extension rules (default: rules.enabled)")
	f.BoolVar(&strip, "strip", false, "drop metadata and relations from the output")
	_ = cmd.MarkFlagRequired("preds")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// ─────────────────────────────────────────────────────────────────────────────
// combine
// ─────────────────────────────────────────────────────────────────────────────

// parseSources splits name=path pairs.
func parseSources(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, path, ok := strings.Cut(p, "=")
		name, path = strings.TrimSpace(name), strings.TrimSpace(path)
		if !ok || name == "" || path == "" {
			return nil, errors.Newf(errors.ErrCodeValidation, "source %q must be name=path", p)
		}
		if _, dup := out[name]; dup {
			return nil, errors.Newf(errors.ErrCodeValidation, "source %q given twice", name)
		}
		out[name] = path
	}
	return out, nil
}

// NewCombineCmd reconciles canonical sets under one or more policies.
func NewCombineCmd() *cobra.Command {
	var (
		policies, sources []string
		output            string
		strip             bool
	)
	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Reconcile canonical sets under ensemble policies",
		Example: "  nerrecon combine --policy ensemble-1 \\\n" +
			"    --source recall=recall.json --source model_3=m3.json --source precision=p.json \\\n" +
			"    --output ensemble_1.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			named, err := parseSources(sources)
			if err != nil {
				return err
			}
			env, err := newPipelineEnv(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, env.cc)
			defer cancel()
			cmd.SetContext(ctx)

			sets := make(map[string]annotation.DocumentSet, len(named))
			decode := make(map[string]codec.DecodeReport, len(named))
			for name, path := range named {
				if sets[name], decode[name], err = env.readDocuments(cmd, path); err != nil {
					return err
				}
			}

			set, reports, err := env.svc.Combine(ctx, sets, policies...)
			if err != nil {
				return err
			}
			if err := env.writeDocuments(cmd, output, set, strip); err != nil {
				return err
			}

			summary := newSetSummary(output, set)
			summary.Decode = decode
			summary.Reports = reports
			return PrintResult(cmd, summary)
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&policies, "policy", nil, "policy to apply, repeatable (default: reconcile.policy)")
	f.StringArrayVar(&sources, "source", nil, "source set as name=path, repeatable")
	f.StringVar(&output, "output", "", "reconciled output file (required)")
	f.BoolVar(&strip, "strip", false, "drop metadata and relations from the output")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// ─────────────────────────────────────────────────────────────────────────────
// rules, strip
// ─────────────────────────────────────────────────────────────────────────────

// NewRulesCmd applies the span extension rules to a canonical set.
func NewRulesCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Extend spans with the built-in rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newPipelineEnv(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, env.cc)
			defer cancel()
			cmd.SetContext(ctx)

			set, _, err := env.readDocuments(cmd, input)
			if err != nil {
				return err
			}
			out, report, err := env.svc.ApplyRules(ctx, set)
			if err != nil {
				return err
			}
			if err := env.writeDocuments(cmd, output, out, false); err != nil {
				return err
			}
			totals := report.Totals()
			summary := newSetSummary(output, out)
			summary.Stats = map[string]int{"rules_extended": totals.Extended, "rules_reverted": totals.Reverted}
			return PrintResult(cmd, summary)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "canonical input file (required)")
	cmd.Flags().StringVar(&output, "output", "", "output file (required)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// NewStripCmd removes metadata and relations from a canonical set.
func NewStripCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "strip",
		Short: "Keep only entities in a canonical set",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newPipelineEnv(cmd)
			if err != nil {
				return err
			}
			set, _, err := env.readDocuments(cmd, input)
			if err != nil {
				return err
			}
			if err := env.writeDocuments(cmd, output, set, true); err != nil {
				return err
			}
			return PrintResult(cmd, newSetSummary(output, set))
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "canonical input file (required)")
	cmd.Flags().StringVar(&output, "output", "", "output file (required)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

//Personal.AI order the ending
