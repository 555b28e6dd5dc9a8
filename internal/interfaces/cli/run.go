package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/turtacn/NERRecon/internal/application/reconciliation"
	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// RunSummary is the printable form of a finished run.
type RunSummary struct {
	*reconciliation.RunResult
}

// TableHeaders implements tableData.
func (s RunSummary) TableHeaders() []string { return []string{"POLICY", "BASE", "STEPS", "DOCUMENTS"} }

// TableRows implements tableData.
func (s RunSummary) TableRows() [][]string {
	rows := make([][]string, 0, len(s.Reports))
	for _, r := range s.Reports {
		rows = append(rows, []string{r.Policy, r.Base, strconv.Itoa(len(r.Steps)), strconv.Itoa(r.Documents)})
	}
	return rows
}

func (s RunSummary) String() string {
	r := s.Run
	var sb strings.Builder
	fmt.Fprintf(&sb, "run %s %s: %s -> %s, %d documents, %d entities",
		r.ID, r.Status, r.Policy, r.Output, r.Documents, r.Entities)
	if s.Indexed != nil {
		fmt.Fprintf(&sb, "\n  indexed %d entities (%d failed)", s.Indexed.Succeeded, s.Indexed.Failed)
	}
	return sb.String()
}

// NewRunCmd runs the configured pipeline end to end against the configured
// storage backend.
func NewRunCmd() *cobra.Command {
	var (
		policies, sources, rawSources []string
		output, thresholds            string
		strip                         bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured pipeline end to end",
		Long: "Load raw and canonical sources from the configured store, post-process the\n" +
			"raw ones, reconcile everything under the policy and write the result.\n" +
			"Flags override the reconcile section of the configuration.",
		Example: "  nerrecon run --config nerrecon.yaml\n" +
			"  nerrecon run --raw recall=raw/recall.json --source precision=sets/p.json --output out.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cc)
			defer cancel()

			rc := cc.Config.Reconcile
			in := &reconciliation.RunInput{
				Policies:      policies,
				Sources:       rc.Sources,
				RawSources:    rc.RawSources,
				ThresholdsKey: thresholds,
				Output:        rc.Output,
			}
			if len(sources) > 0 {
				if in.Sources, err = parseSources(sources); err != nil {
					return err
				}
			}
			if len(rawSources) > 0 {
				if in.RawSources, err = parseSources(rawSources); err != nil {
					return err
				}
			}
			if output != "" {
				in.Output = output
			}
			if cmd.Flags().Changed("strip") {
				in.StripMetadata = &strip
			}

			infra, err := cc.Infrastructure(ctx)
			if err != nil {
				return err
			}
			svc, err := infra.Service()
			if err != nil {
				return err
			}
			res, err := svc.Run(ctx, in)
			if err != nil {
				return err
			}
			return PrintResult(cmd, RunSummary{res})
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&policies, "policy", nil, "policy to apply, repeatable (default: reconcile.policy)")
	f.StringArrayVar(&sources, "source", nil, "canonical source as name=key (default: reconcile.sources)")
	f.StringArrayVar(&rawSources, "raw", nil, "raw prediction source as name=key (default: reconcile.raw_sources)")
	f.StringVar(&thresholds, "thresholds", "", "thresholds key for raw sources (default: postprocess.thresholds_file)")
	f.StringVar(&output, "output", "", "output key (default: reconcile.output)")
	f.BoolVar(&strip, "strip", false, "drop metadata and relations from the output")
	return cmd
}

// runTable lists run records.
type runTable []*annotation.Run

// TableHeaders implements tableData.
func (t runTable) TableHeaders() []string {
	return []string{"ID", "STATUS", "POLICY", "OUTPUT", "DOCS", "ENTITIES", "STARTED", "DURATION"}
}

// TableRows implements tableData.
func (t runTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		dur := "-"
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			r.ID.String(), string(r.Status), r.Policy, r.Output,
			strconv.Itoa(r.Documents), strconv.Itoa(r.Entities),
			r.StartedAt.Format(time.RFC3339), dur,
		})
	}
	return rows
}

// runDetail prints one run with its stats.
type runDetail struct {
	*annotation.Run
}

func (d runDetail) String() string {
	var sb strings.Builder
	sb.WriteString(FormatTable(runTable{d.Run}.TableHeaders(), runTable{d.Run}.TableRows()))
	if d.Error != "" {
		fmt.Fprintf(&sb, "error: %s\n", d.Error)
	}
	keys := make([]string, 0, len(d.Stats))
	for k := range d.Stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %-20s %d\n", k, d.Stats[k])
	}
	return strings.TrimRight(sb.String(), "\n")
}

// NewRunsCmd lists run records, or shows one when an id is given.
func NewRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List recorded runs or show one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cc)
			defer cancel()

			var id uuid.UUID
			if len(args) == 1 {
				if id, err = uuid.Parse(args[0]); err != nil {
					return errors.Wrap(err, errors.ErrCodeValidation, "invalid run id")
				}
			}
			infra, err := cc.Infrastructure(ctx)
			if err != nil {
				return err
			}
			svc, err := infra.Service()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				run, err := svc.GetRun(ctx, id)
				if err != nil {
					return err
				}
				if cc.OutputFormat == FormatJSON {
					return PrintResult(cmd, run)
				}
				return PrintResult(cmd, runDetail{run})
			}
			runs, err := svc.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			return PrintResult(cmd, runTable(runs))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}

//Personal.AI order the ending
