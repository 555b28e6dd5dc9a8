package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/NERRecon/internal/intelligence/ensemble"
)

type policyTable []*ensemble.Policy

// TableHeaders implements tableData.
func (t policyTable) TableHeaders() []string { return []string{"NAME", "BASE", "OUTPUT", "STEPS"} }

// TableRows implements tableData.
func (t policyTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, p := range t {
		rows = append(rows, []string{p.Name, p.Base, p.OutputName(), strconv.Itoa(len(p.Steps))})
	}
	return rows
}

// NewPoliciesCmd lists the built-in policies and any loaded from
// reconcile.policy_file.
func NewPoliciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List the available ensemble policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			svc, err := cc.LocalService()
			if err != nil {
				return err
			}
			return PrintResult(cmd, policyTable(svc.Policies()))
		},
	}
}

//Personal.AI order the ending
