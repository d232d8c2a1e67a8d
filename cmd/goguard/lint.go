package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goGuard/policy"
)

var lintCmd = &cobra.Command{
	Use:   "lint <policy.yaml>",
	Short: "Validate a policy file",
	Long: `Parse and validate a policy document without applying it.

Example:
  goguard lint policy.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runLint,
}

func init() {
	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	doc, err := policy.Load(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var limited, gated, breakers int
	for _, op := range doc.Operations {
		if op.RateLimit != nil {
			limited++
		}
		if op.RequiresApproval {
			gated++
		}
		if op.Breaker != nil {
			breakers++
		}
	}
	fmt.Fprintf(out, "%s: ok\n", args[0])
	fmt.Fprintf(out, "  operations: %d (rate limited %d, approval gated %d, breakers %d)\n",
		len(doc.Operations), limited, gated, breakers)
	fmt.Fprintf(out, "  members:    %d\n", len(doc.Members))
	fmt.Fprintf(out, "  whitelist:  %d\n", len(doc.Whitelist))
	return nil
}
