package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/page"
	"github.com/spigell/apply-copilot/internal/patterns"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List the tracking sites and question phrasings the copilot recognises",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := writePatterns(cmd.OutOrStdout()); err != nil {
			newLogger().Fatal("writing patterns", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(patternsCmd)
}

func writePatterns(w io.Writer) error {
	var b strings.Builder

	b.WriteString("Tracking sites:\n")
	for _, domain := range page.ATSDomains() {
		fmt.Fprintf(&b, "  %s\n", domain)
	}

	b.WriteString("Question patterns (in match order):\n")
	for _, e := range patterns.Entries() {
		fmt.Fprintf(&b, "  %-20s %s\n", e.Intent, strings.TrimPrefix(e.Pattern.String(), "(?i)"))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
