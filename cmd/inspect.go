package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/jobinfo"
	"github.com/spigell/apply-copilot/internal/page"
	"github.com/spigell/apply-copilot/internal/render"
	"github.com/spigell/apply-copilot/internal/scanning"
)

// InspectReport is what the copilot would see on a page.
type InspectReport struct {
	URL             string          `json:"url"`
	ApplicationPage bool            `json:"application_page"`
	TrackingSite    bool            `json:"tracking_site"`
	JobInfo         jobinfo.Info    `json:"job_info"`
	JobInfoSources  jobinfo.Sources `json:"job_info_sources"`
	Scan            scanning.Result `json:"scan"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <url>",
	Short: "Render a page once and report the job info and question fields found on it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		inspect(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringP("file", "f", "", "read HTML from a file instead of rendering the url")
	inspectCmd.Flags().Bool("summary", false, "print a short human readable summary instead of JSON")
}

func inspect(cmd *cobra.Command, rawURL string) {
	logger := newLogger()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	file, _ := cmd.Flags().GetString("file")
	doc, err := loadDocument(cmd.Context(), rawURL, file, config, logger)
	if err != nil {
		logger.Fatal("loading page", zap.Error(err))
	}

	minGeneric := 0
	if config != nil && config.Scan != nil {
		minGeneric = config.Scan.GenericContainerMinLength
	}
	report := buildReport(doc, jobinfo.Config{GenericContainerMinLength: minGeneric}, logger)

	summary, _ := cmd.Flags().GetBool("summary")
	if err := writeReport(os.Stdout, report, summary); err != nil {
		logger.Fatal("writing report", zap.Error(err))
	}
}

func loadDocument(ctx context.Context, rawURL, file string, config *Config, logger *zap.Logger) (*page.Document, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		return page.NewDocument(rawURL, string(data))
	}

	if ctx == nil {
		ctx = context.Background()
	}
	cfg := render.Config{Headless: true, Settle: render.DefaultSettle}
	if config != nil && config.Render != nil {
		cfg = *config.Render
	}
	return render.Document(ctx, rawURL, cfg, logger.Named("render"))
}

// buildReport runs extraction first so the scan can use the job info gate the
// same way a live session does after its first extraction.
func buildReport(doc *page.Document, cfg jobinfo.Config, logger *zap.Logger) InspectReport {
	info, sources := jobinfo.NewExtractor(cfg, logger.Named("extractor")).ExtractWithSources(doc)

	res := scanning.New(logger.Named("scanner")).Scan(scanning.Request{
		Doc:         doc,
		ShowButtons: true,
		HasJobInfo:  !info.IsEmpty(),
		Marker:      scanning.NewMarker(),
	})

	return InspectReport{
		URL:             doc.Href(),
		ApplicationPage: res.ApplicationPage,
		TrackingSite:    res.Tracking,
		JobInfo:         info,
		JobInfoSources:  sources,
		Scan:            res,
	}
}

func writeReport(w io.Writer, report InspectReport, summary bool) error {
	if !summary {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "URL:         %s\n", report.URL)
	fmt.Fprintf(&b, "Application: %t (tracking site: %t)\n", report.ApplicationPage, report.TrackingSite)
	b.WriteString(report.JobInfo.Summary(summaryDescriptionLimit) + "\n")
	if report.Scan.Skipped {
		fmt.Fprintf(&b, "Scan skipped: %s\n", report.Scan.Reason)
	}
	fmt.Fprintf(&b, "Questions:   %d\n", len(report.Scan.Affordances))
	for _, a := range report.Scan.Affordances {
		state := "ready"
		if !a.Enabled {
			state = "filled"
		}
		fmt.Fprintf(&b, "  - [%s] %s (%s, %s)\n", a.FieldID, a.Question, a.Kind, state)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
