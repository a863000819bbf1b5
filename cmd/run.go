package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/legal-notice-harvester/internal/export"
	"github.com/JakeFAU/legal-notice-harvester/internal/harvest"
	"github.com/JakeFAU/legal-notice-harvester/internal/storage/local"
)

// ExportPrefix starts every file written by the run command.
const ExportPrefix = "publicacoes_coletadas"

type runOptions struct {
	format string
	filter string
	outDir string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run SITE [CUTOFF]",
		Short: "Harvests one site and writes the records to a file",
		Long: `Harvests SITE once, keeping publications dated on or before CUTOFF
(dd/mm/yyyy, default today). Records are written to
publicacoes_coletadas_{site}_{YYYYmmdd_HHMMSS}.{json|csv} in the output
directory. Nothing is written when no record matches.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSite(cmd, args, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "output format: json or csv")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "keep only titles containing this text (accents and case ignored)")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "output directory (default output.dir)")
	return cmd
}

func runSite(cmd *cobra.Command, args []string, opts *runOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	orchestrator := appInstance.Orchestrator()
	logger := appInstance.Logger()

	site := strings.ToLower(args[0])
	if _, ok := orchestrator.Site(site); !ok {
		return fmt.Errorf("unknown site %q: choose one of %s", site, strings.Join(orchestrator.Sites(), ", "))
	}
	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	cutoff := harvest.DateOf(appInstance.Clock().Now())
	if len(args) == 2 {
		cutoff, err = harvest.ParseDate(args[1])
		if err != nil {
			return fmt.Errorf("invalid cutoff %q: use dd/mm/yyyy", args[1])
		}
	}

	logger.Info("harvest started",
		zap.String("site", site),
		zap.String("cutoff", cutoff.String()),
		zap.String("filter", opts.filter),
	)
	records, err := orchestrator.Run(cmd.Context(), site, cutoff, opts.filter)
	if err != nil {
		return fmt.Errorf("harvest %s: %w", site, err)
	}
	if len(records) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no publications found for %s up to %s\n", site, cutoff)
		return nil
	}

	outDir := opts.outDir
	if outDir == "" {
		outDir = appInstance.Config().Output.Dir
	}
	store, err := local.New(local.Config{Dir: outDir})
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, records); err != nil {
		return err
	}
	name := export.Filename(ExportPrefix, site, appInstance.Clock().Now(), format)
	uri, err := store.PutObject(cmd.Context(), name, format.ContentType(), &buf)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d publications saved to %s\n", len(records), uri)
	return nil
}
