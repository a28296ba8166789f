package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/zeros"
	"github.com/GoCodeAlone/zeros/manifest"
)

// sourceFlags select where module scripts come from.
type sourceFlags struct {
	scriptDir string
	baseURL   string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scriptDir, "scripts", "", "directory to read module scripts from (overrides script_dir)")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "base URL to fetch module scripts from (overrides script_base_url)")
}

// source builds the script source. Scripts are evaluated by recording them in
// the registry and announcing them ready.
func (f *sourceFlags) source(cfg *zeros.BootConfig) (zeros.ScriptSource, error) {
	dir, base := cfg.ScriptDir, cfg.ScriptBaseURL
	if f.scriptDir != "" {
		dir, base = f.scriptDir, ""
	}
	if f.baseURL != "" {
		dir, base = "", f.baseURL
	}

	eval := &zeros.RegistryEvaluator{}
	switch {
	case dir != "":
		return zeros.NewDirSource(dir, cfg.ScriptExt, eval), nil
	case base != "":
		return &zeros.HTTPSource{
			BaseURL:   base,
			Client:    &http.Client{Timeout: 30 * time.Second},
			Evaluator: eval,
		}, nil
	default:
		return nil, fmt.Errorf("%w: use --scripts or --base-url", zeros.ErrNoScriptSource)
	}
}

// newBootloader assembles a bootloader for manifest m.
func (a *app) newBootloader(m *manifest.Manifest, src zeros.ScriptSource, extra ...zeros.Option) (*zeros.Bootloader, error) {
	opts := []zeros.Option{
		zeros.WithLogger(a.logger),
		zeros.WithConfig(a.cfg),
		zeros.WithScriptSource(src),
		zeros.WithSignals(zeros.NewSignalBus()),
	}
	opts = append(opts, m.Options()...)
	opts = append(opts, extra...)
	return zeros.NewBootloader(opts...)
}

func newBootCommand(a *app) *cobra.Command {
	var (
		src        sourceFlags
		showReport bool
	)

	cmd := &cobra.Command{
		Use:   "boot <manifest>",
		Short: "Boot the modules of a manifest once and print the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}
			source, err := src.source(a.cfg)
			if err != nil {
				return err
			}
			bl, err := a.newBootloader(m, source)
			if err != nil {
				return err
			}

			report, bootErr := bl.Boot(cmd.Context())
			out := cmd.OutOrStdout()
			if showReport && report != nil {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			}
			if bootErr != nil {
				return fmt.Errorf("%s", report.Summary())
			}
			fmt.Fprintln(out, report.Summary())
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().BoolVar(&showReport, "report", false, "print the full boot report as JSON")
	return cmd
}
