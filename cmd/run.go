package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/profile-enrich/internal/model"
	"github.com/sells-group/profile-enrich/internal/pipeline"
)

var (
	runEmail   string
	runURL     string
	runSocial  []string
	runContext string
	runMinConf float64
	runAsJSON  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run enrichment for a single identity seed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		seed := model.IdentitySeed{
			Email:      runEmail,
			PrimaryURL: runURL,
			SocialURLs: runSocial,
			Context:    runContext,
		}
		if seed.IsEmpty() {
			return eris.New("at least one of --email, --url, --social is required")
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Pipeline.Enrich(ctx, pipeline.Request{
			Seed:          seed,
			MinConfidence: runMinConf,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("enrichment complete",
			zap.String("run_id", run.ID),
			zap.String("status", string(run.Status)),
			zap.Int("fields", len(run.ProfileFields)),
		)

		if runAsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}
		fmt.Print(pipeline.RenderReport(run))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runEmail, "email", "", "subject email address")
	runCmd.Flags().StringVar(&runURL, "url", "", "subject primary URL")
	runCmd.Flags().StringSliceVar(&runSocial, "social", nil, "subject social profile URLs (repeatable)")
	runCmd.Flags().StringVar(&runContext, "context", "", "free-text hint about the subject")
	runCmd.Flags().Float64Var(&runMinConf, "min-confidence", 0, "override the configured confidence gate")
	runCmd.Flags().BoolVar(&runAsJSON, "json", false, "print the full run record as JSON")
	rootCmd.AddCommand(runCmd)
}
