package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yourusername/f1-predictor/internal/artifact"
	"github.com/yourusername/f1-predictor/internal/features"
	"github.com/yourusername/f1-predictor/internal/models"
	"github.com/yourusername/f1-predictor/internal/service"
)

var (
	predictGrid   int
	predictRound  int
	predictDriver string
	predictTeam   string
	predictRace   string
	outputJSON    bool
)

func init() {
	predictCmd.Flags().IntVar(&predictGrid, "grid", models.MinGrid, "Starting grid position (1-20)")
	predictCmd.Flags().IntVar(&predictRound, "round", models.MinRound, "Championship round (1-24)")
	predictCmd.Flags().StringVar(&predictDriver, "driver", "", "Driver name (defaults to the first known driver)")
	predictCmd.Flags().StringVar(&predictTeam, "team", "", "Team name (defaults to the first known team)")
	predictCmd.Flags().StringVar(&predictRace, "race", "", "Grand Prix name (defaults to the first known race)")
	predictCmd.Flags().BoolVar(&outputJSON, "json", false, "Print the full result as JSON")

	schemaCmd.Flags().BoolVar(&outputJSON, "json", false, "Print the schema as JSON")
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict a single win probability",
	RunE: func(cmd *cobra.Command, args []string) error {
		predictor, err := bootstrap()
		if err != nil {
			return err
		}
		defer predictor.Close()

		req := models.PredictionRequest{
			Grid:   predictGrid,
			Round:  predictRound,
			Driver: orFirst(predictDriver, predictor.Choices().Drivers),
			Team:   orFirst(predictTeam, predictor.Choices().Teams),
			Race:   orFirst(predictRace, predictor.Choices().Races),
		}
		return runPredict(cmd.Context(), cmd.OutOrStdout(), predictor, req, outputJSON)
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the feature columns and selectable values of the model artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		predictor, err := bootstrap()
		if err != nil {
			return err
		}
		defer predictor.Close()

		return printSchema(cmd.OutOrStdout(), predictor.Schema(), predictor.Choices(), outputJSON)
	},
}

// bootstrap loads the predictor, turning artifact failures into the blocking message.
func bootstrap() (*service.Predictor, error) {
	predictor, err := service.Bootstrap(cfg, artifact.NewLoader(cfg.Artifact.Path), appLog)
	if err != nil {
		if errors.Is(err, artifact.ErrArtifactNotFound) || errors.Is(err, artifact.ErrArtifactUnreadable) {
			return nil, errors.New(artifact.BlockingMessage(err))
		}
		return nil, err
	}
	return predictor, nil
}

func runPredict(ctx context.Context, out io.Writer, predictor *service.Predictor, req models.PredictionRequest, asJSON bool) error {
	result, err := predictor.Predict(ctx, req)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintln(out, result.Message())
	for _, cat := range result.Unmatched {
		fmt.Fprintf(out, "note: %s %q matched no feature column\n", cat, req.Input().Value(cat))
	}
	return nil
}

func printSchema(out io.Writer, schema *features.Schema, choices features.Choices, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Columns []string         `json:"columns"`
			Choices features.Choices `json:"choices"`
		}{schema.Columns(), choices})
	}

	fmt.Fprintf(out, "Columns (%d):\n", schema.Len())
	for _, col := range schema.Columns() {
		fmt.Fprintf(out, "  %s\n", col)
	}
	for _, cat := range features.Categories {
		label := string(cat)
		if choices.UsedFallback(cat) {
			label += " (defaults)"
		}
		fmt.Fprintf(out, "%s: %s\n", label, strings.Join(choices.Values(cat), ", "))
	}
	return nil
}

func orFirst(value string, options []string) string {
	if value != "" || len(options) == 0 {
		return value
	}
	return options[0]
}
