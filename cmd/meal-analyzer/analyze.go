package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mcp-meal-analyzer/internal/config"
	"mcp-meal-analyzer/internal/logging"
	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/recognizer"
)

var (
	analyzeComponentsFile string
	analyzeText           string
	analyzeImage          string
	analyzeLocale         string
	analyzeMode           string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one meal and print the result as JSON",
	Long: "Analyze a JSON components file (an array, or an object with a \"components\" key; " +
		"\"-\" reads stdin), a text description, or an image file. Nothing is persisted.",
	Example: "  meal-analyzer analyze --components meal.json --locale it\n" +
		"  meal-analyzer analyze --text \"two fried eggs and a coffee\"",
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeComponentsFile, "components", "c", "", "JSON file of detected components")
	analyzeCmd.Flags().StringVarP(&analyzeText, "text", "t", "", "Meal description")
	analyzeCmd.Flags().StringVarP(&analyzeImage, "image", "i", "", "Meal photo file")
	analyzeCmd.Flags().StringVar(&analyzeLocale, "locale", "en", "Locale for names and feedback")
	analyzeCmd.Flags().StringVar(&analyzeMode, "mode", recognizer.ModeDetailed, "Recognition mode: quick|detailed")
	analyzeCmd.MarkFlagsMutuallyExclusive("components", "text", "image")
	analyzeCmd.MarkFlagsOneRequired("components", "text", "image")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	cfg.DB.Path = ""

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a, err := buildApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var res *models.AnalysisResult
	switch {
	case analyzeComponentsFile != "":
		comps, err := readComponents(analyzeComponentsFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		res, err = a.pipeline.AnalyzeComponents(cmd.Context(), comps, analyzeLocale)
		if err != nil {
			return err
		}
	default:
		in := recognizer.Input{Text: analyzeText}
		if analyzeImage != "" {
			data, err := os.ReadFile(analyzeImage)
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}
			in.Image = data
		}
		res, _, err = a.pipeline.AnalyzeInput(cmd.Context(), in, analyzeLocale, analyzeMode)
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func readComponents(path string, stdin io.Reader) ([]models.DetectedComponent, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read components: %w", err)
	}
	return parseComponents(data)
}

func parseComponents(data []byte) ([]models.DetectedComponent, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var comps []models.DetectedComponent
		if err := json.Unmarshal(data, &comps); err != nil {
			return nil, fmt.Errorf("invalid components file: %w", err)
		}
		return comps, nil
	}
	var wrapped struct {
		Components []models.DetectedComponent `json:"components"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("invalid components file: %w", err)
	}
	if wrapped.Components == nil {
		return nil, errors.New(`invalid components file: expected an array or a "components" key`)
	}
	return wrapped.Components, nil
}
