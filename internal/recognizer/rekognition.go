package recognizer

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/rs/zerolog"

	"mcp-meal-analyzer/internal/apperr"
	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/tables"
)

// DetectLabelsAPI is the Rekognition call used by Rekognition.
type DetectLabelsAPI interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// Rekognition recognizes foods in images with AWS Rekognition DetectLabels.
// It yields names and confidences only; portions are left to the estimator.
type Rekognition struct {
	api           DetectLabelsAPI
	tables        *tables.Tables
	log           zerolog.Logger
	maxLabels     int32
	minConfidence float32
}

func NewRekognition(api DetectLabelsAPI, t *tables.Tables, log zerolog.Logger) *Rekognition {
	return &Rekognition{api: api, tables: t, log: log, maxLabels: 25, minConfidence: 70}
}

// NewRekognitionFromConfig loads the default AWS credential chain for region.
func NewRekognitionFromConfig(ctx context.Context, region string, t *tables.Tables, log zerolog.Logger) (*Rekognition, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewRekognition(rekognition.NewFromConfig(cfg), t, log), nil
}

var foodParents = map[string]bool{"food": true, "beverage": true, "drink": true, "meal": true, "produce": true}

// Extract calls DetectLabels and keeps the most specific food labels.
func (r *Rekognition) Extract(ctx context.Context, in Input, _ string, _ string) ([]models.DetectedComponent, error) {
	if !in.IsImage() {
		return nil, apperr.User("image recognition requires an image")
	}
	out, err := r.api.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: in.Image},
		MaxLabels:     aws.Int32(r.maxLabels),
		MinConfidence: aws.Float32(r.minConfidence),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.log.Error().Err(err).Msg("rekognition DetectLabels failed")
		return nil, apperr.Recognition(err)
	}

	// A label that is the parent of another kept label ("Fruit" for "Apple")
	// is dropped in favour of the child.
	parents := make(map[string]bool)
	var labels []types.Label
	for _, l := range out.Labels {
		if !isFoodLabel(l) {
			continue
		}
		labels = append(labels, l)
		for _, p := range l.Parents {
			parents[strings.ToLower(aws.ToString(p.Name))] = true
		}
	}

	comps := make([]models.DetectedComponent, 0, len(labels))
	for _, l := range labels {
		name := aws.ToString(l.Name)
		if parents[strings.ToLower(name)] || r.tables.IsGeneric(name) || foodParents[strings.ToLower(name)] {
			continue
		}
		conf := math.Round(float64(aws.ToFloat32(l.Confidence))) / 100
		c := models.DetectedComponent{Name: name, Confidence: &conf, Category: models.CategorySolid}
		if hasParent(l, "beverage", "drink") || r.tables.IsBeverage(name) {
			c.Category = models.CategoryDrink
		}
		comps = append(comps, c)
	}
	r.log.Debug().Int("labels", len(out.Labels)).Int("components", len(comps)).Msg("rekognition labels filtered")
	return comps, nil
}

func isFoodLabel(l types.Label) bool {
	for _, p := range l.Parents {
		if foodParents[strings.ToLower(aws.ToString(p.Name))] {
			return true
		}
	}
	for _, c := range l.Categories {
		if strings.EqualFold(aws.ToString(c.Name), "Food and Beverage") {
			return true
		}
	}
	return false
}

func hasParent(l types.Label, names ...string) bool {
	for _, p := range l.Parents {
		for _, n := range names {
			if strings.EqualFold(aws.ToString(p.Name), n) {
				return true
			}
		}
	}
	return false
}
