package recognizer

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-meal-analyzer/internal/apperr"
	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/tables"
)

type fakeDetectLabels struct {
	out   *rekognition.DetectLabelsOutput
	err   error
	input *rekognition.DetectLabelsInput
}

func (f *fakeDetectLabels) DetectLabels(_ context.Context, in *rekognition.DetectLabelsInput, _ ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
	f.input = in
	return f.out, f.err
}

func label(name string, conf float32, parents ...string) types.Label {
	l := types.Label{Name: aws.String(name), Confidence: aws.Float32(conf)}
	for _, p := range parents {
		l.Parents = append(l.Parents, types.Parent{Name: aws.String(p)})
	}
	return l
}

func TestRekognition_KeepsSpecificFoodLabels(t *testing.T) {
	api := &fakeDetectLabels{out: &rekognition.DetectLabelsOutput{Labels: []types.Label{
		label("Food", 99.1),
		label("Fruit", 97, "Food", "Plant"),
		label("Apple", 96.4, "Fruit", "Food", "Plant"),
		label("Coffee Cup", 91, "Cup", "Beverage"),
		label("Table", 95, "Furniture"),
		label("Meal", 93, "Food"),
		label("Bread", 88.6, "Food"),
	}}}

	comps, err := NewRekognition(api, tables.Default(), zerolog.Nop()).Extract(context.Background(), Input{Image: []byte("jpeg")}, "en", "")
	require.NoError(t, err)

	require.NotNil(t, api.input)
	assert.Equal(t, []byte("jpeg"), api.input.Image.Bytes)
	assert.Equal(t, int32(25), aws.ToInt32(api.input.MaxLabels))

	names := make([]string, len(comps))
	for i, c := range comps {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Apple", "Coffee Cup", "Bread"}, names)
	assert.Equal(t, 0.96, comps[0].ConfidenceOr(0))
	assert.Equal(t, models.CategorySolid, comps[0].Category)
	assert.Equal(t, models.CategoryDrink, comps[1].Category)
	assert.Nil(t, comps[0].Portion)
}

func TestRekognition_Errors(t *testing.T) {
	r := NewRekognition(&fakeDetectLabels{err: errors.New("throttled")}, tables.Default(), zerolog.Nop())

	_, err := r.Extract(context.Background(), Input{Text: "pasta"}, "en", "")
	assert.True(t, apperr.IsUser(err))

	_, err = r.Extract(context.Background(), Input{Image: []byte("x")}, "en", "")
	assert.True(t, apperr.IsRetryable(err))
}
