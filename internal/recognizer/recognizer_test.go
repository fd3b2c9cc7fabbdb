package recognizer

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-meal-analyzer/internal/apperr"
)

func TestNormalizeMode(t *testing.T) {
	assert.Equal(t, ModeQuick, NormalizeMode(" Quick "))
	assert.Equal(t, ModeDetailed, NormalizeMode(""))
	assert.Equal(t, ModeDetailed, NormalizeMode("verbose"))
}

func TestInput_Validate(t *testing.T) {
	assert.True(t, apperr.IsUser(Input{Text: "  "}.Validate()))
	assert.NoError(t, Input{Text: "pasta"}.Validate())
	assert.NoError(t, Input{Image: []byte{1}}.Validate())
}

func TestDecodeDataURI(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	enc := base64.StdEncoding.EncodeToString(png)

	in, err := DecodeDataURI("data:image/png;base64," + enc)
	require.NoError(t, err)
	assert.Equal(t, png, in.Image)
	assert.Equal(t, "image/png", in.MIME)

	in, err = DecodeDataURI(enc)
	require.NoError(t, err)
	assert.Empty(t, in.MIME)
	assert.Equal(t, "image/png", in.ImageMIME())

	_, err = DecodeDataURI("data:image/png," + enc)
	assert.True(t, apperr.IsUser(err))
	_, err = DecodeDataURI("not base64!")
	assert.True(t, apperr.IsUser(err))
	_, err = DecodeDataURI("")
	assert.True(t, apperr.IsUser(err))
}
