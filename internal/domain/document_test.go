package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceDocument_Identifier(t *testing.T) {
	doc := SourceDocument{Metadata: map[string]any{MetadataKeyFilePath: "/srv/data/notes/a.txt"}}
	id, err := doc.Identifier()
	require.NoError(t, err)
	assert.Equal(t, "a.txt", id)

	cases := map[string]SourceDocument{
		"nil metadata": {},
		"missing key":  {Metadata: map[string]any{MetadataKeyFileName: "a.txt"}},
		"not a string": {Metadata: map[string]any{MetadataKeyFilePath: 42}},
		"blank path":   {Metadata: map[string]any{MetadataKeyFilePath: "  "}},
		"root path":    {Metadata: map[string]any{MetadataKeyFilePath: "/"}},
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := doc.Identifier()
			assert.ErrorIs(t, err, ErrMissingIdentifier)
		})
	}
}

func TestGetResult_Contains(t *testing.T) {
	res := &GetResult{IDs: []string{"a.txt"}}
	assert.Equal(t, 1, res.Len())
	assert.True(t, res.Contains("a.txt"))
	assert.False(t, res.Contains("b.txt"))

	var empty *GetResult
	assert.Zero(t, empty.Len())
}
