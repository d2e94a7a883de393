package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmill/mill/internal/models"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want models.Category
	}{
		{"bug", models.CategoryBug},
		{" Feature \n", models.CategoryFeature},
		{"refactor.", models.CategoryRefactor},
		{`"docs"`, models.CategoryDocs},
		{"chore", models.CategoryChore},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseCategory_Unrecognized(t *testing.T) {
	_, err := ParseCategory("this looks like a bug to me")
	assert.Error(t, err)

	_, err = ParseCategory("")
	assert.Error(t, err)
}

func TestNewClient(t *testing.T) {
	c := NewClient("", "claude-haiku-4-5-20251001")
	require.NotNil(t, c)
	assert.NotNil(t, c.api)
}
