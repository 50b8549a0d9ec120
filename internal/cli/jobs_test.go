package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreateJobCommand_Shape(t *testing.T) {
	cmd := newCreateJobCommand()
	assert.Equal(t, "create-job", cmd.Use)
	require.NotNil(t, cmd.RunE)

	for _, name := range []string{"source", "name", "seed", "scope-rule", "output-dir", "campaign-kind", "campaign-year"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag %q", name)
	}
}

func TestNewRunDBJobCommand_Shape(t *testing.T) {
	cmd := newRunDBJobCommand()
	assert.Equal(t, "run-db-job", cmd.Use)
	require.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("id"))
}

func TestNewIndexJobCommand_Shape(t *testing.T) {
	cmd := newIndexJobCommand()
	assert.Equal(t, "index-job", cmd.Use)
	require.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("id"))
}

func TestNewRetryJobCommand_Shape(t *testing.T) {
	cmd := newRetryJobCommand()
	assert.Equal(t, "retry-job", cmd.Use)
	require.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("id"))
}

func TestNewListJobsCommand_Defaults(t *testing.T) {
	cmd := newListJobsCommand()
	assert.Equal(t, "list-jobs", cmd.Use)
	require.NotNil(t, cmd.RunE)

	limit := cmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "50", limit.DefValue)

	offset := cmd.Flags().Lookup("offset")
	require.NotNil(t, offset)
	assert.Equal(t, "0", offset.DefValue)
}

func TestNewShowJobCommand_Shape(t *testing.T) {
	cmd := newShowJobCommand()
	assert.Equal(t, "show-job", cmd.Use)
	require.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("id"))
}
