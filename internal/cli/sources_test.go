package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeedSourcesCommand_Shape(t *testing.T) {
	cmd := newSeedSourcesCommand()
	assert.Equal(t, "seed-sources", cmd.Use)
	require.NotNil(t, cmd.RunE)

	for _, name := range []string{"from-excel", "code", "label", "base-url", "seed"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag %q", name)
	}
}
