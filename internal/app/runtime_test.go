package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/shoplytics/shoplytics/internal/testing/guard"
)

func TestInTestModeFollowsEnvironment(t *testing.T) {
	// The guard import sets SHOPLYTICS_TEST_MODE before any test runs.
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv("SHOPLYTICS_TEST_MODE", "0")
	RefreshTestMode()
	require.False(t, InTestMode())

	t.Setenv("SHOPLYTICS_TEST_MODE", "1")
	RefreshTestMode()
	require.True(t, InTestMode())
}
