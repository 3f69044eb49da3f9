package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func resetFlags() {
	sourceRegion = ""
	destRegion = ""
	jobs = 0
	fullCopy = false
	bucket = ""
	endpointURL = ""
	profile = ""
	verbosity = 0
	quiet = false
	dryRun = false
	noDeps = false
}

func TestBuildConfigDefaultsDestRegionToSource(t *testing.T) {
	resetFlags()
	sourceRegion = "us-east-1"

	cfg, err := buildConfig()
	require.NoError(t, err)
	require.Equal(t, "us-east-1", cfg.DestRegion)
}

func TestBuildConfigRejectsMissingSourceRegion(t *testing.T) {
	resetFlags()

	_, err := buildConfig()
	require.Error(t, err)
}

func TestBuildConfigQuietOverridesVerbosity(t *testing.T) {
	resetFlags()
	sourceRegion = "us-east-1"
	verbosity = 3
	quiet = true

	cfg, err := buildConfig()
	require.NoError(t, err)
	require.Equal(t, -1, cfg.Verbosity)
}

func TestBuildConfigCarriesExplicitDestRegion(t *testing.T) {
	resetFlags()
	sourceRegion = "us-east-1"
	destRegion = "eu-west-1"

	cfg, err := buildConfig()
	require.NoError(t, err)
	require.Equal(t, "eu-west-1", cfg.DestRegion)
}
