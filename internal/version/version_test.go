package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewVersion(t *testing.T) {
	testCases := []struct {
		name            string
		version         string
		gitCommit       string
		gitTreeState    string
		expectedVersion string
	}{
		{
			name:            "release build",
			version:         "v0.3.0",
			gitCommit:       "0123456789abcdef",
			gitTreeState:    "clean",
			expectedVersion: "v0.3.0",
		},
		{
			name:            "dirty tree",
			version:         "v0.3.0",
			gitCommit:       "0123456789abcdef",
			gitTreeState:    "dirty",
			expectedVersion: "devel+0123456.dirty",
		},
		{
			name:            "no commit info",
			gitTreeState:    "clean",
			expectedVersion: "devel+unknown",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			v := newVersion(
				testCase.version,
				"2024-01-02T03:04:05Z",
				testCase.gitCommit,
				testCase.gitTreeState,
			)
			require.Equal(t, testCase.expectedVersion, v.Version)
			require.Equal(t, 2024, v.BuildDate.Year())
			require.NotEmpty(t, v.GoVersion)
			require.NotEmpty(t, v.Platform)
		})
	}
}
