package ledger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akuity/npmauth/internal/pipeline"
)

func TestLoad(t *testing.T) {
	testCases := []struct {
		name       string
		value      string
		assertions func(*testing.T, *Ledger)
	}{
		{
			name: "empty",
			assertions: func(t *testing.T, l *Ledger) {
				require.Empty(t, l.URLs())
				require.False(t, l.Contains("https://registry.example.com/"))
			},
		},
		{
			name:  "entries with blanks and duplicates",
			value: "https://a.example.com/feed/, ,http://A.example.com/feed,https://b.example.com/",
			assertions: func(t *testing.T, l *Ledger) {
				require.Equal(
					t,
					[]string{"https://a.example.com/feed/", "https://b.example.com/"},
					l.URLs(),
				)
			},
		},
		{
			name:  "membership by nerf key",
			value: "https://registry.example.com/npm/registry/",
			assertions: func(t *testing.T, l *Ledger) {
				require.True(t, l.Contains("http://REGISTRY.example.com/npm/registry"))
				require.False(t, l.Contains("https://registry.example.com/npm/"))
				require.False(t, l.Contains("https://registry.example.com/NPM/registry/"))
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			env := pipeline.MapEnv{}
			if testCase.value != "" {
				env["EXISTING_ENDPOINTS"] = testCase.value
			}
			vars := pipeline.NewVariables(pipeline.NewCommands(&bytes.Buffer{}), env)
			testCase.assertions(t, Load(vars))
		})
	}
}

func TestAddAndSave(t *testing.T) {
	env := pipeline.MapEnv{"EXISTING_ENDPOINTS": "https://a.example.com/"}
	out := &bytes.Buffer{}
	vars := pipeline.NewVariables(pipeline.NewCommands(out), env)
	l := Load(vars)

	// Nothing changed, nothing is published
	require.NoError(t, l.Save())
	require.Empty(t, out.String())

	require.True(t, l.Add("https://b.example.com/feed/"))
	require.True(t, l.Contains("https://b.example.com/feed"))
	// Not published before Save
	require.Equal(t, "https://a.example.com/", env["EXISTING_ENDPOINTS"])

	require.NoError(t, l.Save())
	require.Equal(t, "https://a.example.com/,https://b.example.com/feed/", env["EXISTING_ENDPOINTS"])
	require.Equal(
		t,
		"##vso[task.setvariable issecret=false;variable=EXISTING_ENDPOINTS]https://a.example.com/,https://b.example.com/feed/\n",
		out.String(),
	)

	// Already present
	out.Reset()
	require.False(t, l.Add("http://B.example.com/feed"))
	require.NoError(t, l.Save())
	require.Empty(t, out.String())

	// A later invocation sees the published state
	require.True(t, Load(vars).Contains("https://b.example.com/feed/"))
}
