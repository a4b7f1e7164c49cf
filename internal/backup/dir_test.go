package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akuity/npmauth/internal/pipeline"
)

func newVariables(env pipeline.MapEnv) (*pipeline.Variables, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return pipeline.NewVariables(pipeline.NewCommands(out), env), out
}

func TestAcquireDir(t *testing.T) {
	testCases := []struct {
		name       string
		setup      func(*testing.T) (pipeline.MapEnv, []string)
		assertions func(*testing.T, pipeline.MapEnv, string, string, error)
	}{
		{
			name: "reuses the published directory",
			setup: func(t *testing.T) (pipeline.MapEnv, []string) {
				existing := filepath.Join(t.TempDir(), "existing")
				return pipeline.MapEnv{"SAVE_NPMRC_PATH": existing}, []string{t.TempDir()}
			},
			assertions: func(t *testing.T, env pipeline.MapEnv, dir, out string, err error) {
				require.NoError(t, err)
				require.Equal(t, env["SAVE_NPMRC_PATH"], dir)
				require.DirExists(t, dir)
				require.Empty(t, out)
				require.Empty(t, env["NPM_AUTHENTICATE_TEMP_DIRECTORY"])
			},
		},
		{
			name: "creates a directory below the first root",
			setup: func(t *testing.T) (pipeline.MapEnv, []string) {
				return pipeline.MapEnv{}, []string{"", t.TempDir(), t.TempDir()}
			},
			assertions: func(t *testing.T, env pipeline.MapEnv, dir, out string, err error) {
				require.NoError(t, err)
				require.DirExists(t, dir)
				root := env["NPM_AUTHENTICATE_TEMP_DIRECTORY"]
				require.Equal(t, rootDirName, filepath.Base(root))
				require.Equal(t, root, filepath.Dir(dir))
				require.Equal(t, dir, env["SAVE_NPMRC_PATH"])
				require.Contains(
					t,
					out,
					"##vso[task.setvariable issecret=false;variable=SAVE_NPMRC_PATH]"+dir+"\n",
				)
				require.Contains(
					t,
					out,
					"##vso[task.setvariable issecret=false;variable=NPM_AUTHENTICATE_TEMP_DIRECTORY]"+root+"\n",
				)
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			env, roots := testCase.setup(t)
			vars, out := newVariables(env)
			dir, err := AcquireDir(vars, roots...)
			testCase.assertions(t, env, dir, out.String(), err)
		})
	}
}

func TestAcquireDirTwice(t *testing.T) {
	env := pipeline.MapEnv{}
	vars, _ := newVariables(env)
	root := t.TempDir()
	first, err := AcquireDir(vars, root)
	require.NoError(t, err)
	second, err := AcquireDir(vars, root)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRemoveRoot(t *testing.T) {
	t.Run("nothing published", func(t *testing.T) {
		vars, out := newVariables(pipeline.MapEnv{})
		removed, err := RemoveRoot(vars)
		require.NoError(t, err)
		require.False(t, removed)
		require.Empty(t, out.String())
	})

	t.Run("removes the root and clears variables", func(t *testing.T) {
		env := pipeline.MapEnv{}
		vars, _ := newVariables(env)
		dir, err := AcquireDir(vars, t.TempDir())
		require.NoError(t, err)
		root := env["NPM_AUTHENTICATE_TEMP_DIRECTORY"]
		require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFileName), []byte(`{"index":0}`), 0o600))

		removed, err := RemoveRoot(vars)
		require.NoError(t, err)
		require.True(t, removed)
		require.NoDirExists(t, root)
		require.Empty(t, env["SAVE_NPMRC_PATH"])
		require.Empty(t, env["NPM_AUTHENTICATE_TEMP_DIRECTORY"])
	})
}
