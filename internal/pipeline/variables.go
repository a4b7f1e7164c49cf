package pipeline

import (
	"os"

	intos "github.com/akuity/npmauth/internal/os"
)

// Well-known build variables shared between invocations of the task within
// one build.
const (
	// VarSaveNpmrcPath holds the directory with the backup index and the
	// backed up .npmrc files.
	VarSaveNpmrcPath = "SAVE_NPMRC_PATH"
	// VarTempDirectory holds the root directory created by the first
	// invocation. It is what gets removed on failure or cleanup.
	VarTempDirectory = "NPM_AUTHENTICATE_TEMP_DIRECTORY"
	// VarExistingEndpoints holds the comma-separated registries already
	// authenticated during this build.
	VarExistingEndpoints = "EXISTING_ENDPOINTS"
)

// Env is the process environment as seen by Variables.
type Env interface {
	Getenv(key string) string
	Setenv(key, value string) error
}

// OSEnv is the real process environment.
type OSEnv struct{}

func (OSEnv) Getenv(key string) string {
	return os.Getenv(key)
}

func (OSEnv) Setenv(key, value string) error {
	return os.Setenv(key, value)
}

// MapEnv is an in-memory Env.
type MapEnv map[string]string

func (m MapEnv) Getenv(key string) string {
	return m[key]
}

func (m MapEnv) Setenv(key, value string) error {
	m[key] = value
	return nil
}

// Variables provides access to build variables. Reads come from the
// environment the agent prepared for the step. Writes are published to the
// agent so later steps see them and are mirrored into the environment so the
// current process does too.
type Variables struct {
	commands *Commands
	env      Env
}

// NewVariables returns *Variables backed by env that publishes changes
// through commands.
func NewVariables(commands *Commands, env Env) *Variables {
	return &Variables{
		commands: commands,
		env:      env,
	}
}

// Get returns the value of the named build variable or the empty string.
func (v *Variables) Get(name string) string {
	return v.env.Getenv(intos.VariableEnvName(name))
}

// Set sets the named build variable for the current process and for all
// subsequent steps of the build.
func (v *Variables) Set(name, value string) error {
	v.commands.SetVariable(name, value, false)
	return v.env.Setenv(intos.VariableEnvName(name), value)
}
