package os

import (
	"os"
	"strconv"
	"strings"
)

// GetEnv retrieves the value of an environment variable having the specified
// key. If the value is empty string, a specified default is returned instead.
func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvAsBool attempts to parse a bool from a string value retrieved from the
// specified environment variable. If the environment variable is undefined or
// its value cannot be parsed as a bool, the specified default value is
// returned instead. Build variables are set by users, so a typo must not stop
// the step.
func GetEnvAsBool(name string, defaultValue bool) bool {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultValue
	}
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}
	return defaultValue
}

// VariableEnvName converts the name of a build variable, such as
// "Agent.TempDirectory", to the name of the environment variable the build
// agent exposes it as, such as "AGENT_TEMPDIRECTORY".
func VariableEnvName(name string) string {
	return strings.ToUpper(
		strings.NewReplacer(".", "_", " ", "_").Replace(strings.TrimSpace(name)),
	)
}
