package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Result is the outcome of a task as reported to the build agent.
type Result string

const (
	ResultSucceeded Result = "Succeeded"
	ResultFailed    Result = "Failed"
)

var (
	messageEscaper = strings.NewReplacer(
		"%", "%AZP25",
		"\r", "%0D",
		"\n", "%0A",
	)
	propertyEscaper = strings.NewReplacer(
		"%", "%AZP25",
		"\r", "%0D",
		"\n", "%0A",
		"]", "%5D",
		";", "%3B",
	)
)

// Commands writes logging commands to the stream the build agent watches
// (normally stdout). It is safe for concurrent use.
type Commands struct {
	mu  sync.Mutex
	out io.Writer
}

// NewCommands returns a *Commands that writes to out.
func NewCommands(out io.Writer) *Commands {
	return &Commands{out: out}
}

// Warning reports a warning that is surfaced on the build summary.
func (c *Commands) Warning(msg string) {
	c.write("task.logissue", map[string]string{"type": "warning"}, msg)
}

// SetVariable sets a build variable for the remaining steps of the job.
func (c *Commands) SetVariable(name, value string, secret bool) {
	c.write(
		"task.setvariable",
		map[string]string{
			"variable": name,
			"issecret": fmt.Sprintf("%t", secret),
		},
		value,
	)
}

// Complete reports the result of the task.
func (c *Commands) Complete(result Result, msg string) {
	c.write("task.complete", map[string]string{"result": string(result)}, msg)
}

// PublishTelemetry publishes data, marshaled as JSON, to the telemetry sink of
// the build agent.
func (c *Commands) PublishTelemetry(area, feature string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error marshaling telemetry for %s/%s: %w", area, feature, err)
	}
	c.write(
		"telemetry.publish",
		map[string]string{"area": area, "feature": feature},
		string(b),
	)
	return nil
}

func (c *Commands) write(command string, properties map[string]string, msg string) {
	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	// Stable output makes the stream easy to assert on
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("##vso[")
	sb.WriteString(command)
	for i, k := range keys {
		if i == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(";")
		}
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(propertyEscaper.Replace(properties[k]))
	}
	sb.WriteString("]")
	sb.WriteString(messageEscaper.Replace(msg))
	sb.WriteString("\n")

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, sb.String())
}
