package tfexec

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
)

// Output is one named result value disclosed by the tool after apply.
type Output struct {
	Value     any             `json:"value"`
	Type      json.RawMessage `json:"type,omitempty"`
	Sensitive bool            `json:"sensitive,omitempty"`
}

// Outputs maps output names to their disclosed values.
type Outputs map[string]Output

// ValueString renders an output's value for display.
func (o Output) ValueString() string {
	switch v := o.Value.(type) {
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// QueryOutputs runs the tool's structured-output query in the workspace.
//
// Every failure mode degrades to an empty mapping: nonzero exit, empty
// stdout, malformed JSON. A job that applied cleanly but discloses nothing
// is still a successful job.
func (r *Runner) QueryOutputs(ctx context.Context, dir string, env []string) Outputs {
	cmd := exec.CommandContext(ctx, r.binary, "output", "-json")
	cmd.Dir = dir
	cmd.Env = env

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return Outputs{}
	}
	raw := strings.TrimSpace(stdout.String())
	if raw == "" {
		return Outputs{}
	}

	var outputs Outputs
	if err := json.Unmarshal([]byte(raw), &outputs); err != nil {
		return Outputs{}
	}
	if outputs == nil {
		return Outputs{}
	}
	return outputs
}
