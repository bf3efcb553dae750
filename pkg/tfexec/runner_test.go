package tfexec

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeStub installs a fake tool binary so runner tests never touch a real
// terraform installation.
func writeStub(t *testing.T, script string) *Runner {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terraform-stub")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return NewRunner(path)
}

func TestRun_StreamsOutputInOrder(t *testing.T) {
	r := writeStub(t, `echo first
echo second
echo third 1>&2`)

	var sink bytes.Buffer
	code, err := r.Run(context.Background(), InitArgs(), t.TempDir(), os.Environ(), &sink)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if code != 0 {
		t.Fatalf("unexpected exit code: %d", code)
	}

	got := sink.String()
	first := strings.Index(got, "first")
	second := strings.Index(got, "second")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("output out of order: %q", got)
	}
	if !strings.Contains(got, "third") {
		t.Fatalf("stderr not merged into sink: %q", got)
	}
}

func TestRun_WritesCommandDelimiter(t *testing.T) {
	r := writeStub(t, "exit 0")

	var sink bytes.Buffer
	if _, err := r.Run(context.Background(), ApplyArgs(), t.TempDir(), os.Environ(), &sink); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if !strings.Contains(sink.String(), ">>> Running: ") {
		t.Fatalf("missing delimiter line: %q", sink.String())
	}
	if !strings.Contains(sink.String(), "apply -auto-approve -input=false") {
		t.Fatalf("delimiter does not name the command: %q", sink.String())
	}
}

func TestRun_ReportsNonzeroExit(t *testing.T) {
	r := writeStub(t, `echo provider error 1>&2
exit 3`)

	var sink bytes.Buffer
	code, err := r.Run(context.Background(), ApplyArgs(), t.TempDir(), os.Environ(), &sink)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if code != 3 {
		t.Fatalf("exit code not reported: got %d want 3", code)
	}
	if !strings.Contains(sink.String(), "Command failed with exit code 3") {
		t.Fatalf("failure line missing: %q", sink.String())
	}
}

func TestRun_PassesEnvironment(t *testing.T) {
	r := writeStub(t, `echo "region=$AWS_DEFAULT_REGION"`)

	env := append(os.Environ(), "AWS_DEFAULT_REGION=ap-south-1")
	var sink bytes.Buffer
	if _, err := r.Run(context.Background(), InitArgs(), t.TempDir(), env, &sink); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !strings.Contains(sink.String(), "region=ap-south-1") {
		t.Fatalf("environment not passed to subprocess: %q", sink.String())
	}
}

func TestRun_MissingBinary(t *testing.T) {
	r := NewRunner(filepath.Join(t.TempDir(), "does-not-exist"))

	var sink bytes.Buffer
	if _, err := r.Run(context.Background(), InitArgs(), t.TempDir(), os.Environ(), &sink); err == nil {
		t.Fatalf("expected error for missing binary")
	}
}

func TestQueryOutputs_ParsesMapping(t *testing.T) {
	r := writeStub(t, `if [ "$1" = "output" ]; then
  echo '{"vpc_id":{"value":"vpc-0abc","type":"string"},"nat_count":{"value":2}}'
fi`)

	outputs := r.QueryOutputs(context.Background(), t.TempDir(), os.Environ())
	if len(outputs) != 2 {
		t.Fatalf("unexpected outputs: %v", outputs)
	}
	if outputs["vpc_id"].ValueString() != "vpc-0abc" {
		t.Fatalf("vpc_id value mismatch: %v", outputs["vpc_id"])
	}
	if outputs["nat_count"].ValueString() != "2" {
		t.Fatalf("non-string value not rendered: %v", outputs["nat_count"])
	}
}

func TestQueryOutputs_DegradesToEmpty(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"nonzero exit", "exit 1"},
		{"empty stdout", "exit 0"},
		{"malformed payload", `echo 'not json'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := writeStub(t, tt.script)
			outputs := r.QueryOutputs(context.Background(), t.TempDir(), os.Environ())
			if len(outputs) != 0 {
				t.Fatalf("expected empty outputs, got %v", outputs)
			}
		})
	}
}
