package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// VariablesFileName is the file the external tool auto-loads as input
// variables. The name is part of the tool's contract, not ours.
const VariablesFileName = "terraform.auto.tfvars.json"

// WriteVariables serializes user-supplied parameters into the workspace so
// the external tool picks them up on its next run. An existing file is
// overwritten. Values are written as-is; schema enforcement happens at the
// submission boundary.
func WriteVariables(dir string, variables map[string]any) error {
	b, err := json.MarshalIndent(variables, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}
	b = append(b, '\n')

	path := filepath.Join(dir, VariablesFileName)
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("write variables file: %w", err)
	}
	return nil
}
