package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/terradash/terradash/internal/config"
	"github.com/terradash/terradash/pkg/templates"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Inspect the template catalog",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available templates",
	RunE:  runTemplatesList,
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesListCmd)

	templatesListCmd.Flags().Bool("json", false, "Output as JSON")
}

func loadRegistry() (*templates.Registry, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	registry := templates.Builtin()
	manifest := filepath.Join(cfg.Paths.TemplatesDir, "templates.yaml")
	if _, statErr := os.Stat(manifest); statErr == nil {
		if err := registry.MergeManifest(manifest); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func runTemplatesList(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	registry, err := loadRegistry()
	if err != nil {
		return err
	}

	catalog := registry.List()
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(catalog)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "ID\tLABEL\tREQUIRED FIELDS")
	for _, t := range catalog {
		fields := strings.Join(t.RequiredFields, ", ")
		if fields == "" {
			fields = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Label, fields)
	}

	return nil
}
