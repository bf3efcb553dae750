// Package templates holds the catalog of predefined IaC templates.
//
// Each catalog entry carries the template's required input fields, optional
// defaults, and the preference-ordered output keys used to pick the single
// dashboard display value. Adding a template is a data change here, not a
// control-flow change anywhere else.
package templates

import (
	"fmt"
	"sort"
	"strings"

	"github.com/terradash/terradash/pkg/tfexec"
)

// Template describes one predefined IaC project offered as a guided option.
type Template struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`

	// RequiredFields must all be present and non-empty at submission.
	RequiredFields []string `yaml:"required_fields" json:"required_fields"`

	// Defaults are applied for fields the submitter omitted.
	Defaults map[string]any `yaml:"defaults,omitempty" json:"defaults,omitempty"`

	// PrimaryOutputs lists candidate output keys in preference order; the
	// first key present in the outputs mapping becomes the dashboard value
	// (e.g. a DNS name is preferred over a bare IP).
	PrimaryOutputs []string `yaml:"primary_outputs" json:"primary_outputs"`
}

// Registry is a closed lookup table of templates keyed by id.
type Registry struct {
	byID  map[string]Template
	order []string
}

func NewRegistry(entries ...Template) *Registry {
	r := &Registry{byID: make(map[string]Template)}
	for _, t := range entries {
		r.add(t)
	}
	return r
}

func (r *Registry) add(t Template) {
	if _, exists := r.byID[t.ID]; !exists {
		r.order = append(r.order, t.ID)
	}
	r.byID[t.ID] = t
}

// Get looks up a template by id.
func (r *Registry) Get(id string) (Template, bool) {
	t, ok := r.byID[strings.TrimSpace(id)]
	return t, ok
}

// List returns the catalog in registration order.
func (r *Registry) List() []Template {
	out := make([]Template, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// MissingFields reports required fields absent or empty in the submitted
// variables, sorted for stable error messages.
func (t Template) MissingFields(variables map[string]any) []string {
	var missing []string
	for _, field := range t.RequiredFields {
		v, ok := variables[field]
		if !ok {
			missing = append(missing, field)
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, field)
		}
	}
	sort.Strings(missing)
	return missing
}

// ApplyDefaults returns the variables with the template's defaults filled in
// for omitted or empty fields. The input map is not mutated.
func (t Template) ApplyDefaults(variables map[string]any) map[string]any {
	merged := make(map[string]any, len(variables)+len(t.Defaults))
	for k, v := range variables {
		merged[k] = v
	}
	for k, def := range t.Defaults {
		v, ok := merged[k]
		if !ok {
			merged[k] = def
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			merged[k] = def
		}
	}
	return merged
}

// Validate checks submitted variables against the template's field set.
func (t Template) Validate(variables map[string]any) error {
	if missing := t.MissingFields(variables); len(missing) > 0 {
		return fmt.Errorf("template %s: missing required fields: %s", t.ID, strings.Join(missing, ", "))
	}
	return nil
}

// SelectPrimary projects the single dashboard display value from a full
// outputs mapping.
//
// For a known template the preference-ordered candidate keys decide. For an
// unknown template (archive-backed jobs) the fallback takes an arbitrary
// first entry; callers must not rely on which key is chosen.
func (r *Registry) SelectPrimary(templateID string, outputs tfexec.Outputs) string {
	if len(outputs) == 0 {
		return ""
	}

	if t, ok := r.Get(templateID); ok {
		for _, key := range t.PrimaryOutputs {
			if out, present := outputs[key]; present {
				if v := out.ValueString(); v != "" {
					return v
				}
			}
		}
		return ""
	}

	for _, out := range outputs {
		return out.ValueString()
	}
	return ""
}

// Builtin returns the stock template catalog.
func Builtin() *Registry {
	return NewRegistry(
		Template{
			ID:             "web_server",
			Label:          "Web Server – Single EC2 Instance",
			RequiredFields: []string{"instance_name", "key_pair_name"},
			PrimaryOutputs: []string{"instance_public_dns", "instance_public_ip"},
		},
		Template{
			ID:    "vpc_basic",
			Label: "VPC – Public/Private Subnets",
			RequiredFields: []string{
				"vpc_cidr",
				"public_subnet_1_cidr",
				"public_subnet_2_cidr",
				"private_subnet_1_cidr",
				"private_subnet_2_cidr",
			},
			PrimaryOutputs: []string{"vpc_id"},
		},
		Template{
			ID:             "s3_cloudfront",
			Label:          "Static Website – S3 + CloudFront",
			RequiredFields: []string{"bucket_name"},
			PrimaryOutputs: []string{"cloudfront_domain_name", "website_endpoint"},
		},
		Template{
			ID:    "two_tier_app",
			Label: "Two-Tier App – EC2 + RDS",
			RequiredFields: []string{
				"instance_name", "key_pair_name",
				"db_name", "db_username", "db_password",
			},
			PrimaryOutputs: []string{"web_public_dns", "web_public_ip"},
		},
		Template{
			ID:             "eks_basic",
			Label:          "EKS Cluster – Basic Managed Node Group",
			RequiredFields: []string{"cluster_name", "desired_size", "min_size", "max_size"},
			Defaults:       map[string]any{"node_instance_type": "t3.small"},
			PrimaryOutputs: []string{"cluster_endpoint", "cluster_name"},
		},
		Template{
			ID:    "alb_asg",
			Label: "ALB + ASG – Highly Available Web App",
			RequiredFields: []string{
				"instance_name", "key_pair_name",
				"asg_desired_capacity", "asg_min_size", "asg_max_size",
			},
			Defaults:       map[string]any{"asg_instance_type": "t2.micro"},
			PrimaryOutputs: []string{"alb_dns_name"},
		},
		Template{
			ID:             "secure_web_hosting",
			Label:          "Secure Web Hosting – Hardened EC2 Web Server",
			RequiredFields: []string{"instance_name", "key_pair_name", "github_repo_url", "domain_name"},
			Defaults: map[string]any{
				"allowed_ssh_cidr": "0.0.0.0/0",
				"instance_type":    "t3.micro",
				"github_branch":    "main",
			},
			PrimaryOutputs: []string{"instance_public_dns", "instance_public_ip"},
		},
	)
}
