package ranges

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Document is a Terraform configuration in JSON syntax, the same layout
// CDKTF synthesizes into cdk.tf.json.
type Document struct {
	Terraform Backbone                    `json:"terraform"`
	Provider  map[string][]map[string]any `json:"provider"`
	Resource  map[string]map[string]any   `json:"resource"`
	Output    map[string]Output           `json:"output,omitempty"`
}

// Backbone pins the provider requirements and the local state backend.
type Backbone struct {
	RequiredProviders map[string]ProviderRequirement `json:"required_providers"`
	Backend           map[string]map[string]any      `json:"backend"`
}

// ProviderRequirement pins one provider plugin.
type ProviderRequirement struct {
	Source  string `json:"source"`
	Version string `json:"version"`
}

// Output is a Terraform output block.
type Output struct {
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	Sensitive   bool   `json:"sensitive,omitempty"`
}

// NewDocument builds an empty document with the local backend writing
// state to terraform.<stack>.tfstate inside the working directory.
func NewDocument(stackName, providerName, providerSource, providerVersion string, providerConfig map[string]any) *Document {
	return &Document{
		Terraform: Backbone{
			RequiredProviders: map[string]ProviderRequirement{
				providerName: {Source: providerSource, Version: providerVersion},
			},
			Backend: map[string]map[string]any{
				"local": {"path": fmt.Sprintf("terraform.%s.tfstate", stackName)},
			},
		},
		Provider: map[string][]map[string]any{
			providerName: {providerConfig},
		},
		Resource: map[string]map[string]any{},
		Output:   map[string]Output{},
	}
}

// AddResource registers a resource block. The (type, name) pair must be
// unique within the document.
func (d *Document) AddResource(resourceType, name string, attrs map[string]any) {
	block, ok := d.Resource[resourceType]
	if !ok {
		block = map[string]any{}
		d.Resource[resourceType] = block
	}
	block[name] = attrs
}

// AddOutput registers an output block.
func (d *Document) AddOutput(name string, out Output) {
	d.Output[name] = out
}

// Marshal renders the document the way CDKTF does, with stable
// indentation so repeated synthesis is byte-identical.
func (d *Document) Marshal() ([]byte, error) {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling terraform document: %w", err)
	}
	return append(raw, '\n'), nil
}

// Ref builds an interpolation reference to a resource attribute.
func Ref(resourceType, name, attr string) string {
	return fmt.Sprintf("${%s.%s.%s}", resourceType, name, attr)
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeName converts a user-supplied name into a valid Terraform
// resource name component.
func SanitizeName(name string) string {
	cleaned := unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), "-")
	if cleaned == "" {
		cleaned = "unnamed"
	}
	return cleaned
}
