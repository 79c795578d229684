package tree

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// apiVersion is stamped into generated index documents.
const apiVersion = "1.0"

// indexDocument is the generated Index.yaml of an application.
type indexDocument struct {
	HarnessAPIVersion string `yaml:"harnessApiVersion"`
	Type              string `yaml:"type"`
	Description       string `yaml:"description,omitempty"`
}

// RenderIndex produces the Index.yaml content for an application.
func RenderIndex(description string) (string, error) {
	out, err := yaml.Marshal(indexDocument{
		HarnessAPIVersion: apiVersion,
		Type:              "APPLICATION",
		Description:       description,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render index document: %w", err)
	}
	return string(out), nil
}

// RenderBody validates a stored entity body as YAML and returns it verbatim.
// Bodies are authored as YAML already; validation here keeps malformed
// documents out of git pushes.
func RenderBody(name, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("entity %s has an empty body", name)
	}
	var doc interface{}
	if err := yaml.Unmarshal([]byte(body), &doc); err != nil {
		return "", fmt.Errorf("entity %s body is not valid yaml: %w", name, err)
	}
	return body, nil
}
