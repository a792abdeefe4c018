package dialogue

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptSpec is the counselor persona loaded from a YAML file: the system
// instruction plus generation style knobs.
type PromptSpec struct {
	System string `yaml:"system"`
	Style  struct {
		Temperature float32 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"style"`
}

// LoadPromptSpec reads and validates the prompt spec, filling in style
// defaults when the file leaves them out.
func LoadPromptSpec(path string) (*PromptSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var spec PromptSpec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return nil, err
	}
	if spec.System == "" {
		return nil, fmt.Errorf("prompt spec %s: missing system prompt", path)
	}
	if spec.Style.Temperature <= 0 {
		spec.Style.Temperature = 0.7
	}
	if spec.Style.MaxTokens <= 0 {
		spec.Style.MaxTokens = 1500
	}
	return &spec, nil
}
