package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tandem-cli/tandem/pkg/models"
)

// agentsFile is the YAML shape of a sub-agent definitions file.
type agentsFile struct {
	Agents []models.SubAgentDefinition `yaml:"agents"`
}

// LoadAgentDefinitions reads sub-agent definitions from a YAML file. Each
// entry must name the agent and list at least one capability.
func LoadAgentDefinitions(path string) ([]models.SubAgentDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading agent definitions: %w", err)
	}

	var file agentsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing agent definitions: %w", err)
	}

	for i, def := range file.Agents {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: agent %d has no name", models.ErrValidation, i)
		}
		if len(def.Capabilities) == 0 {
			return nil, fmt.Errorf("%w: agent %s has no capabilities", models.ErrValidation, def.Name)
		}
	}
	return file.Agents, nil
}
