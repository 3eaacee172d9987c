package director

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const scenarioVersion = "1.0"

// WriteScenario сохраняет запланированные сцены в YAML
func WriteScenario(path string, style string, prompts []Prompt) error {
	scenario := Scenario{
		Version: scenarioVersion,
		Style:   style,
		Scenes:  prompts,
	}
	data, err := yaml.Marshal(&scenario)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadScenario читает сценарий из YAML
func ReadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	return &scenario, nil
}
