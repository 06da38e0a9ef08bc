// Package evaluation measures detection quality against labeled scenario
// deployments.
package evaluation

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed scenarios_schema.json
var scenariosSchema string

// LabeledDeployment is one deployment with its known classification.
type LabeledDeployment struct {
	Name     string `yaml:"name"`
	Expected string `yaml:"expected"`
}

// ScenarioFile describes a namespace of labeled test deployments.
type ScenarioFile struct {
	Namespace   string              `yaml:"namespace"`
	Deployments []LabeledDeployment `yaml:"deployments"`
}

// GroundTruth returns the deployment-name to expected-class map.
func (s ScenarioFile) GroundTruth() map[string]string {
	truth := make(map[string]string, len(s.Deployments))
	for _, d := range s.Deployments {
		truth[d.Name] = d.Expected
	}
	return truth
}

// LoadScenarios parses and schema-validates a scenario file.
func LoadScenarios(path string) (ScenarioFile, error) {
	var scenario ScenarioFile

	data, err := os.ReadFile(path)
	if err != nil {
		return scenario, fmt.Errorf("read scenario file: %w", err)
	}

	// Schema validation works on the generic document, struct decoding on
	// the typed one.
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return scenario, fmt.Errorf("parse scenario file %s: %w", path, err)
	}
	if err := compileSchema().Validate(doc); err != nil {
		return scenario, fmt.Errorf("invalid scenario file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return scenario, fmt.Errorf("decode scenario file %s: %w", path, err)
	}
	return scenario, nil
}

func compileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(scenariosSchema))
	if err != nil {
		panic(fmt.Sprintf("embedded scenario schema does not parse: %v", err))
	}
	if err := compiler.AddResource("scenarios_schema.json", doc); err != nil {
		panic(fmt.Sprintf("embedded scenario schema rejected: %v", err))
	}
	schema, err := compiler.Compile("scenarios_schema.json")
	if err != nil {
		panic(fmt.Sprintf("embedded scenario schema does not compile: %v", err))
	}
	return schema
}

// DeploymentName strips the replicaset and pod hash suffixes from a pod name.
func DeploymentName(pod string) string {
	if !strings.Contains(pod, "-") {
		return pod
	}
	parts := strings.Split(pod, "-")
	if len(parts) <= 2 {
		return pod
	}
	return strings.Join(parts[:len(parts)-2], "-")
}
