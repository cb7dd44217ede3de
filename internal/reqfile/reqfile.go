// Package reqfile parses and validates the requirements YAML layout:
// requirements/_index.yaml plus features/FT-*.yaml. Validation collects
// every problem in a file rather than stopping at the first.
package reqfile

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Index mirrors requirements/_index.yaml.
type Index struct {
	Project  *Project         `yaml:"project"`
	Phases   map[string]Phase `yaml:"phases"`
	Epics    []Epic           `yaml:"epics"`
	Features []FeatureRef     `yaml:"features"`
}

// Project is the index's project metadata block.
type Project struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Scope       string `yaml:"scope"`
}

// Phase is a development phase grouping feature ids.
type Phase struct {
	Description string   `yaml:"description"`
	Features    []string `yaml:"features"`
}

// Epic groups features under an EP identifier.
type Epic struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Status   string   `yaml:"status"`
	Phases   []string `yaml:"phases"`
	Features []string `yaml:"features"`
	Note     string   `yaml:"note"`
}

// FeatureRef is the minimal feature entry carried by the index.
type FeatureRef struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Phase  string `yaml:"phase"`
	Epic   string `yaml:"epic"`
	Status string `yaml:"status"`
	Note   string `yaml:"note"`
}

// Feature mirrors a features/FT-*.yaml file.
type Feature struct {
	ID               string      `yaml:"id"`
	Title            string      `yaml:"title"`
	EpicID           string      `yaml:"epic_id"`
	Phase            string      `yaml:"phase"`
	Priority         string      `yaml:"priority"`
	Status           string      `yaml:"status"`
	Description      string      `yaml:"description"`
	BusinessValue    string      `yaml:"business_value"`
	UserStories      []UserStory `yaml:"user_stories"`
	DefinitionOfDone DoneList    `yaml:"definition_of_done"`
	Labels           []string    `yaml:"labels"`
	Note             string      `yaml:"note"`
}

// UserStory is one story within a feature.
type UserStory struct {
	ID                 string   `yaml:"id"`
	AsA                string   `yaml:"as_a"`
	IWant              string   `yaml:"i_want"`
	SoThat             string   `yaml:"so_that"`
	AcceptanceCriteria []string `yaml:"acceptance_criteria"`
	Priority           string   `yaml:"priority"`
	StoryQuality       string   `yaml:"story_quality"`
	Status             string   `yaml:"status"`
	Note               string   `yaml:"note"`
}

// DoneList accepts definition_of_done as either a flat list or a mapping of
// category to list; both forms appear in real requirement trees.
type DoneList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *DoneList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*d = items
		return nil
	case yaml.MappingNode:
		var groups map[string][]string
		if err := value.Decode(&groups); err != nil {
			return err
		}
		keys := make([]string, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var items []string
		for _, k := range keys {
			items = append(items, groups[k]...)
		}
		*d = items
		return nil
	default:
		return fmt.Errorf("definition_of_done must be a list or a mapping of lists")
	}
}

// loadDoc reads a YAML file into both its node tree (for raw-key
// inspection) and a typed target.
func loadDoc(path string, target any) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if err := doc.Decode(target); err != nil {
		return nil, err
	}
	return doc.Content[0], nil
}

// mappingKeys returns the top-level keys of a mapping node.
func mappingKeys(node *yaml.Node) []string {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys
}

// mappingValue returns the value node for key in a mapping node.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
