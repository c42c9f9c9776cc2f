package workflow

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Definitions []definitionYAML `yaml:"definitions"`
}

type definitionYAML struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	Mandatory bool              `yaml:"mandatory"`
	Config    map[string]string `yaml:"config"`
	Steps     []stepYAML        `yaml:"steps"`
}

type stepYAML struct {
	Index     int    `yaml:"index"`
	Name      string `yaml:"name"`
	Validator string `yaml:"validator"`
	Notify    *bool  `yaml:"notify"`
}

// LoadCatalog decodes a YAML document of workflow definitions. Step indexes
// default to their position and notify defaults to true.
func LoadCatalog(r io.Reader) ([]Definition, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("workflow: decode catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Definitions))
	defs := make([]Definition, 0, len(file.Definitions))
	for i, raw := range file.Definitions {
		if raw.ID == "" {
			return nil, fmt.Errorf("%w: definition #%d has no id", ErrInvalidInput, i+1)
		}
		if _, dup := seen[raw.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate definition id %q", ErrInvalidInput, raw.ID)
		}
		seen[raw.ID] = struct{}{}

		def := Definition{
			ID:        raw.ID,
			Name:      raw.Name,
			Mandatory: raw.Mandatory,
			Config:    raw.Config,
		}
		for j, s := range raw.Steps {
			index := s.Index
			if index == 0 {
				index = j + 1
			}
			notify := true
			if s.Notify != nil {
				notify = *s.Notify
			}
			def.Steps = append(def.Steps, Step{Index: index, Name: s.Name, ValidatorID: s.Validator, Notify: notify})
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("definition %q: %w", raw.ID, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}
