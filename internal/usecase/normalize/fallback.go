package normalize

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Built-in fallback tables. Cache.Load always starts the country, membership
// and synonym tables from these entries and adds the repository's rows on
// top, so extraction keeps producing canonical values before a deployment
// has seeded its taxonomy tables. The asset is compiled
// in; a parse failure is a build defect and panics at init.

//go:embed taxonomy_fallback.yaml
var fallbackYAML []byte

type fallbackTables struct {
	Countries map[string]string `yaml:"countries"`

	Levels        []string          `yaml:"levels"`
	LevelSynonyms map[string]string `yaml:"level_synonyms"`

	Missions        []string          `yaml:"missions"`
	MissionSynonyms map[string]string `yaml:"mission_synonyms"`

	Modalities       []string          `yaml:"modalities"`
	ModalitySynonyms map[string]string `yaml:"modality_synonyms"`

	Benefits []string `yaml:"benefits"`
	Policies []string `yaml:"policies"`
}

var (
	fallbackCountries        map[string]string
	fallbackLevels           []string
	fallbackLevelSynonyms    map[string]string
	fallbackMissions         []string
	fallbackMissionSynonyms  map[string]string
	fallbackModalities       []string
	fallbackModalitySynonyms map[string]string
	fallbackBenefits         []string
	fallbackPolicies         []string
)

func init() {
	var tables fallbackTables
	if err := yaml.Unmarshal(fallbackYAML, &tables); err != nil {
		panic(fmt.Sprintf("normalize: embedded taxonomy_fallback.yaml is invalid: %v", err))
	}
	fallbackCountries = tables.Countries
	fallbackLevels = tables.Levels
	fallbackLevelSynonyms = tables.LevelSynonyms
	fallbackMissions = tables.Missions
	fallbackMissionSynonyms = tables.MissionSynonyms
	fallbackModalities = tables.Modalities
	fallbackModalitySynonyms = tables.ModalitySynonyms
	fallbackBenefits = tables.Benefits
	fallbackPolicies = tables.Policies
}
