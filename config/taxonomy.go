package config

import (
	"errors"
	"fmt"
	"os"

	"listingwatch/types"

	"gopkg.in/yaml.v3"
)

// Category pairs an event type with the keywords that trigger it
type Category struct {
	Type     types.EventType `yaml:"type"`
	Keywords []string        `yaml:"keywords"`
}

// Taxonomy holds every keyword table used by the classifier and the pipeline.
// Categories are ordered: the first matching category wins.
type Taxonomy struct {
	Categories         []Category `yaml:"categories"`
	Exclude            []string   `yaml:"exclude"`
	Targets            []string   `yaml:"targets"`
	PriceRangeKeywords []string   `yaml:"price_range_keywords"`
	HShareTopics       []string   `yaml:"h_share_topics"`
	DilutionThreshold  float64    `yaml:"dilution_threshold"`
}

// DefaultTaxonomy returns the built-in keyword tables for the Yonyou H-share listing
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		Categories: []Category{
			{Type: types.EventProspectus, Keywords: []string{"PROSPECTUS", "招股说明书", "招股書"}},
			{Type: types.EventGlobalOffering, Keywords: []string{"GLOBAL OFFERING", "全球发售", "配售"}},
			{Type: types.EventPriceRange, Keywords: []string{"PRICE RANGE", "价格区间", "发售区间", "发行价"}},
			{Type: types.EventAllocation, Keywords: []string{"ALLOCATION RESULT", "配售结果", "中签结果", "发售结果"}},
			{Type: types.EventHShareDetails, Keywords: []string{"H股", "H SHARE", "境外上市", "发行数量", "占总股本", "股份"}},
		},
		Exclude: []string{
			"APPLICATION PROOF",
			"APPLICATION",
			"申请表格",
			"补递",
			"更正",
			"延期",
			"季度报告",
			"年度报告",
			"中期报告",
		},
		Targets:            []string{"用友", "YONYOU", "Yonyou"},
		PriceRangeKeywords: []string{"PRICE RANGE", "价格区间", "发售区间"},
		HShareTopics:       []string{"H股", "H SHARE", "境外上市", "香港"},
		DilutionThreshold:  15,
	}
}

// Validate rejects taxonomies the classifier cannot work with
func (t Taxonomy) Validate() error {
	if len(t.Categories) == 0 {
		return errors.New("taxonomy has no categories")
	}
	if len(t.Targets) == 0 {
		return errors.New("taxonomy has no target aliases")
	}
	seen := make(map[types.EventType]bool, len(t.Categories))
	for i, c := range t.Categories {
		if c.Type == "" {
			return fmt.Errorf("category %d has no type", i)
		}
		if seen[c.Type] {
			return fmt.Errorf("category %q declared twice", c.Type)
		}
		seen[c.Type] = true
		if len(c.Keywords) == 0 {
			return fmt.Errorf("category %q has no keywords", c.Type)
		}
	}
	if t.DilutionThreshold <= 0 {
		return errors.New("dilution threshold must be positive")
	}
	return nil
}

// LoadTaxonomyFile overlays the YAML file at path onto the default taxonomy.
// Sections missing from the file keep their defaults.
func LoadTaxonomyFile(path string) (Taxonomy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, fmt.Errorf("read taxonomy file: %w", err)
	}
	var file Taxonomy
	if err := yaml.Unmarshal(b, &file); err != nil {
		return Taxonomy{}, fmt.Errorf("parse taxonomy file: %w", err)
	}

	t := DefaultTaxonomy()
	if len(file.Categories) > 0 {
		t.Categories = file.Categories
	}
	if len(file.Exclude) > 0 {
		t.Exclude = file.Exclude
	}
	if len(file.Targets) > 0 {
		t.Targets = file.Targets
	}
	if len(file.PriceRangeKeywords) > 0 {
		t.PriceRangeKeywords = file.PriceRangeKeywords
	}
	if len(file.HShareTopics) > 0 {
		t.HShareTopics = file.HShareTopics
	}
	if file.DilutionThreshold > 0 {
		t.DilutionThreshold = file.DilutionThreshold
	}
	if err := t.Validate(); err != nil {
		return Taxonomy{}, err
	}
	return t, nil
}
