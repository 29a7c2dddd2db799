package statements

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type mappingFile struct {
	Standard   string          `yaml:"standard"`
	Country    string          `yaml:"country"`
	Statements []statementYAML `yaml:"statements"`
}

type statementYAML struct {
	Type  string     `yaml:"type"`
	Lines []lineYAML `yaml:"lines"`
}

type lineYAML struct {
	Code            string   `yaml:"code"`
	Label           string   `yaml:"label"`
	Section         string   `yaml:"section"`
	AccountPatterns []string `yaml:"account_patterns"`
	Formula         string   `yaml:"formula"`
	DependsOn       []string `yaml:"depends_on"`
	NormalSide      string   `yaml:"normal_side"`
	Level           int      `yaml:"level"`
	Total           bool     `yaml:"total"`
	DisplayOrder    int      `yaml:"display_order"`
}

// Load parses a statement mapping catalogue from YAML and validates it.
func Load(r io.Reader) (*MappingSet, error) {
	var file mappingFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode statement mappings: %w", err)
	}
	mappings := make([]*Mapping, 0, len(file.Statements))
	for _, stmt := range file.Statements {
		lines := make([]LineMapping, 0, len(stmt.Lines))
		for _, ln := range stmt.Lines {
			lines = append(lines, LineMapping{
				LineCode:        ln.Code,
				Label:           ln.Label,
				Section:         Section(ln.Section),
				AccountPatterns: ln.AccountPatterns,
				Formula:         ln.Formula,
				DependsOn:       ln.DependsOn,
				NormalSide:      NormalSide(ln.NormalSide),
				Level:           ln.Level,
				Total:           ln.Total,
				DisplayOrder:    ln.DisplayOrder,
			})
		}
		m, err := NewMapping(Type(stmt.Type), lines)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return NewMappingSet(file.Standard, file.Country, mappings)
}

// LoadFile reads a mapping catalogue from disk.
func LoadFile(path string) (*MappingSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open statement mappings: %w", err)
	}
	defer f.Close()
	return Load(f)
}
