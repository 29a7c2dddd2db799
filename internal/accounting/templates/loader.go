package templates

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/grandlivre/grandlivre/internal/accounting/journals"
)

type templateFile struct {
	Templates []templateYAML `yaml:"templates"`
}

type templateYAML struct {
	Code            string            `yaml:"code"`
	Name            string            `yaml:"name"`
	Description     string            `yaml:"description"`
	Standard        string            `yaml:"standard"`
	Country         string            `yaml:"country"`
	Category        string            `yaml:"category"`
	DefaultVATRate  string            `yaml:"default_vat_rate"`
	DefaultCurrency string            `yaml:"default_currency"`
	Variables       map[string]string `yaml:"variables"`
	Keywords        string            `yaml:"keywords"`
	DisplayOrder    int               `yaml:"display_order"`
	Lines           []lineYAML        `yaml:"lines"`
}

type lineYAML struct {
	Position string `yaml:"position"`
	Account  string `yaml:"account_pattern"`
	Label    string `yaml:"label"`
	Formula  string `yaml:"formula"`
}

// Load reads a template set from YAML.
func Load(r io.Reader) (*Set, error) {
	var file templateFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("templates: decode: %w", err)
	}
	tpls := make([]Template, 0, len(file.Templates))
	for _, raw := range file.Templates {
		tpl, err := raw.toTemplate()
		if err != nil {
			return nil, err
		}
		tpls = append(tpls, tpl)
	}
	return NewSet(tpls)
}

// LoadFile reads a template set from a YAML file on disk.
func LoadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("templates: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

func (raw templateYAML) toTemplate() (Template, error) {
	tpl := Template{
		Code:            raw.Code,
		Name:            raw.Name,
		Description:     raw.Description,
		Standard:        raw.Standard,
		Country:         raw.Country,
		Category:        raw.Category,
		DefaultCurrency: raw.DefaultCurrency,
		DisplayOrder:    raw.DisplayOrder,
		Variables:       make(map[string]VarType, len(raw.Variables)),
	}
	if raw.DefaultVATRate != "" {
		rate, err := decimal.NewFromString(raw.DefaultVATRate)
		if err != nil {
			return Template{}, fmt.Errorf("templates: %s: bad default_vat_rate %q", raw.Code, raw.DefaultVATRate)
		}
		tpl.DefaultVATRate = rate
	}
	for name, typ := range raw.Variables {
		tpl.Variables[name] = VarType(strings.ToLower(typ))
	}
	for _, kw := range strings.Split(raw.Keywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			tpl.Keywords = append(tpl.Keywords, kw)
		}
	}
	for _, line := range raw.Lines {
		var pos journals.LinePosition
		switch strings.ToLower(line.Position) {
		case "debit":
			pos = journals.PositionDebit
		case "credit":
			pos = journals.PositionCredit
		default:
			return Template{}, fmt.Errorf("templates: %s: bad position %q", raw.Code, line.Position)
		}
		tpl.Lines = append(tpl.Lines, LineTemplate{
			Position:       pos,
			AccountPattern: line.Account,
			Label:          line.Label,
			Formula:        line.Formula,
		})
	}
	return tpl, nil
}
