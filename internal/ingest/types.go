package ingest

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// rawReceipt is the on-disk shape of a parsed receipt. JSON files decode
// through the same path since JSON is valid YAML.
type rawReceipt struct {
	Source string    `yaml:"source"`
	Items  []rawLine `yaml:"items"`
}

type rawLine struct {
	Name     string   `yaml:"name"`
	Quantity *float64 `yaml:"quantity"`
	Unit     string   `yaml:"unit"`
	Price    *price   `yaml:"price"`
	Category string   `yaml:"category"`
}

// price accepts both numeric and quoted scalars ("2.49", 2.49) without a
// float round trip.
type price struct {
	decimal.Decimal
}

func (p *price) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: price must be a scalar", node.Line)
	}
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: price %q: %w", node.Line, node.Value, err)
	}
	p.Decimal = d
	return nil
}

// DiscoveredFile is a receipt file found by ScanDir.
type DiscoveredFile struct {
	Path string
	Name string // file name without extension
}
