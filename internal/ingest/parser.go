// Package ingest reads receipts handed over by the OCR collaborator as
// YAML or JSON files and submits them to the engine.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/pipeline"
)

// ParseResult holds the output of parsing a single receipt file.
type ParseResult struct {
	File       DiscoveredFile
	Submission pipeline.ReceiptSubmission
	Err        error
}

// ParseFile reads one receipt file. defaultSource is used when the file does
// not name its source.
func ParseFile(df DiscoveredFile, defaultSource model.ReceiptSource) ParseResult {
	data, err := os.ReadFile(df.Path)
	if err != nil {
		return ParseResult{File: df, Err: err}
	}
	sub, err := Parse(bytes.NewReader(data), defaultSource)
	if err != nil {
		return ParseResult{File: df, Err: fmt.Errorf("%s: %w", df.Path, err)}
	}
	return ParseResult{File: df, Submission: sub}
}

// Parse decodes a receipt document. Unknown keys are rejected so a typo in a
// field name does not silently drop data. A line without a quantity counts
// as one unit.
func Parse(r io.Reader, defaultSource model.ReceiptSource) (pipeline.ReceiptSubmission, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var raw rawReceipt
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return pipeline.ReceiptSubmission{}, errors.New("empty receipt")
		}
		return pipeline.ReceiptSubmission{}, fmt.Errorf("decoding receipt: %w", err)
	}

	sub := pipeline.ReceiptSubmission{Source: defaultSource}
	if s := strings.ToLower(strings.TrimSpace(raw.Source)); s != "" {
		sub.Source = model.ReceiptSource(s)
	}
	for _, l := range raw.Items {
		line := pipeline.ReceiptLine{
			Name:     l.Name,
			Quantity: 1,
			Unit:     l.Unit,
			Category: l.Category,
		}
		if l.Quantity != nil {
			line.Quantity = *l.Quantity
		}
		if l.Price != nil {
			d := l.Price.Decimal
			line.Price = &d
		}
		sub.Items = append(sub.Items, line)
	}
	return sub, nil
}
