// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// printer renders command results in the selected format.
type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case outputText, outputJSON, outputYAML:
		return &printer{w: w, format: format}, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("output", format).Errorf("output must be text, json or yaml")
	}
}

// print writes v as JSON or YAML, or calls text for the text format.
func (p *printer) print(v any, text func(w io.Writer) error) error {
	switch p.format {
	case outputJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return oops.With("format", p.format).Wrap(err)
		}
		return nil
	case outputYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return oops.With("format", p.format).Wrap(err)
		}
		return enc.Close()
	default:
		return text(p.w)
	}
}

// line returns a text renderer printing one formatted line.
func line(format string, args ...any) func(w io.Writer) error {
	return func(w io.Writer) error {
		_, err := fmt.Fprintf(w, format+"\n", args...)
		return err
	}
}
