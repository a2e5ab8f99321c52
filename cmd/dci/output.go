// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

type outputFormat int

const (
	formatTable outputFormat = iota
	formatJSON
	formatYAML
)

// printer renders command results as a table or as JSON/YAML documents.
type printer struct {
	w      io.Writer
	format outputFormat
}

func newPrinter(w io.Writer, flags globalFlags) *printer {
	p := &printer{w: w}
	switch {
	case flags.JSON:
		p.format = formatJSON
	case flags.YAML:
		p.format = formatYAML
	}
	return p
}

// structured reports whether value was written as a document. Table output
// is left to the caller.
func (p *printer) structured(value any) (bool, error) {
	switch p.format {
	case formatJSON:
		payload, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return true, err
		}
		_, err = fmt.Fprintln(p.w, string(payload))
		return true, err
	case formatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}

func (p *printer) table() *tabwriter.Writer {
	return tabwriter.NewWriter(p.w, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

func truncateMessage(value string, limit int) string {
	value = normalizeCell(value)
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}
