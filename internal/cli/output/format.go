// Package output renders CLI results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects how command results are rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat maps a --output value to a Format. The empty string means
// table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
}

func (f Format) String() string {
	return string(f)
}

// Render writes data as JSON or YAML, or writes table as a table. In table
// format, emptyMsg replaces a table without rows when it is not empty.
func Render(w io.Writer, f Format, data any, table TableRenderer, emptyMsg string) error {
	switch f {
	case FormatJSON:
		return PrintJSON(w, data)
	case FormatYAML:
		return PrintYAML(w, data)
	case FormatTable:
		if emptyMsg != "" && len(table.Rows()) == 0 {
			_, err := fmt.Fprintln(w, emptyMsg)
			return err
		}
		return PrintTable(w, table)
	}
	return fmt.Errorf("unknown format: %s", f)
}

// PrintJSON writes data as indented JSON.
func PrintJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// PrintYAML writes data as YAML with two-space indentation.
func PrintYAML(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

const (
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

func colored(w io.Writer, color bool, code, msg string) {
	if color {
		_, _ = fmt.Fprintf(w, "%s%s%s\n", code, msg, colorReset)
		return
	}
	_, _ = fmt.Fprintln(w, msg)
}

// Success prints msg in green when color is set.
func Success(w io.Writer, color bool, msg string) {
	colored(w, color, colorGreen, msg)
}

// Warning prints msg in yellow when color is set.
func Warning(w io.Writer, color bool, msg string) {
	colored(w, color, colorYellow, msg)
}

// Error prints msg in red when color is set.
func Error(w io.Writer, color bool, msg string) {
	colored(w, color, colorRed, msg)
}
