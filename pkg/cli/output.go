package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/itchyny/gojq"
)

// OutputFormat selects how structured results are rendered.
type OutputFormat string

const (
	FormatYAML OutputFormat = "yaml"
	FormatJSON OutputFormat = "json"
	FormatRaw  OutputFormat = "raw"
)

// OutputOptions configures Print.
type OutputOptions struct {
	Format OutputFormat

	// Filter is an optional jq expression applied before rendering.
	Filter string

	// Writer defaults to stdout.
	Writer io.Writer
}

// Print renders v according to the options.
func Print(v any, opts OutputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	if opts.Filter != "" {
		filtered, err := applyFilter(v, opts.Filter)
		if err != nil {
			return err
		}
		v = filtered
	}

	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatRaw:
		_, err := fmt.Fprintln(w, v)
		return err
	default:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("cli: encode output: %w", err)
		}
		_, err = w.Write(data)
		return err
	}
}

// applyFilter runs a jq expression over v. Multiple outputs collapse
// into a slice.
func applyFilter(v any, expr string) (any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("cli: bad filter %q: %w", expr, err)
	}

	// gojq operates on plain JSON values.
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cli: filter input: %w", err)
	}
	var plain any
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, fmt.Errorf("cli: filter input: %w", err)
	}

	var outs []any
	iter := query.Run(plain)
	for {
		out, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := out.(error); ok {
			return nil, fmt.Errorf("cli: filter: %w", err)
		}
		outs = append(outs, out)
	}
	switch len(outs) {
	case 0:
		return nil, nil
	case 1:
		return outs[0], nil
	default:
		return outs, nil
	}
}
