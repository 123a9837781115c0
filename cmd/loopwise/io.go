package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/loopwise/internal/domain/model"
)

// Output formats.
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// readRequest decodes a request file. JSON input is accepted as YAML.
// A path of "-" reads stdin.
func readRequest(path string, stdin io.Reader) (model.Request, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return model.Request{}, fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req model.Request
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return model.Request{}, fmt.Errorf("%w: empty request file", model.ErrInvalidRequest)
		}
		return model.Request{}, fmt.Errorf("%w: decode %s: %w", model.ErrInvalidRequest, path, err)
	}
	return req, nil
}

// writeOutput encodes v to w as JSON or YAML.
func writeOutput(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}
