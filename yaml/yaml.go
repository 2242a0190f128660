// Package yaml loads the endpoint registry from YAML files.
//
// A file holds an "endpoints" mapping keyed by endpoint id. Mapping order is
// kept and becomes the registry order:
//
//	endpoints:
//	  math:
//	    transport: stdio
//	    command: /usr/local/bin/arith
//	    env: {ARITH_PRECISION: "6"}
//	  remote:
//	    transport: nats
//	    url: nats://127.0.0.1:4222
//	    subject: tools.remote
package yaml

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fwojciec/relay"
	"gopkg.in/yaml.v3"
)

// endpointDTO is the YAML representation of a relay.Endpoint.
type endpointDTO struct {
	Transport string            `yaml:"transport"`
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Subject   string            `yaml:"subject,omitempty"`
	Version   string            `yaml:"version,omitempty"`
	Filter    string            `yaml:"filter,omitempty"`
}

// Parse decodes the endpoints of one file. source names the file in errors.
func Parse(data []byte, source string) ([]relay.Endpoint, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", source, relay.ErrConfiguration, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: top level must be a mapping: %w", source, relay.ErrConfiguration)
	}

	var section *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "endpoints" {
			section = root.Content[i+1]
		}
	}
	if section == nil || section.Tag == "!!null" {
		return nil, nil
	}
	if section.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s:%d: endpoints must be a mapping: %w", source, section.Line, relay.ErrConfiguration)
	}

	seen := make(map[string]int)
	eps := make([]relay.Endpoint, 0, len(section.Content)/2)
	for i := 0; i+1 < len(section.Content); i += 2 {
		key, val := section.Content[i], section.Content[i+1]
		id := key.Value
		if line, dup := seen[id]; dup {
			return nil, fmt.Errorf("%s:%d: duplicate endpoint id %q (first defined on line %d): %w", source, key.Line, id, line, relay.ErrConfiguration)
		}
		seen[id] = key.Line

		var dto endpointDTO
		if err := val.Decode(&dto); err != nil {
			return nil, fmt.Errorf("%s:%d: endpoint %q: %w: %w", source, key.Line, id, relay.ErrConfiguration, err)
		}
		eps = append(eps, relay.Endpoint{
			ID:        id,
			Transport: relay.TransportKind(dto.Transport),
			Command:   dto.Command,
			Args:      dto.Args,
			Env:       dto.Env,
			URL:       dto.URL,
			Subject:   dto.Subject,
			Version:   dto.Version,
			Filter:    dto.Filter,
		})
	}
	return eps, nil
}

// Files expands patterns into the endpoint files they name. Patterns may use
// doublestar globs ("config/**/*.yaml"); each pattern's matches are sorted
// lexically and a file named by several patterns is kept once. A pattern
// matching nothing is an error.
func Files(patterns ...string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid endpoint pattern %q: %w", p, relay.ErrConfiguration)
		}
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("endpoint pattern %q: %w: %w", p, relay.ErrConfiguration, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no endpoint files match %q: %w", p, relay.ErrConfiguration)
		}
		slices.Sort(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

// Load reads every file matched by patterns and builds the registry. An id
// defined in more than one file is a configuration error.
func Load(patterns ...string) (*relay.Registry, error) {
	files, err := Files(patterns...)
	if err != nil {
		return nil, err
	}
	var all []relay.Endpoint
	source := make(map[string]string)
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("endpoint file %s: %w: %w", f, relay.ErrConfiguration, err)
			}
			return nil, fmt.Errorf("read endpoint file: %w", err)
		}
		eps, err := Parse(data, f)
		if err != nil {
			return nil, err
		}
		for _, ep := range eps {
			if prev, dup := source[ep.ID]; dup {
				return nil, fmt.Errorf("endpoint %q defined in both %s and %s: %w", ep.ID, prev, f, relay.ErrConfiguration)
			}
			source[ep.ID] = f
		}
		all = append(all, eps...)
	}
	return relay.NewRegistry(all...)
}
