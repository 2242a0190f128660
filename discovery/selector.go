package discovery

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/fwojciec/relay"
	"github.com/google/cel-go/cel"
)

// selector applies an endpoint's version constraint and capability filter.
type selector struct {
	endpoint   string
	constraint *semver.Constraints
	filter     cel.Program
}

func newSelector(ep relay.Endpoint) (*selector, error) {
	s := &selector{endpoint: ep.ID}
	if ep.Version != "" {
		c, err := semver.NewConstraint(ep.Version)
		if err != nil {
			return nil, fmt.Errorf("version constraint %q: %w: %w", ep.Version, relay.ErrConfiguration, err)
		}
		s.constraint = c
	}
	if ep.Filter != "" {
		prg, err := CompileFilter(ep.Filter)
		if err != nil {
			return nil, err
		}
		s.filter = prg
	}
	return s, nil
}

func (s *selector) checkVersion(info relay.ServerInfo) error {
	if s.constraint == nil {
		return nil
	}
	v, err := semver.NewVersion(info.Version)
	if err != nil {
		return fmt.Errorf("server %q reports unparseable version %q: %w", info.Name, info.Version, err)
	}
	if !s.constraint.Check(v) {
		return fmt.Errorf("server %q version %s does not satisfy %q", info.Name, v, s.constraint)
	}
	return nil
}

func (s *selector) keep(c relay.Capability) (bool, error) {
	if s.filter == nil {
		return true, nil
	}
	out, _, err := s.filter.Eval(map[string]any{
		"name":        c.Name,
		"description": c.Description,
		"endpoint":    c.Endpoint,
	})
	if err != nil {
		return false, fmt.Errorf("filter on %q: %w", c.Name, err)
	}
	keep, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter on %q returned %T, want bool", c.Name, out.Value())
	}
	return keep, nil
}

// CompileFilter compiles a capability filter expression. The expression sees
// the string variables name, description and endpoint and must yield a bool.
func CompileFilter(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("endpoint", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("filter environment: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("filter %q: %w: %w", expr, relay.ErrConfiguration, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("filter %q yields %s, want bool: %w", expr, ast.OutputType(), relay.ErrConfiguration)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", expr, err)
	}
	return prg, nil
}
