package controlplane

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/aponysus/tableadmin/policy"
)

// fileLayout is the YAML document read by Parse:
//
//	default:
//	  retry: {kind: attempts, max_attempts: 5}
//	  backoff: {initial: 10ms, max: 10m, multiplier: 2, jitter: window}
//	methods:
//	  CreateTable:
//	    idempotent: false
//	  CheckConsistency:
//	    retry: {kind: elapsed, max_elapsed: 10m}
//
// Method entries are layered over the default section.
type fileLayout struct {
	Default policy.CallPolicy    `yaml:"default"`
	Methods map[string]yaml.Node `yaml:"methods"`
}

// Parse reads a YAML policy document into a StaticProvider. Every policy is
// validated; the first invalid one fails the whole document.
func Parse(data []byte) (*StaticProvider, error) {
	var f fileLayout
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "controlplane: parse policy document")
	}

	p := &StaticProvider{
		Policies: make(map[string]policy.CallPolicy, len(f.Methods)),
		Default:  f.Default,
	}
	if !p.Default.IsZero() {
		p.Default.Meta.Source = policy.PolicySourceFile
		if _, err := p.Default.Normalize(); err != nil {
			return nil, errors.Wrap(err, "controlplane: default policy")
		}
	}

	for name, node := range f.Methods {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.New("controlplane: empty method name")
		}
		pol := f.Default
		if pol.Idempotent != nil {
			pol.Idempotent = policy.Bool(*pol.Idempotent)
		}
		if err := node.Decode(&pol); err != nil {
			return nil, errors.Wrapf(err, "controlplane: method %q", name)
		}
		pol.Meta.Source = policy.PolicySourceFile
		if _, err := pol.Normalize(); err != nil {
			return nil, errors.Wrapf(err, "controlplane: method %q", name)
		}
		p.Policies[name] = pol
	}
	return p, nil
}

// LoadFile reads and parses the YAML policy file at path.
func LoadFile(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "controlplane: read %s", path)
	}
	return Parse(data)
}
