package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
	"github.com/hugo-lorenzo-mato/leakgate/internal/fsutil"
)

// policyDoc is the on-disk shape of a policy file. Decoding runs with
// KnownFields enabled, so a typo in a key is a load error rather than a
// silently ignored setting.
type policyDoc struct {
	Policies []policyEntry `yaml:"policies"`
}

type policyEntry struct {
	ResourceType  string `yaml:"resource_type"`
	MaxConcurrent *int   `yaml:"max_concurrent"`
	MaxAge        string `yaml:"max_age"`
	Severity      string `yaml:"severity"`
}

// Load parses and validates a policy document. Any malformed entry fails
// the whole load; a partially applied policy set is worse than none.
func Load(r io.Reader) (*Store, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc policyDoc
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty document: defaults apply to everything.
			return NewStore(nil), nil
		}
		return nil, core.ErrPolicy(core.CodeInvalidPolicy, "parsing policy document").WithCause(err)
	}

	policies := make([]Policy, 0, len(doc.Policies))
	seen := make(map[core.ResourceType]bool, len(doc.Policies))
	for i, entry := range doc.Policies {
		p, err := entry.validate()
		if err != nil {
			return nil, fmt.Errorf("policy entry %d: %w", i, err)
		}
		if seen[p.ResourceType] {
			return nil, core.ErrPolicy(core.CodeInvalidPolicy,
				fmt.Sprintf("duplicate policy for resource type %s", p.ResourceType))
		}
		seen[p.ResourceType] = true
		policies = append(policies, p)
	}

	return NewStore(policies), nil
}

// LoadFile loads a policy document from disk.
func LoadFile(path string) (*Store, error) {
	data, err := fsutil.ReadFileScoped(path)
	if err != nil {
		return nil, core.ErrPolicy(core.CodeInvalidPolicy,
			fmt.Sprintf("reading policy file %s", path)).WithCause(err)
	}
	store, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return store, nil
}

func (e policyEntry) validate() (Policy, error) {
	var p Policy

	if e.ResourceType == "" {
		return p, core.ErrPolicy(core.CodeInvalidPolicy, "missing resource_type")
	}
	rt, err := core.ParseResourceType(e.ResourceType)
	if err != nil {
		return p, err
	}

	if e.MaxConcurrent == nil {
		return p, core.ErrPolicy(core.CodeInvalidPolicy,
			fmt.Sprintf("%s: missing max_concurrent", rt))
	}
	if *e.MaxConcurrent < 0 {
		return p, core.ErrPolicy(core.CodeInvalidPolicy,
			fmt.Sprintf("%s: max_concurrent must be non-negative, got %d", rt, *e.MaxConcurrent))
	}

	if e.MaxAge == "" {
		return p, core.ErrPolicy(core.CodeInvalidPolicy,
			fmt.Sprintf("%s: missing max_age", rt))
	}
	maxAge, err := time.ParseDuration(e.MaxAge)
	if err != nil {
		return p, core.ErrPolicy(core.CodeInvalidPolicy,
			fmt.Sprintf("%s: invalid max_age %q", rt, e.MaxAge)).WithCause(err)
	}
	if maxAge < 0 {
		return p, core.ErrPolicy(core.CodeInvalidPolicy,
			fmt.Sprintf("%s: max_age must be non-negative, got %s", rt, maxAge))
	}

	if e.Severity == "" {
		return p, core.ErrPolicy(core.CodeInvalidPolicy,
			fmt.Sprintf("%s: missing severity", rt))
	}
	sev, err := core.ParseSeverity(e.Severity)
	if err != nil {
		return p, err
	}

	return Policy{
		ResourceType:  rt,
		MaxConcurrent: *e.MaxConcurrent,
		MaxAge:        maxAge,
		Severity:      sev,
	}, nil
}
