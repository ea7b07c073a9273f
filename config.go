package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is a declarative snapshot of the five rule sets plus engine knobs.
// It is seed data: ApplyConfig writes it through the administration API, so
// the same durability and visibility rules apply as for any other mutation.
// Roles is descriptive metadata only; roles come into existence through the
// grants and memberships that reference them, so ApplyConfig does not
// persist the Roles section itself.
type Config struct {
	Version            uint16               `json:"version" yaml:"version"`
	Roles              []Role               `json:"roles" yaml:"roles"`
	Grants             []Grant              `json:"grants" yaml:"grants"`
	Memberships        []Membership         `json:"memberships" yaml:"memberships"`
	SubjectAttributes  []SubjectAttrConfig  `json:"subject_attributes" yaml:"subject_attributes"`
	ResourceAttributes []ResourceAttrConfig `json:"resource_attributes" yaml:"resource_attributes"`
	Policies           []*ABACPolicy        `json:"policies" yaml:"policies"`
	Relationships      []*Relationship      `json:"relationships" yaml:"relationships"`
	Engine             EngineConfig         `json:"engine" yaml:"engine"`
}

type SubjectAttrConfig struct {
	SubjectID string `json:"subject_id" yaml:"subject_id"`
	Key       string `json:"key" yaml:"key"`
	Value     string `json:"value" yaml:"value"`
}

type ResourceAttrConfig struct {
	ResourceType string `json:"resource_type" yaml:"resource_type"`
	ResourceID   string `json:"resource_id" yaml:"resource_id"`
	Key          string `json:"key" yaml:"key"`
	Value        string `json:"value" yaml:"value"`
}

type EngineConfig struct {
	VerdictCacheTTL     int64 `json:"verdict_cache_ttl_ms" yaml:"verdict_cache_ttl_ms"`
	RistrettoNumCounter int64 `json:"ristretto_num_counter" yaml:"ristretto_num_counter"`
	RistrettoMaxCost    int64 `json:"ristretto_max_cost" yaml:"ristretto_max_cost"`
	RistrettoBuffer     int64 `json:"ristretto_buffer" yaml:"ristretto_buffer"`
}

// ConfigLoader loads configuration from the supported formats.
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile picks the format from the file extension (.yaml/.yml/.json).
func (l *ConfigLoader) LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return l.LoadYAML(data)
	case ".json":
		return l.LoadJSON(data)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}
}

// ToYAML exports config to YAML
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports config to JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Validate checks referential coherence of the document. It is advisory:
// the engine itself treats unknown identifiers as simply granting nothing.
func (c *Config) Validate() error {
	roleNames := map[string]bool{}
	for _, r := range c.Roles {
		if r.Name == "" {
			return errors.New("role with empty name")
		}
		if roleNames[r.Name] {
			return fmt.Errorf("duplicate role %q", r.Name)
		}
		roleNames[r.Name] = true
	}
	for _, m := range c.Memberships {
		if m.Subject == "" || m.Group == "" {
			return errors.New("membership with empty endpoint")
		}
		if m.Subject == m.Group {
			return fmt.Errorf("membership self-loop on %q", m.Subject)
		}
	}
	for _, g := range c.Grants {
		if g.Role == "" || g.Resource == "" || g.Action == "" {
			return errors.New("grant with empty field")
		}
	}
	policyNames := map[string]bool{}
	for _, p := range c.Policies {
		if p.Name == "" {
			return errors.New("policy with empty name")
		}
		if policyNames[p.Name] {
			return fmt.Errorf("duplicate policy %q", p.Name)
		}
		policyNames[p.Name] = true
		for _, cond := range p.Rules.Conditions {
			switch cond.Operator {
			case "equals", "==", "!=", ">", ">=", "<", "<=", "in":
			default:
				return fmt.Errorf("policy %q: unsupported operator %q", p.Name, cond.Operator)
			}
		}
	}
	for _, r := range c.Relationships {
		if r.SubjectID == "" || r.ResourceID == "" || r.RelationshipType == "" {
			return errors.New("relationship with empty field")
		}
	}
	return nil
}

// Stats summarizes the document for tooling output.
func (c *Config) Stats() map[string]int {
	return map[string]int{
		"roles":               len(c.Roles),
		"grants":              len(c.Grants),
		"memberships":         len(c.Memberships),
		"subject_attributes":  len(c.SubjectAttributes),
		"resource_attributes": len(c.ResourceAttributes),
		"policies":            len(c.Policies),
		"relationships":       len(c.Relationships),
	}
}

// ApplyConfig seeds the stores through the administration API. Rows already
// present are skipped, so applying the same document twice is a no-op.
func (a *Authorizer) ApplyConfig(ctx context.Context, cfg *Config) error {
	for _, g := range cfg.Grants {
		if err := a.GrantPermission(ctx, g.Role, g.Resource, g.Action); err != nil && !errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("apply grant %v: %w", g, err)
		}
	}
	for _, m := range cfg.Memberships {
		if err := a.GrantRole(ctx, m.Subject, m.Group); err != nil && !errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("apply membership %v: %w", m, err)
		}
	}
	for _, attr := range cfg.SubjectAttributes {
		if err := a.SetSubjectAttribute(ctx, attr.SubjectID, attr.Key, attr.Value); err != nil {
			return fmt.Errorf("apply subject attribute %v: %w", attr, err)
		}
	}
	for _, attr := range cfg.ResourceAttributes {
		if err := a.SetResourceAttribute(ctx, attr.ResourceType, attr.ResourceID, attr.Key, attr.Value); err != nil {
			return fmt.Errorf("apply resource attribute %v: %w", attr, err)
		}
	}
	for _, p := range cfg.Policies {
		if err := a.CreatePolicy(ctx, p); err != nil && !errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("apply policy %q: %w", p.Name, err)
		}
	}
	for _, r := range cfg.Relationships {
		if err := a.CreateRelationship(ctx, r); err != nil && !errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("apply relationship %v: %w", *r, err)
		}
	}
	return nil
}
