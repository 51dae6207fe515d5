// Package infra declares the pycon cloud infrastructure as AWS CDK
// constructs: a per-environment VPC with three subnet tiers plus a set
// of S3 buckets, driven by the context section of cdk.json.
package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied to a VPCConfig when the configuration omits the field.
const (
	DefaultVPCCidr = "10.0.0.0/16"
	DefaultMaxAZs  = 2
)

// Configuration errors. All of them are fatal: synthesis never runs
// against a partial or guessed configuration.
var (
	// ErrConfigNotFound is returned when the configuration file is absent.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrUnknownEnvironment is returned when the requested environment
	// has no entry (or an empty entry) under the context key.
	ErrUnknownEnvironment = errors.New("environment not found in configuration")

	// ErrMissingRegion is returned when neither the environment
	// configuration nor the process environment names a region.
	ErrMissingRegion = errors.New("region not configured")

	// ErrMissingNetworkConfig is returned when a network stack is
	// requested for an environment that has no vpc section.
	ErrMissingNetworkConfig = errors.New("vpc configuration not found")
)

// ParseError reports a syntactically invalid configuration file and
// carries the underlying decoder error.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid configuration in %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Config is the application's view of cdk.json: a mapping from
// environment name to that environment's settings. Other top-level
// keys (the app command, CDK feature flags) are ignored.
type Config struct {
	Context map[string]EnvironmentConfig `json:"context" yaml:"context"`
}

// EnvironmentConfig holds the settings for one named environment.
type EnvironmentConfig struct {
	// Region is the AWS region the environment deploys to.
	Region string `json:"region" yaml:"region"`

	// VPC is the network specification. Nil means the environment
	// declares no network resources.
	VPC *VPCConfig `json:"vpc,omitempty" yaml:"vpc,omitempty"`

	// S3 is the ordered list of bucket specifications.
	S3 []BucketConfig `json:"s3,omitempty" yaml:"s3,omitempty"`
}

// VPCConfig describes the virtual network for one environment. The
// boolean fields are pointers so that an absent key and an explicit
// false stay distinguishable until ApplyDefaults resolves them.
type VPCConfig struct {
	CIDR               string `json:"cidr,omitempty" yaml:"cidr,omitempty"`
	MaxAZs             int    `json:"max_azs,omitempty" yaml:"max_azs,omitempty"`
	EnableDNSHostnames *bool  `json:"enable_dns_hostnames,omitempty" yaml:"enable_dns_hostnames,omitempty"`
	EnableDNSSupport   *bool  `json:"enable_dns_support,omitempty" yaml:"enable_dns_support,omitempty"`
	EnableNATGateway   *bool  `json:"enable_nat_gateway,omitempty" yaml:"enable_nat_gateway,omitempty"`
}

// BucketConfig describes one S3 bucket.
type BucketConfig struct {
	// BucketName is the physical bucket name. Entries without one are
	// skipped during synthesis with a logged warning.
	BucketName string `json:"bucket_name" yaml:"bucket_name"`
}

// LoadConfigFromFile loads a Config from a JSON or YAML file, picking
// the format from the file extension, and applies defaults.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = LoadConfigFromYAML(data)
	default:
		cfg, err = LoadConfigFromJSON(data)
	}
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			parseErr.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFromJSON parses a Config from JSON data.
func LoadConfigFromJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: "<json>", Err: err}
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// LoadConfigFromYAML parses a Config from YAML data.
func LoadConfigFromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: "<yaml>", Err: err}
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in defaults for every environment.
func (c *Config) ApplyDefaults() {
	for name, env := range c.Context {
		env.ApplyDefaults()
		c.Context[name] = env
	}
}

// Environment returns the named environment's settings, or
// ErrUnknownEnvironment if the name has no non-empty entry.
func (c *Config) Environment(name string) (EnvironmentConfig, error) {
	env, ok := c.Context[name]
	if !ok || env.isEmpty() {
		return EnvironmentConfig{}, fmt.Errorf("%w: %q", ErrUnknownEnvironment, name)
	}
	return env, nil
}

// EnvironmentNames returns the configured environment names.
func (c *Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Context))
	for name := range c.Context {
		names = append(names, name)
	}
	return names
}

// ApplyDefaults fills in defaults for the environment's VPC section.
func (e *EnvironmentConfig) ApplyDefaults() {
	if e.VPC != nil {
		e.VPC.ApplyDefaults()
	}
}

func (e *EnvironmentConfig) isEmpty() bool {
	return e.Region == "" && e.VPC == nil && len(e.S3) == 0
}

// ApplyDefaults fills in the documented defaults: 10.0.0.0/16, two
// availability zones, DNS hostnames/support and the NAT gateway on.
func (v *VPCConfig) ApplyDefaults() {
	if v.CIDR == "" {
		v.CIDR = DefaultVPCCidr
	}
	if v.MaxAZs == 0 {
		v.MaxAZs = DefaultMaxAZs
	}
	if v.EnableDNSHostnames == nil {
		v.EnableDNSHostnames = boolPtr(true)
	}
	if v.EnableDNSSupport == nil {
		v.EnableDNSSupport = boolPtr(true)
	}
	if v.EnableNATGateway == nil {
		v.EnableNATGateway = boolPtr(true)
	}
}

// Validate checks the VPC configuration after defaulting.
func (v *VPCConfig) Validate() error {
	if v.MaxAZs < 1 {
		return fmt.Errorf("max_azs must be at least 1, got %d", v.MaxAZs)
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }
