package infra

// EnvironmentBuilder provides a fluent interface for assembling an
// environment configuration in code instead of cdk.json.
type EnvironmentBuilder struct {
	config EnvironmentConfig
}

// NewEnvironmentBuilder creates a builder for an environment deploying
// to the given region.
func NewEnvironmentBuilder(region string) *EnvironmentBuilder {
	return &EnvironmentBuilder{
		config: EnvironmentConfig{Region: region},
	}
}

// WithRegion sets the deployment region.
func (b *EnvironmentBuilder) WithRegion(region string) *EnvironmentBuilder {
	b.config.Region = region
	return b
}

// WithVPC sets the network specification.
func (b *EnvironmentBuilder) WithVPC(cfg *VPCConfig) *EnvironmentBuilder {
	b.config.VPC = cfg
	return b
}

// WithNewVPC declares a VPC with the given CIDR and zone count; the
// DNS and NAT gateway flags keep their defaults.
func (b *EnvironmentBuilder) WithNewVPC(cidr string, maxAZs int) *EnvironmentBuilder {
	b.config.VPC = &VPCConfig{
		CIDR:   cidr,
		MaxAZs: maxAZs,
	}
	return b
}

// WithoutNATGateway disables the NAT gateway on the environment's VPC.
func (b *EnvironmentBuilder) WithoutNATGateway() *EnvironmentBuilder {
	if b.config.VPC == nil {
		b.config.VPC = &VPCConfig{}
	}
	b.config.VPC.EnableNATGateway = boolPtr(false)
	return b
}

// WithBucket adds one bucket specification.
func (b *EnvironmentBuilder) WithBucket(name string) *EnvironmentBuilder {
	b.config.S3 = append(b.config.S3, BucketConfig{BucketName: name})
	return b
}

// WithBuckets adds multiple bucket specifications, in order.
func (b *EnvironmentBuilder) WithBuckets(names ...string) *EnvironmentBuilder {
	for _, name := range names {
		b.WithBucket(name)
	}
	return b
}

// Build returns the environment configuration with defaults applied.
func (b *EnvironmentBuilder) Build() EnvironmentConfig {
	config := b.config
	config.ApplyDefaults()
	return config
}

// ConfigBuilder assembles a multi-environment Config.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder creates an empty configuration builder.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: Config{Context: make(map[string]EnvironmentConfig)},
	}
}

// WithEnvironment adds a named environment.
func (b *ConfigBuilder) WithEnvironment(name string, env EnvironmentConfig) *ConfigBuilder {
	b.config.Context[name] = env
	return b
}

// Build returns the configuration with defaults applied.
func (b *ConfigBuilder) Build() *Config {
	config := b.config
	config.ApplyDefaults()
	return &config
}
