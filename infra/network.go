package infra

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/rs/zerolog"
)

// NetworkStack declares the VPC, security groups and gateway endpoints
// for one environment.
type NetworkStack struct {
	awscdk.Stack

	// EnvName is the environment the stack belongs to.
	EnvName string

	// VPC is the environment's virtual network.
	VPC awsec2.Vpc

	// WebSecurityGroup allows inbound HTTP/HTTPS from anywhere.
	WebSecurityGroup awsec2.SecurityGroup

	// DatabaseSecurityGroup allows MySQL/PostgreSQL access from the
	// web security group only.
	DatabaseSecurityGroup awsec2.SecurityGroup
}

// NetworkStackProps configures a NetworkStack.
type NetworkStackProps struct {
	// EnvName is the environment name, used in construct IDs, subnet
	// group names and output descriptions.
	EnvName string

	// VPC is the network specification. Required.
	VPC *VPCConfig

	// Logger receives synthesis progress events.
	Logger zerolog.Logger

	// StackProps are passed through to the underlying CDK stack.
	StackProps awscdk.StackProps
}

// NewNetworkStack declares the network resources for an environment.
// It fails with ErrMissingNetworkConfig when props carry no VPC
// specification.
func NewNetworkStack(scope constructs.Construct, id string, props *NetworkStackProps) (*NetworkStack, error) {
	if props.VPC == nil {
		return nil, fmt.Errorf("%w for environment %q", ErrMissingNetworkConfig, props.EnvName)
	}

	vpcConfig := *props.VPC
	vpcConfig.ApplyDefaults()
	if err := vpcConfig.Validate(); err != nil {
		return nil, fmt.Errorf("environment %q: %w", props.EnvName, err)
	}

	s := &NetworkStack{
		Stack:   awscdk.NewStack(scope, jsii.String(id), &props.StackProps),
		EnvName: props.EnvName,
	}

	log := props.Logger.With().Str("stack", id).Logger()
	log.Info().
		Str("cidr", vpcConfig.CIDR).
		Int("max_azs", vpcConfig.MaxAZs).
		Bool("nat_gateway", *vpcConfig.EnableNATGateway).
		Msg("declaring vpc")

	s.createVPC(vpcConfig)
	s.createSecurityGroups()
	s.createGatewayEndpoints()
	s.addOutputs()

	return s, nil
}

// createVPC declares the VPC with one public, one private-with-egress
// and one isolated /24 tier per availability zone.
func (s *NetworkStack) createVPC(cfg VPCConfig) {
	natGateways := 0
	if *cfg.EnableNATGateway {
		natGateways = 1
	}

	s.VPC = awsec2.NewVpc(s.Stack, jsii.String(fmt.Sprintf("Vpc-%s", s.EnvName)), &awsec2.VpcProps{
		IpAddresses:        awsec2.IpAddresses_Cidr(jsii.String(cfg.CIDR)),
		MaxAzs:             jsii.Number(float64(cfg.MaxAZs)),
		EnableDnsHostnames: jsii.Bool(*cfg.EnableDNSHostnames),
		EnableDnsSupport:   jsii.Bool(*cfg.EnableDNSSupport),
		NatGateways:        jsii.Number(float64(natGateways)),
		SubnetConfiguration: &[]*awsec2.SubnetConfiguration{
			{
				Name:       jsii.String(fmt.Sprintf("public-subnet-%s", s.EnvName)),
				SubnetType: awsec2.SubnetType_PUBLIC,
				CidrMask:   jsii.Number(24),
			},
			{
				Name:       jsii.String(fmt.Sprintf("private-subnet-%s", s.EnvName)),
				SubnetType: awsec2.SubnetType_PRIVATE_WITH_EGRESS,
				CidrMask:   jsii.Number(24),
			},
			{
				Name:       jsii.String(fmt.Sprintf("isolated-subnet-%s", s.EnvName)),
				SubnetType: awsec2.SubnetType_PRIVATE_ISOLATED,
				CidrMask:   jsii.Number(24),
			},
		},
	})
}

// createSecurityGroups declares the web and database security groups.
// The database group has no default egress and only accepts traffic
// from the web group.
func (s *NetworkStack) createSecurityGroups() {
	s.WebSecurityGroup = awsec2.NewSecurityGroup(s.Stack,
		jsii.String(fmt.Sprintf("WebSecurityGroup-%s", s.EnvName)),
		&awsec2.SecurityGroupProps{
			Vpc:              s.VPC,
			Description:      jsii.String(fmt.Sprintf("Security group for web services in %s", s.EnvName)),
			AllowAllOutbound: jsii.Bool(true),
		})

	s.WebSecurityGroup.AddIngressRule(
		awsec2.Peer_AnyIpv4(),
		awsec2.Port_Tcp(jsii.Number(80)),
		jsii.String("Allow HTTP traffic"),
		nil,
	)
	s.WebSecurityGroup.AddIngressRule(
		awsec2.Peer_AnyIpv4(),
		awsec2.Port_Tcp(jsii.Number(443)),
		jsii.String("Allow HTTPS traffic"),
		nil,
	)

	s.DatabaseSecurityGroup = awsec2.NewSecurityGroup(s.Stack,
		jsii.String(fmt.Sprintf("DatabaseSecurityGroup-%s", s.EnvName)),
		&awsec2.SecurityGroupProps{
			Vpc:              s.VPC,
			Description:      jsii.String(fmt.Sprintf("Security group for database services in %s", s.EnvName)),
			AllowAllOutbound: jsii.Bool(false),
		})

	webPeer := awsec2.Peer_SecurityGroupId(s.WebSecurityGroup.SecurityGroupId(), nil)
	s.DatabaseSecurityGroup.AddIngressRule(
		webPeer,
		awsec2.Port_Tcp(jsii.Number(3306)),
		jsii.String("Allow MySQL access from web services"),
		nil,
	)
	s.DatabaseSecurityGroup.AddIngressRule(
		webPeer,
		awsec2.Port_Tcp(jsii.Number(5432)),
		jsii.String("Allow PostgreSQL access from web services"),
		nil,
	)
}

// createGatewayEndpoints declares gateway endpoints for S3 and
// DynamoDB on the private-with-egress tier, keeping that traffic off
// the public internet.
func (s *NetworkStack) createGatewayEndpoints() {
	privateSubnets := &[]*awsec2.SubnetSelection{
		{SubnetType: awsec2.SubnetType_PRIVATE_WITH_EGRESS},
	}

	s.VPC.AddGatewayEndpoint(jsii.String("S3GatewayEndpoint"), &awsec2.GatewayVpcEndpointOptions{
		Service: awsec2.GatewayVpcEndpointAwsService_S3(),
		Subnets: privateSubnets,
	})
	s.VPC.AddGatewayEndpoint(jsii.String("DynamoDbGatewayEndpoint"), &awsec2.GatewayVpcEndpointOptions{
		Service: awsec2.GatewayVpcEndpointAwsService_DYNAMODB(),
		Subnets: privateSubnets,
	})
}

// addOutputs declares the six network outputs.
func (s *NetworkStack) addOutputs() {
	awscdk.NewCfnOutput(s.Stack, jsii.String(fmt.Sprintf("VpcId-%s", s.EnvName)), &awscdk.CfnOutputProps{
		Value:       s.VPC.VpcId(),
		Description: jsii.String(fmt.Sprintf("VPC ID for %s environment", s.EnvName)),
	})

	awscdk.NewCfnOutput(s.Stack, jsii.String(fmt.Sprintf("VpcCidr-%s", s.EnvName)), &awscdk.CfnOutputProps{
		Value:       s.VPC.VpcCidrBlock(),
		Description: jsii.String(fmt.Sprintf("VPC CIDR block for %s environment", s.EnvName)),
	})

	awscdk.NewCfnOutput(s.Stack, jsii.String(fmt.Sprintf("PublicSubnetIds-%s", s.EnvName)), &awscdk.CfnOutputProps{
		Value:       joinSubnetIDs(s.VPC.PublicSubnets()),
		Description: jsii.String(fmt.Sprintf("Public subnet IDs for %s environment", s.EnvName)),
	})

	awscdk.NewCfnOutput(s.Stack, jsii.String(fmt.Sprintf("PrivateSubnetIds-%s", s.EnvName)), &awscdk.CfnOutputProps{
		Value:       joinSubnetIDs(s.VPC.PrivateSubnets()),
		Description: jsii.String(fmt.Sprintf("Private subnet IDs for %s environment", s.EnvName)),
	})

	awscdk.NewCfnOutput(s.Stack, jsii.String(fmt.Sprintf("WebSecurityGroupId-%s", s.EnvName)), &awscdk.CfnOutputProps{
		Value:       s.WebSecurityGroup.SecurityGroupId(),
		Description: jsii.String(fmt.Sprintf("Web security group ID for %s environment", s.EnvName)),
	})

	awscdk.NewCfnOutput(s.Stack, jsii.String(fmt.Sprintf("DatabaseSecurityGroupId-%s", s.EnvName)), &awscdk.CfnOutputProps{
		Value:       s.DatabaseSecurityGroup.SecurityGroupId(),
		Description: jsii.String(fmt.Sprintf("Database security group ID for %s environment", s.EnvName)),
	})
}

// joinSubnetIDs renders a subnet list as a comma-joined token string.
func joinSubnetIDs(subnets *[]awsec2.ISubnet) *string {
	if subnets == nil || len(*subnets) == 0 {
		return jsii.String("")
	}
	ids := make([]*string, 0, len(*subnets))
	for _, subnet := range *subnets {
		ids = append(ids, subnet.SubnetId())
	}
	return awscdk.Fn_Join(jsii.String(","), &ids)
}
