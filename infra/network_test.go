package infra

import (
	"strings"
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/assertions"
	"github.com/aws/jsii-runtime-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNetworkTemplate(t *testing.T, cfg *VPCConfig) assertions.Template {
	t.Helper()
	app := awscdk.NewApp(nil)
	stack, err := NewNetworkStack(app, "VpcStack-test", &NetworkStackProps{
		EnvName: "test",
		VPC:     cfg,
		Logger:  NopLogger(),
	})
	require.NoError(t, err)
	return assertions.Template_FromStack(stack.Stack, nil)
}

func TestNewNetworkStackMissingConfig(t *testing.T) {
	app := awscdk.NewApp(nil)
	_, err := NewNetworkStack(app, "VpcStack-test", &NetworkStackProps{
		EnvName: "test",
		Logger:  NopLogger(),
	})
	assert.ErrorIs(t, err, ErrMissingNetworkConfig)
}

func TestNetworkStackVPC(t *testing.T) {
	template := newNetworkTemplate(t, &VPCConfig{CIDR: "10.0.0.0/16", MaxAZs: 2})

	template.ResourceCountIs(jsii.String("AWS::EC2::VPC"), jsii.Number(1))
	template.HasResourceProperties(jsii.String("AWS::EC2::VPC"), map[string]interface{}{
		"CidrBlock":          "10.0.0.0/16",
		"EnableDnsHostnames": true,
		"EnableDnsSupport":   true,
	})

	// 2 zones x 3 tiers
	template.ResourceCountIs(jsii.String("AWS::EC2::Subnet"), jsii.Number(6))
	template.ResourceCountIs(jsii.String("AWS::EC2::NatGateway"), jsii.Number(1))
}

func TestNetworkStackDefaults(t *testing.T) {
	template := newNetworkTemplate(t, &VPCConfig{})

	template.HasResourceProperties(jsii.String("AWS::EC2::VPC"), map[string]interface{}{
		"CidrBlock": DefaultVPCCidr,
	})
	template.ResourceCountIs(jsii.String("AWS::EC2::Subnet"), jsii.Number(6))
}

func TestNetworkStackGatewayEndpoints(t *testing.T) {
	template := newNetworkTemplate(t, &VPCConfig{})

	template.ResourceCountIs(jsii.String("AWS::EC2::VPCEndpoint"), jsii.Number(2))
	template.HasResourceProperties(jsii.String("AWS::EC2::VPCEndpoint"), map[string]interface{}{
		"VpcEndpointType": "Gateway",
	})
}

func TestNetworkStackWebSecurityGroup(t *testing.T) {
	template := newNetworkTemplate(t, &VPCConfig{})
	web := findSecurityGroup(t, template, "web services")

	ingress, ok := web["SecurityGroupIngress"].([]interface{})
	require.True(t, ok, "web security group has no inline ingress rules")

	var ports []float64
	for _, raw := range ingress {
		rule, ok := raw.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "0.0.0.0/0", rule["CidrIp"])
		assert.Equal(t, "tcp", rule["IpProtocol"])
		port, ok := rule["FromPort"].(float64)
		require.True(t, ok)
		ports = append(ports, port)
	}
	assert.ElementsMatch(t, []float64{80, 443}, ports)
}

func TestNetworkStackDatabaseSecurityGroup(t *testing.T) {
	template := newNetworkTemplate(t, &VPCConfig{})
	db := findSecurityGroup(t, template, "database services")

	ingress, ok := db["SecurityGroupIngress"].([]interface{})
	require.True(t, ok, "database security group has no inline ingress rules")

	var ports []float64
	for _, raw := range ingress {
		rule, ok := raw.(map[string]interface{})
		require.True(t, ok)

		_, open := rule["CidrIp"]
		assert.False(t, open, "database ingress must never be open to a CIDR source")
		assert.NotNil(t, rule["SourceSecurityGroupId"], "database ingress must reference the web group")

		port, ok := rule["FromPort"].(float64)
		require.True(t, ok)
		ports = append(ports, port)
	}
	assert.ElementsMatch(t, []float64{3306, 5432}, ports)
}

func TestNetworkStackOutputs(t *testing.T) {
	template := newNetworkTemplate(t, &VPCConfig{})

	outputs := template.FindOutputs(jsii.String("*"), nil)
	require.NotNil(t, outputs)
	assert.Len(t, *outputs, 6)

	for _, id := range []string{
		"VpcIdtest",
		"VpcCidrtest",
		"PublicSubnetIdstest",
		"PrivateSubnetIdstest",
		"WebSecurityGroupIdtest",
		"DatabaseSecurityGroupIdtest",
	} {
		assert.Contains(t, *outputs, id)
	}
}

// findSecurityGroup returns the properties of the security group whose
// description contains the given fragment.
func findSecurityGroup(t *testing.T, template assertions.Template, fragment string) map[string]interface{} {
	t.Helper()

	groups := template.FindResources(jsii.String("AWS::EC2::SecurityGroup"), nil)
	require.NotNil(t, groups)

	for _, resource := range *groups {
		props, ok := (*resource)["Properties"].(map[string]interface{})
		if !ok {
			continue
		}
		desc, _ := props["GroupDescription"].(string)
		if strings.Contains(desc, fragment) {
			return props
		}
	}

	t.Fatalf("no security group with description containing %q", fragment)
	return nil
}
