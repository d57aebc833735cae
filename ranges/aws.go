package ranges

import (
	"fmt"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
)

// Jumpbox access layer network constants. The jumpbox VPC occupies the
// reserved block; blueprint validation rejects VPC CIDRs that overlap
// it.
const (
	jumpboxVPCCIDR       = v1.ReservedCIDR
	jumpboxPublicCIDR    = "10.255.99.0/24"
	jumpboxNATSubnetCIDR = "10.255.98.0/24"

	awsProviderVersion = "~> 5.0"
)

// awsStack synthesizes the AWS plan: a dedicated jumpbox VPC with
// internet and NAT gateways, a transit gateway wiring every blueprint
// VPC to the jumpbox, and instances per blueprint host.
type awsStack struct{}

func (s *awsStack) credentialEnv(r *Range) map[string]string {
	return map[string]string{
		"AWS_ACCESS_KEY_ID":     r.Secrets.AWSAccessKey,
		"AWS_SECRET_ACCESS_KEY": r.Secrets.AWSSecretKey,
	}
}

func (s *awsStack) document(r *Range) (*Document, error) {
	region, ok := v1.AWSRegions[r.Region]
	if !ok {
		return nil, v1.ErrUnsupported("region", r.Region)
	}
	zone := region + "a"

	doc := NewDocument(r.StackName(), "aws", "hashicorp/aws", awsProviderVersion, map[string]any{
		"region": region,
	})

	doc.AddResource("aws_key_pair", "jumpbox-key", map[string]any{
		"key_name":   fmt.Sprintf("%s-key", r.DeployedName()),
		"public_key": r.SSHPublicKey,
		"tags":       map[string]string{"Name": fmt.Sprintf("%s-key", r.DeployedName())},
	})

	// Jumpbox VPC with a public subnet (internet gateway) and a private
	// attachment subnet that carries the transit gateway ENI and the
	// NAT return path.
	doc.AddResource("aws_vpc", "jumpbox", map[string]any{
		"cidr_block":           jumpboxVPCCIDR,
		"enable_dns_support":   true,
		"enable_dns_hostnames": true,
		"tags":                 map[string]string{"Name": "JumpBoxVPC"},
	})
	doc.AddResource("aws_subnet", "jumpbox-public", map[string]any{
		"vpc_id":                  Ref("aws_vpc", "jumpbox", "id"),
		"cidr_block":              jumpboxPublicCIDR,
		"availability_zone":       zone,
		"map_public_ip_on_launch": true,
		"tags":                    map[string]string{"Name": "JumpBoxPublicSubnet"},
	})
	doc.AddResource("aws_subnet", "jumpbox-nat", map[string]any{
		"vpc_id":                  Ref("aws_vpc", "jumpbox", "id"),
		"cidr_block":              jumpboxNATSubnetCIDR,
		"availability_zone":       zone,
		"map_public_ip_on_launch": false,
		"tags":                    map[string]string{"Name": "JumpBoxAttachmentSubnet"},
	})

	doc.AddResource("aws_internet_gateway", "igw", map[string]any{
		"vpc_id": Ref("aws_vpc", "jumpbox", "id"),
		"tags":   map[string]string{"Name": "RangeInternetGateway"},
	})
	doc.AddResource("aws_eip", "nat", map[string]any{
		"tags": map[string]string{"Name": "RangeNatEIP"},
	})
	doc.AddResource("aws_nat_gateway", "nat", map[string]any{
		"subnet_id":     Ref("aws_subnet", "jumpbox-public", "id"),
		"allocation_id": Ref("aws_eip", "nat", "id"),
		"tags":          map[string]string{"Name": "RangeNatGateway"},
	})

	doc.AddResource("aws_route_table", "public", map[string]any{
		"vpc_id": Ref("aws_vpc", "jumpbox", "id"),
		"tags":   map[string]string{"Name": "RangePublicRouteTable"},
	})
	doc.AddResource("aws_route", "public-internet", map[string]any{
		"route_table_id":         Ref("aws_route_table", "public", "id"),
		"destination_cidr_block": "0.0.0.0/0",
		"gateway_id":             Ref("aws_internet_gateway", "igw", "id"),
	})
	doc.AddResource("aws_route_table_association", "public", map[string]any{
		"subnet_id":      Ref("aws_subnet", "jumpbox-public", "id"),
		"route_table_id": Ref("aws_route_table", "public", "id"),
	})

	doc.AddResource("aws_route_table", "nat", map[string]any{
		"vpc_id": Ref("aws_vpc", "jumpbox", "id"),
		"tags":   map[string]string{"Name": "RangeNatRouteTable"},
	})
	doc.AddResource("aws_route", "nat-default", map[string]any{
		"route_table_id":         Ref("aws_route_table", "nat", "id"),
		"destination_cidr_block": "0.0.0.0/0",
		"nat_gateway_id":         Ref("aws_nat_gateway", "nat", "id"),
	})
	doc.AddResource("aws_route_table_association", "nat", map[string]any{
		"subnet_id":      Ref("aws_subnet", "jumpbox-nat", "id"),
		"route_table_id": Ref("aws_route_table", "nat", "id"),
	})

	// SSH is the only way into the range.
	doc.AddResource("aws_security_group", "jumpbox", map[string]any{
		"vpc_id": Ref("aws_vpc", "jumpbox", "id"),
		"tags":   map[string]string{"Name": "RangeJumpBoxSecurityGroup"},
	})
	doc.AddResource("aws_security_group_rule", "jumpbox-ssh-ingress", map[string]any{
		"type":              "ingress",
		"from_port":         22,
		"to_port":           22,
		"protocol":          "tcp",
		"cidr_blocks":       []string{"0.0.0.0/0"},
		"security_group_id": Ref("aws_security_group", "jumpbox", "id"),
	})
	doc.AddResource("aws_security_group_rule", "jumpbox-egress", map[string]any{
		"type":              "egress",
		"from_port":         0,
		"to_port":           0,
		"protocol":          "-1",
		"cidr_blocks":       []string{"0.0.0.0/0"},
		"security_group_id": Ref("aws_security_group", "jumpbox", "id"),
	})

	doc.AddResource("aws_instance", "jumpbox", map[string]any{
		"ami":                         v1.AWSImages[v1.OSUbuntu20],
		"instance_type":               "t2.micro",
		"subnet_id":                   Ref("aws_subnet", "jumpbox-public", "id"),
		"vpc_security_group_ids":      []string{Ref("aws_security_group", "jumpbox", "id")},
		"associate_public_ip_address": true,
		"key_name":                    Ref("aws_key_pair", "jumpbox-key", "key_name"),
		"tags":                        map[string]string{"Name": fmt.Sprintf("%s-JumpBox", r.DeployedName())},
	})

	doc.AddResource("aws_ec2_transit_gateway", "tgw", map[string]any{
		"description": "Transit gateway for internal range routing",
		"tags":        map[string]string{"Name": fmt.Sprintf("%s-tgw", r.DeployedName())},
	})
	doc.AddResource("aws_ec2_transit_gateway_vpc_attachment", "jumpbox", map[string]any{
		"subnet_ids":         []string{Ref("aws_subnet", "jumpbox-nat", "id")},
		"transit_gateway_id": Ref("aws_ec2_transit_gateway", "tgw", "id"),
		"vpc_id":             Ref("aws_vpc", "jumpbox", "id"),
		"transit_gateway_default_route_table_association": true,
		"transit_gateway_default_route_table_propagation": true,
		"tags": map[string]string{"Name": "jumpbox-vpc-tgw-attachment"},
	})
	doc.AddResource("aws_ec2_transit_gateway_route", "internet", map[string]any{
		"destination_cidr_block":         "0.0.0.0/0",
		"transit_gateway_attachment_id":  Ref("aws_ec2_transit_gateway_vpc_attachment", "jumpbox", "id"),
		"transit_gateway_route_table_id": Ref("aws_ec2_transit_gateway", "tgw", "association_default_route_table_id"),
	})

	doc.AddOutput(OutputJumpboxInstanceID, Output{
		Value:       Ref("aws_instance", "jumpbox", "id"),
		Description: "Instance ID of the jumpbox",
	})
	doc.AddOutput(OutputJumpboxPublicIP, Output{
		Value:       Ref("aws_instance", "jumpbox", "public_ip"),
		Description: "Public IP address of the jumpbox",
	})

	for i, vpc := range r.Blueprint.VPCs {
		s.addVPC(doc, r, i, vpc, zone)
	}

	return doc, nil
}

// addVPC emits one blueprint VPC: the VPC itself, a shared security
// group, subnets, instances, and the transit gateway wiring.
func (s *awsStack) addVPC(doc *Document, r *Range, index int, vpc v1.BlueprintVPC, zone string) {
	name := SanitizeName(vpc.Name)

	doc.AddResource("aws_vpc", name, map[string]any{
		"cidr_block":           vpc.CIDR,
		"enable_dns_support":   true,
		"enable_dns_hostnames": true,
		"tags":                 map[string]string{"Name": vpc.Name},
	})
	doc.AddOutput(vpcOutputKey(vpc.Name), Output{
		Value: Ref("aws_vpc", name, "id"),
	})

	// One shared group per VPC: everything from the jumpbox subnet and
	// from peer VPC CIDRs, egress anywhere.
	sgName := fmt.Sprintf("%s-shared", name)
	doc.AddResource("aws_security_group", sgName, map[string]any{
		"vpc_id": Ref("aws_vpc", name, "id"),
		"tags":   map[string]string{"Name": "RangeSharedSecurityGroup"},
	})
	doc.AddResource("aws_security_group_rule", fmt.Sprintf("%s-jumpbox-ingress", name), map[string]any{
		"type":              "ingress",
		"from_port":         0,
		"to_port":           0,
		"protocol":          "-1",
		"cidr_blocks":       []string{jumpboxPublicCIDR},
		"security_group_id": Ref("aws_security_group", sgName, "id"),
	})
	if peers := peerCIDRs(r.Blueprint.VPCs, index); len(peers) > 0 {
		doc.AddResource("aws_security_group_rule", fmt.Sprintf("%s-peer-ingress", name), map[string]any{
			"type":              "ingress",
			"from_port":         0,
			"to_port":           0,
			"protocol":          "-1",
			"cidr_blocks":       peers,
			"security_group_id": Ref("aws_security_group", sgName, "id"),
		})
	}
	doc.AddResource("aws_security_group_rule", fmt.Sprintf("%s-egress", name), map[string]any{
		"type":              "egress",
		"from_port":         0,
		"to_port":           0,
		"protocol":          "-1",
		"cidr_blocks":       []string{"0.0.0.0/0"},
		"security_group_id": Ref("aws_security_group", sgName, "id"),
	})

	subnetRefs := make([]string, 0, len(vpc.Subnets))
	for _, subnet := range vpc.Subnets {
		subnetName := fmt.Sprintf("%s-%s", name, SanitizeName(subnet.Name))
		subnetRefs = append(subnetRefs, Ref("aws_subnet", subnetName, "id"))

		doc.AddResource("aws_subnet", subnetName, map[string]any{
			"vpc_id":            Ref("aws_vpc", name, "id"),
			"cidr_block":        subnet.CIDR,
			"availability_zone": zone,
			"tags":              map[string]string{"Name": subnet.Name},
		})
		doc.AddOutput(subnetOutputKey(vpc.Name, subnet.Name), Output{
			Value: Ref("aws_subnet", subnetName, "id"),
		})

		for _, host := range subnet.Hosts {
			hostName := fmt.Sprintf("%s-%s", subnetName, SanitizeName(host.Hostname))
			doc.AddResource("aws_instance", hostName, map[string]any{
				"ami":                    v1.AWSImages[host.OS],
				"instance_type":          v1.AWSInstanceTypes[host.Spec],
				"subnet_id":              Ref("aws_subnet", subnetName, "id"),
				"vpc_security_group_ids": []string{Ref("aws_security_group", sgName, "id")},
				"key_name":               Ref("aws_key_pair", "jumpbox-key", "key_name"),
				"root_block_device": map[string]any{
					"volume_size": host.SizeGB,
				},
				"tags": map[string]string{"Name": host.Hostname},
			})
			doc.AddOutput(hostOutputKey(vpc.Name, subnet.Name, host.Hostname), Output{
				Value: Ref("aws_instance", hostName, "id"),
			})
			doc.AddOutput(hostIPOutputKey(vpc.Name, subnet.Name, host.Hostname), Output{
				Value: Ref("aws_instance", hostName, "private_ip"),
			})
		}
	}

	doc.AddResource("aws_ec2_transit_gateway_vpc_attachment", name, map[string]any{
		"subnet_ids":         subnetRefs,
		"transit_gateway_id": Ref("aws_ec2_transit_gateway", "tgw", "id"),
		"vpc_id":             Ref("aws_vpc", name, "id"),
		"transit_gateway_default_route_table_association": true,
		"transit_gateway_default_route_table_propagation": true,
		"tags": map[string]string{"Name": fmt.Sprintf("%s-vpc-tgw-attachment", name)},
	})

	rtName := fmt.Sprintf("%s-private", name)
	doc.AddResource("aws_route_table", rtName, map[string]any{
		"vpc_id": Ref("aws_vpc", name, "id"),
		"tags":   map[string]string{"Name": fmt.Sprintf("%s-private-route-table", name)},
	})
	doc.AddResource("aws_route", fmt.Sprintf("%s-tgw-default", name), map[string]any{
		"route_table_id":         Ref("aws_route_table", rtName, "id"),
		"destination_cidr_block": "0.0.0.0/0",
		"transit_gateway_id":     Ref("aws_ec2_transit_gateway", "tgw", "id"),
		"depends_on":             []string{fmt.Sprintf("aws_ec2_transit_gateway_vpc_attachment.%s", name)},
	})
	for _, subnet := range vpc.Subnets {
		subnetName := fmt.Sprintf("%s-%s", name, SanitizeName(subnet.Name))
		doc.AddResource("aws_route_table_association", subnetName, map[string]any{
			"subnet_id":      Ref("aws_subnet", subnetName, "id"),
			"route_table_id": Ref("aws_route_table", rtName, "id"),
		})
	}

	// Return routes so jumpbox traffic and NAT replies reach this VPC
	// through the transit gateway.
	doc.AddResource("aws_route", fmt.Sprintf("public-to-%s", name), map[string]any{
		"route_table_id":         Ref("aws_route_table", "public", "id"),
		"destination_cidr_block": vpc.CIDR,
		"transit_gateway_id":     Ref("aws_ec2_transit_gateway", "tgw", "id"),
		"depends_on":             []string{fmt.Sprintf("aws_ec2_transit_gateway_vpc_attachment.%s", name)},
	})
	doc.AddResource("aws_route", fmt.Sprintf("nat-to-%s", name), map[string]any{
		"route_table_id":         Ref("aws_route_table", "nat", "id"),
		"destination_cidr_block": vpc.CIDR,
		"transit_gateway_id":     Ref("aws_ec2_transit_gateway", "tgw", "id"),
		"depends_on":             []string{fmt.Sprintf("aws_ec2_transit_gateway_vpc_attachment.%s", name)},
	})
}

// peerCIDRs collects the CIDRs of every blueprint VPC except the one
// at index.
func peerCIDRs(vpcs []v1.BlueprintVPC, index int) []string {
	peers := make([]string, 0, len(vpcs)-1)
	for i, vpc := range vpcs {
		if i == index {
			continue
		}
		peers = append(peers, vpc.CIDR)
	}
	return peers
}
