package ranges

import (
	"fmt"
	"strings"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
)

const azurermProviderVersion = "~> 4.0"

// azureStack synthesizes the Azure plan: one resource group, a virtual
// network per blueprint VPC with a public jumpbox subnet carved from
// the VPC CIDR, a NAT gateway for private egress, and one VM per
// blueprint host. The first VPC's jumpbox serves as the range entry
// point.
type azureStack struct{}

func (s *azureStack) credentialEnv(r *Range) map[string]string {
	return map[string]string{
		"ARM_CLIENT_ID":       r.Secrets.AzureClientID,
		"ARM_CLIENT_SECRET":   r.Secrets.AzureClientSecret,
		"ARM_TENANT_ID":       r.Secrets.AzureTenantID,
		"ARM_SUBSCRIPTION_ID": r.Secrets.AzureSubscriptionID,
	}
}

func (s *azureStack) document(r *Range) (*Document, error) {
	location, ok := v1.AzureRegions[r.Region]
	if !ok {
		return nil, v1.ErrUnsupported("region", r.Region)
	}

	doc := NewDocument(r.StackName(), "azurerm", "hashicorp/azurerm", azurermProviderVersion, map[string]any{
		"features":        map[string]any{},
		"subscription_id": r.Secrets.AzureSubscriptionID,
	})

	doc.AddResource("azurerm_resource_group", "range", map[string]any{
		"name":     fmt.Sprintf("%s-rg", r.DeployedName()),
		"location": location,
	})
	rgName := Ref("azurerm_resource_group", "range", "name")
	rgLocation := Ref("azurerm_resource_group", "range", "location")

	for i, vpc := range r.Blueprint.VPCs {
		if err := s.addVNet(doc, r, i, vpc, rgName, rgLocation); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

func (s *azureStack) addVNet(doc *Document, r *Range, index int, vpc v1.BlueprintVPC, rgName, rgLocation string) error {
	name := SanitizeName(vpc.Name)

	doc.AddResource("azurerm_virtual_network", name, map[string]any{
		"name":                vpc.Name,
		"resource_group_name": rgName,
		"location":            rgLocation,
		"address_space":       []string{vpc.CIDR},
	})
	doc.AddOutput(vpcOutputKey(vpc.Name), Output{
		Value: Ref("azurerm_virtual_network", name, "id"),
	})

	publicCIDR, err := publicSubnetCIDR(vpc.CIDR)
	if err != nil {
		return fmt.Errorf("vpc %s: %w", vpc.Name, err)
	}

	publicSubnet := fmt.Sprintf("%s-public", name)
	doc.AddResource("azurerm_subnet", publicSubnet, map[string]any{
		"name":                 fmt.Sprintf("RangePublicSubnet-%s", name),
		"resource_group_name":  rgName,
		"virtual_network_name": Ref("azurerm_virtual_network", name, "name"),
		"address_prefixes":     []string{publicCIDR},
	})

	// Jumpbox NSG: SSH and ICMP in, everything out.
	jumpboxNSG := fmt.Sprintf("%s-jumpbox", name)
	doc.AddResource("azurerm_network_security_group", jumpboxNSG, map[string]any{
		"name":                fmt.Sprintf("RangeJumpBoxNSG-%s", name),
		"resource_group_name": rgName,
		"location":            rgLocation,
	})
	doc.AddResource("azurerm_network_security_rule", fmt.Sprintf("%s-allow-ssh", name), map[string]any{
		"name":                        "AllowSSH",
		"resource_group_name":         rgName,
		"network_security_group_name": Ref("azurerm_network_security_group", jumpboxNSG, "name"),
		"priority":                    100,
		"direction":                   "Inbound",
		"access":                      "Allow",
		"protocol":                    "Tcp",
		"source_port_range":           "*",
		"destination_port_range":      "22",
		"source_address_prefix":       "*",
		"destination_address_prefix":  "*",
	})
	doc.AddResource("azurerm_network_security_rule", fmt.Sprintf("%s-allow-icmp", name), map[string]any{
		"name":                        "AllowICMPInbound",
		"resource_group_name":         rgName,
		"network_security_group_name": Ref("azurerm_network_security_group", jumpboxNSG, "name"),
		"priority":                    110,
		"direction":                   "Inbound",
		"access":                      "Allow",
		"protocol":                    "Icmp",
		"source_port_range":           "*",
		"destination_port_range":      "*",
		"source_address_prefix":       "*",
		"destination_address_prefix":  "*",
	})
	doc.AddResource("azurerm_subnet_network_security_group_association", publicSubnet, map[string]any{
		"subnet_id":                 Ref("azurerm_subnet", publicSubnet, "id"),
		"network_security_group_id": Ref("azurerm_network_security_group", jumpboxNSG, "id"),
	})

	jumpboxIP := fmt.Sprintf("%s-jumpbox", name)
	doc.AddResource("azurerm_public_ip", jumpboxIP, map[string]any{
		"name":                fmt.Sprintf("JumpBoxPublicIP-%s", name),
		"resource_group_name": rgName,
		"location":            rgLocation,
		"allocation_method":   "Static",
		"sku":                 "Standard",
	})
	jumpboxNIC := fmt.Sprintf("%s-jumpbox", name)
	doc.AddResource("azurerm_network_interface", jumpboxNIC, map[string]any{
		"name":                fmt.Sprintf("JumpBoxNIC-%s", name),
		"resource_group_name": rgName,
		"location":            rgLocation,
		"ip_configuration": map[string]any{
			"name":                          "primary",
			"subnet_id":                     Ref("azurerm_subnet", publicSubnet, "id"),
			"private_ip_address_allocation": "Dynamic",
			"public_ip_address_id":          Ref("azurerm_public_ip", jumpboxIP, "id"),
		},
	})

	jumpboxVM := fmt.Sprintf("%s-jumpbox", name)
	doc.AddResource("azurerm_linux_virtual_machine", jumpboxVM, map[string]any{
		"name":                  fmt.Sprintf("JumpBox-%s", name),
		"resource_group_name":   rgName,
		"location":              rgLocation,
		"network_interface_ids": []string{Ref("azurerm_network_interface", jumpboxNIC, "id")},
		"size":                  "Standard_B1s",
		"computer_name":         "jumpbox",
		"admin_username":        "azureuser",
		"admin_ssh_key": map[string]any{
			"username":   "azureuser",
			"public_key": r.SSHPublicKey,
		},
		"source_image_reference": imageReference(v1.AzureImages[v1.OSUbuntu20]),
		"os_disk": map[string]any{
			"name":                 fmt.Sprintf("JumpBox-OSDisk-%s", name),
			"caching":              "ReadWrite",
			"storage_account_type": "Standard_LRS",
		},
	})

	// Only the first VPC's jumpbox is reported as the range entry point.
	if index == 0 {
		doc.AddOutput(OutputJumpboxInstanceID, Output{
			Value:       Ref("azurerm_linux_virtual_machine", jumpboxVM, "id"),
			Description: "Resource ID of the jumpbox",
		})
		doc.AddOutput(OutputJumpboxPublicIP, Output{
			Value:       Ref("azurerm_public_ip", jumpboxIP, "ip_address"),
			Description: "Public IP address of the jumpbox",
		})
	}

	// Private subnet NSG: traffic from the jumpbox subnet in, everything
	// out.
	privateNSG := fmt.Sprintf("%s-private", name)
	doc.AddResource("azurerm_network_security_group", privateNSG, map[string]any{
		"name":                fmt.Sprintf("RangePrivateNSG-%s", name),
		"resource_group_name": rgName,
		"location":            rgLocation,
	})
	doc.AddResource("azurerm_network_security_rule", fmt.Sprintf("%s-allow-jumpbox", name), map[string]any{
		"name":                        "AllowFromJumpBox",
		"resource_group_name":         rgName,
		"network_security_group_name": Ref("azurerm_network_security_group", privateNSG, "name"),
		"priority":                    100,
		"direction":                   "Inbound",
		"access":                      "Allow",
		"protocol":                    "*",
		"source_port_range":           "*",
		"destination_port_range":      "*",
		"source_address_prefix":       publicCIDR,
		"destination_address_prefix":  "*",
	})
	doc.AddResource("azurerm_network_security_rule", fmt.Sprintf("%s-allow-outbound", name), map[string]any{
		"name":                        "AllowAllOutbound",
		"resource_group_name":         rgName,
		"network_security_group_name": Ref("azurerm_network_security_group", privateNSG, "name"),
		"priority":                    100,
		"direction":                   "Outbound",
		"access":                      "Allow",
		"protocol":                    "*",
		"source_port_range":           "*",
		"destination_port_range":      "*",
		"source_address_prefix":       "*",
		"destination_address_prefix":  "*",
	})

	natIP := fmt.Sprintf("%s-nat", name)
	doc.AddResource("azurerm_public_ip", natIP, map[string]any{
		"name":                fmt.Sprintf("NatGatewayIP-%s", name),
		"resource_group_name": rgName,
		"location":            rgLocation,
		"allocation_method":   "Static",
		"sku":                 "Standard",
	})
	natGW := fmt.Sprintf("%s-nat", name)
	doc.AddResource("azurerm_nat_gateway", natGW, map[string]any{
		"name":                    fmt.Sprintf("NatGateway-%s", name),
		"resource_group_name":     rgName,
		"location":                rgLocation,
		"sku_name":                "Standard",
		"idle_timeout_in_minutes": 10,
	})
	doc.AddResource("azurerm_nat_gateway_public_ip_association", natGW, map[string]any{
		"nat_gateway_id":       Ref("azurerm_nat_gateway", natGW, "id"),
		"public_ip_address_id": Ref("azurerm_public_ip", natIP, "id"),
	})

	for _, subnet := range vpc.Subnets {
		subnetName := fmt.Sprintf("%s-%s", name, SanitizeName(subnet.Name))
		doc.AddResource("azurerm_subnet", subnetName, map[string]any{
			"name":                 fmt.Sprintf("%s-%s", SanitizeName(subnet.Name), name),
			"resource_group_name":  rgName,
			"virtual_network_name": Ref("azurerm_virtual_network", name, "name"),
			"address_prefixes":     []string{subnet.CIDR},
		})
		doc.AddOutput(subnetOutputKey(vpc.Name, subnet.Name), Output{
			Value: Ref("azurerm_subnet", subnetName, "id"),
		})

		doc.AddResource("azurerm_subnet_network_security_group_association", subnetName, map[string]any{
			"subnet_id":                 Ref("azurerm_subnet", subnetName, "id"),
			"network_security_group_id": Ref("azurerm_network_security_group", privateNSG, "id"),
		})
		doc.AddResource("azurerm_subnet_nat_gateway_association", subnetName, map[string]any{
			"subnet_id":      Ref("azurerm_subnet", subnetName, "id"),
			"nat_gateway_id": Ref("azurerm_nat_gateway", natGW, "id"),
		})

		for _, host := range subnet.Hosts {
			hostName := fmt.Sprintf("%s-%s", subnetName, SanitizeName(host.Hostname))
			doc.AddResource("azurerm_network_interface", hostName, map[string]any{
				"name":                fmt.Sprintf("%s-NIC-%s", SanitizeName(host.Hostname), name),
				"resource_group_name": rgName,
				"location":            rgLocation,
				"ip_configuration": map[string]any{
					"name":                          "primary",
					"subnet_id":                     Ref("azurerm_subnet", subnetName, "id"),
					"private_ip_address_allocation": "Dynamic",
				},
			})
			doc.AddResource("azurerm_linux_virtual_machine", hostName, map[string]any{
				"name":                  fmt.Sprintf("%s-%s", SanitizeName(host.Hostname), name),
				"resource_group_name":   rgName,
				"location":              rgLocation,
				"network_interface_ids": []string{Ref("azurerm_network_interface", hostName, "id")},
				"size":                  v1.AzureVMSizes[host.Spec],
				"computer_name":         host.Hostname,
				"admin_username":        "azureuser",
				"admin_ssh_key": map[string]any{
					"username":   "azureuser",
					"public_key": r.SSHPublicKey,
				},
				"source_image_reference": imageReference(v1.AzureImages[host.OS]),
				"os_disk": map[string]any{
					"name":                 fmt.Sprintf("%s-OSDisk-%s", SanitizeName(host.Hostname), name),
					"caching":              "ReadWrite",
					"storage_account_type": "Standard_LRS",
					"disk_size_gb":         host.SizeGB,
				},
			})
			doc.AddOutput(hostOutputKey(vpc.Name, subnet.Name, host.Hostname), Output{
				Value: Ref("azurerm_linux_virtual_machine", hostName, "id"),
			})
			doc.AddOutput(hostIPOutputKey(vpc.Name, subnet.Name, host.Hostname), Output{
				Value: Ref("azurerm_network_interface", hostName, "private_ip_address"),
			})
		}
	}

	return nil
}

// publicSubnetCIDR derives the jumpbox subnet from the VPC CIDR by
// forcing the third octet to 99 and narrowing to /24.
func publicSubnetCIDR(vpcCIDR string) (string, error) {
	ipPart, _, found := strings.Cut(vpcCIDR, "/")
	if !found {
		return "", fmt.Errorf("malformed CIDR %q", vpcCIDR)
	}
	octets := strings.Split(ipPart, ".")
	if len(octets) != 4 {
		return "", fmt.Errorf("malformed CIDR %q", vpcCIDR)
	}
	octets[2] = "99"
	octets[3] = "0"
	return strings.Join(octets, ".") + "/24", nil
}

// imageReference splits a <publisher>:<offer>:<sku>:<version> URN into
// a source_image_reference block.
func imageReference(urn string) map[string]string {
	parts := strings.SplitN(urn, ":", 4)
	ref := map[string]string{"publisher": "", "offer": "", "sku": "", "version": "latest"}
	keys := []string{"publisher", "offer", "sku", "version"}
	for i, part := range parts {
		ref[keys[i]] = part
	}
	return ref
}
