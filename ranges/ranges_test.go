package ranges

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/gomega"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
)

const testSSHKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIH8URIMqVKb6EAK4O+E+9g8df1uvcOfpvPFl7sQrX7KM range"

func testBlueprint(provider v1.Provider) v1.BlueprintRange {
	return v1.BlueprintRange{
		ID:       1,
		Name:     "cyber lab",
		Provider: provider,
		VPCs: []v1.BlueprintVPC{
			{
				ID:   1,
				Name: "corp",
				CIDR: "10.0.0.0/16",
				Subnets: []v1.BlueprintSubnet{{
					ID:   1,
					Name: "servers",
					CIDR: "10.0.1.0/24",
					Hosts: []v1.BlueprintHost{{
						ID: 1,
						BlueprintHostCreate: v1.BlueprintHostCreate{
							Hostname: "web01",
							OS:       v1.OSUbuntu22,
							Spec:     v1.SpecSmall,
							SizeGB:   8,
						},
					}},
				}},
			},
			{
				ID:   2,
				Name: "dmz",
				CIDR: "10.1.0.0/16",
				Subnets: []v1.BlueprintSubnet{{
					ID:   2,
					Name: "edge",
					CIDR: "10.1.1.0/24",
					Hosts: []v1.BlueprintHost{{
						ID: 2,
						BlueprintHostCreate: v1.BlueprintHostCreate{
							Hostname: "fw01",
							OS:       v1.OSKali,
							Spec:     v1.SpecMedium,
							SizeGB:   32,
						},
					}},
				}},
			},
		},
	}
}

func testRange(t *testing.T, provider v1.Provider) *Range {
	t.Helper()
	secrets := &v1.SecretBundle{
		AWSAccessKey:        "AKIAEXAMPLE",
		AWSSecretKey:        "secret",
		AzureClientID:       "client",
		AzureClientSecret:   "secret",
		AzureTenantID:       "tenant",
		AzureSubscriptionID: "sub",
	}
	r, err := New(uuid.MustParse("6f39e1a2-9c4d-4a1b-8f3e-2d5b7c9e0a11"),
		"demo", "demo range", testBlueprint(provider), v1.RegionUSEast1, secrets, testSSHKey)
	if err != nil {
		t.Fatalf("building range: %v", err)
	}
	return r
}

func synthesize(t *testing.T, r *Range) *Document {
	t.Helper()
	g := NewWithT(t)

	workdir := t.TempDir()
	planDir, err := r.Synthesize(workdir)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(planDir).To(Equal(filepath.Join(workdir, "stacks", r.StackName())))

	raw, err := os.ReadFile(filepath.Join(planDir, PlanFilename))
	g.Expect(err).ToNot(HaveOccurred())

	var doc Document
	g.Expect(json.Unmarshal(raw, &doc)).To(Succeed())
	return &doc
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	g := NewWithT(t)

	blueprint := testBlueprint("gcp")
	_, err := New(uuid.New(), "demo", "", blueprint, v1.RegionUSEast1, nil, testSSHKey)
	g.Expect(err).To(MatchError(ContainSubstring("unsupported provider")))
}

func TestStackNames(t *testing.T) {
	g := NewWithT(t)

	r := testRange(t, v1.ProviderAWS)
	g.Expect(r.StackName()).To(Equal("cyber-lab-6f39e1a2-9c4d-4a1b-8f3e-2d5b7c9e0a11"))
	g.Expect(r.DeployedName()).To(Equal("demo-6f39e1a2-9c4d-4a1b-8f3e-2d5b7c9e0a11"))
	g.Expect(r.StateFilename()).To(Equal("terraform.cyber-lab-6f39e1a2-9c4d-4a1b-8f3e-2d5b7c9e0a11.tfstate"))
}

func TestHasSecrets(t *testing.T) {
	g := NewWithT(t)

	r := testRange(t, v1.ProviderAWS)
	g.Expect(r.HasSecrets()).To(BeTrue())

	r.Secrets = &v1.SecretBundle{AWSAccessKey: "AKIAEXAMPLE"}
	g.Expect(r.HasSecrets()).To(BeFalse())

	r.Secrets = nil
	g.Expect(r.HasSecrets()).To(BeFalse())
}

func TestCredentialEnv(t *testing.T) {
	g := NewWithT(t)

	aws := testRange(t, v1.ProviderAWS)
	g.Expect(aws.CredentialEnv()).To(Equal(map[string]string{
		"AWS_ACCESS_KEY_ID":     "AKIAEXAMPLE",
		"AWS_SECRET_ACCESS_KEY": "secret",
	}))

	azure := testRange(t, v1.ProviderAzure)
	g.Expect(azure.CredentialEnv()).To(HaveKeyWithValue("ARM_SUBSCRIPTION_ID", "sub"))
	g.Expect(azure.CredentialEnv()).To(HaveLen(4))
}

func TestSynthesizeAWS(t *testing.T) {
	g := NewWithT(t)

	r := testRange(t, v1.ProviderAWS)
	doc := synthesize(t, r)

	g.Expect(doc.Terraform.RequiredProviders).To(HaveKey("aws"))
	g.Expect(doc.Terraform.Backend["local"]).To(HaveKeyWithValue("path", r.StateFilename()))
	g.Expect(doc.Provider["aws"]).To(HaveLen(1))
	g.Expect(doc.Provider["aws"][0]).To(HaveKeyWithValue("region", "us-east-1"))

	vpcs := doc.Resource["aws_vpc"]
	g.Expect(vpcs).To(HaveKey("jumpbox"))
	g.Expect(vpcs).To(HaveKey("corp"))
	g.Expect(vpcs).To(HaveKey("dmz"))

	instances := doc.Resource["aws_instance"]
	g.Expect(instances).To(HaveKey("jumpbox"))
	g.Expect(instances).To(HaveKey("corp-servers-web01"))
	g.Expect(instances).To(HaveKey("dmz-edge-fw01"))

	host := instances["corp-servers-web01"].(map[string]any)
	g.Expect(host).To(HaveKeyWithValue("ami", v1.AWSImages[v1.OSUbuntu22]))
	g.Expect(host).To(HaveKeyWithValue("instance_type", "t2.small"))

	g.Expect(doc.Resource["aws_ec2_transit_gateway"]).To(HaveKey("tgw"))
	attachments := doc.Resource["aws_ec2_transit_gateway_vpc_attachment"]
	g.Expect(attachments).To(HaveKey("jumpbox"))
	g.Expect(attachments).To(HaveKey("corp"))
	g.Expect(attachments).To(HaveKey("dmz"))

	routes := doc.Resource["aws_route"]
	g.Expect(routes).To(HaveKey("public-to-corp"))
	g.Expect(routes).To(HaveKey("nat-to-dmz"))
	g.Expect(routes).To(HaveKey("corp-tgw-default"))

	// Shared group ingress stays off the open internet: jumpbox subnet
	// plus peer VPC CIDRs only.
	rules := doc.Resource["aws_security_group_rule"]
	jumpboxIngress := rules["corp-jumpbox-ingress"].(map[string]any)
	g.Expect(jumpboxIngress["cidr_blocks"]).To(ConsistOf("10.255.99.0/24"))
	peerIngress := rules["corp-peer-ingress"].(map[string]any)
	g.Expect(peerIngress["cidr_blocks"]).To(ConsistOf("10.1.0.0/16"))

	g.Expect(doc.Output).To(HaveKey(OutputJumpboxInstanceID))
	g.Expect(doc.Output).To(HaveKey(OutputJumpboxPublicIP))
	g.Expect(doc.Output).To(HaveKey("corp-resource-id"))
	g.Expect(doc.Output).To(HaveKey("corp-servers-resource-id"))
	g.Expect(doc.Output).To(HaveKey("corp-servers-web01-resource-id"))
	g.Expect(doc.Output).To(HaveKey("corp-servers-web01-private-ip"))
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	g := NewWithT(t)

	r := testRange(t, v1.ProviderAWS)

	first, err := r.Synthesize(t.TempDir())
	g.Expect(err).ToNot(HaveOccurred())
	second, err := r.Synthesize(t.TempDir())
	g.Expect(err).ToNot(HaveOccurred())

	a, err := os.ReadFile(filepath.Join(first, PlanFilename))
	g.Expect(err).ToNot(HaveOccurred())
	b, err := os.ReadFile(filepath.Join(second, PlanFilename))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(a).To(Equal(b))
}

func TestSynthesizeAzure(t *testing.T) {
	g := NewWithT(t)

	r := testRange(t, v1.ProviderAzure)
	doc := synthesize(t, r)

	g.Expect(doc.Terraform.RequiredProviders).To(HaveKey("azurerm"))
	g.Expect(doc.Resource["azurerm_resource_group"]).To(HaveKey("range"))
	g.Expect(doc.Resource["azurerm_virtual_network"]).To(HaveKey("corp"))

	subnets := doc.Resource["azurerm_subnet"]
	g.Expect(subnets).To(HaveKey("corp-public"))
	g.Expect(subnets).To(HaveKey("corp-servers"))

	public := subnets["corp-public"].(map[string]any)
	g.Expect(public["address_prefixes"]).To(ConsistOf("10.0.99.0/24"))

	vms := doc.Resource["azurerm_linux_virtual_machine"]
	g.Expect(vms).To(HaveKey("corp-jumpbox"))
	g.Expect(vms).To(HaveKey("corp-servers-web01"))

	vm := vms["corp-servers-web01"].(map[string]any)
	g.Expect(vm).To(HaveKeyWithValue("size", "Standard_B1ms"))
	image := vm["source_image_reference"].(map[string]any)
	g.Expect(image).To(HaveKeyWithValue("offer", "0001-com-ubuntu-server-jammy"))

	g.Expect(doc.Resource["azurerm_nat_gateway"]).To(HaveKey("corp-nat"))

	g.Expect(doc.Output).To(HaveKey(OutputJumpboxInstanceID))
	g.Expect(doc.Output).To(HaveKey("corp-servers-web01-private-ip"))
}

func TestPublicSubnetCIDR(t *testing.T) {
	g := NewWithT(t)

	cidr, err := publicSubnetCIDR("10.0.0.0/16")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(cidr).To(Equal("10.0.99.0/24"))

	_, err = publicSubnetCIDR("not-a-cidr")
	g.Expect(err).To(HaveOccurred())
}

func TestBuildDeployed(t *testing.T) {
	g := NewWithT(t)

	r := testRange(t, v1.ProviderAWS)
	outputs := map[string]string{
		OutputJumpboxInstanceID:          "i-jump",
		OutputJumpboxPublicIP:            "3.3.3.3",
		"corp-resource-id":               "vpc-corp",
		"corp-servers-resource-id":       "subnet-servers",
		"corp-servers-web01-resource-id": "i-web01",
		"corp-servers-web01-private-ip":  "10.0.1.10",
		"dmz-resource-id":                "vpc-dmz",
		"dmz-edge-resource-id":           "subnet-edge",
		"dmz-edge-fw01-resource-id":      "i-fw01",
		"dmz-edge-fw01-private-ip":       "10.1.1.10",
	}
	deployedAt := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	deployed, err := r.BuildDeployed(outputs, deployedAt)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(deployed.ID).To(Equal(r.ID))
	g.Expect(deployed.State).To(Equal(v1.RangeStateOn))
	g.Expect(deployed.JumpboxPublicIP).To(Equal("3.3.3.3"))
	g.Expect(deployed.VPCs).To(HaveLen(2))
	g.Expect(deployed.VPCs[0].ResourceID).To(Equal("vpc-corp"))
	g.Expect(deployed.VPCs[0].Subnets[0].Hosts[0].IPAddress).To(Equal("10.0.1.10"))
	g.Expect(deployed.VPCs[1].Subnets[0].Hosts[0].ResourceID).To(Equal("i-fw01"))

	delete(outputs, "dmz-edge-fw01-private-ip")
	_, err = r.BuildDeployed(outputs, deployedAt)
	g.Expect(err).To(MatchError(ContainSubstring("missing terraform output")))
}
