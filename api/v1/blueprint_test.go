package v1

import (
	"testing"

	. "github.com/onsi/gomega"
)

func validRange() BlueprintRangeCreate {
	return BlueprintRangeCreate{
		Name:     "test-range",
		Provider: ProviderAWS,
		Region:   RegionUSEast1,
		VPCs: []BlueprintVPCCreate{{
			Name: "vpc-1",
			CIDR: "10.0.0.0/16",
			Subnets: []BlueprintSubnetCreate{{
				Name: "subnet-1",
				CIDR: "10.0.1.0/24",
				Hosts: []BlueprintHostCreate{{
					Hostname: "host-1",
					OS:       OSDebian11,
					Spec:     SpecTiny,
					SizeGB:   8,
				}},
			}},
		}},
	}
}

func TestBlueprintRangeValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BlueprintRangeCreate)
		wantErr string
	}{
		{
			name:   "When the graph is well formed it should pass",
			mutate: func(r *BlueprintRangeCreate) {},
		},
		{
			name:    "When the range name is empty it should fail",
			mutate:  func(r *BlueprintRangeCreate) { r.Name = "" },
			wantErr: "range name",
		},
		{
			name:    "When the provider is unknown it should fail",
			mutate:  func(r *BlueprintRangeCreate) { r.Provider = "gcp" },
			wantErr: "unsupported provider",
		},
		{
			name:    "When the region is unknown it should fail",
			mutate:  func(r *BlueprintRangeCreate) { r.Region = "moon_base_1" },
			wantErr: "unsupported region",
		},
		{
			name: "When two VPCs share a name it should fail",
			mutate: func(r *BlueprintRangeCreate) {
				dup := r.VPCs[0]
				dup.CIDR = "10.1.0.0/16"
				dup.Subnets = nil
				r.VPCs = append(r.VPCs, dup)
			},
			wantErr: "duplicate vpc name",
		},
		{
			name: "When a VPC CIDR overlaps the reserved block it should fail",
			mutate: func(r *BlueprintRangeCreate) {
				r.VPCs[0].CIDR = "10.255.4.0/24"
				r.VPCs[0].Subnets = nil
			},
			wantErr: "overlaps the reserved block 10.255.0.0/16",
		},
		{
			name: "When a VPC CIDR contains the reserved block it should fail",
			mutate: func(r *BlueprintRangeCreate) {
				r.VPCs[0].CIDR = "10.0.0.0/8"
				r.VPCs[0].Subnets = nil
			},
			wantErr: "overlaps the reserved block",
		},
		{
			name: "When a subnet is outside its VPC CIDR it should fail",
			mutate: func(r *BlueprintRangeCreate) {
				r.VPCs[0].Subnets[0].CIDR = "192.168.1.0/24"
			},
			wantErr: "not contained",
		},
		{
			name: "When two subnets share a name it should fail",
			mutate: func(r *BlueprintRangeCreate) {
				dup := r.VPCs[0].Subnets[0]
				dup.CIDR = "10.0.2.0/24"
				dup.Hosts = nil
				r.VPCs[0].Subnets = append(r.VPCs[0].Subnets, dup)
			},
			wantErr: "duplicate subnet name",
		},
		{
			name: "When two hosts in a subnet share a hostname it should fail",
			mutate: func(r *BlueprintRangeCreate) {
				dup := r.VPCs[0].Subnets[0].Hosts[0]
				r.VPCs[0].Subnets[0].Hosts = append(r.VPCs[0].Subnets[0].Hosts, dup)
			},
			wantErr: "duplicate hostname",
		},
		{
			name: "When a hostname violates RFC-1035 it should fail",
			mutate: func(r *BlueprintRangeCreate) {
				r.VPCs[0].Subnets[0].Hosts[0].Hostname = "-bad-host"
			},
			wantErr: "invalid hostname",
		},
		{
			name: "When the disk is under the OS minimum it should fail",
			mutate: func(r *BlueprintRangeCreate) {
				r.VPCs[0].Subnets[0].Hosts[0].OS = OSKali
				r.VPCs[0].Subnets[0].Hosts[0].SizeGB = 16
			},
			wantErr: "too small for OS",
		},
		{
			name: "When a tag is blank it should fail",
			mutate: func(r *BlueprintRangeCreate) {
				r.VPCs[0].Subnets[0].Hosts[0].Tags = []string{"web", "  "}
			},
			wantErr: "tags must not be empty",
		},
		{
			name: "When the subnet CIDR is malformed it should fail",
			mutate: func(r *BlueprintRangeCreate) {
				r.VPCs[0].Subnets[0].CIDR = "10.0.1.0/33"
			},
			wantErr: "invalid CIDR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			r := validRange()
			tt.mutate(&r)

			err := r.Validate()
			if tt.wantErr == "" {
				g.Expect(err).ToNot(HaveOccurred())
				return
			}
			g.Expect(err).To(HaveOccurred())
			g.Expect(err.Error()).To(ContainSubstring(tt.wantErr))

			var verr *ValidationError
			g.Expect(err).To(BeAssignableToTypeOf(verr))
		})
	}
}

func TestValidHostname(t *testing.T) {
	g := NewWithT(t)

	for _, name := range []string{"a", "host-1", "web01", "A-b-C"} {
		g.Expect(ValidHostname(name)).To(BeTrue(), name)
	}
	for _, name := range []string{"", "-host", "host-", "ho st", "host_1", "1host",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"} {
		g.Expect(ValidHostname(name)).To(BeFalse(), name)
	}
}

func TestSubnetOf(t *testing.T) {
	g := NewWithT(t)

	vpc, err := ParseCIDR("10.0.0.0/16")
	g.Expect(err).ToNot(HaveOccurred())

	inside, _ := ParseCIDR("10.0.1.0/24")
	outside, _ := ParseCIDR("10.1.0.0/24")
	wider, _ := ParseCIDR("10.0.0.0/8")

	g.Expect(SubnetOf(inside, vpc)).To(BeTrue())
	g.Expect(SubnetOf(outside, vpc)).To(BeFalse())
	g.Expect(SubnetOf(wider, vpc)).To(BeFalse())
	g.Expect(SubnetOf(vpc, vpc)).To(BeTrue())
}
