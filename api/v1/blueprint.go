package v1

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"
)

// ValidationError marks a domain validation failure. The HTTP layer
// maps it to a 422 response.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string { return e.Detail }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Detail: fmt.Sprintf(format, args...)}
}

// ReservedCIDR is the block reserved for range access infrastructure
// (jumpbox VPC, NAT, transit gateway attachments). Blueprint VPCs must
// not overlap it.
const ReservedCIDR = "10.255.0.0/16"

var reservedNet = netip.MustParsePrefix(ReservedCIDR)

// RFC-1035 label: starts with a letter, ends with a letter or digit,
// interior may contain hyphens. 63 characters max.
var hostnamePattern = regexp.MustCompile(`^[a-zA-Z]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

// ValidHostname reports whether name is an RFC-1035 compliant label.
func ValidHostname(name string) bool {
	return len(name) >= 1 && len(name) <= 63 && hostnamePattern.MatchString(name)
}

// BlueprintHostCreate is the host sub-graph as submitted by a user.
type BlueprintHostCreate struct {
	Hostname string   `json:"hostname"`
	OS       OS       `json:"os"`
	Spec     Spec     `json:"spec"`
	SizeGB   int      `json:"size"`
	Tags     []string `json:"tags,omitempty"`
}

// Validate checks the host against the domain rules.
func (h *BlueprintHostCreate) Validate() error {
	if !ValidHostname(h.Hostname) {
		return validationErrorf("invalid hostname: %s", h.Hostname)
	}
	if !h.OS.Valid() {
		return validationErrorf("unsupported OS: %s", h.OS)
	}
	if !h.Spec.Valid() {
		return validationErrorf("unsupported spec: %s", h.Spec)
	}
	if h.SizeGB <= 0 {
		return validationErrorf("disk size must be positive, got %d", h.SizeGB)
	}
	if minSize := MinDiskGB[h.OS]; h.SizeGB < minSize {
		return validationErrorf("disk size %dGB too small for OS: %s. Minimum disk size: %dGB", h.SizeGB, h.OS, minSize)
	}
	for _, tag := range h.Tags {
		if strings.TrimSpace(tag) == "" {
			return validationErrorf("tags must not be empty")
		}
	}
	return nil
}

// BlueprintHost is a persisted blueprint host.
type BlueprintHost struct {
	ID int64 `json:"id"`
	BlueprintHostCreate
}

// BlueprintSubnetCreate is the subnet sub-graph as submitted by a user.
type BlueprintSubnetCreate struct {
	Name  string                `json:"name"`
	CIDR  string                `json:"cidr"`
	Hosts []BlueprintHostCreate `json:"hosts"`
}

// Validate checks the subnet and its hosts.
func (s *BlueprintSubnetCreate) Validate() error {
	if s.Name == "" {
		return validationErrorf("subnet name must not be empty")
	}
	if _, err := ParseCIDR(s.CIDR); err != nil {
		return validationErrorf("subnet %s: %v", s.Name, err)
	}
	seen := map[string]bool{}
	for i := range s.Hosts {
		h := &s.Hosts[i]
		if err := h.Validate(); err != nil {
			return err
		}
		if seen[h.Hostname] {
			return validationErrorf("duplicate hostname %q in subnet %s", h.Hostname, s.Name)
		}
		seen[h.Hostname] = true
	}
	return nil
}

// BlueprintSubnet is a persisted blueprint subnet.
type BlueprintSubnet struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	CIDR  string          `json:"cidr"`
	Hosts []BlueprintHost `json:"hosts"`
}

// BlueprintVPCCreate is the VPC sub-graph as submitted by a user.
type BlueprintVPCCreate struct {
	Name    string                  `json:"name"`
	CIDR    string                  `json:"cidr"`
	Subnets []BlueprintSubnetCreate `json:"subnets"`
}

// Validate checks the VPC, its subnets and their containment.
func (v *BlueprintVPCCreate) Validate() error {
	if v.Name == "" {
		return validationErrorf("vpc name must not be empty")
	}
	vpcNet, err := ParseCIDR(v.CIDR)
	if err != nil {
		return validationErrorf("vpc %s: %v", v.Name, err)
	}
	if vpcNet.Overlaps(reservedNet) {
		return validationErrorf("vpc %s CIDR %s overlaps the reserved block %s", v.Name, v.CIDR, ReservedCIDR)
	}
	seen := map[string]bool{}
	for i := range v.Subnets {
		s := &v.Subnets[i]
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.Name] {
			return validationErrorf("duplicate subnet name %q in vpc %s", s.Name, v.Name)
		}
		seen[s.Name] = true

		subnetNet, _ := ParseCIDR(s.CIDR)
		if !SubnetOf(subnetNet, vpcNet) {
			return validationErrorf("subnet %s CIDR %s is not contained in vpc %s CIDR %s", s.Name, s.CIDR, v.Name, v.CIDR)
		}
	}
	return nil
}

// BlueprintVPC is a persisted blueprint VPC.
type BlueprintVPC struct {
	ID      int64             `json:"id"`
	Name    string            `json:"name"`
	CIDR    string            `json:"cidr"`
	Subnets []BlueprintSubnet `json:"subnets"`
}

// BlueprintRangeCreate is the full range graph as submitted by a user.
type BlueprintRangeCreate struct {
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Provider    Provider             `json:"provider"`
	Region      Region               `json:"region"`
	VNC         bool                 `json:"vnc"`
	VPN         bool                 `json:"vpn"`
	VPCs        []BlueprintVPCCreate `json:"vpcs"`
}

// Validate checks the whole blueprint graph.
func (r *BlueprintRangeCreate) Validate() error {
	if r.Name == "" {
		return validationErrorf("range name must not be empty")
	}
	if !r.Provider.Valid() {
		return validationErrorf("unsupported provider: %s", r.Provider)
	}
	if !r.Region.Valid() {
		return validationErrorf("unsupported region: %s", r.Region)
	}
	seen := map[string]bool{}
	for i := range r.VPCs {
		v := &r.VPCs[i]
		if err := v.Validate(); err != nil {
			return err
		}
		if seen[v.Name] {
			return validationErrorf("duplicate vpc name %q in range %s", v.Name, r.Name)
		}
		seen[v.Name] = true
	}
	return nil
}

// BlueprintRange is a persisted blueprint range graph.
type BlueprintRange struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Provider    Provider       `json:"provider"`
	Region      Region         `json:"region"`
	VNC         bool           `json:"vnc"`
	VPN         bool           `json:"vpn"`
	VPCs        []BlueprintVPC `json:"vpcs"`
}

// BlueprintRangeHeader is the list form of a blueprint range.
type BlueprintRangeHeader struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Provider Provider `json:"provider"`
	Region   Region   `json:"region"`
	VNC      bool     `json:"vnc"`
	VPN      bool     `json:"vpn"`
}

// BlueprintVPCHeader is the list form of a blueprint VPC.
type BlueprintVPCHeader struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	CIDR string `json:"cidr"`
}

// BlueprintSubnetHeader is the list form of a blueprint subnet.
type BlueprintSubnetHeader struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	CIDR string `json:"cidr"`
}

// BlueprintHostHeader is the list form of a blueprint host.
type BlueprintHostHeader struct {
	ID       int64  `json:"id"`
	Hostname string `json:"hostname"`
	OS       OS     `json:"os"`
	Spec     Spec   `json:"spec"`
}

// ParseCIDR parses an IPv4 network in CIDR notation.
func ParseCIDR(cidr string) (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}
	if !prefix.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("CIDR %q is not IPv4", cidr)
	}
	return prefix.Masked(), nil
}

// SubnetOf reports whether sub is fully contained in parent.
func SubnetOf(sub, parent netip.Prefix) bool {
	return parent.Bits() <= sub.Bits() && parent.Contains(sub.Addr())
}
