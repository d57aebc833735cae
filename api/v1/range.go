package v1

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeployRequest asks for a blueprint to be deployed.
type DeployRequest struct {
	BlueprintID int64  `json:"blueprint_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Region      Region `json:"region"`
}

// Validate checks the deploy request fields that do not need the store.
func (r *DeployRequest) Validate() error {
	if r.Name == "" {
		return validationErrorf("range name must not be empty")
	}
	if !r.Region.Valid() {
		return validationErrorf("unsupported region: %s", r.Region)
	}
	return nil
}

// DeployedHost is a provisioned host within a deployed range.
type DeployedHost struct {
	ID         int64    `json:"id"`
	Hostname   string   `json:"hostname"`
	OS         OS       `json:"os"`
	Spec       Spec     `json:"spec"`
	SizeGB     int      `json:"size"`
	Tags       []string `json:"tags,omitempty"`
	ResourceID string   `json:"resource_id"`
	IPAddress  string   `json:"ip_address"`
}

// DeployedSubnet is a provisioned subnet within a deployed range.
type DeployedSubnet struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	CIDR       string         `json:"cidr"`
	ResourceID string         `json:"resource_id"`
	Hosts      []DeployedHost `json:"hosts"`
}

// DeployedVPC is a provisioned VPC within a deployed range.
type DeployedVPC struct {
	ID         int64            `json:"id"`
	Name       string           `json:"name"`
	CIDR       string           `json:"cidr"`
	ResourceID string           `json:"resource_id"`
	Subnets    []DeployedSubnet `json:"subnets"`
}

// DeployedRange is a blueprint deployed into a cloud account. Its ID is
// derived deterministically from the queue job that deployed it, so a
// redelivered job converges on the same row.
type DeployedRange struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Provider    Provider   `json:"provider"`
	Region      Region     `json:"region"`
	VNC         bool       `json:"vnc"`
	VPN         bool       `json:"vpn"`
	State       RangeState `json:"state"`
	DeployedAt  time.Time  `json:"deployed_at"`

	JumpboxResourceID string `json:"jumpbox_resource_id"`
	JumpboxPublicIP   string `json:"jumpbox_public_ip"`

	VPCs []DeployedVPC `json:"vpcs"`

	// StateBlob is the opaque provisioner state. It is the only handle
	// to the cloud resources; it is never omitted from persistence.
	StateBlob json.RawMessage `json:"state_blob,omitempty"`
}

// DeployedRangeHeader is the list form of a deployed range.
type DeployedRangeHeader struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Provider        Provider   `json:"provider"`
	Region          Region     `json:"region"`
	State           RangeState `json:"state"`
	DeployedAt      time.Time  `json:"deployed_at"`
	JumpboxPublicIP string     `json:"jumpbox_public_ip"`
}

// DeployedRangeKey carries the SSH private key for a range's jumpbox.
type DeployedRangeKey struct {
	RangeID    uuid.UUID `json:"range_id"`
	PrivateKey string    `json:"range_private_key"`
}

// PowerRequest asks for a runtime power action on hosts of a deployed
// range. An empty host list targets every host in the range.
type PowerRequest struct {
	Hosts  []int64     `json:"hosts,omitempty"`
	Action PowerAction `json:"action"`
}

// Validate checks the power request.
func (r *PowerRequest) Validate() error {
	if !r.Action.Valid() {
		return validationErrorf("unsupported power action: %s", r.Action)
	}
	return nil
}
