// Package ranges materializes blueprint graphs into provider-specific
// Terraform plans and maps provisioner outputs back onto deployed
// resources.
package ranges

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
)

// PlanFilename is the synthesized Terraform configuration file name,
// kept CDKTF-compatible.
const PlanFilename = "cdk.tf.json"

// stack is the provider-specific half of a Range.
type stack interface {
	credentialEnv(r *Range) map[string]string
	document(r *Range) (*Document, error)
}

// Range is one deployable instance of a blueprint. It is a pure
// function of its inputs: synthesizing the same Range twice produces
// byte-identical plans.
type Range struct {
	ID          uuid.UUID
	Name        string
	Description string
	Blueprint   v1.BlueprintRange
	Region      v1.Region
	Secrets     *v1.SecretBundle

	// SSHPublicKey is baked into every instance of the range.
	SSHPublicKey string

	stack stack
}

// New selects the provider variant from the blueprint and builds the
// Range.
func New(id uuid.UUID, name, description string, blueprint v1.BlueprintRange, region v1.Region, secrets *v1.SecretBundle, sshPublicKey string) (*Range, error) {
	r := &Range{
		ID:           id,
		Name:         name,
		Description:  description,
		Blueprint:    blueprint,
		Region:       region,
		Secrets:      secrets,
		SSHPublicKey: sshPublicKey,
	}
	switch blueprint.Provider {
	case v1.ProviderAWS:
		r.stack = &awsStack{}
	case v1.ProviderAzure:
		r.stack = &azureStack{}
	default:
		return nil, v1.ErrUnsupported("provider", blueprint.Provider)
	}
	return r, nil
}

// StackName names the provisioner plan directory for this range:
// <blueprint name>-<deployed range id>.
func (r *Range) StackName() string {
	return fmt.Sprintf("%s-%s", SanitizeName(r.Blueprint.Name), r.ID)
}

// DeployedName names the deployed instance: <deploy name>-<id>.
func (r *Range) DeployedName() string {
	return fmt.Sprintf("%s-%s", SanitizeName(r.Name), r.ID)
}

// StateFilename is the Terraform state file within the plan directory.
func (r *Range) StateFilename() string {
	return fmt.Sprintf("terraform.%s.tfstate", r.StackName())
}

// HasSecrets reports whether the bundle carries credentials for the
// blueprint's provider.
func (r *Range) HasSecrets() bool {
	return r.Secrets != nil && r.Secrets.HasProvider(r.Blueprint.Provider)
}

// CredentialEnv returns the provisioner environment variables carrying
// the provider credentials.
func (r *Range) CredentialEnv() map[string]string {
	return r.stack.credentialEnv(r)
}

// PlanDir is the plan directory under the given working directory root.
func (r *Range) PlanDir(workdir string) string {
	return filepath.Join(workdir, "stacks", r.StackName())
}

// Synthesize writes the Terraform plan to
// <workdir>/stacks/<stack name>/cdk.tf.json and returns the plan
// directory.
func (r *Range) Synthesize(workdir string) (string, error) {
	doc, err := r.stack.document(r)
	if err != nil {
		return "", fmt.Errorf("building plan for stack %s: %w", r.StackName(), err)
	}
	raw, err := doc.Marshal()
	if err != nil {
		return "", err
	}

	planDir := r.PlanDir(workdir)
	if err := os.MkdirAll(planDir, 0o755); err != nil {
		return "", fmt.Errorf("creating plan dir %s: %w", planDir, err)
	}
	if err := os.WriteFile(filepath.Join(planDir, PlanFilename), raw, 0o644); err != nil {
		return "", fmt.Errorf("writing plan: %w", err)
	}
	return planDir, nil
}

// BuildDeployed maps the provisioner's outputs onto a DeployedRange
// row. The outputs map holds unquoted output values keyed by output
// name.
func (r *Range) BuildDeployed(outputs map[string]string, deployedAt time.Time) (*v1.DeployedRange, error) {
	deployed := &v1.DeployedRange{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Provider:    r.Blueprint.Provider,
		Region:      r.Region,
		VNC:         r.Blueprint.VNC,
		VPN:         r.Blueprint.VPN,
		State:       v1.RangeStateOn,
		DeployedAt:  deployedAt,
	}

	var err error
	if deployed.JumpboxResourceID, err = requireOutput(outputs, OutputJumpboxInstanceID); err != nil {
		return nil, err
	}
	if deployed.JumpboxPublicIP, err = requireOutput(outputs, OutputJumpboxPublicIP); err != nil {
		return nil, err
	}

	for _, vpc := range r.Blueprint.VPCs {
		dv := v1.DeployedVPC{ID: vpc.ID, Name: vpc.Name, CIDR: vpc.CIDR}
		if dv.ResourceID, err = requireOutput(outputs, vpcOutputKey(vpc.Name)); err != nil {
			return nil, err
		}
		for _, subnet := range vpc.Subnets {
			ds := v1.DeployedSubnet{ID: subnet.ID, Name: subnet.Name, CIDR: subnet.CIDR}
			if ds.ResourceID, err = requireOutput(outputs, subnetOutputKey(vpc.Name, subnet.Name)); err != nil {
				return nil, err
			}
			for _, host := range subnet.Hosts {
				dh := v1.DeployedHost{
					ID:       host.ID,
					Hostname: host.Hostname,
					OS:       host.OS,
					Spec:     host.Spec,
					SizeGB:   host.SizeGB,
					Tags:     host.Tags,
				}
				if dh.ResourceID, err = requireOutput(outputs, hostOutputKey(vpc.Name, subnet.Name, host.Hostname)); err != nil {
					return nil, err
				}
				if dh.IPAddress, err = requireOutput(outputs, hostIPOutputKey(vpc.Name, subnet.Name, host.Hostname)); err != nil {
					return nil, err
				}
				ds.Hosts = append(ds.Hosts, dh)
			}
			dv.Subnets = append(dv.Subnets, ds)
		}
		deployed.VPCs = append(deployed.VPCs, dv)
	}

	return deployed, nil
}

// Output names shared by all provider variants.
const (
	OutputJumpboxInstanceID = "jumpbox-instance-id"
	OutputJumpboxPublicIP   = "jumpbox-public-ip"
)

func vpcOutputKey(vpc string) string {
	return fmt.Sprintf("%s-resource-id", SanitizeName(vpc))
}

func subnetOutputKey(vpc, subnet string) string {
	return fmt.Sprintf("%s-%s-resource-id", SanitizeName(vpc), SanitizeName(subnet))
}

func hostOutputKey(vpc, subnet, host string) string {
	return fmt.Sprintf("%s-%s-%s-resource-id", SanitizeName(vpc), SanitizeName(subnet), SanitizeName(host))
}

func hostIPOutputKey(vpc, subnet, host string) string {
	return fmt.Sprintf("%s-%s-%s-private-ip", SanitizeName(vpc), SanitizeName(subnet), SanitizeName(host))
}

func requireOutput(outputs map[string]string, key string) (string, error) {
	value, ok := outputs[key]
	if !ok {
		return "", fmt.Errorf("missing terraform output %q", key)
	}
	return value, nil
}
