package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
)

type azureController struct {
	cred           *azidentity.ClientSecretCredential
	subscriptionID string
}

func newAzureController(secrets *v1.SecretBundle) (*azureController, error) {
	cred, err := azidentity.NewClientSecretCredential(
		secrets.AzureTenantID, secrets.AzureClientID, secrets.AzureClientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("building azure credential: %w", err)
	}
	return &azureController{cred: cred, subscriptionID: secrets.AzureSubscriptionID}, nil
}

// CheckCredentials requests a management-plane token for the service
// principal.
func (c *azureController) CheckCredentials(ctx context.Context) error {
	_, err := c.cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{"https://management.azure.com/.default"},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return nil
}

func (c *azureController) Power(ctx context.Context, action v1.PowerAction, resourceIDs []string) error {
	client, err := armcompute.NewVirtualMachinesClient(c.subscriptionID, c.cred, nil)
	if err != nil {
		return fmt.Errorf("building compute client: %w", err)
	}
	for _, id := range resourceIDs {
		resourceGroup, vmName, err := parseVMResourceID(id)
		if err != nil {
			return err
		}
		if err := c.power(ctx, client, action, resourceGroup, vmName); err != nil {
			return fmt.Errorf("applying power action %s to %s: %w", action, vmName, err)
		}
	}
	return nil
}

func (c *azureController) power(ctx context.Context, client *armcompute.VirtualMachinesClient, action v1.PowerAction, resourceGroup, vmName string) error {
	switch action {
	case v1.PowerActionOn:
		poller, err := client.BeginStart(ctx, resourceGroup, vmName, nil)
		if err != nil {
			return err
		}
		_, err = poller.PollUntilDone(ctx, nil)
		return err
	case v1.PowerActionOff:
		// Deallocate rather than power off so stopped hosts do not bill
		// for compute.
		poller, err := client.BeginDeallocate(ctx, resourceGroup, vmName, nil)
		if err != nil {
			return err
		}
		_, err = poller.PollUntilDone(ctx, nil)
		return err
	case v1.PowerActionRestart:
		poller, err := client.BeginRestart(ctx, resourceGroup, vmName, nil)
		if err != nil {
			return err
		}
		_, err = poller.PollUntilDone(ctx, nil)
		return err
	}
	return v1.ErrUnsupported("power action", action)
}

// parseVMResourceID extracts the resource group and VM name from a full
// ARM resource ID.
func parseVMResourceID(id string) (resourceGroup, vmName string, err error) {
	parts := strings.Split(strings.Trim(id, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		switch strings.ToLower(parts[i]) {
		case "resourcegroups":
			resourceGroup = parts[i+1]
		case "virtualmachines":
			vmName = parts[i+1]
		}
	}
	if resourceGroup == "" || vmName == "" {
		return "", "", fmt.Errorf("malformed VM resource ID %q", id)
	}
	return resourceGroup, vmName, nil
}
