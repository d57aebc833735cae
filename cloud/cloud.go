// Package cloud talks to provider APIs directly for the operations
// that do not go through Terraform: credential verification on upload
// and runtime power control of deployed hosts.
package cloud

import (
	"context"
	"errors"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
)

// ErrInvalidCredentials is returned when uploaded credentials fail
// provider-side verification.
var ErrInvalidCredentials = errors.New("credential verification failed")

// Controller performs provider API operations with a user's decrypted
// credentials.
type Controller interface {
	// CheckCredentials verifies the credentials against the provider.
	CheckCredentials(ctx context.Context) error
	// Power applies a power action to the given instance resource IDs.
	Power(ctx context.Context, action v1.PowerAction, resourceIDs []string) error
}

// NewController builds the provider-specific controller for the given
// region and credential bundle.
func NewController(provider v1.Provider, region v1.Region, secrets *v1.SecretBundle) (Controller, error) {
	switch provider {
	case v1.ProviderAWS:
		return newAWSController(region, secrets)
	case v1.ProviderAzure:
		return newAzureController(secrets)
	}
	return nil, v1.ErrUnsupported("provider", provider)
}
