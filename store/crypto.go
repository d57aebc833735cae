package store

import (
	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
	"github.com/OpenLabsHQ/openlabs-api/support/vault"
)

// Credential field names as stored in the secrets row.
const (
	fieldAWSAccessKey        = "aws_access_key"
	fieldAWSSecretKey        = "aws_secret_key"
	fieldAzureClientID       = "azure_client_id"
	fieldAzureClientSecret   = "azure_client_secret"
	fieldAzureTenantID       = "azure_tenant_id"
	fieldAzureSubscriptionID = "azure_subscription_id"
)

// DecryptBundle unwraps the private key with the caller's master key
// and decrypts every stored credential field. Fields without stored
// credentials come back empty.
func (s *EncryptedSecrets) DecryptBundle(masterKey []byte) (*v1.SecretBundle, error) {
	privateKey, err := vault.DecryptPrivateKey(s.EncryptedPrivateKey, masterKey)
	if err != nil {
		return nil, err
	}
	plain, err := vault.DecryptWithPrivateKey(map[string]string{
		fieldAWSAccessKey:        s.AWSAccessKey,
		fieldAWSSecretKey:        s.AWSSecretKey,
		fieldAzureClientID:       s.AzureClientID,
		fieldAzureClientSecret:   s.AzureClientSecret,
		fieldAzureTenantID:       s.AzureTenantID,
		fieldAzureSubscriptionID: s.AzureSubscriptionID,
	}, privateKey)
	if err != nil {
		return nil, err
	}
	return &v1.SecretBundle{
		AWSAccessKey:        plain[fieldAWSAccessKey],
		AWSSecretKey:        plain[fieldAWSSecretKey],
		AzureClientID:       plain[fieldAzureClientID],
		AzureClientSecret:   plain[fieldAzureClientSecret],
		AzureTenantID:       plain[fieldAzureTenantID],
		AzureSubscriptionID: plain[fieldAzureSubscriptionID],
	}, nil
}

// EncryptAWS encrypts an AWS credential pair with the row's public key
// for storage.
func (s *EncryptedSecrets) EncryptAWS(accessKey, secretKey string) (encAccess, encSecret string, err error) {
	enc, err := vault.EncryptWithPublicKey(map[string]string{
		fieldAWSAccessKey: accessKey,
		fieldAWSSecretKey: secretKey,
	}, s.PublicKey)
	if err != nil {
		return "", "", err
	}
	return enc[fieldAWSAccessKey], enc[fieldAWSSecretKey], nil
}

// EncryptAzure encrypts an Azure service principal with the row's
// public key for storage.
func (s *EncryptedSecrets) EncryptAzure(clientID, clientSecret, tenantID, subscriptionID string) (encClientID, encClientSecret, encTenantID, encSubscriptionID string, err error) {
	enc, err := vault.EncryptWithPublicKey(map[string]string{
		fieldAzureClientID:       clientID,
		fieldAzureClientSecret:   clientSecret,
		fieldAzureTenantID:       tenantID,
		fieldAzureSubscriptionID: subscriptionID,
	}, s.PublicKey)
	if err != nil {
		return "", "", "", "", err
	}
	return enc[fieldAzureClientID], enc[fieldAzureClientSecret],
		enc[fieldAzureTenantID], enc[fieldAzureSubscriptionID], nil
}
