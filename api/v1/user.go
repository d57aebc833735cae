package v1

import (
	"net/mail"
	"time"
)

// RegisterRequest creates a new user account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Validate checks registration fields.
func (r *RegisterRequest) Validate() error {
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return validationErrorf("invalid email: %s", r.Email)
	}
	if len(r.Password) < 8 {
		return validationErrorf("password must be at least 8 characters")
	}
	if r.Name == "" {
		return validationErrorf("name must not be empty")
	}
	return nil
}

// LoginRequest authenticates an existing user.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordUpdateRequest changes the caller's password.
type PasswordUpdateRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UserID identifies a user.
type UserID struct {
	ID int64 `json:"id"`
}

// UserInfo is the caller's profile.
type UserInfo struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Admin bool   `json:"admin"`
}

// AWSSecretsRequest uploads AWS credentials.
type AWSSecretsRequest struct {
	AccessKey string `json:"aws_access_key"`
	SecretKey string `json:"aws_secret_key"`
}

// Validate checks that both halves are present.
func (r *AWSSecretsRequest) Validate() error {
	if r.AccessKey == "" || r.SecretKey == "" {
		return validationErrorf("both aws_access_key and aws_secret_key are required")
	}
	return nil
}

// AzureSecretsRequest uploads Azure credentials.
type AzureSecretsRequest struct {
	ClientID       string `json:"azure_client_id"`
	ClientSecret   string `json:"azure_client_secret"`
	TenantID       string `json:"azure_tenant_id"`
	SubscriptionID string `json:"azure_subscription_id"`
}

// Validate checks that the full service principal is present.
func (r *AzureSecretsRequest) Validate() error {
	if r.ClientID == "" || r.ClientSecret == "" || r.TenantID == "" || r.SubscriptionID == "" {
		return validationErrorf("azure_client_id, azure_client_secret, azure_tenant_id and azure_subscription_id are required")
	}
	return nil
}

// SecretStatus reports whether credentials exist for one provider.
type SecretStatus struct {
	HasCredentials bool       `json:"has_credentials"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

// SecretStatusResponse reports credential status per provider.
type SecretStatusResponse struct {
	AWS   SecretStatus `json:"aws"`
	Azure SecretStatus `json:"azure"`
}

// SecretBundle is the decrypted credential set for one user. Optional
// per provider; the worker checks HasProvider before using it.
type SecretBundle struct {
	AWSAccessKey string
	AWSSecretKey string

	AzureClientID       string
	AzureClientSecret   string
	AzureTenantID       string
	AzureSubscriptionID string
}

// HasProvider reports whether the bundle carries complete credentials
// for the given provider.
func (b *SecretBundle) HasProvider(p Provider) bool {
	switch p {
	case ProviderAWS:
		return b.AWSAccessKey != "" && b.AWSSecretKey != ""
	case ProviderAzure:
		return b.AzureClientID != "" && b.AzureClientSecret != "" &&
			b.AzureTenantID != "" && b.AzureSubscriptionID != ""
	}
	return false
}
