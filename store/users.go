package store

import (
	"context"
	"fmt"
	"time"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
)

// User is a persisted account row.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Admin        bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Info converts the row into its API form.
func (u *User) Info() v1.UserInfo {
	return v1.UserInfo{ID: u.ID, Name: u.Name, Email: u.Email, Admin: u.Admin}
}

// UserKeys is the per-user key material created at registration. The
// private key is wrapped under the user's master key; credential fields
// hold base64 RSA-OAEP ciphertext.
type UserKeys struct {
	PublicKey           string
	EncryptedPrivateKey string
	KeySalt             string
}

// EncryptedSecrets is the secrets row as stored: ciphertext only.
type EncryptedSecrets struct {
	UserKeys

	AWSAccessKey string
	AWSSecretKey string
	AWSCreatedAt *time.Time

	AzureClientID       string
	AzureClientSecret   string
	AzureTenantID       string
	AzureSubscriptionID string
	AzureCreatedAt      *time.Time
}

// Status summarizes which providers have stored credentials.
func (s *EncryptedSecrets) Status() v1.SecretStatusResponse {
	return v1.SecretStatusResponse{
		AWS: v1.SecretStatus{
			HasCredentials: s.AWSAccessKey != "" && s.AWSSecretKey != "",
			CreatedAt:      s.AWSCreatedAt,
		},
		Azure: v1.SecretStatus{
			HasCredentials: s.AzureClientID != "" && s.AzureClientSecret != "" &&
				s.AzureTenantID != "" && s.AzureSubscriptionID != "",
			CreatedAt: s.AzureCreatedAt,
		},
	}
}

// CreateUser inserts the account and its secrets row in one
// transaction. Returns ErrAlreadyExists when the email is taken.
func (s *Store) CreateUser(ctx context.Context, user *User, keys UserKeys) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, is_admin)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		user.Name, user.Email, user.PasswordHash, user.Admin).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("user %s: %w", user.Email, ErrAlreadyExists)
		}
		return 0, fmt.Errorf("inserting user: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO secrets (user_id, public_key, encrypted_private_key, key_salt)
		 VALUES ($1, $2, $3, $4)`,
		id, keys.PublicKey, keys.EncryptedPrivateKey, keys.KeySalt)
	if err != nil {
		return 0, fmt.Errorf("inserting secrets row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing user: %w", err)
	}
	return id, nil
}

// GetUserByEmail looks up an account by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(ctx,
		`SELECT id, name, email, password_hash, is_admin, created_at, last_login
		 FROM users WHERE email = $1`, email)
}

// GetUserByID looks up an account by ID.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return s.scanUser(ctx,
		`SELECT id, name, email, password_hash, is_admin, created_at, last_login
		 FROM users WHERE id = $1`, id)
}

func (s *Store) scanUser(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Admin, &u.CreatedAt, &u.LastLogin)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// TouchLastLogin records a successful login.
func (s *Store) TouchLastLogin(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET last_login = now() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return nil
}

// UpdatePassword replaces the password hash together with the rewrapped
// key material derived from the new password.
func (s *Store) UpdatePassword(ctx context.Context, userID int64, passwordHash string, keys UserKeys) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	_, err = tx.Exec(ctx,
		`UPDATE secrets SET encrypted_private_key = $2, key_salt = $3 WHERE user_id = $1`,
		userID, keys.EncryptedPrivateKey, keys.KeySalt)
	if err != nil {
		return fmt.Errorf("rewrapping private key: %w", err)
	}
	return tx.Commit(ctx)
}

// GetSecrets loads the full secrets row for a user.
func (s *Store) GetSecrets(ctx context.Context, userID int64) (*EncryptedSecrets, error) {
	var (
		sec    EncryptedSecrets
		optCol = func(dst *string) any { return &nullString{dst} }
	)
	err := s.pool.QueryRow(ctx,
		`SELECT public_key, encrypted_private_key, key_salt,
		        aws_access_key, aws_secret_key, aws_created_at,
		        azure_client_id, azure_client_secret, azure_tenant_id, azure_subscription_id, azure_created_at
		 FROM secrets WHERE user_id = $1`, userID).Scan(
		&sec.PublicKey, &sec.EncryptedPrivateKey, &sec.KeySalt,
		optCol(&sec.AWSAccessKey), optCol(&sec.AWSSecretKey), &sec.AWSCreatedAt,
		optCol(&sec.AzureClientID), optCol(&sec.AzureClientSecret),
		optCol(&sec.AzureTenantID), optCol(&sec.AzureSubscriptionID), &sec.AzureCreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &sec, nil
}

// SetAWSSecrets stores encrypted AWS credentials, replacing any
// previous ones.
func (s *Store) SetAWSSecrets(ctx context.Context, userID int64, accessKey, secretKey string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE secrets SET aws_access_key = $2, aws_secret_key = $3, aws_created_at = now()
		 WHERE user_id = $1`, userID, accessKey, secretKey)
	if err != nil {
		return fmt.Errorf("storing aws credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAzureSecrets stores encrypted Azure credentials, replacing any
// previous ones.
func (s *Store) SetAzureSecrets(ctx context.Context, userID int64, clientID, clientSecret, tenantID, subscriptionID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE secrets SET azure_client_id = $2, azure_client_secret = $3,
		        azure_tenant_id = $4, azure_subscription_id = $5, azure_created_at = now()
		 WHERE user_id = $1`, userID, clientID, clientSecret, tenantID, subscriptionID)
	if err != nil {
		return fmt.Errorf("storing azure credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// nullString scans a nullable text column into a plain string, mapping
// NULL to the empty string.
type nullString struct {
	dst *string
}

// Scan implements the database/sql scanner contract pgx falls back to.
func (n *nullString) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n.dst = ""
	case string:
		*n.dst = v
	case []byte:
		*n.dst = string(v)
	default:
		return fmt.Errorf("cannot scan %T into string", src)
	}
	return nil
}
