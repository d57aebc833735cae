package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
)

// RangeKeys is the SSH keypair baked into a deployed range.
type RangeKeys struct {
	PrivateKey string
	PublicKey  string
}

// CreateDeployedRange inserts a deployed range row together with the
// blueprint it was materialized from. The insert is idempotent on the
// range ID: a redelivered deploy job that produced the same
// deterministic ID leaves the existing row untouched and reports
// inserted=false.
func (s *Store) CreateDeployedRange(ctx context.Context, ownerID int64, deployed *v1.DeployedRange, blueprint v1.BlueprintRange, keys RangeKeys) (inserted bool, err error) {
	resources, err := json.Marshal(deployed.VPCs)
	if err != nil {
		return false, fmt.Errorf("encoding deployed resources: %w", err)
	}
	blueprintJSON, err := json.Marshal(blueprint)
	if err != nil {
		return false, fmt.Errorf("encoding blueprint: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO deployed_ranges
		   (id, owner_id, name, description, provider, region, vnc, vpn, state,
		    deployed_at, jumpbox_resource_id, jumpbox_public_ip, resources, blueprint,
		    state_blob, ssh_private_key, ssh_public_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (id) DO NOTHING`,
		deployed.ID, ownerID, deployed.Name, deployed.Description, deployed.Provider,
		deployed.Region, deployed.VNC, deployed.VPN, deployed.State, deployed.DeployedAt,
		deployed.JumpboxResourceID, deployed.JumpboxPublicIP, resources, blueprintJSON,
		[]byte(deployed.StateBlob), keys.PrivateKey, keys.PublicKey)
	if err != nil {
		return false, fmt.Errorf("inserting deployed range: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeployedRangeInternals is everything the worker needs to destroy a
// range: the blueprint to re-synthesize the plan, the keypair, and the
// captured state.
type DeployedRangeInternals struct {
	Deployed  *v1.DeployedRange
	Blueprint v1.BlueprintRange
	Keys      RangeKeys
}

// GetDeployedRangeInternals loads the full destroy context for a range.
// The caller has already been authorized; the lookup is by ID alone so
// an admin-requested destroy still resolves the owner's row.
func (s *Store) GetDeployedRangeInternals(ctx context.Context, rangeID uuid.UUID) (*DeployedRangeInternals, error) {
	var (
		out       DeployedRangeInternals
		deployed  v1.DeployedRange
		blueprint []byte
		state     []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, provider, region, vnc, vpn, state, deployed_at,
		        blueprint, state_blob, ssh_private_key, ssh_public_key
		 FROM deployed_ranges WHERE id = $1`, rangeID).
		Scan(&deployed.ID, &deployed.Name, &deployed.Description, &deployed.Provider,
			&deployed.Region, &deployed.VNC, &deployed.VPN, &deployed.State, &deployed.DeployedAt,
			&blueprint, &state, &out.Keys.PrivateKey, &out.Keys.PublicKey)
	if err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(blueprint, &out.Blueprint); err != nil {
		return nil, fmt.Errorf("decoding blueprint: %w", err)
	}
	deployed.StateBlob = state
	out.Deployed = &deployed
	return &out, nil
}

// GetDeployedRange loads a deployed range visible to the scope,
// including the opaque state blob.
func (s *Store) GetDeployedRange(ctx context.Context, scope Scope, rangeID uuid.UUID) (*v1.DeployedRange, error) {
	var (
		out       v1.DeployedRange
		resources []byte
		state     []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, provider, region, vnc, vpn, state, deployed_at,
		        jumpbox_resource_id, jumpbox_public_ip, resources, state_blob
		 FROM deployed_ranges WHERE id = $1 AND (owner_id = $2 OR $3)`, rangeID, scope.UserID, scope.Admin).
		Scan(&out.ID, &out.Name, &out.Description, &out.Provider, &out.Region,
			&out.VNC, &out.VPN, &out.State, &out.DeployedAt,
			&out.JumpboxResourceID, &out.JumpboxPublicIP, &resources, &state)
	if err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(resources, &out.VPCs); err != nil {
		return nil, fmt.Errorf("decoding deployed resources: %w", err)
	}
	out.StateBlob = state
	return &out, nil
}

// ListDeployedRanges lists the deployed range headers visible to the
// scope.
func (s *Store) ListDeployedRanges(ctx context.Context, scope Scope) ([]v1.DeployedRangeHeader, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, provider, region, state, deployed_at, jumpbox_public_ip
		 FROM deployed_ranges WHERE (owner_id = $1 OR $2) ORDER BY deployed_at DESC`, scope.UserID, scope.Admin)
	if err != nil {
		return nil, fmt.Errorf("listing deployed ranges: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (v1.DeployedRangeHeader, error) {
		var h v1.DeployedRangeHeader
		err := row.Scan(&h.ID, &h.Name, &h.Description, &h.Provider, &h.Region,
			&h.State, &h.DeployedAt, &h.JumpboxPublicIP)
		return h, err
	})
}

// GetDeployedRangeKey returns the SSH private key for a range's
// jumpbox.
func (s *Store) GetDeployedRangeKey(ctx context.Context, scope Scope, rangeID uuid.UUID) (*v1.DeployedRangeKey, error) {
	key := v1.DeployedRangeKey{RangeID: rangeID}
	err := s.pool.QueryRow(ctx,
		`SELECT ssh_private_key FROM deployed_ranges WHERE id = $1 AND (owner_id = $2 OR $3)`,
		rangeID, scope.UserID, scope.Admin).Scan(&key.PrivateKey)
	if err != nil {
		return nil, notFound(err)
	}
	return &key, nil
}

// SetDeployedRangeState transitions the lifecycle state of a range.
func (s *Store) SetDeployedRangeState(ctx context.Context, rangeID uuid.UUID, state v1.RangeState) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE deployed_ranges SET state = $2 WHERE id = $1`, rangeID, state)
	if err != nil {
		return fmt.Errorf("updating range state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDeployedRange removes a deployed range row after a successful
// destroy.
func (s *Store) DeleteDeployedRange(ctx context.Context, rangeID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM deployed_ranges WHERE id = $1`, rangeID)
	if err != nil {
		return fmt.Errorf("deleting deployed range: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
