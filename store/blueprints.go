package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
)

// CreateBlueprintRange persists a validated blueprint graph in one
// transaction and returns it with IDs assigned.
func (s *Store) CreateBlueprintRange(ctx context.Context, ownerID int64, create v1.BlueprintRangeCreate) (*v1.BlueprintRange, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	out := &v1.BlueprintRange{
		Name:        create.Name,
		Description: create.Description,
		Provider:    create.Provider,
		Region:      create.Region,
		VNC:         create.VNC,
		VPN:         create.VPN,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO blueprint_ranges (owner_id, name, description, provider, region, vnc, vpn)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		ownerID, create.Name, create.Description, create.Provider, create.Region, create.VNC, create.VPN).
		Scan(&out.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting blueprint range: %w", err)
	}

	for _, vpc := range create.VPCs {
		persisted, err := insertVPC(ctx, tx, ownerID, &out.ID, vpc)
		if err != nil {
			return nil, err
		}
		out.VPCs = append(out.VPCs, *persisted)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing blueprint range: %w", err)
	}
	return out, nil
}

// CreateBlueprintVPC persists a standalone VPC blueprint.
func (s *Store) CreateBlueprintVPC(ctx context.Context, ownerID int64, create v1.BlueprintVPCCreate) (*v1.BlueprintVPC, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	out, err := insertVPC(ctx, tx, ownerID, nil, create)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing blueprint vpc: %w", err)
	}
	return out, nil
}

// CreateBlueprintSubnet persists a standalone subnet blueprint.
func (s *Store) CreateBlueprintSubnet(ctx context.Context, ownerID int64, create v1.BlueprintSubnetCreate) (*v1.BlueprintSubnet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	out, err := insertSubnet(ctx, tx, ownerID, nil, create)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing blueprint subnet: %w", err)
	}
	return out, nil
}

// CreateBlueprintHost persists a standalone host blueprint.
func (s *Store) CreateBlueprintHost(ctx context.Context, ownerID int64, create v1.BlueprintHostCreate) (*v1.BlueprintHost, error) {
	out := &v1.BlueprintHost{BlueprintHostCreate: create}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO blueprint_hosts (owner_id, subnet_id, hostname, os, spec, size_gb, tags)
		 VALUES ($1, NULL, $2, $3, $4, $5, $6) RETURNING id`,
		ownerID, create.Hostname, create.OS, create.Spec, create.SizeGB, tagsOrEmpty(create.Tags)).
		Scan(&out.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting blueprint host: %w", err)
	}
	return out, nil
}

func insertVPC(ctx context.Context, tx pgx.Tx, ownerID int64, rangeID *int64, create v1.BlueprintVPCCreate) (*v1.BlueprintVPC, error) {
	out := &v1.BlueprintVPC{Name: create.Name, CIDR: create.CIDR}
	err := tx.QueryRow(ctx,
		`INSERT INTO blueprint_vpcs (owner_id, range_id, name, cidr)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		ownerID, rangeID, create.Name, create.CIDR).Scan(&out.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting blueprint vpc: %w", err)
	}
	for _, subnet := range create.Subnets {
		persisted, err := insertSubnet(ctx, tx, ownerID, &out.ID, subnet)
		if err != nil {
			return nil, err
		}
		out.Subnets = append(out.Subnets, *persisted)
	}
	return out, nil
}

func insertSubnet(ctx context.Context, tx pgx.Tx, ownerID int64, vpcID *int64, create v1.BlueprintSubnetCreate) (*v1.BlueprintSubnet, error) {
	out := &v1.BlueprintSubnet{Name: create.Name, CIDR: create.CIDR}
	err := tx.QueryRow(ctx,
		`INSERT INTO blueprint_subnets (owner_id, vpc_id, name, cidr)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		ownerID, vpcID, create.Name, create.CIDR).Scan(&out.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting blueprint subnet: %w", err)
	}
	for _, host := range create.Hosts {
		h := v1.BlueprintHost{BlueprintHostCreate: host}
		err := tx.QueryRow(ctx,
			`INSERT INTO blueprint_hosts (owner_id, subnet_id, hostname, os, spec, size_gb, tags)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			ownerID, out.ID, host.Hostname, host.OS, host.Spec, host.SizeGB, tagsOrEmpty(host.Tags)).
			Scan(&h.ID)
		if err != nil {
			return nil, fmt.Errorf("inserting blueprint host: %w", err)
		}
		out.Hosts = append(out.Hosts, h)
	}
	return out, nil
}

// GetBlueprintRange loads a full blueprint graph visible to the scope.
func (s *Store) GetBlueprintRange(ctx context.Context, scope Scope, rangeID int64) (*v1.BlueprintRange, error) {
	var out v1.BlueprintRange
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, provider, region, vnc, vpn
		 FROM blueprint_ranges WHERE id = $1 AND (owner_id = $2 OR $3)`, rangeID, scope.UserID, scope.Admin).
		Scan(&out.ID, &out.Name, &out.Description, &out.Provider, &out.Region, &out.VNC, &out.VPN)
	if err != nil {
		return nil, notFound(err)
	}

	vpcRows, err := s.pool.Query(ctx,
		`SELECT id, name, cidr FROM blueprint_vpcs WHERE range_id = $1 ORDER BY id`, rangeID)
	if err != nil {
		return nil, fmt.Errorf("loading blueprint vpcs: %w", err)
	}
	vpcs, err := pgx.CollectRows(vpcRows, func(row pgx.CollectableRow) (v1.BlueprintVPC, error) {
		var vpc v1.BlueprintVPC
		err := row.Scan(&vpc.ID, &vpc.Name, &vpc.CIDR)
		return vpc, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning blueprint vpcs: %w", err)
	}

	for i := range vpcs {
		if vpcs[i].Subnets, err = s.loadSubnets(ctx, vpcs[i].ID); err != nil {
			return nil, err
		}
	}
	out.VPCs = vpcs
	return &out, nil
}

func (s *Store) loadSubnets(ctx context.Context, vpcID int64) ([]v1.BlueprintSubnet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, cidr FROM blueprint_subnets WHERE vpc_id = $1 ORDER BY id`, vpcID)
	if err != nil {
		return nil, fmt.Errorf("loading blueprint subnets: %w", err)
	}
	subnets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (v1.BlueprintSubnet, error) {
		var subnet v1.BlueprintSubnet
		err := row.Scan(&subnet.ID, &subnet.Name, &subnet.CIDR)
		return subnet, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning blueprint subnets: %w", err)
	}
	for i := range subnets {
		if subnets[i].Hosts, err = s.loadHosts(ctx, subnets[i].ID); err != nil {
			return nil, err
		}
	}
	return subnets, nil
}

func (s *Store) loadHosts(ctx context.Context, subnetID int64) ([]v1.BlueprintHost, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, hostname, os, spec, size_gb, tags
		 FROM blueprint_hosts WHERE subnet_id = $1 ORDER BY id`, subnetID)
	if err != nil {
		return nil, fmt.Errorf("loading blueprint hosts: %w", err)
	}
	hosts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (v1.BlueprintHost, error) {
		var host v1.BlueprintHost
		err := row.Scan(&host.ID, &host.Hostname, &host.OS, &host.Spec, &host.SizeGB, &host.Tags)
		return host, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning blueprint hosts: %w", err)
	}
	return hosts, nil
}

// ListBlueprintRanges lists the blueprint range headers visible to the
// scope.
func (s *Store) ListBlueprintRanges(ctx context.Context, scope Scope) ([]v1.BlueprintRangeHeader, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, provider, region, vnc, vpn
		 FROM blueprint_ranges WHERE (owner_id = $1 OR $2) ORDER BY id`, scope.UserID, scope.Admin)
	if err != nil {
		return nil, fmt.Errorf("listing blueprint ranges: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (v1.BlueprintRangeHeader, error) {
		var h v1.BlueprintRangeHeader
		err := row.Scan(&h.ID, &h.Name, &h.Provider, &h.Region, &h.VNC, &h.VPN)
		return h, err
	})
}

// ListBlueprintVPCs lists VPC blueprint headers. With standaloneOnly
// set only VPCs not attached to a range blueprint are returned.
func (s *Store) ListBlueprintVPCs(ctx context.Context, scope Scope, standaloneOnly bool) ([]v1.BlueprintVPCHeader, error) {
	query := `SELECT id, name, cidr FROM blueprint_vpcs WHERE (owner_id = $1 OR $2)`
	if standaloneOnly {
		query += ` AND range_id IS NULL`
	}
	rows, err := s.pool.Query(ctx, query+` ORDER BY id`, scope.UserID, scope.Admin)
	if err != nil {
		return nil, fmt.Errorf("listing blueprint vpcs: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (v1.BlueprintVPCHeader, error) {
		var h v1.BlueprintVPCHeader
		err := row.Scan(&h.ID, &h.Name, &h.CIDR)
		return h, err
	})
}

// ListBlueprintSubnets lists subnet blueprint headers, optionally only
// standalone ones.
func (s *Store) ListBlueprintSubnets(ctx context.Context, scope Scope, standaloneOnly bool) ([]v1.BlueprintSubnetHeader, error) {
	query := `SELECT id, name, cidr FROM blueprint_subnets WHERE (owner_id = $1 OR $2)`
	if standaloneOnly {
		query += ` AND vpc_id IS NULL`
	}
	rows, err := s.pool.Query(ctx, query+` ORDER BY id`, scope.UserID, scope.Admin)
	if err != nil {
		return nil, fmt.Errorf("listing blueprint subnets: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (v1.BlueprintSubnetHeader, error) {
		var h v1.BlueprintSubnetHeader
		err := row.Scan(&h.ID, &h.Name, &h.CIDR)
		return h, err
	})
}

// ListBlueprintHosts lists host blueprint headers, optionally only
// standalone ones.
func (s *Store) ListBlueprintHosts(ctx context.Context, scope Scope, standaloneOnly bool) ([]v1.BlueprintHostHeader, error) {
	query := `SELECT id, hostname, os, spec FROM blueprint_hosts WHERE (owner_id = $1 OR $2)`
	if standaloneOnly {
		query += ` AND subnet_id IS NULL`
	}
	rows, err := s.pool.Query(ctx, query+` ORDER BY id`, scope.UserID, scope.Admin)
	if err != nil {
		return nil, fmt.Errorf("listing blueprint hosts: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (v1.BlueprintHostHeader, error) {
		var h v1.BlueprintHostHeader
		err := row.Scan(&h.ID, &h.Hostname, &h.OS, &h.Spec)
		return h, err
	})
}

// GetBlueprintVPC loads one VPC blueprint with its sub-graph.
func (s *Store) GetBlueprintVPC(ctx context.Context, scope Scope, vpcID int64) (*v1.BlueprintVPC, error) {
	var vpc v1.BlueprintVPC
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, cidr FROM blueprint_vpcs WHERE id = $1 AND (owner_id = $2 OR $3)`, vpcID, scope.UserID, scope.Admin).
		Scan(&vpc.ID, &vpc.Name, &vpc.CIDR)
	if err != nil {
		return nil, notFound(err)
	}
	if vpc.Subnets, err = s.loadSubnets(ctx, vpc.ID); err != nil {
		return nil, err
	}
	return &vpc, nil
}

// GetBlueprintSubnet loads one subnet blueprint with its hosts.
func (s *Store) GetBlueprintSubnet(ctx context.Context, scope Scope, subnetID int64) (*v1.BlueprintSubnet, error) {
	var subnet v1.BlueprintSubnet
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, cidr FROM blueprint_subnets WHERE id = $1 AND (owner_id = $2 OR $3)`, subnetID, scope.UserID, scope.Admin).
		Scan(&subnet.ID, &subnet.Name, &subnet.CIDR)
	if err != nil {
		return nil, notFound(err)
	}
	if subnet.Hosts, err = s.loadHosts(ctx, subnet.ID); err != nil {
		return nil, err
	}
	return &subnet, nil
}

// GetBlueprintHost loads one host blueprint.
func (s *Store) GetBlueprintHost(ctx context.Context, scope Scope, hostID int64) (*v1.BlueprintHost, error) {
	var host v1.BlueprintHost
	err := s.pool.QueryRow(ctx,
		`SELECT id, hostname, os, spec, size_gb, tags
		 FROM blueprint_hosts WHERE id = $1 AND (owner_id = $2 OR $3)`, hostID, scope.UserID, scope.Admin).
		Scan(&host.ID, &host.Hostname, &host.OS, &host.Spec, &host.SizeGB, &host.Tags)
	if err != nil {
		return nil, notFound(err)
	}
	return &host, nil
}

// DeleteBlueprintRange removes a blueprint graph; children cascade.
func (s *Store) DeleteBlueprintRange(ctx context.Context, scope Scope, rangeID int64) error {
	return s.deleteOwned(ctx, `DELETE FROM blueprint_ranges WHERE id = $1 AND (owner_id = $2 OR $3)`, rangeID, scope)
}

// DeleteBlueprintVPC removes a VPC blueprint; children cascade.
func (s *Store) DeleteBlueprintVPC(ctx context.Context, scope Scope, vpcID int64) error {
	return s.deleteOwned(ctx, `DELETE FROM blueprint_vpcs WHERE id = $1 AND (owner_id = $2 OR $3)`, vpcID, scope)
}

// DeleteBlueprintSubnet removes a subnet blueprint; hosts cascade.
func (s *Store) DeleteBlueprintSubnet(ctx context.Context, scope Scope, subnetID int64) error {
	return s.deleteOwned(ctx, `DELETE FROM blueprint_subnets WHERE id = $1 AND (owner_id = $2 OR $3)`, subnetID, scope)
}

// DeleteBlueprintHost removes a host blueprint.
func (s *Store) DeleteBlueprintHost(ctx context.Context, scope Scope, hostID int64) error {
	return s.deleteOwned(ctx, `DELETE FROM blueprint_hosts WHERE id = $1 AND (owner_id = $2 OR $3)`, hostID, scope)
}

func (s *Store) deleteOwned(ctx context.Context, query string, id int64, scope Scope) error {
	tag, err := s.pool.Exec(ctx, query, id, scope.UserID, scope.Admin)
	if err != nil {
		return fmt.Errorf("deleting row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
