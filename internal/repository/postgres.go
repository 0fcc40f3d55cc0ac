package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casedeskhq/casedesk/internal/domain"
)

// Compile-time interface assertions.
var (
	_ TenantRepository         = (*PostgresTenantRepo)(nil)
	_ MembershipRepository     = (*PostgresMembershipRepo)(nil)
	_ ConnectionRepository     = (*PostgresConnectionRepo)(nil)
	_ SheetLinkRepository      = (*PostgresSheetLinkRepo)(nil)
	_ InboundMessageRepository = (*PostgresInboundMessageRepo)(nil)
	_ AuditRepository          = (*PostgresAuditRepo)(nil)
)

// PostgresTenantRepo implements TenantRepository on a pgx pool.
type PostgresTenantRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresTenantRepo(pool *pgxpool.Pool) *PostgresTenantRepo {
	return &PostgresTenantRepo{pool: pool}
}

func (r *PostgresTenantRepo) GetTenant(ctx context.Context, tenantID string) (domain.Tenant, error) {
	var t domain.Tenant
	err := r.pool.QueryRow(ctx,
		`SELECT tenant_id, name, slug, status, created_at, updated_at
		 FROM tenants WHERE tenant_id = $1`, tenantID,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

func (r *PostgresTenantRepo) GetTenantBySlug(ctx context.Context, slug string) (domain.Tenant, error) {
	var t domain.Tenant
	err := r.pool.QueryRow(ctx,
		`SELECT tenant_id, name, slug, status, created_at, updated_at
		 FROM tenants WHERE slug = $1`, slug,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("get tenant by slug: %w", err)
	}
	return t, nil
}

func (r *PostgresTenantRepo) GetDomainByHost(ctx context.Context, host string) (domain.TenantDomain, error) {
	var d domain.TenantDomain
	err := r.pool.QueryRow(ctx,
		`SELECT id, host, tenant_id, is_primary, verified, created_at
		 FROM tenant_domains WHERE host = $1`, host,
	).Scan(&d.ID, &d.Host, &d.TenantID, &d.IsPrimary, &d.Verified, &d.CreatedAt)
	if err != nil {
		return domain.TenantDomain{}, fmt.Errorf("get domain: %w", err)
	}
	return d, nil
}

// PostgresMembershipRepo implements MembershipRepository on a pgx pool.
type PostgresMembershipRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresMembershipRepo(pool *pgxpool.Pool) *PostgresMembershipRepo {
	return &PostgresMembershipRepo{pool: pool}
}

// GetMembership returns pgx.ErrNoRows (wrapped) when no row exists; callers
// distinguish "no membership" from transport failures with errors.Is.
func (r *PostgresMembershipRepo) GetMembership(ctx context.Context, tenantID, userID string) (domain.Membership, error) {
	var m domain.Membership
	err := r.pool.QueryRow(ctx,
		`SELECT tenant_id, user_id, role, is_active, created_at, updated_at
		 FROM memberships WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID,
	).Scan(&m.TenantID, &m.UserID, &m.Role, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return domain.Membership{}, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// PostgresConnectionRepo implements ConnectionRepository on a pgx pool.
type PostgresConnectionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresConnectionRepo(pool *pgxpool.Pool) *PostgresConnectionRepo {
	return &PostgresConnectionRepo{pool: pool}
}

func (r *PostgresConnectionRepo) UpsertConnection(ctx context.Context, conn domain.GoogleConnection) (domain.GoogleConnection, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO google_connections
			(id, tenant_id, account_email, encrypted_access_token, encrypted_refresh_token,
			 scopes, token_expires_at, connected_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		 ON CONFLICT (tenant_id) DO UPDATE SET
			account_email = EXCLUDED.account_email,
			encrypted_access_token = EXCLUDED.encrypted_access_token,
			encrypted_refresh_token = CASE
				WHEN EXCLUDED.encrypted_refresh_token <> '' THEN EXCLUDED.encrypted_refresh_token
				ELSE google_connections.encrypted_refresh_token END,
			scopes = EXCLUDED.scopes,
			token_expires_at = EXCLUDED.token_expires_at,
			connected_by = EXCLUDED.connected_by,
			updated_at = now()
		 RETURNING id, created_at, updated_at`,
		conn.ID, conn.TenantID, conn.AccountEmail, conn.EncryptedAccessToken,
		conn.EncryptedRefreshToken, conn.Scopes, conn.TokenExpiresAt, conn.ConnectedBy,
	).Scan(&conn.ID, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return domain.GoogleConnection{}, fmt.Errorf("upsert connection: %w", err)
	}
	return conn, nil
}

func (r *PostgresConnectionRepo) GetConnection(ctx context.Context, tenantID string) (domain.GoogleConnection, error) {
	var c domain.GoogleConnection
	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, account_email, encrypted_access_token, encrypted_refresh_token,
			scopes, token_expires_at, connected_by, created_at, updated_at
		 FROM google_connections WHERE tenant_id = $1`, tenantID,
	).Scan(&c.ID, &c.TenantID, &c.AccountEmail, &c.EncryptedAccessToken,
		&c.EncryptedRefreshToken, &c.Scopes, &c.TokenExpiresAt, &c.ConnectedBy,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.GoogleConnection{}, fmt.Errorf("get connection: %w", err)
	}
	return c, nil
}

func (r *PostgresConnectionRepo) DeleteConnection(ctx context.Context, tenantID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM google_connections WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete connection: %w", pgx.ErrNoRows)
	}
	return nil
}

// PostgresSheetLinkRepo implements SheetLinkRepository on a pgx pool.
type PostgresSheetLinkRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSheetLinkRepo(pool *pgxpool.Pool) *PostgresSheetLinkRepo {
	return &PostgresSheetLinkRepo{pool: pool}
}

func (r *PostgresSheetLinkRepo) UpsertSheetLink(ctx context.Context, link domain.SheetLink) (domain.SheetLink, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sheet_links
			(id, tenant_id, spreadsheet_id, sheet_name, description, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		 ON CONFLICT (tenant_id, spreadsheet_id) DO UPDATE SET
			sheet_name = EXCLUDED.sheet_name,
			description = EXCLUDED.description,
			updated_at = now()
		 RETURNING id, created_at, updated_at`,
		link.ID, link.TenantID, link.SpreadsheetID, link.SheetName, link.Description, link.CreatedBy,
	).Scan(&link.ID, &link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		return domain.SheetLink{}, fmt.Errorf("upsert sheet link: %w", err)
	}
	return link, nil
}

func (r *PostgresSheetLinkRepo) ListSheetLinks(ctx context.Context, tenantID string) ([]domain.SheetLink, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, spreadsheet_id, sheet_name, description, created_by, created_at, updated_at
		 FROM sheet_links WHERE tenant_id = $1 ORDER BY updated_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list sheet links: %w", err)
	}
	defer rows.Close()

	var links []domain.SheetLink
	for rows.Next() {
		var l domain.SheetLink
		if err := rows.Scan(&l.ID, &l.TenantID, &l.SpreadsheetID, &l.SheetName,
			&l.Description, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sheet link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sheet links: %w", err)
	}
	return links, nil
}

// PostgresInboundMessageRepo implements InboundMessageRepository on a pgx pool.
type PostgresInboundMessageRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresInboundMessageRepo(pool *pgxpool.Pool) *PostgresInboundMessageRepo {
	return &PostgresInboundMessageRepo{pool: pool}
}

func (r *PostgresInboundMessageRepo) CreateMessage(ctx context.Context, msg domain.InboundMessage) (domain.InboundMessage, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO inbound_messages
			(id, tenant_id, provider_id, sender, recipient, subject, body_plain, received_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 RETURNING created_at`,
		msg.ID, msg.TenantID, msg.ProviderID, msg.Sender, msg.Recipient,
		msg.Subject, msg.BodyPlain, msg.ReceivedAt,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return domain.InboundMessage{}, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

func (r *PostgresInboundMessageRepo) ListMessages(ctx context.Context, tenantID string, limit int) ([]domain.InboundMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, provider_id, sender, recipient, subject, body_plain, received_at, created_at
		 FROM inbound_messages WHERE tenant_id = $1 ORDER BY received_at DESC LIMIT $2`,
		tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.InboundMessage
	for rows.Next() {
		var m domain.InboundMessage
		if err := rows.Scan(&m.ID, &m.TenantID, &m.ProviderID, &m.Sender, &m.Recipient,
			&m.Subject, &m.BodyPlain, &m.ReceivedAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// PostgresAuditRepo implements AuditRepository on a pgx pool.
type PostgresAuditRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAuditRepo(pool *pgxpool.Pool) *PostgresAuditRepo {
	return &PostgresAuditRepo{pool: pool}
}

func (r *PostgresAuditRepo) CreateEntry(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO audit_entries (id, tenant_id, actor_id, action, subject, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 RETURNING created_at`,
		entry.ID, entry.TenantID, entry.ActorID, entry.Action, entry.Subject, entry.Detail,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("create audit entry: %w", err)
	}
	return entry, nil
}

func (r *PostgresAuditRepo) ListEntries(ctx context.Context, tenantID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, actor_id, action, subject, detail, created_at
		 FROM audit_entries WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2`,
		tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ActorID, &e.Action, &e.Subject,
			&e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
