// Package universe provides the securities known to the ledger and their price history.
package universe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/rs/zerolog"
)

const securityColumns = `id, symbol, name, currency, provider, provider_symbol, last_synced`

// SecurityRepository handles security database operations.
// Securities are owned by the provider sync; the ledger only reads them and
// records when prices were last synced.
type SecurityRepository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewSecurityRepository creates a new security repository
func NewSecurityRepository(db database.Querier, log zerolog.Logger) *SecurityRepository {
	return &SecurityRepository{
		db:  db,
		log: log.With().Str("repo", "security").Logger(),
	}
}

// WithTx returns a repository bound to an open transaction.
func (r *SecurityRepository) WithTx(tx *sql.Tx) *SecurityRepository {
	return &SecurityRepository{db: tx, log: r.log}
}

// Create inserts a security. Used by the provider sync and for seeding.
func (r *SecurityRepository) Create(ctx context.Context, sec domain.Security) error {
	if sec.ID == "" || sec.Symbol == "" {
		return domain.Validationf("security id and symbol are required")
	}
	sec.Currency = strings.ToUpper(sec.Currency)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO securities (`+securityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, NULL)
	`, sec.ID, sec.Symbol, sec.Name, sec.Currency, sec.Provider, sec.ProviderSymbol)
	if err != nil {
		return fmt.Errorf("failed to create security %s: %w", sec.Symbol, err)
	}

	r.log.Info().
		Str("security_id", sec.ID).
		Str("symbol", sec.Symbol).
		Msg("Created security")

	return nil
}

// GetByID returns a security by id, or nil if it does not exist.
func (r *SecurityRepository) GetByID(ctx context.Context, id string) (*domain.Security, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+securityColumns+` FROM securities WHERE id = ?`, id)
	sec, err := scanSecurity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get security %s: %w", id, err)
	}
	return sec, nil
}

// ListHeld returns securities referenced by at least one holding, ordered by symbol.
func (r *SecurityRepository) ListHeld(ctx context.Context) ([]domain.Security, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prefixed("s.", securityColumns)+`
		FROM securities s
		WHERE EXISTS (SELECT 1 FROM holdings h WHERE h.security_id = s.id)
		ORDER BY s.symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query held securities: %w", err)
	}
	defer rows.Close()

	var securities []domain.Security
	for rows.Next() {
		sec, err := scanSecurity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security: %w", err)
		}
		securities = append(securities, *sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating securities: %w", err)
	}

	return securities, nil
}

// TouchLastSynced records that prices for the security were synced at ts.
func (r *SecurityRepository) TouchLastSynced(ctx context.Context, id string, ts time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE securities SET last_synced = ? WHERE id = ?`, ts.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update last_synced for %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSecurity(row rowScanner) (*domain.Security, error) {
	var (
		sec        domain.Security
		lastSynced sql.NullInt64
	)
	if err := row.Scan(&sec.ID, &sec.Symbol, &sec.Name, &sec.Currency, &sec.Provider, &sec.ProviderSymbol, &lastSynced); err != nil {
		return nil, err
	}
	if lastSynced.Valid {
		t := time.Unix(lastSynced.Int64, 0).UTC()
		sec.LastSynced = &t
	}
	return &sec, nil
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = prefix + p
	}
	return strings.Join(parts, ", ")
}
