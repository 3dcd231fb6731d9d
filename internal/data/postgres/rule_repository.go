package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hospital-accounting-ledger/internal/domain/rule"
	"github.com/hospital-accounting-ledger/internal/domain/shared"
	"github.com/hospital-accounting-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// RuleRepository implements the rule.Repository interface for PostgreSQL.
// Rule lines are stored as a JSONB column: rules are configuration data
// read as a unit, never queried by individual line.
type RuleRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewRuleRepository creates a new PostgreSQL posting-rule repository
func NewRuleRepository(logger *slog.Logger, db *persistence.PostgresDB) rule.Repository {
	return &RuleRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *RuleRepository) WithTx(tx pgx.Tx) rule.Repository {
	return &RuleRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Upsert writes a posting rule, replacing the line set for its transition
func (r *RuleRepository) Upsert(ctx context.Context, ru *rule.Rule) error {
	lines, err := json.Marshal(ru.Lines)
	if err != nil {
		return fmt.Errorf("failed to marshal rule lines: %w", err)
	}

	query := `
		INSERT INTO posting_rules (id, hospital_id, source_type, transition, lines)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (hospital_id, source_type, transition) DO UPDATE
		SET lines = EXCLUDED.lines
	`

	_, err = r.querier.Exec(ctx, query, ru.ID, ru.HospitalID, ru.SourceType, ru.Transition, lines)
	if err != nil {
		r.logger.Error("Failed to upsert posting rule",
			"hospital_id", ru.HospitalID.String(),
			"source_type", string(ru.SourceType),
			"transition", string(ru.Transition),
			"error", err)
		return fmt.Errorf("failed to upsert posting rule: %w", err)
	}

	return nil
}

// Get retrieves the rule for one (source type, transition) pair
func (r *RuleRepository) Get(ctx context.Context, hospitalID uuid.UUID, sourceType shared.SourceType, transition shared.Transition) (*rule.Rule, error) {
	query := `
		SELECT id, hospital_id, source_type, transition, lines
		FROM posting_rules
		WHERE hospital_id = $1 AND source_type = $2 AND transition = $3
	`

	var (
		ru    rule.Rule
		lines []byte
	)
	err := r.querier.QueryRow(ctx, query, hospitalID, sourceType, transition).Scan(
		&ru.ID,
		&ru.HospitalID,
		&ru.SourceType,
		&ru.Transition,
		&lines,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rule.ErrRuleNotFound{HospitalID: hospitalID, SourceType: sourceType, Transition: transition}
		}
		r.logger.Error("Failed to get posting rule", "hospital_id", hospitalID.String(), "error", err)
		return nil, fmt.Errorf("failed to get posting rule: %w", err)
	}

	if err := json.Unmarshal(lines, &ru.Lines); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule lines: %w", err)
	}

	return &ru, nil
}

// ListByHospital retrieves all posting rules configured for a hospital
func (r *RuleRepository) ListByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*rule.Rule, error) {
	query := `
		SELECT id, hospital_id, source_type, transition, lines
		FROM posting_rules
		WHERE hospital_id = $1
		ORDER BY source_type, transition
	`

	rows, err := r.querier.Query(ctx, query, hospitalID)
	if err != nil {
		r.logger.Error("Failed to list posting rules", "hospital_id", hospitalID.String(), "error", err)
		return nil, fmt.Errorf("failed to list posting rules: %w", err)
	}
	defer rows.Close()

	var rules []*rule.Rule
	for rows.Next() {
		var (
			ru    rule.Rule
			lines []byte
		)
		if err := rows.Scan(&ru.ID, &ru.HospitalID, &ru.SourceType, &ru.Transition, &lines); err != nil {
			return nil, fmt.Errorf("failed to scan posting rule: %w", err)
		}
		if err := json.Unmarshal(lines, &ru.Lines); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule lines: %w", err)
		}
		rules = append(rules, &ru)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posting rules: %w", err)
	}

	return rules, nil
}
