package service

import (
	"context"
	"fmt"

	"github.com/hospital-accounting-ledger/internal/domain/audit"
)

// AuditServiceImpl implements the AuditService interface
type AuditServiceImpl struct {
	auditRepo audit.Repository
}

// NewAuditService creates a new audit query service
func NewAuditService(auditRepo audit.Repository) AuditService {
	return &AuditServiceImpl{auditRepo: auditRepo}
}

// QueryAudit returns one page of matching audit entries plus the total
// match count for pagination
func (s *AuditServiceImpl) QueryAudit(ctx context.Context, filter audit.Filter, page, perPage int) ([]*audit.Entry, int64, error) {
	offset := (page - 1) * perPage

	entries, err := s.auditRepo.Query(ctx, filter, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit archive: %w", err)
	}

	total, err := s.auditRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return entries, total, nil
}
