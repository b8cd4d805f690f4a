package service

import (
	"context"

	"github.com/xela07ax/agent-shield-gateway/internal/audit"
	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

type AuditProvider interface {
	FetchLogs(ctx context.Context, vault, agent domain.Address, limit int) ([]audit.AuditEvent, error)
}

// AuditService отдает долговременный след из Postgres (в отличие от
// 50-слотового кольца, которое живет в ядре).
type AuditService struct {
	repo AuditProvider
}

func NewAuditService(repo AuditProvider) *AuditService {
	return &AuditService{repo: repo}
}

func (s *AuditService) FetchLogs(ctx context.Context, vault, agent domain.Address, limit int) ([]audit.AuditEvent, error) {
	return s.repo.FetchLogs(ctx, vault, agent, limit)
}
