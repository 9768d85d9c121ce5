package service

import (
	"context"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

const auditPersistTimeout = 5 * time.Second

// AuditService writes security events in the background so that ledger
// writes never wait on the audit table.
type AuditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
	wg   sync.WaitGroup
}

// NewAuditService creates a new audit service.
// If repo is nil, audit logs are only written to the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditService {
	return &AuditService{repo: repo, log: log}
}

// Log records an audit entry asynchronously (fire-and-forget).
func (s *AuditService) Log(ctx context.Context, entry *domain.AuditLog) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		evt := s.log.Warn().
			Str("action", string(entry.Action)).
			Str("resource_type", entry.ResourceType).
			Str("resource_id", entry.ResourceID)
		if entry.WalletID != nil {
			evt = evt.Str("wallet_id", entry.WalletID.String())
		}
		evt.Msg("audit")

		if s.repo == nil {
			return
		}
		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditPersistTimeout)
		defer cancel()
		if err := s.repo.Create(persistCtx, entry); err != nil {
			s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to persist audit log")
		}
	}()
}

// Wait blocks until every pending audit write has finished.
func (s *AuditService) Wait() {
	s.wg.Wait()
}
