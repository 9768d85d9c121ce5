package service

import (
	"context"
	"fmt"
	"sync"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/panjf2000/ants/v2"
)

// DefaultVerifyWorkers is the pool size used when none is configured.
const DefaultVerifyWorkers = 8

// VerificationPool re-hashes batches of entries on a bounded goroutine pool.
type VerificationPool struct {
	pool     *ants.Pool
	verifier ports.IntegrityVerifier
}

// NewVerificationPool creates a pool of size workers. Call Release when done.
func NewVerificationPool(size int, verifier ports.IntegrityVerifier) (*VerificationPool, error) {
	if size <= 0 {
		size = DefaultVerifyWorkers
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("creating verification pool: %w", err)
	}
	return &VerificationPool{pool: pool, verifier: verifier}, nil
}

// VerifyAll returns one result per entry, in input order.
func (p *VerificationPool) VerifyAll(ctx context.Context, entries []domain.LedgerEntry) ([]bool, error) {
	results := make([]bool, len(entries))
	var (
		wg        sync.WaitGroup
		submitErr error
	)
	for i := range entries {
		if err := ctx.Err(); err != nil {
			submitErr = err
			break
		}
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			results[i] = p.verifier.VerifyEntry(ctx, &entries[i])
		})
		if err != nil {
			wg.Done()
			submitErr = fmt.Errorf("submitting verification task: %w", err)
			break
		}
	}
	wg.Wait()
	if submitErr != nil {
		return nil, submitErr
	}
	return results, nil
}

// Release stops the pool's workers.
func (p *VerificationPool) Release() {
	p.pool.Release()
}
