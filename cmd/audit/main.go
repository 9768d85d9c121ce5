// Command audit reconciles wallets offline and issues service tokens.
//
//	audit [-config file] [owner ...]         reconcile the given owners, or all
//	audit [-config file] -issue-token name   print a bearer token for a caller
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"wallet-ledger/config"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	issueToken := flag.String("issue-token", "", "issue a JWT for this caller and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	if *issueToken != "" {
		token, exp, err := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer).Generate(*issueToken)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to issue token")
		}
		log.Info().Str("subject", *issueToken).Time("expires_at", exp).Msg("Token issued")
		fmt.Println(token)
		return
	}

	failed, err := reconcile(context.Background(), cfg, flag.Args(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Reconciliation aborted")
	}
	if failed > 0 {
		log.Error().Int("failed", failed).Msg("Reconciliation found inconsistent wallets")
		os.Exit(1)
	}
}

// reconcile audits each owner and returns how many wallets failed a check.
func reconcile(ctx context.Context, cfg *config.Config, owners []string, log zerolog.Logger) (int, error) {
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return 0, err
	}
	defer pool.Close()

	walletRepo := pgStorage.NewWalletRepo(pool)
	entryRepo := pgStorage.NewEntryRepo(pool)
	transactor := pgStorage.NewTransactor(pool, cfg.Ledger.LockTimeout)

	hasher, err := service.NewIntegrityHasher(cfg.Ledger.IntegrityKey)
	if err != nil {
		return 0, err
	}
	auditSvc := service.NewAuditService(pgStorage.NewAuditRepo(pool), log)
	defer auditSvc.Wait()

	verifier := service.NewIntegrityService(entryRepo, hasher, auditSvc, log)
	verifyPool, err := service.NewVerificationPool(cfg.Worker.PoolSize, verifier)
	if err != nil {
		return 0, err
	}
	defer verifyPool.Release()

	reconSvc := service.NewReconciliationService(walletRepo, entryRepo, transactor, verifyPool, auditSvc, log)

	if len(owners) == 0 {
		if owners, err = walletRepo.ListOwnerIDs(ctx); err != nil {
			return 0, err
		}
	}

	failed := 0
	for _, owner := range owners {
		report, err := reconSvc.Reconcile(ctx, owner)
		if err != nil {
			log.Error().Err(err).Str("owner_id", owner).Msg("Reconciliation failed")
			failed++
			continue
		}
		if !report.Consistent() {
			failed++
			continue
		}
		log.Info().
			Str("owner_id", owner).
			Int("entries", report.EntryCount).
			Str("balance", report.StoredBalance.StringFixed(2)).
			Msg("Wallet consistent")
	}
	log.Info().Int("wallets", len(owners)).Int("failed", failed).Msg("Reconciliation complete")
	return failed, nil
}
