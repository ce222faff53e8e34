package credits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/credits/entry"
	"github.com/xraph/credits/referral"
)

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	// Scanned counts redemptions examined.
	Scanned int `json:"scanned"`
	// Repaired counts bonuses credited by this pass.
	Repaired int `json:"repaired"`
	// Failed counts bonuses that are still missing after this pass.
	Failed  int           `json:"failed"`
	Elapsed time.Duration `json:"elapsed"`
}

// Reconcile finds redemptions whose bonus never reached one of the parties
// and credits it. Redemptions younger than the configured grace period are
// skipped. Per-party failures are counted in the report and do not abort the
// pass; only a failure to list redemptions is returned as an error.
func (l *Ledger) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	if l.configErr != nil {
		return nil, l.configErr
	}
	start := time.Now()
	report := &ReconcileReport{}
	cutoff := l.now().Add(-l.config.ReconcileGrace)
	batch := max(l.config.ReconcileBatchSize, 1)

	for offset := 0; ; offset += batch {
		page, err := l.referrals.ListRedemptions(ctx, referral.ListOpts{
			RedeemedBefore: cutoff,
			Limit:          batch,
			Offset:         offset,
		})
		if err != nil {
			report.Elapsed = time.Since(start)
			return report, fmt.Errorf("credits: list redemptions: %w", err)
		}

		for _, red := range page {
			report.Scanned++
			for _, accountID := range []string{red.InviterID, red.InviteeID} {
				repaired, err := l.repairBonus(ctx, red, accountID)
				switch {
				case err != nil:
					report.Failed++
					l.logger.Warn("credits: referral repair failed",
						"invitation_key", red.InvitationKey,
						"account_id", accountID,
						"error", err,
					)
				case repaired:
					report.Repaired++
					l.plugins.EmitReferralRepaired(ctx, red, accountID)
				}
			}
		}

		if len(page) < batch {
			break
		}
	}

	report.Elapsed = time.Since(start)
	l.plugins.EmitReconciled(ctx, report.Scanned, report.Repaired, report.Failed, report.Elapsed)

	if report.Repaired > 0 || report.Failed > 0 {
		l.logger.Info("credits: reconciliation pass finished",
			"scanned", report.Scanned,
			"repaired", report.Repaired,
			"failed", report.Failed,
			"elapsed_ms", report.Elapsed.Milliseconds(),
		)
	}

	return report, nil
}

// repairBonus credits accountID for red unless its journal already shows the
// bonus.
func (l *Ledger) repairBonus(ctx context.Context, red *referral.Redemption, accountID string) (bool, error) {
	paid, err := l.store.ListEntries(ctx, accountID, entry.ListOpts{
		Reason:    entry.ReasonReferralBonus,
		Reference: red.InvitationKey,
		Limit:     1,
	})
	if err != nil {
		return false, err
	}
	if len(paid) > 0 {
		return false, nil
	}
	return l.creditBonus(ctx, red, accountID)
}

// reconcileWorker runs Reconcile on a fixed interval until Stop.
func (l *Ledger) reconcileWorker(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return

		case <-ticker.C:
			if _, err := l.Reconcile(ctx); err != nil && !errors.Is(err, context.Canceled) {
				l.logger.Error("credits: reconciliation pass failed", "error", err)
			}
		}
	}
}
