// Package reconcile links bank statement transactions to receipt documents.
// Two engines exist: the hierarchical one inspects receipt text layer by
// layer, the fuzzy one blends merchant similarity with date proximity. The
// engine is chosen per deployment, never mixed.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"soberana/docledger/internal/config"
	"soberana/docledger/internal/dateutils"
	"soberana/docledger/internal/logging"
	"soberana/docledger/internal/models"
	"soberana/docledger/internal/store"
)

// Match is a proposed link between a transaction and a receipt document.
type Match struct {
	ReceiptID uuid.UUID
	Score     float64
	Type      models.MatchType
}

// Matcher proposes a receipt for one statement transaction.
type Matcher interface {
	Match(tx models.Transaction, candidates []store.ReceiptCandidate) (*Match, bool)
}

// Result summarizes one reconciliation run.
type Result struct {
	TenantID              uuid.UUID
	TransactionsProcessed int
	MatchesFound          int
	AmbiguousSkipped      int
}

// Reconciler drives a matching engine over a tenant's unlinked statement
// transactions.
type Reconciler struct {
	store      store.Store
	matcher    Matcher
	windowDays int
	log        logging.Logger
}

// New builds a Reconciler with the engine the configuration selects.
func New(st store.Store, cfg *config.Config, log logging.Logger) (*Reconciler, error) {
	if log == nil {
		log = logging.GetLogger()
	}
	var matcher Matcher
	switch cfg.Reconciliation.Strategy {
	case "hierarchical":
		matcher = NewHierarchicalMatcher()
	case "fuzzy":
		matcher = NewFuzzyMatcher(
			cfg.Reconciliation.FuzzyThreshold,
			cfg.Reconciliation.InstantWindow,
			cfg.Reconciliation.InvoiceWindow,
		)
	default:
		return nil, fmt.Errorf("unknown reconciliation strategy %q", cfg.Reconciliation.Strategy)
	}
	return &Reconciler{
		store:      st,
		matcher:    matcher,
		windowDays: cfg.Reconciliation.WindowDays,
		log:        log,
	}, nil
}

// NewWithMatcher wires an explicit engine. Tests use it.
func NewWithMatcher(st store.Store, matcher Matcher, windowDays int, log logging.Logger) *Reconciler {
	if log == nil {
		log = logging.GetLogger()
	}
	return &Reconciler{store: st, matcher: matcher, windowDays: windowDays, log: log}
}

// Run reconciles every unlinked statement transaction of one tenant. A match
// whose winning receipt has an indistinguishable twin among the candidates,
// another receipt with the same amount and the same date, is suppressed:
// linking either copy automatically would be a guess.
func (r *Reconciler) Run(ctx context.Context, tenantID uuid.UUID) (*Result, error) {
	txs, err := r.store.ListUnlinkedStatementTransactions(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	result := &Result{TenantID: tenantID}
	var links []store.ReceiptLink

	for _, tx := range txs {
		result.TransactionsProcessed++

		candidates, err := r.candidatesFor(ctx, tx)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			continue
		}

		match, ok := r.matcher.Match(tx, candidates)
		if !ok {
			continue
		}
		if indistinguishableCandidates(candidates, match.ReceiptID) > 1 {
			result.AmbiguousSkipped++
			r.log.Debug("skipping ambiguous match",
				logging.Field{Key: "transaction_id", Value: tx.ID.String()},
				logging.Field{Key: "receipt_id", Value: match.ReceiptID.String()})
			continue
		}
		links = append(links, store.ReceiptLink{
			TransactionID: tx.ID,
			ReceiptID:     match.ReceiptID,
			Score:         match.Score,
			MatchType:     match.Type,
		})
		result.MatchesFound++
		r.log.Info("transaction reconciled",
			logging.Field{Key: "transaction_id", Value: tx.ID.String()},
			logging.Field{Key: "receipt_id", Value: match.ReceiptID.String()},
			logging.Field{Key: "match_type", Value: string(match.Type)},
			logging.Field{Key: "score", Value: match.Score})
	}

	// All links of a run commit together. A crash mid-run cannot leave a
	// half-reconciled tenant behind.
	if err := r.store.LinkReceipts(ctx, tenantID, links); err != nil {
		return nil, fmt.Errorf("commit links: %w", err)
	}

	r.log.Info("reconciliation run finished",
		logging.Field{Key: "tenant_id", Value: tenantID.String()},
		logging.Field{Key: "processed", Value: result.TransactionsProcessed},
		logging.Field{Key: "matched", Value: result.MatchesFound},
		logging.Field{Key: "ambiguous", Value: result.AmbiguousSkipped})
	return result, nil
}

// ManualLink records a human decision. It bypasses the engine entirely and
// always writes score 1.0. The transaction must come from a bank statement
// and the receipt must be a different document than the transaction's own.
func (r *Reconciler) ManualLink(ctx context.Context, tenantID, transactionID, receiptID uuid.UUID) error {
	tx, err := r.store.GetTransaction(ctx, tenantID, transactionID)
	if err != nil {
		return fmt.Errorf("transaction lookup: %w", err)
	}
	if tx.DocumentID == receiptID {
		return fmt.Errorf("transaction %s cannot be proved by its own document", transactionID)
	}
	source, err := r.store.GetDocument(ctx, tenantID, tx.DocumentID)
	if err != nil {
		return fmt.Errorf("source document lookup: %w", err)
	}
	if source.DocType != models.DocTypeBankStatement {
		return fmt.Errorf("transaction %s does not belong to a bank statement", transactionID)
	}
	receipt, err := r.store.GetDocument(ctx, tenantID, receiptID)
	if err != nil {
		return fmt.Errorf("receipt lookup: %w", err)
	}
	if receipt.DocType != models.DocTypeReceipt {
		return fmt.Errorf("document %s is not a receipt", receiptID)
	}
	return r.store.LinkReceipt(ctx, tenantID, transactionID, receiptID, 1.0, models.MatchManual)
}

// candidatesFor loads receipts uploaded around the transaction date. The
// window uses the document's upload time, not the receipt's printed date,
// so receipts with an unreadable date still surface.
func (r *Reconciler) candidatesFor(ctx context.Context, tx models.Transaction) ([]store.ReceiptCandidate, error) {
	ref := time.Now().UTC()
	if tx.Date != nil {
		ref = *tx.Date
	}
	from := ref.AddDate(0, 0, -r.windowDays)
	to := ref.AddDate(0, 0, r.windowDays)
	if now := time.Now().UTC(); to.Before(now) {
		to = now
	}
	return r.store.ListReceiptCandidates(ctx, tx.TenantID, from, to)
}

// indistinguishableCandidates counts candidates carrying the same amount and
// the same date as the selected receipt, the receipt itself included.
// Receipts whose extraction recovered neither amount nor date are never
// twins of each other; the engine already told them apart by raw text.
func indistinguishableCandidates(candidates []store.ReceiptCandidate, receiptID uuid.UUID) int {
	var chosen *store.ReceiptCandidate
	for i := range candidates {
		if candidates[i].Document.ID == receiptID {
			chosen = &candidates[i]
			break
		}
	}
	if chosen == nil {
		return 1
	}
	if chosen.Amount.IsZero() && chosen.Date == nil {
		return 1
	}
	n := 0
	for i := range candidates {
		if !candidates[i].Amount.Equal(chosen.Amount) {
			continue
		}
		if sameDay(candidates[i].Date, chosen.Date) {
			n++
		}
	}
	return n
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Format(dateutils.LayoutISO) == b.Format(dateutils.LayoutISO)
}
