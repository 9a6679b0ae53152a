// Package tax runs batch tax classification over a tenant's transactions.
// Calls to the external classifier are throttled: the provider enforces a
// strict request rate and a burst of rejections poisons the whole batch.
package tax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"soberana/docledger/internal/logging"
	"soberana/docledger/internal/models"
	"soberana/docledger/internal/store"
)

// Classifier produces a tax analysis for one transaction.
type Classifier interface {
	Classify(ctx context.Context, tx models.Transaction) (*models.TaxAnalysis, error)
}

// BatchResult summarizes one analysis run.
type BatchResult struct {
	TenantID uuid.UUID
	Analyzed int
	Skipped  int
	Failed   int
}

// Analyzer walks a tenant's transactions and persists one analysis per
// transaction. Manual overrides and finalized records are never touched.
type Analyzer struct {
	store      store.Store
	classifier Classifier
	limiter    *rate.Limiter
	log        logging.Logger
}

func NewAnalyzer(st store.Store, classifier Classifier, throttle time.Duration, log logging.Logger) *Analyzer {
	if log == nil {
		log = logging.GetLogger()
	}
	return &Analyzer{
		store:      st,
		classifier: classifier,
		limiter:    rate.NewLimiter(rate.Every(throttle), 1),
		log:        log,
	}
}

// RunBatch classifies every eligible transaction of the tenant. A failed
// classification is logged and counted; it never aborts the rest of the
// batch.
func (a *Analyzer) RunBatch(ctx context.Context, tenantID uuid.UUID) (*BatchResult, error) {
	txs, err := a.store.ListTransactions(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	result := &BatchResult{TenantID: tenantID}
	for _, tx := range txs {
		if tx.IsFinalized {
			result.Skipped++
			continue
		}
		existing, err := a.store.GetTaxAnalysis(ctx, tenantID, tx.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return result, fmt.Errorf("analysis lookup: %w", err)
		}
		if existing != nil && existing.IsManualOverride {
			result.Skipped++
			continue
		}

		if err := a.limiter.Wait(ctx); err != nil {
			return result, err
		}

		analysis, err := a.classifier.Classify(ctx, tx)
		if err != nil {
			result.Failed++
			a.log.WithError(err).Warn("classification failed",
				logging.Field{Key: "transaction_id", Value: tx.ID.String()})
			continue
		}
		analysis.TenantID = tenantID
		analysis.TransactionID = tx.ID
		if err := a.store.SaveTaxAnalysis(ctx, analysis); err != nil {
			return result, fmt.Errorf("save analysis: %w", err)
		}
		result.Analyzed++
	}

	a.log.Info("tax batch finished",
		logging.Field{Key: "tenant_id", Value: tenantID.String()},
		logging.Field{Key: "analyzed", Value: result.Analyzed},
		logging.Field{Key: "skipped", Value: result.Skipped},
		logging.Field{Key: "failed", Value: result.Failed})
	return result, nil
}

// FakeClassifier returns canned analyses for tests.
type FakeClassifier struct {
	Analysis models.TaxAnalysis
	Err      error
	Calls    int
}

func (f *FakeClassifier) Classify(ctx context.Context, tx models.Transaction) (*models.TaxAnalysis, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	a := f.Analysis
	return &a, nil
}
