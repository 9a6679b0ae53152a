// Package report exports reconciliation results as CSV for accountants.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"soberana/docledger/internal/dateutils"
	"soberana/docledger/internal/logging"
	"soberana/docledger/internal/models"
	"soberana/docledger/internal/store"
)

// Row is one exported transaction with its reconciliation state.
type Row struct {
	Date           string `csv:"Date"`
	Merchant       string `csv:"Merchant"`
	Amount         string `csv:"Amount"`
	Category       string `csv:"Category"`
	Reconciled     string `csv:"Reconciled"`
	ReceiptID      string `csv:"ReceiptID"`
	MatchType      string `csv:"MatchType"`
	MatchScore     string `csv:"MatchScore"`
	Classification string `csv:"TaxClassification"`
}

// Exporter writes tenant transaction reports.
type Exporter struct {
	store store.Store
	log   logging.Logger
}

func NewExporter(st store.Store, log logging.Logger) *Exporter {
	if log == nil {
		log = logging.GetLogger()
	}
	return &Exporter{store: st, log: log}
}

// WriteCSV exports every transaction of the tenant, ordered by date.
func (e *Exporter) WriteCSV(ctx context.Context, tenantID uuid.UUID, w io.Writer) error {
	txs, err := e.store.ListTransactions(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	rows := make([]Row, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, e.buildRow(ctx, tenantID, tx))
	}

	writer := csv.NewWriter(w)
	if err := gocsv.MarshalCSV(&rows, gocsv.NewSafeCSVWriter(writer)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	e.log.Info("report exported",
		logging.Field{Key: "tenant_id", Value: tenantID.String()},
		logging.Field{Key: "rows", Value: len(rows)})
	return nil
}

func (e *Exporter) buildRow(ctx context.Context, tenantID uuid.UUID, tx models.Transaction) Row {
	row := Row{
		Merchant:   tx.MerchantName,
		Amount:     tx.Amount.StringFixed(2),
		Category:   tx.Category,
		Reconciled: "no",
	}
	if tx.Date != nil {
		row.Date = tx.Date.Format(dateutils.LayoutISO)
	}
	if tx.ReceiptID != nil {
		row.Reconciled = "yes"
		row.ReceiptID = tx.ReceiptID.String()
		row.MatchType = string(tx.MatchType)
		row.MatchScore = fmt.Sprintf("%.2f", tx.MatchScore)
	}
	if analysis, err := e.store.GetTaxAnalysis(ctx, tenantID, tx.ID); err == nil {
		row.Classification = analysis.Classification
	}
	return row
}
