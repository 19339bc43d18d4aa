// Package export renders invoices and reconciliation runs to Excel
// workbooks for review outside the system.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/domain/entity"
	"github.com/lodgetix/invoicing/internal/matching"
)

// ExcelWriter writes workbooks into a fixed output directory.
type ExcelWriter struct {
	outputDir string
	logger    *zap.Logger
}

// NewExcelWriter creates a writer. The output directory is created on
// first use.
func NewExcelWriter(outputDir string, logger *zap.Logger) *ExcelWriter {
	return &ExcelWriter{
		outputDir: outputDir,
		logger:    logger,
	}
}

// WriteInvoice renders one invoice to a workbook named after its
// invoice number and returns the written path.
func (w *ExcelWriter) WriteInvoice(invoice *entity.Invoice) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	w.setCell(f, sheet, "A1", "Tax Invoice")
	w.setCell(f, sheet, "A2", "Invoice Number")
	w.setCell(f, sheet, "B2", invoice.InvoiceNumber)
	w.setCell(f, sheet, "A3", "Date")
	w.setCell(f, sheet, "B3", invoice.Date.Format("2006-01-02"))
	w.setCell(f, sheet, "A4", "Status")
	w.setCell(f, sheet, "B4", string(invoice.Status))

	w.setCell(f, sheet, "A6", "Supplier")
	w.setCell(f, sheet, "B6", invoice.Supplier.Name)
	w.setCell(f, sheet, "A7", "ABN")
	w.setCell(f, sheet, "B7", invoice.Supplier.ABN)

	w.setCell(f, sheet, "A9", "Bill To")
	w.setCell(f, sheet, "B9", invoice.BillTo.Name)
	w.setCell(f, sheet, "A10", "Email")
	w.setCell(f, sheet, "B10", invoice.BillTo.Email)

	row := 12
	w.setCell(f, sheet, cell("A", row), "Description")
	w.setCell(f, sheet, cell("B", row), "Qty")
	w.setCell(f, sheet, cell("C", row), "Unit Price")
	w.setCell(f, sheet, cell("D", row), "Amount")
	row++
	row = w.writeItems(f, sheet, invoice.Items, row, "")

	row++
	w.setCell(f, sheet, cell("C", row), "Subtotal")
	w.setCell(f, sheet, cell("D", row), invoice.Subtotal.StringFixed(2))
	row++
	w.setCell(f, sheet, cell("C", row), "Processing Fees")
	w.setCell(f, sheet, cell("D", row), invoice.ProcessingFees.StringFixed(2))
	row++
	w.setCell(f, sheet, cell("C", row), "Total")
	w.setCell(f, sheet, cell("D", row), invoice.Total.StringFixed(2))
	row++
	w.setCell(f, sheet, cell("C", row), "GST Included")
	w.setCell(f, sheet, cell("D", row), invoice.GSTIncluded.StringFixed(2))

	name := invoice.InvoiceNumber
	if name == "" {
		name = "draft-" + invoice.ID
	}
	outputPath := filepath.Join(w.outputDir, name+".xlsx")
	if err := f.SaveAs(outputPath); err != nil {
		return "", fmt.Errorf("failed to save invoice workbook: %w", err)
	}

	w.logger.Info("Invoice workbook written",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("path", outputPath))
	return outputPath, nil
}

// writeItems writes lines depth-first; child lines are indented under
// their parent. Returns the next free row.
func (w *ExcelWriter) writeItems(f *excelize.File, sheet string, items []entity.InvoiceItem, row int, indent string) int {
	for _, item := range items {
		w.setCell(f, sheet, cell("A", row), indent+item.Description)
		w.setCell(f, sheet, cell("B", row), item.Quantity.String())
		w.setCell(f, sheet, cell("C", row), item.Price.StringFixed(2))
		w.setCell(f, sheet, cell("D", row), item.Amount().StringFixed(2))
		row++
		row = w.writeItems(f, sheet, item.SubItems, row, indent+"  ")
	}
	return row
}

// WriteReconciliationReport renders one reconciliation run: a summary
// block, confidence bucket counts, method counts, then one row per
// result with its issues.
func (w *ExcelWriter) WriteReconciliationReport(runAt time.Time, stats matching.Statistics, results []*entity.MatchResult) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	w.setCell(f, sheet, "A1", "Reconciliation Report")
	w.setCell(f, sheet, "A2", "Run At")
	w.setCell(f, sheet, "B2", runAt.Format(time.RFC3339))
	w.setCell(f, sheet, "A3", "Total")
	w.setCell(f, sheet, "B3", fmt.Sprintf("%d", stats.Total))
	w.setCell(f, sheet, "A4", "Matched")
	w.setCell(f, sheet, "B4", fmt.Sprintf("%d", stats.Matched))
	w.setCell(f, sheet, "A5", "Unmatched")
	w.setCell(f, sheet, "B5", fmt.Sprintf("%d", stats.Unmatched))

	row := 7
	w.setCell(f, sheet, cell("A", row), "Confidence Bucket")
	w.setCell(f, sheet, cell("B", row), "Count")
	row++
	for _, bucket := range []string{matching.BucketHigh, matching.BucketGood, matching.BucketReview, matching.BucketNoMatch} {
		w.setCell(f, sheet, cell("A", row), bucket)
		w.setCell(f, sheet, cell("B", row), fmt.Sprintf("%d", stats.ByBucket[bucket]))
		row++
	}

	row++
	w.setCell(f, sheet, cell("A", row), "Method")
	w.setCell(f, sheet, cell("B", row), "Count")
	row++
	for _, method := range []entity.MatchMethod{
		entity.MatchByPaymentID, entity.MatchByMetadata,
		entity.MatchByAmountTime, entity.MatchByEmailAmount, entity.MatchNone,
	} {
		w.setCell(f, sheet, cell("A", row), string(method))
		w.setCell(f, sheet, cell("B", row), fmt.Sprintf("%d", stats.ByMethod[method]))
		row++
	}

	row++
	w.setCell(f, sheet, cell("A", row), "Payment")
	w.setCell(f, sheet, cell("B", row), "Registration")
	w.setCell(f, sheet, cell("C", row), "Method")
	w.setCell(f, sheet, cell("D", row), "Confidence")
	w.setCell(f, sheet, cell("E", row), "Issues")
	row++
	for _, result := range results {
		w.setCell(f, sheet, cell("A", row), result.Payment.ID)
		if result.Registration != nil {
			w.setCell(f, sheet, cell("B", row), result.Registration.ID)
		}
		w.setCell(f, sheet, cell("C", row), string(result.Method))
		w.setCell(f, sheet, cell("D", row), fmt.Sprintf("%d", result.Confidence))
		for i, issue := range result.Issues {
			if i > 0 {
				row++
			}
			w.setCell(f, sheet, cell("E", row), issue)
		}
		row++
	}

	outputPath := filepath.Join(w.outputDir, "reconcile-"+runAt.Format("20060102-150405")+".xlsx")
	if err := f.SaveAs(outputPath); err != nil {
		return "", fmt.Errorf("failed to save report workbook: %w", err)
	}

	w.logger.Info("Reconciliation report written",
		zap.Int("results", len(results)),
		zap.String("path", outputPath))
	return outputPath, nil
}

func (w *ExcelWriter) setCell(f *excelize.File, sheet, cellRef, value string) {
	if err := f.SetCellValue(sheet, cellRef, value); err != nil {
		w.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cellRef),
			zap.Error(err))
	}
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
