// Package movement reads the daily cash/movement spreadsheet kept at the till.
package movement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/service"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// headerScanRows bounds how far down the sheet the header row is searched.
const headerScanRows = 15

var (
	// ErrNoHeader is returned when no row carries both a date and an amount column.
	ErrNoHeader = errors.New("movement sheet has no recognizable header row")
	// ErrSheetNotFound is returned when the configured sheet does not exist.
	ErrSheetNotFound = errors.New("sheet not found")
)

var _ service.MovementParser = (*Parser)(nil)

// Parser implements movement spreadsheet parsing.
type Parser struct {
	// Sheet selects a worksheet by name; empty means the first one.
	Sheet string
}

// NewParser creates a new movement parser.
func NewParser(sheet string) *Parser {
	return &Parser{Sheet: sheet}
}

// ParseFile opens and parses a spreadsheet on disk.
func (p *Parser) ParseFile(ctx context.Context, path string) (*model.MovementBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open movement sheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	return p.Parse(ctx, f)
}

// Parse reads an .xlsx stream. Rows with an invoice number become movement
// records keyed by the normalized number; rows without one become no-invoice
// sales; rows typed as an outflow (or negative rows without a number) become
// expenses.
func (p *Parser) Parse(ctx context.Context, r io.Reader) (*model.MovementBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, common.NewValidationError(err, "failed to read movement sheet")
	}
	defer func() { _ = f.Close() }()

	sheet := p.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, common.NewValidationError(ErrSheetNotFound, "workbook has no sheets")
		}
		sheet = sheets[0]
	}
	if idx, idxErr := f.GetSheetIndex(sheet); idxErr != nil || idx < 0 {
		return nil, common.NewValidationError(ErrSheetNotFound, "sheet %q not found", sheet)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, common.NewValidationError(err, "failed to read rows of sheet %q", sheet)
	}

	cols, ok := detectLayout(rows, headerScanRows)
	if !ok {
		return nil, common.NewValidationError(ErrNoHeader, "sheet %q: expected a header with date and amount columns", sheet)
	}

	batch := &model.MovementBatch{
		InvoicesByKey:  make(map[string]model.MovementRecord),
		TotalsByMethod: make(map[model.PaymentMethod]decimal.Decimal),
	}

	var skipped int
	for i := cols.headerRow + 1; i < len(rows); i++ {
		if i%500 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		handled, err := p.parseRow(batch, cols, rows[i], i+1)
		if err != nil {
			return nil, err
		}
		if !handled {
			skipped++
		}
	}

	slog.Info("Parsed movement sheet",
		"sheet", sheet,
		"invoices", len(batch.InvoicesByKey),
		"no_invoice_sales", len(batch.NoInvoiceSales),
		"expenses", len(batch.Expenses),
		"skipped_rows", skipped)

	return batch, nil
}

// parseRow folds one data row into the batch. It reports false for rows that
// carry no movement (blank rows, subtotal lines, rows without an amount).
func (p *Parser) parseRow(batch *model.MovementBatch, cols layout, row []string, line int) (bool, error) {
	if isBlank(row) || isSubtotal(row) {
		return false, nil
	}

	rawAmount := cols.cell(row, colAmount)
	if rawAmount == "" {
		slog.Debug("Skipping movement row without amount", "row", line)
		return false, nil
	}
	amount, err := parseAmount(rawAmount)
	if err != nil {
		return false, common.NewValidationError(err, "row %d", line)
	}
	date, err := parseDate(cols.cell(row, colDate))
	if err != nil {
		return false, common.NewValidationError(err, "row %d", line)
	}

	method := model.NormalizePaymentMethod(cols.cell(row, colMethod))
	key := model.NormalizeKey(cols.cell(row, colKey))
	seller := model.NormalizeSeller(cols.cell(row, colSeller))
	description := cols.cell(row, colDescription)
	kind := model.FoldLabel(cols.cell(row, colKind))

	switch {
	case expenseKinds[kind] || (kind == "" && key == "" && amount.IsNegative()):
		expense := model.ExpenseEntry{
			Date:          date,
			Amount:        amount.Abs(),
			PaymentMethod: method,
			Description:   description,
		}
		batch.Expenses = append(batch.Expenses, expense)
		addTotal(batch, method, expense.Contribution())

	case key != "":
		record := model.MovementRecord{
			Key:             key,
			PaymentDate:     date,
			Amount:          amount,
			Seller:          seller,
			CorrectedSeller: model.NormalizeSeller(cols.cell(row, colCorrectedSeller)),
			PaymentMethod:   method,
		}
		if existing, dup := batch.InvoicesByKey[key]; dup {
			slog.Warn("Invoice listed more than once in movement sheet, amounts summed",
				"key", key, "row", line)
			record = mergeRecords(existing, record)
		}
		batch.InvoicesByKey[key] = record
		addTotal(batch, method, amount)

	default:
		batch.NoInvoiceSales = append(batch.NoInvoiceSales, model.NoInvoiceSale{
			Date:          date,
			Amount:        amount,
			Seller:        seller,
			PaymentMethod: method,
			Description:   description,
		})
		addTotal(batch, method, amount)
	}

	return true, nil
}

// mergeRecords combines split payments of one invoice. The first row wins for
// everything but the amount; missing sellers are filled from later rows.
func mergeRecords(first, next model.MovementRecord) model.MovementRecord {
	first.Amount = first.Amount.Add(next.Amount)
	first.Seller = model.FirstSeller(first.Seller, next.Seller)
	first.CorrectedSeller = model.FirstSeller(first.CorrectedSeller, next.CorrectedSeller)
	return first
}

func addTotal(batch *model.MovementBatch, method model.PaymentMethod, amount decimal.Decimal) {
	batch.TotalsByMethod[method] = batch.TotalsByMethod[method].Add(amount)
}

func isBlank(row []string) bool {
	for _, c := range row {
		if trimCell(c) != "" {
			return false
		}
	}
	return true
}

func isSubtotal(row []string) bool {
	for _, c := range row {
		if v := model.FoldLabel(c); v != "" {
			return v == "TOTAL" || v == "SUBTOTAL" || v == "TOTAL GERAL"
		}
	}
	return false
}
