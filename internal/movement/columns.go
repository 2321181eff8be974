package movement

import (
	"github.com/Veraticus/conciliador/internal/model"
)

type column int

const (
	colDate column = iota
	colKey
	colSeller
	colCorrectedSeller
	colMethod
	colAmount
	colKind
	colDescription
)

// headerAliases maps folded header labels onto columns. Sheets exported by
// different tills name the same column differently.
var headerAliases = map[string]column{
	"DATA":                colDate,
	"DATE":                colDate,
	"DATA PAGAMENTO":      colDate,
	"DATA DO PAGAMENTO":   colDate,
	"DIA":                 colDate,
	"NF":                  colKey,
	"NFE":                 colKey,
	"NF-E":                colKey,
	"NOTA":                colKey,
	"NOTA FISCAL":         colKey,
	"NUMERO NF":           colKey,
	"N NF":                colKey,
	"NO NF":               colKey,
	"INVOICE":             colKey,
	"KEY":                 colKey,
	"VENDEDOR":            colSeller,
	"VEND":                colSeller,
	"SELLER":              colSeller,
	"VENDEDOR CORRIGIDO":  colCorrectedSeller,
	"VENDEDOR CORRETO":    colCorrectedSeller,
	"CORRECAO":            colCorrectedSeller,
	"CORRECTED SELLER":    colCorrectedSeller,
	"FORMA":               colMethod,
	"FORMA DE PAGAMENTO":  colMethod,
	"FORMA PAGAMENTO":     colMethod,
	"PAGAMENTO":           colMethod,
	"PAYMENT":             colMethod,
	"PAYMENT METHOD":      colMethod,
	"VALOR":               colAmount,
	"VALOR TOTAL":         colAmount,
	"TOTAL":               colAmount,
	"AMOUNT":              colAmount,
	"TIPO":                colKind,
	"TYPE":                colKind,
	"OPERACAO":            colKind,
	"DESCRICAO":           colDescription,
	"HISTORICO":           colDescription,
	"DESCRIPTION":         colDescription,
	"OBS":                 colDescription,
	"OBSERVACAO":          colDescription,
}

// expenseKinds are the values of the kind column that mark an outflow.
var expenseKinds = map[string]bool{
	"DESPESA": true,
	"SAIDA":   true,
	"SANGRIA": true,
	"EXPENSE": true,
}

// layout records where each known column sits in the sheet.
type layout struct {
	index     map[column]int
	headerRow int
}

// detectLayout finds the header row among the first rows of the sheet. A
// header needs at least a date and an amount column.
func detectLayout(rows [][]string, maxScan int) (layout, bool) {
	for r := 0; r < len(rows) && r < maxScan; r++ {
		index := make(map[column]int)
		for c, cell := range rows[r] {
			col, ok := headerAliases[model.FoldLabel(cell)]
			if !ok {
				continue
			}
			if _, seen := index[col]; !seen {
				index[col] = c
			}
		}
		_, hasDate := index[colDate]
		_, hasAmount := index[colAmount]
		if hasDate && hasAmount {
			return layout{index: index, headerRow: r}, true
		}
	}
	return layout{}, false
}

// cell returns the trimmed value of a column in a row, or "" when the column
// is absent or the row is short.
func (l layout) cell(row []string, col column) string {
	i, ok := l.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return trimCell(row[i])
}
