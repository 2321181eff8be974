package nfe

import (
	"strings"
)

// BuyerDirectory maps a buyer's tax document (CNPJ or CPF, digits only) to the
// name the store uses for them.
type BuyerDirectory struct {
	names map[string]string
}

// NewBuyerDirectory builds a directory; document keys may be formatted.
func NewBuyerDirectory(entries map[string]string) *BuyerDirectory {
	d := &BuyerDirectory{names: make(map[string]string, len(entries))}
	for doc, name := range entries {
		d.Add(doc, name)
	}
	return d
}

// Add registers or replaces one buyer.
func (d *BuyerDirectory) Add(document, name string) {
	doc := digits(document)
	name = strings.TrimSpace(name)
	if doc == "" || name == "" {
		return
	}
	d.names[doc] = name
}

// Lookup returns the registered name for a document.
func (d *BuyerDirectory) Lookup(document string) (string, bool) {
	if d == nil {
		return "", false
	}
	name, ok := d.names[digits(document)]
	return name, ok
}

// Len returns the number of registered buyers.
func (d *BuyerDirectory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
