// Package nfe reads fiscal invoice (NF-e) XML documents, including the
// authorization envelope and cancellation events.
package nfe

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/service"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var (
	// ErrNotInvoice is returned by Parse for XML that is not an invoice, such
	// as an event envelope.
	ErrNotInvoice = errors.New("document is not an NF-e invoice")
	// ErrMissingNumber is returned when an invoice carries no nNF.
	ErrMissingNumber = errors.New("invoice has no number")
)

// DefaultSellerPattern finds the seller code in the free-text complement,
// e.g. "Vendedor: ANA" or "VEND-07".
var DefaultSellerPattern = regexp.MustCompile(`(?i)\bvend(?:edora|edor)?\s*[:\-.]?\s*([A-Za-z0-9]+)`)

var _ service.InvoiceParser = (*Parser)(nil)

// Parser implements NF-e parsing.
type Parser struct {
	buyers        *BuyerDirectory
	sellerPattern *regexp.Regexp
}

// Option configures a Parser.
type Option func(*Parser)

// WithBuyers resolves buyer names through a directory.
func WithBuyers(d *BuyerDirectory) Option {
	return func(p *Parser) { p.buyers = d }
}

// WithSellerPattern overrides how the seller is extracted from the notes. The
// first capture group is the seller code.
func WithSellerPattern(re *regexp.Regexp) Option {
	return func(p *Parser) { p.sellerPattern = re }
}

// NewParser creates a new NF-e parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{sellerPattern: DefaultSellerPattern}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// document is one decoded XML file: either an invoice or a cancellation of one.
type document struct {
	invoice   *model.InvoiceXMLRecord
	cancelKey string
}

// Parse reads one invoice document.
func (p *Parser) Parse(ctx context.Context, r io.Reader) (model.InvoiceXMLRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.InvoiceXMLRecord{}, err
	}
	doc, err := p.decode(r)
	if err != nil {
		return model.InvoiceXMLRecord{}, err
	}
	if doc.invoice == nil {
		return model.InvoiceXMLRecord{}, common.NewValidationError(ErrNotInvoice, "cancellation event for %s", doc.cancelKey)
	}
	return *doc.invoice, nil
}

// ParseFiles reads many documents and returns invoices by normalized number.
// Cancellation events flag the invoice they refer to regardless of file
// order. Files whose root element is not NF-e related are skipped.
func (p *Parser) ParseFiles(ctx context.Context, paths []string) (map[string]model.InvoiceXMLRecord, error) {
	byKey := make(map[string]model.InvoiceXMLRecord, len(paths))
	var cancelled []string
	var skipped int

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := p.decodeFile(path)
		switch {
		case errors.Is(err, ErrNotInvoice):
			slog.Debug("Skipping non NF-e XML", "file", path)
			skipped++
			continue
		case err != nil:
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}

		if doc.invoice == nil {
			cancelled = append(cancelled, doc.cancelKey)
			continue
		}

		inv := *doc.invoice
		if prev, dup := byKey[inv.Key]; dup {
			slog.Warn("Invoice present in more than one XML, keeping the latest",
				"key", inv.Key, "file", path)
			inv.Cancelled = inv.Cancelled || prev.Cancelled
		}
		byKey[inv.Key] = inv
	}

	for _, key := range cancelled {
		inv, ok := byKey[key]
		if !ok {
			slog.Warn("Cancellation event for an invoice not in this batch", "key", key)
			continue
		}
		inv.Cancelled = true
		byKey[key] = inv
	}

	slog.Info("Parsed NF-e documents",
		"files", len(paths),
		"invoices", len(byKey),
		"cancellation_events", len(cancelled),
		"skipped", skipped)

	return byKey, nil
}

// ParseDir reads every .xml file in a directory, in name order.
func (p *Parser) ParseDir(ctx context.Context, dir string) (map[string]model.InvoiceXMLRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".xml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return p.ParseFiles(ctx, paths)
}

func (p *Parser) decodeFile(path string) (document, error) {
	f, err := os.Open(path)
	if err != nil {
		return document{}, fmt.Errorf("failed to open invoice XML: %w", err)
	}
	defer func() { _ = f.Close() }()
	return p.decode(f)
}

// decode dispatches on the root element.
func (p *Parser) decode(r io.Reader) (document, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return document{}, common.NewValidationError(ErrNotInvoice, "empty document")
		}
		if err != nil {
			return document{}, common.NewValidationError(err, "malformed XML")
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "nfeProc":
			var proc nfeProc
			if err := dec.DecodeElement(&proc, &start); err != nil {
				return document{}, common.NewValidationError(err, "malformed nfeProc")
			}
			inv, err := p.toRecord(proc.NFe.InfNFe)
			if err != nil {
				return document{}, err
			}
			switch proc.Prot.InfProt.CStat {
			case statusCancelled, statusCancelledLate:
				inv.Cancelled = true
			}
			return document{invoice: &inv}, nil

		case "NFe":
			var nfe nfeDoc
			if err := dec.DecodeElement(&nfe, &start); err != nil {
				return document{}, common.NewValidationError(err, "malformed NFe")
			}
			inv, err := p.toRecord(nfe.InfNFe)
			if err != nil {
				return document{}, err
			}
			return document{invoice: &inv}, nil

		case "procEventoNFe":
			var ev procEvento
			if err := dec.DecodeElement(&ev, &start); err != nil {
				return document{}, common.NewValidationError(err, "malformed event")
			}
			info := ev.Evento.InfEvento
			status := ev.RetEvento.InfEvento.CStat
			if info.TpEvento != eventCancellation || (status != statusEventOK && status != statusEventOKLate) {
				return document{}, common.NewValidationError(ErrNotInvoice, "event %s is not an accepted cancellation", info.TpEvento)
			}
			key := numberFromAccessKey(info.ChNFe)
			if key == "" {
				return document{}, common.NewValidationError(ErrMissingNumber, "cancellation event with invalid key %q", info.ChNFe)
			}
			return document{cancelKey: key}, nil

		default:
			return document{}, common.NewValidationError(ErrNotInvoice, "unexpected root element %q", start.Name.Local)
		}
	}
}

func (p *Parser) toRecord(inf infNFe) (model.InvoiceXMLRecord, error) {
	key := model.NormalizeKey(inf.Ide.NNF)
	if key == "" {
		key = numberFromAccessKey(strings.TrimPrefix(inf.ID, "NFe"))
	}
	if key == "" {
		return model.InvoiceXMLRecord{}, common.NewValidationError(ErrMissingNumber, "invoice %q", inf.ID)
	}

	emitted, err := emissionDate(inf.Ide)
	if err != nil {
		return model.InvoiceXMLRecord{}, common.NewValidationError(err, "invoice %s", key)
	}

	amount := decimal.Zero
	if v := strings.TrimSpace(inf.Total.ICMSTot.VNF); v != "" {
		amount, err = decimal.NewFromString(v)
		if err != nil {
			return model.InvoiceXMLRecord{}, common.NewValidationError(err, "invoice %s: invalid vNF %q", key, v)
		}
	}

	original := originalKey(inf.Ide.NFref)
	isReturn := inf.Ide.FinNFe == finalityReturn || (inf.Ide.TpNF == typeInbound && original != "")

	buyerID := digits(inf.Dest.CNPJ + inf.Dest.CPF)
	buyer := strings.TrimSpace(inf.Dest.XNome)
	if name, ok := p.buyers.Lookup(buyerID); ok {
		buyer = name
	}

	note := strings.TrimSpace(inf.InfAdic.InfCpl)
	return model.InvoiceXMLRecord{
		Key:          key,
		EmissionDate: emitted,
		Amount:       amount,
		Seller:       p.seller(inf.InfAdic),
		Buyer:        buyer,
		BuyerID:      buyerID,
		Note:         note,
		OriginalKey:  original,
		IsReturn:     isReturn,
	}, nil
}

// seller prefers a structured obsCont field over the free-text complement.
func (p *Parser) seller(adic infAdic) model.SellerCode {
	for _, obs := range adic.ObsCont {
		if strings.HasPrefix(model.FoldLabel(obs.Campo), "VEND") {
			if code := model.NormalizeSeller(obs.Texto); !code.IsZero() {
				return code
			}
		}
	}
	if p.sellerPattern == nil {
		return model.NoSeller
	}
	m := p.sellerPattern.FindStringSubmatch(adic.InfCpl)
	if len(m) < 2 {
		return model.NoSeller
	}
	return model.NormalizeSeller(m[1])
}

// emissionDate returns the calendar day of issue, as seen in the issuer's
// own offset, at midnight UTC.
func emissionDate(id ide) (time.Time, error) {
	if s := strings.TrimSpace(id.DhEmi); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid dhEmi %q", s)
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	if s := strings.TrimSpace(id.DEmi); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid dEmi %q", s)
		}
		return t, nil
	}
	return time.Time{}, errors.New("no emission date")
}

func originalKey(refs []nfRef) string {
	for _, ref := range refs {
		if k := numberFromAccessKey(ref.RefNFe); k != "" {
			return k
		}
		if k := model.NormalizeKey(ref.RefNF.NNF); k != "" {
			return k
		}
	}
	return ""
}

// numberFromAccessKey extracts the invoice number from a 44-digit access key.
func numberFromAccessKey(key string) string {
	key = digits(key)
	if len(key) != accessKeyLength {
		return ""
	}
	return model.NormalizeKey(key[numberOffset : numberOffset+numberDigits])
}

// charsetReader accepts the ISO-8859-1 declarations some emitters still use.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "utf-8", "utf8", "":
		return input, nil
	case "iso-8859-1", "latin1":
		return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(input, charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
}
