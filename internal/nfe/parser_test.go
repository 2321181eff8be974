package nfe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accessKey(number int) string {
	return fmt.Sprintf("35240312345678000190" + "55" + "001" + "%09d" + "1" + "12345678" + "9", number)
}

type invoiceXML struct {
	Refs     string
	Dest     string
	Note     string
	ObsCont  string
	Status   string
	DhEmi    string
	Number   int
	Finality string
	Total    string
}

func (x invoiceXML) String() string {
	if x.Finality == "" {
		x.Finality = "1"
	}
	if x.Status == "" {
		x.Status = "100"
	}
	if x.DhEmi == "" {
		x.DhEmi = "2024-03-01T10:15:00-03:00"
	}
	if x.Total == "" {
		x.Total = "100.00"
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
  <NFe>
    <infNFe Id="NFe%s" versao="4.00">
      <ide>
        <nNF>%d</nNF>
        <dhEmi>%s</dhEmi>
        <tpNF>1</tpNF>
        <finNFe>%s</finNFe>
        %s
      </ide>
      <dest>%s</dest>
      <total><ICMSTot><vNF>%s</vNF></ICMSTot></total>
      <infAdic><infCpl>%s</infCpl>%s</infAdic>
    </infNFe>
  </NFe>
  <protNFe><infProt><chNFe>%s</chNFe><cStat>%s</cStat></infProt></protNFe>
</nfeProc>`, accessKey(x.Number), x.Number, x.DhEmi, x.Finality, x.Refs, x.Dest, x.Total, x.Note, x.ObsCont, accessKey(x.Number), x.Status)
}

func cancellationEvent(number int) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<procEventoNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="1.00">
  <evento><infEvento><chNFe>%s</chNFe><tpEvento>110111</tpEvento></infEvento></evento>
  <retEvento><infEvento><cStat>135</cStat></infEvento></retEvento>
</procEventoNFe>`, accessKey(number))
}

func TestParse(t *testing.T) {
	doc := invoiceXML{
		Number: 123,
		Dest:   "<CNPJ>11222333000181</CNPJ><xNome>LOJA EXEMPLO LTDA</xNome>",
		Note:   "Pedido 99 Vendedor: ana",
	}

	rec, err := NewParser().Parse(context.Background(), strings.NewReader(doc.String()))
	require.NoError(t, err)

	assert.Equal(t, "123", rec.Key)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rec.EmissionDate)
	assert.True(t, rec.Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, model.SellerCode("ANA"), rec.Seller)
	assert.Equal(t, "LOJA EXEMPLO LTDA", rec.Buyer)
	assert.Equal(t, "11222333000181", rec.BuyerID)
	assert.Equal(t, "Pedido 99 Vendedor: ana", rec.Note)
	assert.False(t, rec.IsReturn)
	assert.False(t, rec.Cancelled)
	assert.Empty(t, rec.OriginalKey)
}

func TestParse_LateEveningKeepsIssuerDay(t *testing.T) {
	doc := invoiceXML{Number: 1, DhEmi: "2024-03-01T23:30:00-03:00"}
	rec, err := NewParser().Parse(context.Background(), strings.NewReader(doc.String()))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.EmissionDate.Day())
}

func TestParse_Return(t *testing.T) {
	tests := []struct {
		name string
		refs string
		want string
	}{
		{name: "access key reference", refs: "<NFref><refNFe>" + accessKey(77) + "</refNFe></NFref>", want: "77"},
		{name: "model 1 reference", refs: "<NFref><refNF><nNF>000088</nNF></refNF></NFref>", want: "88"},
		{name: "no reference", refs: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := invoiceXML{Number: 500, Finality: "4", Refs: tt.refs}
			rec, err := NewParser().Parse(context.Background(), strings.NewReader(doc.String()))
			require.NoError(t, err)
			assert.True(t, rec.IsReturn)
			assert.Equal(t, tt.want, rec.OriginalKey)
		})
	}
}

func TestParse_CancelledByProtocol(t *testing.T) {
	doc := invoiceXML{Number: 5, Status: "101"}
	rec, err := NewParser().Parse(context.Background(), strings.NewReader(doc.String()))
	require.NoError(t, err)
	assert.True(t, rec.Cancelled)
}

func TestParse_SellerSources(t *testing.T) {
	tests := []struct {
		name string
		doc  invoiceXML
		opts []Option
		want model.SellerCode
	}{
		{name: "abbreviated", doc: invoiceXML{Note: "VEND-07 obrigado"}, want: "07"},
		{name: "feminine", doc: invoiceXML{Note: "Vendedora: carla"}, want: "CARLA"},
		{name: "obsCont wins", doc: invoiceXML{Note: "Vendedor: ANA", ObsCont: `<obsCont xCampo="Vendedor"><xTexto>bruno</xTexto></obsCont>`}, want: "BRUNO"},
		{name: "absent", doc: invoiceXML{Note: "sem observações"}, want: model.NoSeller},
		{name: "custom pattern", doc: invoiceXML{Note: "[op=ZE]"}, opts: []Option{WithSellerPattern(regexp.MustCompile(`op=(\w+)`))}, want: "ZE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.doc.Number = 10
			rec, err := NewParser(tt.opts...).Parse(context.Background(), strings.NewReader(tt.doc.String()))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Seller)
		})
	}
}

func TestParse_BuyerDirectory(t *testing.T) {
	dir := NewBuyerDirectory(map[string]string{"123.456.789-09": "Maria"})
	doc := invoiceXML{Number: 3, Dest: "<CPF>12345678909</CPF><xNome>MARIA DA SILVA</xNome>"}

	rec, err := NewParser(WithBuyers(dir)).Parse(context.Background(), strings.NewReader(doc.String()))
	require.NoError(t, err)
	assert.Equal(t, "Maria", rec.Buyer)
	assert.Equal(t, "12345678909", rec.BuyerID)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want error
	}{
		{name: "malformed", xml: "<nfeProc><NFe>", want: common.ErrValidation},
		{name: "empty", xml: "", want: ErrNotInvoice},
		{name: "foreign root", xml: "<invoice/>", want: ErrNotInvoice},
		{name: "event", xml: cancellationEvent(1), want: ErrNotInvoice},
		{name: "bad total", xml: invoiceXML{Number: 1, Total: "abc"}.String(), want: common.ErrValidation},
		{name: "bad date", xml: invoiceXML{Number: 1, DhEmi: "01/03/2024"}.String(), want: common.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse(context.Background(), strings.NewReader(tt.xml))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParse_Latin1(t *testing.T) {
	body := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<NFe><infNFe><ide><nNF>9</nNF><dEmi>2024-03-02</dEmi></ide>" +
		"<dest><xNome>JO\xc3O</xNome></dest></infNFe></NFe>"

	rec, err := NewParser().Parse(context.Background(), strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "JOÃO", rec.Buyer)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), rec.EmissionDate)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a-cancel.xml", cancellationEvent(2))
	writeFile(t, dir, "b.xml", invoiceXML{Number: 1, Note: "Vendedor: ana"}.String())
	writeFile(t, dir, "c.xml", invoiceXML{Number: 2}.String())
	writeFile(t, dir, "d.xml", "<catalog/>")
	writeFile(t, dir, "notes.txt", "ignored")

	byKey, err := NewParser().ParseDir(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, byKey, 2)
	assert.False(t, byKey["1"].Cancelled)
	assert.True(t, byKey["2"].Cancelled, "cancellation applies even when read before the invoice")
}

func TestParseFiles_MalformedFails(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.xml", invoiceXML{Number: 1}.String())
	bad := writeFile(t, dir, "bad.xml", "<nfeProc>")

	_, err := NewParser().ParseFiles(context.Background(), []string{good, bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.xml")
}

func TestParseFiles_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewParser().ParseFiles(ctx, []string{"x.xml"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNumberFromAccessKey(t *testing.T) {
	assert.Equal(t, "4567", numberFromAccessKey(accessKey(4567)))
	assert.Empty(t, numberFromAccessKey("123"))
}
