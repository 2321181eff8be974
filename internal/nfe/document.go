package nfe

// Element names follow the SEFAZ layout. Tags carry no namespace so documents
// match with or without the portalfiscal default namespace.

type nfeProc struct {
	NFe  nfeDoc  `xml:"NFe"`
	Prot protNFe `xml:"protNFe"`
}

type nfeDoc struct {
	InfNFe infNFe `xml:"infNFe"`
}

type infNFe struct {
	ID      string  `xml:"Id,attr"`
	Ide     ide     `xml:"ide"`
	Dest    dest    `xml:"dest"`
	Total   total   `xml:"total"`
	InfAdic infAdic `xml:"infAdic"`
}

type ide struct {
	NNF    string  `xml:"nNF"`
	DhEmi  string  `xml:"dhEmi"`
	DEmi   string  `xml:"dEmi"`
	FinNFe string  `xml:"finNFe"`
	TpNF   string  `xml:"tpNF"`
	NFref  []nfRef `xml:"NFref"`
}

type nfRef struct {
	RefNFe string `xml:"refNFe"`
	RefNF  struct {
		NNF string `xml:"nNF"`
	} `xml:"refNF"`
}

type dest struct {
	CNPJ  string `xml:"CNPJ"`
	CPF   string `xml:"CPF"`
	XNome string `xml:"xNome"`
}

type total struct {
	ICMSTot struct {
		VNF string `xml:"vNF"`
	} `xml:"ICMSTot"`
}

type infAdic struct {
	InfCpl  string    `xml:"infCpl"`
	ObsCont []obsCont `xml:"obsCont"`
}

type obsCont struct {
	Campo string `xml:"xCampo,attr"`
	Texto string `xml:"xTexto"`
}

type protNFe struct {
	InfProt struct {
		ChNFe string `xml:"chNFe"`
		CStat string `xml:"cStat"`
	} `xml:"infProt"`
}

type procEvento struct {
	Evento struct {
		InfEvento struct {
			ChNFe    string `xml:"chNFe"`
			TpEvento string `xml:"tpEvento"`
		} `xml:"infEvento"`
	} `xml:"evento"`
	RetEvento struct {
		InfEvento struct {
			CStat string `xml:"cStat"`
		} `xml:"infEvento"`
	} `xml:"retEvento"`
}

// SEFAZ codes.
const (
	finalityReturn      = "4"
	typeInbound         = "0"
	eventCancellation   = "110111"
	statusCancelled     = "101"
	statusCancelledLate = "151"
	statusEventOK       = "135"
	statusEventOKLate   = "155"
)

// accessKeyLength is the size of a chNFe/refNFe access key. The invoice
// number sits at offset 25 with 9 digits.
const (
	accessKeyLength = 44
	numberOffset    = 25
	numberDigits    = 9
)
