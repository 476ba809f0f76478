package outbound

import (
	"github.com/mnshuhailey/ppa-sap/internal/sap"
	"github.com/mnshuhailey/ppa-sap/internal/source"
)

// Category is one candidate extract rendered with one template. Several
// categories may feed the same document.
type Category struct {
	Name     string
	Query    source.Query
	Template string
	// CreatedToday limits candidates to records created on the run's calendar day.
	CreatedToday bool
}

// Document lists the categories that make up one outbound document type.
type Document struct {
	Doc        sap.DocType
	Categories []Category
}

var documents = map[sap.DocType]Document{
	sap.FI07: {
		Doc: sap.FI07,
		Categories: []Category{
			{Name: "asnaf", Query: source.QueryAsnaf, Template: "FI07"},
		},
	},
	sap.FI09: {
		Doc: sap.FI09,
		Categories: []Category{
			{Name: "payee", Query: source.QueryInvoicePayee, Template: "FI09_PAYEE"},
			{Name: "recipient", Query: source.QueryInvoiceRecipient, Template: "FI09_RECIPIENT"},
		},
	},
	sap.FI10: {
		Doc: sap.FI10,
		Categories: []Category{
			{Name: "payee", Query: source.QueryDirectPayee, Template: "FI10_PAYEE", CreatedToday: true},
			{Name: "recipient", Query: source.QueryDirectRecipient, Template: "FI10_RECIPIENT", CreatedToday: true},
		},
	},
	sap.FI15: {
		Doc: sap.FI15,
		Categories: []Category{
			{Name: "cash_issuance", Query: source.QueryCashIssuance, Template: "FI15"},
		},
	},
}

// Lookup returns the outbound definition for doc.
func Lookup(doc sap.DocType) (Document, bool) {
	d, ok := documents[doc]
	return d, ok
}

// Docs returns the outbound document types in a stable order.
func Docs() []sap.DocType {
	return []sap.DocType{sap.FI07, sap.FI09, sap.FI10, sap.FI15}
}
