package ack

import (
	"fmt"

	"github.com/mnshuhailey/ppa-sap/internal/sap"
)

// Profile describes the row layout of one acknowledgement document.
type Profile struct {
	Arity int
	// RecordIndicator, when set, selects data rows by their first field.
	// Other lines such as trailers are ignored.
	RecordIndicator string
}

const (
	statusArity = 3
	eventArity  = 6
)

var profiles = map[sap.DocType]Profile{
	sap.FI09: {Arity: statusArity},
	sap.FI10: {Arity: statusArity},
	sap.FI15: {Arity: statusArity},
	sap.FI16: {Arity: eventArity, RecordIndicator: "1"},
	sap.FI21: {Arity: eventArity, RecordIndicator: "1"},
}

func ProfileFor(doc sap.DocType) (Profile, error) {
	p, ok := profiles[doc]
	if !ok {
		return Profile{}, fmt.Errorf("no acknowledgement profile for %s", doc)
	}

	return p, nil
}
