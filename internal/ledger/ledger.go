package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mnshuhailey/ppa-sap/internal/sap"
)

var ErrDuplicate = errors.New("ledger entry already exists")

// Status is the processing state recorded for a key.
type Status string

const (
	// StatusPushed marks a business record emitted in an outbound file.
	StatusPushed Status = "Push to SFTP"
	// StatusRead marks an acknowledgement file, keyed by file name, as consumed.
	StatusRead Status = "Read"
)

// Entry is one row of the integration ledger.
type Entry struct {
	ID        int64
	RunID     uuid.UUID
	Doc       sap.DocType
	Key       string
	Raw       string
	Status    Status
	CreatedAt time.Time
}
