package claims

import (
	"github.com/google/uuid"
)

// OperationIDGenerator names each operation. The id ties log lines, spans
// and the notification of one operation together.
type OperationIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 operation ids.
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
