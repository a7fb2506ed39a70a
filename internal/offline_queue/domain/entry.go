package domain

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

var (
	ErrUnsupportedTable     = errors.New("table is not replayable")
	ErrUnsupportedOperation = errors.New("unsupported queue operation")
	ErrMissingRowID         = errors.New("payload has no id")
	ErrInvalidPayload       = errors.New("payload must be a JSON object")
	ErrEntryNotFound        = errors.New("queue entry not found")
)

// Operation is the mutation a queued entry replays.
type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// ParseOperation accepts any letter case ("INSERT", "insert").
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(s))); op {
	case OperationInsert, OperationUpdate, OperationDelete:
		return op, nil
	}
	return "", ErrUnsupportedOperation
}

// Entry is a mutation recorded while the client was offline.
type Entry struct {
	ID        string          `json:"id"`
	Table     string          `json:"table"`
	Operation Operation       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	// Fingerprint identifies entries with the same content. It is diagnostic
	// only; duplicates are replayed like any other entry.
	Fingerprint string `json:"fingerprint"`
}

// RowID extracts the "id" field that update and delete target.
func (e Entry) RowID() (string, error) {
	var head struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(e.Payload, &head); err != nil {
		return "", err
	}
	switch v := head.ID.(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		b, _ := json.Marshal(v)
		return string(b), nil
	}
	return "", ErrMissingRowID
}

// Fingerprint hashes table, operation and payload with SHA3-256.
func Fingerprint(table string, op Operation, payload []byte) string {
	h := sha3.New256()
	h.Write([]byte(table))
	h.Write([]byte{0})
	h.Write([]byte(op))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// ReplayReport summarizes one replay pass.
type ReplayReport struct {
	Applied   int      `json:"applied"`
	Failed    int      `json:"failed"`
	Remaining int      `json:"remaining"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}
