package claims

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/roach88/claimledger/internal/kv"
)

// Storage keys.
const (
	counterKey     = "claimledger/counter"
	claimKeyPrefix = "claimledger/claim/"
)

func claimKey(id ID) string {
	return fmt.Sprintf("%s%020d", claimKeyPrefix, uint64(id))
}

// readCounter returns the last assigned id, 0 when none.
func readCounter(r kv.Reader) (ID, error) {
	raw, found, err := r.Get(counterKey)
	if err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	if !found {
		return 0, nil
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, corrupt(fmt.Errorf("decode counter %q: %w", raw, err))
	}
	return ID(n), nil
}

// corrupt marks undecodable stored bytes as a store failure. Decoding errors
// can carry an InvalidArgument from Status.UnmarshalText, which must not
// leak out as a caller mistake.
func corrupt(err error) error {
	return &Error{Code: CodeStore, Message: "stored record is corrupt", Err: err}
}

func writeCounter(txn kv.Txn, id ID) error {
	if err := txn.Set(counterKey, []byte(id.String())); err != nil {
		return fmt.Errorf("write counter: %w", err)
	}
	return nil
}

// nextID is the id the next created claim receives.
func nextID(last ID) (ID, error) {
	if uint64(last) == math.MaxUint64 {
		return 0, &Error{Code: CodeStore, Message: "claim id space exhausted"}
	}
	return last + 1, nil
}

func readClaim(r kv.Reader, id ID) (Claim, bool, error) {
	raw, found, err := r.Get(claimKey(id))
	if err != nil {
		return Claim{}, false, fmt.Errorf("read claim %d: %w", id, err)
	}
	if !found {
		return Claim{}, false, nil
	}
	var c Claim
	if err := json.Unmarshal(raw, &c); err != nil {
		return Claim{}, false, corrupt(fmt.Errorf("decode claim %d: %w", id, err))
	}
	if c.Documents == nil {
		c.Documents = []string{}
	}
	return c, true, nil
}

// loadClaim is readClaim with absence mapped to NotFound.
func loadClaim(r kv.Reader, id ID) (Claim, error) {
	c, found, err := readClaim(r, id)
	if err != nil {
		return Claim{}, err
	}
	if !found {
		return Claim{}, notFound(id)
	}
	return c, nil
}

func writeClaim(txn kv.Txn, c Claim) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode claim %d: %w", c.ID, err)
	}
	if err := txn.Set(claimKey(c.ID), data); err != nil {
		return fmt.Errorf("write claim %d: %w", c.ID, err)
	}
	return nil
}
