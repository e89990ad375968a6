// Package policy loads claim rules (bounds and the status transition graph)
// from a CUE file:
//
//	policy: {
//	    max_documents:           256
//	    max_document_ref_bytes:  2048
//	    max_policy_number_bytes: 128
//	    require_non_empty:       true
//	    transitions: {
//	        Pending:    ["InProgress", "Approved", "Denied"]
//	        InProgress: ["Approved", "Denied"]
//	    }
//	}
//
// Omitted bounds default to 0, meaning unbounded, and empty values are
// accepted unless require_non_empty is set. Omitting transitions leaves
// every move allowed.
package policy

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/claimledger/internal/claims"
)

//go:embed schema.cue
var schemaCUE string

// Error is a policy load failure with its source position when known.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	e := &Error{Field: "cue", Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}

// Load reads and parses a policy file.
func Load(path string) (claims.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return claims.Rules{}, fmt.Errorf("read policy: %w", err)
	}
	return Parse(path, data)
}

// Parse compiles CUE source against the policy schema.
func Parse(filename string, src []byte) (claims.Rules, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return claims.Rules{}, fmt.Errorf("compile policy schema: %w", err)
	}

	file := ctx.CompileBytes(src, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return claims.Rules{}, formatCUEError(err)
	}
	if !file.LookupPath(cue.ParsePath("policy")).Exists() {
		return claims.Rules{}, &Error{Field: "policy", Message: "policy is required", Pos: file.Pos()}
	}

	v := schema.Unify(file)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return claims.Rules{}, formatCUEError(err)
	}
	return decode(v.LookupPath(cue.ParsePath("policy")))
}

func decode(v cue.Value) (claims.Rules, error) {
	var rules claims.Rules
	var err error

	if rules.Limits.MaxDocuments, err = intField(v, "max_documents"); err != nil {
		return claims.Rules{}, err
	}
	if rules.Limits.MaxDocumentRefBytes, err = intField(v, "max_document_ref_bytes"); err != nil {
		return claims.Rules{}, err
	}
	if rules.Limits.MaxPolicyNumberBytes, err = intField(v, "max_policy_number_bytes"); err != nil {
		return claims.Rules{}, err
	}

	if rules.RequireNonEmpty, err = v.LookupPath(cue.ParsePath("require_non_empty")).Bool(); err != nil {
		return claims.Rules{}, formatCUEError(err)
	}

	transVal := v.LookupPath(cue.ParsePath("transitions"))
	if !transVal.Exists() {
		return rules, nil
	}

	rules.Transitions = claims.Transitions{}
	iter, err := transVal.Fields()
	if err != nil {
		return claims.Rules{}, formatCUEError(err)
	}
	for iter.Next() {
		from, err := statusAt(iter.Label(), iter.Value())
		if err != nil {
			return claims.Rules{}, err
		}

		targets := []claims.Status{}
		list, err := iter.Value().List()
		if err != nil {
			return claims.Rules{}, formatCUEError(err)
		}
		for list.Next() {
			name, err := list.Value().String()
			if err != nil {
				return claims.Rules{}, formatCUEError(err)
			}
			to, err := statusAt(name, list.Value())
			if err != nil {
				return claims.Rules{}, err
			}
			targets = append(targets, to)
		}
		rules.Transitions[from] = targets
	}
	return rules, nil
}

func intField(v cue.Value, name string) (int, error) {
	f := v.LookupPath(cue.ParsePath(name))
	n, err := f.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}

// statusAt resolves a canonical status name; only exact names are allowed
// in policy files.
func statusAt(name string, at cue.Value) (claims.Status, error) {
	s, err := claims.ParseStatus(name)
	if err != nil || s.String() != name {
		return 0, &Error{Field: "transitions", Message: fmt.Sprintf("unknown status %q", name), Pos: at.Pos()}
	}
	return s, nil
}
