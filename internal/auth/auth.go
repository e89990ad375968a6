// Package auth verifies that the current call was authorized by a claimed
// principal.
//
// The claim core only sees the Verifier interface. Credentials presented by
// a call (a bearer token, an API key) travel in the context and are
// attached at the edge: the HTTP middleware or the CLI.
package auth

import (
	"context"
	"errors"
	"fmt"
)

// Principal is an opaque identity capable of being authenticated.
type Principal string

// Verifier confirms that the current call was authorized by principal.
// Implementations return an error wrapping ErrUnauthorized when it was not.
type Verifier interface {
	Verify(ctx context.Context, principal Principal) error
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, principal Principal) error

// Verify implements Verifier.
func (f VerifierFunc) Verify(ctx context.Context, principal Principal) error {
	return f(ctx, principal)
}

// ErrUnauthorized is wrapped by every verification failure.
var ErrUnauthorized = errors.New("unauthorized")

// Credentials are the proofs presented by a call.
type Credentials struct {
	// Token is a bearer JWT.
	Token string
	// APIKey is a shared secret checked against a keyring.
	APIKey string
}

type credentialsKey struct{}

// WithCredentials returns a context carrying creds.
func WithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// CredentialsFrom extracts credentials attached by WithCredentials.
func CredentialsFrom(ctx context.Context) (Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey{}).(Credentials)
	return creds, ok
}

func unauthorized(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

// Any succeeds when at least one verifier accepts the principal.
// Verifiers are tried in order; the joined failures are returned otherwise.
func Any(verifiers ...Verifier) Verifier {
	return VerifierFunc(func(ctx context.Context, principal Principal) error {
		if len(verifiers) == 0 {
			return unauthorized("no verifier configured")
		}
		var errs []error
		for _, v := range verifiers {
			err := v.Verify(ctx, principal)
			if err == nil {
				return nil
			}
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})
}

// AllowList accepts a fixed set of principals without credentials.
// It stands in for a real backend in scenarios and local runs.
type AllowList map[Principal]bool

// NewAllowList builds an AllowList.
func NewAllowList(principals ...Principal) AllowList {
	list := make(AllowList, len(principals))
	for _, p := range principals {
		list[p] = true
	}
	return list
}

// Verify implements Verifier.
func (l AllowList) Verify(_ context.Context, principal Principal) error {
	if principal == "" {
		return unauthorized("empty principal")
	}
	if !l[principal] {
		return unauthorized("principal %q is not allowed", principal)
	}
	return nil
}

// Insecure accepts any non-empty principal. Only for local development.
type Insecure struct{}

// Verify implements Verifier.
func (Insecure) Verify(_ context.Context, principal Principal) error {
	if principal == "" {
		return unauthorized("empty principal")
	}
	return nil
}
