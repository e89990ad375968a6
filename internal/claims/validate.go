package claims

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type createInput struct {
	Claimant     string   `validate:"required"`
	PolicyNumber string   `validate:"required"`
	Documents    []string `validate:"dive,required"`
}

type documentInput struct {
	DocumentRef string `validate:"required"`
}

// checkStruct runs the tag rules and flattens failures into one
// InvalidArgument error.
func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalidArgument("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return invalidArgument("%s", strings.Join(msgs, "; "))
}

func (l Limits) checkPolicyNumber(policyNumber string) error {
	if l.MaxPolicyNumberBytes > 0 && len(policyNumber) > l.MaxPolicyNumberBytes {
		return invalidArgument("policy number is %d bytes, limit is %d", len(policyNumber), l.MaxPolicyNumberBytes)
	}
	return nil
}

func (l Limits) checkDocumentRef(ref string) error {
	if l.MaxDocumentRefBytes > 0 && len(ref) > l.MaxDocumentRefBytes {
		return invalidArgument("document ref is %d bytes, limit is %d", len(ref), l.MaxDocumentRefBytes)
	}
	return nil
}

func (l Limits) checkDocumentCount(n int) error {
	if l.MaxDocuments > 0 && n > l.MaxDocuments {
		return invalidArgument("claim would hold %d documents, limit is %d", n, l.MaxDocuments)
	}
	return nil
}

func (r Rules) validateCreate(claimant Principal, policyNumber string, docs []string) error {
	if r.RequireNonEmpty {
		if err := checkStruct(createInput{
			Claimant:     string(claimant),
			PolicyNumber: policyNumber,
			Documents:    docs,
		}); err != nil {
			return err
		}
	}
	if err := r.Limits.checkPolicyNumber(policyNumber); err != nil {
		return err
	}
	if err := r.Limits.checkDocumentCount(len(docs)); err != nil {
		return err
	}
	for _, d := range docs {
		if err := r.Limits.checkDocumentRef(d); err != nil {
			return err
		}
	}
	return nil
}

func (r Rules) validateDocument(ref string) error {
	if r.RequireNonEmpty {
		if err := checkStruct(documentInput{DocumentRef: ref}); err != nil {
			return err
		}
	}
	return r.Limits.checkDocumentRef(ref)
}
