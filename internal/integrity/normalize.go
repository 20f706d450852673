package integrity

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

var validate = validator.New()

// NormalizeEmail returns the comparison form of an email address: NFKC,
// trimmed, case folded. It fails with ErrInvalidInput when the result is not
// a syntactically valid address.
func NormalizeEmail(email string) (string, error) {
	n := canonical(email)
	if err := validate.Var(n, "required,email"); err != nil {
		return "", fmt.Errorf("%w: email %q", types.ErrInvalidInput, email)
	}
	return n, nil
}

// NormalizeUsername returns the comparison form of a username. Usernames
// may not be blank or contain whitespace.
func NormalizeUsername(username string) (string, error) {
	n := canonical(username)
	if n == "" || strings.ContainsAny(n, " \t\r\n") {
		return "", fmt.Errorf("%w: username %q", types.ErrInvalidInput, username)
	}
	if err := validate.Var(n, "max=150"); err != nil {
		return "", fmt.Errorf("%w: username too long", types.ErrInvalidInput)
	}
	return n, nil
}

func canonical(s string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
}
