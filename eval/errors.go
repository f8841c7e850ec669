package eval

import (
	"fmt"

	"github.com/binspec/binspec/errs"
	"github.com/binspec/binspec/token"
)

func errExpected(what string, got token.Token) error {
	return errs.Compile(fmt.Sprintf("expected %s, got %q", what, got.Text))
}
