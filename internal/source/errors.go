package source

import (
	"fmt"

	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

func errSourceNotFound(id trackkey.SourceID) error {
	return errs.NotFound(fmt.Sprintf("source %q is not registered", id), nil)
}

func errCapabilityUnsupported(id trackkey.SourceID, cap Capability) error {
	return errs.Misconfigured(fmt.Sprintf("source %q does not support %q", id, cap), nil)
}
