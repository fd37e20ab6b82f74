//go:build !darwin

package source

import (
	"context"
	"fmt"

	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/model"
)

// osMediaSnapshot on non-Darwin platforms is an MPRIS-shaped stub: it
// reports unavailable rather than guess at a D-Bus binding absent from the
// reference corpus. Wiring a real org.mpris.MediaPlayer2 client is tracked
// as a follow-up, not attempted here.
func osMediaSnapshot(ctx context.Context) (*model.PlaybackSnapshot, error) {
	return nil, nil
}

func osMediaControl(ctx context.Context, cmd Command) error {
	return errs.Misconfigured(fmt.Sprintf("osmedia control %q is unavailable on this platform", cmd.Action), nil)
}
