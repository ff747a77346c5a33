package command

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vedran77/pulsesync/internal/service"
	"github.com/vedran77/pulsesync/internal/transport/rest"
)

func writeCommandError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())

	var apiErr *rest.APIError
	switch {
	case errors.Is(err, service.ErrNoIdentity):
		fmt.Fprintln(cmd.ErrOrStderr(), "Hint: set PULSE_TOKEN to a token issued by the backend.")
	case errors.As(err, &apiErr) && apiErr.Status == 401:
		fmt.Fprintln(cmd.ErrOrStderr(), "Hint: the backend rejected the token. Sign in again and update PULSE_TOKEN.")
	}

	return err
}
