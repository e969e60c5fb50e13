package cli

import (
	"errors"

	"github.com/sakif/sprintium/internal/apperror"
)

// describe turns an error into the line shown to the user, with a hint
// where there is an obvious next step.
func describe(err error) string {
	switch {
	case errors.Is(err, apperror.ErrUnauthenticated):
		return err.Error() + " (run 'sprintctl login')"
	case errors.Is(err, apperror.ErrAlreadyMember):
		return err.Error() + " (use 'sprintctl member role' to change the role)"
	case errors.Is(err, apperror.ErrRemote):
		return "server unreachable or failing: " + err.Error()
	}
	return err.Error()
}
