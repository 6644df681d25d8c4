package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
)

// Kind classifies the failures of a lifecycle operation.
type Kind int

const (
	KindPermissionDenied Kind = iota + 1
	KindBlacklisted
	KindEmptyTitle
	KindWrongChannel
	KindConfirmationTimeout
	KindAlreadyOpen
	KindAlreadyClaimed
	KindNotClaimed
	KindAlreadyPrivate
	KindPrivateNotReopenable
	KindPublicOnlyRestriction
	KindCannotRemoveCreator
	KindInvalidStatus
	KindNoEscalationRole
	KindNotManaged
	KindPlatformActionFailed
	KindAlreadyClosed
	KindCloseCancelled
	KindCooldown
)

var kindNames = map[Kind]string{
	KindPermissionDenied:      "permission_denied",
	KindBlacklisted:           "blacklisted",
	KindEmptyTitle:            "empty_title",
	KindWrongChannel:          "wrong_channel",
	KindConfirmationTimeout:   "confirmation_timeout",
	KindAlreadyOpen:           "already_open",
	KindAlreadyClaimed:        "already_claimed",
	KindNotClaimed:            "not_claimed",
	KindAlreadyPrivate:        "already_private",
	KindPrivateNotReopenable:  "private_not_reopenable",
	KindPublicOnlyRestriction: "public_only_restriction",
	KindCannotRemoveCreator:   "cannot_remove_creator",
	KindInvalidStatus:         "invalid_status",
	KindNoEscalationRole:      "no_escalation_role",
	KindNotManaged:            "not_managed",
	KindPlatformActionFailed:  "platform_action_failed",
	KindAlreadyClosed:         "already_closed",
	KindCloseCancelled:        "close_cancelled",
	KindCooldown:              "cooldown",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Error is a failure that is shown to the actor as is.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrAlreadyClaimed) holds whichever claimant
// the message names.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrPermissionDenied      = newError(KindPermissionDenied, "No permission.")
	ErrBlacklisted           = newError(KindBlacklisted, "You are blacklisted from creating tickets.")
	ErrEmptyTitle            = newError(KindEmptyTitle, "Provide a title.")
	ErrWrongChannel          = newError(KindWrongChannel, "Use in the configured public or support channel.")
	ErrConfirmationTimeout   = newError(KindConfirmationTimeout, "Timed out. The ticket is still open.")
	ErrAlreadyOpen           = newError(KindAlreadyOpen, "Already open.")
	ErrAlreadyClaimed        = newError(KindAlreadyClaimed, "Already claimed.")
	ErrNotClaimed            = newError(KindNotClaimed, "Not claimed.")
	ErrAlreadyPrivate        = newError(KindAlreadyPrivate, "Already private.")
	ErrPrivateNotReopenable  = newError(KindPrivateNotReopenable, "Private tickets cannot be reopened.")
	ErrPublicOnlyRestriction = newError(KindPublicOnlyRestriction, "Private tickets only.")
	ErrCannotRemoveCreator   = newError(KindCannotRemoveCreator, "Cannot remove the ticket creator.")
	ErrInvalidStatus         = newError(KindInvalidStatus, "Valid statuses: %s", validStatuses())
	ErrNoEscalationRole      = newError(KindNoEscalationRole, "No escalation role configured.")
	ErrNotManaged            = newError(KindNotManaged, "Not managed.")
	ErrPlatformActionFailed  = newError(KindPlatformActionFailed, "The chat platform rejected the request.")
	ErrAlreadyClosed         = newError(KindAlreadyClosed, "Ticket is already closed.")
	ErrCloseCancelled        = newError(KindCloseCancelled, "Cancelled.")
	ErrCooldown              = newError(KindCooldown, "Slow down.")
)

func validStatuses() string {
	names := make([]string, 0, len(entities.Statuses))
	for _, st := range entities.Statuses {
		names = append(names, string(st))
	}
	return strings.Join(names, ", ")
}

func alreadyClaimed(name string) *Error {
	return newError(KindAlreadyClaimed, "Already claimed by %s.", name)
}

func platformFailed(action string, err error) *Error {
	return newError(KindPlatformActionFailed, "Failed to %s: %s", action, err)
}

func cooldownError(wait time.Duration) *Error {
	secs := int(wait.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return newError(KindCooldown, "Slow down. Try again in %ds.", secs)
}
