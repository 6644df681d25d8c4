package messages

const (
	// ErrUserErrorProcessing is shown to a user when something unexpected went wrong.
	ErrUserErrorProcessing = "An error occurred processing your request. Please try again later."

	// ErrNotInThread is shown when a ticket command is used outside of a thread.
	ErrNotInThread = "Use this command inside a ticket thread."

	// ErrAdminOnly is shown when a non-admin uses an admin command.
	ErrAdminOnly = "Staff only."

	// ErrUnknownCommand is shown when no controller exists for a command.
	ErrUnknownCommand = "Unknown command."
)
