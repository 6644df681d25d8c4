package logging

const (
	// EnvLogLevel is the environment variable for the log level.
	EnvLogLevel = `LOG_LEVEL`
)

const (
	// KeyApp is the key for the application name.
	KeyApp = "app"

	// KeyError is the key for an error.
	KeyError = "err"

	// KeyDal is the key for the data access layer.
	KeyDal = "dal"

	// KeyGuild is the key for a guild ID.
	KeyGuild = "guild_id"

	// KeyThread is the key for a ticket thread ID.
	KeyThread = "thread_id"

	// KeyUser is the key for a user ID.
	KeyUser = "user_id"

	// KeyCommand is the key for a command name.
	KeyCommand = "command"

	// KeyStrategy is the key for a background strategy name.
	KeyStrategy = "strategy"
)
