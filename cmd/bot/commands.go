package main

import (
	"strconv"
	"strings"

	"github.com/Jacobbrewer1/ticketbot/pkg/entities"
)

const (
	sourceSlash = "slash"
	sourceText  = "text"

	// textPrefix starts a text command.
	textPrefix = "!"

	adminCmdName = "admin"
)

type optionKind int

const (
	optionString optionKind = iota
	optionUser
	optionInteger
)

// option is an argument of a command. Text commands take options positionally in declaration order.
type option struct {
	name        string
	kind        optionKind
	description string
	required    bool

	// rest consumes the remainder of a text command.
	rest bool

	choices []string
}

// command is a command available both as a slash command and as a text command. Admin commands are named
// "admin <sub>" and are registered as sub commands of /admin.
type command struct {
	name        string
	description string
	options     []option

	// thread is whether the command has to be used inside a ticket thread.
	thread bool

	// slow is whether the command can outlast the interaction acknowledgement window.
	slow bool

	run handlerFunc
}

func (c *command) admin() bool {
	return strings.HasPrefix(c.name, adminCmdName+" ")
}

// subName is the sub command name of an admin command.
func (c *command) subName() string {
	return strings.TrimPrefix(c.name, adminCmdName+" ")
}

func commandTable() []*command {
	statusChoices := make([]string, 0, len(entities.Statuses))
	for _, st := range entities.Statuses {
		statusChoices = append(statusChoices, string(st))
	}

	return []*command{
		{
			name:        "ticket_open",
			description: "Open a ticket. Public in the public channel, private in the support channel.",
			options: []option{
				{name: "title", kind: optionString, description: "A short summary of the issue.", required: true, rest: true},
			},
			slow: true,
			run:  (*dispatcher).ticketOpen,
		},
		{
			name:        "ticket_close",
			description: "Close this ticket.",
			thread:      true,
			slow:        true,
			run:         (*dispatcher).ticketClose,
		},
		{
			name:        "ticket_reopen",
			description: "Reopen this public ticket.",
			options: []option{
				{name: "reason", kind: optionString, description: "Why the ticket is being reopened.", rest: true},
			},
			thread: true,
			slow:   true,
			run:    (*dispatcher).ticketReopen,
		},
		{
			name:        "ticket_claim",
			description: "Claim this ticket.",
			thread:      true,
			run:         (*dispatcher).ticketClaim,
		},
		{
			name:        "ticket_unclaim",
			description: "Release your claim on this ticket.",
			thread:      true,
			run:         (*dispatcher).ticketUnclaim,
		},
		{
			name:        "ticket_adduser",
			description: "Add a member to this private ticket.",
			options: []option{
				{name: "member", kind: optionUser, description: "The member to add.", required: true},
			},
			thread: true,
			run:    (*dispatcher).ticketAddUser,
		},
		{
			name:        "ticket_removeuser",
			description: "Remove a member from this private ticket.",
			options: []option{
				{name: "member", kind: optionUser, description: "The member to remove.", required: true},
			},
			thread: true,
			run:    (*dispatcher).ticketRemoveUser,
		},
		{
			name:        "ticket_listmine",
			description: "List your open tickets.",
			run:         (*dispatcher).ticketListMine,
		},
		{
			name:        "ticket_convert",
			description: "Convert this public ticket to a private one.",
			thread:      true,
			slow:        true,
			run:         (*dispatcher).ticketConvert,
		},
		{
			name:        "ticket_escalate",
			description: "Ping the escalation role in this ticket.",
			options: []option{
				{name: "reason", kind: optionString, description: "Why the ticket needs escalating.", rest: true},
			},
			thread: true,
			run:    (*dispatcher).ticketEscalate,
		},
		{
			name:        "ticket_status",
			description: "Set the status of this ticket.",
			options: []option{
				{name: "status", kind: optionString, description: "The new status.", required: true, choices: statusChoices},
			},
			thread: true,
			run:    (*dispatcher).ticketStatus,
		},
		{
			name:        "admin config_get",
			description: "Show the runtime configuration.",
			options: []option{
				{name: "key", kind: optionString, description: "A single key to show."},
			},
			run: (*dispatcher).configGet,
		},
		{
			name:        "admin config_set",
			description: "Change a runtime setting.",
			options: []option{
				{name: "key", kind: optionString, description: "The key to change.", required: true},
				{name: "value", kind: optionString, description: "The new value.", required: true, rest: true},
			},
			run: (*dispatcher).configSet,
		},
		{
			name:        "admin blacklist_add",
			description: "Block a member from opening tickets.",
			options: []option{
				{name: "user", kind: optionUser, description: "The member to block.", required: true},
				{name: "reason", kind: optionString, description: "Why the member is blocked.", rest: true},
			},
			run: (*dispatcher).blacklistAdd,
		},
		{
			name:        "admin blacklist_remove",
			description: "Let a blocked member open tickets again.",
			options: []option{
				{name: "user", kind: optionUser, description: "The member to unblock.", required: true},
			},
			run: (*dispatcher).blacklistRemove,
		},
		{
			name:        "admin blacklist_list",
			description: "List blocked members.",
			run:         (*dispatcher).blacklistList,
		},
		{
			name:        "admin stats",
			description: "Show ticket statistics.",
			run:         (*dispatcher).stats,
		},
		{
			name:        "admin perms_check",
			description: "Check the bot configuration.",
			run:         (*dispatcher).permsCheck,
		},
		{
			name:        "health",
			description: "Show the health of the bot.",
			run:         (*dispatcher).health,
		},
		{
			name:        "help_tickets",
			description: "Show help for the ticket commands.",
			options: []option{
				{name: "page", kind: optionInteger, description: "The page to show."},
			},
			run: (*dispatcher).help,
		},
	}
}

// parseText splits a text command such as "!ticket_adduser @member" into the command name and its arguments.
// It returns false when content is not a known command.
func parseText(commands map[string]*command, content string) (*command, map[string]string, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, textPrefix) {
		return nil, nil, false
	}

	fields := strings.Fields(strings.TrimPrefix(content, textPrefix))
	if len(fields) == 0 {
		return nil, nil, false
	}

	name := strings.ToLower(fields[0])
	fields = fields[1:]
	if name == adminCmdName {
		if len(fields) == 0 {
			return nil, nil, false
		}
		name += " " + strings.ToLower(fields[0])
		fields = fields[1:]
	}

	cmd, ok := commands[name]
	if !ok {
		return nil, nil, false
	}

	args := make(map[string]string, len(cmd.options))
	for _, opt := range cmd.options {
		if len(fields) == 0 {
			break
		}
		if opt.rest {
			args[opt.name] = strings.Join(fields, " ")
			break
		}

		v := fields[0]
		fields = fields[1:]
		if opt.kind == optionUser {
			v = mentionID(v)
		}
		args[opt.name] = v
	}
	return cmd, args, true
}

// mentionID returns the user ID of a mention such as <@123> or <@!123>. Anything else is returned as is.
func mentionID(s string) string {
	if !strings.HasPrefix(s, "<@") || !strings.HasSuffix(s, ">") {
		return s
	}
	id := strings.TrimSuffix(strings.TrimPrefix(s, "<@"), ">")
	id = strings.TrimPrefix(id, "!")
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return s
	}
	return id
}
