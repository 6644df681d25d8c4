package entities

import (
	"strings"
)

// Status is the lifecycle status of a ticket.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusSolved     Status = "solved"
	StatusRejected   Status = "rejected"
	StatusClosed     Status = "closed"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{
	StatusOpen,
	StatusInProgress,
	StatusSolved,
	StatusRejected,
	StatusClosed,
}

// statusPrefixes are the thread name prefixes for each status. Open has none.
var statusPrefixes = map[Status]string{
	StatusOpen:       "",
	StatusInProgress: "[In Progress]",
	StatusSolved:     "[Solved]",
	StatusRejected:   "[Rejected]",
	StatusClosed:     "[Closed]",
}

// ParseStatus parses a status, ignoring case and surrounding whitespace.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	_, ok := statusPrefixes[st]
	return st, ok
}

// Valid reports whether the status is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusPrefixes[s]
	return ok
}

// IsTerminal reports whether the status ends the ticket.
func (s Status) IsTerminal() bool {
	return s == StatusSolved || s == StatusRejected || s == StatusClosed
}

// IsActive reports whether the ticket is still being worked on.
func (s Status) IsActive() bool {
	return s == StatusOpen || s == StatusInProgress
}

// Prefix returns the thread name prefix for the status.
func (s Status) Prefix() string {
	return statusPrefixes[s]
}

// StripStatus removes any known status prefixes from the start of name.
func StripStatus(name string) string {
	base := strings.TrimSpace(name)
	for stripped := true; stripped; {
		stripped = false
		for _, st := range Statuses {
			p := st.Prefix()
			if p != "" && strings.HasPrefix(base, p) {
				base = strings.TrimLeft(base[len(p):], " ")
				stripped = true
			}
		}
	}
	return base
}

// defaultThreadName is used when a name is only status prefixes and the status has none.
const defaultThreadName = "Ticket"

// ThreadName strips any known status prefix from name and applies the prefix for status.
// Applying it twice with the same status gives the same result as applying it once. The result is never empty.
func ThreadName(name string, status Status) string {
	base := StripStatus(name)

	p := status.Prefix()
	switch {
	case p == "" && base == "":
		return defaultThreadName
	case p == "":
		return base
	case base == "":
		return p
	}
	return p + " " + base
}
