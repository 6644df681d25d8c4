package settings

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Key is a runtime tunable setting.
type Key string

const (
	// KeyAnonymizePublic hides the creator name in public ticket greetings.
	KeyAnonymizePublic Key = "anonymize_public"

	// KeyInProgressEmoji is the reaction added to the first message of a ticket when it moves to in progress.
	KeyInProgressEmoji Key = "in_progress_emoji"

	// KeyDuplicateSimilarity is the threshold at which a title is reported as a possible duplicate.
	KeyDuplicateSimilarity Key = "duplicate_similarity"

	// KeyTicketCooldownSeconds is the window of the ticket open rate limit.
	KeyTicketCooldownSeconds Key = "ticket_cooldown_seconds"
)

// ErrUnknownKey is returned for a key that is not tunable.
var ErrUnknownKey = errors.New("unknown setting")

// InvalidValueError is returned when a value does not fit the type of a key.
type InvalidValueError struct {
	Key    Key
	Value  string
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %s", e.Value, e.Key, e.Reason)
}

// Values are the tunable settings.
type Values struct {
	AnonymizePublic       bool
	InProgressEmoji       string
	DuplicateSimilarity   float64
	TicketCooldownSeconds int
}

// Cooldown returns the ticket cooldown as a duration.
func (v Values) Cooldown() time.Duration {
	return time.Duration(v.TicketCooldownSeconds) * time.Second
}

type field struct {
	get func(v *Values) string
	set func(v *Values, raw string) error
}

var fields = map[Key]field{
	KeyAnonymizePublic: {
		get: func(v *Values) string { return strconv.FormatBool(v.AnonymizePublic) },
		set: func(v *Values, raw string) error {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return &InvalidValueError{Key: KeyAnonymizePublic, Value: raw, Reason: "expected true or false"}
			}
			v.AnonymizePublic = b
			return nil
		},
	},
	KeyInProgressEmoji: {
		get: func(v *Values) string { return v.InProgressEmoji },
		set: func(v *Values, raw string) error {
			if raw == "" {
				return &InvalidValueError{Key: KeyInProgressEmoji, Value: raw, Reason: "must not be empty"}
			}
			v.InProgressEmoji = raw
			return nil
		},
	},
	KeyDuplicateSimilarity: {
		get: func(v *Values) string { return strconv.FormatFloat(v.DuplicateSimilarity, 'f', -1, 64) },
		set: func(v *Values, raw string) error {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil || f < 0 || f > 1 {
				return &InvalidValueError{Key: KeyDuplicateSimilarity, Value: raw, Reason: "expected a number between 0 and 1"}
			}
			v.DuplicateSimilarity = f
			return nil
		},
	},
	KeyTicketCooldownSeconds: {
		get: func(v *Values) string { return strconv.Itoa(v.TicketCooldownSeconds) },
		set: func(v *Values, raw string) error {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return &InvalidValueError{Key: KeyTicketCooldownSeconds, Value: raw, Reason: "expected a whole number of seconds"}
			}
			v.TicketCooldownSeconds = n
			return nil
		},
	},
}

// Keys lists the tunable keys in name order.
func Keys() []Key {
	keys := make([]Key, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ParseKey parses a key name.
func ParseKey(s string) (Key, error) {
	k := Key(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := fields[k]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, s)
	}
	return k, nil
}

// Runtime holds the current values of the tunable settings. It is safe for concurrent use.
type Runtime struct {
	mu sync.RWMutex
	v  Values
}

// NewRuntime creates a runtime with the given initial values.
func NewRuntime(initial Values) *Runtime {
	return &Runtime{v: initial}
}

// Snapshot returns a copy of the current values.
func (r *Runtime) Snapshot() Values {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.v
}

// Get returns the current value of a key as a string.
func (r *Runtime) Get(key Key) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return f.get(&r.v), nil
}

// Set validates raw and stores it. Nothing changes when the value is rejected.
func (r *Runtime) Set(key Key, raw string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.v
	if err := f.set(&next, strings.TrimSpace(raw)); err != nil {
		return err
	}
	r.v = next
	return nil
}

// All returns every key with its current value.
func (r *Runtime) All() map[Key]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make(map[Key]string, len(fields))
	for k, f := range fields {
		all[k] = f.get(&r.v)
	}
	return all
}
