// Package platformtest provides an in-memory chat platform for tests.
package platformtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
)

// BotID is the author ID of messages sent through the fake.
const BotID = "bot"

// Sent is a message sent through the fake.
type Sent struct {
	ChannelID string
	MessageID string
	Msg       *platform.Outgoing
}

// Reaction is a reaction added through the fake.
type Reaction struct {
	ChannelID string
	MessageID string
	Emoji     string
}

// Fake is an in-memory platform. The exported hooks and failure fields may be set before use.
type Fake struct {
	mu sync.Mutex

	seq      int
	members  map[string]*platform.Member
	threads  map[string]*platform.Thread
	joined   map[string]map[string]bool
	history  map[string][]*platform.Message
	sent     []Sent
	direct   []Sent
	reacts   []Reaction
	removals []string

	// OnSend is called after a message is sent, outside of the lock.
	OnSend func(channelID string, msg *platform.Message)

	// FailCreate fails thread creation.
	FailCreate error

	// FailEdit fails thread edits.
	FailEdit error

	// FailAdd fails adding the given users to threads.
	FailAdd map[string]error

	// FailRemove fails removing the given users from threads.
	FailRemove map[string]error

	// FailReact fails every reaction.
	FailReact error
}

// New creates an empty fake.
func New() *Fake {
	return &Fake{
		members:    make(map[string]*platform.Member),
		threads:    make(map[string]*platform.Thread),
		joined:     make(map[string]map[string]bool),
		history:    make(map[string][]*platform.Message),
		FailAdd:    make(map[string]error),
		FailRemove: make(map[string]error),
	}
}

// AddMember registers a guild member.
func (f *Fake) AddMember(m *platform.Member) *platform.Member {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[m.ID] = m
	return m
}

// AddThread registers an existing thread with its members.
func (f *Fake) AddThread(th *platform.Thread, memberIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads[th.ID] = th
	f.joined[th.ID] = make(map[string]bool)
	for _, id := range memberIDs {
		f.joined[th.ID][id] = true
	}
}

// Post appends a user message to the history of a channel.
func (f *Fake) Post(channelID string, m *platform.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ChannelID = channelID
	f.history[channelID] = append(f.history[channelID], m)
}

func (f *Fake) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *Fake) CreateThread(_ context.Context, parentID, name string, private bool, _ string) (*platform.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailCreate != nil {
		return nil, f.FailCreate
	}

	th := &platform.Thread{ID: f.next("thread"), ParentID: parentID, Name: name, Private: private}
	f.threads[th.ID] = th
	f.joined[th.ID] = make(map[string]bool)
	cp := *th
	return &cp, nil
}

func (f *Fake) Thread(_ context.Context, threadID string) (*platform.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	th, ok := f.threads[threadID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	cp := *th
	return &cp, nil
}

func (f *Fake) EditThread(_ context.Context, threadID string, edit platform.ThreadEdit) (*platform.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailEdit != nil {
		return nil, f.FailEdit
	}
	th, ok := f.threads[threadID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	if edit.Name != nil {
		th.Name = *edit.Name
	}
	if edit.Locked != nil {
		th.Locked = *edit.Locked
	}
	if edit.Archived != nil {
		th.Archived = *edit.Archived
	}
	cp := *th
	return &cp, nil
}

func (f *Fake) AddThreadMember(_ context.Context, threadID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailAdd[userID]; err != nil {
		return err
	}
	if _, ok := f.joined[threadID]; !ok {
		return platform.ErrNotFound
	}
	f.joined[threadID][userID] = true
	return nil
}

func (f *Fake) RemoveThreadMember(_ context.Context, threadID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailRemove[userID]; err != nil {
		return err
	}
	if _, ok := f.joined[threadID]; !ok {
		return platform.ErrNotFound
	}
	delete(f.joined[threadID], userID)
	f.removals = append(f.removals, userID)
	return nil
}

func (f *Fake) ThreadMembers(_ context.Context, _, threadID string) ([]*platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids, ok := f.joined[threadID]
	if !ok {
		return nil, platform.ErrNotFound
	}

	members := make([]*platform.Member, 0, len(ids))
	for id := range ids {
		if m, ok := f.members[id]; ok {
			members = append(members, m)
		} else {
			members = append(members, &platform.Member{ID: id})
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (f *Fake) Member(_ context.Context, _, userID string) (*platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.members[userID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return m, nil
}

func (f *Fake) RoleMembers(_ context.Context, _ string, roleIDs []string) ([]*platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	members := make([]*platform.Member, 0)
	for _, m := range f.members {
		for _, r := range roleIDs {
			if m.HasRole(r) {
				members = append(members, m)
				break
			}
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (f *Fake) Send(_ context.Context, channelID string, msg *platform.Outgoing) (*platform.Message, error) {
	f.mu.Lock()
	m := &platform.Message{
		ID:        f.next("msg"),
		ChannelID: channelID,
		AuthorID:  BotID,
		AuthorBot: true,
		Content:   msg.Content,
		Timestamp: time.Now(),
	}
	f.sent = append(f.sent, Sent{ChannelID: channelID, MessageID: m.ID, Msg: msg})
	f.history[channelID] = append(f.history[channelID], m)
	hook := f.OnSend
	f.mu.Unlock()

	if hook != nil {
		hook(channelID, m)
	}
	return m, nil
}

func (f *Fake) SendDirect(_ context.Context, userID string, msg *platform.Outgoing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct = append(f.direct, Sent{ChannelID: userID, Msg: msg})
	return nil
}

func (f *Fake) React(_ context.Context, channelID, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailReact != nil {
		return f.FailReact
	}
	f.reacts = append(f.reacts, Reaction{ChannelID: channelID, MessageID: messageID, Emoji: emoji})
	return nil
}

func (f *Fake) FirstMessage(_ context.Context, channelID string) (*platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msgs := f.history[channelID]
	if len(msgs) == 0 {
		return nil, platform.ErrNotFound
	}
	return msgs[0], nil
}

func (f *Fake) History(_ context.Context, channelID string) ([]*platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*platform.Message(nil), f.history[channelID]...), nil
}

// ThreadState returns a copy of a thread.
func (f *Fake) ThreadState(threadID string) platform.Thread {
	f.mu.Lock()
	defer f.mu.Unlock()
	if th, ok := f.threads[threadID]; ok {
		return *th
	}
	return platform.Thread{}
}

// Joined reports whether the user is a member of the thread.
func (f *Fake) Joined(threadID, userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joined[threadID][userID]
}

// SentTo returns the messages sent to a channel.
func (f *Fake) SentTo(channelID string) []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Sent, 0)
	for _, s := range f.sent {
		if s.ChannelID == channelID {
			out = append(out, s)
		}
	}
	return out
}

// Direct returns the direct messages sent.
func (f *Fake) Direct() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.direct...)
}

// Reactions returns the reactions added.
func (f *Fake) Reactions() []Reaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Reaction(nil), f.reacts...)
}

// Removals returns every user removed from a thread, in order.
func (f *Fake) Removals() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removals...)
}

// Threads returns the number of threads that exist.
func (f *Fake) Threads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.threads)
}

var _ platform.Platform = (*Fake)(nil)
