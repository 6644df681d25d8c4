package transcript

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const timeLayout = "2006-01-02 15:04:05"

// Header describes the ticket a transcript belongs to.
type Header struct {
	TicketID int64
	ThreadID string
	Title    string
	Status   string
	Exported time.Time
}

// Renderer renders the message history of a thread.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a renderer. Message content is treated as markdown in the HTML output.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
		),
	}
}

// TextName is the file name of the plain text transcript of a thread.
func TextName(threadID string) string {
	return "transcript-" + threadID + ".txt"
}

// HTMLName is the file name of the HTML transcript of a thread.
func HTMLName(threadID string) string {
	return "transcript-" + threadID + ".html"
}

// Text renders the messages as plain text, one line per message.
func (r *Renderer) Text(h Header, msgs []*platform.Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket #%d: %s\n", h.TicketID, h.Title)
	fmt.Fprintf(&b, "Status: %s\n", h.Status)
	fmt.Fprintf(&b, "Exported: %s UTC\n\n", h.Exported.UTC().Format(timeLayout))

	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s: %s", m.Timestamp.UTC().Format(timeLayout), author(m), m.Content)
		for _, a := range m.Attachments {
			fmt.Fprintf(&b, " [attachment: %s]", a)
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// HTML renders the messages as a standalone HTML page.
func (r *Renderer) HTML(h Header, msgs []*platform.Message) ([]byte, error) {
	var b bytes.Buffer
	title := html.EscapeString(fmt.Sprintf("Ticket #%d: %s", h.TicketID, h.Title))

	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	b.WriteString(title)
	b.WriteString("</title></head><body>\n<h1>")
	b.WriteString(title)
	b.WriteString("</h1>\n")
	fmt.Fprintf(&b, "<p>Status: %s. Exported %s UTC.</p>\n",
		html.EscapeString(h.Status), h.Exported.UTC().Format(timeLayout))

	for _, m := range msgs {
		fmt.Fprintf(&b, "<div class=\"message\"><span class=\"time\">%s</span> <b>%s</b>\n",
			m.Timestamp.UTC().Format(timeLayout), html.EscapeString(author(m)))
		if err := r.md.Convert([]byte(m.Content), &b); err != nil {
			return nil, fmt.Errorf("error rendering message %s: %w", m.ID, err)
		}
		for _, a := range m.Attachments {
			fmt.Fprintf(&b, "<a href=\"%s\">attachment</a>\n", html.EscapeString(a))
		}
		b.WriteString("</div>\n")
	}

	b.WriteString("</body></html>\n")
	return b.Bytes(), nil
}

// Files renders both transcripts as attachments.
func (r *Renderer) Files(h Header, msgs []*platform.Message) ([]platform.File, error) {
	page, err := r.HTML(h, msgs)
	if err != nil {
		return nil, err
	}
	return []platform.File{
		{Name: TextName(h.ThreadID), ContentType: "text/plain", Data: r.Text(h, msgs)},
		{Name: HTMLName(h.ThreadID), ContentType: "text/html", Data: page},
	}, nil
}

func author(m *platform.Message) string {
	if m.AuthorName != "" {
		return m.AuthorName
	}
	return m.AuthorID
}
