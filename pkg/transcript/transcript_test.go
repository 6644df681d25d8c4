package transcript

import (
	"testing"
	"time"

	"github.com/Jacobbrewer1/ticketbot/pkg/platform"
	"github.com/stretchr/testify/require"
)

func testMessages() []*platform.Message {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	return []*platform.Message{
		{ID: "1", AuthorName: "alice", Content: "I **cannot** login", Timestamp: at},
		{ID: "2", AuthorID: "42", Content: "<script>alert(1)</script>", Timestamp: at.Add(time.Minute),
			Attachments: []string{"https://cdn.example/log.txt"}},
	}
}

func testHeader() Header {
	return Header{
		TicketID: 7,
		ThreadID: "thread",
		Title:    "Cannot login",
		Status:   "solved",
		Exported: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestRenderer_Text(t *testing.T) {
	got := string(NewRenderer().Text(testHeader(), testMessages()))

	require.Contains(t, got, "Ticket #7: Cannot login\n")
	require.Contains(t, got, "[2024-03-01 09:30:00] alice: I **cannot** login\n")
	require.Contains(t, got, "[2024-03-01 09:31:00] 42: <script>alert(1)</script> [attachment: https://cdn.example/log.txt]\n")
}

func TestRenderer_HTML(t *testing.T) {
	got, err := NewRenderer().HTML(testHeader(), testMessages())
	require.NoError(t, err)

	page := string(got)
	require.Contains(t, page, "<title>Ticket #7: Cannot login</title>")
	require.Contains(t, page, "<strong>cannot</strong>")
	require.NotContains(t, page, "<script>")
	require.Contains(t, page, "https://cdn.example/log.txt")
}

func TestRenderer_Files(t *testing.T) {
	files, err := NewRenderer().Files(testHeader(), nil)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, "transcript-thread.txt", files[0].Name)
	require.Equal(t, "transcript-thread.html", files[1].Name)
	require.NotEmpty(t, files[1].Data)
}
