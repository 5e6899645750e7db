package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prana-chat/internal/conversation"
)

var transcript = []conversation.Message{
	{Role: conversation.RoleUser, Content: "How is the air in <Delhi>?"},
	{Role: conversation.RoleAssistant, Content: "It is **bad**.\n\n```aqi\n" +
		`{"city":"Delhi","aqi":275,"weather":"Haze","temperature":31,"humidity":40}` + "\n```\n\n> Wear a mask."},
	{Role: conversation.RoleUser, Content: "thanks"},
	{Role: conversation.RoleAssistant, Content: conversation.ConnectionErrorText},
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	session := conversation.Session{ID: "session_123", Title: "Delhi trip"}
	require.NoError(t, Write(&buf, session, transcript, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

	out := buf.String()
	assert.Contains(t, out, "<title>Delhi trip</title>")
	assert.Contains(t, out, "session_123")
	assert.Contains(t, out, "How is the air in &lt;Delhi&gt;?")
	assert.Contains(t, out, "<strong>bad</strong>")
	assert.Contains(t, out, `class="aqi very-unhealthy"`)
	assert.Contains(t, out, "Very Unhealthy")
	assert.Contains(t, out, "Haze · 31°C · 40% humidity")
	assert.Contains(t, out, "<blockquote>")
	assert.Contains(t, out, `class="msg assistant failed"`)
	assert.NotContains(t, out, `"city":"Delhi"`)

	assert.Less(t, strings.Index(out, "<strong>bad</strong>"), strings.Index(out, `class="aqi`))
	assert.Less(t, strings.Index(out, `class="aqi`), strings.Index(out, "<blockquote>"))
}

func TestWrite_NestedPayloadInList(t *testing.T) {
	var buf bytes.Buffer
	msgs := []conversation.Message{{Role: conversation.RoleAssistant, Content: "1. Delhi now:\n\n   ```aqi\n   " +
		`{"city":"Delhi","aqi":42,"weather":"Clear","temperature":24,"humidity":30}` + "\n   ```\n\n2. Done.\n"}}
	require.NoError(t, Write(&buf, conversation.Session{ID: "s"}, msgs, time.Now()))

	out := buf.String()
	assert.Contains(t, out, `class="aqi good"`)
	assert.NotContains(t, out, `class="language-aqi"`)
	assert.Less(t, strings.Index(out, "Delhi now:"), strings.Index(out, `class="aqi good"`))
	assert.Less(t, strings.Index(out, `class="aqi good"`), strings.Index(out, "Done."))
}

func TestWrite_MalformedPayloadAsCode(t *testing.T) {
	var buf bytes.Buffer
	msgs := []conversation.Message{{Role: conversation.RoleAssistant, Content: "```aqi\n{\"city\":\"Delhi\"}\n```"}}
	require.NoError(t, Write(&buf, conversation.Session{ID: "s"}, msgs, time.Now()))

	out := buf.String()
	assert.Contains(t, out, `class="language-aqi"`)
	assert.Contains(t, out, "&quot;city&quot;:&quot;Delhi&quot;")
	assert.NotContains(t, out, `class="aqi `)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chat.html")
	require.NoError(t, WriteFile(path, conversation.Session{ID: "s"}, transcript))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<!DOCTYPE html>")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file cleaned up")
}
