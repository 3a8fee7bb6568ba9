package pipeline

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agentmail-skill/internal/model"
	"github.com/nhle/agentmail-skill/internal/otp"
	"github.com/nhle/agentmail-skill/internal/safety"
)

func TestMessageView_BodyResolution(t *testing.T) {
	tests := []struct {
		name string
		msg  model.Message
		want string
	}{
		{
			name: "text wins over html",
			msg:  model.Message{BodyText: "plain", BodyHTML: "<p>html</p>"},
			want: "plain",
		},
		{
			name: "html sanitized when text empty",
			msg:  model.Message{BodyHTML: "<script>evil()</script><p>Hello</p><br>World"},
			want: "Hello\nWorld",
		},
		{
			name: "fallback when both empty",
			msg:  model.Message{},
			want: "(empty body)",
		},
		{
			name: "fallback when html sanitizes to nothing",
			msg:  model.Message{BodyHTML: "<style>p{}</style><div></div>"},
			want: "(empty body)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := MessageView(&tt.msg)
			assert.Equal(t, tt.want, view.Data.BodyText)
			assert.Equal(t, safety.Banner, view.Banner)
		})
	}
}

func TestMessageView_Fields(t *testing.T) {
	name := "report.pdf"
	msg := &model.Message{
		ID:       "m1",
		ThreadID: "t1",
		From:     "alice@example.com",
		To:       []string{"agent@example.com"},
		Subject:  strings.Repeat("s", 250),
		Date:     "2024-05-01T10:00:00Z",
		BodyText: "hi",
		Attachments: model.AttachmentList{
			{Filename: &name},
		},
	}

	view := MessageView(msg)

	assert.Equal(t, "m1", view.Data.ID)
	assert.Equal(t, "t1", view.Data.ThreadID)
	assert.Equal(t, "alice@example.com", view.Data.From)
	assert.Equal(t, []string{"agent@example.com"}, view.Data.To)
	assert.Equal(t, "2024-05-01T10:00:00Z", view.Data.Date)
	assert.Equal(t, 200, len([]rune(view.Data.Subject)))
	assert.True(t, strings.HasSuffix(view.Data.Subject, "…"))
	assert.Equal(t, []safety.AttachmentMeta{
		{Filename: "report.pdf", ContentType: "application/octet-stream"},
	}, view.Data.Attachments)
}

func TestMessageView_NeverLeaksHTML(t *testing.T) {
	msg := &model.Message{
		BodyHTML: `<a href="https://evil.example">click</a><img src=x onerror=alert(1)>`,
	}

	data, err := json.Marshal(MessageView(msg))
	require.NoError(t, err)

	assert.NotContains(t, string(data), "<a")
	assert.NotContains(t, string(data), "onerror")
	assert.NotContains(t, string(data), "body_html")
}

func TestMessageView_EmptyCollectionsEncodeAsArrays(t *testing.T) {
	data, err := json.Marshal(MessageView(&model.Message{ID: "m1"}))
	require.NoError(t, err)

	var decoded struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "[]", string(decoded.Data["to"]))
	assert.Equal(t, "[]", string(decoded.Data["attachments"]))
}

func TestCodes(t *testing.T) {
	t.Run("from text body", func(t *testing.T) {
		msg := &model.Message{BodyText: "Your verification code is 482931, use it soon."}

		got := Codes(msg)

		require.Len(t, got.Codes, 1)
		assert.Equal(t, "482931", got.Codes[0].Code)
		assert.Equal(t, "verification", got.Codes[0].Keyword)
	})

	t.Run("from html body", func(t *testing.T) {
		msg := &model.Message{BodyHTML: "<p>Your code:</p><b>7731</b>"}

		got := Codes(msg)

		assert.Equal(t, []otp.ExtractedCode{{Code: "7731", Keyword: "code", Offset: 10}}, got.Codes)
	})

	t.Run("no body yields empty list", func(t *testing.T) {
		data, err := json.Marshal(Codes(&model.Message{}))
		require.NoError(t, err)
		assert.JSONEq(t, `{"codes":[]}`, string(data))
	})

	t.Run("nil message", func(t *testing.T) {
		assert.Empty(t, Codes(nil).Codes)
	})
}
