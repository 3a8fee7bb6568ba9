package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(n int64) *int64 { return &n }

func TestMessage_UnmarshalAttachments(t *testing.T) {
	tests := []struct {
		name string
		json string
		want AttachmentList
	}{
		{name: "absent", json: `{"id":"m1"}`, want: nil},
		{name: "null", json: `{"attachments":null}`, want: nil},
		{name: "object instead of array", json: `{"attachments":{"filename":"a.pdf"}}`, want: nil},
		{name: "string instead of array", json: `{"attachments":"a.pdf"}`, want: nil},
		{name: "empty array", json: `{"attachments":[]}`, want: AttachmentList{}},
		{
			name: "non-object element",
			json: `{"attachments":[42]}`,
			want: AttachmentList{{}},
		},
		{
			name: "fractional size dropped",
			json: `{"attachments":[{"size":12.7}]}`,
			want: AttachmentList{{}},
		},
		{
			name: "size beyond int64 dropped",
			json: `{"attachments":[{"size":1e30}]}`,
			want: AttachmentList{{}},
		},
		{
			name: "integral float size kept",
			json: `{"attachments":[{"size":2.048e3}]}`,
			want: AttachmentList{{Size: int64Ptr(2048)}},
		},
		{
			name: "wrongly typed fields ignored",
			json: `{"attachments":[{"filename":7,"content_type":true,"size":"12"}]}`,
			want: AttachmentList{{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg Message
			require.NoError(t, json.Unmarshal([]byte(tt.json), &msg))
			assert.Equal(t, tt.want, msg.Attachments)
		})
	}
}

func TestMessage_UnmarshalFull(t *testing.T) {
	data := `{
		"id": "m1",
		"thread_id": "t1",
		"from": "a@example.com",
		"to": ["b@example.com"],
		"subject": "Hi",
		"date": "2024-05-01T10:00:00Z",
		"body_text": null,
		"body_html": "<p>Hi</p>",
		"attachments": [
			{"filename": "inv.pdf", "content_type": "application/pdf", "size": 2048, "content": "JVBERi0x", "attachment_id": "x"}
		],
		"labels": ["inbox"]
	}`

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(data), &msg))

	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "t1", msg.ThreadID)
	assert.Equal(t, []string{"b@example.com"}, msg.To)
	assert.Empty(t, msg.BodyText)
	assert.Equal(t, "<p>Hi</p>", msg.BodyHTML)

	require.Len(t, msg.Attachments, 1)
	a := msg.Attachments[0]
	require.NotNil(t, a.Filename)
	assert.Equal(t, "inv.pdf", *a.Filename)
	require.NotNil(t, a.ContentType)
	assert.Equal(t, "application/pdf", *a.ContentType)
	require.NotNil(t, a.Size)
	assert.Equal(t, int64(2048), *a.Size)
}
