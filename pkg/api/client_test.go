package api

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aymanboujjar/lionsgeek-chat/pkg/attach"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "secret-token", srv.Client(), zerolog.Nop())
}

func TestMessagesCarriesAuthAndParses(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/conversation/7/messages", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		io.WriteString(w, `{"messages":[
			{"id":1,"sender_id":20,"body":"hi","is_read":false,"created_at":"2026-08-29T10:00:00Z"},
			{"id":2,"sender_id":10,"body":"yo","is_read":true,"created_at":"2026-08-29T10:01:00Z"}
		]}`)
	})

	msgs, err := client.Messages(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(1), msgs[0].ID)
	assert.Equal(t, "hi", msgs[0].Body)
	assert.True(t, msgs[1].IsRead)
}

func TestSendBuildsMultipartWithAttachment(t *testing.T) {
	attPath := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(attPath, []byte("pngbytes"), 0o600))

	var gotBody, gotType, gotFileType, gotFile string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/conversation/7/send", r.URL.Path)
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/form-data", mediaType)

		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			data, _ := io.ReadAll(part)
			switch part.FormName() {
			case "body":
				gotBody = string(data)
			case "attachment_type":
				gotType = string(data)
			case "attachment":
				gotFile = string(data)
				gotFileType = part.Header.Get("Content-Type")
				assert.Equal(t, "pic.png", part.FileName())
			}
		}
		io.WriteString(w, `{"message":{"id":501,"sender_id":10,"body":"caption","created_at":"2026-08-29T10:02:00Z"}}`)
	})

	msg, err := client.Send(context.Background(), 7, SendRequest{
		Body: "caption",
		Attachment: &attach.Descriptor{
			Path: attPath,
			MIME: "image/png",
			Name: "pic.png",
			Kind: attach.KindImage,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(501), msg.ID)
	assert.Equal(t, "caption", gotBody)
	assert.Equal(t, "image", gotType)
	assert.Equal(t, "image/png", gotFileType, "part carries the resolved MIME, not octet-stream")
	assert.Equal(t, "pngbytes", gotFile)
}

func TestSendTextOnlyOmitsAttachmentFields(t *testing.T) {
	var fields []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			fields = append(fields, part.FormName())
		}
		io.WriteString(w, `{"message":{"id":9,"sender_id":10,"body":"plain","created_at":"2026-08-29T10:03:00Z"}}`)
	})

	_, err := client.Send(context.Background(), 7, SendRequest{Body: "plain"})
	require.NoError(t, err)
	assert.Equal(t, []string{"body"}, fields)
}

func TestNon2xxBecomesStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":"not a participant"}`)
	})

	_, err := client.Messages(context.Background(), 7)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.Code)
	assert.Contains(t, statusErr.Body, "not a participant")
}

func TestMarkReadAndDelete(t *testing.T) {
	var paths []string
	var methods []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		methods = append(methods, r.Method)
		io.WriteString(w, `{}`)
	})

	require.NoError(t, client.MarkRead(context.Background(), 7))
	require.NoError(t, client.DeleteMessage(context.Background(), 42))
	assert.Equal(t, []string{"/chat/conversation/7/read", "/chat/message/42"}, paths)
	assert.Equal(t, []string{http.MethodPost, http.MethodDelete}, methods)
}

func TestUnreadCount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/unread-count", r.URL.Path)
		io.WriteString(w, `{"unread_count":12}`)
	})

	count, err := client.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, count)
}

func TestNilHTTPClientGetsDefaultTimeout(t *testing.T) {
	client := NewClient("https://api.example.com", "", nil, zerolog.Nop())
	assert.Equal(t, DefaultTimeout, client.http.Timeout)
}

func TestSendMissingAttachmentFileFailsBeforeRequest(t *testing.T) {
	requests := 0
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		requests++
		io.WriteString(w, `{}`)
	})

	_, err := client.Send(context.Background(), 7, SendRequest{
		Body:       "x",
		Attachment: &attach.Descriptor{Path: "/nonexistent/gone.png", Name: "gone.png", MIME: "image/png", Kind: attach.KindImage},
	})
	require.Error(t, err)
	assert.Zero(t, requests, "unreadable attachment never reaches the wire")
}
