package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/eorimag/internal/model"
)

func newTestClient(t *testing.T, baseURL string, to []string) *Client {
	t.Helper()

	return NewClient(Config{
		APIKey:  "re_test",
		BaseURL: baseURL,
		From:    "Office <office@eorimag.ro>",
		To:      to,
		CC:      []string{"audit@eorimag.ro"},
	}, zap.NewNop())
}

func TestNotify_OK(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abc_front.pdf")
	if err := os.WriteFile(path, []byte("pdf"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	var got emailRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/emails" {
			t.Errorf("path = %s, want /emails", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer re_test" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL, []string{"ops@eorimag.ro"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := client.Notify(ctx, Message{
		Subject: "Comandă nouă",
		Text:    "body",
		ReplyTo: "Andrei <andrei@example.ro>",
		CC:      []string{"AUDIT@eorimag.ro", "legal@eorimag.ro"},
		Attachments: []model.Attachment{
			model.FileReference(path),
			model.FileReference(filepath.Join(dir, "missing.pdf")),
			model.InlineBlob("signature.png", []byte{0x89, 'P', 'N', 'G'}),
			model.InlineBlob("empty.png", nil),
		},
	})
	if err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	if got.From != `"Office" <office@eorimag.ro>` {
		t.Fatalf("from = %q", got.From)
	}
	if len(got.To) != 1 || got.To[0] != "ops@eorimag.ro" {
		t.Fatalf("to = %v", got.To)
	}
	if len(got.CC) != 2 || got.CC[0] != "audit@eorimag.ro" || got.CC[1] != "legal@eorimag.ro" {
		t.Fatalf("cc = %v", got.CC)
	}
	if got.ReplyTo != "andrei@example.ro" {
		t.Fatalf("reply_to = %q", got.ReplyTo)
	}
	if len(got.Attachments) != 2 {
		t.Fatalf("attachments = %d, want 2", len(got.Attachments))
	}
	if got.Attachments[0].Filename != "abc_front.pdf" || got.Attachments[0].Content != base64.StdEncoding.EncodeToString([]byte("pdf")) {
		t.Fatalf("unexpected first attachment: %+v", got.Attachments[0])
	}
	if got.Attachments[1].Filename != "signature.png" {
		t.Fatalf("unexpected second attachment: %+v", got.Attachments[1])
	}
}

func TestNotify_CreatedIsSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL, []string{"ops@eorimag.ro"})

	if err := client.Notify(context.Background(), Message{Subject: "s", Text: "t"}); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
}

func TestNotify_Rejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL, []string{"ops@eorimag.ro"})

	err := client.Notify(context.Background(), Message{Subject: "s", Text: "t"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestNotify_NoRecipientsDoesNotCallProvider(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL, nil)

	err := client.Notify(context.Background(), Message{Subject: "s", Text: "t"})
	if !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("provider was called %d times", calls.Load())
	}
}

func TestNotify_NoAPIKey(t *testing.T) {
	client := NewClient(Config{To: []string{"ops@eorimag.ro"}}, zap.NewNop())

	err := client.Notify(context.Background(), Message{Subject: "s", Text: "t"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNormalizeSender(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		wantAddr string
	}{
		{in: "", wantName: "EORIMAG", wantAddr: "no-reply@eorieu.app"},
		{in: "not an address", wantName: "EORIMAG", wantAddr: "no-reply@eorieu.app"},
		{in: "office@eorimag.ro", wantName: "EORIMAG", wantAddr: "office@eorimag.ro"},
		{in: "Birou EORI <office@eorimag.ro>", wantName: "Birou EORI", wantAddr: "office@eorimag.ro"},
		{in: `"Birou" <office@eorimag.ro>`, wantName: "Birou", wantAddr: "office@eorimag.ro"},
		{in: `"Doe, John" <john@example.com>`, wantName: "Doe, John", wantAddr: "john@example.com"},
		{in: `"Ion \"Vama\" Pop" <ion@example.ro>`, wantName: `Ion "Vama" Pop`, wantAddr: "ion@example.ro"},
		{in: "=?utf-8?q?Bir=C4=83u?= <office@eorimag.ro>", wantName: "Birău", wantAddr: "office@eorimag.ro"},
	}

	for _, tt := range tests {
		got := NormalizeSender(tt.in)

		addr, err := mail.ParseAddress(got)
		if err != nil {
			t.Fatalf("NormalizeSender(%q) = %q is not a valid address: %v", tt.in, got, err)
		}
		if addr.Name != tt.wantName || addr.Address != tt.wantAddr {
			t.Fatalf("NormalizeSender(%q) = %q, parsed as %q <%s>, want %q <%s>",
				tt.in, got, addr.Name, addr.Address, tt.wantName, tt.wantAddr)
		}
	}
}

func TestResolveAttachment_UnknownKind(t *testing.T) {
	if _, _, err := ResolveAttachment(model.Attachment{Kind: 42}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
