package twiliowhatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(WithAccountSID("AC123"), WithAuthToken("secret"), WithFromWhats("+14155238886"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("secret")); err == nil {
		t.Error("expected error without a sending number")
	}
}

func TestNewClient_PrefixesFromNumber(t *testing.T) {
	c := newTestClient(t)
	if c.fromWhats != "whatsapp:+14155238886" {
		t.Errorf("unexpected from address %q", c.fromWhats)
	}
}

func TestAddress(t *testing.T) {
	if got := Address("+94771234567"); got != "whatsapp:+94771234567" {
		t.Errorf("Address = %q", got)
	}
	if got := Address("whatsapp:+94771234567"); got != "whatsapp:+94771234567" {
		t.Errorf("Address should not double the prefix, got %q", got)
	}
	if got := StripAddress("whatsapp:+94771234567"); got != "+94771234567" {
		t.Errorf("StripAddress = %q", got)
	}
}

func TestDownload_UsesBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	c := newTestClient(t)
	rc, err := c.Download(context.Background(), srv.URL+"/Media/ME1")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "image-bytes" {
		t.Errorf("unexpected body %q", data)
	}
}

func TestDownload_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t)
	if _, err := c.Download(context.Background(), srv.URL); err == nil {
		t.Error("expected error for 404")
	}
}

func sign(token, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := url
	for _, k := range keys {
		payload += k + params[k]
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateRequest(t *testing.T) {
	c := newTestClient(t)
	url := "https://bot.example.com/webhook/twilio"
	params := map[string]string{"From": "whatsapp:+94771234567", "Body": "hi", "MessageSid": "SM1"}

	if !c.ValidateRequest(url, params, sign("secret", url, params)) {
		t.Error("expected a correctly signed request to validate")
	}
	if c.ValidateRequest(url, params, sign("wrong", url, params)) {
		t.Error("expected a request signed with another token to fail")
	}
}

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	if err := mock.SendMessage(ctx, "12345", "Hello Test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.SendMedia(ctx, "12345", "Your resume", "https://x/media/a.pdf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := mock.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sent))
	}
	if sent[0].Body != "Hello Test" || sent[0].MediaURL != "" {
		t.Errorf("unexpected text message %+v", sent[0])
	}
	if sent[1].MediaURL != "https://x/media/a.pdf" {
		t.Errorf("unexpected media message %+v", sent[1])
	}
}
