package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/BTreeMap/ResumePipe/internal/messaging"
	"github.com/BTreeMap/ResumePipe/internal/metrics"
	"github.com/BTreeMap/ResumePipe/internal/models"
	"github.com/BTreeMap/ResumePipe/internal/store"
	"github.com/BTreeMap/ResumePipe/internal/twiliowhatsapp"
)

type stubBot struct{}

func (stubBot) Send(tgbotapi.Chattable) (tgbotapi.Message, error) { return tgbotapi.Message{}, nil }
func (stubBot) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}
func (stubBot) GetFileDirectURL(string) (string, error)                      { return "", nil }
func (stubBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return nil }
func (stubBot) StopReceivingUpdates()                                        {}

type stubSessions struct{}

func (stubSessions) Active() int { return 1 }
func (stubSessions) Timers() []models.TimerInfo {
	return []models.TimerInfo{{ID: "t1", Description: "idle timeout telegram:42"}}
}

const adminToken = "admin-secret"

func newTestServer(t *testing.T) (*Server, *messaging.TelegramService, *messaging.TwilioService, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	tg := messaging.NewTelegramService(stubBot{}, messaging.WithWebhookSecret("tg-secret"))
	tw := messaging.NewTwilioService(twiliowhatsapp.NewMockClient(),
		messaging.WithMediaDir(t.TempDir()), messaging.WithPublicURL("https://bot.example.com"))
	t.Cleanup(func() {
		tg.Stop()
		tw.Stop()
	})
	srv := NewServer(
		WithAdminToken(adminToken),
		WithTelegram(tg),
		WithTwilio(tw),
		WithUsageLog(st),
		WithSessions(stubSessions{}),
		WithMetricsHandler(metrics.NewPrometheusRecorder().Handler()),
	)
	return srv, tg, tw, st
}

func do(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func assertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rr.Body.String(), err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assertHTTPStatus(t, http.StatusOK, rr.Code, "health")
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body["status"] != "ok" {
		t.Errorf("unexpected health body %q", rr.Body.String())
	}
}

func TestAdminRequiresBearerToken(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	for _, header := range []string{"", "Bearer wrong", adminToken} {
		req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := do(t, srv, req)
		assertHTTPStatus(t, http.StatusUnauthorized, rr.Code, "admin with header "+header)
		if resp := decodeEnvelope(t, rr); resp.Status != "error" {
			t.Errorf("expected error envelope, got %+v", resp)
		}
	}
}

func TestAdminUsers(t *testing.T) {
	srv, _, _, st := newTestServer(t)
	st.Append(context.Background(), "jane")
	st.Append(context.Background(), "john")

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rr := do(t, srv, req)
	assertHTTPStatus(t, http.StatusOK, rr.Code, "admin users")

	resp := decodeEnvelope(t, rr)
	result, ok := resp.Result.(map[string]interface{})
	if resp.Status != "ok" || !ok {
		t.Fatalf("unexpected envelope %+v", resp)
	}
	if result["count"] != float64(2) {
		t.Errorf("expected 2 users, got %v", result["count"])
	}
	if !strings.Contains(rr.Body.String(), `"jane"`) {
		t.Errorf("expected jane in %s", rr.Body.String())
	}
}

func TestAdminSessions(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rr := do(t, srv, req)
	assertHTTPStatus(t, http.StatusOK, rr.Code, "admin sessions")
	if !strings.Contains(rr.Body.String(), `"t1"`) || !strings.Contains(rr.Body.String(), `"active":1`) {
		t.Errorf("unexpected sessions body %s", rr.Body.String())
	}
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	srv := NewServer(WithUsageLog(store.NewInMemoryStore()))
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Authorization", "Bearer ")
	rr := do(t, srv, req)
	assertHTTPStatus(t, http.StatusNotFound, rr.Code, "admin without token")
}

func TestMetrics(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assertHTTPStatus(t, http.StatusOK, rr.Code, "metrics")
}

func TestTelegramWebhookRoute(t *testing.T) {
	srv, tg, _, _ := newTestServer(t)
	body := `{"update_id":5,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"/start"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(body))
	req.Header.Set(messaging.TelegramSecretHeader, "tg-secret")
	rr := do(t, srv, req)
	assertHTTPStatus(t, http.StatusOK, rr.Code, "telegram webhook")

	select {
	case msg := <-tg.Responses():
		if msg.UserID != "42" || msg.Text != "/start" {
			t.Errorf("unexpected inbound %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("webhook did not reach the service")
	}

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/webhook/telegram", nil))
	assertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "telegram webhook GET")
}

func TestTwilioWebhookRoute(t *testing.T) {
	srv, _, tw, _ := newTestServer(t)
	form := url.Values{"From": {"whatsapp:+94771234567"}, "Body": {"/start"}, "MessageSid": {"SM1"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := do(t, srv, req)
	assertHTTPStatus(t, http.StatusOK, rr.Code, "twilio webhook")

	msg := <-tw.Responses()
	if msg.UserID != "+94771234567" || msg.MessageID != "SM1" {
		t.Errorf("unexpected inbound %+v", msg)
	}
}

func TestMediaRoute(t *testing.T) {
	dir := t.TempDir()
	mock := twiliowhatsapp.NewMockClient()
	tw := messaging.NewTwilioService(mock, messaging.WithMediaDir(dir), messaging.WithPublicURL("https://bot.example.com"))
	defer tw.Stop()
	srv := NewServer(WithTwilio(tw))

	src := filepath.Join(t.TempDir(), "resume.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := tw.SendMessage(context.Background(), "+1", models.OutboundMessage{DocumentPath: src, Filename: "Jane_resume.pdf"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	sent := mock.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected one media message, got %d", len(sent))
	}
	path := strings.TrimPrefix(sent[0].MediaURL, "https://bot.example.com")

	rr := do(t, srv, httptest.NewRequest(http.MethodGet, path, nil))
	assertHTTPStatus(t, http.StatusOK, rr.Code, "media")
	if rr.Body.String() != "%PDF-1.4" {
		t.Errorf("unexpected media body %q", rr.Body.String())
	}

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, messaging.MediaRoutePrefix+"missing.pdf", nil))
	assertHTTPStatus(t, http.StatusNotFound, rr.Code, "missing media")
}

func TestRunShutsDownOnCancel(t *testing.T) {
	srv := NewServer(WithAddr("127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(DefaultShutdownTimeout + time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
