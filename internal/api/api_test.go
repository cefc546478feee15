package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/conversation"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/store"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/testutil"
)

type stubTurns struct {
	got      []conversation.InboundMessage
	reply    conversation.Reply
	err      error
	resetIDs []string
}

func (s *stubTurns) HandleMessage(ctx context.Context, msg conversation.InboundMessage) (conversation.Reply, error) {
	s.got = append(s.got, msg)
	return s.reply, s.err
}

func (s *stubTurns) ResetSession(ctx context.Context, userID string) error {
	s.resetIDs = append(s.resetIDs, userID)
	return s.err
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp models.APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec, resp
}

func TestMessagesHandler(t *testing.T) {
	turns := &stubTurns{reply: conversation.Reply{Text: "hello", Intent: models.IntentCasual, TurnID: "t1"}}
	h := NewServer(turns, store.NewInMemoryStore()).Router()

	rec, resp := do(t, h, http.MethodPost, "/messages", `{"from":"+91 98765 43210","body":"hi","message_id":"m1"}`, nil)
	if rec.Code != http.StatusOK || resp.Status != string(models.APIStatusOK) {
		t.Fatalf("status = %d %q", rec.Code, resp.Status)
	}
	result, _ := resp.Result.(map[string]interface{})
	if result["reply"] != "hello" || result["intent"] != string(models.IntentCasual) {
		t.Errorf("result = %v", resp.Result)
	}
	if len(turns.got) != 1 || turns.got[0].SenderID != "919876543210" || turns.got[0].MessageID != "m1" {
		t.Errorf("inbound = %+v", turns.got)
	}
}

func TestMessagesHandlerErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		turns    *stubTurns
		wantCode int
		wantStat models.APIStatus
	}{
		{"bad json", `{"from":`, &stubTurns{}, http.StatusBadRequest, models.APIStatusError},
		{"bad sender", `{"from":"12","body":"hi"}`, &stubTurns{}, http.StatusBadRequest, models.APIStatusError},
		{"turn failure", `{"from":"919876543210","body":"hi"}`, &stubTurns{err: errors.New("boom")}, http.StatusInternalServerError, models.APIStatusError},
		{"no reply", `{"from":"919876543210","body":"hi"}`, &stubTurns{reply: conversation.Reply{NoReply: true}}, http.StatusOK, models.APIStatusIgnored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer(tt.turns, store.NewInMemoryStore()).Router()
			rec, resp := do(t, h, http.MethodPost, "/messages", tt.body, nil)
			if rec.Code != tt.wantCode || resp.Status != string(tt.wantStat) {
				t.Errorf("got %d %q, want %d %q", rec.Code, resp.Status, tt.wantCode, tt.wantStat)
			}
		})
	}
}

func TestMemberEndpoints(t *testing.T) {
	st := store.NewInMemoryStore()
	ctx := context.Background()
	if err := st.CreateProfile(ctx, &models.Profile{UserID: "919876543210", Basic: models.BasicProfile{Email: "a@example.org", Verified: true}}); err != nil {
		t.Fatal(err)
	}
	if err := st.PutMemory(ctx, &models.Memory{UserID: "919876543210"}); err != nil {
		t.Fatal(err)
	}
	turns := &stubTurns{}
	h := NewServer(turns, st).Router()

	if rec, _ := do(t, h, http.MethodGet, "/users/919876543210/profile", "", nil); rec.Code != http.StatusOK {
		t.Errorf("profile status = %d", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/users/000000000/profile", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing profile status = %d", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/users/919876543210/memory", "", nil); rec.Code != http.StatusOK {
		t.Errorf("memory status = %d", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/users/000000000/memory", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing memory status = %d", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodDelete, "/users/919876543210/session", "", nil); rec.Code != http.StatusOK {
		t.Errorf("reset status = %d", rec.Code)
	}
	if len(turns.resetIDs) != 1 || turns.resetIDs[0] != "919876543210" {
		t.Errorf("reset ids = %v", turns.resetIDs)
	}
}

func TestBearerAuth(t *testing.T) {
	h := NewServer(&stubTurns{}, store.NewInMemoryStore(), WithAPIToken("s3cret")).Router()

	if rec, _ := do(t, h, http.MethodGet, "/users/1/profile", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/users/1/profile", "", map[string]string{"Authorization": "Bearer wrong"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/users/1/profile", "", map[string]string{"Authorization": "Bearer s3cret"}); rec.Code != http.StatusNotFound {
		t.Errorf("valid token: status = %d", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health should be public: status = %d", rec.Code)
	}
}

func TestValidateRefusesPublicBindWithoutToken(t *testing.T) {
	tests := []struct {
		addr    string
		token   string
		wantErr error
	}{
		{DefaultAddr, "", nil},
		{"localhost:9000", "", nil},
		{"[::1]:8080", "", nil},
		{":8080", "", ErrInsecureBind},
		{"0.0.0.0:8080", "", ErrInsecureBind},
		{"10.0.0.5:8080", "", ErrInsecureBind},
		{":8080", "s3cret", nil},
	}
	for _, tt := range tests {
		t.Run(tt.addr+"/"+tt.token, func(t *testing.T) {
			s := NewServer(&stubTurns{}, store.NewInMemoryStore(), WithAddr(tt.addr), WithAPIToken(tt.token))
			if err := s.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunRefusesPublicBindWithoutToken(t *testing.T) {
	s := NewServer(&stubTurns{}, store.NewInMemoryStore(), WithAddr(":0"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Run(ctx); !errors.Is(err, ErrInsecureBind) {
		t.Errorf("Run() = %v, want ErrInsecureBind", err)
	}
}

func TestRespondEncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	respond(rec, http.StatusOK, models.Success(make(chan int)))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %q", ct)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "error" || resp.Message == "" {
		t.Errorf("body = %+v", resp)
	}
}

func TestTwilioWebhookMountedOnlyWhenConfigured(t *testing.T) {
	h := NewServer(&stubTurns{}, store.NewInMemoryStore()).Router()
	if rec, _ := do(t, h, http.MethodPost, "/webhook/twilio", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unconfigured webhook status = %d", rec.Code)
	}

	called := false
	h = NewServer(&stubTurns{}, store.NewInMemoryStore(), WithTwilioWebhook(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})).Router()
	if rec, _ := do(t, h, http.MethodPost, "/webhook/twilio", "", nil); rec.Code != http.StatusOK || !called {
		t.Errorf("webhook status = %d called = %v", rec.Code, called)
	}
}

// A full conversation start through the real orchestrator.
func TestMessagesWithOrchestrator(t *testing.T) {
	st := store.NewInMemoryStore()
	h := NewServer(conversation.NewOrchestrator(st), st).Router()

	rec, resp := do(t, h, http.MethodPost, "/messages", `{"from":"919876543210","body":"hello","message_id":"m1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	result, _ := resp.Result.(map[string]interface{})
	if reply, _ := result["reply"].(string); !strings.Contains(reply, "email") {
		t.Errorf("reply = %q, want the verification prompt", reply)
	}

	_, resp = do(t, h, http.MethodPost, "/messages", `{"from":"919876543210","body":"hello","message_id":"m1"}`, nil)
	if resp.Status != string(models.APIStatusIgnored) {
		t.Errorf("duplicate status = %q, want ignored", resp.Status)
	}
}

func TestSearchThroughAPI(t *testing.T) {
	st := store.NewInMemoryStore()
	done := time.Now().Add(-time.Hour)
	testutil.SeedProfiles(t, st,
		testutil.CompleteProfile("919800000001", "Pune", "React Developer", done),
		testutil.CompleteProfile("919800000002", "Pune", "React Developer", done),
		testutil.CompleteProfile("919800000003", "Delhi", "Chartered Accountant", done),
	)
	h := NewServer(conversation.NewOrchestrator(st), st).Router()

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/messages", MessageRequest{
		From: "919800000001", Body: "react developers in pune", MessageID: "s1",
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	testutil.AssertHTTPStatus(t, http.StatusOK, rec.Code, "search")
	resp := testutil.AssertJSONResponse(t, rec, models.APIStatusOK)

	var result MessageResult
	testutil.MustUnmarshalJSON(t, testutil.MustMarshalJSON(t, resp.Result), &result)
	if !strings.Contains(result.Reply, "Member 919800000002") {
		t.Errorf("reply = %q, want the other Pune developer", result.Reply)
	}
	if strings.Contains(result.Reply, "Member 919800000001") {
		t.Errorf("reply lists the requester: %q", result.Reply)
	}
}
