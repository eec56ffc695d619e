package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type recordedRequest struct {
	Path   string
	Header http.Header
	Body   map[string]interface{}
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func newFakeBackend(t *testing.T, status int, body string) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{status: status, body: body}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var decoded map[string]interface{}
		_ = json.Unmarshal(raw, &decoded)

		fb.mu.Lock()
		fb.requests = append(fb.requests, recordedRequest{Path: r.URL.Path, Header: r.Header.Clone(), Body: decoded})
		status, body := fb.status, fb.body
		fb.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return fb, srv
}

func (fb *fakeBackend) last(t *testing.T) recordedRequest {
	t.Helper()
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.requests) == 0 {
		t.Fatal("expected at least one request")
	}
	return fb.requests[len(fb.requests)-1]
}

func rejectionMessage(t *testing.T, err error) string {
	t.Helper()
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected *RejectedError, got %v", err)
	}
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected match, got %v", err)
	}
	return rejected.Message
}

func TestSendCodeSuccessPayload(t *testing.T) {
	fb, srv := newFakeBackend(t, http.StatusOK, `{"status":"success","message":"验证码已发送"}`)
	c := NewClient(srv.URL+"/", WithDefaultHeaders(map[string][]string{"X-Panel": {"test"}}))

	r, err := c.SendCode(context.Background(), "register", "a@b.co")
	if err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}
	if r.Status != "success" || r.StatusCode != http.StatusOK {
		t.Fatalf("unexpected response %+v", r)
	}

	req := fb.last(t)
	if req.Path != DefaultVerifyPath {
		t.Fatalf("expected %s, got %s", DefaultVerifyPath, req.Path)
	}
	if req.Body["action"] != "verify" || req.Body["email"] != "a@b.co" || req.Body["type"] != "register" {
		t.Fatalf("unexpected payload %v", req.Body)
	}
	if req.Header.Get("X-Panel") != "test" {
		t.Fatalf("default header not sent")
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("content type not set")
	}
}

func TestSendCodeRejections(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"fail status", http.StatusOK, `{"status":"fail","message":"邮箱不存在"}`, "邮箱不存在"},
		{"http error with message", http.StatusBadRequest, `{"message":"格式错误"}`, "格式错误"},
		{"http error with error field", http.StatusBadRequest, `{"error":"未知操作"}`, "未知操作"},
		{"http error empty", http.StatusInternalServerError, `{}`, msgSendFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, srv := newFakeBackend(t, tc.status, tc.body)
			_, err := NewClient(srv.URL).SendCode(context.Background(), "reset", "a@b.co")
			if got := rejectionMessage(t, err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSendCodeUnavailable(t *testing.T) {
	_, srv := newFakeBackend(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).SendCode(context.Background(), "register", "a@b.co")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if errors.Is(err, ErrRejected) {
		t.Fatalf("transport failure must not be a rejection")
	}
}

func TestSendCodeMalformedResponse(t *testing.T) {
	_, srv := newFakeBackend(t, http.StatusOK, `<html>`)
	_, err := NewClient(srv.URL).SendCode(context.Background(), "register", "a@b.co")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestSubmitRejectionOrder(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		want     string
		conflict bool
	}{
		{"conflict wins over error field", http.StatusConflict, `{"error":"用户已存在"}`, msgConflict, true},
		{"error field", http.StatusUnauthorized, `{"error":"密码错误"}`, "密码错误", false},
		{"error field on 200", http.StatusOK, `{"error":"验证码错误"}`, "验证码错误", false},
		{"fail with message", http.StatusOK, `{"status":"fail","message":"验证码已过期"}`, "验证码已过期", false},
		{"fail without message", http.StatusOK, `{"status":"fail"}`, msgActionFailed, false},
		{"bare http error", http.StatusBadGateway, `{}`, "请求失败 (502)", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, srv := newFakeBackend(t, tc.status, tc.body)
			_, err := NewClient(srv.URL).Submit(context.Background(), LoginPayload{Action: ActionLogin})
			if got := rejectionMessage(t, err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
			if errors.Is(err, ErrConflict) != tc.conflict {
				t.Fatalf("conflict match mismatch for %v", err)
			}
		})
	}
}

func TestRegisterAndResetPayloads(t *testing.T) {
	fb, srv := newFakeBackend(t, http.StatusOK, `{"status":"success","message":"ok"}`)
	c := NewClient(srv.URL)

	if _, err := c.Register(context.Background(), "alice", "a@b.co", "123456", "secret1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	req := fb.last(t)
	if req.Path != DefaultSubmitPath {
		t.Fatalf("expected %s, got %s", DefaultSubmitPath, req.Path)
	}
	want := map[string]string{"action": "register", "username": "alice", "email": "a@b.co", "code": "123456", "password": "secret1"}
	for k, v := range want {
		if req.Body[k] != v {
			t.Fatalf("register field %s: expected %q, got %v", k, v, req.Body[k])
		}
	}

	if _, err := c.ResetPassword(context.Background(), "a@b.co", "654321", "newpass"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	req = fb.last(t)
	if req.Body["action"] != "reset" || req.Body["new_password"] != "newpass" || req.Body["code"] != "654321" {
		t.Fatalf("unexpected reset payload %v", req.Body)
	}
}

func TestLoginDecodesToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	body, _ := json.Marshal(Response{Status: "success", Message: "登录成功", Token: token})
	_, srv := newFakeBackend(t, http.StatusOK, string(body))

	session, err := NewClient(srv.URL).Login(context.Background(), "alice", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if session.Subject != "alice" || session.Token != token {
		t.Fatalf("unexpected session %+v", session)
	}
	if !session.ExpiresAt.Equal(exp) {
		t.Fatalf("expected expiry %v, got %v", exp, session.ExpiresAt)
	}
	if session.Expired(exp.Add(-time.Second)) || !session.Expired(exp) {
		t.Fatalf("expiry check mismatch")
	}
}

func TestLoginWithoutToken(t *testing.T) {
	_, srv := newFakeBackend(t, http.StatusOK, `{"status":"success","message":"登录成功"}`)
	session, err := NewClient(srv.URL).Login(context.Background(), "bob", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if session.Username != "bob" || session.Token != "" || !session.ExpiresAt.IsZero() {
		t.Fatalf("unexpected session %+v", session)
	}
	if session.Expired(time.Now()) {
		t.Fatalf("session without expiry must not expire")
	}
}

func TestSessionEncodeRoundTrip(t *testing.T) {
	in := &Session{Username: "alice", Subject: "alice", ExpiresAt: time.Unix(1700000000, 0).UTC()}
	raw, err := EncodeSession(in)
	if err != nil {
		t.Fatalf("EncodeSession failed: %v", err)
	}
	out, err := DecodeSession(raw)
	if err != nil {
		t.Fatalf("DecodeSession failed: %v", err)
	}
	if out.Username != in.Username || !out.ExpiresAt.Equal(in.ExpiresAt) {
		t.Fatalf("round trip mismatch: %+v", out)
	}

	if _, err := DecodeSession("not json"); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestSum(t *testing.T) {
	fb, srv := newFakeBackend(t, http.StatusOK, `{"sum":4.5}`)
	got, err := NewClient(srv.URL).Sum(context.Background(), 1.5, 3)
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}
	if got != 4.5 {
		t.Fatalf("expected 4.5, got %v", got)
	}
	req := fb.last(t)
	if req.Path != DefaultCalculatePath || req.Body["a"] != 1.5 || req.Body["b"] != 3.0 {
		t.Fatalf("unexpected sum request %+v", req)
	}
}

func TestSumErrors(t *testing.T) {
	_, srv := newFakeBackend(t, http.StatusInternalServerError, `{}`)
	if _, err := NewClient(srv.URL).Sum(context.Background(), 1, 2); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}

	_, srv = newFakeBackend(t, http.StatusOK, `{"total":3}`)
	if _, err := NewClient(srv.URL).Sum(context.Background(), 1, 2); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"result":7}`, "7"},
		{`{"result":0.5}`, "0.5"},
		{`{"result":"Infinity"}`, "Infinity"},
	}
	for _, tc := range cases {
		fb, srv := newFakeBackend(t, http.StatusOK, tc.body)
		got, err := NewClient(srv.URL).Evaluate(context.Background(), "1+2*3")
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
		if fb.last(t).Body["expr"] != "1+2*3" {
			t.Fatalf("expression not sent")
		}
	}
}

func TestEvaluateErrors(t *testing.T) {
	_, srv := newFakeBackend(t, http.StatusBadRequest, `{"error":"division by zero"}`)
	_, err := NewClient(srv.URL).Evaluate(context.Background(), "1/0")
	if got := rejectionMessage(t, err); got != "division by zero" {
		t.Fatalf("expected backend error text, got %q", got)
	}

	_, srv = newFakeBackend(t, http.StatusBadRequest, `{}`)
	_, err = NewClient(srv.URL).Evaluate(context.Background(), "1/0")
	if got := rejectionMessage(t, err); got != msgCalculateError {
		t.Fatalf("expected fallback text, got %q", got)
	}
}

func TestWithPathsAndObserver(t *testing.T) {
	fb, srv := newFakeBackend(t, http.StatusOK, `{"status":"success"}`)

	var mu sync.Mutex
	var seen []string
	c := NewClient(srv.URL,
		WithPaths(Paths{Verify: "/api/verify"}),
		WithObserver(func(path string, _ time.Duration, err error) {
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				seen = append(seen, path)
			}
		}),
	)

	if _, err := c.SendCode(context.Background(), "register", "a@b.co"); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}
	if got := fb.last(t).Path; got != "/api/verify" {
		t.Fatalf("expected overridden path, got %s", got)
	}
	if _, err := c.Submit(context.Background(), LoginPayload{Action: ActionLogin}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got := fb.last(t).Path; got != DefaultSubmitPath {
		t.Fatalf("unset path must keep default, got %s", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(seen, ",") != "/api/verify,/post" {
		t.Fatalf("unexpected observed paths %v", seen)
	}
}

func TestReason(t *testing.T) {
	if Reason(nil) != "" {
		t.Fatalf("nil error must have empty reason")
	}
	if got := Reason(&RejectedError{StatusCode: 401, Message: "密码错误"}); got != "密码错误" {
		t.Fatalf("unexpected reason %q", got)
	}
	if got := Reason(errors.New("boom")); got != "boom" {
		t.Fatalf("unexpected reason %q", got)
	}
}
