package stubserver

import (
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	msgCodeSent        = "验证码已发送"
	msgUserExists      = "用户已存在"
	msgRegistered      = "注册成功"
	msgCodeExpired     = "验证码已过期"
	msgCodeWrong       = "验证码错误"
	msgLoggedIn        = "登录成功"
	msgPasswordWrong   = "密码错误"
	msgUserMissing     = "用户不存在"
	msgPasswordChanged = "密码修改成功"
	msgUnknownAction   = "未知操作"
)

var errCodeWrong = errors.New("code mismatch")
var errCodeExpired = errors.New("code expired")

type verifyRequest struct {
	Action string `json:"action"`
	Email  string `json:"email"`
	Type   string `json:"type"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("email is required"))
		return
	}

	value, err := generateCode()
	if err != nil {
		writeJSON(w, http.StatusOK, fail("验证码发送失败"))
		return
	}

	s.mu.Lock()
	s.codes[email] = append(s.codes[email], &code{value: value, expiresAt: s.now().Add(s.codeTTL)})
	s.mu.Unlock()

	s.logger.Info("verification code issued",
		zap.String("email", email),
		zap.String("channel", req.Type))
	if s.deliver != nil {
		s.deliver(req.Type, email, value)
	}
	writeJSON(w, http.StatusOK, success(msgCodeSent))
}

type postRequest struct {
	Action      string `json:"action"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Code        string `json:"code"`
	Password    string `json:"password"`
	NewPassword string `json:"new_password"`
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	switch req.Action {
	case "register":
		s.register(w, req)
	case "login":
		s.login(w, req)
	case "reset":
		s.reset(w, req)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody(msgUnknownAction))
	}
}

func (s *Server) register(w http.ResponseWriter, req postRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.users[req.Username] != nil || s.byEmail[req.Email] != nil {
		writeJSON(w, http.StatusConflict, fail(msgUserExists))
		return
	}

	if !s.writeCodeResultLocked(w, req.Email, req.Code) {
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	u := &user{id: uuid.NewString(), username: req.Username, email: req.Email, password: hash}
	s.users[u.username] = u
	s.byEmail[u.email] = u

	writeJSON(w, http.StatusOK, success(msgRegistered))
}

func (s *Server) login(w http.ResponseWriter, req postRequest) {
	s.mu.Lock()
	u := s.users[req.Username]
	s.mu.Unlock()

	if u == nil {
		writeJSON(w, http.StatusUnauthorized, fail(msgUserMissing))
		return
	}
	if !u.password.matches(req.Password) {
		writeJSON(w, http.StatusUnauthorized, fail(msgPasswordWrong))
		return
	}

	token, err := s.issueToken(u.username)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	body := success(msgLoggedIn)
	body.Token = token
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) reset(w http.ResponseWriter, req postRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.byEmail[req.Email]
	if u == nil {
		writeJSON(w, http.StatusUnauthorized, fail(msgUserMissing))
		return
	}

	if !s.writeCodeResultLocked(w, req.Email, req.Code) {
		return
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	u.password = hash

	writeJSON(w, http.StatusOK, success(msgPasswordChanged))
}

// writeCodeResultLocked consumes the code and, on failure, writes the response.
// It reports whether the caller may continue.
func (s *Server) writeCodeResultLocked(w http.ResponseWriter, email, value string) bool {
	switch err := s.consumeCodeLocked(email, value); {
	case errors.Is(err, errCodeExpired):
		writeJSON(w, http.StatusOK, fail(msgCodeExpired))
		return false
	case err != nil:
		writeJSON(w, http.StatusUnauthorized, fail(msgCodeWrong))
		return false
	}
	return true
}

// consumeCodeLocked marks a matching unused code as used. A matching code past its
// expiry is still consumed.
func (s *Server) consumeCodeLocked(email, value string) error {
	for _, c := range s.codes[email] {
		if c.used || c.value != value {
			continue
		}
		c.used = true
		if s.now().After(c.expiresAt) {
			return errCodeExpired
		}
		return nil
	}
	return errCodeWrong
}

type calculateRequest struct {
	A    *float64 `json:"a"`
	B    *float64 `json:"b"`
	Expr *string  `json:"expr"`
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	switch {
	case req.Expr != nil:
		if s.evaluator == nil {
			writeJSON(w, http.StatusBadRequest, errorBody("expression evaluation disabled"))
			return
		}
		result, err := s.evaluator(*req.Expr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		if math.IsInf(result, 0) || math.IsNaN(result) {
			writeJSON(w, http.StatusBadRequest, errorBody("result is not a finite number"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]float64{"result": result})
	case req.A != nil && req.B != nil:
		writeJSON(w, http.StatusOK, map[string]float64{"sum": *req.A + *req.B})
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid JSON or missing fields"))
	}
}
