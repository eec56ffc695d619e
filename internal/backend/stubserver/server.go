package stubserver

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultCodeTTL  = 5 * time.Minute
	DefaultTokenTTL = time.Hour
)

// Evaluator computes an arithmetic expression for /calculate.
type Evaluator func(expr string) (float64, error)

// Delivery receives every issued code; the stub has no mail transport.
type Delivery func(channel, email, code string)

type user struct {
	id       string
	username string
	email    string
	password passwordHash
}

type code struct {
	value     string
	expiresAt time.Time
	used      bool
}

// Server is an http.Handler serving the panel backend API from memory.
type Server struct {
	mu      sync.Mutex
	users   map[string]*user
	byEmail map[string]*user
	codes   map[string][]*code

	codeTTL    time.Duration
	tokenTTL   time.Duration
	signingKey []byte
	now        func() time.Time
	evaluator  Evaluator
	deliver    Delivery
	logger     *zap.Logger

	router chi.Router
}

type Option func(s *Server)

func WithEvaluator(e Evaluator) Option {
	return func(s *Server) {
		s.evaluator = e
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func WithSigningKey(key []byte) Option {
	return func(s *Server) {
		s.signingKey = key
	}
}

func WithDelivery(d Delivery) Option {
	return func(s *Server) {
		s.deliver = d
	}
}

func WithCodeTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.codeTTL = ttl
	}
}

// New returns a server with no users. Without WithSigningKey a random key is generated.
func New(opts ...Option) *Server {
	s := &Server{
		users:    make(map[string]*user),
		byEmail:  make(map[string]*user),
		codes:    make(map[string][]*code),
		codeTTL:  DefaultCodeTTL,
		tokenTTL: DefaultTokenTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if len(s.signingKey) == 0 {
		s.signingKey = []byte(uuid.NewString())
	}

	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(requestLogger(s.logger))
	router.Use(middleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Post("/verify", s.handleVerify)
	router.Post("/post", s.handlePost)
	router.Post("/calculate", s.handleCalculate)

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("endpoint not found"))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
	})

	return router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// LastCode returns the most recent code issued for email.
func (s *Server) LastCode(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issued := s.codes[email]
	if len(issued) == 0 {
		return "", false
	}
	return issued[len(issued)-1].value, true
}

// SigningKey returns the HS256 key used for login tokens.
func (s *Server) SigningKey() []byte {
	return s.signingKey
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

func success(msg string) statusBody { return statusBody{Status: "success", Message: msg} }
func fail(msg string) statusBody    { return statusBody{Status: "fail", Message: msg} }

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decode(r *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(v)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s *Server) issueToken(username string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}
