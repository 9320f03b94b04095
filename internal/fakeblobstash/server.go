// Package fakeblobstash provides an in-memory BlobStash HTTP server for
// testing purposes. It implements the docstore, kvstore, blobstore and
// file-tree node endpoints the client uses, evaluates compiled document
// queries, and includes failure injection capabilities.
//
// To flexibly inject failures, you can configure stub responses that match
// specific methods and paths, along with failure configurations that specify
// how it fails (e.g., delays, invalid responses, dropped connections).
package fakeblobstash

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/logger"
)

// cryptoRandInt generates a cryptographically secure random integer in [0, max)
func cryptoRandInt(rMax int) int {
	if rMax <= 0 {
		return 0
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(rMax)))
	return int(n.Int64())
}

// cryptoRandInt64 generates a cryptographically secure random int64 in [0, max)
func cryptoRandInt64(rMax int64) int64 {
	if rMax <= 0 {
		return 0
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(rMax))
	return n.Int64()
}

// cryptoRandFloat64 generates a cryptographically secure random float64 in [0.0, 1.0)
func cryptoRandFloat64() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(1<<53))
	return float64(n.Int64()) / float64(1<<53)
}

// FailureType represents the type of failure to inject during request processing
type FailureType string

const (
	// FailureNone indicates no failure injection
	FailureNone FailureType = "none"
	// FailureRequestDelay delays before processing the request
	FailureRequestDelay FailureType = "request_delay"
	// FailureInvalidResponse sends random binary data with a 200 status
	FailureInvalidResponse FailureType = "invalid_response"
	// FailureDropConnection closes the underlying network connection without a response
	FailureDropConnection FailureType = "drop_connection"
	// FailurePartialMessage sends only half of the response body
	FailurePartialMessage FailureType = "partial_message"
	// FailureCorruptedMessage corrupts random bytes in the response body
	FailureCorruptedMessage FailureType = "corrupted_message"
)

// RequestMatcher defines criteria for matching incoming HTTP requests.
type RequestMatcher struct {
	// Method is the HTTP method to match
	Method string
	// Path is the exact URL path to match
	Path string
	// Matcher is an optional function to match on the whole request.
	Matcher func(r *http.Request) bool
}

func (m RequestMatcher) match(r *http.Request) bool {
	if m.Method != "" && m.Method != r.Method {
		return false
	}
	if m.Path != "" && m.Path != r.URL.Path {
		return false
	}
	return m.Matcher == nil || m.Matcher(r)
}

// StubResponse defines a pre-configured response for matching requests,
// served instead of the in-memory store.
type StubResponse struct {
	// Matcher determines which requests this stub should handle
	Matcher RequestMatcher
	// Status defaults to 200
	Status int
	// Body is encoded as JSON unless it is a []byte
	Body any
	// Failures defines failure injection configurations for this response
	Failures []FailureConfig
}

// FailureConfig defines how and when to inject a specific failure type
type FailureConfig struct {
	// Type specifies the type of failure to inject
	Type FailureType
	// Probability of triggering this failure (0.0 to 1.0)
	Probability float64
	// MinDelay is the minimum delay for delay-based failures
	MinDelay time.Duration
	// MaxDelay is the maximum delay for delay-based failures
	MaxDelay time.Duration
}

// Server is a fake BlobStash HTTP server with support for stub responses and
// failure injection.
type Server struct {
	addr     string
	listener net.Listener
	http     *http.Server
	router   *mux.Router

	mu             sync.RWMutex
	stubResponses  []StubResponse
	globalFailures []FailureConfig

	docs          map[string]*collection
	storedQueries map[string]StoredQuery
	kv            map[string][]keyValue
	blobs         map[string][]byte
	nodes         map[string]*nodeEntry

	// APIKey, when set, is required as the basic auth password.
	APIKey string

	// Now is the server clock; timestamps are truncated to the second.
	Now func() time.Time

	logger logger.Logger
}

// NewServer creates a new fake BlobStash server.
// Use "127.0.0.1:0" to bind to a random available port.
func NewServer(addr string) *Server {
	s := &Server{
		addr:          addr,
		docs:          make(map[string]*collection),
		storedQueries: make(map[string]StoredQuery),
		kv:            make(map[string][]keyValue),
		blobs:         make(map[string][]byte),
		nodes:         make(map[string]*nodeEntry),
		Now:           time.Now,
		logger:        logger.Nop(),
	}
	s.router = s.routes()
	return s
}

// SetLogger sets the logger used for request and failure logs.
func (s *Server) SetLogger(l logger.Logger) {
	s.logger = l
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.authMiddleware, s.stubMiddleware)

	r.HandleFunc("/api/docstore/", s.handleCollections).Methods(http.MethodGet)
	r.HandleFunc("/api/docstore/{col}", s.handleQuery).Methods(http.MethodGet)
	r.HandleFunc("/api/docstore/{col}", s.handleInsert).Methods(http.MethodPost)
	r.HandleFunc("/api/docstore/{col}/{id}", s.handleGetDoc).Methods(http.MethodGet)
	r.HandleFunc("/api/docstore/{col}/{id}", s.handleReplaceDoc).Methods(http.MethodPost)
	r.HandleFunc("/api/docstore/{col}/{id}", s.handlePatchDoc).Methods(http.MethodPatch)
	r.HandleFunc("/api/docstore/{col}/{id}", s.handleDeleteDoc).Methods(http.MethodDelete)
	r.HandleFunc("/api/docstore/{col}/{id}/_versions", s.handleDocVersions).Methods(http.MethodGet)

	r.HandleFunc("/api/kvstore/keys", s.handleKeys).Methods(http.MethodGet)
	r.HandleFunc("/api/kvstore/key/{key}", s.handleGetKey).Methods(http.MethodGet)
	r.HandleFunc("/api/kvstore/key/{key}", s.handlePutKey).Methods(http.MethodPost)
	r.HandleFunc("/api/kvstore/key/{key}/_versions", s.handleKeyVersions).Methods(http.MethodGet)

	r.HandleFunc("/api/blobstore/blobs", s.handleBlobs).Methods(http.MethodGet)
	r.HandleFunc("/api/blobstore/blob/{hash}", s.handleGetBlob).Methods(http.MethodGet)
	r.HandleFunc("/api/blobstore/upload", s.handleUpload).Methods(http.MethodPost)

	r.HandleFunc("/api/filetree/node/{ref}", s.handleNode).Methods(http.MethodGet)
	r.HandleFunc("/api/filetree/file/{ref}", s.handleFile).Methods(http.MethodGet)

	return r
}

// Handler returns the server's HTTP handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// AddStubResponse adds a stub response configuration to the server.
// Stub responses are matched in the order they were added.
func (s *Server) AddStubResponse(stub StubResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubResponses = append(s.stubResponses, stub)
}

// ClearStubResponses removes every stub response.
func (s *Server) ClearStubResponses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubResponses = nil
}

// SetGlobalFailures sets failure configurations that apply to all requests.
// These are checked before stub-specific failures.
func (s *Server) SetGlobalFailures(failures []FailureConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalFailures = failures
}

// Start starts the server and begins accepting connections.
// Returns an error if the server cannot bind to the specified address.
func (s *Server) Start() error {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("fakeblobstash: serve", "error", err)
		}
	}()

	return nil
}

// Stop shuts down the server and closes all connections
func (s *Server) Stop() error {
	if s.http != nil {
		return s.http.Close()
	}
	return nil
}

// Address returns the actual address the server is listening on.
// This is useful when using "127.0.0.1:0" to get the assigned port.
func (s *Server) Address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the base URL of the running server.
func (s *Server) URL() string {
	return "http://" + s.Address()
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.APIKey != "" {
			_, key, ok := r.BasicAuth()
			if !ok || key != s.APIKey {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) stubMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		globalFailures := s.globalFailures
		var matchedStub *StubResponse
		for i := range s.stubResponses {
			if s.stubResponses[i].Matcher.match(r) {
				stub := s.stubResponses[i]
				matchedStub = &stub
				break
			}
		}
		s.mu.RUnlock()

		s.logger.Debug("fakeblobstash: request", "method", r.Method, "path", r.URL.Path, "stubbed", matchedStub != nil)

		for _, failure := range globalFailures {
			if shouldTriggerFailure(failure.Probability) {
				if err := s.applyFailure(w, failure, nil); err != nil {
					return
				}
			}
		}

		if matchedStub == nil {
			next.ServeHTTP(w, r)
			return
		}

		body, err := stubBody(matchedStub)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, failure := range matchedStub.Failures {
			if shouldTriggerFailure(failure.Probability) {
				if err := s.applyFailure(w, failure, body); err != nil {
					return
				}
			}
		}

		status := matchedStub.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", constants.ContentTypeJSON)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	})
}

func stubBody(stub *StubResponse) ([]byte, error) {
	switch b := stub.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	default:
		return json.Marshal(b)
	}
}

// applyFailure injects failure into the response. A non-nil error means the
// response was taken over and the request must not be processed further.
func (s *Server) applyFailure(w http.ResponseWriter, failure FailureConfig, body []byte) error {
	s.logger.Debug("fakeblobstash: injecting failure", "type", failure.Type)

	switch failure.Type {
	case FailureRequestDelay:
		time.Sleep(randomDuration(failure.MinDelay, failure.MaxDelay))

	case FailureInvalidResponse:
		data := make([]byte, 100)
		_, _ = rand.Read(data)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return fmt.Errorf("invalid response sent")

	case FailureDropConnection:
		hj, ok := w.(http.Hijacker)
		if !ok {
			return fmt.Errorf("connection cannot be hijacked")
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			return err
		}
		conn.Close()
		return fmt.Errorf("connection dropped")

	case FailurePartialMessage:
		if body != nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body[:len(body)/2])
			return fmt.Errorf("partial message sent")
		}

	case FailureCorruptedMessage:
		if body != nil {
			data := append([]byte(nil), body...)
			for i := 0; i < len(data) && i < 10; i++ {
				data[cryptoRandInt(len(data))] = byte(cryptoRandInt(256))
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return fmt.Errorf("corrupted message sent")
		}
	}

	return nil
}

func shouldTriggerFailure(probability float64) bool {
	if probability <= 0 {
		return false
	}
	if probability >= 1 {
		return true
	}
	return cryptoRandFloat64() < probability
}

func randomDuration(dMin, dMax time.Duration) time.Duration {
	if dMin >= dMax {
		return dMin
	}
	return dMin + time.Duration(cryptoRandInt64(int64(dMax-dMin)))
}

// Match creates a RequestMatcher that matches by method and path
func Match(method, path string) RequestMatcher {
	return RequestMatcher{Method: method, Path: path}
}

// SimpleStubResponse creates a basic stub response without failure injection
func SimpleStubResponse(method, path string, body any) StubResponse {
	return StubResponse{
		Matcher: Match(method, path),
		Body:    body,
	}
}

// ErrorStubResponse creates a stub response that fails with status
func ErrorStubResponse(method, path string, status int, message string) StubResponse {
	return StubResponse{
		Matcher: Match(method, path),
		Status:  status,
		Body:    map[string]any{"error": message},
	}
}

func (s *Server) now() time.Time {
	return s.Now().UTC().Truncate(time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", constants.ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	data, _ := json.Marshal(map[string]any{"error": message})
	w.Header().Set("Content-Type", constants.ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
