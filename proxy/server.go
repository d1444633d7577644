// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/warden-foundation/warden/lib/netutil"
)

// dialTimeout bounds origin dials for both forwarding and CONNECT
// tunnels.
const dialTimeout = 10 * time.Second

// Server is a forward proxy bound to a loopback port. Construct with
// NewServer, bind with Start, release with Stop. The allowlist, rule
// set, and filter are immutable after construction; per-connection
// state never outlives its request.
type Server struct {
	bindAddress string
	allowlist   map[string]struct{}
	rules       ruleSet
	filter      Filter
	logger      *slog.Logger
	transport   *http.Transport

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	stopped    bool
}

// ServerConfig holds configuration for creating a proxy server.
type ServerConfig struct {
	// BindAddress defaults to "127.0.0.1:0" — an ephemeral loopback
	// port. The loopback bind is the proxy's entire security boundary;
	// it performs no caller authentication.
	BindAddress string

	// Rules are the credential injection rules. The server takes
	// ownership and closes their secret buffers on Stop.
	Rules []*CredentialRule

	// AllowedHosts lists hosts reachable without a credential rule.
	// Hosts covered by a rule are allowed implicitly.
	AllowedHosts []string

	// Filter optionally vetoes individual requests after the host
	// check. Nil allows everything.
	Filter Filter

	// Logger for connection logging. Header values are never logged.
	Logger *slog.Logger
}

// NewServer creates a proxy server. Call Start to bind it.
func NewServer(config ServerConfig) *Server {
	bindAddress := config.BindAddress
	if bindAddress == "" {
		bindAddress = "127.0.0.1:0"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	filter := config.Filter
	if filter == nil {
		filter = &AllowAllFilter{}
	}

	allowlist := make(map[string]struct{}, len(config.AllowedHosts))
	for _, host := range config.AllowedHosts {
		allowlist[normalizeHost(host)] = struct{}{}
	}

	return &Server{
		bindAddress: bindAddress,
		allowlist:   allowlist,
		rules:       newRuleSet(config.Rules),
		filter:      filter,
		logger:      logger,
		transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: dialTimeout,
			}).DialContext,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Start binds the listener and begins serving. Returns an error when
// the server was already started or stopped.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("proxy server already stopped")
	}
	if s.listener != nil {
		return fmt.Errorf("proxy server already started")
	}

	listener, err := net.Listen("tcp", s.bindAddress)
	if err != nil {
		return fmt.Errorf("binding proxy listener: %w", err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:     s,
		ReadTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("proxy serve loop ended", "error", err)
		}
	}()

	s.logger.Info("credential proxy started",
		"url", s.urlLocked(),
		"allowed_hosts", len(s.allowlist),
		"credential_rules", len(s.rules),
	)
	return nil
}

// Stop closes the listener (new connections are refused immediately),
// shuts down in-flight requests, and zeroes the credential buffers.
// Safe to call more than once and before Start.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Close()
	} else if s.listener != nil {
		err = s.listener.Close()
	}
	s.rules.close()
	s.logger.Info("credential proxy stopped")
	return err
}

// URL returns the proxy's base URL, or "" before Start.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.urlLocked()
}

func (s *Server) urlLocked() string {
	if s.listener == nil {
		return ""
	}
	return fmt.Sprintf("http://%s", s.listener.Addr())
}

// Port returns the bound port, or 0 before Start.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return 0
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// ServeHTTP dispatches proxied requests: CONNECT establishes a tunnel,
// everything else is plain HTTP forwarding.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		s.handleConnect(w, r)
		return
	}
	s.handleForward(w, r)
}

// hostAllowed is the single egress decision: explicit allowlist entry
// or credential rule coverage. Pure function of immutable state.
func (s *Server) hostAllowed(hostport string) bool {
	host := normalizeHost(hostport)
	if _, ok := s.allowlist[host]; ok {
		return true
	}
	return s.rules.match(host) != nil
}

// handleForward proxies one plain HTTP request to its origin.
func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	// A forward proxy receives absolute-form targets; anything else
	// was not sent through proxy-aware client code.
	if r.URL.Host == "" {
		http.Error(w, "proxy requires an absolute request target", http.StatusBadRequest)
		return
	}
	target := r.URL.Host

	if err := s.filter.Check([]string{r.Method, target, r.URL.Path}); err != nil {
		s.logger.Warn("request blocked by filter", "method", r.Method, "host", target, "error", err)
		http.Error(w, fmt.Sprintf("request blocked: %v", err), http.StatusForbidden)
		return
	}
	if !s.hostAllowed(target) {
		s.logger.Warn("host not allowed", "method", r.Method, "host", target)
		http.Error(w, "host not allowed", http.StatusForbidden)
		return
	}

	outbound := r.Clone(r.Context())
	outbound.RequestURI = ""
	stripHopByHop(outbound.Header)

	rule := s.rules.match(target)
	if rule != nil {
		// Set overwrites whatever the caller supplied for this
		// header; the sandboxed side can neither read nor choose the
		// injected value.
		outbound.Header.Set(rule.HeaderName(), rule.headerValue())
	}

	response, err := s.transport.RoundTrip(outbound)
	if err != nil {
		s.logger.Warn("origin request failed", "method", r.Method, "host", target, "error", err)
		http.Error(w, fmt.Sprintf("origin request failed: %v", err), http.StatusBadGateway)
		return
	}
	defer response.Body.Close()

	headers := w.Header()
	for key, values := range response.Header {
		if isHopByHopHeader(key) {
			continue
		}
		for _, value := range values {
			headers.Add(key, value)
		}
	}
	w.WriteHeader(response.StatusCode)
	written, _ := io.Copy(w, response.Body)

	s.logger.Info("request forwarded",
		"method", r.Method,
		"host", target,
		"status", response.StatusCode,
		"bytes", written,
		"injected", rule != nil,
	)
}

// handleConnect establishes a raw byte tunnel for an allowed target.
// Tunnel contents are opaque to the proxy; no credential injection
// applies.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	target := r.Host

	if err := s.filter.Check([]string{http.MethodConnect, target, ""}); err != nil {
		s.logger.Warn("tunnel blocked by filter", "host", target, "error", err)
		http.Error(w, fmt.Sprintf("request blocked: %v", err), http.StatusForbidden)
		return
	}
	if !s.hostAllowed(target) {
		s.logger.Warn("tunnel host not allowed", "host", target)
		http.Error(w, "host not allowed", http.StatusForbidden)
		return
	}

	origin, err := net.DialTimeout("tcp", target, dialTimeout)
	if err != nil {
		s.logger.Warn("tunnel dial failed", "host", target, "error", err)
		http.Error(w, fmt.Sprintf("origin dial failed: %v", err), http.StatusBadGateway)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		origin.Close()
		http.Error(w, "tunneling not supported", http.StatusInternalServerError)
		return
	}
	client, buffered, err := hijacker.Hijack()
	if err != nil {
		origin.Close()
		s.logger.Error("hijack failed", "host", target, "error", err)
		return
	}

	if _, err := client.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		client.Close()
		origin.Close()
		return
	}

	s.logger.Info("tunnel established", "host", target)
	// The client may have pipelined bytes behind the CONNECT line;
	// they sit in the hijacked buffered reader.
	if err := netutil.BridgeReaders(client, buffered.Reader, origin, origin); err != nil {
		s.logger.Warn("tunnel ended with error", "host", target, "error", err)
	}
}

// hopByHopHeaders are connection-scoped and must not cross the proxy.
var hopByHopHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"proxy-connection":    true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

func isHopByHopHeader(name string) bool {
	return hopByHopHeaders[strings.ToLower(name)]
}

func stripHopByHop(headers http.Header) {
	for name := range headers {
		if isHopByHopHeader(name) {
			headers.Del(name)
		}
	}
}
