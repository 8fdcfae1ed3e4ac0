// Package authserver with the HTTP server that signs the access requests of web clients
package authserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
	"github.com/wostzone/bbtclient-go/api"
	"github.com/wostzone/bbtclient-go/pkg/signing"
)

// Metric names maintained by the server
const (
	MetricSigned = "auth.signed" // signed requests
	MetricDenied = "auth.denied" // requests refused for missing parameters
)

// AuthServer signs access requests of clients connected to the platform.
// The secret key never leaves the server.
type AuthServer struct {
	address      string
	port         int
	authPath     string
	staticFolder string

	mu         sync.RWMutex
	signer     *signing.Signer
	router     *mux.Router
	metrics    gometrics.Registry
	httpServer *http.Server
	listener   net.Listener
}

// WriteForbidden writes a 403 Unauthorized response
func (srv *AuthServer) WriteForbidden(resp http.ResponseWriter, msg string) {
	logrus.Infof("AuthServer: %s", msg)
	resp.WriteHeader(http.StatusForbidden)
	_, _ = resp.Write([]byte("Unauthorized"))
}

// parseAuthRequest reads the access request from the query or form parameters.
// A 'channel' parameter takes the place of the device and service.
func parseAuthRequest(req *http.Request) (*api.AuthRequest, error) {
	if err := req.ParseForm(); err != nil {
		return nil, err
	}
	authReq := &api.AuthRequest{
		Sid:      req.FormValue("sid"),
		Device:   req.FormValue("device"),
		Service:  req.FormValue("service"),
		Resource: req.FormValue("resource"),
	}
	if channel := req.FormValue("channel"); channel != "" {
		authReq.Device = channel
		authReq.Service = ""
	}
	if authReq.Sid == "" || authReq.Device == "" {
		return nil, fmt.Errorf("missing sid or channel")
	}
	if authReq.Resource == "" {
		authReq.Resource = api.Wildcard
	}
	if ttl := req.FormValue("ttl"); ttl != "" {
		authReq.TTL, _ = strconv.Atoi(ttl)
	}
	authReq.Read, _ = strconv.ParseBool(req.FormValue("read"))
	authReq.Write, _ = strconv.ParseBool(req.FormValue("write"))
	return authReq, nil
}

// handleAuth signs the request and replies with {"auth": signature}
func (srv *AuthServer) handleAuth(resp http.ResponseWriter, req *http.Request) {
	authReq, err := parseAuthRequest(req)
	if err != nil {
		gometrics.GetOrRegisterCounter(MetricDenied, srv.metrics).Inc(1)
		srv.WriteForbidden(resp, fmt.Sprintf("AuthServer.handleAuth from %s: %s", req.RemoteAddr, err))
		return
	}
	srv.mu.RLock()
	signer := srv.signer
	srv.mu.RUnlock()

	toSign := signing.StringToSign(authReq)
	logrus.Debugf("AuthServer.handleAuth: signing '%s'", toSign)
	msg, _ := json.Marshal(api.AuthResponse{Auth: signer.Sign(toSign)})
	gometrics.GetOrRegisterCounter(MetricSigned, srv.metrics).Inc(1)
	resp.Header().Set("Content-Type", "application/json")
	_, _ = resp.Write(msg)
}

// SetSigner replaces the signer, eg after the keys were reloaded
func (srv *AuthServer) SetSigner(signer *signing.Signer) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	logrus.Infof("AuthServer.SetSigner: signing with key %s", signer.KeyID())
	srv.signer = signer
}

// Metrics returns the registry with the server counters
func (srv *AuthServer) Metrics() gometrics.Registry {
	return srv.metrics
}

// Handler returns the request handler of the server, for use in tests or another server
func (srv *AuthServer) Handler() http.Handler {
	return srv.router
}

// Address returns the listening address while the server runs
func (srv *AuthServer) Address() string {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	if srv.listener == nil {
		return ""
	}
	return srv.listener.Addr().String()
}

// Start listening for requests
func (srv *AuthServer) Start() error {
	addr := fmt.Sprintf("%s:%d", srv.address, srv.port)
	logrus.Infof("AuthServer.Start: Starting auth server on address: %s", addr)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logrus.Errorf("AuthServer.Start: %s", err)
		return err
	}
	httpServer := &http.Server{Handler: srv.router}
	srv.mu.Lock()
	srv.listener = listener
	srv.httpServer = httpServer
	srv.mu.Unlock()

	go func() {
		err2 := httpServer.Serve(listener)
		if err2 != nil && err2 != http.ErrServerClosed {
			logrus.Errorf("AuthServer.Start: Serve: %s", err2)
		}
	}()
	return nil
}

// Stop the server and close all connections
func (srv *AuthServer) Stop() {
	logrus.Infof("AuthServer.Stop: Stopping auth server")
	srv.mu.Lock()
	httpServer := srv.httpServer
	srv.httpServer = nil
	srv.listener = nil
	srv.mu.Unlock()

	if httpServer != nil {
		_ = httpServer.Shutdown(context.Background())
	}
}

// NewAuthServer creates the server. Use Start/Stop to run and close connections.
//  address    listening address, "" for all interfaces
//  port       listening port, 0 for any free port
//  authPath   route of the signing endpoint
//  staticFolder with files to serve, "" to disable
//  signer     signs the access requests
func NewAuthServer(address string, port int, authPath string, staticFolder string,
	signer *signing.Signer) *AuthServer {
	if authPath == "" {
		authPath = api.DefaultAuthPath
	}
	srv := &AuthServer{
		address:      address,
		port:         port,
		authPath:     authPath,
		staticFolder: staticFolder,
		signer:       signer,
		router:       mux.NewRouter(),
		metrics:      gometrics.NewRegistry(),
	}
	srv.router.Use(LogRequests)
	srv.router.HandleFunc(authPath, srv.handleAuth).Methods(http.MethodGet, http.MethodPost)
	if staticFolder != "" {
		srv.router.PathPrefix("/").Handler(http.FileServer(http.Dir(staticFolder)))
	}
	return srv
}
