package rpc

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/tos-network/tossig/core"
	"github.com/tos-network/tossig/core/types"
	"github.com/tos-network/tossig/log"
	"github.com/tos-network/tossig/metrics"
)

const (
	// maxRequestSize bounds the accepted HTTP body.
	maxRequestSize = 5 * 1024 * 1024

	// recordSendBuffer is the per-subscriber record backlog.
	recordSendBuffer = 128

	wsWriteTimeout = 10 * time.Second
)

var (
	requestCounter = metrics.NewRegisteredCounter("rpc/requests", nil)
	failureCounter = metrics.NewRegisteredCounter("rpc/failures", nil)
)

// ServerConfig holds the transport knobs of the RPC surface.
type ServerConfig struct {
	// Origins is the browser origin allow-list applied to both CORS and
	// websocket handshakes. Empty allows any origin.
	Origins []string

	// JWTSecret, when set, demands a fresh HS256 bearer token on every
	// request.
	JWTSecret []byte
}

type methodFunc func(args []json.RawMessage) (interface{}, *JSONError)

// Server serves the tossig_ namespace over a single JSON-RPC endpoint at /
// and streams batch records over a websocket at /ws. It implements
// http.Handler and carries no listener of its own.
type Server struct {
	ledger   *core.Ledger
	handler  http.Handler
	upgrader websocket.Upgrader
	methods  map[string]methodFunc
	logger   log.Logger
}

// NewServer builds the RPC surface over ledger.
func NewServer(ledger *core.Ledger, cfg ServerConfig) *Server {
	s := &Server{
		ledger: ledger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.Origins),
		},
		logger: log.New("module", "rpc"),
	}
	s.methods = map[string]methodFunc{
		"tossig_submitBatch":      s.submitBatch,
		"tossig_getAccount":       s.getAccount,
		"tossig_getSignerGroup":   s.getSignerGroup,
		"tossig_getValidSigner":   s.getValidSigner,
		"tossig_listValidSigners": s.listValidSigners,
		"tossig_batchRecords":     s.batchRecords,
		"tossig_headBatch":        s.headBatch,
	}

	router := httprouter.New()
	router.POST("/", s.serveRPC)
	router.GET("/ws", s.serveWS)

	var handler http.Handler = router
	if len(cfg.JWTSecret) > 0 {
		handler = newJWTHandler(cfg.JWTSecret, handler)
	}
	allowed := cfg.Origins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	s.handler = cors.New(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodPost, http.MethodGet},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(handler)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestCounter.Inc(1)
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
	if err != nil {
		failureCounter.Inc(1)
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	var msg jsonrpcMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.respond(w, nil, nil, &JSONError{Code: CodeParseError, Message: "parse error"})
		return
	}
	if msg.Version != vsn || msg.Method == "" {
		s.respond(w, msg.ID, nil, &JSONError{Code: CodeInvalidRequest, Message: "invalid request"})
		return
	}
	method, ok := s.methods[msg.Method]
	if !ok {
		s.respond(w, msg.ID, nil, &JSONError{Code: CodeMethodNotFound, Message: "method not found", Data: msg.Method})
		return
	}
	args, jerr := parseArgs(msg.Params)
	if jerr == nil {
		var result interface{}
		result, jerr = method(args)
		if jerr == nil {
			s.respond(w, msg.ID, result, nil)
			return
		}
	}
	s.respond(w, msg.ID, nil, jerr)
}

func (s *Server) respond(w http.ResponseWriter, id json.RawMessage, result interface{}, jerr *JSONError) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	msg := &jsonrpcMessage{Version: vsn, ID: id, Error: jerr}
	if jerr == nil {
		raw, err := json.Marshal(result)
		if err != nil {
			msg.Error = &JSONError{Code: CodeInternalError, Message: err.Error()}
		} else {
			msg.Result = raw
		}
	}
	if msg.Error != nil {
		failureCounter.Inc(1)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(msg); err != nil {
		s.logger.Debug("Response write failed", "err", err)
	}
}

// serveWS upgrades the connection and forwards every new batch record until
// either side goes away. The client never sends application data; its read
// side only surfaces close frames.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	// Subscribe before the handshake response goes out so records landing
	// right after a successful dial cannot be missed.
	records := make(chan *types.BatchRecord, recordSendBuffer)
	cancel := s.ledger.SubscribeBatchRecords(records)
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Debug("WebSocket subscriber connected", "remote", conn.RemoteAddr())
	for {
		select {
		case rec := <-records:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(newBatchRecordResult(rec)); err != nil {
				s.logger.Debug("WebSocket subscriber dropped", "remote", conn.RemoteAddr(), "err", err)
				return
			}
		case <-closed:
			return
		}
	}
}

// originChecker admits non-browser clients (no Origin header) and browser
// origins on the allow-list. An empty list admits everything.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func parseArgs(raw json.RawMessage) ([]json.RawMessage, *JSONError) {
	if len(raw) == 0 {
		return nil, nil
	}
	var args []json.RawMessage
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, invalidParams("params must be an array")
	}
	return args, nil
}

func decodeArg(args []json.RawMessage, i int, v interface{}) *JSONError {
	if i >= len(args) {
		return invalidParams("missing parameter %d", i)
	}
	if err := json.Unmarshal(args[i], v); err != nil {
		return invalidParams("parameter %d: %v", i, err)
	}
	return nil
}
