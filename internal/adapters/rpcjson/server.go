package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/devgateway/dozer-model/internal/adapters/orm"
	"github.com/devgateway/dozer-model/internal/application"
	"github.com/devgateway/dozer-model/internal/domain"
	"github.com/devgateway/dozer-model/internal/errx"
)

type Server struct {
	service  *application.DetachService
	sessions *orm.SessionFactory
	log      *zap.Logger
	listener net.Listener
	path     string
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Start listens on a unix socket at path, replacing any stale socket file.
func Start(path string, service *application.DetachService, sessions *orm.SessionFactory, log *zap.Logger) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{service: service, sessions: sessions, log: log, listener: ln, path: path}
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}, ID: nil})
			return
		}

		start := time.Now()
		resp := s.dispatch(context.Background(), req)
		if resp.Error != nil {
			s.log.Debug("rpc call failed", zap.String("method", req.Method), zap.Int("code", resp.Error.Code), zap.String("error", resp.Error.Message))
		} else {
			s.log.Debug("rpc call", zap.String("method", req.Method), zap.Duration("elapsed", time.Since(start)))
		}
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

type handleParams struct {
	Handle     string `json:"handle"`
	Initialize bool   `json:"initialize"`
}

type ResolveResult struct {
	Handle      string                    `json:"handle"`
	Root        json.RawMessage           `json:"root"`
	Definitions []domain.DefinitionRecord `json:"definitions"`
}

// dispatch runs one call inside its own session.
func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32600, Message: "invalid request"}, ID: req.ID}
	}

	session := s.sessions.Open(ctx)
	defer session.Close()
	ctx = orm.WithSession(ctx, session)

	switch req.Method {
	case "model.open":
		var p struct {
			Entity string `json:"entity"`
			ID     any    `json:"id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		res, err := s.service.Open(ctx, session, p.Entity, p.ID)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: res, ID: req.ID}

	case "model.resolve":
		var p handleParams
		if !decodeParams(req.Params, &p) || strings.TrimSpace(p.Handle) == "" {
			return invalidParams(req.ID)
		}
		var root []byte
		err := s.service.Resolve(ctx, session, p.Handle, p.Initialize, func(v any) error {
			var err error
			root, err = json.Marshal(v)
			return err
		})
		if err != nil {
			return appError(req.ID, err)
		}
		defs, err := s.service.Definitions(p.Handle)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: ResolveResult{Handle: p.Handle, Root: root, Definitions: defs}, ID: req.ID}

	case "model.definitions":
		var p handleParams
		if !decodeParams(req.Params, &p) || strings.TrimSpace(p.Handle) == "" {
			return invalidParams(req.ID)
		}
		defs, err := s.service.Definitions(p.Handle)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: defs, ID: req.ID}

	case "model.close":
		var p handleParams
		if !decodeParams(req.Params, &p) || strings.TrimSpace(p.Handle) == "" {
			return invalidParams(req.ID)
		}
		if err := s.service.Close(p.Handle); err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true}, ID: req.ID}

	case "model.list":
		return response{JSONRPC: "2.0", Result: s.service.Models(), ID: req.ID}
	}

	return response{JSONRPC: "2.0", Error: &rpcError{Code: -32601, Message: "method not found"}, ID: req.ID}
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func invalidParams(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: -32602, Message: "invalid params"}, ID: id}
}

// appError maps coded errors to application error codes: 40000 invalid
// input, 40400 missing, 40900 no usable session, 50000 anything else.
func appError(id any, err error) response {
	var e *errx.Error
	if !errors.As(err, &e) {
		return internalError(id, err)
	}
	code := 50000
	switch e.Code() {
	case errx.CodeInvalidParam:
		code = 40000
	case domain.CodeModelNotFound, domain.CodeEntityNotFound, domain.CodeUnknownEntity, errx.CodeNotFound:
		code = 40400
	case domain.CodeNoSession, domain.CodeLazyInit:
		code = 40900
	}
	if code == 50000 && e.System() {
		return internalError(id, err)
	}
	return response{JSONRPC: "2.0", Error: &rpcError{Code: code, Message: e.Msg(), Data: map[string]any{"code": e.Code()}}, ID: id}
}

func internalError(id any, err error) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: 50000, Message: fmt.Sprintf("internal error: %v", err)}, ID: id}
}
