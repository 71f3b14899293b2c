package rpc

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/Siasom1/devnet/log"
)

// handleMessage answers a raw request body. It returns nil when nothing must
// be sent back (notifications only).
func (s *Server) handleMessage(body []byte, route func(*RPCRequest) *RPCResponse) any {
	reqs, batch, perr := parseMessage(body)
	if perr != nil {
		return errorResponse(nil, perr)
	}

	if !batch {
		if resp := route(reqs[0]); resp != nil {
			return resp
		}
		return nil
	}

	out := make([]*RPCResponse, 0, len(reqs))
	for _, req := range reqs {
		if resp := route(req); resp != nil {
			out = append(out, resp)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Dispatch runs a single request through the method table.
func (s *Server) Dispatch(req *RPCRequest) *RPCResponse {
	if rerr := req.validate(); rerr != nil {
		var id json.RawMessage
		if req != nil {
			id = req.ID
		}
		return errorResponse(id, rerr)
	}

	start := time.Now()
	result, err := s.call(req)
	elapsed := time.Since(start)

	s.metrics.ObserveRPC(s.metricLabel(req.Method), err != nil, elapsed)
	s.logCall(req.Method, elapsed, err)

	if req.isNotification() {
		return nil
	}
	if err != nil {
		return errorResponse(req.ID, toRPCError(err))
	}
	return &RPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) call(req *RPCRequest) (result any, err error) {
	handler, ok := s.handlers[req.Method]
	if !ok {
		return nil, &RPCError{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("the method %s does not exist/is not available", req.Method),
		}
	}

	args, err := splitParams(req.Params)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("RPC handler panic",
				log.String("method", req.Method),
				log.Any("panic", r),
				log.String("stack", string(debug.Stack())),
			)
			result = nil
			err = &RPCError{Code: CodeInternalError, Message: "internal error"}
		}
	}()
	return handler(args)
}

// metricLabel keeps unknown method names out of the label space.
func (s *Server) metricLabel(method string) string {
	if _, ok := s.handlers[method]; ok {
		return method
	}
	if method == "eth_subscribe" || method == "eth_unsubscribe" {
		return method
	}
	return "unknown"
}

// logCall logs every call when loggingEnabled is set; otherwise only
// failures, at debug level.
func (s *Server) logCall(method string, elapsed time.Duration, err error) {
	if !s.verbose {
		if err != nil {
			s.logger.Debug("RPC call failed", log.String("method", method), log.Err(err))
		}
		return
	}
	if err != nil {
		s.logger.Warn("RPC call failed",
			log.String("method", method),
			log.Duration("duration", elapsed),
			log.Err(err),
		)
		return
	}
	s.logger.Info("RPC call",
		log.String("method", method),
		log.Duration("duration", elapsed),
	)
}
