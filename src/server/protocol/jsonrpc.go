// Package protocol implements JSON-RPC 2.0 message framing over
// Content-Length delimited streams, the wire format LSP clients speak
// on stdio.
package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/GodSpeedAI/domainforge-lsp/src/internal/common"
)

const JSONRPCVersion = "2.0"

// JSON-RPC error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Buffer sized for large responses; hover markdown plus a full
// reference list can run well past the bufio default.
const streamBufferSize = 1024 * 1024

// Message represents a JSON-RPC 2.0 message. Params is kept raw so each
// handler decodes into its own typed structure.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewRPCError creates an RPCError with the specified code and message.
func NewRPCError(code int, message string, data interface{}) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data}
}

// NewMethodNotFoundError creates a method not found error (-32601).
func NewMethodNotFoundError(method string) *RPCError {
	return NewRPCError(MethodNotFound, "Method not found", method)
}

// NewInvalidParamsError creates an invalid params error (-32602).
func NewInvalidParamsError(data interface{}) *RPCError {
	return NewRPCError(InvalidParams, "Invalid params", data)
}

// NewInternalError creates an internal error (-32603).
func NewInternalError(data interface{}) *RPCError {
	return NewRPCError(InternalError, "Internal error", data)
}

// Handler dispatches decoded messages. HandleRequest returns either a
// result or an error object; exactly one is used in the response.
type Handler interface {
	HandleRequest(ctx context.Context, method string, id interface{}, params json.RawMessage) (interface{}, *RPCError)
	HandleNotification(ctx context.Context, method string, params json.RawMessage) error
}

// Stream frames JSON-RPC messages over a reader/writer pair. Writes are
// serialized; responses and server notifications may interleave.
type Stream struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex
	pending sync.WaitGroup
}

func NewStream(r io.Reader, w io.Writer) *Stream {
	return &Stream{
		reader: bufio.NewReaderSize(r, streamBufferSize),
		writer: w,
	}
}

// Serve reads and dispatches messages until EOF, context cancellation,
// or a transport error. Requests run on their own goroutines so a slow
// query never blocks the read loop; notifications are handled inline
// to keep document lifecycle events in arrival order. All in-flight
// requests finish before Serve returns. Handler errors are logged,
// never fatal to the loop.
func (s *Stream) Serve(ctx context.Context, handler Handler) error {
	defer s.pending.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		body, err := s.readMessage()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if body == nil {
			continue
		}
		s.dispatch(ctx, body, handler)
	}
}

// readMessage reads one Content-Length framed body. A frame with no
// Content-Length header yields (nil, nil) and the caller skips it.
func (s *Stream) readMessage() ([]byte, error) {
	contentLength := 0
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length:") {
			lengthStr := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
			length, err := strconv.Atoi(lengthStr)
			if err != nil {
				common.LSPLogger.Debug("failed to parse Content-Length: %s", lengthStr)
				continue
			}
			contentLength = length
		}
	}

	if contentLength <= 0 {
		return nil, nil
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (s *Stream) dispatch(ctx context.Context, body []byte, handler Handler) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		common.LSPLogger.Error("failed to unmarshal message: %v", err)
		_ = s.writeMessage(Message{
			JSONRPC: JSONRPCVersion,
			Error:   NewRPCError(ParseError, "Parse error", err.Error()),
		})
		return
	}

	switch {
	case msg.Method != "" && msg.ID != nil:
		s.pending.Add(1)
		go func() {
			defer s.pending.Done()
			result, rpcErr := handler.HandleRequest(ctx, msg.Method, msg.ID, msg.Params)
			resp := Message{JSONRPC: JSONRPCVersion, ID: msg.ID}
			if rpcErr != nil {
				resp.Error = rpcErr
			} else {
				resp.Result = result
			}
			if err := s.writeMessage(resp); err != nil {
				common.LSPLogger.Error("failed to write response for %s: %v", msg.Method, err)
			}
		}()
	case msg.Method != "":
		if err := handler.HandleNotification(ctx, msg.Method, msg.Params); err != nil {
			common.LSPLogger.Warn("notification %s failed: %v", msg.Method, err)
		}
	default:
		common.LSPLogger.Warn("received malformed message (no ID and no method)")
	}
}

// Notify sends a server-initiated notification.
func (s *Stream) Notify(method string, params interface{}) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return s.writeMessage(Message{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  raw,
	})
}

func (s *Stream) writeMessage(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := fmt.Fprintf(s.writer, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	_, err = s.writer.Write(data)
	return err
}
