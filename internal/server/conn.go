package server

import (
	"errors"
	"io"
	"net"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/Brownie44l1/statichttpd/internal/request"
	"github.com/Brownie44l1/statichttpd/internal/response"
	"github.com/Brownie44l1/statichttpd/internal/static"
)

// serveConn handles the single request on a connection and closes it
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	s.metrics.ActiveConnections.Add(1)
	defer s.metrics.ActiveConnections.Add(-1)

	start := time.Now()
	connID := uuid.NewString()
	remote := conn.RemoteAddr().String()

	if s.cfg.ReadTimeout > 0 {
		conn.SetReadDeadline(start.Add(s.cfg.ReadTimeout))
	}

	req, err := request.RequestFromReader(conn, s.cfg.MaxRequestLine)
	if err != nil {
		// Nothing arrived, so there is nobody to answer
		s.Logger.Debug("connection closed without request",
			Field{"conn_id", connID},
			Field{"remote", remote},
			Field{"error", err},
		)
		return
	}

	if s.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}

	w := response.NewWriter(conn)
	w.ServerName = s.cfg.ServerName

	if err := s.handleRequest(w, req); err != nil {
		s.Logger.Warn("response not fully sent",
			Field{"conn_id", connID},
			Field{"path", req.Path},
			Field{"error", err},
		)
	}

	duration := time.Since(start)
	s.metrics.RecordRequest(w.StatusCode(), w.BodyBytes(), duration)
	closeWriteAndDrain(conn)

	s.Logger.Info("request handled",
		Field{"conn_id", connID},
		Field{"remote", remote},
		Field{"method", req.Method},
		Field{"path", req.Path},
		Field{"status", int(w.StatusCode())},
		Field{"bytes", w.BodyBytes()},
		Field{"write_error", w.HadError()},
		Field{"duration_ms", duration.Milliseconds()},
	)
}

// handleRequest answers req with exactly one response and recovers from
// panics along the way
func (s *Server) handleRequest(w *response.Writer, req *request.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("panic recovered",
				Field{"error", r},
				Field{"stack", string(debug.Stack())},
				Field{"path", req.Path},
			)
			// Can't send a status line twice
			if !w.Started() {
				err = w.SendError(response.StatusInternalServerError)
			}
		}
	}()

	if !req.IsRetrieval() {
		return w.SendMethodNotAllowed()
	}
	return s.serveFile(w, req.Path)
}

func (s *Server) serveFile(w *response.Writer, path string) error {
	f, err := s.resolver.Resolve(path)
	if err != nil {
		s.Logger.Debug("resolve failed", Field{"path", path}, Field{"error", err})
		if errors.Is(err, static.ErrForbidden) {
			return w.SendError(response.StatusForbidden)
		}
		return w.SendError(response.StatusNotFound)
	}
	defer f.Close()

	return w.SendFile(f.MimeType, f.Size, f)
}

const (
	lingerTimeout = 500 * time.Millisecond
	lingerMaxRead = 256 << 10
)

// closeWriteAndDrain half-closes a TCP connection and reads whatever the
// client still sends (headers, a body) until it closes its side. Closing
// with unread input would reset the connection and the client could lose
// the tail of the response.
func closeWriteAndDrain(conn net.Conn) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tcp.CloseWrite(); err != nil {
		return
	}
	tcp.SetReadDeadline(time.Now().Add(lingerTimeout))
	io.CopyN(io.Discard, tcp, lingerMaxRead)
}
