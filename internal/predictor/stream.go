package predictor

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skywatch/skywatch-relay/internal/apierr"
	"github.com/skywatch/skywatch-relay/internal/metrics"
	"github.com/skywatch/skywatch-relay/internal/ratelimit"
)

const wsWriteWait = 1 * time.Second

type StreamConfig struct {
	// MaxFramesPerSecond is the sustained per-connection frame rate; the
	// same number of frames may arrive in one burst. 0 uses 10.
	MaxFramesPerSecond int

	// IdleTimeout closes connections that neither send frames nor answer
	// pings. 0 uses 60s.
	IdleTimeout time.Duration

	// PingInterval must be shorter than IdleTimeout. 0 uses 20s.
	PingInterval time.Duration

	// Clock drives the frame limiter. Nil uses the wall clock.
	Clock ratelimit.Clock
}

func (c StreamConfig) withDefaults() StreamConfig {
	if c.MaxFramesPerSecond <= 0 {
		c.MaxFramesPerSecond = 10
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.IdleTimeout {
		c.PingInterval = c.IdleTimeout / 3
	}
	if c.Clock == nil {
		c.Clock = ratelimit.RealClock{}
	}
	return c
}

// StreamServer serves GET /api/predict/ws. Each text message is a /predict
// body and is answered with one JSON message, in order.
type StreamServer struct {
	p        *Predictor
	upgrader websocket.Upgrader
}

func (p *Predictor) StreamServer() *StreamServer {
	return &StreamServer{
		p: p,
		upgrader: websocket.Upgrader{
			// Origin checks run in the HTTP middleware before the upgrade.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// streamError is the error message shape on the stream.
type streamError struct {
	Error string      `json:"error"`
	Code  apierr.Kind `json:"code"`
}

func (s *StreamServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	p := s.p
	cfg := p.stream
	p.metrics.Inc(metrics.PredictWSConnections)

	if p.model == nil {
		_ = writeMessage(conn, streamError{Error: msgModelUnavailable, Code: apierr.KindUnavailable})
		writeClose(conn, websocket.CloseInternalServerErr, "model not configured")
		return
	}

	limiter := ratelimit.NewTokenBucket(cfg.Clock, int64(cfg.MaxFramesPerSecond), int64(cfg.MaxFramesPerSecond))

	_ = conn.SetReadDeadline(time.Now().Add(cfg.IdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.IdleTimeout))
	})

	// Pings and closes are control frames, which gorilla allows concurrently
	// with the loop's data writes.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-p.closing:
				writeClose(conn, websocket.CloseGoingAway, "server shutting down")
				// Unblock the reader so the handler returns.
				_ = conn.SetReadDeadline(time.Now())
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		msgType, msgReader, err := conn.NextReader()
		if err != nil {
			if isTimeout(err) && !p.isClosing() {
				writeClose(conn, websocket.CloseGoingAway, "idle timeout")
			}
			return
		}
		if msgType != websocket.TextMessage {
			writeClose(conn, websocket.CloseUnsupportedData, "expected text message")
			return
		}

		msg, err := readLimited(msgReader, p.maxBodyBytes)
		if err != nil {
			if errors.Is(err, errMessageTooLarge) {
				p.metrics.Inc(metrics.PredictWSTooLarge)
				writeClose(conn, websocket.CloseMessageTooBig, "message too large")
			} else {
				writeClose(conn, websocket.CloseInternalServerErr, "failed to read message")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(cfg.IdleTimeout))

		if !limiter.Allow(1) {
			p.metrics.Inc(metrics.PredictWSRateLimited)
			if err := writeMessage(conn, streamError{Error: "frame rate limit exceeded", Code: apierr.KindRateLimited}); err != nil {
				return
			}
			continue
		}

		var reply any
		image, err := p.checkRequest(msg, nil)
		if err == nil {
			p.metrics.Inc(metrics.PredictRequests)
			reply, err = p.Predict(r.Context(), image)
		}
		if err != nil {
			e := apierr.From(err)
			reply = streamError{Error: e.Error(), Code: e.Kind}
		}
		if err := writeMessage(conn, reply); err != nil {
			return
		}
	}
}

func writeMessage(conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

var errMessageTooLarge = errors.New("message too large")

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return nil, errMessageTooLarge
	}
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, errMessageTooLarge
	}
	return b, nil
}
