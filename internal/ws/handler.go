package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DoyleJ11/rally-backend/internal/engine"
	"github.com/DoyleJ11/rally-backend/internal/hub"
	"github.com/DoyleJ11/rally-backend/internal/table"
	"github.com/DoyleJ11/rally-backend/internal/types"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Options struct {
	DefaultTable   string
	OutboxSize     int
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration // zero disables the idle cutoff
	ReadLimit      int64
	OriginPatterns []string
	NewID          func() string
}

func (o *Options) setDefaults() {
	if o.DefaultTable == "" {
		o.DefaultTable = "main"
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 16
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 8 << 10
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
}

func Handler(h *hub.Hub, opts Options, log *zap.Logger) http.HandlerFunc {
	opts.setDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("table")
		if code == "" {
			code = opts.DefaultTable
		}

		tb, err := h.Table(code)
		if errors.Is(err, hub.ErrTableNotFound) {
			http.Error(w, "table not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.CloseNow()
		conn.SetReadLimit(opts.ReadLimit)

		id := opts.NewID()
		plog := log.With(zap.String("table", code), zap.String("player", id))

		out := make(chan []byte, opts.OutboxSize)
		reply := make(chan table.JoinResult, 1)
		if !tb.Send(table.Join{PlayerID: id, Outbox: out, Reply: reply}) {
			conn.Close(websocket.StatusGoingAway, "table closed")
			return
		}

		var res table.JoinResult
		select {
		case res = <-reply:
		case <-tb.Done():
			conn.Close(websocket.StatusGoingAway, "table closed")
			return
		}
		if res.Err != nil {
			reject(r.Context(), conn, res.Err, opts.WriteTimeout, plog)
			return
		}
		defer tb.Send(table.Leave{PlayerID: id})

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for payload := range out {
				ctx, cancel := context.WithTimeout(writeCtx, opts.WriteTimeout)
				err := conn.Write(ctx, websocket.MessageText, payload)
				cancel()
				if err != nil {
					// Let the reader notice and run the normal leave path.
					plog.Debug("write failed", zap.Error(err))
					conn.CloseNow()
					return
				}
			}
			// out is closed by Leave or by the table shutting down.
			conn.Close(websocket.StatusGoingAway, "table closed")
		}()

		// Reader loop
		for {
			data, err := read(r.Context(), conn, opts.IdleTimeout)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					plog.Info("player disconnected")
				default:
					plog.Info("connection lost", zap.Error(err))
				}
				return
			}
			if data == nil {
				continue
			}

			cmd, err := types.Decode(data)
			if err != nil {
				plog.Debug("dropping message", zap.Error(err))
				continue
			}

			var msg table.Msg
			switch c := cmd.(type) {
			case types.Move:
				msg = table.Move{PlayerID: id, Position: c.Position}
			case types.Hit:
				msg = table.Hit{PlayerID: id, Target: c.Target}
			}
			if !tb.Send(msg) {
				return
			}
		}
	}
}

// read returns the next text frame. Binary frames come back as nil data
// and are ignored by the caller.
func read(parent context.Context, conn *websocket.Conn, idle time.Duration) ([]byte, error) {
	ctx := parent
	if idle > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, idle)
		defer cancel()
	}
	typ, data, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageText {
		return nil, nil
	}
	return data, nil
}

func reject(parent context.Context, conn *websocket.Conn, cause error, timeout time.Duration, log *zap.Logger) {
	message := cause.Error()
	status := websocket.StatusPolicyViolation
	if errors.Is(cause, engine.ErrTableFull) {
		message = engine.ErrTableFull.Error()
		status = websocket.StatusTryAgainLater
	}

	payload, err := types.EncodeError(message)
	if err == nil {
		ctx, cancel := context.WithTimeout(parent, timeout)
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			log.Debug("write rejection", zap.Error(err))
		}
		cancel()
	}
	conn.Close(status, message)
}
