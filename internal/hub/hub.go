package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/DoyleJ11/rally-backend/internal/table"
	"go.uber.org/zap"
)

var ErrTableNotFound = errors.New("table not found")
var ErrHubStopped = errors.New("hub stopped")

type HubMsg interface{ isHubMsg() }

type CreateTable struct {
	Code  string
	Reply chan *table.Table
}

type GetTable struct {
	Code  string
	Reply chan *table.Table
}

type EnsureTable struct {
	Code  string
	Reply chan *table.Table
}

type ListTables struct {
	Reply chan []*table.Table
}

type RemoveTable struct {
	Code string
}

type ShutdownHub struct{}

func (CreateTable) isHubMsg() {}
func (GetTable) isHubMsg()    {}
func (EnsureTable) isHubMsg() {}
func (ListTables) isHubMsg()  {}
func (RemoveTable) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the set of running tables. Every table it starts shares the
// template options; only the code differs.
type Hub struct {
	inbox    chan HubMsg
	tables   map[string]*table.Table
	template table.Options
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewHub(parent context.Context, template table.Options, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		tables:   make(map[string]*table.Table),
		template: template,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed after the hub and every table it started have stopped.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateTable:
				if tb := h.tables[msg.Code]; tb != nil {
					msg.Reply <- nil // code already taken
					break
				}
				msg.Reply <- h.start(msg.Code)

			case GetTable:
				msg.Reply <- h.tables[msg.Code] // May be nil

			case EnsureTable:
				if tb := h.tables[msg.Code]; tb != nil {
					msg.Reply <- tb
					break
				}
				msg.Reply <- h.start(msg.Code)

			case ListTables:
				out := make([]*table.Table, 0, len(h.tables))
				for _, tb := range h.tables {
					out = append(out, tb)
				}
				msg.Reply <- out

			case RemoveTable:
				if tb := h.tables[msg.Code]; tb != nil {
					tb.Send(table.Shutdown{})
					delete(h.tables, msg.Code)
					h.log.Info("table removed", zap.String("table", msg.Code))
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) start(code string) *table.Table {
	opts := h.template
	opts.Code = code
	tb := table.New(h.ctx, opts, h.log)
	h.tables[code] = tb
	h.log.Info("table started", zap.String("table", code))
	return tb
}

func (h *Hub) shutdown() {
	for _, tb := range h.tables {
		tb.Send(table.Shutdown{})
	}
	for code, tb := range h.tables {
		<-tb.Done()
		delete(h.tables, code)
	}
	h.cancel()
}

// request sends msg and waits for its reply unless the hub stops first.
func request[T any](h *Hub, msg HubMsg, reply chan T) (T, error) {
	var zero T
	select {
	case h.inbox <- msg:
	case <-h.done:
		return zero, ErrHubStopped
	}
	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		return zero, ErrHubStopped
	}
}

// Table looks up a running table by code.
func (h *Hub) Table(code string) (*table.Table, error) {
	reply := make(chan *table.Table, 1)
	tb, err := request(h, GetTable{Code: code, Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	if tb == nil {
		return nil, fmt.Errorf("%q: %w", code, ErrTableNotFound)
	}
	return tb, nil
}

// Ensure returns the table for code, starting it if needed.
func (h *Hub) Ensure(code string) (*table.Table, error) {
	reply := make(chan *table.Table, 1)
	return request(h, EnsureTable{Code: code, Reply: reply}, reply)
}

// Create starts a table under a new code. It returns nil, nil when the
// code is already in use.
func (h *Hub) Create(code string) (*table.Table, error) {
	reply := make(chan *table.Table, 1)
	return request(h, CreateTable{Code: code, Reply: reply}, reply)
}

func (h *Hub) List() ([]*table.Table, error) {
	reply := make(chan []*table.Table, 1)
	return request(h, ListTables{Reply: reply}, reply)
}

// Remove stops the table under code and forgets it. Connected players
// see their sockets closed.
func (h *Hub) Remove(code string) error {
	if _, err := h.Table(code); err != nil {
		return err
	}
	select {
	case h.inbox <- RemoveTable{Code: code}:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}
