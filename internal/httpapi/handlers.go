package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"slices"
	"strings"

	"github.com/DoyleJ11/rally-backend/internal/engine"
	"github.com/DoyleJ11/rally-backend/internal/hub"
	"github.com/DoyleJ11/rally-backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"
	"go.uber.org/zap"
)

const codeAttempts = 8

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type tableSummary struct {
	Code    string `json:"code"`
	Players int    `json:"players"`
}

type ballDetail struct {
	State    string      `json:"state"`
	Position engine.Vec3 `json:"position"`
}

type playerDetail struct {
	ID       string      `json:"id"`
	Slot     int         `json:"slot"`
	Position engine.Vec3 `json:"position"`
}

type tableDetail struct {
	Code    string         `json:"code"`
	Tick    uint64         `json:"tick"`
	Players []playerDetail `json:"players"`
	Ball    ballDetail     `json:"ball"`
}

func CreateTable(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for range codeAttempts {
			code, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			tb, err := h.Create(code)
			if err != nil {
				http.Error(w, "server shutting down", http.StatusServiceUnavailable)
				return
			}
			if tb == nil {
				log.Debug("collision on code, regenerating", zap.String("table", code))
				continue
			}
			writeJSON(w, http.StatusCreated, tableSummary{Code: tb.Code()})
			return
		}
		http.Error(w, "failed to allocate code", http.StatusInternalServerError)
	}
}

func ListTables(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tables, err := h.List()
		if err != nil {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		out := make([]tableSummary, 0, len(tables))
		for _, tb := range tables {
			v, ok := tb.State()
			if !ok {
				continue // stopped between list and query
			}
			out = append(out, tableSummary{Code: v.Code, Players: len(v.Snapshot.Players)})
		}
		slices.SortFunc(out, func(a, b tableSummary) int { return strings.Compare(a.Code, b.Code) })
		writeJSON(w, http.StatusOK, out)
	}
}

func GetTable(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tb, err := h.Table(chi.URLParam(r, "code"))
		if err != nil {
			writeLookupError(w, err)
			return
		}
		v, ok := tb.State()
		if !ok {
			http.Error(w, "table not found", http.StatusNotFound)
			return
		}

		d := tableDetail{
			Code:    v.Code,
			Tick:    v.Snapshot.Tick,
			Players: make([]playerDetail, 0, len(v.Snapshot.Players)),
			Ball: ballDetail{
				State:    v.Snapshot.Ball.State.String(),
				Position: v.Snapshot.Ball.Position,
			},
		}
		for _, p := range v.Snapshot.Players {
			d.Players = append(d.Players, playerDetail{ID: p.ID, Slot: p.Slot, Position: p.Position})
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// DeleteTable stops a table. The default table cannot be removed.
func DeleteTable(h *hub.Hub, defaultTable string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if code == defaultTable {
			http.Error(w, "default table cannot be removed", http.StatusConflict)
			return
		}
		if err := h.Remove(code); err != nil {
			writeLookupError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func BuildProtocolSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(types.Protocol))
	schema.Title = "Rally Protocol"
	schema.Description = "JSON text frames exchanged over /ws"
	return schema
}

func ProtocolSchema(schema *jsonschema.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, schema)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hub.ErrTableNotFound):
		http.Error(w, "table not found", http.StatusNotFound)
	default:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
