// Package mockyard is a fake logistics yard application for demos and tests.
//
// Trucks queue at gates waiting for authorization. Gate 1 answers in the
// legacy layout ({"pendientes": [...]}) and every other gate in the newer
// one ({"success": true, "data": {"pendientes": [...]}}), so a single view
// definition has to accept both. A board page renders every queued truck as
// an HTML partial.
package mockyard

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"
)

// Truck is one queued vehicle.
type Truck struct {
	ID      int64     `json:"id"`
	Plate   string    `json:"patente"`
	Kind    string    `json:"tipo"`
	Gate    string    `json:"gate"`
	Arrived time.Time `json:"llegada"`
}

var kinds = []string{"carga", "descarga", "retiro"}

// Yard holds the queue. All methods are safe for concurrent use.
type Yard struct {
	mu     sync.Mutex
	gates  []string
	trucks []Truck
	nextID int64
	failed map[string]int
	logger *slog.Logger
	rng    *rand.Rand
}

// New returns a yard with the given gates and an empty queue.
func New(logger *slog.Logger, gates ...string) *Yard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Yard{
		gates:  gates,
		nextID: 1,
		failed: make(map[string]int),
		logger: logger,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
}

// Arrive queues a truck at gate and returns it.
func (y *Yard) Arrive(gate string) Truck {
	y.mu.Lock()
	defer y.mu.Unlock()

	t := Truck{
		ID:      y.nextID,
		Plate:   fmt.Sprintf("%c%c%04d", 'A'+y.rng.IntN(26), 'A'+y.rng.IntN(26), y.rng.IntN(10000)),
		Kind:    kinds[y.rng.IntN(len(kinds))],
		Gate:    gate,
		Arrived: time.Now().UTC().Truncate(time.Second),
	}
	y.nextID++
	y.trucks = append(y.trucks, t)
	y.logger.Info("truck arrived", "id", t.ID, "gate", gate, "plate", t.Plate)
	return t
}

// Authorize removes the trucks with the given ids. Unknown ids are an error
// and nothing is removed.
func (y *Yard) Authorize(ids []int64) error {
	y.mu.Lock()
	defer y.mu.Unlock()

	for _, id := range ids {
		if !slices.ContainsFunc(y.trucks, func(t Truck) bool { return t.ID == id }) {
			return fmt.Errorf("camion %d no encontrado", id)
		}
	}
	y.trucks = slices.DeleteFunc(y.trucks, func(t Truck) bool { return slices.Contains(ids, t.ID) })
	y.logger.Info("trucks authorized", "ids", ids)
	return nil
}

// FailNext makes the next n requests for gate answer with HTTP 500.
func (y *Yard) FailNext(gate string, n int) {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.failed[gate] = n
}

// Pending returns the trucks queued at gate, oldest first.
func (y *Yard) Pending(gate string) []Truck {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.pendingLocked(gate)
}

func (y *Yard) pendingLocked(gate string) []Truck {
	out := []Truck{}
	for _, t := range y.trucks {
		if gate == "" || t.Gate == gate {
			out = append(out, t)
		}
	}
	return out
}

// Run queues a truck at a random gate every interval until done is closed.
func (y *Yard) Run(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if len(y.gates) > 0 {
				y.mu.Lock()
				gate := y.gates[y.rng.IntN(len(y.gates))]
				y.mu.Unlock()
				y.Arrive(gate)
			}
		}
	}
}

var boardTemplate = template.Must(template.New("board").Parse(`<div class="patio">
  <h2>Patio</h2>
  <table id="tabla-camiones">
    {{- range .}}
    <tr data-id="{{.ID}}"><td>{{.Plate}}</td><td>{{.Kind}}</td><td>{{.Gate}}</td></tr>
    {{- end}}
  </table>
  <p id="reloj">{{len .}} en cola</p>
</div>
`))

// Handler returns the yard's HTTP routes:
//
//	GET  /api/porteria/{gate}/pendientes  pending trucks of a gate
//	POST /api/porteria/autorizar          {"ids": [...]} authorizes trucks
//	GET  /patio/tablero                   HTML board of every queued truck
func (y *Yard) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/porteria/{gate}/pendientes", y.handlePending)
	mux.HandleFunc("POST /api/porteria/autorizar", y.handleAuthorize)
	mux.HandleFunc("GET /patio/tablero", y.handleBoard)
	return mux
}

func (y *Yard) handlePending(w http.ResponseWriter, r *http.Request) {
	gate := r.PathValue("gate")

	y.mu.Lock()
	fail := y.failed[gate] > 0
	if fail {
		y.failed[gate]--
	}
	pending := y.pendingLocked(gate)
	y.mu.Unlock()

	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "error interno en porteria " + gate,
		})
		return
	}

	// gate 1 still runs the legacy endpoint
	if gate == "1" {
		writeJSON(w, http.StatusOK, map[string]any{"pendientes": pending})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"pendientes": pending, "total": len(pending)},
	})
}

func (y *Yard) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "cuerpo invalido"})
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "sin camiones seleccionados"})
		return
	}
	if err := y.Authorize(req.IDs); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "autorizados": len(req.IDs)})
}

func (y *Yard) handleBoard(w http.ResponseWriter, r *http.Request) {
	pending := y.Pending(r.URL.Query().Get("gate"))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := boardTemplate.Execute(w, pending); err != nil {
		y.logger.Error("render board", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ParseGate validates a gate number, used by the command line mock.
func ParseGate(s string) (string, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return "", fmt.Errorf("invalid gate %q", s)
	}
	return strconv.Itoa(n), nil
}
