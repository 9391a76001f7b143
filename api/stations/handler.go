package stations

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/csms/core/central"
	"github.com/kilianp07/csms/core/model"
	"github.com/kilianp07/csms/core/store"
)

// StationView is one charge point snapshot with its live connection state.
type StationView struct {
	model.ChargePoint
	Connected  bool              `json:"connected"`
	Connectors []model.Connector `json:"connectors,omitempty"`
}

// remoteStartBody is the POST body for remote start commands.
type remoteStartBody struct {
	ConnectorID int    `json:"connector_id"`
	IdTag       string `json:"id_tag"`
}

type remoteStopBody struct {
	TransactionID string `json:"transaction_id"`
}

type changeConfigBody struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type firmwareBody struct {
	Location     string `json:"location"`
	RetrieveDate string `json:"retrieve_date,omitempty"`
}

// Handler exposes station snapshots and the command API over HTTP.
// Requests must include an Authorization header with "Bearer <token>" when
// token is non-empty.
type Handler struct {
	registry *central.Registry
	store    store.Store
	token    string
	mux      *http.ServeMux
}

// NewHandler builds the operator API routes.
func NewHandler(registry *central.Registry, st store.Store, token string) *Handler {
	h := &Handler{registry: registry, store: st, token: token, mux: http.NewServeMux()}
	h.mux.HandleFunc("/api/stations", h.list)
	h.mux.HandleFunc("/api/stations/", h.station)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cps, err := h.store.ListChargePoints(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	views := make([]StationView, 0, len(cps))
	for _, cp := range cps {
		views = append(views, StationView{ChargePoint: cp, Connected: h.registry.IsOnline(cp.ID)})
	}
	writeJSON(w, http.StatusOK, views)
}

// station routes /api/stations/{id} and /api/stations/{id}/<subresource>.
func (h *Handler) station(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/stations/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		http.Error(w, "station id required", http.StatusBadRequest)
		return
	}
	switch sub {
	case "":
		h.detail(w, r, id)
	case "commands/remote-start":
		h.remoteStart(w, r, id)
	case "commands/remote-stop":
		h.remoteStop(w, r, id)
	case "configuration":
		h.configuration(w, r, id)
	case "firmware":
		h.firmware(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cp, err := h.store.GetChargePoint(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "unknown station", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	connectors, err := h.store.ListConnectors(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, StationView{
		ChargePoint: cp,
		Connected:   h.registry.IsOnline(id),
		Connectors:  connectors,
	})
}

// writeCommand maps a CommandResult to an HTTP status: delivery failures are
// 502/504, a station-side rejection is still 200 with success=false.
func writeCommand(w http.ResponseWriter, res central.CommandResult) {
	status := http.StatusOK
	switch res.Error {
	case central.ErrorNotConnected:
		status = http.StatusServiceUnavailable
	case central.ErrorTimeout:
		status = http.StatusGatewayTimeout
	case central.ErrorConnectionClosed:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

func (h *Handler) remoteStart(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body remoteStartBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IdTag == "" {
		http.Error(w, "id_tag is required", http.StatusBadRequest)
		return
	}
	writeCommand(w, h.registry.RemoteStartTransaction(r.Context(), id, body.ConnectorID, body.IdTag))
}

func (h *Handler) remoteStop(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body remoteStopBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TransactionID == "" {
		http.Error(w, "transaction_id is required", http.StatusBadRequest)
		return
	}
	writeCommand(w, h.registry.RemoteStopTransaction(r.Context(), id, body.TransactionID))
}

func (h *Handler) configuration(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		var keys []string
		if q := r.URL.Query().Get("keys"); q != "" {
			keys = strings.Split(q, ",")
		}
		writeCommand(w, h.registry.GetConfiguration(r.Context(), id, keys))
	case http.MethodPost:
		var body changeConfigBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Key == "" {
			http.Error(w, "key is required", http.StatusBadRequest)
			return
		}
		writeCommand(w, h.registry.ChangeConfiguration(r.Context(), id, body.Key, body.Value))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) firmware(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body firmwareBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Location == "" {
		http.Error(w, "location is required", http.StatusBadRequest)
		return
	}
	retrieveAt := time.Now().UTC()
	if body.RetrieveDate != "" {
		t, err := time.Parse(time.RFC3339, body.RetrieveDate)
		if err != nil {
			http.Error(w, "bad retrieve_date", http.StatusBadRequest)
			return
		}
		retrieveAt = t
	}
	writeCommand(w, h.registry.UpdateFirmware(r.Context(), id, body.Location, retrieveAt))
}
