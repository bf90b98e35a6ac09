package ddbui

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/acksell/ddbmodel/dynamodb/adapter"
	"github.com/acksell/ddbmodel/dynamodb/codec"
	"github.com/acksell/ddbmodel/dynamodb/filter"
)

// maxBodyBytes bounds request bodies; an item cannot exceed 400KB anyway.
const maxBodyBytes = 1 << 20

// APIHandler provides REST endpoints for the records of an Adapter's models.
type APIHandler struct {
	adapter *adapter.Adapter
}

func NewAPIHandler(a *adapter.Adapter) *APIHandler {
	return &APIHandler{adapter: a}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/models", h.listModels)
	mux.HandleFunc("GET /api/models/{model}", h.getModel)
	mux.HandleFunc("GET /api/models/{model}/records", h.allRecords)
	mux.HandleFunc("POST /api/models/{model}/records", h.createRecord)
	mux.HandleFunc("PUT /api/models/{model}/records", h.saveRecord)
	mux.HandleFunc("GET /api/models/{model}/count", h.countRecords)
	mux.HandleFunc("POST /api/models/{model}/destroy", h.destroyAll)
	mux.HandleFunc("GET /api/models/{model}/records/{hash}", h.findRecord)
	mux.HandleFunc("GET /api/models/{model}/records/{hash}/{range}", h.findRecord)
	mux.HandleFunc("PATCH /api/models/{model}/records/{hash}/{range}", h.updateRecord)
	mux.HandleFunc("DELETE /api/models/{model}/records/{hash}", h.destroyRecord)
	mux.HandleFunc("DELETE /api/models/{model}/records/{hash}/{range}", h.destroyRecord)
}

type modelInfo struct {
	Name     string            `json:"name"`
	Table    string            `json:"table"`
	HashKey  string            `json:"hashKey"`
	RangeKey string            `json:"rangeKey,omitempty"`
	UUIDKey  bool              `json:"uuidKey,omitempty"`
	Chunks   map[string]string `json:"chunks,omitempty"`
}

func (h *APIHandler) modelInfo(name string) (modelInfo, error) {
	ks, err := h.adapter.KeySchema(name)
	if err != nil {
		return modelInfo{}, err
	}
	info := modelInfo{
		Name:     name,
		Table:    ks.Table.Name,
		HashKey:  ks.PartitionKey(),
		RangeKey: ks.SortKey(),
		UUIDKey:  ks.UUIDKey,
	}
	for _, b := range ks.Breakables {
		if info.Chunks == nil {
			info.Chunks = make(map[string]string)
		}
		info.Chunks[b.Attribute] = b.Directive.String()
	}
	return info, nil
}

func (h *APIHandler) listModels(w http.ResponseWriter, r *http.Request) {
	models := []modelInfo{}
	for _, name := range h.adapter.Models() {
		info, err := h.modelInfo(name)
		if err != nil {
			writeErr(w, err)
			return
		}
		models = append(models, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (h *APIHandler) getModel(w http.ResponseWriter, r *http.Request) {
	info, err := h.modelInfo(r.PathValue("model"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *APIHandler) allRecords(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := &filter.Query{Order: params.Get("order")}
	var err error
	if q.Where, err = whereParam(r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Limit, err = intParam(r, "limit"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Skip, err = intParam(r, "skip"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f := params.Get("fields"); f != "" {
		q.Fields = strings.Split(f, ",")
	}

	recs, err := h.adapter.All(r.Context(), r.PathValue("model"), q)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs, "count": len(recs)})
}

func (h *APIHandler) countRecords(w http.ResponseWriter, r *http.Request) {
	where, err := whereParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := h.adapter.Count(r.Context(), r.PathValue("model"), where)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (h *APIHandler) createRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := readRecord(w, r)
	if !ok {
		return
	}
	stored, err := h.adapter.Create(r.Context(), r.PathValue("model"), rec)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (h *APIHandler) saveRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := readRecord(w, r)
	if !ok {
		return
	}
	stored, err := h.adapter.Save(r.Context(), r.PathValue("model"), rec)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (h *APIHandler) findRecord(w http.ResponseWriter, r *http.Request) {
	model := r.PathValue("model")
	key, err := h.pathKey(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	rec, err := h.adapter.Find(r.Context(), model, key)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *APIHandler) updateRecord(w http.ResponseWriter, r *http.Request) {
	model := r.PathValue("model")
	key, err := h.pathKey(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	rec, ok := readRecord(w, r)
	if !ok {
		return
	}
	updated, err := h.adapter.UpdateAttributes(r.Context(), model, key, rec)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *APIHandler) destroyRecord(w http.ResponseWriter, r *http.Request) {
	model := r.PathValue("model")
	key, err := h.pathKey(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	old, err := h.adapter.Destroy(r.Context(), model, key)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, old)
}

func (h *APIHandler) destroyAll(w http.ResponseWriter, r *http.Request) {
	where, ok := readRecord(w, r)
	if !ok {
		return
	}
	n, err := h.adapter.DestroyAll(r.Context(), r.PathValue("model"), where)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

// pathKey reads the {hash} and optional {range} path values.
func (h *APIHandler) pathKey(r *http.Request) (adapter.Key, error) {
	var rng []string
	if v := r.PathValue("range"); v != "" {
		rng = append(rng, v)
	}
	return h.adapter.ParseKey(r.PathValue("model"), r.PathValue("hash"), rng...)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeErr maps adapter errors to status codes.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, adapter.ErrUnknownModel), errors.Is(err, adapter.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, adapter.ErrInvalidKey), errors.Is(err, adapter.ErrInvalidQuery),
		errors.Is(err, codec.ErrUnsupportedType):
		status = http.StatusBadRequest
	}
	writeError(w, status, err.Error())
}

// readRecord decodes a JSON object body, keeping numbers exact.
// It writes the error response itself and reports whether decoding succeeded.
func readRecord(w http.ResponseWriter, r *http.Request) (codec.Record, bool) {
	rec, err := decodeRecord(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "body: "+err.Error())
		return nil, false
	}
	return rec, true
}

func decodeRecord(body io.Reader) (codec.Record, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	var rec codec.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("expected a JSON object")
	}
	return rec, nil
}

func whereParam(r *http.Request) (map[string]any, error) {
	s := r.URL.Query().Get("where")
	if s == "" {
		return nil, nil
	}
	where, err := decodeRecord(strings.NewReader(s))
	if err != nil {
		return nil, errors.New("where: " + err.Error())
	}
	return where, nil
}

func intParam(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New(name + ": not an integer")
	}
	return v, nil
}
