package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/featureboard/featureboard/internal/lanes"
	"github.com/featureboard/featureboard/internal/timeparsing"
	"github.com/featureboard/featureboard/internal/types"
)

const maxBodyBytes = 1 << 20

type createRequest struct {
	Category    *string   `json:"category"`
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Steps       *[]string `json:"steps"`
}

func (c createRequest) missing() []string {
	var out []string
	if c.Category == nil {
		out = append(out, "category")
	}
	if c.Name == nil {
		out = append(out, "name")
	}
	if c.Description == nil {
		out = append(out, "description")
	}
	if c.Steps == nil {
		out = append(out, "steps")
	}
	return out
}

type updateRequest struct {
	Category    *string   `json:"category"`
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Steps       *[]string `json:"steps"`
}

func (u updateRequest) update() types.FeatureUpdate {
	out := types.FeatureUpdate{
		Category:    u.Category,
		Name:        u.Name,
		Description: u.Description,
	}
	if u.Steps != nil {
		out.Steps = append([]string{}, (*u.Steps)...)
	}
	return out
}

type priorityRequest struct {
	Priority *int `json:"priority"`
}

type moveRequest struct {
	Direction *string `json:"direction"`
}

type reorderRequest struct {
	TargetID     *int64 `json:"target_id"`
	InsertBefore *bool  `json:"insert_before"`
}

// decodeBody reads a JSON request body into v. A failure writes a 422
// response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		WriteJSONError(w, http.StatusUnprocessableEntity, "Invalid request body", err.Error())
		return false
	}
	return true
}

// pathID parses the {id} path segment. Anything other than a positive
// integer writes a 400 response and returns false.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		WriteJSONError(w, http.StatusBadRequest, "Invalid feature id", fmt.Sprintf("%q is not a positive integer", raw))
		return 0, false
	}
	return id, true
}

func missingFields(w http.ResponseWriter, fields ...string) {
	WriteJSONError(w, http.StatusUnprocessableEntity, "Missing required fields", strings.Join(fields, ", "))
}

// parseFilter reads the list query. The bool reports whether a paginated
// response was requested.
func (s *Server) parseFilter(r *http.Request) (types.FeatureFilter, bool, error) {
	q := r.URL.Query()
	var filter types.FeatureFilter

	for _, name := range []string{"passes", "in_progress"} {
		if !q.Has(name) {
			continue
		}
		b, err := strconv.ParseBool(q.Get(name))
		if err != nil {
			return filter, false, fmt.Errorf("%s must be true or false", name)
		}
		if name == "passes" {
			filter.Passes = &b
		} else {
			filter.InProgress = &b
		}
	}
	if q.Has("category") {
		c := q.Get("category")
		filter.Category = &c
	}
	if v := strings.TrimSpace(q.Get("completed_after")); v != "" {
		t, err := timeparsing.ParseRelativeTime(v, s.now())
		if err != nil {
			return filter, false, fmt.Errorf("completed_after: %w", err)
		}
		t = t.UTC()
		filter.CompletedAfter = &t
	}

	paged := q.Has("limit")
	if paged {
		limit, err := strconv.Atoi(q.Get("limit"))
		if err != nil {
			return filter, false, fmt.Errorf("limit must be an integer")
		}
		filter.Limit = limit
		if q.Has("offset") {
			offset, err := strconv.Atoi(q.Get("offset"))
			if err != nil {
				return filter, false, fmt.Errorf("offset must be an integer")
			}
			filter.Offset = offset
		}
	}
	return filter, paged, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter, paged, err := s.parseFilter(r)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid query", err.Error())
		return
	}

	if paged {
		page, err := s.engine.ListPage(r.Context(), filter)
		if err != nil {
			writeEngineError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, page)
		return
	}

	features, err := s.engine.List(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err, http.StatusBadRequest)
		return
	}
	if features == nil {
		features = []*types.Feature{}
	}
	writeJSON(w, http.StatusOK, features)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		writeEngineError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	f, err := s.engine.Get(r.Context(), id)
	if err != nil {
		writeEngineError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if missing := req.missing(); len(missing) > 0 {
		missingFields(w, missing...)
		return
	}

	f, err := s.engine.Create(r.Context(), lanes.NewFeature{
		Category:    *req.Category,
		Name:        *req.Name,
		Description: *req.Description,
		Steps:       *req.Steps,
	})
	if err != nil {
		writeEngineError(w, err, http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	f, err := s.engine.Update(r.Context(), id, req.update())
	if err != nil {
		writeEngineError(w, err, http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.engine.Delete(r.Context(), id); err != nil {
		writeEngineError(w, err, http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req types.StateChange
	if !decodeBody(w, r, &req) {
		return
	}

	f, err := s.engine.SetState(r.Context(), id, req)
	if err != nil {
		writeEngineError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handlePriority(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req priorityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Priority == nil {
		missingFields(w, "priority")
		return
	}

	f, err := s.engine.SetPriority(r.Context(), id, *req.Priority)
	if err != nil {
		writeEngineError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Direction == nil {
		missingFields(w, "direction")
		return
	}

	f, err := s.engine.Move(r.Context(), id, types.Direction(*req.Direction))
	if err != nil {
		writeEngineError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req reorderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var missing []string
	if req.TargetID == nil {
		missing = append(missing, "target_id")
	}
	if req.InsertBefore == nil {
		missing = append(missing, "insert_before")
	}
	if len(missing) > 0 {
		missingFields(w, missing...)
		return
	}

	f, err := s.engine.Reorder(r.Context(), id, *req.TargetID, *req.InsertBefore)
	if err != nil {
		writeEngineError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

