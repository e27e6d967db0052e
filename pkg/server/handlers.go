package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mbuck21/BOM-Manager/pkg/backend"
	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/buildinfo"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/result"
	"github.com/mbuck21/BOM-Manager/pkg/rollup"
)

type partRequest struct {
	PartNumber        string         `json:"part_number"`
	Name              string         `json:"name"`
	Attributes        bom.Attributes `json:"attributes"`
	ReplaceAttributes bool           `json:"replace_attributes"`
}

func (p partRequest) input() bom.PartInput {
	return bom.PartInput{
		PartNumber:        p.PartNumber,
		Name:              p.Name,
		Attributes:        p.Attributes,
		ReplaceAttributes: p.ReplaceAttributes,
	}
}

type attributesRequest struct {
	Attributes bom.Attributes `json:"attributes"`
	Replace    bool           `json:"replace"`
}

type relationshipRequest struct {
	RelID             string         `json:"rel_id"`
	Parent            string         `json:"parent_part_number"`
	Child             string         `json:"child_part_number"`
	Qty               float64        `json:"qty"`
	Attributes        bom.Attributes `json:"attributes"`
	AllowDangling     bool           `json:"allow_dangling"`
	ReplaceAttributes bool           `json:"replace_attributes"`
}

// weightRequest overrides the configured weight defaults field by field.
type weightRequest struct {
	Root                  string   `json:"root_part_number"`
	UnitWeightKey         string   `json:"unit_weight_key"`
	MaturityFactorKey     string   `json:"maturity_factor_key"`
	DefaultMaturityFactor *float64 `json:"default_maturity_factor"`
	IncludeRoot           *bool    `json:"include_root"`
	TopN                  *int     `json:"top_n"`
}

type snapshotRequest struct {
	Root        string `json:"root_part_number"`
	Label       string `json:"label"`
	Deduplicate *bool  `json:"deduplicate"`
}

// healthStatus is the /healthz payload.
type healthStatus struct {
	Build buildinfo.Info `json:"build"`
	backend.Stats
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, result.Map(s.b.Stats(r.Context()), func(st backend.Stats) healthStatus {
		return healthStatus{Build: buildinfo.Get(), Stats: st}
	}))
}

func (s *Server) listParts(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, s.b.ListParts(r.Context(), r.URL.Query().Get("q")))
}

func (s *Server) createPart(w http.ResponseWriter, r *http.Request) {
	var req partRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, http.StatusCreated, s.b.CreatePart(r.Context(), req.input()))
}

func (s *Server) getPart(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, s.b.GetPart(r.Context(), chi.URLParam(r, "partNumber")))
}

func (s *Server) upsertPart(w http.ResponseWriter, r *http.Request) {
	var req partRequest
	if !decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "partNumber")
	if req.PartNumber != "" && req.PartNumber != id {
		writeError(w, errors.New(errors.ErrCodeValidation, "part_number %q does not match path %q", req.PartNumber, id))
		return
	}
	req.PartNumber = id
	writeResult(w, http.StatusOK, s.b.UpsertPart(r.Context(), req.input()))
}

func (s *Server) updateAttributes(w http.ResponseWriter, r *http.Request) {
	var req attributesRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, http.StatusOK, s.b.UpdatePartAttributes(r.Context(), chi.URLParam(r, "partNumber"), req.Attributes, req.Replace))
}

func (s *Server) deletePart(w http.ResponseWriter, r *http.Request) {
	allow, ok := queryBool(w, r, "allow_if_referenced", false)
	if !ok {
		return
	}
	writeResult(w, http.StatusOK, s.b.DeletePart(r.Context(), chi.URLParam(r, "partNumber"), allow))
}

func (s *Server) children(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, s.b.ChildrenOf(r.Context(), chi.URLParam(r, "partNumber")))
}

func (s *Server) parents(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, s.b.ParentsOf(r.Context(), chi.URLParam(r, "partNumber")))
}

func (s *Server) subgraph(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, s.b.Subgraph(r.Context(), chi.URLParam(r, "partNumber")))
}

func (s *Server) upsertRelationship(w http.ResponseWriter, r *http.Request) {
	var req relationshipRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, http.StatusOK, s.b.UpsertRelationship(r.Context(), bom.RelationshipInput{
		RelID:             req.RelID,
		Parent:            req.Parent,
		Child:             req.Child,
		Qty:               req.Qty,
		Attributes:        req.Attributes,
		AllowDangling:     req.AllowDangling,
		ReplaceAttributes: req.ReplaceAttributes,
	}))
}

func (s *Server) deleteRelationship(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, s.b.DeleteRelationship(r.Context(), chi.URLParam(r, "relID")))
}

// numericRequest counts the root unless include_root is false.
type numericRequest struct {
	Root         string `json:"root_part_number"`
	AttributeKey string `json:"attribute_key"`
	IncludeRoot  *bool  `json:"include_root"`
}

func (s *Server) numericRollup(w http.ResponseWriter, r *http.Request) {
	var req numericRequest
	if !decode(w, r, &req) {
		return
	}
	opts := rollup.NewNumericOptions(req.Root, req.AttributeKey)
	if req.IncludeRoot != nil {
		opts.IncludeRoot = *req.IncludeRoot
	}
	writeResult(w, http.StatusOK, s.b.NumericRollup(r.Context(), opts))
}

func (s *Server) weightRollup(w http.ResponseWriter, r *http.Request) {
	var req weightRequest
	if !decode(w, r, &req) {
		return
	}
	opts := s.b.WeightDefaults(req.Root)
	if req.UnitWeightKey != "" {
		opts.UnitWeightKey = req.UnitWeightKey
	}
	if req.MaturityFactorKey != "" {
		opts.MaturityFactorKey = req.MaturityFactorKey
	}
	if req.DefaultMaturityFactor != nil {
		opts.DefaultMaturityFactor = *req.DefaultMaturityFactor
	}
	if req.IncludeRoot != nil {
		opts.IncludeRoot = *req.IncludeRoot
	}
	if req.TopN != nil {
		opts.TopN = *req.TopN
	}
	writeResult(w, http.StatusOK, s.b.WeightRollup(r.Context(), opts))
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, s.b.ListSnapshots(r.Context(), r.URL.Query().Get("root")))
}

func (s *Server) createSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if !decode(w, r, &req) {
		return
	}
	dedupe := req.Deduplicate == nil || *req.Deduplicate
	res := s.b.CreateSnapshot(r.Context(), req.Root, req.Label, dedupe)
	status := http.StatusCreated
	if res.OK && res.Data.Deduplicated {
		status = http.StatusOK
	}
	writeResult(w, status, res)
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, s.b.GetSnapshot(r.Context(), chi.URLParam(r, "snapshotID")))
}

func (s *Server) diff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeResult(w, http.StatusOK, s.b.CompareSnapshots(r.Context(), q.Get("a"), q.Get("b")))
}

// writeResult writes res with okStatus on success or the mapped error
// status on failure.
func writeResult[T any](w http.ResponseWriter, okStatus int, res result.Result[T]) {
	status := okStatus
	if !res.OK {
		status = StatusFor(res.Code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}

func writeError(w http.ResponseWriter, err error) {
	writeResult(w, http.StatusOK, result.Fail[struct{}](err))
}

// decode reads a JSON body into v and writes a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidFormat, err, "invalid request body"))
		return false
	}
	return true
}

func queryBool(w http.ResponseWriter, r *http.Request, name string, def bool) (bool, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(w, errors.New(errors.ErrCodeValidation, "%s must be a boolean", name))
		return false, false
	}
	return v, true
}
