package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/NERRecon/internal/application/reconciliation"
	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/internal/infrastructure/codec"
	"github.com/turtacn/NERRecon/internal/intelligence/ensemble"
	"github.com/turtacn/NERRecon/internal/intelligence/postprocess"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// ReconcileService is the application surface the handler drives.
type ReconcileService interface {
	Run(ctx context.Context, in *reconciliation.RunInput) (*reconciliation.RunResult, error)
	LoadThresholds(ctx context.Context, key string) (*postprocess.Thresholds, error)
	Postprocess(ctx context.Context, articles annotation.ArticleSet, thresholds *postprocess.Thresholds) (*reconciliation.PostprocessResult, error)
	ApplyRules(ctx context.Context, set annotation.DocumentSet) (annotation.DocumentSet, postprocess.RuleReport, error)
	Combine(ctx context.Context, sources map[string]annotation.DocumentSet, policies ...string) (annotation.DocumentSet, []*ensemble.Report, error)
	Policies() []*ensemble.Policy
	GetRun(ctx context.Context, id uuid.UUID) (*annotation.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*annotation.Run, error)
	Codec() *codec.Codec
}

var _ ReconcileService = (*reconciliation.Service)(nil)

// Run listing limits.
const (
	DefaultRunLimit = 20
	MaxRunLimit     = 100
)

// ReconcileHandler serves the reconciliation endpoints.  Request and
// response document sets use the canonical JSON form.
type ReconcileHandler struct {
	svc ReconcileService
}

// NewReconcileHandler creates a new ReconcileHandler.
func NewReconcileHandler(svc ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{svc: svc}
}

// RegisterRoutes registers the reconciliation routes on r.
func (h *ReconcileHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/reconcile", h.Reconcile)
	r.POST("/postprocess", h.Postprocess)
	r.POST("/combine", h.Combine)
	r.POST("/rules", h.Rules)
	r.GET("/policies", h.ListPolicies)
	r.GET("/runs", h.ListRuns)
	r.GET("/runs/:id", h.GetRun)
}

// ─────────────────────────────────────────────────────────────────────────────
// Stored runs
// ─────────────────────────────────────────────────────────────────────────────

// ReconcileRequest starts a run over stored document sets.
type ReconcileRequest struct {
	Policies      []string          `json:"policies"`
	Sources       map[string]string `json:"sources"`
	RawSources    map[string]string `json:"raw_sources"`
	ThresholdsKey string            `json:"thresholds_key"`
	Output        string            `json:"output" binding:"required"`
	StripMetadata *bool             `json:"strip_metadata"`
}

// Reconcile handles POST /reconcile.
func (h *ReconcileHandler) Reconcile(c *gin.Context) {
	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.Run(c.Request.Context(), &reconciliation.RunInput{
		Policies:      req.Policies,
		Sources:       req.Sources,
		RawSources:    req.RawSources,
		ThresholdsKey: req.ThresholdsKey,
		Output:        req.Output,
		StripMetadata: req.StripMetadata,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListRuns handles GET /runs?limit=N.
func (h *ReconcileHandler) ListRuns(c *gin.Context) {
	runs, err := h.svc.ListRuns(c.Request.Context(), queryInt(c, "limit", DefaultRunLimit, MaxRunLimit))
	if err != nil {
		respondError(c, err)
		return
	}
	if runs == nil {
		runs = []*annotation.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun handles GET /runs/:id.
func (h *ReconcileHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "run id must be a UUID"))
		return
	}
	run, err := h.svc.GetRun(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// ─────────────────────────────────────────────────────────────────────────────
// Inline stages
// ─────────────────────────────────────────────────────────────────────────────

// PostprocessRequest carries raw predictions inline.  Thresholds, when
// given, take precedence over ThresholdsKey.
type PostprocessRequest struct {
	Predictions   json.RawMessage    `json:"predictions" binding:"required"`
	Thresholds    map[string]float64 `json:"thresholds"`
	ThresholdsKey string             `json:"thresholds_key"`
	ApplyRules    bool               `json:"apply_rules"`
	StripMetadata bool               `json:"strip_metadata"`
}

// PostprocessResponse is the canonical set produced from raw predictions.
type PostprocessResponse struct {
	Documents json.RawMessage        `json:"documents"`
	Stats     postprocess.Stats      `json:"stats"`
	Rules     postprocess.RuleReport `json:"rules,omitempty"`
	Decode    codec.DecodeReport     `json:"decode"`
}

// Postprocess handles POST /postprocess.
func (h *ReconcileHandler) Postprocess(c *gin.Context) {
	var req PostprocessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()

	var (
		thresholds *postprocess.Thresholds
		err        error
	)
	if len(req.Thresholds) > 0 {
		thresholds, err = postprocess.NewThresholds(req.Thresholds)
	} else {
		thresholds, err = h.svc.LoadThresholds(ctx, req.ThresholdsKey)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	articles, decode, err := h.svc.Codec().DecodeRaw(req.Predictions)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.svc.Postprocess(ctx, articles, thresholds)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := PostprocessResponse{Stats: res.Stats, Decode: decode}
	set := res.Set
	if req.ApplyRules {
		if set, resp.Rules, err = h.svc.ApplyRules(ctx, set); err != nil {
			respondError(c, err)
			return
		}
	}
	if resp.Documents, err = h.encode(set, req.StripMetadata); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CombineRequest carries canonical source sets inline, keyed by source name.
type CombineRequest struct {
	Policies      []string                   `json:"policies"`
	Sources       map[string]json.RawMessage `json:"sources" binding:"required"`
	StripMetadata bool                       `json:"strip_metadata"`
}

// CombineResponse is the reconciled set with one report per policy.
type CombineResponse struct {
	Documents json.RawMessage               `json:"documents"`
	Reports   []*ensemble.Report            `json:"reports"`
	Decode    map[string]codec.DecodeReport `json:"decode"`
}

// Combine handles POST /combine.
func (h *ReconcileHandler) Combine(c *gin.Context) {
	var req CombineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sources := make(map[string]annotation.DocumentSet, len(req.Sources))
	resp := CombineResponse{Decode: make(map[string]codec.DecodeReport, len(req.Sources))}
	for name, raw := range req.Sources {
		set, report, err := h.svc.Codec().DecodeDocuments(raw)
		if err != nil {
			respondError(c, errors.Wrap(err, errors.ErrCodeMalformedInput, "invalid source").WithDetail(name))
			return
		}
		sources[name] = set
		resp.Decode[name] = report
	}

	set, reports, err := h.svc.Combine(c.Request.Context(), sources, req.Policies...)
	if err != nil {
		respondError(c, err)
		return
	}
	resp.Reports = reports
	if resp.Documents, err = h.encode(set, req.StripMetadata); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RulesRequest carries one canonical set inline.
type RulesRequest struct {
	Documents json.RawMessage `json:"documents" binding:"required"`
}

// RulesResponse is the set after span extension.
type RulesResponse struct {
	Documents json.RawMessage        `json:"documents"`
	Rules     postprocess.RuleReport `json:"rules"`
	Decode    codec.DecodeReport     `json:"decode"`
}

// Rules handles POST /rules.
func (h *ReconcileHandler) Rules(c *gin.Context) {
	var req RulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	set, decode, err := h.svc.Codec().DecodeDocuments(req.Documents)
	if err != nil {
		respondError(c, err)
		return
	}
	out, report, err := h.svc.ApplyRules(c.Request.Context(), set)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := RulesResponse{Rules: report, Decode: decode}
	if resp.Documents, err = h.encode(out, false); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListPolicies handles GET /policies.
func (h *ReconcileHandler) ListPolicies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"policies": h.svc.Policies()})
}

func (h *ReconcileHandler) encode(set annotation.DocumentSet, strip bool) (json.RawMessage, error) {
	if strip {
		set = annotation.StripMetadata(set)
	}
	return h.svc.Codec().EncodeDocuments(set)
}

//Personal.AI order the ending
