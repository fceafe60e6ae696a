// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/barhound/barhound/internal/agent"
	"github.com/barhound/barhound/internal/features"
	"github.com/barhound/barhound/internal/inventory"
	"github.com/barhound/barhound/internal/store"
)

// weekDateFormat is the wire format for week dates.
const weekDateFormat = "2006-01-02"

type runItemPayload struct {
	ItemID   string `json:"item_id" validate:"required"`
	Category string `json:"category"`
	Vendor   string `json:"vendor"`
	Location string `json:"location"`
	CaseSize int    `json:"case_size" validate:"min=0"`
}

type runRecordPayload struct {
	ItemID   string  `json:"item_id" validate:"required"`
	WeekDate string  `json:"week_date" validate:"required,datetime=2006-01-02"`
	OnHand   float64 `json:"on_hand"`
	Usage    float64 `json:"usage"`
}

type runRequest struct {
	UsageColumn    string             `json:"usage_column" validate:"omitempty,oneof=avg_ytd avg_10wk avg_4wk avg_2wk"`
	SmoothingLevel float64            `json:"smoothing_level" validate:"omitempty,gt=0,lt=1"`
	TrendThreshold float64            `json:"trend_threshold" validate:"omitempty,gt=0,lt=1"`
	Items          []runItemPayload   `json:"items" validate:"required,min=1,dive"`
	Records        []runRecordPayload `json:"records" validate:"required,min=1,dive"`
}

// dataset converts the request payload into the domain dataset. Item IDs are
// trimmed; records referencing unknown items are still carried, matching the
// parser contract.
func (req *runRequest) dataset() *inventory.Dataset {
	d := &inventory.Dataset{
		Items:   make(map[string]inventory.Item, len(req.Items)),
		Records: make([]inventory.WeeklyRecord, 0, len(req.Records)),
	}
	for _, it := range req.Items {
		id := strings.TrimSpace(it.ItemID)
		d.Items[id] = inventory.Item{
			ID:       id,
			Category: inventory.Category(it.Category),
			Vendor:   it.Vendor,
			Location: it.Location,
			CaseSize: it.CaseSize,
		}
	}
	for _, rec := range req.Records {
		// Validated upstream; a parse failure here cannot happen.
		week, _ := time.Parse(weekDateFormat, rec.WeekDate)
		d.Records = append(d.Records, inventory.WeeklyRecord{
			ItemID:   strings.TrimSpace(rec.ItemID),
			WeekDate: week,
			OnHand:   rec.OnHand,
			Usage:    rec.Usage,
		})
	}
	return d
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &APIResponse{
			Status:   "error",
			Error:    apiErr,
			Metadata: Metadata{Timestamp: time.Now().UTC()},
		})
		return
	}

	params := agent.Params{
		UsageColumn: inventory.UsageColumn(s.cfg.Agent.UsageColumn),
		Features: features.Params{
			SmoothingLevel: s.cfg.Agent.SmoothingLevel,
			TrendThreshold: s.cfg.Agent.TrendThreshold,
		},
		Targets:     s.cfg.Targets,
		Constraints: s.cfg.Constraints,
	}
	if req.UsageColumn != "" {
		params.UsageColumn = inventory.UsageColumn(req.UsageColumn)
	}
	if req.SmoothingLevel != 0 {
		params.Features.SmoothingLevel = req.SmoothingLevel
	}
	if req.TrendThreshold != 0 {
		params.Features.TrendThreshold = req.TrendThreshold
	}

	run, err := s.agent.Run(r.Context(), req.dataset(), params)
	if err != nil {
		if errors.Is(err, agent.ErrConfiguration) {
			respondError(w, http.StatusBadRequest, "INVALID_PARAMETERS", err.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "RUN_FAILED", "recommendation run failed", err)
		return
	}
	respondData(w, http.StatusCreated, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	runs, err := s.store.RecentRuns(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to list runs", err)
		return
	}
	respondData(w, http.StatusOK, runs)
}

type runDetailResponse struct {
	Run     *agent.Run         `json:"run"`
	Actions []agent.UserAction `json:"actions"`
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.store.RunDetail(r.Context(), runID)
	if errors.Is(err, store.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "RUN_NOT_FOUND", "no run with that id", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to load run", err)
		return
	}

	actions, err := s.store.Actions(r.Context(), runID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to load actions", err)
		return
	}
	if actions == nil {
		actions = []agent.UserAction{}
	}
	respondData(w, http.StatusOK, runDetailResponse{Run: run, Actions: actions})
}

type actionPayload struct {
	ItemID         string `json:"item_id" validate:"required"`
	RecommendedQty int    `json:"recommended_qty" validate:"min=0"`
	ApprovedQty    int    `json:"approved_qty" validate:"min=0"`
	OverrideReason string `json:"override_reason"`
}

type actionsRequest struct {
	Actions []actionPayload `json:"actions" validate:"required,min=1,dive"`
}

func (s *Server) handleSaveActions(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	var req actionsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &APIResponse{
			Status:   "error",
			Error:    apiErr,
			Metadata: Metadata{Timestamp: time.Now().UTC()},
		})
		return
	}

	if _, err := s.store.RunDetail(r.Context(), runID); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			respondError(w, http.StatusNotFound, "RUN_NOT_FOUND", "no run with that id", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to load run", err)
		return
	}

	actions := make([]agent.UserAction, len(req.Actions))
	for i, a := range req.Actions {
		actions[i] = agent.UserAction{
			RunID:          runID,
			ItemID:         a.ItemID,
			RecommendedQty: a.RecommendedQty,
			ApprovedQty:    a.ApprovedQty,
			OverrideReason: a.OverrideReason,
		}
	}
	if err := s.store.SaveUserActions(r.Context(), runID, actions); err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to save actions", err)
		return
	}
	respondData(w, http.StatusCreated, map[string]int{"saved": len(actions)})
}

func (s *Server) handleListPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.store.Preferences(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to load preferences", err)
		return
	}
	respondData(w, http.StatusOK, prefs)
}

func (s *Server) handleGetPreference(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	pref, ok, err := s.store.Preference(r.Context(), itemID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to load preference", err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "PREFERENCE_NOT_FOUND", "no preference for that item", nil)
		return
	}
	respondData(w, http.StatusOK, pref)
}

type preferenceRequest struct {
	TargetWeeksOverride   *float64 `json:"target_weeks_override" validate:"omitempty,gt=0"`
	NeverOrder            *bool    `json:"never_order"`
	PreferredCaseRounding *bool    `json:"preferred_case_rounding"`
	Notes                 *string  `json:"notes"`
}

func (s *Server) handlePutPreference(w http.ResponseWriter, r *http.Request) {
	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "item id is required", nil)
		return
	}

	var req preferenceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &APIResponse{
			Status:   "error",
			Error:    apiErr,
			Metadata: Metadata{Timestamp: time.Now().UTC()},
		})
		return
	}

	pref, err := s.store.UpsertPreference(r.Context(), itemID, store.PreferenceUpdate{
		TargetWeeksOverride:   req.TargetWeeksOverride,
		NeverOrder:            req.NeverOrder,
		PreferredCaseRounding: req.PreferredCaseRounding,
		Notes:                 req.Notes,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to save preference", err)
		return
	}
	respondData(w, http.StatusOK, pref)
}

func (s *Server) handleItemHistory(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	limit := queryInt(r, "limit", 20)

	history, err := s.store.ItemHistory(r.Context(), itemID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to load item history", err)
		return
	}
	respondData(w, http.StatusOK, history)
}
