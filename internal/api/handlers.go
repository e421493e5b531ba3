// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/access"
	"github.com/holomush/warden/pkg/errutil"
)

// CodeBadRequest marks a malformed request body.
const CodeBadRequest = "BAD_REQUEST"

type identityRequest struct {
	Identity access.Identity `json:"identity"`
}

type identitiesRequest struct {
	Identities []access.Identity `json:"identities"`
}

type transferRequest struct {
	Target access.Identity `json:"target"`
}

type emergencyRequest struct {
	Enabled bool `json:"enabled"`
}

type holderResponse struct {
	Role   string          `json:"role"`
	Holder access.Identity `json:"holder"`
}

type holdersResponse struct {
	Role    string            `json:"role"`
	Holders []access.Identity `json:"holders"`
}

type hasRoleResponse struct {
	Role     string          `json:"role"`
	Identity access.Identity `json:"identity"`
	HasRole  bool            `json:"has_role"`
}

type transferResponse struct {
	Role     string          `json:"role"`
	Pending  bool            `json:"pending"`
	Target   access.Identity `json:"target,omitempty"`
	Deadline uint64          `json:"deadline"`
}

type emergencyResponse struct {
	Enabled bool `json:"enabled"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func caller(r *http.Request) access.Identity {
	id, _ := access.CallerFrom(r.Context())
	return id
}

func (h *Handler) initAdmin(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.InitAdmin(r.Context(), req.Identity); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, holderResponse{Role: access.Admin.String(), Holder: req.Identity})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.svc.Describe(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, statuses)
}

func (h *Handler) getHolder(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "role")
	holder, err := h.svc.Role(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, holderResponse{Role: name, Holder: holder})
}

func (h *Handler) setHolder(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "role")
	var req identityRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.SetRole(r.Context(), caller(r), name, req.Identity); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, holderResponse{Role: name, Holder: req.Identity})
}

func (h *Handler) getHolders(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "role")
	holders, err := h.svc.RoleHolders(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, holdersResponse{Role: name, Holders: holders})
}

func (h *Handler) setHolders(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "role")
	var req identitiesRequest
	if !h.decode(w, r, &req) {
		return
	}
	holders, err := h.svc.SetRoleHolders(r.Context(), caller(r), name, req.Identities)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, holdersResponse{Role: name, Holders: holders})
}

func (h *Handler) hasRole(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "role")
	id := access.Identity(chi.URLParam(r, "identity"))
	ok, err := h.svc.HasRole(r.Context(), id, name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, hasRoleResponse{Role: name, Identity: id, HasRole: ok})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RequireRole(r.Context(), caller(r), chi.URLParam(r, "role")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getTransfer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "role")
	st, err := h.svc.Transfer(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, transferResponse{Role: name, Pending: st.Pending(), Target: st.Target, Deadline: st.Deadline})
}

func (h *Handler) commitTransfer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "role")
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}
	deadline, err := h.svc.CommitTransfer(r.Context(), caller(r), name, req.Target)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusAccepted, transferResponse{Role: name, Pending: true, Target: req.Target, Deadline: deadline})
}

func (h *Handler) applyTransfer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "role")
	holder, err := h.svc.ApplyTransfer(r.Context(), caller(r), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, holderResponse{Role: name, Holder: holder})
}

func (h *Handler) revertTransfer(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RevertTransfer(r.Context(), caller(r), chi.URLParam(r, "role")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getEmergency(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.svc.EmergencyMode(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, emergencyResponse{Enabled: enabled})
}

func (h *Handler) setEmergency(w http.ResponseWriter, r *http.Request) {
	var req emergencyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.SetEmergencyMode(r.Context(), caller(r), req.Enabled); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, emergencyResponse{Enabled: req.Enabled})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.fail(w, r, oops.In("api").Code(CodeBadRequest).Wrapf(err, "decode request body"))
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		errutil.LogError(h.logger, "api request failed", err)
	} else {
		h.logger.DebugContext(r.Context(), "api request rejected",
			"path", r.URL.Path,
			"code", errutil.Code(err),
		)
	}

	code := errutil.Code(err)
	if code == "" {
		code = "INTERNAL"
	}
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	h.respond(w, status, errorResponse{Error: errorBody{Code: code, Message: msg}})
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(err error) int {
	switch errutil.Code(err) {
	case access.CodeUnknownRole, access.CodeInvalidIdentity, CodeBadRequest:
		return http.StatusBadRequest
	case access.CodeUnauthorized:
		return http.StatusForbidden
	case access.CodeRoleUnset:
		return http.StatusNotFound
	case access.CodeWrongRoleKind,
		access.CodeAlreadyInitialized,
		access.CodeTransferAlreadyPending,
		access.CodeNoPendingTransfer,
		access.CodeTransferNotReady:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
