package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/marmos91/aclgate/internal/telemetry"
	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/guard"
	"github.com/marmos91/aclgate/pkg/rules"
)

// RulesHandler handles rule management and permission check endpoints.
type RulesHandler struct {
	store rules.Store
}

// NewRulesHandler creates a new RulesHandler.
func NewRulesHandler(store rules.Store) *RulesHandler {
	return &RulesHandler{store: store}
}

// RuleSpec is the wire form of a rule in requests. Subjects use the
// "type:id" form and permission sets their comma-separated form, matching
// the CLI.
type RuleSpec struct {
	Subject     string `json:"subject"`
	Path        string `json:"path"`
	Mask        string `json:"mask"`
	Permissions string `json:"permissions"`
}

// RuleResponse is the wire form of a stored rule in responses.
type RuleResponse struct {
	FolderID    int64  `json:"folder_id"`
	Subject     string `json:"subject"`
	Path        string `json:"path"`
	Mask        string `json:"mask"`
	Permissions string `json:"permissions"`
}

// SetRulesRequest is the request body for PUT /api/v1/folders/{folderID}/rules.
type SetRulesRequest struct {
	Rules []RuleSpec `json:"rules"`
}

// DeleteRuleRequest is the request body for DELETE /api/v1/folders/{folderID}/rules.
type DeleteRuleRequest struct {
	Subject string `json:"subject"`
	Path    string `json:"path"`
}

// CheckRequest is the request body for POST /api/v1/folders/{folderID}/check.
// The identity to resolve is the user plus any groups; either side may be
// empty but not both.
type CheckRequest struct {
	User    string   `json:"user"`
	Groups  []string `json:"groups,omitempty"`
	Path    string   `json:"path"`
	InShare bool     `json:"in_share,omitempty"`
}

// CheckResponse is the response body for POST /api/v1/folders/{folderID}/check.
type CheckResponse struct {
	Path      string   `json:"path"`
	Subjects  []string `json:"subjects"`
	Effective string   `json:"effective"`
	Visible   bool     `json:"visible"`
}

// List handles GET /api/v1/folders/{folderID}/rules.
// Lists every rule in the folder.
func (h *RulesHandler) List(w http.ResponseWriter, r *http.Request) {
	folderID, ok := folderIDParam(w, r)
	if !ok {
		return
	}

	stored, err := h.store.ListRules(r.Context(), folderID)
	if err != nil {
		InternalServerError(w, "Failed to list rules")
		return
	}

	response := make([]RuleResponse, len(stored))
	for i, rule := range stored {
		response[i] = ruleToResponse(rule)
	}

	WriteJSONOK(w, response)
}

// Set handles PUT /api/v1/folders/{folderID}/rules.
// Inserts or replaces the given rules. The folder ID in the URL wins over
// anything in the body. Returns the stored rules in canonical form.
func (h *RulesHandler) Set(w http.ResponseWriter, r *http.Request) {
	folderID, ok := folderIDParam(w, r)
	if !ok {
		return
	}

	var req SetRulesRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if len(req.Rules) == 0 {
		BadRequest(w, "At least one rule is required")
		return
	}

	parsed := make([]acl.Rule, len(req.Rules))
	for i, spec := range req.Rules {
		rule, err := parseRuleSpec(folderID, spec)
		if err != nil {
			BadRequest(w, fmt.Sprintf("Rule %d: %v", i, err))
			return
		}
		parsed[i] = rule
	}

	response := make([]RuleResponse, len(parsed))
	for i, rule := range parsed {
		if err := h.store.SetRule(r.Context(), rule); err != nil {
			InternalServerError(w, fmt.Sprintf("Failed to store rule %d", i))
			return
		}
		response[i] = ruleToResponse(rule)
	}

	WriteJSONOK(w, response)
}

// Delete handles DELETE /api/v1/folders/{folderID}/rules.
// Removes the rule identified by subject and path.
func (h *RulesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	folderID, ok := folderIDParam(w, r)
	if !ok {
		return
	}

	var req DeleteRuleRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	subject, err := acl.ParseSubject(req.Subject)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	path := acl.CleanPath(req.Path)

	if _, err := h.store.GetRule(r.Context(), folderID, subject, path); err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			NotFound(w, "Rule not found")
			return
		}
		InternalServerError(w, "Failed to look up rule")
		return
	}

	if err := h.store.DeleteRule(r.Context(), folderID, subject, path); err != nil {
		InternalServerError(w, "Failed to delete rule")
		return
	}

	WriteNoContent(w)
}

// Check handles POST /api/v1/folders/{folderID}/check.
// Resolves the effective permissions the given identity holds on a path,
// with the same visibility gating the guard applies.
func (h *RulesHandler) Check(w http.ResponseWriter, r *http.Request) {
	folderID, ok := folderIDParam(w, r)
	if !ok {
		return
	}

	var req CheckRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	subjects := acl.SubjectsFor(req.User, req.Groups...)
	if len(subjects) == 0 {
		BadRequest(w, "A user or at least one group is required")
		return
	}

	svc, err := rules.NewService(rules.ServiceConfig{
		Store:    h.store,
		Subjects: subjects,
	})
	if err != nil {
		InternalServerError(w, "Failed to build rule service")
		return
	}

	path := acl.CleanPath(req.Path)
	ctx, span := telemetry.StartAuthorizeSpan(r.Context(), "check", path,
		telemetry.FolderID(folderID),
		telemetry.Username(req.User),
		telemetry.Groups(req.Groups),
		telemetry.InShare(req.InShare),
	)
	defer span.End()

	resolved, err := svc.GetPermissions(ctx, folderID, "", path)
	if err != nil {
		span.RecordError(err)
		InternalServerError(w, "Failed to resolve permissions")
		return
	}
	effective := guard.GateVisibility(resolved, req.InShare)
	span.SetAttributes(
		telemetry.Decision(effective != acl.PermissionNone),
		telemetry.Permissions(effective.String()),
	)

	names := make([]string, len(subjects))
	for i, s := range subjects {
		names[i] = s.String()
	}

	WriteJSONOK(w, CheckResponse{
		Path:      path,
		Subjects:  names,
		Effective: effective.String(),
		Visible:   effective != acl.PermissionNone,
	})
}

// parseRuleSpec converts a wire rule into a validated acl.Rule.
func parseRuleSpec(folderID int64, spec RuleSpec) (acl.Rule, error) {
	subject, err := acl.ParseSubject(spec.Subject)
	if err != nil {
		return acl.Rule{}, err
	}
	mask, err := acl.ParsePermissions(spec.Mask)
	if err != nil {
		return acl.Rule{}, fmt.Errorf("mask: %w", err)
	}
	permissions, err := acl.ParsePermissions(spec.Permissions)
	if err != nil {
		return acl.Rule{}, fmt.Errorf("permissions: %w", err)
	}

	rule := acl.Rule{
		FolderID:    folderID,
		Subject:     subject,
		Path:        acl.CleanPath(spec.Path),
		Mask:        mask,
		Permissions: permissions,
	}
	if err := rule.Validate(); err != nil {
		return acl.Rule{}, err
	}
	return rule, nil
}

// ruleToResponse converts a stored rule to its wire form.
func ruleToResponse(rule acl.Rule) RuleResponse {
	return RuleResponse{
		FolderID:    rule.FolderID,
		Subject:     rule.Subject.String(),
		Path:        rule.Path,
		Mask:        rule.Mask.String(),
		Permissions: rule.Permissions.String(),
	}
}
