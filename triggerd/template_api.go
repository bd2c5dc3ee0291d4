package main

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowlane-labs/flowlane-go/internal/domain"
	"github.com/flowlane-labs/flowlane-go/internal/platform/auditlog"
	"github.com/flowlane-labs/flowlane-go/internal/repo"
	"github.com/flowlane-labs/flowlane-go/internal/trigger"
)

type publishTemplateRequest struct {
	Description string               `json:"description,omitempty"`
	Graph       domain.StepGraph     `json:"graph"`
	Defaults    domain.DefaultConfig `json:"defaults,omitempty"`
}

type templateInfo struct {
	TemplateID   string    `json:"templateId"`
	PipelineName string    `json:"pipelineName"`
	Description  string    `json:"description,omitempty"`
	PublishedAt  time.Time `json:"publishedAt"`
	PublishedBy  string    `json:"publishedBy,omitempty"`
}

type templateDetail struct {
	templateInfo
	Graph    domain.StepGraph     `json:"graph"`
	Defaults domain.DefaultConfig `json:"defaults,omitempty"`
}

func infoOf(tpl domain.PipelineTemplate) templateInfo {
	return templateInfo{
		TemplateID:   tpl.TemplateID,
		PipelineName: tpl.Name,
		Description:  tpl.Description,
		PublishedAt:  tpl.PublishedAt,
		PublishedBy:  tpl.PublishedBy,
	}
}

func (api *triggerAPI) handlePublishTemplate(w http.ResponseWriter, r *http.Request) {
	pipeline := strings.TrimSpace(r.PathValue("pipeline_name"))
	if pipeline == "" {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request", "pipeline name is required")
		return
	}

	var tpl domain.PipelineTemplate
	if isYAMLContentType(r.Header.Get("Content-Type")) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_yaml", err.Error())
			return
		}
		parsed, err := domain.ParseTemplateYAML(raw)
		if err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_yaml", err.Error())
			return
		}
		if parsed.Name != pipeline {
			api.writeError(w, r, http.StatusBadRequest, "invalid_request",
				"document pipeline name does not match URL")
			return
		}
		tpl = parsed
	} else {
		var req publishTemplateRequest
		if err := decodeJSON(r, &req); err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		tpl = domain.PipelineTemplate{
			Name:          pipeline,
			Description:   strings.TrimSpace(req.Description),
			Graph:         req.Graph,
			DefaultConfig: req.Defaults,
		}
	}

	actor := actorFromRequest(r)
	tpl.TemplateID = uuid.NewString()
	tpl.PublishedAt = time.Now().UTC()
	tpl.PublishedBy = actor

	if err := trigger.ValidateTemplate(tpl); err != nil {
		api.writeTriggerError(w, r, err)
		return
	}

	// Template row, latest pointer, and the audit event commit together:
	// a failed publish leaves no orphan version to retry around.
	err := api.publisher.PublishTemplate(r.Context(), tpl, auditlog.Event{
		OccurredAt:   tpl.PublishedAt,
		Actor:        orUnknown(actor),
		Action:       auditlog.ActionTemplatePublished,
		ResourceType: "pipeline_template",
		ResourceID:   tpl.TemplateID,
		RequestID:    r.Header.Get("X-Request-Id"),
		IP:           requestIP(r.RemoteAddr),
		UserAgent:    r.UserAgent(),
		Payload: map[string]any{
			"pipeline": pipeline,
			"steps":    len(tpl.Graph.Steps),
		},
	})
	if err != nil {
		api.logger.Error("template publish failed",
			"request_id", r.Header.Get("X-Request-Id"),
			"pipeline", pipeline,
			"error", err.Error(),
		)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	w.Header().Set("Location", "/pipelines/"+pipeline+"/templates/"+tpl.TemplateID)
	api.writeJSON(w, http.StatusCreated, infoOf(tpl))
}

func (api *triggerAPI) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	pipeline := strings.TrimSpace(r.PathValue("pipeline_name"))
	if pipeline == "" {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request", "pipeline name is required")
		return
	}
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)

	versions, err := api.templates.ListVersions(r.Context(), pipeline, limit)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found",
				"no template published for pipeline "+pipeline)
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if len(versions) == 0 {
		api.writeError(w, r, http.StatusNotFound, "not_found",
			"no template published for pipeline "+pipeline)
		return
	}

	out := make([]templateInfo, 0, len(versions))
	for _, tpl := range versions {
		out = append(out, infoOf(tpl))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

func (api *triggerAPI) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	pipeline := strings.TrimSpace(r.PathValue("pipeline_name"))
	templateID := strings.TrimSpace(r.PathValue("template_id"))
	if pipeline == "" || templateID == "" {
		api.writeError(w, r, http.StatusBadRequest, "invalid_request", "pipeline name and template id are required")
		return
	}

	tpl, err := api.templates.Get(r.Context(), pipeline, templateID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found", "template not found")
			return
		}
		if errors.Is(err, repo.ErrAmbiguous) {
			api.writeError(w, r, http.StatusNotFound, "ambiguous_template",
				"template does not belong to pipeline "+pipeline)
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	api.writeJSON(w, http.StatusOK, templateDetail{
		templateInfo: infoOf(tpl),
		Graph:        tpl.Graph,
		Defaults:     tpl.DefaultConfig,
	})
}

func isYAMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return true
	}
	return false
}
