package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flowlane-labs/flowlane-go/internal/platform/auditlog"
	"github.com/flowlane-labs/flowlane-go/internal/platform/auth"
	"github.com/flowlane-labs/flowlane-go/internal/repo"
	"github.com/flowlane-labs/flowlane-go/internal/trigger"
)

type triggerAPI struct {
	logger    *slog.Logger
	facade    *trigger.Facade
	templates repo.TemplateStore
	runs      repo.RunStore
	publisher templatePublisher

	// audit is nil when no durable audit sink is configured (memory mode).
	// Publish-path audit rides the publisher's transaction instead.
	audit auditlog.QueryRower
}

func newTriggerAPI(logger *slog.Logger, facade *trigger.Facade, templates repo.TemplateStore, runs repo.RunStore, publisher templatePublisher, audit auditlog.QueryRower) *triggerAPI {
	return &triggerAPI{
		logger:    logger,
		facade:    facade,
		templates: templates,
		runs:      runs,
		publisher: publisher,
		audit:     audit,
	}
}

func (api *triggerAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /pipelines/{pipeline_name}/trigger", api.handleTrigger)

	mux.HandleFunc("POST /pipelines/{pipeline_name}/templates", api.handlePublishTemplate)
	mux.HandleFunc("GET /pipelines/{pipeline_name}/templates", api.handleListTemplates)
	mux.HandleFunc("GET /pipelines/{pipeline_name}/templates/{template_id}", api.handleGetTemplate)

	mux.HandleFunc("GET /runs/{run_id}", api.handleGetRun)
}

// statusForKind maps the trigger error taxonomy onto HTTP status codes.
func statusForKind(kind trigger.Kind) int {
	switch kind {
	case trigger.KindNotFound, trigger.KindAmbiguousTemplate:
		return http.StatusNotFound
	case trigger.KindCycle, trigger.KindIdempotencyConflict:
		return http.StatusConflict
	case trigger.KindUnknownStep,
		trigger.KindUnknownParameter,
		trigger.KindMissingParameter,
		trigger.KindTypeMismatch,
		trigger.KindDanglingArtifactRef,
		trigger.KindSubmissionRejected:
		return http.StatusUnprocessableEntity
	case trigger.KindBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (api *triggerAPI) writeTriggerError(w http.ResponseWriter, r *http.Request, err error) {
	var te *trigger.Error
	if errors.As(err, &te) {
		api.writeError(w, r, statusForKind(te.Kind), string(te.Kind), te.Message)
		return
	}
	api.logger.Error("trigger failed",
		"request_id", r.Header.Get("X-Request-Id"),
		"path", r.URL.Path,
		"error", err.Error(),
	)
	api.writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
}

func (api *triggerAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *triggerAPI) writeError(w http.ResponseWriter, r *http.Request, status int, kind string, message string) {
	api.writeJSON(w, status, map[string]any{
		"kind":       kind,
		"message":    message,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func (api *triggerAPI) recordAudit(ctx context.Context, event auditlog.Event) {
	if api.audit == nil {
		return
	}
	auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
	defer cancel()
	if _, err := auditlog.Insert(auditCtx, api.audit, event); err != nil {
		api.logger.Warn("audit write failed", "action", event.Action, "error", err.Error())
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func requestIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

func actorFromRequest(r *http.Request) string {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return ""
	}
	return strings.TrimSpace(identity.Subject)
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
