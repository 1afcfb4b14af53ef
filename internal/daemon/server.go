package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"clipline/internal/admin"
	"clipline/internal/api"
	"clipline/internal/audit"
	"clipline/internal/config"
	"clipline/internal/lease"
	"clipline/internal/logging"
	"clipline/internal/notifications"
	"clipline/internal/sla"
	"clipline/internal/stage"
	"clipline/internal/tasks"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	taskSvc *api.TaskService
	leases  *lease.Manager
	machine *stage.Machine
	admin   *admin.Service

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:    bind,
		logger:  logger,
		daemon:  d,
		taskSvc: api.NewTaskService(d.store, sla.NewCalculator(cfg)),
		leases:  lease.NewManager(d.store, cfg.DefaultTTL(), logger),
		machine: stage.NewMachineWithNotifier(d.store, logger, notifications.NewService(cfg)),
		admin:   admin.NewService(d.store, audit.NewLog(d.store, logger), logger),
	}

	router := chi.NewRouter()
	router.Use(authMiddleware(strings.TrimSpace(cfg.Paths.APIToken)))
	router.Route("/api", func(r chi.Router) {
		r.Get("/status", srv.handleStatus)
		r.Get("/queue", srv.handleQueue)
		r.Get("/queue/stats", srv.handleStats)
		r.Post("/tasks", srv.handleCreate)
		r.Route("/tasks/{taskID}", func(r chi.Router) {
			r.Get("/", srv.handleTask)
			r.Get("/timeline", srv.handleTimeline)
			r.Post("/payload", srv.handleAttachPayload)
			r.Post("/claim", srv.handleClaim)
			r.Post("/release", srv.handleRelease)
			r.Post("/transition", srv.handleTransition)
		})
		r.Route("/admin/tasks/{taskID}", func(r chi.Router) {
			r.Post("/force-status", srv.handleForceStatus)
			r.Post("/clear-claim", srv.handleClearClaim)
			r.Post("/reset-assignments", srv.handleResetAssignments)
		})
	})

	srv.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	stats := make(map[string]int, len(status.QueueStats))
	for st, count := range status.QueueStats {
		stats[string(st)] = count
	}
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		QueueStats:   stats,
		Workflow:     api.FromWorkflowStatus(status.Workflow),
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := s.taskSvc.List(r.Context(), filter, callerActor(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.TaskListResponse{Items: items})
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.taskSvc.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *apiServer) handleTask(w http.ResponseWriter, r *http.Request) {
	item, err := s.taskSvc.Describe(r.Context(), chi.URLParam(r, "taskID"), callerActor(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TaskItemResponse{Item: *item})
}

func (s *apiServer) handleTimeline(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.taskSvc.Timeline(r.Context(), chi.URLParam(r, "taskID"), limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TimelineResponse{Events: events})
}

func (s *apiServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := s.identity(w, r, false)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	task, err := s.daemon.store.Create(r.Context(), req.Title, actor)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	item, err := s.taskSvc.Describe(r.Context(), task.ID, actor)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.TaskItemResponse{Item: *item})
}

func (s *apiServer) handleAttachPayload(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := s.identity(w, r, false)
	if !ok {
		return
	}
	var req struct {
		Ref string `json:"ref"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Ref) == "" {
		s.writeError(w, http.StatusBadRequest, "payload ref is required")
		return
	}
	task, err := s.daemon.store.AttachPayload(r.Context(), chi.URLParam(r, "taskID"), req.Ref, actor)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.respondWithTask(w, r, task.ID, actor)
}

func (s *apiServer) handleClaim(w http.ResponseWriter, r *http.Request) {
	actor, role, ok := s.identity(w, r, true)
	if !ok {
		return
	}
	var req struct {
		TTLMinutes int `json:"ttlMinutes"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	ttl := time.Duration(req.TTLMinutes) * time.Minute
	task, err := s.leases.Claim(r.Context(), chi.URLParam(r, "taskID"), actor, role, ttl, audit.NewCorrelationID())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.respondWithTask(w, r, task.ID, actor)
}

func (s *apiServer) handleRelease(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := s.identity(w, r, false)
	if !ok {
		return
	}
	var req struct {
		Force bool `json:"force"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	taskID := chi.URLParam(r, "taskID")
	if err := s.leases.Release(r.Context(), taskID, actor, req.Force, audit.NewCorrelationID()); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.respondWithTask(w, r, taskID, actor)
}

type transitionRequest struct {
	Target         string `json:"target"`
	RecordingNotes string `json:"recordingNotes"`
	EditorNotes    string `json:"editorNotes"`
	UploaderNotes  string `json:"uploaderNotes"`
	PostURL        string `json:"postUrl"`
	PostPlatform   string `json:"postPlatform"`
	PostAccount    string `json:"postAccount"`
	PostedAt       string `json:"postedAt"`
	Reason         string `json:"reason"`
}

func (req transitionRequest) fields() stage.Fields {
	return stage.Fields{
		RecordingNotes: req.RecordingNotes,
		EditorNotes:    req.EditorNotes,
		UploaderNotes:  req.UploaderNotes,
		Posting: tasks.PostingInfo{
			URL:           req.PostURL,
			Platform:      req.PostPlatform,
			Account:       req.PostAccount,
			PostedAtLocal: req.PostedAt,
		},
	}
}

func (s *apiServer) handleTransition(w http.ResponseWriter, r *http.Request) {
	actor, role, ok := s.identity(w, r, true)
	if !ok {
		return
	}
	var req transitionRequest
	if !s.decode(w, r, &req) {
		return
	}
	target, ok := tasks.ParseStage(req.Target)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown stage: "+req.Target)
		return
	}
	task, err := s.machine.Transition(r.Context(), chi.URLParam(r, "taskID"), actor, role, target, req.fields(), audit.NewCorrelationID())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.respondWithTask(w, r, task.ID, actor)
}

func (s *apiServer) handleForceStatus(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := s.identity(w, r, false)
	if !ok {
		return
	}
	var req transitionRequest
	if !s.decode(w, r, &req) {
		return
	}
	target, ok := tasks.ParseStage(req.Target)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown stage: "+req.Target)
		return
	}
	task, err := s.admin.ForceStatus(r.Context(), chi.URLParam(r, "taskID"), actor, req.Reason, target, req.fields())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.respondWithTask(w, r, task.ID, actor)
}

func (s *apiServer) handleClearClaim(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := s.identity(w, r, false)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	taskID := chi.URLParam(r, "taskID")
	if err := s.admin.ClearClaim(r.Context(), taskID, actor, req.Reason); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.respondWithTask(w, r, taskID, actor)
}

func (s *apiServer) handleResetAssignments(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := s.identity(w, r, false)
	if !ok {
		return
	}
	var req struct {
		Mode   string `json:"mode"`
		Reason string `json:"reason"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	mode, ok := admin.ParseResetMode(req.Mode)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown reset mode: "+req.Mode)
		return
	}
	taskID := chi.URLParam(r, "taskID")
	if err := s.admin.ResetAssignments(r.Context(), taskID, actor, mode, req.Reason); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.respondWithTask(w, r, taskID, actor)
}

func (s *apiServer) respondWithTask(w http.ResponseWriter, r *http.Request, taskID, actor string) {
	item, err := s.taskSvc.Describe(r.Context(), taskID, actor)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TaskItemResponse{Item: *item})
}

// identity reads the caller from the X-Actor and X-Role headers. Role is
// optional unless needRole is set.
func (s *apiServer) identity(w http.ResponseWriter, r *http.Request, needRole bool) (string, tasks.Role, bool) {
	actor := callerActor(r)
	if actor == "" {
		s.writeError(w, http.StatusBadRequest, "X-Actor header is required")
		return "", "", false
	}
	rawRole := strings.TrimSpace(r.Header.Get("X-Role"))
	if rawRole == "" {
		if needRole {
			s.writeError(w, http.StatusBadRequest, "X-Role header is required")
			return "", "", false
		}
		return actor, "", true
	}
	role, ok := tasks.ParseRole(rawRole)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown role: "+rawRole)
		return "", "", false
	}
	return actor, role, true
}

func callerActor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Actor"))
}

func filterFromQuery(r *http.Request) (tasks.Filter, error) {
	var filter tasks.Filter
	query := r.URL.Query()
	for _, value := range query["stage"] {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		st, ok := tasks.ParseStage(value)
		if !ok {
			return filter, fmt.Errorf("unknown stage: %s", value)
		}
		filter.Stages = append(filter.Stages, st)
	}
	if raw := strings.TrimSpace(query.Get("claim")); raw != "" {
		state, ok := tasks.ParseClaimState(raw)
		if !ok {
			return filter, fmt.Errorf("unknown claim state: %s", raw)
		}
		filter.ClaimState = state
	}
	if raw := strings.TrimSpace(query.Get("role")); raw != "" {
		role, ok := tasks.ParseRole(raw)
		if !ok {
			return filter, fmt.Errorf("unknown role: %s", raw)
		}
		filter.ClaimRole = role
	}
	filter.Holder = strings.TrimSpace(query.Get("holder"))
	return filter, nil
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeDomainError maps the store's sentinel errors onto HTTP statuses.
func (s *apiServer) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tasks.ErrAlreadyClaimed), errors.Is(err, tasks.ErrConflict), errors.Is(err, tasks.ErrNotClaimed):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, tasks.ErrForbidden):
		s.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, tasks.ErrValidation), errors.Is(err, tasks.ErrIllegalTransition):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, admin.ErrReasonRequired):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Warn("failed to encode api response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
