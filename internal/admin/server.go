package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"ghostlan-sim/internal/agent"
	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/event"
	"ghostlan-sim/internal/logging"
	"ghostlan-sim/internal/network"
	"ghostlan-sim/internal/sim"
	"ghostlan-sim/internal/voice"
)

// Match is the orchestrator surface the admin server drives.
type Match interface {
	Status() sim.Status
	Events(t event.Type, limit int) []event.Event
	Agents() []agent.Status
	NetworkStats() (network.Stats, network.Snapshot, []network.Issue)
	VoiceStats() (voice.Stats, bool)
	StartMatch(ctx context.Context, id string) (string, error)
	PauseMatch()
	ResumeMatch()
	StopMatch(ctx context.Context) error
}

// Inspector exposes the anti-cheat engine's read side.
type Inspector interface {
	Detections(playerID string, limit int) []anticheat.Detection
	RecentDetections(d time.Duration) []anticheat.Detection
	Profiles() []anticheat.ProfileSummary
	PlayerRiskScore(id string) float64
	Statistics() anticheat.Statistics
	Rules() []anticheat.Rule
}

const shutdownTimeout = 5 * time.Second

// Server serves match status and controls over HTTP and streams events and
// detections to WebSocket clients. It implements sim.EventWriter and
// sim.DetectionWriter so it can be attached like any other sink.
type Server struct {
	match    Match
	ac       Inspector
	log      *slog.Logger
	tpl      *template.Template
	hub      *hub
	upgrader websocket.Upgrader
}

//go:embed templates/index.html
var content embed.FS

// NewServer builds a server over m and ac. A nil logger discards output.
func NewServer(m Match, ac Inspector, log *slog.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	return &Server{
		match: m,
		ac:    ac,
		log:   log,
		tpl:   tpl,
		hub:   newHub(log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the server's routes on a fresh mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /detections", s.handleDetections)
	mux.HandleFunc("GET /profiles", s.handleProfiles)
	mux.HandleFunc("GET /statistics", s.handleStatistics)
	mux.HandleFunc("GET /network", s.handleNetwork)
	mux.HandleFunc("POST /match/start", s.handleStart)
	mux.HandleFunc("POST /match/pause", s.handlePause)
	mux.HandleFunc("POST /match/resume", s.handleResume)
	mux.HandleFunc("POST /match/stop", s.handleStop)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// Start listens on addr until ctx is cancelled, then shuts down gracefully
// and disconnects stream clients.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("admin server listening", "addr", addr)

	select {
	case err := <-errc:
		s.hub.closeAll()
		return fmt.Errorf("admin server: %w", err)
	case <-ctx.Done():
	}
	s.hub.closeAll()
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("admin shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// WriteEvent forwards an event to stream clients.
func (s *Server) WriteEvent(ev event.Event) error {
	return s.hub.publish(streamMsg{Kind: "event", Event: &ev})
}

// WriteDetection forwards a detection to stream clients.
func (s *Server) WriteDetection(d anticheat.Detection) error {
	return s.hub.publish(streamMsg{Kind: "detection", Detection: &d})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func limitParam(r *http.Request, def int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", v)
	}
	return n, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := s.match.Status()
	data := struct {
		Status sim.Status
		Stats  anticheat.Statistics
	}{st, s.ac.Statistics()}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		s.log.Error("render index", "error", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": s.match.Status(),
		"agents": s.match.Agents(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	t := event.Type(r.URL.Query().Get("type"))
	if t != "" && !slices.Contains(event.Types(), t) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", event.ErrUnknownType, t))
		return
	}
	limit, err := limitParam(r, 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	evs := s.match.Events(t, limit)
	if evs == nil {
		evs = []event.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

// handleDetections serves the most recent detections. With since, only
// detections newer than that duration are considered.
func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	player := r.URL.Query().Get("player")
	since := r.URL.Query().Get("since")
	if since == "" {
		writeJSON(w, http.StatusOK, nonNil(s.ac.Detections(player, limit)))
		return
	}
	d, err := time.ParseDuration(since)
	if err != nil || d <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid since %q", since))
		return
	}
	ds := slices.DeleteFunc(s.ac.RecentDetections(d), func(det anticheat.Detection) bool {
		return player != "" && det.PlayerID != player
	})
	if limit > 0 && len(ds) > limit {
		ds = ds[len(ds)-limit:]
	}
	writeJSON(w, http.StatusOK, nonNil(ds))
}

func nonNil(ds []anticheat.Detection) []anticheat.Detection {
	if ds == nil {
		return []anticheat.Detection{}
	}
	return ds
}

// profileView adds the detection-independent behavior risk to a summary.
type profileView struct {
	anticheat.ProfileSummary
	BehaviorRisk float64 `json:"behavior_risk"`
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	ps := s.ac.Profiles()
	out := make([]profileView, len(ps))
	for i, p := range ps {
		out[i] = profileView{ProfileSummary: p, BehaviorRisk: s.ac.PlayerRiskScore(p.PlayerID)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"anticheat": s.ac.Statistics(),
		"rules":     s.ac.Rules(),
	})
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	stats, snap, issues := s.match.NetworkStats()
	if issues == nil {
		issues = []network.Issue{}
	}
	out := map[string]any{"stats": stats, "conditions": snap, "issues": issues}
	if vs, ok := s.match.VoiceStats(); ok {
		out["voice"] = vs
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id, err := s.match.StartMatch(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		s.log.Warn("start match rejected", "error", err)
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"match_id": id})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.match.PauseMatch()
	writeJSON(w, http.StatusOK, map[string]sim.State{"state": s.match.Status().State})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.match.ResumeMatch()
	writeJSON(w, http.StatusOK, map[string]sim.State{"state": s.match.Status().State})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.match.StopMatch(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]sim.State{"state": s.match.Status().State})
}
