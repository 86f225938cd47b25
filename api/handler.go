package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"anytrack/config"
	"anytrack/form"
	"anytrack/operation"
	"anytrack/request"
	"anytrack/result"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Handler struct {
	ctx      context.Context
	ctrl     *operation.Controller
	cfg      *config.Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(ctx context.Context, ctrl *operation.Controller, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		ctx:    ctx,
		ctrl:   ctrl,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type formView struct {
	Mode      form.Mode     `json:"mode"`
	Source    string        `json:"source,omitempty"`
	SourceURL string        `json:"url,omitempty"`
	Format    form.Format   `json:"format"`
	Quality   int           `json:"quality"`
	Lossy     bool          `json:"lossy"`
	Advanced  form.Advanced `json:"advanced"`
	Metadata  form.Metadata `json:"metadata"`
}

type sessionView struct {
	Form  formView        `json:"form"`
	State operation.State `json:"state"`
}

func (h *Handler) session() sessionView {
	f := h.ctrl.Form()
	v := formView{
		Mode:      f.Mode,
		SourceURL: f.SourceURL,
		Format:    f.Format,
		Quality:   f.Quality,
		Lossy:     f.Format.Lossy(),
		Advanced:  f.Advanced,
		Metadata:  f.Metadata,
	}
	if f.Source != nil {
		v.Source = f.Source.Name()
	}
	return sessionView{Form: v, State: h.ctrl.State()}
}

// editError maps controller errors onto status codes.
func (h *Handler) editError(c *gin.Context, err error) {
	if errors.Is(err, operation.ErrBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (h *Handler) handleGetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.session())
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

func (h *Handler) handleSetMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := form.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.ctrl.SetMode(m); err != nil {
		h.editError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session())
}

// formPatch carries only the fields the caller wants to change. It is
// applied atomically.
type formPatch struct {
	URL     *string           `json:"url"`
	Format  *string           `json:"format"`
	Quality *int              `json:"quality"`
	Options map[string]string `json:"options"`
	Tags    map[string]string `json:"tags"`
}

func (h *Handler) handleUpdateForm(c *gin.Context) {
	var p formPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.ctrl.Update(func(s *form.State) error {
		if p.URL != nil {
			s.SourceURL = *p.URL
		}
		if p.Format != nil {
			if err := s.SetFormat(form.Format(*p.Format)); err != nil {
				return err
			}
		}
		if p.Quality != nil {
			if err := s.SetQuality(*p.Quality); err != nil {
				return err
			}
		}
		for name, value := range p.Options {
			if err := s.Advanced.Set(name, value); err != nil {
				return err
			}
		}
		for name, value := range p.Tags {
			if err := s.Metadata.Set(name, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.editError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session())
}

func (h *Handler) handleUploadFile(c *gin.Context) {
	if h.cfg.MaxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadSize+1<<20)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file field required: %v", err)})
		return
	}
	if h.cfg.MaxUploadSize > 0 && fh.Size > h.cfg.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds upload limit"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.ctrl.SetSource(form.MemoryFile(fh.Filename, data)); err != nil {
		h.editError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session())
}

// handleSubmit starts an operation and returns immediately; progress is
// observed through GET /session or the events stream.
func (h *Handler) handleSubmit(c *gin.Context) {
	_, err := h.ctrl.Start(h.ctx)
	var verr *request.ValidationError
	switch {
	case errors.Is(err, operation.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Message, "session": h.session()})
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "session": h.session()})
	default:
		c.JSON(http.StatusAccepted, h.session())
	}
}

func (h *Handler) handleDownload(c *gin.Context) {
	path, err := h.ctrl.Download(c.Request.Context())
	if errors.Is(err, result.ErrNoArtifact) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

const eventWriteTimeout = 10 * time.Second

// handleEvents streams every state change to a websocket client, starting
// with the current state. Slow clients lose intermediate states, never the
// latest one.
func (h *Handler) handleEvents(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := make(chan operation.State, 16)
	unsubscribe := h.ctrl.Subscribe(func(st operation.State) {
		for {
			select {
			case events <- st:
				return
			default:
			}
			select {
			case <-events:
			default:
			}
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(st operation.State) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
		return conn.WriteJSON(st) == nil
	}
	if !send(h.ctrl.State()) {
		return
	}
	for {
		select {
		case st := <-events:
			if !send(st) {
				return
			}
		case <-closed:
			return
		case <-h.ctx.Done():
			return
		}
	}
}
