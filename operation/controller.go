// Package operation drives one conversion at a time: it builds the request,
// keeps a synthetic progress bar moving while the service works and turns the
// response into a downloadable artifact.
package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"anytrack/client"
	"anytrack/form"
	"anytrack/progress"
	"anytrack/request"
	"anytrack/result"

	"github.com/lithammer/shortuuid/v4"
)

// Service is the conversion service as seen by the controller.
type Service interface {
	Send(ctx context.Context, r *request.Request) (*http.Response, error)
	DownloadURL(fileID string) string
}

// Saver stores an artifact locally.
type Saver interface {
	Save(ctx context.Context, a result.Artifact) (string, error)
}

type Options struct {
	Builder   request.Builder
	Simulator progress.Simulator
	Saver     Saver
	Logger    *slog.Logger
	// Profiles overrides the progress profile per mode.
	Profiles map[form.Mode]progress.Profile
}

// Controller owns the form and the operation state. All methods are safe for
// concurrent use.
type Controller struct {
	mu       sync.Mutex
	form     *form.State
	state    State
	building bool
	ticker   *progress.Handle

	service  Service
	builder  request.Builder
	sim      progress.Simulator
	saver    Saver
	profiles map[form.Mode]progress.Profile
	logger   *slog.Logger

	emitMu  sync.Mutex
	emitted uint64
	subs    map[int]func(State)
	nextSub int
}

func New(svc Service, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	f := form.New()
	return &Controller{
		form:     f,
		state:    State{Mode: f.Mode, Phase: Idle},
		service:  svc,
		builder:  opts.Builder,
		sim:      opts.Simulator,
		saver:    opts.Saver,
		profiles: opts.Profiles,
		logger:   logger,
		subs:     make(map[int]func(State)),
	}
}

// State returns a copy of the current operation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Form returns a copy of the form.
func (c *Controller) Form() form.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form.Clone()
}

// Subscribe registers fn for every state change, delivered in order. fn must
// not call mutating controller methods; reading State is fine.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.emitMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.emitMu.Unlock()
	return func() {
		c.emitMu.Lock()
		delete(c.subs, id)
		c.emitMu.Unlock()
	}
}

// commit must be called with c.mu held. It stamps the next sequence number
// and returns the state to emit once the lock is released.
func (c *Controller) commit() State {
	c.state.Seq++
	return c.state
}

func (c *Controller) emit(st State) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if st.Seq <= c.emitted {
		return
	}
	c.emitted = st.Seq
	for _, fn := range c.subs {
		fn(st)
	}
}

func (c *Controller) busy() bool {
	return c.building || c.state.Phase == InFlight
}

// resetLocked returns the operation to Idle, dropping any artifact.
func (c *Controller) resetLocked() {
	seq := c.state.Seq
	c.state = State{Mode: c.form.Mode, Phase: Idle, Seq: seq}
}

func (c *Controller) profile(m form.Mode) progress.Profile {
	if p, ok := c.profiles[m]; ok {
		return p
	}
	return kinds[m].profile
}

// Start validates the form and, if it is complete, issues the request in the
// background. The returned channel yields the final state exactly once.
// Validation failures move the operation straight to Failed and are
// returned as *request.ValidationError.
func (c *Controller) Start(ctx context.Context) (<-chan State, error) {
	c.mu.Lock()
	if c.busy() {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.building = true
	snapshot := c.form.Clone()
	c.mu.Unlock()

	req, err := c.builder.Build(snapshot)

	c.mu.Lock()
	c.building = false
	if err != nil {
		msg := "Error: " + err.Error()
		var verr *request.ValidationError
		if errors.As(err, &verr) {
			msg = verr.Message
		}
		c.resetLocked()
		c.state.Phase = Failed
		c.state.Message = msg
		st := c.commit()
		c.mu.Unlock()
		c.emit(st)
		c.logger.Info("submission rejected", "mode", snapshot.Mode.String(), "error", err)
		return nil, err
	}

	id := shortuuid.New()
	c.resetLocked()
	c.state.ID = id
	c.state.Phase = InFlight
	c.state.StartedAt = time.Now()
	c.ticker = c.sim.Start(c.profile(snapshot.Mode), 0, func(v float64) { c.tick(id, v) })
	st := c.commit()
	c.mu.Unlock()
	c.emit(st)

	logger := c.logger.With("operation", id, "mode", snapshot.Mode.String())
	logger.Info("operation started", "path", req.Path, "fields", req.Fields)

	done := make(chan State, 1)
	go func() {
		defer close(done)
		done <- c.run(ctx, logger, id, snapshot, req)
	}()
	return done, nil
}

// Submit runs Start and waits for the outcome.
func (c *Controller) Submit(ctx context.Context) (State, error) {
	done, err := c.Start(ctx)
	if err != nil {
		return c.State(), err
	}
	return <-done, nil
}

func (c *Controller) tick(id string, v float64) {
	c.mu.Lock()
	if c.state.ID != id || c.state.Phase != InFlight || v <= c.state.Progress {
		c.mu.Unlock()
		return
	}
	c.state.Progress = v
	st := c.commit()
	c.mu.Unlock()
	c.emit(st)
}

// stopTicker cancels the progress timer. It must run without c.mu held
// because a pending tick may be waiting for the lock.
func (c *Controller) stopTicker() {
	c.mu.Lock()
	h := c.ticker
	c.ticker = nil
	c.mu.Unlock()
	h.Stop()
}

func (c *Controller) run(ctx context.Context, logger *slog.Logger, id string, snapshot form.State, req *request.Request) State {
	resp, err := c.service.Send(ctx, req)
	c.stopTicker()
	if err != nil {
		logger.Warn("request failed", "error", err)
		return c.fail(id, err.Error())
	}

	c.update(id, func(s *State) { s.Progress = progress.Resolving })

	out, err := client.Decode(resp)
	if err != nil {
		logger.Warn("could not decode response", "error", err)
		return c.fail(id, err.Error())
	}
	if !out.Success {
		logger.Info("service reported failure", "message", out.Message)
		return c.fail(id, out.Message)
	}
	if out.FileID == "" {
		logger.Warn("success response without file_id")
		return c.fail(id, "service returned no file_id")
	}

	k := kinds[snapshot.Mode]
	name := out.OriginalName
	if name == "" {
		name = k.defaultName(snapshot)
	}
	artifact := result.Derive(out.FileID, c.service.DownloadURL(out.FileID), name, k.fallbackExt(snapshot))

	logger.Info("operation succeeded", "file_id", out.FileID, "filename", artifact.Filename)
	return c.update(id, func(s *State) {
		s.Phase = Succeeded
		s.Progress = progress.Complete
		s.Message = k.success
		s.FileID = out.FileID
		s.OriginalName = name
		s.Artifact = &artifact
		s.CompletedAt = time.Now()
	})
}

func (c *Controller) fail(id, message string) State {
	return c.update(id, func(s *State) {
		s.Phase = Failed
		s.Progress = 0
		s.Message = "Error: " + message
		s.CompletedAt = time.Now()
	})
}

// update applies fn if operation id is still current.
func (c *Controller) update(id string, fn func(*State)) State {
	c.mu.Lock()
	if c.state.ID != id {
		st := c.state
		c.mu.Unlock()
		return st
	}
	fn(&c.state)
	st := c.commit()
	c.mu.Unlock()
	c.emit(st)
	return st
}

// Download saves the current artifact. Failures are reported through the
// returned error and State.DownloadMessage; the operation itself is left
// untouched.
func (c *Controller) Download(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state.Phase != Succeeded || c.state.Artifact == nil {
		c.mu.Unlock()
		return "", result.ErrNoArtifact
	}
	if c.saver == nil {
		c.mu.Unlock()
		return "", errors.New("no download destination configured")
	}
	id := c.state.ID
	artifact := *c.state.Artifact
	c.mu.Unlock()

	path, err := c.saver.Save(ctx, artifact)
	msg := "Saved to " + path
	if err != nil {
		msg = "Download failed: " + err.Error()
		c.logger.Warn("download failed", "operation", id, "error", err)
	}
	c.update(id, func(s *State) { s.DownloadMessage = msg })
	if err != nil {
		return "", fmt.Errorf("download %s: %w", artifact.Filename, err)
	}
	return path, nil
}

// Close stops the progress timer, if any. An outstanding request still
// resolves normally.
func (c *Controller) Close() {
	c.stopTicker()
}
