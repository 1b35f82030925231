// Package api exposes the player over a small HTTP control surface.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dancret/groovebox/internal/player"
	"github.com/dancret/groovebox/internal/resolver"
	"github.com/dancret/groovebox/internal/track"
)

var serverStartTime = time.Now()

// API handles HTTP control endpoints.
type API struct {
	player   *player.Player
	resolver resolver.Resolver
	log      *zap.SugaredLogger
}

// NewAPI creates a new API handler.
func NewAPI(p *player.Player, r resolver.Resolver, log *zap.SugaredLogger) *API {
	return &API{player: p, resolver: r, log: log}
}

// PlayRequest is the request body for play and enqueue endpoints.
type PlayRequest struct {
	Input string `json:"input" binding:"required"`
}

// ActionResponse is the generic response for transport endpoints.
type ActionResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Tracks  int    `json:"tracks,omitempty"`
}

// TrackPayload describes a track in API responses.
type TrackPayload struct {
	URI      string `json:"uri"`
	Title    string `json:"title"`
	Kind     string `json:"kind"`
	Duration int    `json:"duration,omitempty"` // seconds, 0 if unknown
}

// StatusResponse is the response for the status endpoint.
type StatusResponse struct {
	State     string        `json:"state"`
	Repeat    string        `json:"repeat"`
	Shuffle   bool          `json:"shuffle"`
	Queued    int           `json:"queued"`
	Track     *TrackPayload `json:"track,omitempty"`
	StartedAt string        `json:"started_at,omitempty"`
	Elapsed   string        `json:"elapsed,omitempty"`
}

func trackPayload(t track.Track) TrackPayload {
	return TrackPayload{
		URI:      t.URI,
		Title:    t.Title,
		Kind:     t.Kind.String(),
		Duration: int(t.DurationHint.Seconds()),
	}
}

// resolveBody resolves the request body's input into tracks.
func (a *API) resolveBody(c *gin.Context) ([]track.Track, bool) {
	var req PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ActionResponse{
			Status:  "error",
			Message: fmt.Sprintf("invalid request: %v", err),
		})
		return nil, false
	}

	tracks, err := a.resolver.Resolve(c.Request.Context(), track.Request{Raw: req.Input})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ActionResponse{
			Status:  "error",
			Message: err.Error(),
		})
		return nil, false
	}
	if len(tracks) == 0 {
		c.JSON(http.StatusNotFound, ActionResponse{
			Status:  "error",
			Message: "input resolved to no tracks",
		})
		return nil, false
	}
	return tracks, true
}

// Play resolves the input and plays it immediately.
func (a *API) Play(c *gin.Context) {
	tracks, ok := a.resolveBody(c)
	if !ok {
		return
	}

	a.log.Infof("play request: %s", tracks[0].URI)
	a.player.PlayNow(tracks[0])
	if len(tracks) > 1 {
		a.player.Enqueue(tracks[1:]...)
	}
	c.JSON(http.StatusOK, ActionResponse{Status: "playing", Tracks: len(tracks)})
}

// Enqueue resolves the input and appends it to the queue.
func (a *API) Enqueue(c *gin.Context) {
	tracks, ok := a.resolveBody(c)
	if !ok {
		return
	}

	a.player.Enqueue(tracks...)
	c.JSON(http.StatusOK, ActionResponse{Status: "queued", Tracks: len(tracks)})
}

// Pause pauses playback.
func (a *API) Pause(c *gin.Context) {
	a.player.Pause()
	c.JSON(http.StatusOK, ActionResponse{Status: "paused"})
}

// Resume resumes paused playback.
func (a *API) Resume(c *gin.Context) {
	a.player.Resume()
	c.JSON(http.StatusOK, ActionResponse{Status: "playing"})
}

// Skip cancels the current track.
func (a *API) Skip(c *gin.Context) {
	a.player.Skip()
	c.JSON(http.StatusOK, ActionResponse{Status: "skipped"})
}

// Stop cancels the current track and clears the queue.
func (a *API) Stop(c *gin.Context) {
	a.player.Stop()
	c.JSON(http.StatusOK, ActionResponse{Status: "stopped"})
}

// Clear empties the pending queue.
func (a *API) Clear(c *gin.Context) {
	a.player.Clear()
	c.JSON(http.StatusOK, ActionResponse{Status: "cleared"})
}

// Status reports player state and the live session, if any.
func (a *API) Status(c *gin.Context) {
	resp := StatusResponse{
		State:   a.player.State().String(),
		Repeat:  a.player.RepeatMode().String(),
		Shuffle: a.player.Shuffle(),
		Queued:  len(a.player.QueueSnapshot()),
	}

	if info, elapsed := a.player.CurrentSession(); info != nil {
		payload := trackPayload(info.Track)
		resp.Track = &payload
		resp.StartedAt = info.StartedAt.Format(time.RFC3339)
		total := int(elapsed.Seconds())
		resp.Elapsed = fmt.Sprintf("%02d:%02d", total/60, total%60)
	}

	c.JSON(http.StatusOK, resp)
}

// Queue lists the pending tracks.
func (a *API) Queue(c *gin.Context) {
	snap := a.player.QueueSnapshot()
	payload := make([]TrackPayload, len(snap))
	for i, t := range snap {
		payload[i] = trackPayload(t)
	}
	c.JSON(http.StatusOK, gin.H{"count": len(payload), "tracks": payload})
}

// SetupRouter creates and configures the Gin router.
func SetupRouter(api *API) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	ctrl := r.Group("/player")
	{
		ctrl.POST("/play", api.Play)
		ctrl.POST("/enqueue", api.Enqueue)
		ctrl.POST("/pause", api.Pause)
		ctrl.POST("/resume", api.Resume)
		ctrl.POST("/skip", api.Skip)
		ctrl.POST("/stop", api.Stop)
		ctrl.POST("/clear", api.Clear)
		ctrl.GET("/status", api.Status)
		ctrl.GET("/queue", api.Queue)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"uptime_seconds": int64(time.Since(serverStartTime).Seconds()),
			"state":          api.player.State().String(),
		})
	})

	return r
}
