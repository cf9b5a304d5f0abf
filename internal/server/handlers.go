package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/krishid/pkg/client"
)

const serviceName = "KrishiVaani Service Manager"

func (r *Router) serviceURL() string {
	if u := r.opts.Service.Status().URL; u != "" {
		return u
	}
	if r.opts.Monitor != nil {
		return r.opts.Monitor.Endpoint()
	}
	return ""
}

func (r *Router) start(c *gin.Context) client.ActionResponse {
	already, err := r.opts.Service.Launch(c.Request.Context())
	if err != nil {
		r.logger.Warn("start failed", "error", err)
		return client.ActionResponse{Success: false, Message: "Failed to start service", Error: err.Error()}
	}
	msg := "Service started successfully"
	if already {
		msg = "Service already running"
	}
	r.logger.Info("service start requested", "already_running", already)
	return client.ActionResponse{Success: true, Message: msg, URL: r.serviceURL()}
}

func (r *Router) stop(wait time.Duration) client.ActionResponse {
	if err := r.opts.Service.Stop(wait); err != nil {
		r.logger.Warn("stop failed", "error", err)
		return client.ActionResponse{Success: false, Message: "Failed to stop service", Error: err.Error()}
	}
	return client.ActionResponse{Success: true, Message: "Service stopped"}
}

func (r *Router) handleStart(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.start(c))
}

func (r *Router) handleStop(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.stop(waitParam(c, r.opts.StopWait)))
}

func (r *Router) handleStatus(c *gin.Context) {
	resp := client.StatusResponse{
		Service:   r.opts.Service.Status(),
		Timestamp: unixSeconds(time.Now()),
	}
	if r.opts.Monitor != nil {
		snap := r.opts.Monitor.Snapshot()
		resp.Monitor = &snap
	}
	writeJSON(c, http.StatusOK, resp)
}

func (r *Router) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, client.HealthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Timestamp: unixSeconds(time.Now()),
	})
}

func (r *Router) handleService(c *gin.Context) {
	var req client.ServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, client.ErrorResponse{Error: "invalid JSON: " + err.Error()})
		return
	}
	switch req.Action {
	case "start":
		writeJSON(c, http.StatusOK, r.start(c))
	case "stop":
		writeJSON(c, http.StatusOK, r.stop(r.opts.StopWait))
	case "restart":
		if err := r.opts.Service.Restart(c.Request.Context(), r.opts.StopWait); err != nil {
			writeJSON(c, http.StatusOK, client.ActionResponse{Success: false, Message: "Failed to restart service", Error: err.Error()})
			return
		}
		writeJSON(c, http.StatusOK, client.ActionResponse{Success: true, Message: "Service restarted", URL: r.serviceURL()})
	case "status":
		writeJSON(c, http.StatusOK, r.opts.Service.Status())
	default:
		writeJSON(c, http.StatusBadRequest, client.ErrorResponse{Error: "invalid action " + req.Action})
	}
}
