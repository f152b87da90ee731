// Package httpapi is the daemon's optional HTTP/WebSocket façade: a
// gin REST projection of internal/registry plus a gorilla websocket
// handler for live output streaming. It is a consumer of
// internal/registry and internal/output only — it never imports
// internal/rpc and never holds the registry's lock across a network
// write.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loykin/overseerd/internal/output"
	"github.com/loykin/overseerd/internal/projects"
	"github.com/loykin/overseerd/internal/registry"
)

// Router builds the gin handler mounting every route this façade
// offers.
type Router struct {
	reg       *registry.Registry
	configDir string
	defaults  projects.ProcessDefaults
	upgrader  websocket.Upgrader
}

// NewRouter builds a Router over reg, resolving start/reload targets
// against projects registered under configDir.
func NewRouter(reg *registry.Registry, configDir string, defaults projects.ProcessDefaults) *Router {
	return &Router{
		reg:       reg,
		configDir: configDir,
		defaults:  defaults,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the complete http.Handler for this façade.
func (rt *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())

	g.GET("/api/services", rt.listServices)
	g.GET("/api/services/:name", rt.serviceDetail)
	g.POST("/api/services/:name/start", rt.startService)
	g.POST("/api/services/:name/stop", rt.stopService)
	g.POST("/api/services/:name/reload", rt.reloadService)
	g.POST("/api/services/:name/processes/:proc/restart", rt.restartProcess)
	g.POST("/api/services/:name/processes/:proc/kill", rt.killProcess)
	g.GET("/metrics", gin.WrapH(promhttp.Handler()))
	g.GET("/ws/:name", rt.streamOutput)

	return g
}

type errorBody struct {
	Error string `json:"error"`
}

func (rt *Router) listServices(c *gin.Context) {
	c.JSON(http.StatusOK, rt.reg.Status())
}

func (rt *Router) serviceDetail(c *gin.Context) {
	name := c.Param("name")
	for _, svc := range rt.reg.Status() {
		if svc.Name == name {
			c.JSON(http.StatusOK, svc)
			return
		}
	}
	c.JSON(http.StatusNotFound, errorBody{Error: registry.ErrUnknownService.Error()})
}

func (rt *Router) startService(c *gin.Context) {
	name := c.Param("name")
	entries, _ := projects.LoadServiceEntries(rt.configDir)
	entry, ok := entries[name]
	if !ok {
		c.JSON(http.StatusNotFound, errorBody{Error: registry.ErrUnknownService.Error()})
		return
	}
	dir, defs, err := projects.LoadService(entry, rt.defaults)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	msg, err := rt.reg.StartService(name, dir, defs, true, nil)
	respondResult(c, msg, err)
}

func (rt *Router) stopService(c *gin.Context) {
	msg, err := rt.reg.StopService(c.Param("name"))
	respondResult(c, msg, err)
}

func (rt *Router) reloadService(c *gin.Context) {
	name := c.Param("name")
	entries, _ := projects.LoadServiceEntries(rt.configDir)
	entry, ok := entries[name]
	if !ok {
		c.JSON(http.StatusNotFound, errorBody{Error: registry.ErrUnknownService.Error()})
		return
	}
	dir, defs, err := projects.LoadService(entry, rt.defaults)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	msg, err := rt.reg.ReloadService(name, dir, defs, true, nil)
	respondResult(c, msg, err)
}

func (rt *Router) restartProcess(c *gin.Context) {
	msg, err := rt.reg.RestartProcess(c.Param("name"), c.Param("proc"))
	respondResult(c, msg, err)
}

func (rt *Router) killProcess(c *gin.Context) {
	msg, err := rt.reg.KillProcess(c.Param("name"), c.Param("proc"))
	respondResult(c, msg, err)
}

func respondResult(c *gin.Context, msg string, err error) {
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// streamOutput upgrades to a websocket and streams one process's
// output: the current snapshot first, then live writes. Subscribing
// only after emitting the snapshot avoids missing or duplicating bytes
// written in between.
func (rt *Router) streamOutput(c *gin.Context) {
	service := c.Param("name")
	process := c.Query("process")

	cap, err := rt.selectCapture(service, process)
	if err != nil {
		c.JSON(http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}

	conn, err := rt.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.BinaryMessage, cap.Snapshot()); err != nil {
		return
	}

	sub := cap.Subscribe()
	defer cap.Unsubscribe(sub)

	for data := range sub {
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return
		}
	}
}

func (rt *Router) selectCapture(service, process string) (*output.Capture, error) {
	if process != "" {
		return rt.reg.GetOutput(service, process)
	}
	outputs, err := rt.reg.GetAllOutputs(service)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, registry.ErrProcessNotFound
	}
	return outputs[0].Capture, nil
}
