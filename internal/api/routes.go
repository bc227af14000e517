package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zanrcon-project/zanrcon/internal/events"
	"github.com/zanrcon-project/zanrcon/internal/rcon"
	"github.com/zanrcon-project/zanrcon/internal/util"
)

// handleStatus returns the session state, the remote server's advisory
// state, wire counters, and a host summary in one response.
func (s *Server) handleStatus(c *gin.Context) {
	state := s.session.ServerState()
	sysInfo := util.GetSystemInfo()

	host := gin.H{
		"hostname":        sysInfo.Hostname,
		"platform":        sysInfo.Platform,
		"cpu_model":       sysInfo.CPUModel,
		"cpu_cores":       sysInfo.CPUCores,
		"total_memory_mb": sysInfo.TotalMemory,
	}
	if mem, err := util.GetMemoryUsage(); err == nil {
		host["memory_used_percent"] = mem.UsedPercent
	}
	if cpuPct, err := util.GetCPUUsage(); err == nil {
		host["cpu_used_percent"] = cpuPct
	}

	c.JSON(http.StatusOK, gin.H{
		"session": gin.H{
			"state":  s.session.State().String(),
			"server": s.session.Remote(),
		},
		"server": state,
		"stats":  s.session.Stats(),
		"host":   host,
	})
}

type commandRequest struct {
	Command string `json:"command" binding:"required"`
}

// handleCommand forwards a console command to the game server.
func (s *Server) handleCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing command field"})
		return
	}

	command := strings.TrimSpace(req.Command)
	if command == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command is empty"})
		return
	}

	if err := s.session.SendCommand(command); err != nil {
		if errors.Is(err, rcon.ErrNotConnected) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	s.eventBus.Emit(c.Request.Context(), events.Event{
		Type:   events.EventCommandSent,
		Source: "bridge",
		Payload: events.CommandSentPayload{
			Server:  s.session.Remote(),
			Command: command,
			At:      time.Now(),
		},
	})

	c.JSON(http.StatusOK, gin.H{"sent": command})
}

// handleLines returns the most recent console lines from the ring.
func (s *Server) handleLines(c *gin.Context) {
	countStr := c.DefaultQuery("count", "100")
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 1 {
		count = 100
	}

	lines := s.lines.recent(count)
	c.JSON(http.StatusOK, gin.H{
		"lines": lines,
		"count": len(lines),
	})
}

// handleStream upgrades to a websocket that carries every console line
// and session state change as it happens.
func (s *Server) handleStream(c *gin.Context) {
	s.hub.handleConn(c.Writer, c.Request)
}
