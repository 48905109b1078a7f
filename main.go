package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"

	iface "SeatEventServer/interface"
	"SeatEventServer/logger"
	"SeatEventServer/monitor"
	"SeatEventServer/pipeline"
	"SeatEventServer/render"
	"SeatEventServer/sink"
)

type configStruct struct {
	HTTPPort      int    `yaml:"HTTPPort"`
	MetricsPort   int    `yaml:"MetricsPort"`
	SinkURL       string `yaml:"SinkURL"`
	UseRegServer  bool   `yaml:"UseRegServer"`
	RegServerPort int    `yaml:"RegServerPort"`
	RegServerHost string `yaml:"RegServerHost"`
	IdleTimeoutMs int    `yaml:"IdleTimeoutMs"`
	DebugDir      string `yaml:"DebugDir"`
}

// session binds one websocket client to one pipeline instance. The tracker
// inside is mutated in place per frame, so all frames for a stream must go
// through this one session; the read loop below is the only writer.
type session struct {
	id          string
	pl          *pipeline.Pipeline
	description string
	debug       bool
	lastActive  time.Time
	conn        *websocket.Conn
	closeOnce   sync.Once
	cancelTimer chan struct{}
	cancelOnce  sync.Once
}

var (
	sessionMu sync.RWMutex
	sessions  = map[string]*session{}
	upgrader  = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	idleTimeout = 60 * time.Second
	eventSink   *sink.EventSink
	debugDir    = "."
)

type createRequest struct {
	pipeline.Config
	Description string `json:"description"`
	Debug       bool   `json:"debug"`
}

type wsReply struct {
	Events []iface.EventSignal `json:"events"`
}

func createSession(req createRequest) (*session, error) {
	pl, err := pipeline.FromConfig(req.Config)
	if err != nil {
		return nil, err
	}
	s := &session{
		id:          uuid.New().String(),
		pl:          pl,
		description: req.Description,
		debug:       req.Debug,
		lastActive:  time.Now(),
		cancelTimer: make(chan struct{}),
	}
	sessionMu.Lock()
	sessions[s.id] = s
	sessionMu.Unlock()
	monitor.Sessions.Inc()
	return s, nil
}

func releaseSession(sessionID string) bool {
	sessionMu.Lock()
	s, ok := sessions[sessionID]
	if ok {
		delete(sessions, sessionID)
	}
	sessionMu.Unlock()
	if !ok {
		return false
	}

	s.closeOnce.Do(func() {
		if s.conn != nil {
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session idle, released"))
			_ = s.conn.Close()
		}
	})
	s.cancelOnce.Do(func() {
		close(s.cancelTimer)
	})
	monitor.Sessions.Dec()
	return true
}

func startIdleMonitor(s *session) {
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.cancelTimer:
				return
			case <-ticker.C:
				if time.Since(s.lastActive) > idleTimeout {
					_ = releaseSession(s.id)
					logger.S().Infow("session idle timeout", "sessionID", s.id)
					return
				}
			}
		}
	}()
}

// handleDetection runs one frame through the session's pipeline and reports
// the result to the websocket client, the metrics and the event sink.
func handleDetection(s *session, msg []byte) {
	det := iface.Detection{}
	if err := json.Unmarshal(msg, &det); err != nil {
		_ = s.conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("invalid detection: %v", err)))
		return
	}
	monitor.FramesTotal.Inc()
	events, err := s.pl.ProcessDetection(&det)
	if err != nil {
		_ = s.conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("processing error: %v", err)))
		return
	}
	if events == nil {
		events = []iface.EventSignal{}
	} else {
		monitor.EventsTotal.Inc()
		if eventSink != nil {
			if err := eventSink.Deliver(context.Background(), s.id, events); err != nil {
				logger.S().Errorw("event sink delivery failed", "sessionID", s.id, "error", err)
			}
		}
		if s.debug {
			if frame, ok := det.FrameData["frame"].(string); ok {
				if err := render.WriteDebugFrame(debugDir, s.id, frame, &det); err != nil {
					logger.S().Warnw("debug frame write failed", "sessionID", s.id, "error", err)
				}
			}
		}
	}
	reply, err := json.Marshal(wsReply{Events: events})
	if err != nil {
		_ = s.conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("encoding error: %v", err)))
		return
	}
	_ = s.conn.WriteMessage(websocket.TextMessage, reply)
}

func GetOutboundIP() (string, error) {
	// dialing UDP only builds a route, no packet leaves, so this works
	// without connectivity as long as a route table exists
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP.String(), nil
}

func main() {
	if err := logger.InitProduction(); err != nil {
		fmt.Println("Failed to init logger:", err)
		return
	}
	defer logger.Sync()

	configData, err := os.ReadFile("config.yaml")
	if err != nil {
		fmt.Println("Failed to read config file:", err)
		return
	}
	config := configStruct{}
	if err := yaml.Unmarshal(configData, &config); err != nil {
		fmt.Println("Failed to parse config file:", err)
		return
	}
	if config.HTTPPort <= 0 {
		config.HTTPPort = 8080
	}
	if config.MetricsPort <= 0 {
		config.MetricsPort = 50053
	}
	if config.IdleTimeoutMs > 0 {
		idleTimeout = time.Duration(config.IdleTimeoutMs) * time.Millisecond
	}
	if config.DebugDir != "" {
		debugDir = config.DebugDir
	}
	if config.SinkURL != "" {
		eventSink = sink.New(config.SinkURL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.StartMon(config.MetricsPort, ctx)

	var wg sync.WaitGroup
	if config.UseRegServer {
		ip, err := GetOutboundIP()
		if err != nil {
			fmt.Println("Failed to get outbound IP:", err)
			return
		}
		sink.RegServerCfg = sink.RegServerConfig{}
		sink.RegServerCfg.SetAddress(config.RegServerHost, config.RegServerPort)
		wg.Add(1)
		go sink.SendAliveMessage(ip, config.HTTPPort, ctx, &wg)
	}

	r := gin.Default()
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.POST("/api/pipelines", func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s, err := createSession(req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		startIdleMonitor(s)
		c.JSON(http.StatusOK, gin.H{
			"sessionID": s.id,
			"wsURL":     fmt.Sprintf("ws://%s/ws/%s", c.Request.Host, s.id),
			"timeoutMs": idleTimeout.Milliseconds(),
		})
	})
	r.GET("/api/pipelines/check/:id", func(c *gin.Context) {
		id := c.Param("id")
		sessionMu.RLock()
		s, exists := sessions[id]
		sessionMu.RUnlock()
		if !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		tracker := s.pl.Tracker()
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"description": s.description,
			"debug":       s.debug,
			"calibrated":  tracker.Calibrated(),
			"seatCount":   tracker.SeatCount(),
		}})
	})
	r.POST("/api/pipelines/:id/release", func(c *gin.Context) {
		id := c.Param("id")
		if !releaseSession(id) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": "Session released"})
	})
	r.GET("/ws/:sessionID", func(c *gin.Context) {
		sessionID := c.Param("sessionID")
		sessionMu.RLock()
		s, exists := sessions[sessionID]
		sessionMu.RUnlock()
		if !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// upgrade failed, the response is already committed
			return
		}
		s.conn = conn
		conn.SetReadLimit(20 * 1024 * 1024)

		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				releaseSession(sessionID)
				logger.S().Infow("connection closed", "sessionID", sessionID, "error", err)
				return
			}
			s.lastActive = time.Now()
			switch mt {
			case websocket.TextMessage:
				handleDetection(s, msg)
			default:
				_ = conn.WriteMessage(websocket.TextMessage, []byte("unsupported message type"))
			}
		}
	})

	logger.S().Infow("starting server", "port", config.HTTPPort, "metricsPort", config.MetricsPort)
	if err := r.Run(fmt.Sprintf(":%d", config.HTTPPort)); err != nil {
		logger.S().Errorw("server exited", "error", err)
	}
}
