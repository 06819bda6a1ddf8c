package ws

import (
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/jobs"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/monitoring"
)

// JobStarter launches background jobs on behalf of a client. The runner
// satisfies it.
type JobStarter interface {
	StartResearch(clientID, prompt, outputFile string) string
	StartAnalysis(clientID, fileID, filePath, analysisType string, options map[string]interface{}) string
}

// Handler upgrades HTTP requests to WebSocket connections and speaks the
// client protocol over them.
type Handler struct {
	hub      *Hub
	registry *jobs.Registry
	research *jobs.Results
	tasks    *jobs.TaskSet
	starter  JobStarter
	dataDir  string
	servers  []string
	metrics  *monitoring.Collector
	upgrader websocket.Upgrader
}

// NewHandler creates the WebSocket handler. dataDir is where uploaded
// analysis files live.
func NewHandler(hub *Hub, registry *jobs.Registry, research *jobs.Results, tasks *jobs.TaskSet, starter JobStarter, dataDir string) *Handler {
	return &Handler{
		hub:      hub,
		registry: registry,
		research: research,
		tasks:    tasks,
		starter:  starter,
		dataDir:  dataDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The reverse proxy in front of this service enforces origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetAvailableServers records the agent names advertised on connect.
func (h *Handler) SetAvailableServers(servers []string) {
	h.servers = servers
}

// SetMetrics attaches the metrics collector.
func (h *Handler) SetMetrics(m *monitoring.Collector) {
	h.metrics = m
}

// Serve handles one WebSocket session from upgrade to teardown.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	reconnect := clientID != ""
	if clientID == "" {
		clientID = uuid.New().String()
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed for client %s: %v", clientID, err)
		return
	}

	conn := newConn(clientID, wsConn, h.metrics)
	if prev := h.hub.register(clientID, conn); prev != nil {
		log.Printf("Client %s reconnected, replacing previous connection", clientID)
		prev.close()
	} else if reconnect {
		log.Printf("Client %s connected with prior id", clientID)
	} else {
		log.Printf("WebSocket connection accepted for client %s", clientID)
	}

	go conn.writePump()

	conn.Send(map[string]interface{}{
		"type":                "connection_ready",
		"message":             "WebSocket connection established",
		"client_id":           clientID,
		"available_servers":   h.availableServers(),
		"streaming_supported": true,
	})

	if completed := h.completedJobsFor(clientID); len(completed) > 0 {
		conn.Send(map[string]interface{}{
			"type":    "completed_jobs",
			"message": "You have completed research jobs",
			"jobs":    completed,
		})
	}

	h.readLoop(conn)

	h.hub.unregister(clientID, conn)
	conn.close()
	h.tasks.CancelAll(clientID)
	log.Printf("WebSocket disconnected for client %s", clientID)
}

func (h *Handler) availableServers() []string {
	if h.servers == nil {
		return []string{}
	}
	return h.servers
}

// completedJobsFor lists the client's finished research jobs, oldest
// first, for replay on connect.
func (h *Handler) completedJobsFor(clientID string) []map[string]interface{} {
	records := h.research.ForClient(clientID)
	sort.Slice(records, func(i, j int) bool {
		return records[i].CompletionTime.Before(records[j].CompletionTime)
	})
	out := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		out = append(out, map[string]interface{}{
			"job_id":       rec.JobID,
			"output_file":  rec.OutputFile,
			"completed_at": unixSeconds(rec.CompletionTime),
		})
	}
	return out
}

// readLoop consumes client messages. A quiet interval is probed rather
// than treated as death; only a transport error or two consecutive failed
// probes tears the session down.
func (h *Handler) readLoop(conn *Conn) {
	type inbound struct {
		data []byte
		err  error
	}
	msgs := make(chan inbound)
	go func() {
		for {
			_, data, err := conn.ws.ReadMessage()
			select {
			case msgs <- inbound{data: data, err: err}:
			case <-conn.done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	probeMisses := 0
	for {
		select {
		case in := <-msgs:
			if in.err != nil {
				if websocket.IsUnexpectedCloseError(in.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("Read error for client %s: %v", conn.clientID, in.err)
				}
				return
			}
			probeMisses = 0
			h.dispatch(conn, in.data)
		case <-time.After(receiveTimeout):
			if conn.Send(map[string]interface{}{
				"type":      "ping",
				"timestamp": unixSeconds(time.Now()),
			}) {
				probeMisses = 0
			} else {
				probeMisses++
				if probeMisses >= 2 {
					log.Printf("Connection seems lost for client %s", conn.clientID)
					return
				}
			}
		case <-conn.done:
			return
		}
	}
}
