// Package hub pushes rendered frames to browser viewers over websockets and
// collects their key presses.
package hub

import (
	"encoding/json"
	"sync"
	"time"

	"faceann/internal/logger"

	"github.com/gorilla/websocket"
)

// Frame is the message sent to every viewer. Image is a base64 JPEG.
type Frame struct {
	Title string `json:"title"`
	Image string `json:"image"`
	Index int    `json:"index"`
	Total int    `json:"total"`
}

// KeyMessage is what a viewer sends when a key is pressed.
type KeyMessage struct {
	Key string `json:"key"`
}

type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	keys       chan string
	done       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	last       []byte
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		keys:       make(chan string, 16),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns every write to the connections. It returns after Stop.
func (h *HubService) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			if h.last != nil {
				h.send(client, h.last)
			}
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", h.GetClientCount())

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", h.GetClientCount())

		case message := <-h.broadcast:
			h.mutex.Lock()
			h.last = message
			for client := range h.clients {
				h.send(client, message)
			}
			h.mutex.Unlock()

		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				client.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// send must be called with the mutex held.
func (h *HubService) send(client *websocket.Conn, message []byte) {
	client.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
		h.logger.Error("Error sending frame: %v", err)
		delete(h.clients, client)
		client.Close()
	}
}

func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish sends frame to every connected viewer and keeps it for viewers
// that connect later.
func (h *HubService) Publish(frame Frame) error {
	message, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
	return nil
}

// PressKey queues a key press; it is dropped when nobody is waiting and the
// queue is full.
func (h *HubService) PressKey(key string) {
	select {
	case h.keys <- key:
	default:
	}
}

// WaitKey blocks for up to timeout for a key press. ok is false on timeout
// or after Stop.
func (h *HubService) WaitKey(timeout time.Duration) (key string, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case key := <-h.keys:
		return key, true
	case <-timer.C:
		return "", false
	case <-h.done:
		return "", false
	}
}

// Done is closed by Stop.
func (h *HubService) Done() <-chan struct{} {
	return h.done
}

// Stop closes every connection and ends Run.
func (h *HubService) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
