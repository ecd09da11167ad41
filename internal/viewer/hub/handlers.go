package hub

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler registers the connection as a viewer and forwards
// its key presses to the hub.
func ViewWebsocketHandler(h *HubService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(10 * time.Minute))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(10 * time.Minute))
			return nil
		})

		h.Register(connection)
		defer h.Unregister(connection)

		for {
			_, msg, err := connection.ReadMessage()
			if err != nil {
				break
			}
			connection.SetReadDeadline(time.Now().Add(10 * time.Minute))

			var key KeyMessage
			if err := json.Unmarshal(msg, &key); err != nil || key.Key == "" {
				h.logger.Warning("Ignoring viewer message %q", msg)
				continue
			}
			h.PressKey(key.Key)
		}
	}
}

// SetupRoutes serves the viewer page at / and the websocket at /api/view.
func SetupRoutes(h *HubService) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/view", ViewWebsocketHandler(h))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	})
	return mux
}

const page = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Annotation viewer</title>
<style>
body { background: #222; color: #ddd; font-family: sans-serif; text-align: center; }
img { max-width: 100%; }
</style>
</head>
<body>
<h3 id="title">Waiting for image...</h3>
<img id="frame" alt="">
<p>Press any key for the next image, q or Esc to quit.</p>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/api/view");
ws.onmessage = (event) => {
  const frame = JSON.parse(event.data);
  document.getElementById("title").textContent = frame.title + " (" + (frame.index + 1) + "/" + frame.total + ")";
  document.getElementById("frame").src = "data:image/jpeg;base64," + frame.image;
};
ws.onclose = () => { document.getElementById("title").textContent = "Viewer closed"; };
document.addEventListener("keydown", (event) => {
  if (ws.readyState === WebSocket.OPEN) {
    ws.send(JSON.stringify({key: event.key}));
  }
});
</script>
</body>
</html>
`
