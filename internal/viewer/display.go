package viewer

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"faceann/internal/logger"
	"faceann/internal/viewer/hub"

	"gocv.io/x/gocv"
)

// WaitKey results that mean "no key pressed".
const (
	noKey     = -1
	noKeyHigh = 255
)

const keyEscape = 27

// WindowDisplay shows images in a native OpenCV window.
type WindowDisplay struct {
	window *gocv.Window
	pollMS int
}

// NewWindowDisplay opens a window named title. pollMS is the key polling
// interval in milliseconds.
func NewWindowDisplay(title string, pollMS int) *WindowDisplay {
	if pollMS <= 0 {
		pollMS = 100
	}
	return &WindowDisplay{window: gocv.NewWindow(title), pollMS: pollMS}
}

// Show blocks until a key is pressed or the window is closed. q and Esc
// return ErrQuit.
func (d *WindowDisplay) Show(title string, img gocv.Mat, index, total int) error {
	d.window.SetWindowTitle(fmt.Sprintf("%s (%d/%d)", title, index+1, total))
	d.window.IMShow(img)

	for d.window.GetWindowProperty(gocv.WindowPropertyFullscreen) >= 0 {
		key := d.window.WaitKey(d.pollMS)
		switch key {
		case noKey, noKeyHigh:
			continue
		case keyEscape, 'q', 'Q':
			return ErrQuit
		}
		return nil
	}
	return ErrQuit
}

func (d *WindowDisplay) Close() error {
	return d.window.Close()
}

// WebDisplay serves the images to browsers over a websocket.
type WebDisplay struct {
	hub      *hub.HubService
	server   *http.Server
	listener net.Listener
	pollMS   int
	logger   *logger.Logger
}

// NewWebDisplay starts serving on addr (":8090", "127.0.0.1:0").
func NewWebDisplay(addr string, pollMS int, logger *logger.Logger) (*WebDisplay, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if pollMS <= 0 {
		pollMS = 100
	}

	h := hub.NewHubService(logger)
	d := &WebDisplay{
		hub:      h,
		server:   &http.Server{Handler: hub.SetupRoutes(h)},
		listener: listener,
		pollMS:   pollMS,
		logger:   logger,
	}

	go h.Run()
	go func() {
		if err := d.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Viewer server stopped: %v", err)
		}
	}()

	logger.Info("Viewer listening on http://%s", listener.Addr())
	return d, nil
}

// Addr is the address the display listens on.
func (d *WebDisplay) Addr() string {
	return d.listener.Addr().String()
}

// Show pushes the image to every browser and blocks for a key press. q and
// Escape return ErrQuit.
func (d *WebDisplay) Show(title string, img gocv.Mat, index, total int) error {
	buf, err := gocv.IMEncode(".jpg", img)
	if err != nil {
		return fmt.Errorf("failed to encode image: %v", err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf.GetBytes())
	buf.Close()

	frame := hub.Frame{Title: title, Image: encoded, Index: index, Total: total}
	if err := d.hub.Publish(frame); err != nil {
		return err
	}

	for {
		key, ok := d.hub.WaitKey(time.Duration(d.pollMS) * time.Millisecond)
		if ok {
			return webKey(key)
		}
		select {
		case <-d.hub.Done():
			return ErrQuit
		default:
		}
	}
}

func webKey(key string) error {
	switch strings.ToLower(key) {
	case "q", "escape", "esc":
		return ErrQuit
	}
	return nil
}

func (d *WebDisplay) Close() error {
	d.hub.Stop()
	return d.server.Close()
}
