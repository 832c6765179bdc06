package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"footfall/server/internal/sim"
	"footfall/server/internal/telemetry"
)

const busynessStep = 0.25

type viewer struct {
	addr      string
	screen    tcell.Screen
	client    *http.Client
	frame     telemetry.Frame
	connected bool
}

func main() {
	addr := flag.String("addr", "localhost:8080", "footfall server address")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(streamURL(*addr), nil)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatalf("failed to create screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatalf("failed to init screen: %v", err)
	}

	v := &viewer{
		addr:      *addr,
		screen:    screen,
		client:    &http.Client{Timeout: 2 * time.Second},
		connected: true,
	}
	err = v.run(conn)
	screen.Fini()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func streamURL(addr string) string {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws", RawQuery: "format=msgpack"}
	return u.String()
}

// readFrames forwards decoded frames until the connection fails.
func readFrames(conn *websocket.Conn, frames chan telemetry.Frame, done chan<- error) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			done <- err
			return
		}
		var frame telemetry.Frame
		if err := msgpack.Unmarshal(payload, &frame); err != nil {
			done <- fmt.Errorf("decode frame: %w", err)
			return
		}
		offerFrame(frames, frame)
	}
}

// offerFrame queues frame, replacing the pending one when the renderer has
// fallen behind. It must have a single sender.
func offerFrame(frames chan telemetry.Frame, frame telemetry.Frame) {
	select {
	case frames <- frame:
	default:
		select {
		case <-frames:
		default:
		}
		frames <- frame
	}
}

func (v *viewer) run(conn *websocket.Conn) error {
	frames := make(chan telemetry.Frame, 1)
	done := make(chan error, 1)
	go readFrames(conn, frames, done)

	events := make(chan tcell.Event, 8)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	for {
		select {
		case frame := <-frames:
			v.frame = frame
			draw(v.screen, v.frame, v.connected)
		case err := <-done:
			v.connected = false
			draw(v.screen, v.frame, v.connected)
			log.Printf("stream closed: %v", err)
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if quit := v.handleKey(ev); quit {
					return nil
				}
			case *tcell.EventResize:
				v.screen.Sync()
				draw(v.screen, v.frame, v.connected)
			}
		}
	}
}

func (v *viewer) handleKey(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
		return true
	}
	if ev.Key() != tcell.KeyRune {
		return false
	}
	switch ev.Rune() {
	case 'q':
		return true
	case 'p':
		if v.frame.Paused {
			v.post("/resume", nil)
		} else {
			v.post("/pause", nil)
		}
	case '+':
		v.post("/busyness", sim.BusynessCommand{Value: v.frame.Busyness + busynessStep})
	case '-':
		v.post("/busyness", sim.BusynessCommand{Value: max(v.frame.Busyness-busynessStep, 0)})
	case 'w':
		v.post("/wave", sim.WaveCommand{Count: 20, Seconds: 10})
	case 'r':
		v.post("/recalculate", nil)
	}
	return false
}

func (v *viewer) post(path string, payload any) {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			log.Printf("encode %s: %v", path, err)
			return
		}
	}
	resp, err := v.client.Post("http://"+v.addr+path, "application/json", &body)
	if err != nil {
		log.Printf("post %s: %v", path, err)
		return
	}
	resp.Body.Close()
}
