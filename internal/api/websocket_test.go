package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/forPelevin/adcut/internal/store"
)

func TestWSHubReplaysActiveJobs(t *testing.T) {
	hub := NewWSHub()

	hub.BroadcastJob(&store.Job{ID: "job-1", Status: store.JobStatusRunning, Progress: 0.3})

	client := &wsClient{send: make(chan []byte, 4)}
	hub.addClient(client)
	hub.sendActiveJobs(client)

	select {
	case raw := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Event != "job:update" {
			t.Errorf("event = %q, want job:update", msg.Event)
		}
	default:
		t.Fatal("no replayed message for running job")
	}

	// Terminal updates drop the job from the replay set.
	hub.BroadcastJob(&store.Job{ID: "job-1", Status: store.JobStatusSucceeded, Progress: 1})
	<-client.send // the live broadcast

	late := &wsClient{send: make(chan []byte, 4)}
	hub.addClient(late)
	hub.sendActiveJobs(late)
	select {
	case raw := <-late.send:
		t.Fatalf("finished job replayed to late client: %s", raw)
	default:
	}

	hub.removeClient(client)
	hub.removeClient(late)
	if n := hub.ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d, want 0", n)
	}
}

func TestWSHubDropsMessagesForSlowClients(t *testing.T) {
	hub := NewWSHub()
	client := &wsClient{send: make(chan []byte, 1)}
	hub.addClient(client)
	defer hub.removeClient(client)

	hub.BroadcastLog("job-1", "line 1")
	hub.BroadcastLog("job-1", "line 2") // dropped: buffer full

	if got := len(client.send); got != 1 {
		t.Fatalf("buffered messages = %d, want 1", got)
	}
}

func TestEventsEndpointStreamsJobEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(NewRouter(env.cfg))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("websocket.Dial() error = %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with hub")
		}
		time.Sleep(5 * time.Millisecond)
	}

	env.hub.BroadcastJob(&store.Job{ID: "job-9", Status: store.JobStatusRunning, Progress: 0.5})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Event != "job:update" {
		t.Errorf("event = %q, want job:update", msg.Event)
	}
	job, _ := msg.Data.(map[string]interface{})
	if job["id"] != "job-9" {
		t.Errorf("job id = %v, want job-9", job["id"])
	}

	env.hub.BroadcastLog("job-9", "frame=88 fps=30")

	_, data, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Event != "job:log" {
		t.Errorf("event = %q, want job:log", msg.Event)
	}
	payload, _ := msg.Data.(map[string]interface{})
	if payload["line"] != "frame=88 fps=30" {
		t.Errorf("line = %v, want frame=88 fps=30", payload["line"])
	}
}
