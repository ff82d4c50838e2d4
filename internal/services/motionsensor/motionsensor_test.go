package motionsensor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nvr-worker-go/internal/config"
)

func TestParseMotionPayload(t *testing.T) {
	tests := []struct {
		payload string
		want    bool
		wantErr bool
	}{
		{"ON", true, false},
		{"off", false, false},
		{" 1 ", true, false},
		{"0", false, false},
		{`{"motion": true}`, true, false},
		{`{"motion": false}`, false, false},
		{`{"state": "ON"}`, true, false},
		{`{"eventType": "VMD", "eventState": "inactive"}`, false, false},
		{"maybe", false, true},
		{`{"foo": 1}`, false, true},
	}

	for _, tt := range tests {
		got, err := ParseMotionPayload([]byte(tt.payload))
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseMotionPayload(%q) err = %v, wantErr %v", tt.payload, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ParseMotionPayload(%q) = %v, want %v", tt.payload, got, tt.want)
		}
	}
}

func TestAlwaysReportsMotion(t *testing.T) {
	var got []bool
	if err := (Always{}).Start(context.Background(), func(m bool) { got = append(got, m) }); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !got[0] {
		t.Fatalf("callbacks = %v", got)
	}
}

type recorder struct {
	mu     sync.Mutex
	states []bool
}

func (r *recorder) cb(m bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, m)
}

func (r *recorder) last() (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return false, 0
	}
	return r.states[len(r.states)-1], len(r.states)
}

func newTestHikvision(url string) *Hikvision {
	cfg := &config.Config{HikvisionEventTimeout: 5 * time.Second, ReconnectInterval: 50 * time.Millisecond}
	h := NewHikvision(cfg, "front", config.MotionConfig{Host: "127.0.0.1", Port: 80})
	if url != "" {
		h.url = url
	}
	return h
}

func TestHikvisionEventStateTracking(t *testing.T) {
	h := newTestHikvision("")
	rec := &recorder{}
	h.cb = rec.cb

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	// not a motion event
	h.handleAlert(eventNotificationAlert{EventType: "videoloss", EventState: "active", ChannelID: 1})
	if _, n := rec.last(); n != 0 {
		t.Fatal("video loss should not count as motion")
	}

	h.handleAlert(eventNotificationAlert{EventType: "VMD", EventState: "active", ChannelID: 1})
	h.handleAlert(eventNotificationAlert{EventType: "linedetection", EventState: "active", ChannelID: 1})
	if m, n := rec.last(); !m || n != 1 {
		t.Fatalf("state = %v after %d callbacks, want one activation", m, n)
	}

	h.handleAlert(eventNotificationAlert{EventType: "VMD", EventState: "inactive", ChannelID: 1})
	if m, _ := rec.last(); !m {
		t.Fatal("line crossing still active, motion should remain")
	}

	now = now.Add(6 * time.Second)
	h.expire()
	if m, n := rec.last(); m || n != 2 {
		t.Fatalf("state = %v after %d callbacks, want expiry to clear motion", m, n)
	}
}

func TestHikvisionAlertStream(t *testing.T) {
	alert := func(state string) string {
		return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<EventNotificationAlert version="2.0" xmlns="http://www.hikvision.com/ver20/XMLSchema">
<channelID>1</channelID>
<eventType>VMD</eventType>
<eventState>%s</eventState>
<eventDescription>Motion alarm</eventDescription>
</EventNotificationAlert>`, state)
	}

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "multipart/mixed; boundary=boundary")
		w.WriteHeader(http.StatusOK)
		for _, part := range []string{alert("active")} {
			fmt.Fprintf(w, "--boundary\r\nContent-Type: application/xml; charset=\"UTF-8\"\r\nContent-Length: %d\r\n\r\n%s\r\n", len(part), part)
		}
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	h := newTestHikvision(srv.URL + alertStreamPath)
	h.username, h.password = "admin", "secret"

	rec := &recorder{}
	if err := h.Start(context.Background(), rec.cb); err != nil {
		t.Fatal(err)
	}
	defer h.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m, _ := rec.last(); m {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("motion never reported, states = %v", rec.states)
}

func TestHikvisionURL(t *testing.T) {
	cfg := &config.Config{}
	h := NewHikvision(cfg, "front", config.MotionConfig{Host: "cam.local", Port: 443, SSL: true})
	if !strings.HasPrefix(h.url, "https://cam.local:443/ISAPI/") {
		t.Fatalf("url = %s", h.url)
	}
}
