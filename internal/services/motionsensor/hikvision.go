package motionsensor

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"nvr-worker-go/internal/config"
)

const alertStreamPath = "/ISAPI/Event/notification/alertStream"

// hikvisionMotionEvents maps ISAPI event types to the events that count as motion.
var hikvisionMotionEvents = map[string]string{
	"VMD":                  "Motion",
	"linedetection":        "Line Crossing",
	"fielddetection":       "Field Detection",
	"tamperdetection":      "Tamper Detection",
	"PIR":                  "PIR Alarm",
	"scenechangedetection": "Scene Change Detection",
	"regionExiting":        "Exiting Region",
	"regionEntering":       "Entering Region",
}

type eventNotificationAlert struct {
	XMLName      xml.Name `xml:"EventNotificationAlert"`
	ChannelID    int      `xml:"channelID"`
	DynChannelID int      `xml:"dynChannelID"`
	EventType    string   `xml:"eventType"`
	EventState   string   `xml:"eventState"`
}

func (a eventNotificationAlert) channel() int {
	if a.ChannelID != 0 {
		return a.ChannelID
	}
	return a.DynChannelID
}

// Hikvision follows a camera's ISAPI alert stream. Cameras repeat an
// "active" notification while an event lasts, so an event that has not
// been refreshed within the timeout is treated as finished.
type Hikvision struct {
	url      string
	username string
	password string
	client   *http.Client
	timeout  time.Duration
	retry    time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu     sync.Mutex
	events map[string]time.Time
	motion bool
	cb     Callback

	cancel context.CancelFunc
	done   chan struct{}
}

func NewHikvision(cfg *config.Config, cameraID string, mc config.MotionConfig) *Hikvision {
	scheme := "http"
	if mc.SSL {
		scheme = "https"
	}
	h := &Hikvision{
		url:     fmt.Sprintf("%s://%s:%d%s", scheme, mc.Host, mc.Port, alertStreamPath),
		client:  &http.Client{},
		timeout: cfg.HikvisionEventTimeout,
		retry:   cfg.ReconnectInterval,
		now:     time.Now,
		logger:  log.With().Str("service", "hikvision").Str("camera_id", cameraID).Logger(),
		events:  make(map[string]time.Time),
	}
	if mc.Auth != nil {
		h.username, h.password = mc.Auth.Username, mc.Auth.Password
	}
	return h
}

func (h *Hikvision) Start(ctx context.Context, cb Callback) error {
	h.mu.Lock()
	h.cb = cb
	h.mu.Unlock()

	cb(false)

	ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})
	go h.run(ctx)
	return nil
}

func (h *Hikvision) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done
}

func (h *Hikvision) run(ctx context.Context) {
	defer close(h.done)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.expire()
			}
		}
	}()

	for ctx.Err() == nil {
		err := h.stream(ctx)
		if ctx.Err() != nil {
			break
		}
		h.logger.Warn().Err(err).Dur("retry_in", h.retry).Msg("Alert stream interrupted")
		h.reset()
		select {
		case <-ctx.Done():
		case <-time.After(h.retry):
		}
	}

	wg.Wait()
}

func (h *Hikvision) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return err
	}
	if h.username != "" {
		req.SetBasicAuth(h.username, h.password)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect alert stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alert stream returned %s", resp.Status)
	}
	h.logger.Info().Str("url", h.url).Msg("Alert stream connected")

	return h.readAlerts(resp.Header.Get("Content-Type"), resp.Body)
}

// readAlerts decodes notifications until the body ends.
func (h *Hikvision) readAlerts(contentType string, body io.Reader) error {
	mediaType, params, _ := mime.ParseMediaType(contentType)
	if strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "" {
		mr := multipart.NewReader(body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return io.ErrUnexpectedEOF
				}
				return err
			}
			var alert eventNotificationAlert
			if err := xml.NewDecoder(part).Decode(&alert); err != nil {
				h.logger.Debug().Err(err).Msg("Skipping non-alert part")
				continue
			}
			h.handleAlert(alert)
		}
	}

	decoder := xml.NewDecoder(body)
	for {
		var alert eventNotificationAlert
		if err := decoder.Decode(&alert); err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		h.handleAlert(alert)
	}
}

func (h *Hikvision) handleAlert(alert eventNotificationAlert) {
	name, ok := hikvisionMotionEvents[alert.EventType]
	if !ok {
		return
	}
	key := name + "." + strconv.Itoa(alert.channel())

	h.mu.Lock()
	if strings.EqualFold(alert.EventState, "active") {
		h.events[key] = h.now()
	} else {
		delete(h.events, key)
	}
	h.mu.Unlock()

	h.update()
}

func (h *Hikvision) expire() {
	now := h.now()
	h.mu.Lock()
	for key, seen := range h.events {
		if now.Sub(seen) > h.timeout {
			delete(h.events, key)
		}
	}
	h.mu.Unlock()

	h.update()
}

func (h *Hikvision) reset() {
	h.mu.Lock()
	clear(h.events)
	h.mu.Unlock()

	h.update()
}

// update fires the callback when the aggregated state flips.
func (h *Hikvision) update() {
	h.mu.Lock()
	motion := len(h.events) > 0
	changed := motion != h.motion
	h.motion = motion
	cb := h.cb
	h.mu.Unlock()

	if changed && cb != nil {
		h.logger.Debug().Bool("motion", motion).Msg("Motion state changed")
		cb(motion)
	}
}
