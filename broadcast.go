package authclient

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Signal topics shared between client instances.
const (
	TopicTokenUpdate = "auth.token.update"
	TopicAuthClear   = "auth.clear"
)

const signalSuffix = ".signal"

// signalEnvelope is the payload written into a sentinel file. The file is
// removed right after it is written; the filename alone carries enough for
// watchers to route the signal, so nobody needs to win the race to read it.
type signalEnvelope struct {
	ID     string    `json:"id"`
	Sender string    `json:"sender"`
	Topic  string    `json:"topic"`
	At     time.Time `json:"at"`
}

// SignalBus propagates auth signals between client instances through
// transient sentinel files in a shared state directory. Each instance gets a
// random sender ID and never dispatches its own signals, mirroring how
// same-origin storage events skip the originating browser tab.
type SignalBus struct {
	dir      string
	senderID string
	watcher  *fsnotify.Watcher
	logger   Logger

	mu     sync.Mutex
	subs   map[string]map[int]func()
	nextID int

	done     chan struct{}
	doneOnce sync.Once
}

// NewSignalBus creates a bus over the given shared directory and starts
// watching it.
func NewSignalBus(dir string) (*SignalBus, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "unable to create signal dir")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "unable to create signal watcher")
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, errors.Wrap(err, errors.CategoryInternal, "unable to watch signal dir")
	}

	bus := &SignalBus{
		dir:      dir,
		senderID: uuid.NewString(),
		watcher:  watcher,
		logger:   defLogger{},
		subs:     map[string]map[int]func(){},
		done:     make(chan struct{}),
	}

	go bus.loop()

	return bus, nil
}

// WithLogger sets the logger
func (b *SignalBus) WithLogger(logger Logger) *SignalBus {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// SenderID returns this instance's identity on the bus.
func (b *SignalBus) SenderID() string {
	return b.senderID
}

// Publish writes a sentinel file for the topic and removes it immediately.
// Sibling instances react to the create event; the file itself is transient
// so the shared directory never accumulates state.
func (b *SignalBus) Publish(topic string) error {
	if topic == "" {
		return errors.New("topic must not be empty", errors.CategoryBadInput)
	}

	env := signalEnvelope{
		ID:     uuid.NewString(),
		Sender: b.senderID,
		Topic:  topic,
		At:     time.Now(),
	}

	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "unable to encode signal")
	}

	name := topic + "." + env.Sender + "." + env.ID + signalSuffix
	path := filepath.Join(b.dir, name)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "unable to write signal")
	}

	os.Remove(path)

	return nil
}

// Subscribe registers a handler for a topic and returns the function that
// removes it. Handlers run on the watcher goroutine; keep them short or hand
// off to a channel.
func (b *SignalBus) Subscribe(topic string, handler func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = map[int]func(){}
	}

	id := b.nextID
	b.nextID++
	b.subs[topic][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// Close stops the watcher. Pending handlers finish; no new signals dispatch.
func (b *SignalBus) Close() error {
	b.doneOnce.Do(func() {
		close(b.done)
	})
	return b.watcher.Close()
}

func (b *SignalBus) loop() {
	for {
		select {
		case <-b.done:
			return
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			b.dispatch(filepath.Base(event.Name))
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.logger.Error("signal watcher error: %v", err)
		}
	}
}

// dispatch routes a sentinel filename to subscribers. The name layout is
// <topic>.<sender>.<event>.signal where sender and event are UUIDs, so the
// topic is everything left of the last two dot-separated fields.
func (b *SignalBus) dispatch(name string) {
	if !strings.HasSuffix(name, signalSuffix) {
		return
	}

	base := strings.TrimSuffix(name, signalSuffix)
	parts := strings.Split(base, ".")
	if len(parts) < 3 {
		return
	}

	sender := parts[len(parts)-2]
	topic := strings.Join(parts[:len(parts)-2], ".")

	if sender == b.senderID {
		return
	}

	b.mu.Lock()
	handlers := make([]func(), 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	if len(handlers) > 0 {
		b.logger.Debug("signal %s from %s", topic, sender)
	}

	for _, h := range handlers {
		h()
	}
}

// NoopBroadcaster satisfies Broadcaster without any cross-instance wiring,
// for embedders that run a single instance.
type NoopBroadcaster struct{}

func (NoopBroadcaster) Publish(string) error { return nil }

func (NoopBroadcaster) Subscribe(string, func()) func() { return func() {} }
