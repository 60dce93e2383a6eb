package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Common errors.
var (
	ErrNoReceiver  = errors.New("receiving end does not exist")
	ErrInboxFull   = errors.New("tab inbox is full")
	ErrUnknownTab  = errors.New("no tab with id")
	ErrPortClosed  = errors.New("port closed")
	ErrHubShutdown = errors.New("hub shut down")
)

const (
	defaultInboxSize      = 8
	defaultBackgroundSize = 32
)

// Hub connects tabs to the background. It owns the tab registry the
// background queries and delivers messages in both directions.
type Hub struct {
	mu         sync.Mutex
	tabs       map[TabID]*Port
	order      []TabID
	background chan Envelope
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		tabs:       make(map[TabID]*Port),
		background: make(chan Envelope, defaultBackgroundSize),
		done:       make(chan struct{}),
	}
}

// NewTabID returns a fresh random tab id.
func NewTabID() TabID {
	return TabID(uuid.NewString())
}

// Background returns the stream of page messages for the background context.
func (hub *Hub) Background() <-chan Envelope {
	return hub.background
}

// Connect registers a tab. onRemove is called when the background closes it.
func (hub *Hub) Connect(tab Tab, onRemove func()) *Port {
	if tab.ID == "" {
		tab.ID = NewTabID()
	}
	port := &Port{
		hub:      hub,
		tab:      tab,
		inbox:    make(chan Message, defaultInboxSize),
		onRemove: onRemove,
	}

	hub.mu.Lock()
	if _, exists := hub.tabs[tab.ID]; !exists {
		hub.order = append(hub.order, tab.ID)
	}
	hub.tabs[tab.ID] = port
	hub.mu.Unlock()
	return port
}

// Query lists the open tabs in the order they were connected.
func (hub *Hub) Query(ctx context.Context) ([]Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()

	tabs := make([]Tab, 0, len(hub.order))
	for _, id := range hub.order {
		tabs = append(tabs, hub.tabs[id].tab)
	}
	return tabs, nil
}

// SendMessage delivers msg to a single tab without blocking.
func (hub *Hub) SendMessage(ctx context.Context, id TabID, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	port, err := hub.port(id)
	if err != nil {
		return err
	}
	return port.deliver(msg)
}

// Remove closes a tab and unregisters it.
func (hub *Hub) Remove(ctx context.Context, id TabID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	port, err := hub.port(id)
	if err != nil {
		return err
	}
	port.Close()
	if port.onRemove != nil {
		port.onRemove()
	}
	return nil
}

// Shutdown stops accepting page messages.
func (hub *Hub) Shutdown() {
	hub.closeOnce.Do(func() {
		close(hub.done)
	})
}

func (hub *Hub) port(id TabID) (*Port, error) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	port, ok := hub.tabs[id]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownTab, id)
	}
	return port, nil
}

func (hub *Hub) disconnect(id TabID) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if _, ok := hub.tabs[id]; !ok {
		return
	}
	delete(hub.tabs, id)
	order := hub.order[:0]
	for _, existing := range hub.order {
		if existing != id {
			order = append(order, existing)
		}
	}
	hub.order = order
}

// Port is a page's end of the hub.
type Port struct {
	hub      *Hub
	tab      Tab
	onRemove func()

	mu        sync.Mutex
	inbox     chan Message
	listening bool
	closed    bool
}

// Tab returns the tab this port belongs to.
func (port *Port) Tab() Tab {
	return port.tab
}

// Listen marks the page as accepting background messages and returns its inbox.
// Until Listen is called deliveries fail with ErrNoReceiver.
func (port *Port) Listen() <-chan Message {
	port.mu.Lock()
	defer port.mu.Unlock()
	port.listening = true
	return port.inbox
}

// Send queues msg for the background, blocking until it is accepted or ctx is done.
func (port *Port) Send(ctx context.Context, msg Message) error {
	port.mu.Lock()
	closed := port.closed
	port.mu.Unlock()
	if closed {
		return ErrPortClosed
	}

	select {
	case port.hub.background <- Envelope{Sender: port.tab, Message: msg}:
		return nil
	case <-port.hub.done:
		return ErrHubShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects the tab. Further deliveries fail with ErrUnknownTab.
func (port *Port) Close() {
	port.hub.disconnect(port.tab.ID)
	port.mu.Lock()
	port.closed = true
	port.mu.Unlock()
}

func (port *Port) deliver(msg Message) error {
	port.mu.Lock()
	defer port.mu.Unlock()
	if port.closed {
		return ErrPortClosed
	}
	if !port.listening {
		return ErrNoReceiver
	}
	select {
	case port.inbox <- msg:
		return nil
	default:
		return ErrInboxFull
	}
}
