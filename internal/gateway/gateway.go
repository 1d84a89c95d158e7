package gateway

import (
	"fmt"
	"strings"
	"sync"
)

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Start begins the message listening loop
	Start() error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// Router delivers messages addressed as "<gateway>:<chat id>", e.g. "telegram:12345".
// Messages longer than a gateway's limit are split the way a Relay splits them.
type Router struct {
	mu       sync.RWMutex
	gateways map[string]route
}

type route struct {
	Messenger
	maxLen int
}

func NewRouter() *Router {
	return &Router{gateways: make(map[string]route)}
}

// Register adds m under name. maxLen is the platform message limit in runes; zero means none.
func (r *Router) Register(name string, m Messenger, maxLen int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[name] = route{Messenger: m, maxLen: maxLen}
}

// Names lists the registered gateways.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	return names
}

func (r *Router) Send(target, text string) error {
	name, chatID, err := ParseTarget(target)
	if err != nil {
		return err
	}
	r.mu.RLock()
	gw, ok := r.gateways[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("gateway %q is not running", name)
	}
	return NewRelay(gw.Messenger, chatID, gw.maxLen).send(text)
}

// Stop stops every registered gateway and returns the first error.
func (r *Router) Stop() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var first error
	for name, m := range r.gateways {
		if err := m.Stop(); err != nil && first == nil {
			first = fmt.Errorf("stop %s: %w", name, err)
		}
	}
	return first
}

// ParseTarget splits "<gateway>:<chat id>".
func ParseTarget(target string) (gateway, chatID string, err error) {
	gateway, chatID, ok := strings.Cut(target, ":")
	if !ok || gateway == "" || chatID == "" {
		return "", "", fmt.Errorf("invalid target %q, want <gateway>:<chat id>", target)
	}
	return gateway, chatID, nil
}

// Target builds the address of a chat on a gateway.
func Target(gateway, chatID string) string {
	return gateway + ":" + chatID
}
