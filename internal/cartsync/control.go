package cartsync

import "sync"

// Control is the UI element that triggered a mutation: a button or a
// quantity input.
type Control struct {
	mu      sync.Mutex
	label   string
	value   string
	enabled bool
}

type controlState struct {
	label   string
	value   string
	enabled bool
}

func NewButton(label string) *Control { return &Control{label: label, enabled: true} }

func NewInput(value string) *Control { return &Control{value: value, enabled: true} }

func (c *Control) Label() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.label
}

func (c *Control) Value() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *Control) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *Control) SetValue(v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
}

func (c *Control) snapshot() controlState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return controlState{label: c.label, value: c.value, enabled: c.enabled}
}

func (c *Control) setBusy(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = false
	if label != "" {
		c.label = label
	}
}

func (c *Control) restore(s controlState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.label, c.value, c.enabled = s.label, s.value, s.enabled
}
