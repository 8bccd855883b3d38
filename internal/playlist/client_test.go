package playlist

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"video-looper/internal/vlc"
)

// scriptedClient is a Client whose playlist dumps are replayed from a
// script, for orderings the fake server cannot produce on demand.
type scriptedClient struct {
	mu      sync.Mutex
	calls   []string
	entries map[string]vlc.Slot
	next    vlc.Slot
	dumps   []string
	gotoErr error
	removed map[vlc.Slot]bool

	gotoAt    time.Time
	firstPoll time.Time
}

// newScriptedClient starts with idle.mp4 at slot 4. Each Playlist call
// returns the next dump; the last one repeats.
func newScriptedClient(dumps ...string) *scriptedClient {
	return &scriptedClient{
		entries: map[string]vlc.Slot{idleTitle: 4},
		next:    5,
		dumps:   dumps,
		removed: make(map[vlc.Slot]bool),
	}
}

func (c *scriptedClient) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *scriptedClient) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call == name || strings.HasPrefix(call, name+" ") {
			n++
		}
	}
	return n
}

func (c *scriptedClient) deleted(slot vlc.Slot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removed[slot]
}

func (c *scriptedClient) Enqueue(_ context.Context, path string) error {
	c.record("enqueue " + path)
	c.mu.Lock()
	defer c.mu.Unlock()
	title := filepath.Base(path)
	if _, ok := c.entries[title]; !ok {
		c.entries[title] = c.next
		c.next++
	}
	return nil
}

func (c *scriptedClient) Delete(_ context.Context, slot vlc.Slot) error {
	c.record("delete " + slot.String())
	c.mu.Lock()
	defer c.mu.Unlock()
	for title, s := range c.entries {
		if s == slot {
			delete(c.entries, title)
		}
	}
	c.removed[slot] = true
	return nil
}

func (c *scriptedClient) Search(_ context.Context, query string) (string, error) {
	c.record("search " + query)
	c.mu.Lock()
	defer c.mu.Unlock()
	if slot, ok := c.entries[query]; ok {
		return fmt.Sprintf("| 1 - Playlist\n|   %d - %s\n| 2 - Media Library", slot, query), nil
	}
	return "| 1 - Playlist\n| 2 - Media Library", nil
}

func (c *scriptedClient) ResetSearch(context.Context) error {
	c.record("search")
	return nil
}

func (c *scriptedClient) Goto(_ context.Context, slot vlc.Slot) error {
	c.record("goto " + slot.String())
	c.mu.Lock()
	c.gotoAt = time.Now()
	c.firstPoll = time.Time{}
	c.mu.Unlock()
	return c.gotoErr
}

// pollDelay returns how long after the last goto the first playlist poll
// came.
func (c *scriptedClient) pollDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firstPoll.Sub(c.gotoAt)
}

func (c *scriptedClient) Play(context.Context) error {
	c.record("play")
	return nil
}

func (c *scriptedClient) Loop(_ context.Context, on bool) error {
	c.record(fmt.Sprintf("loop %v", on))
	return nil
}

func (c *scriptedClient) Clear(context.Context) error {
	c.record("clear")
	return nil
}

func (c *scriptedClient) SetVolume(_ context.Context, v int) error {
	c.record(fmt.Sprintf("volume %d", v))
	return nil
}

func (c *scriptedClient) Playlist(context.Context) (string, error) {
	c.record("playlist")
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.firstPoll.IsZero() {
		c.firstPoll = time.Now()
	}
	if len(c.dumps) == 0 {
		return "", nil
	}
	dump := c.dumps[0]
	if len(c.dumps) > 1 {
		c.dumps = c.dumps[1:]
	}
	return dump, nil
}

var _ Client = (*scriptedClient)(nil)
var _ Client = (*vlc.Session)(nil)
