package vlc

import (
	"regexp"
	"strconv"
	"strings"
)

// Slot is a playlist item index as printed by VLC. It is not stable
// across enqueue and delete operations on other items and must be
// re-resolved by title right before it is used.
type Slot int

// String returns the slot in the form VLC expects as a command argument.
func (s Slot) String() string {
	return strconv.Itoa(int(s))
}

var (
	// "|  *5 - trigger.mp4": the current entry carries a '*' before its index
	playingIndexPattern = regexp.MustCompile(`(?m)^\|\s*\*(\d+)`)
	versionPattern      = regexp.MustCompile(`VLC media player ([\d.]+)`)
	volumePattern       = regexp.MustCompile(`(-?\d+)`)
)

// ParsePlayingIndex returns the slot marked as currently playing in a
// playlist dump. ok is false when no entry is marked.
func ParsePlayingIndex(dump string) (slot Slot, ok bool) {
	m := playingIndexPattern.FindStringSubmatch(dump)
	if m == nil {
		return 0, false
	}
	return atoiSlot(m[1])
}

// ParseSearchMatch returns the slot of the first "<index> - <query>" line
// in a search reply. The query is matched literally.
func ParseSearchMatch(reply, query string) (slot Slot, ok bool) {
	matches := ParseSearchMatches(reply, query)
	if len(matches) == 0 {
		return 0, false
	}
	return matches[0], true
}

// ParseSearchMatches returns every slot whose line contains
// "<index> - <query>", in reply order.
func ParseSearchMatches(reply, query string) []Slot {
	if query == "" || reply == "" {
		return nil
	}
	pattern, err := regexp.Compile(`(\d+) - ` + regexp.QuoteMeta(query))
	if err != nil {
		return nil
	}

	var slots []Slot
	for _, m := range pattern.FindAllStringSubmatch(reply, -1) {
		if slot, ok := atoiSlot(m[1]); ok {
			slots = append(slots, slot)
		}
	}
	return slots
}

// ParseVersion extracts the version number from the connection banner,
// or "" when the banner is not VLC's.
func ParseVersion(banner string) string {
	m := versionPattern.FindStringSubmatch(banner)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseVolume reads the reply of a bare "volume" command.
func ParseVolume(reply string) (int, bool) {
	m := volumePattern.FindStringSubmatch(strings.TrimSpace(reply))
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

func atoiSlot(s string) (Slot, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return Slot(n), true
}
