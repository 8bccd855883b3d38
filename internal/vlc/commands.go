package vlc

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// seconds ("90"), relative seconds ("+10", "-10") or percent ("50%")
var seekPattern = regexp.MustCompile(`^[+-]?\d+%?$`)

// exec sends a command whose reply carries no information.
func (s *Session) exec(ctx context.Context, line string) error {
	_, err := s.Request(ctx, line)
	return err
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// Enqueue appends path to the playlist without playing it.
func (s *Session) Enqueue(ctx context.Context, path string) error {
	return s.exec(ctx, "enqueue "+path)
}

// Add appends path to the playlist and starts playing it.
func (s *Session) Add(ctx context.Context, path string) error {
	return s.exec(ctx, "add "+path)
}

// Delete removes the item at slot.
func (s *Session) Delete(ctx context.Context, slot Slot) error {
	return s.exec(ctx, "delete "+slot.String())
}

// Search filters the playlist by query and returns the raw reply. VLC
// keeps the filter active until ResetSearch.
func (s *Session) Search(ctx context.Context, query string) (string, error) {
	return s.Request(ctx, "search "+query)
}

// ResetSearch clears the filter left by Search.
func (s *Session) ResetSearch(ctx context.Context) error {
	return s.exec(ctx, "search")
}

// Goto jumps to the item at slot.
func (s *Session) Goto(ctx context.Context, slot Slot) error {
	return s.exec(ctx, "goto "+slot.String())
}

// Play resumes playback of the current item.
func (s *Session) Play(ctx context.Context) error {
	return s.exec(ctx, "play")
}

// Stop stops playback.
func (s *Session) Stop(ctx context.Context) error {
	return s.exec(ctx, "stop")
}

// Pause toggles pause.
func (s *Session) Pause(ctx context.Context) error {
	return s.exec(ctx, "pause")
}

// Next moves to the next playlist item.
func (s *Session) Next(ctx context.Context) error {
	return s.exec(ctx, "next")
}

// Prev moves to the previous playlist item.
func (s *Session) Prev(ctx context.Context) error {
	return s.exec(ctx, "prev")
}

// Rewind plays the current item backwards at VLC's rewind rate.
func (s *Session) Rewind(ctx context.Context) error {
	return s.exec(ctx, "rewind")
}

// Seek moves within the current item. position is absolute seconds,
// relative seconds with a sign, or a percentage.
func (s *Session) Seek(ctx context.Context, position string) error {
	if !ValidSeekPosition(position) {
		return fmt.Errorf("vlc: invalid seek position %q", position)
	}
	return s.exec(ctx, "seek "+position)
}

// ValidSeekPosition reports whether Seek accepts position.
func ValidSeekPosition(position string) bool {
	return seekPattern.MatchString(position)
}

// Clear empties the playlist.
func (s *Session) Clear(ctx context.Context) error {
	return s.exec(ctx, "clear")
}

// Loop sets playlist looping.
func (s *Session) Loop(ctx context.Context, on bool) error {
	return s.exec(ctx, "loop "+onOff(on))
}

// Repeat sets single-item repeat.
func (s *Session) Repeat(ctx context.Context, on bool) error {
	return s.exec(ctx, "repeat "+onOff(on))
}

// Random sets shuffle.
func (s *Session) Random(ctx context.Context, on bool) error {
	return s.exec(ctx, "random "+onOff(on))
}

// Fullscreen sets fullscreen mode of the video output.
func (s *Session) Fullscreen(ctx context.Context, on bool) error {
	return s.exec(ctx, "fullscreen "+onOff(on))
}

// Playlist returns the raw playlist dump. Use ParsePlayingIndex to find
// the current item.
func (s *Session) Playlist(ctx context.Context) (string, error) {
	return s.Request(ctx, "playlist")
}

// Status returns the raw status reply.
func (s *Session) Status(ctx context.Context) (string, error) {
	return s.Request(ctx, "status")
}

// Volume returns the current volume (0-512, 256 = 100%).
func (s *Session) Volume(ctx context.Context) (int, error) {
	reply, err := s.Request(ctx, "volume")
	if err != nil {
		return 0, err
	}
	v, ok := ParseVolume(reply)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected volume reply %q", ErrProtocol, reply)
	}
	return v, nil
}

// SetVolume sets the volume (0-512).
func (s *Session) SetVolume(ctx context.Context, volume int) error {
	if volume < 0 || volume > 512 {
		return fmt.Errorf("vlc: volume %d out of range 0-512", volume)
	}
	return s.exec(ctx, "volume "+strconv.Itoa(volume))
}

// VolumeUp raises the volume by steps volume steps and returns the new
// volume.
func (s *Session) VolumeUp(ctx context.Context, steps int) (int, error) {
	return s.stepVolume(ctx, "volup", steps)
}

// VolumeDown lowers the volume by steps volume steps and returns the new
// volume.
func (s *Session) VolumeDown(ctx context.Context, steps int) (int, error) {
	return s.stepVolume(ctx, "voldown", steps)
}

func (s *Session) stepVolume(ctx context.Context, command string, steps int) (int, error) {
	if steps < 1 {
		return 0, fmt.Errorf("vlc: %s needs at least one step, got %d", command, steps)
	}
	reply, err := s.Request(ctx, command+" "+strconv.Itoa(steps))
	if err != nil {
		return 0, err
	}
	v, ok := ParseVolume(reply)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected %s reply %q", ErrProtocol, command, reply)
	}
	return v, nil
}

// Info returns the raw stream and metadata information of the current
// item.
func (s *Session) Info(ctx context.Context) (string, error) {
	return s.Request(ctx, "info")
}

// Raw sends an arbitrary command line and returns its reply.
func (s *Session) Raw(ctx context.Context, line string) (string, error) {
	return s.Request(ctx, line)
}

// PlayingSlot returns the slot currently marked as playing.
func (s *Session) PlayingSlot(ctx context.Context) (Slot, bool, error) {
	dump, err := s.Playlist(ctx)
	if err != nil {
		return 0, false, err
	}
	slot, ok := ParsePlayingIndex(dump)
	return slot, ok, nil
}
