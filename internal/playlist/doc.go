/*
Package playlist keeps VLC's playlist in the shape the video looper needs:
one idle item looping forever, and at most one triggered item played on
top of it.

# States

	Idle -> InsertingTrigger -> AwaitingTriggerStart -> PlayingTrigger
	     -> AwaitingTriggerEnd -> Cleanup -> Idle

Closed is entered by Close and is terminal. Only Idle accepts a trigger;
a trigger arriving in any other state gets ErrBusy.

# Polling

VLC's telnet interface has no event push. After jumping to a trigger the
Synchronizer polls "playlist" until the trigger is marked as playing: once
right after the jump, then every PollInterval, at most StartPolls times
(else vlc.ErrProtocol). It then polls every PollInterval, without a bound,
until another item is marked. A dump with no marked item counts as "not
changed yet". Seeing the idle item before the trigger has started is not
mistaken for the trigger having ended.

# Slots

Slots are never kept across commands that change the playlist. Every
delete and jump is preceded by a search for the title, and every search
is followed by an empty "search" that clears VLC's playlist filter.

# Failures

A title that never appears in a search yields ErrMediaNotFound and the
idle loop keeps playing. A copy that VLC adds late is reused by the next
trigger for the same title. On any other failure, or when ctx is
cancelled, the trigger is deleted best-effort before PlayTriggered
returns.
*/
package playlist
