package command

import (
	"context"
	"encoding/json"

	"github.com/onnwee/overlay-relay/envelope"
)

// SongRef identifies a song from whichever table row it was picked in. The
// first non-empty field wins: song info id (favourite and banned lists, keyed
// by video id), then history id, then queue id.
type SongRef struct {
	SongInfoID string
	HistID     int
	DatabaseID int
}

// MarshalJSON encodes exactly one selector key.
func (r SongRef) MarshalJSON() ([]byte, error) {
	switch {
	case r.SongInfoID != "":
		return json.Marshal(map[string]string{"songinfo_database_id": r.SongInfoID})
	case r.HistID != 0:
		return json.Marshal(map[string]int{"hist_database_id": r.HistID})
	default:
		return json.Marshal(map[string]int{"database_id": r.DatabaseID})
	}
}

type databaseID struct {
	DatabaseID int `json:"database_id"`
}

type move struct {
	DatabaseID int `json:"database_id"`
	ToID       int `json:"to_id"`
}

type toggle struct {
	Value bool `json:"value"`
}

// Ready tells the bot the local player started playing.
func (c *Commands) Ready(ctx context.Context) error {
	if c.surface == envelope.SurfacePlayer {
		return c.Send(ctx, envelope.CmdPlayerReady, nil)
	}
	return c.Send(ctx, envelope.CmdReady, nil)
}

// Next skips to the next song. The player page names this SKIP.
func (c *Commands) Next(ctx context.Context) error {
	if c.surface == envelope.SurfacePlayer {
		return c.Send(ctx, envelope.CmdSkip, nil)
	}
	return c.Send(ctx, envelope.CmdNext, nil)
}

// NextSong reports that the player page finished the current song.
func (c *Commands) NextSong(ctx context.Context) error {
	return c.Send(ctx, envelope.CmdNextSong, nil)
}

func (c *Commands) Previous(ctx context.Context) error {
	return c.Send(ctx, envelope.CmdPrevious, nil)
}

func (c *Commands) Pause(ctx context.Context) error {
	return c.Send(ctx, envelope.CmdPause, nil)
}

func (c *Commands) Resume(ctx context.Context) error {
	return c.Send(ctx, envelope.CmdResume, nil)
}

// Seek moves playback to seconds from the start.
func (c *Commands) Seek(ctx context.Context, seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	return c.Send(ctx, envelope.CmdSeek, map[string]float64{"seek_time": seconds})
}

// Volume sets the volume in percent, clamped to 0..100.
func (c *Commands) Volume(ctx context.Context, percent int) error {
	percent = min(max(percent, 0), 100)
	return c.Send(ctx, envelope.CmdVolume, map[string]int{"volume": percent})
}

func (c *Commands) Ban(ctx context.Context, ref SongRef) error {
	return c.Send(ctx, envelope.CmdBan, ref)
}

func (c *Commands) Unban(ctx context.Context, ref SongRef) error {
	return c.Send(ctx, envelope.CmdUnban, ref)
}

func (c *Commands) Favourite(ctx context.Context, ref SongRef) error {
	return c.Send(ctx, envelope.CmdFavourite, ref)
}

func (c *Commands) Unfavourite(ctx context.Context, ref SongRef) error {
	return c.Send(ctx, envelope.CmdUnfavourite, ref)
}

// Request re-queues a song picked from any table.
func (c *Commands) Request(ctx context.Context, ref SongRef) error {
	return c.Send(ctx, envelope.CmdRequest, ref)
}

// Delete removes a queued song. The player page names this REMOVE.
func (c *Commands) Delete(ctx context.Context, id int) error {
	if c.surface == envelope.SurfacePlayer {
		return c.Send(ctx, envelope.CmdRemove, databaseID{DatabaseID: id})
	}
	return c.Send(ctx, envelope.CmdDelete, databaseID{DatabaseID: id})
}

// Move reorders a queued song to position to.
func (c *Commands) Move(ctx context.Context, id, to int) error {
	return c.Send(ctx, envelope.CmdMove, move{DatabaseID: id, ToID: to})
}

// PlaySong jumps to a queued song on the player page.
func (c *Commands) PlaySong(ctx context.Context, id int) error {
	return c.Send(ctx, envelope.CmdPlaySong, databaseID{DatabaseID: id})
}

// Requeue puts a history entry back in the queue on the player page.
func (c *Commands) Requeue(ctx context.Context, id int) error {
	return c.Send(ctx, envelope.CmdRequeue, databaseID{DatabaseID: id})
}

// SetState flips one of the module toggles (REQUEST_STATE, AUTO_PLAY_STATE,
// BACKUP_PLAYLIST_STATE, USE_SPOTIFY_STATE, PLAY_ON_STREAM_STATE).
func (c *Commands) SetState(ctx context.Context, event string, value bool) error {
	return c.Send(ctx, event, toggle{Value: value})
}

// ShowVideo sends SHOW_VIDEO or HIDE_VIDEO.
func (c *Commands) ShowVideo(ctx context.Context, show bool) error {
	if show {
		return c.Send(ctx, envelope.CmdShowVideo, nil)
	}
	return c.Send(ctx, envelope.CmdHideVideo, nil)
}

// AddMedia forwards the add-media form fields.
func (c *Commands) AddMedia(ctx context.Context, form map[string]string) error {
	return c.Send(ctx, envelope.CmdAddMedia, form)
}

// SetBackupPlaylist forwards the backup-playlist form fields.
func (c *Commands) SetBackupPlaylist(ctx context.Context, form map[string]string) error {
	return c.Send(ctx, envelope.CmdSetBackupPlaylist, form)
}
