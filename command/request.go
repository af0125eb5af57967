package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/onnwee/overlay-relay/envelope"
)

// ErrInvalidArgs is returned when a request body lacks the fields its event needs.
var ErrInvalidArgs = errors.New("command: invalid arguments")

// Request is the JSON body of an HTTP command. Each event reads only the
// fields it needs.
type Request struct {
	SongInfoID string   `json:"songinfo_database_id"`
	HistID     int      `json:"hist_database_id"`
	DatabaseID int      `json:"database_id"`
	ToID       *int     `json:"to_id"`
	SeekTime   *float64 `json:"seek_time"`
	Volume     *int     `json:"volume"`
	Value      *bool    `json:"value"`
}

func (r Request) ref() (SongRef, bool) {
	ref := SongRef{SongInfoID: r.SongInfoID, HistID: r.HistID, DatabaseID: r.DatabaseID}
	return ref, ref != SongRef{}
}

func invalid(event, need string) error {
	return fmt.Errorf("%w: %s needs %s", ErrInvalidArgs, event, need)
}

// Handle decodes an HTTP command body and sends event through the matching
// builder. An empty body decodes as an empty Request.
func (c *Commands) Handle(ctx context.Context, event string, raw json.RawMessage) error {
	if !Allowed(c.surface, event) {
		return fmt.Errorf("%w: %s on %s", ErrEventNotAllowed, event, c.surface)
	}
	var req Request
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidArgs, event, err)
		}
	}

	switch event {
	case envelope.CmdReady, envelope.CmdPlayerReady:
		return c.Ready(ctx)
	case envelope.CmdNext, envelope.CmdSkip:
		return c.Next(ctx)
	case envelope.CmdNextSong:
		return c.NextSong(ctx)
	case envelope.CmdPrevious:
		return c.Previous(ctx)
	case envelope.CmdPause:
		return c.Pause(ctx)
	case envelope.CmdResume:
		return c.Resume(ctx)
	case envelope.CmdSeek:
		if req.SeekTime == nil {
			return invalid(event, "seek_time")
		}
		return c.Seek(ctx, *req.SeekTime)
	case envelope.CmdVolume:
		if req.Volume == nil {
			return invalid(event, "volume")
		}
		return c.Volume(ctx, *req.Volume)
	case envelope.CmdBan, envelope.CmdUnban, envelope.CmdFavourite, envelope.CmdUnfavourite, envelope.CmdRequest:
		ref, ok := req.ref()
		if !ok {
			return invalid(event, "a song id")
		}
		return c.songAction(ctx, event, ref)
	case envelope.CmdDelete, envelope.CmdRemove:
		if req.DatabaseID == 0 {
			return invalid(event, "database_id")
		}
		return c.Delete(ctx, req.DatabaseID)
	case envelope.CmdMove:
		if req.DatabaseID == 0 || req.ToID == nil {
			return invalid(event, "database_id and to_id")
		}
		return c.Move(ctx, req.DatabaseID, *req.ToID)
	case envelope.CmdPlaySong:
		if req.DatabaseID == 0 {
			return invalid(event, "database_id")
		}
		return c.PlaySong(ctx, req.DatabaseID)
	case envelope.CmdRequeue:
		if req.DatabaseID == 0 {
			return invalid(event, "database_id")
		}
		return c.Requeue(ctx, req.DatabaseID)
	case envelope.CmdRequestState, envelope.CmdAutoPlayState, envelope.CmdBackupPlaylistState,
		envelope.CmdUseSpotifyState, envelope.CmdPlayOnStreamState:
		if req.Value == nil {
			return invalid(event, "value")
		}
		return c.SetState(ctx, event, *req.Value)
	case envelope.CmdShowVideo, envelope.CmdHideVideo:
		return c.ShowVideo(ctx, event == envelope.CmdShowVideo)
	case envelope.CmdAddMedia, envelope.CmdSetBackupPlaylist:
		var form map[string]string
		if err := json.Unmarshal(raw, &form); err != nil || len(form) == 0 {
			return invalid(event, "form fields")
		}
		if event == envelope.CmdAddMedia {
			return c.AddMedia(ctx, form)
		}
		return c.SetBackupPlaylist(ctx, form)
	default:
		return fmt.Errorf("%w: %s has no builder", ErrEventNotAllowed, event)
	}
}

func (c *Commands) songAction(ctx context.Context, event string, ref SongRef) error {
	switch event {
	case envelope.CmdBan:
		return c.Ban(ctx, ref)
	case envelope.CmdUnban:
		return c.Unban(ctx, ref)
	case envelope.CmdFavourite:
		return c.Favourite(ctx, ref)
	case envelope.CmdUnfavourite:
		return c.Unfavourite(ctx, ref)
	default:
		return c.Request(ctx, ref)
	}
}
