// Package command turns local UI actions into outbound envelopes.
//
// Sends are fire-and-forget: nothing is acknowledged or retried, and the next
// snapshot or incremental event from the bot is the only confirmation.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/onnwee/overlay-relay/envelope"
)

// ErrEventNotAllowed is returned for an outbound tag the surface does not use.
var ErrEventNotAllowed = errors.New("command: event not allowed on surface")

// Sender writes one envelope to the upstream socket.
type Sender interface {
	Send(ctx context.Context, env envelope.Envelope) error
}

var allowed = map[string][]string{
	envelope.SurfaceSongRequest: {
		envelope.CmdReady, envelope.CmdNext, envelope.CmdPrevious, envelope.CmdPause,
		envelope.CmdResume, envelope.CmdSeek, envelope.CmdVolume, envelope.CmdBan,
		envelope.CmdUnban, envelope.CmdFavourite, envelope.CmdUnfavourite, envelope.CmdDelete,
		envelope.CmdMove, envelope.CmdRequest, envelope.CmdRequestState,
		envelope.CmdAutoPlayState, envelope.CmdBackupPlaylistState, envelope.CmdUseSpotifyState,
		envelope.CmdPlayOnStreamState, envelope.CmdShowVideo, envelope.CmdHideVideo,
		envelope.CmdAddMedia, envelope.CmdSetBackupPlaylist,
	},
	envelope.SurfacePlayer: {
		envelope.CmdPlayerReady, envelope.CmdNextSong, envelope.CmdVolume, envelope.CmdSeek,
		envelope.CmdRemove, envelope.CmdPlaySong, envelope.CmdRequeue, envelope.CmdMove,
		envelope.CmdSkip, envelope.CmdPause, envelope.CmdResume, envelope.CmdPrevious,
	},
}

// Allowed reports whether surface may send event. The overlay sends nothing.
func Allowed(surface, event string) bool {
	return lo.Contains(allowed[surface], event)
}

// AllowedEvents returns the outbound tags of a surface.
func AllowedEvents(surface string) []string {
	return append([]string(nil), allowed[surface]...)
}

// Commands sends outbound envelopes for one surface.
type Commands struct {
	surface string
	sender  Sender
	logger  *slog.Logger
}

// New creates a command sender bound to a surface.
func New(surface string, sender Sender, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.Default()
	}
	return &Commands{
		surface: surface,
		sender:  sender,
		logger:  logger.With(slog.String("component", "command"), slog.String("surface", surface)),
	}
}

// Send builds {event, data} and writes it. data may be nil.
func (c *Commands) Send(ctx context.Context, event string, data any) error {
	if !Allowed(c.surface, event) {
		return fmt.Errorf("%w: %s on %s", ErrEventNotAllowed, event, c.surface)
	}
	env, err := envelope.New(event, data)
	if err != nil {
		return err
	}
	if err := c.sender.Send(ctx, env); err != nil {
		c.logger.Warn("command not sent", slog.String("event", event), slog.Any("err", err))
		return err
	}
	c.logger.Debug("command sent", slog.String("event", event))
	return nil
}
