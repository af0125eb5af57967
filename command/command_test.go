package command

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onnwee/overlay-relay/envelope"
)

type recordingSender struct {
	sent []envelope.Envelope
	err  error
}

func (r *recordingSender) Send(_ context.Context, env envelope.Envelope) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, env)
	return nil
}

func (r *recordingSender) last(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, r.sent)
	frame, err := r.sent[len(r.sent)-1].Encode()
	require.NoError(t, err)
	return string(frame)
}

func TestSongRefSelectorPrecedence(t *testing.T) {
	tests := []struct {
		name string
		ref  SongRef
		want string
	}{
		{name: "song info wins", ref: SongRef{SongInfoID: "abc", HistID: 3, DatabaseID: 7}, want: `{"songinfo_database_id":"abc"}`},
		{name: "history next", ref: SongRef{HistID: 3, DatabaseID: 7}, want: `{"hist_database_id":3}`},
		{name: "queue id last", ref: SongRef{DatabaseID: 7}, want: `{"database_id":7}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.ref)
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(b))
		})
	}
}

func TestAdminBuilders(t *testing.T) {
	ctx := context.Background()
	s := &recordingSender{}
	c := New(envelope.SurfaceSongRequest, s, nil)

	tests := []struct {
		name string
		run  func() error
		want string
	}{
		{"next", func() error { return c.Next(ctx) }, `{"event":"NEXT"}`},
		{"ready", func() error { return c.Ready(ctx) }, `{"event":"READY"}`},
		{"seek", func() error { return c.Seek(ctx, 42.5) }, `{"event":"SEEK","data":{"seek_time":42.5}}`},
		{"volume clamps", func() error { return c.Volume(ctx, 140) }, `{"event":"VOLUME","data":{"volume":100}}`},
		{"unfavourite", func() error { return c.Unfavourite(ctx, SongRef{DatabaseID: 1}) }, `{"event":"UNFAVOURITE","data":{"database_id":1}}`},
		{"ban", func() error { return c.Ban(ctx, SongRef{HistID: 9}) }, `{"event":"BAN","data":{"hist_database_id":9}}`},
		{"request", func() error { return c.Request(ctx, SongRef{SongInfoID: "vid"}) }, `{"event":"REQUEST","data":{"songinfo_database_id":"vid"}}`},
		{"delete", func() error { return c.Delete(ctx, 4) }, `{"event":"DELETE","data":{"database_id":4}}`},
		{"move", func() error { return c.Move(ctx, 4, 2) }, `{"event":"MOVE","data":{"database_id":4,"to_id":2}}`},
		{"toggle", func() error { return c.SetState(ctx, envelope.CmdAutoPlayState, true) }, `{"event":"AUTO_PLAY_STATE","data":{"value":true}}`},
		{"hide video", func() error { return c.ShowVideo(ctx, false) }, `{"event":"HIDE_VIDEO"}`},
		{"add media", func() error { return c.AddMedia(ctx, map[string]string{"url": "https://youtu.be/x"}) }, `{"event":"ADD_MEDIA","data":{"url":"https://youtu.be/x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.run())
			require.JSONEq(t, tt.want, s.last(t))
		})
	}
}

func TestPlayerVariants(t *testing.T) {
	ctx := context.Background()
	s := &recordingSender{}
	c := New(envelope.SurfacePlayer, s, nil)

	require.NoError(t, c.Next(ctx))
	require.JSONEq(t, `{"event":"SKIP"}`, s.last(t))

	require.NoError(t, c.Ready(ctx))
	require.JSONEq(t, `{"event":"ready"}`, s.last(t))

	require.NoError(t, c.Delete(ctx, 5))
	require.JSONEq(t, `{"event":"REMOVE","data":{"database_id":5}}`, s.last(t))

	require.NoError(t, c.Requeue(ctx, 6))
	require.JSONEq(t, `{"event":"REQUEUE","data":{"database_id":6}}`, s.last(t))

	require.NoError(t, c.NextSong(ctx))
	require.JSONEq(t, `{"event":"next_song"}`, s.last(t))

	// BAN belongs to the admin dashboard only.
	err := c.Ban(ctx, SongRef{DatabaseID: 1})
	require.ErrorIs(t, err, ErrEventNotAllowed)
}

func TestOverlaySendsNothing(t *testing.T) {
	s := &recordingSender{}
	c := New(envelope.SurfaceOverlay, s, nil)
	require.ErrorIs(t, c.Pause(context.Background()), ErrEventNotAllowed)
	require.Empty(t, s.sent)
	require.Empty(t, AllowedEvents(envelope.SurfaceOverlay))
}

func TestHandleRoutesThroughBuilders(t *testing.T) {
	tests := []struct {
		name    string
		surface string
		event   string
		body    string
		want    string
	}{
		{"volume clamps", envelope.SurfaceSongRequest, envelope.CmdVolume, `{"volume": 130}`, `{"event":"VOLUME","data":{"volume":100}}`},
		{"pause without body", envelope.SurfaceSongRequest, envelope.CmdPause, ``, `{"event":"PAUSE"}`},
		{"seek clamps", envelope.SurfacePlayer, envelope.CmdSeek, `{"seek_time": -3}`, `{"event":"SEEK","data":{"seek_time":0}}`},
		{"ban picks song info id", envelope.SurfaceSongRequest, envelope.CmdBan, `{"songinfo_database_id":"abc","database_id":7}`, `{"event":"BAN","data":{"songinfo_database_id":"abc"}}`},
		{"favourite from history row", envelope.SurfaceSongRequest, envelope.CmdFavourite, `{"hist_database_id":3}`, `{"event":"FAVOURITE","data":{"hist_database_id":3}}`},
		{"request from queue row", envelope.SurfaceSongRequest, envelope.CmdRequest, `{"database_id":7}`, `{"event":"REQUEST","data":{"database_id":7}}`},
		{"move to top", envelope.SurfaceSongRequest, envelope.CmdMove, `{"database_id":4,"to_id":0}`, `{"event":"MOVE","data":{"database_id":4,"to_id":0}}`},
		{"toggle off", envelope.SurfaceSongRequest, envelope.CmdRequestState, `{"value":false}`, `{"event":"REQUEST_STATE","data":{"value":false}}`},
		{"show video", envelope.SurfaceSongRequest, envelope.CmdShowVideo, ``, `{"event":"SHOW_VIDEO"}`},
		{"backup playlist form", envelope.SurfaceSongRequest, envelope.CmdSetBackupPlaylist, `{"playlist_url":"https://youtube.com/playlist?list=PL1"}`, `{"event":"SET_BACKUP_PLAYLIST","data":{"playlist_url":"https://youtube.com/playlist?list=PL1"}}`},
		{"player remove", envelope.SurfacePlayer, envelope.CmdRemove, `{"database_id":5}`, `{"event":"REMOVE","data":{"database_id":5}}`},
		{"player skip", envelope.SurfacePlayer, envelope.CmdSkip, ``, `{"event":"SKIP"}`},
		{"player ready", envelope.SurfacePlayer, envelope.CmdPlayerReady, ``, `{"event":"ready"}`},
		{"player requeue", envelope.SurfacePlayer, envelope.CmdRequeue, `{"database_id":6}`, `{"event":"REQUEUE","data":{"database_id":6}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &recordingSender{}
			c := New(tt.surface, s, nil)
			require.NoError(t, c.Handle(context.Background(), tt.event, json.RawMessage(tt.body)))
			require.Len(t, s.sent, 1)
			require.JSONEq(t, tt.want, s.last(t))
		})
	}
}

func TestHandleRejects(t *testing.T) {
	tests := []struct {
		name    string
		surface string
		event   string
		body    string
		want    error
	}{
		{"volume missing", envelope.SurfaceSongRequest, envelope.CmdVolume, `{}`, ErrInvalidArgs},
		{"volume not a number", envelope.SurfaceSongRequest, envelope.CmdVolume, `{"volume":"loud"}`, ErrInvalidArgs},
		{"ban without song", envelope.SurfaceSongRequest, envelope.CmdBan, `{}`, ErrInvalidArgs},
		{"move without target", envelope.SurfaceSongRequest, envelope.CmdMove, `{"database_id":4}`, ErrInvalidArgs},
		{"toggle without value", envelope.SurfaceSongRequest, envelope.CmdAutoPlayState, ``, ErrInvalidArgs},
		{"empty form", envelope.SurfaceSongRequest, envelope.CmdAddMedia, `{}`, ErrInvalidArgs},
		{"auth is not a command", envelope.SurfaceSongRequest, envelope.CmdAuth, ``, ErrEventNotAllowed},
		{"delete on player", envelope.SurfacePlayer, envelope.CmdDelete, `{"database_id":1}`, ErrEventNotAllowed},
		{"overlay", envelope.SurfaceOverlay, envelope.CmdNext, ``, ErrEventNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &recordingSender{}
			c := New(tt.surface, s, nil)
			require.ErrorIs(t, c.Handle(context.Background(), tt.event, json.RawMessage(tt.body)), tt.want)
			require.Empty(t, s.sent)
		})
	}
}

func TestSenderErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	c := New(envelope.SurfaceSongRequest, &recordingSender{err: boom}, nil)
	require.ErrorIs(t, c.Next(context.Background()), boom)
}
