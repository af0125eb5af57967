package projection

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/onnwee/overlay-relay/dispatch"
	"github.com/onnwee/overlay-relay/envelope"
	"github.com/onnwee/overlay-relay/hub"
)

// initializeLead is added to the snapshot's song position to cover player startup.
const initializeLead = 2.5

const (
	backupRequester = "Backup Playlist"
	nothingPlaying  = "No songs are currently playing"
)

// Track is a row of the player page's playlist or history.
type Track struct {
	DatabaseID  int     `json:"database_id"`
	VideoID     string  `json:"video_id"`
	VideoTitle  string  `json:"video_title"`
	VideoLength int     `json:"video_length"`
	RequestedBy *string `json:"requested_by"`
}

type PlayerCurrentSong struct {
	VideoID         string  `json:"video_id"`
	VideoTitle      string  `json:"video_title"`
	RequestedBy     *string `json:"requested_by"`
	CurrentSongTime float64 `json:"current_song_time"`
}

type PlayerInitializePayload struct {
	Playlist    []Track            `json:"playlist"`
	History     []Track            `json:"history"`
	CurrentSong *PlayerCurrentSong `json:"currentSong"`
	Paused      bool               `json:"paused"`
	Volume      float64            `json:"volume"`
	Open        bool               `json:"open"`
}

type PlayerPlayPayload struct {
	VideoID     string  `json:"video_id"`
	VideoTitle  string  `json:"video_title"`
	RequestedBy *string `json:"requested_by"`
}

type PlayerVolumePayload struct {
	Volume float64 `json:"volume"`
}

type SeekPayload struct {
	SeekTime float64 `json:"seek_time"`
}

type TrackListPayload struct {
	Playlist []Track `json:"playlist"`
}

type HistoryPayload struct {
	History []Track `json:"history"`
}

type trackRow struct {
	DatabaseID int
	Number     string
	Title      string
	Length     string
}

type playerState struct {
	Paused      bool
	Volume      float64
	CurrentTime float64
	Open        bool
}

func requester(r *string) string {
	if r == nil {
		return backupRequester
	}
	return *r
}

// formatLength renders seconds as m:ss.
func formatLength(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func trackRows(tracks []Track) []trackRow {
	return lo.Map(tracks, func(t Track, i int) trackRow {
		return trackRow{
			DatabaseID: t.DatabaseID,
			Number:     fmt.Sprintf("%02d", i+1),
			Title:      t.VideoTitle + " ~ " + requester(t.RequestedBy),
			Length:     formatLength(t.VideoLength),
		}
	})
}

// SongPlayer is the song-request player page widget.
type SongPlayer struct {
	*widget

	nowPlaying string
	videoID    string
	playlist   []Track
	history    []Track
	state      playerState
}

// NewSongPlayer creates the player page widget.
func NewSongPlayer(opts Options) *SongPlayer {
	p := &SongPlayer{
		widget:     newWidget(envelope.SurfacePlayer, playerTemplates, opts),
		nowPlaying: nothingPlaying,
	}
	p.mu.Lock()
	p.render("now_playing", p.nowPlaying)
	p.render("playlist", trackRows(p.playlist))
	p.render("history", trackRows(p.history))
	p.render("player_state", p.state)
	p.mu.Unlock()
	return p
}

// Register binds the player page handlers to d.
func (p *SongPlayer) Register(d *dispatch.Dispatcher) {
	dispatch.On(d, envelope.EventInitialize, p.handleInitialize)
	dispatch.On(d, envelope.EventPlay, func(_ context.Context, pl PlayerPlayPayload) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.play(pl)
		p.render("player_state", p.state)
		p.cueCurrent()
	})
	dispatch.On(d, envelope.EventVolume, func(_ context.Context, v PlayerVolumePayload) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.state.Volume = v.Volume / 100
		p.render("player_state", p.state)
		p.cue(hub.KindPlayer, PlayerCue{Action: CueVolume, Volume: p.state.Volume})
	})
	dispatch.On(d, envelope.EventSeek, func(_ context.Context, s SeekPayload) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.state.CurrentTime = s.SeekTime
		p.state.Paused = true
		p.render("player_state", p.state)
		p.cue(hub.KindPlayer, PlayerCue{Action: CueSeek, StartSeconds: s.SeekTime})
	})
	dispatch.On(d, envelope.EventPause, func(_ context.Context, _ struct{}) { p.setPaused(true) })
	dispatch.On(d, envelope.EventResume, func(_ context.Context, _ struct{}) { p.setPaused(false) })
	dispatch.On(d, envelope.EventPlaylist, func(_ context.Context, t TrackListPayload) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.setPlaylist(t.Playlist)
	})
	dispatch.On(d, envelope.EventHistory, func(_ context.Context, h HistoryPayload) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.setHistory(h.History)
	})
	dispatch.On(d, envelope.EventStop, func(_ context.Context, _ struct{}) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.play(PlayerPlayPayload{})
		p.render("player_state", p.state)
		p.cueCurrent()
	})
}

func (p *SongPlayer) handleInitialize(_ context.Context, in PlayerInitializePayload) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.setPlaylist(in.Playlist)
	p.setHistory(in.History)
	if cs := in.CurrentSong; cs != nil {
		p.play(PlayerPlayPayload{VideoID: cs.VideoID, VideoTitle: cs.VideoTitle, RequestedBy: cs.RequestedBy})
		p.state.CurrentTime = cs.CurrentSongTime + initializeLead
	} else {
		p.play(PlayerPlayPayload{})
	}
	p.state.Paused = in.Paused
	p.state.Volume = in.Volume / 100
	p.state.Open = in.Open
	p.render("player_state", p.state)
	p.cueCurrent()
}

// cueCurrent tells the page to load the current song at the current
// position, or to stop when nothing is playing.
func (p *SongPlayer) cueCurrent() {
	if p.videoID == "" {
		p.cue(hub.KindPlayer, PlayerCue{Action: CueStop})
		return
	}
	p.cue(hub.KindPlayer, PlayerCue{Action: CueLoad, VideoID: p.videoID, StartSeconds: p.state.CurrentTime})
}

// play swaps the loaded song and resets the position. An empty video id
// means nothing is playing.
func (p *SongPlayer) play(pl PlayerPlayPayload) {
	p.state.CurrentTime = 0
	p.videoID = pl.VideoID
	if pl.VideoID == "" {
		p.nowPlaying = nothingPlaying
	} else {
		p.nowPlaying = pl.VideoTitle + " ~ " + requester(pl.RequestedBy)
	}
	p.render("now_playing", p.nowPlaying)
}

func (p *SongPlayer) setPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Paused = paused
	p.render("player_state", p.state)
	if paused {
		p.cue(hub.KindPlayer, PlayerCue{Action: CuePause})
	} else {
		p.cue(hub.KindPlayer, PlayerCue{Action: CuePlay})
	}
}

func (p *SongPlayer) setPlaylist(tracks []Track) {
	p.playlist = tracks
	p.render("playlist", trackRows(p.playlist))
}

func (p *SongPlayer) setHistory(tracks []Track) {
	p.history = tracks
	p.render("history", trackRows(p.history))
}

// Playlist returns the queued tracks in display order.
func (p *SongPlayer) Playlist() []Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Track(nil), p.playlist...)
}
