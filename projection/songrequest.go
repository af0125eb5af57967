package projection

import (
	"context"
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/onnwee/overlay-relay/dispatch"
	"github.com/onnwee/overlay-relay/envelope"
	"github.com/onnwee/overlay-relay/hub"
)

// SongInfo describes a video known to the song-request module.
type SongInfo struct {
	VideoID   string `json:"video_id"`
	Title     string `json:"title"`
	Banned    bool   `json:"banned"`
	Favourite bool   `json:"favourite"`
}

// QueuedSong is a row of the playlist, backup playlist or history tables.
type QueuedSong struct {
	DatabaseID      int       `json:"database_id"`
	RequestedBy     string    `json:"requested_by"`
	CurrentSongTime float64   `json:"current_song_time"`
	SongInfo        *SongInfo `json:"song_info"`
}

// ModuleState mirrors the module toggles.
type ModuleState struct {
	Enabled          bool   `json:"enabled"`
	RequestsOpen     bool   `json:"requests_open"`
	AutoPlay         bool   `json:"auto_play"`
	BackupPlaylist   bool   `json:"backup_playlist"`
	Paused           bool   `json:"paused"`
	UseSpotify       bool   `json:"use_spotify"`
	ShowVideo        bool   `json:"show_video"`
	PlayOnStream     bool   `json:"play_on_stream"`
	BackupPlaylistID string `json:"backup_playlist_id"`
}

// Timestamp is a unix time in seconds sent either as a number or a string.
type Timestamp float64

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*t = Timestamp(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*t = Timestamp(n)
	return nil
}

type VolumePayload struct {
	Volume int `json:"volume"`
}

type ModuleStatePayload struct {
	ModuleState ModuleState `json:"module_state"`
}

type CurrentSongPayload struct {
	CurrentSong      *QueuedSong `json:"current_song"`
	CurrentTimestamp Timestamp   `json:"current_timestamp"`
}

type PlaylistPayload struct {
	Playlist []QueuedSong `json:"playlist"`
}

type BackupPlaylistPayload struct {
	BackupPlaylist []QueuedSong `json:"backup_playlist"`
}

type HistoryListPayload struct {
	HistoryList []QueuedSong `json:"history_list"`
}

type FavouriteListPayload struct {
	FavouriteList []SongInfo `json:"favourite_list"`
}

type BannedListPayload struct {
	BannedList []SongInfo `json:"banned_list"`
}

// InitializePayload is the full-state snapshot of the admin dashboard.
type InitializePayload struct {
	VolumePayload
	ModuleStatePayload
	CurrentSongPayload
	PlaylistPayload
	BackupPlaylistPayload
	HistoryListPayload
	FavouriteListPayload
	BannedListPayload
}

type AlertMessagePayload struct {
	Success  bool   `json:"success"`
	Header   string `json:"header"`
	Text     string `json:"text"`
	Duration int    `json:"duration"`
}

// PlayerCue is published with hub.KindPlayer.
type PlayerCue struct {
	Action       string  `json:"action"`
	VideoID      string  `json:"video_id,omitempty"`
	StartSeconds float64 `json:"start_seconds,omitempty"`
	Volume       float64 `json:"volume,omitempty"`
}

// Player cue actions.
const (
	CueLoad   = "load"
	CueStop   = "stop"
	CuePause  = "pause"
	CuePlay   = "play"
	CueSeek   = "seek"
	CueVolume = "volume"
)

type alert struct {
	ID      int
	Success bool
	Header  string
	Text    string
}

// SongRequestAdmin is the song-request admin dashboard widget.
type SongRequestAdmin struct {
	*widget

	volume      int
	state       ModuleState
	current     *QueuedSong
	playlist    []QueuedSong
	backup      []QueuedSong
	history     []QueuedSong
	favourites  []SongInfo
	banned      []SongInfo
	alerts      []*alert
	nextAlertID int
}

// NewSongRequestAdmin creates the admin dashboard widget.
func NewSongRequestAdmin(opts Options) *SongRequestAdmin {
	a := &SongRequestAdmin{widget: newWidget(envelope.SurfaceSongRequest, songRequestTemplates, opts)}
	a.mu.Lock()
	a.render("volume", a.volume)
	a.render("module_state", a.state)
	a.render("current_song", a.current)
	a.render("playlist", a.playlist)
	a.render("backup_playlist", a.backup)
	a.render("history", a.history)
	a.render("favourites", a.favourites)
	a.render("banned", a.banned)
	a.render("alerts", a.alerts)
	a.mu.Unlock()
	return a
}

// Register binds the admin dashboard handlers to d.
func (a *SongRequestAdmin) Register(d *dispatch.Dispatcher) {
	dispatch.On(d, envelope.EventInitialize, a.handleInitialize)
	dispatch.On(d, envelope.EventPlay, func(_ context.Context, p CurrentSongPayload) { a.setCurrentSong(p, true) })
	dispatch.On(d, envelope.EventUpdateCurrentSong, func(_ context.Context, p CurrentSongPayload) { a.setCurrentSong(p, false) })
	dispatch.On(d, envelope.EventVolume, func(_ context.Context, p VolumePayload) { a.locked(func() { a.setVolume(p) }) })
	dispatch.On(d, envelope.EventModuleState, func(_ context.Context, p ModuleStatePayload) { a.locked(func() { a.setModuleState(p) }) })
	dispatch.On(d, envelope.EventPlaylist, func(_ context.Context, p PlaylistPayload) { a.locked(func() { a.setPlaylist(p) }) })
	dispatch.On(d, envelope.EventBackupPlaylist, func(_ context.Context, p BackupPlaylistPayload) { a.locked(func() { a.setBackupPlaylist(p) }) })
	dispatch.On(d, envelope.EventHistoryList, func(_ context.Context, p HistoryListPayload) { a.locked(func() { a.setHistory(p) }) })
	dispatch.On(d, envelope.EventFavouriteList, func(_ context.Context, p FavouriteListPayload) { a.locked(func() { a.setFavourites(p) }) })
	dispatch.On(d, envelope.EventBannedList, func(_ context.Context, p BannedListPayload) { a.locked(func() { a.setBanned(p) }) })
	dispatch.On(d, envelope.EventAlertMessage, a.handleAlert)
}

func (a *SongRequestAdmin) locked(f func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f()
}

// withSongInfo drops rows that arrived without song_info; they cannot be rendered.
func withSongInfo(songs []QueuedSong) []QueuedSong {
	return lo.Filter(songs, func(s QueuedSong, _ int) bool { return s.SongInfo != nil })
}

func (a *SongRequestAdmin) handleInitialize(_ context.Context, p InitializePayload) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setVolume(p.VolumePayload)
	a.setModuleState(p.ModuleStatePayload)
	a.applyCurrentSong(p.CurrentSongPayload, true)
	a.setPlaylist(p.PlaylistPayload)
	a.setBackupPlaylist(p.BackupPlaylistPayload)
	a.setHistory(p.HistoryListPayload)
	a.setFavourites(p.FavouriteListPayload)
	a.setBanned(p.BannedListPayload)
}

func (a *SongRequestAdmin) setVolume(p VolumePayload) {
	a.volume = min(max(p.Volume, 0), 100)
	a.render("volume", a.volume)
}

func (a *SongRequestAdmin) setModuleState(p ModuleStatePayload) {
	a.state = p.ModuleState
	a.render("module_state", a.state)
}

func (a *SongRequestAdmin) setCurrentSong(p CurrentSongPayload, load bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applyCurrentSong(p, load)
}

// applyCurrentSong renders the now-playing panel. With load set (the "play"
// event and snapshots) it also cues the embedded player, starting at the
// song's server-side position plus the time the frame spent in flight.
func (a *SongRequestAdmin) applyCurrentSong(p CurrentSongPayload, load bool) {
	if p.CurrentSong == nil || p.CurrentSong.SongInfo == nil {
		a.current = nil
		a.render("current_song", a.current)
		if load {
			a.cue(hub.KindPlayer, PlayerCue{Action: CueStop})
		}
		return
	}

	song := *p.CurrentSong
	a.current = &song
	a.render("current_song", a.current)
	if !load {
		return
	}

	now := float64(a.clock.Now().UnixMilli()) / 1000
	elapsed := math.Floor(now) - float64(p.CurrentTimestamp) + 0.5
	start := math.Round((song.CurrentSongTime+elapsed)*100) / 100
	if start <= 0 {
		start = 0.01
	}
	a.cue(hub.KindPlayer, PlayerCue{Action: CueLoad, VideoID: song.SongInfo.VideoID, StartSeconds: start})
}

func (a *SongRequestAdmin) setPlaylist(p PlaylistPayload) {
	a.playlist = withSongInfo(p.Playlist)
	a.render("playlist", a.playlist)
}

func (a *SongRequestAdmin) setBackupPlaylist(p BackupPlaylistPayload) {
	a.backup = withSongInfo(p.BackupPlaylist)
	a.render("backup_playlist", a.backup)
}

func (a *SongRequestAdmin) setHistory(p HistoryListPayload) {
	a.history = withSongInfo(p.HistoryList)
	a.render("history", a.history)
}

func (a *SongRequestAdmin) setFavourites(p FavouriteListPayload) {
	a.favourites = slices.Clone(p.FavouriteList)
	a.render("favourites", a.favourites)
}

func (a *SongRequestAdmin) setBanned(p BannedListPayload) {
	a.banned = slices.Clone(p.BannedList)
	a.render("banned", a.banned)
}

// handleAlert appends a banner that removes itself after duration ms. Each
// banner keeps its own timer.
func (a *SongRequestAdmin) handleAlert(_ context.Context, p AlertMessagePayload) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextAlertID++
	al := &alert{ID: a.nextAlertID, Success: p.Success, Header: p.Header, Text: p.Text}
	a.alerts = append(a.alerts, al)
	a.render("alerts", a.alerts)

	a.after(time.Duration(max(p.Duration, 0))*time.Millisecond, func() {
		a.alerts = slices.DeleteFunc(a.alerts, func(x *alert) bool { return x == al })
		a.render("alerts", a.alerts)
	})
}

// ModuleState returns the last module state received.
func (a *SongRequestAdmin) ModuleState() ModuleState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}
