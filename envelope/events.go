package envelope

// Inbound events shared by several pages.
const (
	EventInitialize = "initialize"
	EventPlay       = "play"
	EventVolume     = "volume"
	EventPlaylist   = "playlist"
)

// Inbound events of the song-request admin dashboard.
const (
	EventBackupPlaylist    = "backup_playlist"
	EventHistoryList       = "history_list"
	EventFavouriteList     = "favourite_list"
	EventBannedList        = "banned_list"
	EventModuleState       = "module_state"
	EventUpdateCurrentSong = "update_current_song"
	EventAlertMessage      = "alert_message"
)

// Inbound events of the song-request player page.
const (
	EventSeek    = "seek"
	EventPause   = "pause"
	EventResume  = "resume"
	EventStop    = "stop"
	EventHistory = "history"
)

// Inbound events of the stream overlay.
const (
	EventNewBox          = "new_box"
	EventNewEmotes       = "new_emotes"
	EventNotification    = "notification"
	EventTimeout         = "timeout"
	EventPlaySound       = "play_sound"
	EventEmoteCombo      = "emote_combo"
	EventShowCustomImage = "show_custom_image"
	EventRefresh         = "refresh"
	EventReload          = "reload"
	EventHSBetNewGame    = "hsbet_new_game"
	EventHSBetUpdateData = "hsbet_update_data"
	EventBetNewGame      = "bet_new_game"
	EventBetUpdateData   = "bet_update_data"
	EventBetShowBets     = "bet_show_bets"
	EventBetCloseGame    = "bet_close_game"
	EventHighlight       = "highlight"
	EventSkipHighlight   = "skip_highlight"
)

// Outbound events of the song-request admin dashboard.
const (
	CmdAuth                = "AUTH"
	CmdReady               = "READY"
	CmdNext                = "NEXT"
	CmdPrevious            = "PREVIOUS"
	CmdPause               = "PAUSE"
	CmdResume              = "RESUME"
	CmdSeek                = "SEEK"
	CmdVolume              = "VOLUME"
	CmdBan                 = "BAN"
	CmdUnban               = "UNBAN"
	CmdFavourite           = "FAVOURITE"
	CmdUnfavourite         = "UNFAVOURITE"
	CmdDelete              = "DELETE"
	CmdMove                = "MOVE"
	CmdRequest             = "REQUEST"
	CmdRequestState        = "REQUEST_STATE"
	CmdAutoPlayState       = "AUTO_PLAY_STATE"
	CmdBackupPlaylistState = "BACKUP_PLAYLIST_STATE"
	CmdUseSpotifyState     = "USE_SPOTIFY_STATE"
	CmdPlayOnStreamState   = "PLAY_ON_STREAM_STATE"
	CmdShowVideo           = "SHOW_VIDEO"
	CmdHideVideo           = "HIDE_VIDEO"
	CmdAddMedia            = "ADD_MEDIA"
	CmdSetBackupPlaylist   = "SET_BACKUP_PLAYLIST"
)

// Outbound events specific to the song-request player page.
const (
	CmdPlayerAuth  = "auth"
	CmdPlayerReady = "ready"
	CmdNextSong    = "next_song"
	CmdSkip        = "SKIP"
	CmdRemove      = "REMOVE"
	CmdPlaySong    = "PLAY"
	CmdRequeue     = "REQUEUE"
)

// Surfaces are the pages a connection can serve. The same tag may carry a
// different payload on each surface.
const (
	SurfaceOverlay     = "overlay"
	SurfaceSongRequest = "songrequest"
	SurfacePlayer      = "player"
)

// Surfaces lists every known surface.
var Surfaces = []string{SurfaceOverlay, SurfaceSongRequest, SurfacePlayer}

// AuthEvent returns the tag a surface authenticates with when its socket
// opens. The overlay never authenticates.
func AuthEvent(surface string) (string, bool) {
	switch surface {
	case SurfaceSongRequest:
		return CmdAuth, true
	case SurfacePlayer:
		return CmdPlayerAuth, true
	default:
		return "", false
	}
}
