package projection

import (
	"fmt"
	"html/template"
)

var funcs = template.FuncMap{
	"pct": func(f float64) string { return fmt.Sprintf("%.2f%%", f*100) },
	"num": func(f float64) string { return fmt.Sprintf("%.2f", f) },
	"inc": func(i int) int { return i + 1 },
}

var overlayTemplates = template.Must(template.New("overlay").Funcs(funcs).Parse(`
{{- define "notifications" -}}
<div class="notifications">
{{- with .Combo}}<div id="emote_combo" class="animated {{if .Ended}}bounceOutLeft ended{{else}}bounceInLeft{{end}}">x<span class="count">{{.Count}}</span> <img class="comboemote" src="{{.URL}}" style="zoom: {{num .Zoom}}" alt="{{.Code}}"> combo!</div>{{end}}
{{- range .Items}}
<div class="notification{{if .Leaving}} leaving{{end}}" data-id="{{.ID}}">
{{- if .Timeout}}<span class="user">{{.User}}</span> timed out <span class="victim">{{.Victim}}</span> EleGiggle{{else}}{{.Message}}{{end -}}
</div>
{{- end}}
</div>
{{- end}}

{{- define "elements" -}}
<div class="elements">
{{- range .}}
{{- if eq .Kind "box"}}
<div class="exploding{{if .Leaving}} leaving{{end}}" data-id="{{.ID}}" style="left: {{.Left}}; top: {{.Top}}{{with .Color}}; background-color: {{.}}{{end}}"></div>
{{- else if eq .Kind "emote"}}
<div class="absemote_container{{if .Leaving}} leaving{{end}}" data-id="{{.ID}}" style="left: {{.Left}}; top: {{.Top}}; opacity: {{num .Opacity}}"><img class="absemote" src="{{.URL}}" alt="{{.Code}}" style="transform: scale({{num .Scale}})"></div>
{{- else}}
<img class="absemote{{if .Leaving}} leaving{{end}}" data-id="{{.ID}}" src="{{.URL}}" style="left: {{.Left}}; top: {{.Top}}{{with .Width}}; width: {{.}}{{end}}{{with .Height}}; height: {{.}}{{end}}">
{{- end}}
{{- end}}
</div>
{{- end}}

{{- define "bets" -}}
{{- if .Active -}}
<div class="bets {{.Game}}"{{if .TimeLeft}} data-time-left="{{.TimeLeft}}"{{end}}>
<div class="bar win" style="width: {{pct .WinShare}}; background-color: #64DD17"><span class="points">{{.Win}}</span>{{if .ShowBets}} <span class="bettors">{{.WinBettors}}</span>{{end}}</div>
<div class="bar loss" style="width: {{pct .LossShare}}; background-color: #D50000"><span class="points">{{.Loss}}</span>{{if .ShowBets}} <span class="bettors">{{.LossBettors}}</span>{{end}}</div>
</div>
{{- end -}}
{{- end}}

{{- define "highlight" -}}
{{- with . -}}
<div class="highlight"><span class="user">{{.User}}</span><p class="message">{{.Message}}</p></div>
{{- end -}}
{{- end}}
`))

var songRequestTemplates = template.Must(template.New("songrequest").Funcs(funcs).Parse(`
{{- define "heart" -}}
<button class="circular ui icon basic button" data-action="favourite"><i class="big heart{{if .Favourite}} outline{{end}} icon"></i></button>
{{- end}}

{{- define "ban" -}}
<div class="item" data-action="ban">{{if .Banned}}Unban{{else}}Ban{{end}} Video</div>
{{- end}}

{{- define "volume" -}}
<div id="volume" class="ui progress" data-percent="{{.}}"><div class="bar" style="width: {{.}}%"></div></div>
{{- end}}

{{- define "module_state" -}}
<div class="module_state">
<button id="video_showing_state">{{if .ShowVideo}}Hide Video{{else}}Show Video{{end}}</button>
<button id="requests_open_state">{{if .RequestsOpen}}Disable Requests{{else}}Enable Requests{{end}}</button>
<button id="auto_play_state">{{if .AutoPlay}}Disable Auto Play{{else}}Enable Auto Play{{end}}</button>
<button id="backup_playlist_usage_state">{{if .BackupPlaylist}}Disable Backup Playlist{{else}}Enable Backup Playlist{{end}}</button>
<button id="use_spotify_state">{{if .UseSpotify}}Disable Spotify{{else}}Enable Spotify{{end}}</button>
<button id="play_on_stream_state">{{if .PlayOnStream}}Play in browser{{else}}Play on stream{{end}}</button>
<button id="control_state">{{if .Paused}}<i class="play icon"></i>{{else}}<i class="pause icon"></i>{{end}}</button>
{{- if .BackupPlaylistID}}
<input id="backup_playlist_input" value="https://www.youtube.com/playlist?list={{.BackupPlaylistID}}">
{{- end}}
</div>
{{- end}}

{{- define "current_song" -}}
<div class="current_song">
{{- if .}}
<p id="status">Now Playing - {{.RequestedBy}}</p>
<p id="song_title">{{.SongInfo.Title}}</p>
<p id="url"><a href="https://www.youtube.com/watch?v={{.SongInfo.VideoID}}" target="_blank">https://www.youtube.com/watch?v={{.SongInfo.VideoID}}</a></p>
<img id="current_thumbnail" src="https://img.youtube.com/vi/{{.SongInfo.VideoID}}/maxresdefault.jpg">
<button id="ban_current_video">Ban Video</button>
<button id="favourite_current_video">{{if .SongInfo.Favourite}}Unfavourite Video{{else}}Favourite Video{{end}}</button>
{{- else}}
<p id="status">No songs currently playing!</p>
<button id="ban_current_video" class="disabled">Ban Video</button>
<button id="favourite_current_video" class="disabled">Favourite Video</button>
{{- end}}
</div>
{{- end}}

{{- define "playlist" -}}
<tbody id="currentqueuebody">
{{- range .}}
<tr data-id="{{.DatabaseID}}" data-banned="{{.SongInfo.Banned}}" data-favourite="{{.SongInfo.Favourite}}">
<td class="center aligned"><i class="bars icon"></i></td>
<td><p><a href="https://youtu.be/{{.SongInfo.VideoID}}" target="_blank">{{.SongInfo.Title}}</a></p><p>Requested by {{.RequestedBy}}</p></td>
<td class="right aligned">{{template "heart" .SongInfo}}<div class="ui dropdown"><div class="menu"><div class="item" data-action="delete">Delete Video</div>{{template "ban" .SongInfo}}</div></div></td>
</tr>
{{- end}}
</tbody>
{{- end}}

{{- define "backup_playlist" -}}
<tbody id="backupqueuebody">
{{- range .}}
<tr data-id="{{.DatabaseID}}" data-banned="{{.SongInfo.Banned}}" data-favourite="{{.SongInfo.Favourite}}">
<td class="center aligned"><i class="bars icon"></i></td>
<td><a href="https://youtu.be/{{.SongInfo.VideoID}}" target="_blank">{{.SongInfo.Title}}</a></td>
<td class="right aligned">{{template "heart" .SongInfo}}<div class="ui dropdown"><div class="menu"><div class="item" data-action="delete">Delete Video</div>{{template "ban" .SongInfo}}</div></div></td>
</tr>
{{- end}}
</tbody>
{{- end}}

{{- define "history" -}}
<tbody id="historybody">
{{- range $i, $s := .}}
<tr data-histid="{{$s.DatabaseID}}" data-banned="{{$s.SongInfo.Banned}}" data-favourite="{{$s.SongInfo.Favourite}}">
<td>{{inc $i}}.</td>
<td><p><a href="https://youtu.be/{{$s.SongInfo.VideoID}}" target="_blank">{{$s.SongInfo.Title}}</a></p><p>Requested by {{$s.RequestedBy}}</p></td>
<td class="right aligned">{{template "heart" $s.SongInfo}}<button class="circular ui icon basic button" data-action="request"><i class="big undo icon"></i></button><div class="ui dropdown"><div class="menu">{{template "ban" $s.SongInfo}}</div></div></td>
</tr>
{{- end}}
</tbody>
{{- end}}

{{- define "favourites" -}}
<tbody id="favouritelist">
{{- range $i, $s := .}}
<tr data-infoid="{{$s.VideoID}}" data-banned="{{$s.Banned}}" data-favourite="{{$s.Favourite}}">
<td>{{inc $i}}.</td>
<td><a href="https://youtu.be/{{$s.VideoID}}" target="_blank">{{$s.Title}}</a></td>
<td class="right aligned">{{template "heart" $s}}<button class="circular ui icon basic button" data-action="request"><i class="big undo icon"></i></button><div class="ui dropdown"><div class="menu">{{template "ban" $s}}</div></div></td>
</tr>
{{- end}}
</tbody>
{{- end}}

{{- define "banned" -}}
<tbody id="bannedlist">
{{- range $i, $s := .}}
<tr data-infoid="{{$s.VideoID}}" data-banned="{{$s.Banned}}" data-favourite="{{$s.Favourite}}">
<td>{{inc $i}}.</td>
<td><a href="https://youtu.be/{{$s.VideoID}}" target="_blank">{{$s.Title}}</a></td>
<td class="right aligned">{{template "heart" $s}}<div class="ui dropdown"><div class="menu">{{template "ban" $s}}</div></div></td>
</tr>
{{- end}}
</tbody>
{{- end}}

{{- define "alerts" -}}
<div id="messages-box">
{{- range .}}
<div class="ui {{if .Success}}success{{else}}error{{end}} message" data-id="{{.ID}}"><div class="header">{{.Header}}</div><p>{{.Text}}</p></div>
{{- end}}
</div>
{{- end}}
`))

var playerTemplates = template.Must(template.New("player").Funcs(funcs).Parse(`
{{- define "now_playing" -}}
<span id="npAction">{{.}}</span>
{{- end}}

{{- define "playlist" -}}
<tbody id="plList">
{{- range .}}
<tr class="plItem" data-id="{{.DatabaseID}}"><td class="plNum">{{.Number}}.</td><td class="plTitle">{{.Title}}</td><td class="plLength">{{.Length}}</td><td class="plRemove" data-action="remove"></td></tr>
{{- end}}
</tbody>
{{- end}}

{{- define "history" -}}
<tbody id="buList">
{{- range .}}
<tr class="buItem" data-id="{{.DatabaseID}}"><td class="buNum">{{.Number}}.</td><td class="buTitle">{{.Title}}</td><td class="buLength">{{.Length}}</td><td class="buRequeue" data-action="requeue"></td></tr>
{{- end}}
</tbody>
{{- end}}

{{- define "player_state" -}}
<div id="player_state" data-paused="{{.Paused}}" data-volume="{{num .Volume}}" data-current-time="{{num .CurrentTime}}" data-open="{{.Open}}"></div>
{{- end}}
`))
