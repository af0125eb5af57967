package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/onnwee/overlay-relay/dispatch"
	"github.com/onnwee/overlay-relay/envelope"
	"github.com/onnwee/overlay-relay/hub"
)

// Overlay timings.
const (
	notificationDisplay = 2 * time.Second
	fadeOut             = time.Second
	boxDisplay          = 5 * time.Second
	imageDisplay        = 5 * time.Second
	comboCreateExpiry   = 4 * time.Second
	comboRefreshExpiry  = 3 * time.Second
	comboExit           = 500 * time.Millisecond
)

// Emote is one emote with its image URLs keyed by size ("1", "2", "4").
type Emote struct {
	Code string            `json:"code"`
	URLs map[string]string `json:"urls"`
}

// largest returns the URL of the biggest size and the zoom needed to show it
// at the size-4 footprint.
func (e Emote) largest() (url string, needsScale float64, ok bool) {
	sizes := lo.FilterMap(lo.Keys(e.URLs), func(k string, _ int) (int, bool) {
		n, err := strconv.Atoi(k)
		return n, err == nil && n > 0
	})
	if len(sizes) == 0 {
		return "", 0, false
	}
	size := lo.Max(sizes)
	return e.URLs[strconv.Itoa(size)], 4 / float64(size), true
}

type NewBoxPayload struct {
	Color string `json:"color"`
}

type NewEmotesPayload struct {
	Emotes          []Emote `json:"emotes"`
	Opacity         float64 `json:"opacity"`
	PersistenceTime int     `json:"persistence_time"`
	Scale           float64 `json:"scale"`
}

type NotificationPayload struct {
	Message string  `json:"message"`
	Length  float64 `json:"length"`
}

type TimeoutPayload struct {
	User   string `json:"user"`
	Victim string `json:"victim"`
}

type PlaySoundPayload struct {
	Link   string  `json:"link"`
	Volume float64 `json:"volume"`
}

type EmoteComboPayload struct {
	Emote Emote `json:"emote"`
	Count int   `json:"count"`
}

// CSSLength accepts a JSON number (pixels) or a CSS length string.
type CSSLength string

func (l *CSSLength) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*l = CSSLength(strconv.FormatFloat(n, 'f', -1, 64) + "px")
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("css length: %w", err)
	}
	*l = CSSLength(s)
	return nil
}

type CustomImagePayload struct {
	URL    string    `json:"url"`
	Width  CSSLength `json:"width"`
	Height CSSLength `json:"height"`
	X      *float64  `json:"x"`
	Y      *float64  `json:"y"`
}

type HSBetNewGamePayload struct {
	TimeLeft int `json:"time_left"`
	Win      int `json:"win"`
	Loss     int `json:"loss"`
}

type HSBetUpdatePayload struct {
	Win  int `json:"win"`
	Loss int `json:"loss"`
}

type BetUpdatePayload struct {
	WinPoints   int `json:"win_points"`
	LossPoints  int `json:"loss_points"`
	WinBettors  int `json:"win_bettors"`
	LossBettors int `json:"loss_bettors"`
}

type HighlightPayload struct {
	Speech  string `json:"speech"`
	Voice   string `json:"voice"`
	User    string `json:"user"`
	Message string `json:"message"`
}

// SoundCue is published with hub.KindSound.
type SoundCue struct {
	Link   string  `json:"link,omitempty"`
	Volume float64 `json:"volume"`
	Stop   bool    `json:"stop,omitempty"`
}

// ReloadCue is published with hub.KindReload.
type ReloadCue struct {
	BypassCache bool `json:"bypass_cache"`
}

type notificationItem struct {
	ID      int
	Message string
	Timeout bool
	User    string
	Victim  string
	Leaving bool
}

type comboView struct {
	Code  string
	URL   string
	Zoom  float64
	Count int
	Ended bool
}

type element struct {
	ID      int
	Kind    string
	Code    string
	Color   template.CSS
	URL     string
	Left    string
	Top     string
	Width   template.CSS
	Height  template.CSS
	Opacity float64
	Scale   float64
	Leaving bool
}

type betsView struct {
	Active      bool
	Game        string
	TimeLeft    int
	Win         int
	Loss        int
	WinBettors  int
	LossBettors int
	ShowBets    bool
}

func (b betsView) WinShare() float64 {
	if b.Win+b.Loss == 0 {
		return 0.5
	}
	return float64(b.Win) / float64(b.Win+b.Loss)
}

func (b betsView) LossShare() float64 { return 1 - b.WinShare() }

// Overlay is the stream overlay widget: floating notifications, emotes,
// boxes and images, the emote combo counter, bet charts and TTS highlights.
type Overlay struct {
	*widget
	rand func() float64

	nextID        int
	notifications []*notificationItem
	combo         *comboView
	comboSlot     *TimerSlot
	elements      []*element
	bets          betsView
	highlight     *HighlightPayload
}

// NewOverlay creates the overlay widget.
func NewOverlay(opts Options) *Overlay {
	o := &Overlay{
		widget: newWidget(envelope.SurfaceOverlay, overlayTemplates, opts),
		rand:   opts.Rand,
	}
	if o.rand == nil {
		o.rand = rand.Float64
	}
	o.comboSlot = NewTimerSlot(o.clock)
	o.mu.Lock()
	o.renderAll()
	o.mu.Unlock()
	return o
}

// Register binds the overlay handlers to d.
func (o *Overlay) Register(d *dispatch.Dispatcher) {
	dispatch.On(d, envelope.EventNewBox, o.handleNewBox)
	dispatch.On(d, envelope.EventNewEmotes, o.handleNewEmotes)
	dispatch.On(d, envelope.EventNotification, o.handleNotification)
	dispatch.On(d, envelope.EventTimeout, o.handleTimeout)
	dispatch.On(d, envelope.EventPlaySound, o.handlePlaySound)
	dispatch.On(d, envelope.EventEmoteCombo, o.handleEmoteCombo)
	dispatch.On(d, envelope.EventShowCustomImage, o.handleCustomImage)
	dispatch.On(d, envelope.EventRefresh, o.handleReload)
	dispatch.On(d, envelope.EventReload, o.handleReload)
	dispatch.On(d, envelope.EventHSBetNewGame, o.handleHSBetNewGame)
	dispatch.On(d, envelope.EventHSBetUpdateData, o.handleHSBetUpdate)
	dispatch.On(d, envelope.EventBetNewGame, o.handleBetNewGame)
	dispatch.On(d, envelope.EventBetUpdateData, o.handleBetUpdate)
	dispatch.On(d, envelope.EventBetShowBets, o.handleBetShowBets)
	dispatch.On(d, envelope.EventBetCloseGame, o.handleBetCloseGame)
	dispatch.On(d, envelope.EventHighlight, o.handleHighlight)
	dispatch.On(d, envelope.EventSkipHighlight, o.handleSkipHighlight)
}

func (o *Overlay) renderAll() {
	o.renderNotifications()
	o.renderElements()
	o.render("bets", o.bets)
	o.render("highlight", o.highlight)
}

func (o *Overlay) renderNotifications() {
	o.render("notifications", struct {
		Combo *comboView
		Items []*notificationItem
	}{o.combo, o.notifications})
}

func (o *Overlay) renderElements() {
	o.render("elements", o.elements)
}

func (o *Overlay) id() int {
	o.nextID++
	return o.nextID
}

func (o *Overlay) randomPos() string {
	return strconv.FormatFloat(o.rand()*100, 'f', 2, 64) + "%"
}

// addNotification prepends a notification shown for display, then faded out.
// Must be called with o.mu held.
func (o *Overlay) addNotification(n *notificationItem, display time.Duration) {
	n.ID = o.id()
	o.notifications = slices.Insert(o.notifications, 0, n)
	o.renderNotifications()

	o.after(display, func() {
		n.Leaving = true
		o.renderNotifications()
		o.after(fadeOut, func() {
			o.notifications = slices.DeleteFunc(o.notifications, func(x *notificationItem) bool { return x == n })
			o.renderNotifications()
		})
	})
}

// addElement shows a floating element for display, then fades it out.
// Must be called with o.mu held.
func (o *Overlay) addElement(e *element, display time.Duration) {
	e.ID = o.id()
	o.elements = append(o.elements, e)
	o.renderElements()

	o.after(display, func() {
		e.Leaving = true
		o.renderElements()
		o.after(fadeOut, func() {
			o.elements = slices.DeleteFunc(o.elements, func(x *element) bool { return x == e })
			o.renderElements()
		})
	})
}

func (o *Overlay) handleNewBox(_ context.Context, p NewBoxPayload) {
	o.mu.Lock()
	defer o.mu.Unlock()
	color, ok := cssColor(p.Color)
	if !ok && p.Color != "" {
		o.logger.Debug("dropping box color", slog.String("color", p.Color))
	}
	o.addElement(&element{Kind: "box", Color: color, Left: o.randomPos(), Top: o.randomPos()}, boxDisplay)
}

func (o *Overlay) handleNewEmotes(_ context.Context, p NewEmotesPayload) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, emote := range p.Emotes {
		url, needsScale, ok := emote.largest()
		if !ok {
			continue
		}
		o.addElement(&element{
			Kind:    "emote",
			Code:    emote.Code,
			URL:     url,
			Left:    o.randomPos(),
			Top:     o.randomPos(),
			Opacity: p.Opacity / 100,
			Scale:   p.Scale / 100 * needsScale,
		}, time.Duration(p.PersistenceTime)*time.Millisecond)
	}
}

func (o *Overlay) handleNotification(_ context.Context, p NotificationPayload) {
	display := notificationDisplay
	if p.Length > 0 {
		display = time.Duration(p.Length * float64(time.Second))
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.addNotification(&notificationItem{Message: p.Message}, display)
}

func (o *Overlay) handleTimeout(_ context.Context, p TimeoutPayload) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.addNotification(&notificationItem{Timeout: true, User: p.User, Victim: p.Victim}, notificationDisplay)
}

func (o *Overlay) handlePlaySound(_ context.Context, p PlaySoundPayload) {
	if p.Link == "" {
		return
	}
	o.cue(hub.KindSound, SoundCue{Link: p.Link, Volume: p.Volume / 100})
}

func (o *Overlay) handleEmoteCombo(_ context.Context, p EmoteComboPayload) {
	o.mu.Lock()
	defer o.mu.Unlock()

	url, zoom, _ := p.Emote.largest()
	if o.combo == nil {
		o.combo = &comboView{Code: p.Emote.Code}
		o.comboSlot.Arm(comboCreateExpiry, o.endCombo)
	} else {
		o.combo.Ended = false
		o.comboSlot.Arm(comboRefreshExpiry, o.endCombo)
	}
	o.combo.URL = url
	o.combo.Zoom = zoom
	o.combo.Count = p.Count
	o.renderNotifications()
}

// endCombo runs from the combo slot: it starts the exit animation and
// schedules the removal in the same slot.
func (o *Overlay) endCombo() {
	o.mu.Lock()
	defer o.mu.Unlock()
	// A refresh that raced the expiry re-armed the slot.
	if o.combo == nil || o.comboSlot.Pending() {
		return
	}
	o.combo.Ended = true
	o.renderNotifications()
	o.comboSlot.Arm(comboExit, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.combo == nil || !o.combo.Ended || o.comboSlot.Pending() {
			return
		}
		o.combo = nil
		o.renderNotifications()
	})
}

func (o *Overlay) handleCustomImage(_ context.Context, p CustomImagePayload) {
	if p.URL == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	e := &element{
		Kind:   "image",
		URL:    p.URL,
		Left:   o.randomPos(),
		Top:    o.randomPos(),
		Width:  o.imageSize("width", p.Width),
		Height: o.imageSize("height", p.Height),
	}
	if p.X != nil {
		e.Left = strconv.FormatFloat(*p.X, 'f', -1, 64) + "px"
	}
	if p.Y != nil {
		e.Top = strconv.FormatFloat(*p.Y, 'f', -1, 64) + "px"
	}
	o.addElement(e, imageDisplay)
}

func (o *Overlay) imageSize(name string, l CSSLength) template.CSS {
	v, ok := cssLength(l)
	if !ok && l != "" {
		o.logger.Debug("dropping image size", slog.String(name, string(l)))
	}
	return v
}

func (o *Overlay) handleReload(_ context.Context, _ struct{}) {
	o.cue(hub.KindReload, ReloadCue{BypassCache: true})
}

func (o *Overlay) handleHSBetNewGame(_ context.Context, p HSBetNewGamePayload) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bets = betsView{Active: true, Game: "hsbet", TimeLeft: p.TimeLeft, Win: p.Win, Loss: p.Loss}
	o.render("bets", o.bets)
}

func (o *Overlay) handleHSBetUpdate(_ context.Context, p HSBetUpdatePayload) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.bets.Active {
		return
	}
	o.bets.Win += p.Win
	o.bets.Loss += p.Loss
	o.render("bets", o.bets)
}

func (o *Overlay) handleBetNewGame(_ context.Context, _ struct{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bets = betsView{Active: true, Game: "bet"}
	o.render("bets", o.bets)
}

func (o *Overlay) handleBetUpdate(_ context.Context, p BetUpdatePayload) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bets.Active = true
	if o.bets.Game == "" {
		o.bets.Game = "bet"
	}
	o.bets.Win, o.bets.Loss = p.WinPoints, p.LossPoints
	o.bets.WinBettors, o.bets.LossBettors = p.WinBettors, p.LossBettors
	o.render("bets", o.bets)
}

func (o *Overlay) handleBetShowBets(_ context.Context, _ struct{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.bets.Active {
		return
	}
	o.bets.ShowBets = true
	o.render("bets", o.bets)
}

func (o *Overlay) handleBetCloseGame(_ context.Context, _ struct{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bets = betsView{}
	o.render("bets", o.bets)
}

func (o *Overlay) handleHighlight(_ context.Context, p HighlightPayload) {
	o.mu.Lock()
	o.highlight = &p
	o.render("highlight", o.highlight)
	o.mu.Unlock()

	if p.Speech != "" {
		o.cue(hub.KindSound, SoundCue{Link: "data:audio/mpeg;base64," + p.Speech, Volume: 1})
	}
}

func (o *Overlay) handleSkipHighlight(_ context.Context, _ struct{}) {
	o.mu.Lock()
	o.highlight = nil
	o.render("highlight", o.highlight)
	o.mu.Unlock()
	o.cue(hub.KindSound, SoundCue{Stop: true})
}
