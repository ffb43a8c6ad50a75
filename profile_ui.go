package main

import (
	"image/color"

	"github.com/ebitenui/ebitenui"
	imageui "github.com/ebitenui/ebitenui/image"
	"github.com/ebitenui/ebitenui/widget"
	ebtext "github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/milk9111/profilesong/preview"
	"golang.org/x/image/font/basicfont"
)

const controlsHint = "Left/Right: choose   Enter: open   Esc: close   C: copy song"

var (
	textColor  = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	mutedColor = color.NRGBA{R: 0xaa, G: 0xaa, B: 0xaa, A: 0xff}
)

// ProfilePage is the profile overlay plus the roster bar beneath it. It is
// the preview.View of the running controller.
type ProfilePage struct {
	UI *ebitenui.UI

	labels preview.LabelView

	root      *widget.Container
	panel     *widget.Container
	name      *widget.Text
	song      *widget.Text
	status    *widget.Text
	songTitle *widget.Text
	roster    *widget.Text
}

func NewProfilePage(onClose func()) *ProfilePage {
	panelImg := imageui.NewNineSliceColor(color.NRGBA{R: 0x00, G: 0x00, B: 0x00, A: 200})
	btnImg := imageui.NewNineSliceColor(color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 255})

	var face ebtext.Face = ebtext.NewGoXFace(basicfont.Face7x13)
	btnTextColor := &widget.ButtonTextColor{Idle: textColor}
	centered := widget.WidgetOpts.LayoutData(widget.RowLayoutData{Position: widget.RowLayoutPositionCenter})

	newText := func(label string, c color.Color) *widget.Text {
		return widget.NewText(
			widget.TextOpts.Text(label, face, c),
			widget.TextOpts.WidgetOpts(centered),
		)
	}

	p := &ProfilePage{
		name:      newText("", textColor),
		song:      newText(preview.SongLabel(0), textColor),
		status:    newText("", mutedColor),
		songTitle: newText("", mutedColor),
	}

	closeBtn := widget.NewButton(
		widget.ButtonOpts.Image(&widget.ButtonImage{Idle: btnImg, Pressed: btnImg}),
		widget.ButtonOpts.Text("Close", face, btnTextColor),
		widget.ButtonOpts.WidgetOpts(centered),
		widget.ButtonOpts.ClickedHandler(func(args *widget.ButtonClickedEventArgs) {
			onClose()
		}),
	)

	p.panel = widget.NewContainer(
		widget.ContainerOpts.BackgroundImage(panelImg),
		widget.ContainerOpts.Layout(widget.NewRowLayout(
			widget.RowLayoutOpts.Direction(widget.DirectionVertical),
			widget.RowLayoutOpts.Spacing(10),
			widget.RowLayoutOpts.Padding(widget.Insets{Top: 20, Bottom: 20, Left: 30, Right: 30}),
		)),
		widget.ContainerOpts.WidgetOpts(
			widget.WidgetOpts.MinSize(baseWidth/2, baseHeight/3),
			widget.WidgetOpts.LayoutData(widget.AnchorLayoutData{HorizontalPosition: widget.AnchorLayoutPositionCenter, VerticalPosition: widget.AnchorLayoutPositionCenter}),
		),
	)
	p.panel.AddChild(p.name)
	p.panel.AddChild(p.song)
	p.panel.AddChild(p.songTitle)
	p.panel.AddChild(p.status)
	p.panel.AddChild(closeBtn)
	p.panel.GetWidget().Visibility = widget.Visibility_Hide

	bar := widget.NewContainer(
		widget.ContainerOpts.Layout(widget.NewRowLayout(
			widget.RowLayoutOpts.Direction(widget.DirectionVertical),
			widget.RowLayoutOpts.Spacing(6),
			widget.RowLayoutOpts.Padding(widget.Insets{Bottom: 24}),
		)),
		widget.ContainerOpts.WidgetOpts(
			widget.WidgetOpts.LayoutData(widget.AnchorLayoutData{HorizontalPosition: widget.AnchorLayoutPositionCenter, VerticalPosition: widget.AnchorLayoutPositionEnd}),
		),
	)
	p.roster = newText("", textColor)
	bar.AddChild(p.roster)
	bar.AddChild(newText(controlsHint, mutedColor))

	p.root = widget.NewContainer(
		widget.ContainerOpts.Layout(widget.NewAnchorLayout()),
	)
	p.root.AddChild(p.panel)
	p.root.AddChild(bar)

	p.UI = &ebitenui.UI{Container: p.root}
	return p
}

func (p *ProfilePage) Show(name string) {
	p.name.Label = name
	p.songTitle.Label = ""
	p.panel.GetWidget().Visibility = widget.Visibility_Show
	p.root.RequestRelayout()
}

func (p *ProfilePage) Hide() {
	p.panel.GetWidget().Visibility = widget.Visibility_Hide
	p.root.RequestRelayout()
}

func (p *ProfilePage) SetSong(songID int64, downloading bool) {
	p.labels.SetSong(songID, downloading)
	p.song.Label = p.labels.Song
	p.status.Label = p.labels.Status
	if songID <= 0 {
		p.songTitle.Label = ""
	}
}

// SetSongTitle shows the tag title of the downloaded song, if any.
func (p *ProfilePage) SetSongTitle(title string) {
	if p.songTitle.Label != title {
		p.songTitle.Label = title
	}
}

func (p *ProfilePage) SetRoster(label string) {
	p.roster.Label = label
}

func (p *ProfilePage) SongLabel() string {
	return p.labels.Song
}
