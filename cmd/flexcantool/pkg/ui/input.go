package ui

import "github.com/jroimartin/gocui"

// Input is a one line editable view.
type Input struct {
	Name      string
	Title     string
	X, Y      int
	W         int
	MaxLength int
	// Accept filters the runes that may be typed, nil accepts all.
	Accept func(rune) bool
}

func (i *Input) Layout(g *gocui.Gui) error {
	v, err := g.SetView(i.Name, i.X, i.Y, i.X+i.W, i.Y+2)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = i.Title
		v.Editor = i
		v.Editable = true
	}
	return nil
}

func (i *Input) Edit(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) {
	cx, _ := v.Cursor()
	ox, _ := v.Origin()
	full := ox+cx+1 > i.MaxLength
	switch {
	case ch != 0 && mod == 0 && !full && (i.Accept == nil || i.Accept(ch)):
		v.EditWrite(ch)
	case key == gocui.KeyBackspace || key == gocui.KeyBackspace2:
		v.EditDelete(true)
	case key == gocui.KeyArrowLeft:
		v.MoveCursor(-1, 0, false)
	case key == gocui.KeyArrowRight:
		v.MoveCursor(1, 0, false)
	}
}

// HexList accepts hex digits, x and commas.
func HexList(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		return true
	case r == 'x' || r == ',':
		return true
	}
	return false
}
