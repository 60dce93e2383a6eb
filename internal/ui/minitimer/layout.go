package minitimer

import (
	"productivityguard/internal/core/model"

	"fyne.io/fyne/v2"
)

const cornerMargin = float32(20)

// cornerLayout pins its first object, at minimum size, to one corner.
type cornerLayout struct {
	position func() model.Position
}

func (layout *cornerLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	if len(objects) == 0 {
		return
	}
	card := objects[0]
	cardSize := card.MinSize()
	card.Resize(cardSize)
	card.Move(cornerOrigin(layout.position(), size, cardSize))
}

func (layout *cornerLayout) MinSize(objects []fyne.CanvasObject) fyne.Size {
	if len(objects) == 0 {
		return fyne.NewSize(0, 0)
	}
	cardSize := objects[0].MinSize()
	return fyne.NewSize(cardSize.Width+cornerMargin*2, cardSize.Height+cornerMargin*2)
}

func cornerOrigin(position model.Position, area, card fyne.Size) fyne.Position {
	x := area.Width - cornerMargin - card.Width
	if position.Left() {
		x = cornerMargin
	}
	y := area.Height - cornerMargin - card.Height
	if position.Top() {
		y = cornerMargin
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return fyne.NewPos(x, y)
}
