package tgui

import "quotebot/internal/transport"

// Btn is a callback button.
func Btn(text, data string) transport.Button {
	return transport.Button{Text: text, Data: data}
}

// Keyboard collects rows of inline buttons. Buttons whose data does not fit
// in a callback are dropped, as are rows left empty.
type Keyboard struct {
	rows [][]transport.Button
}

func NewKeyboard() *Keyboard { return &Keyboard{} }

func (k *Keyboard) Row(btns ...transport.Button) *Keyboard {
	row := make([]transport.Button, 0, len(btns))
	for _, b := range btns {
		if b.Text == "" || b.Data == "" || !Fits(b.Data) {
			continue
		}
		row = append(row, b)
	}
	if len(row) > 0 {
		k.rows = append(k.rows, row)
	}
	return k
}

// Rows returns the keyboard for transport.SendOptions.Keyboard (nil when empty).
func (k *Keyboard) Rows() [][]transport.Button {
	if k == nil || len(k.rows) == 0 {
		return nil
	}
	return k.rows
}
