package telegram

import (
	tele "gopkg.in/telebot.v4"

	"github.com/Frenkcardi87/saldo-bot/internal/flow"
)

// markup converts flow button rows into an inline keyboard. Data is kept
// verbatim so callback routing sees the exact flow token back.
func markup(rows [][]flow.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			r = append(r, tele.InlineButton{Text: b.Text, Data: b.Data})
		}
		inline = append(inline, r)
	}
	if len(inline) == 0 {
		return nil
	}
	return &tele.ReplyMarkup{InlineKeyboard: inline}
}
