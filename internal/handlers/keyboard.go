package handlers

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const callbackPrefix = "lb"

func mainKeyboard(hasResults bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData("🎨 Generate", cb("generate"))},
	}
	if hasResults {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⬇ Download all", cb("download")),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("Reset", cb("reset")),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil {
		return nil
	}

	action, ok := strings.CutPrefix(strings.TrimSpace(q.Data), callbackPrefix+":")
	if !ok {
		return nil
	}
	chatID := q.Message.Chat.ID

	switch action {
	case "generate":
		_ = h.tg.AnswerCallback(q.ID, "Generating…", false)
		return h.generate(ctx, chatID)
	case "download":
		_ = h.tg.AnswerCallback(q.ID, "Sending files…", false)
		return h.downloadAll(ctx, chatID)
	case "reset":
		if !h.sessions.Reset(chatID) {
			return h.tg.AnswerCallback(q.ID, "Still generating, try again later.", true)
		}
		_ = h.tg.AnswerCallback(q.ID, "Reset", false)
		return h.tg.SendText(chatID, "✅ Cleared. Send a new clothing photo.")
	default:
		return h.tg.AnswerCallback(q.ID, "OK", false)
	}
}

func cb(action string) string {
	return callbackPrefix + ":" + action
}
