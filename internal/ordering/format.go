package ordering

import (
	"fmt"
	"strings"

	"github.com/MrWong99/orderbot/internal/order"
	"github.com/MrWong99/orderbot/internal/report"
	"github.com/MrWong99/orderbot/internal/session"
	"github.com/MrWong99/orderbot/internal/store"
)

// User-facing texts.
const (
	textEmptyMessage     = "⚠️ Сообщение пустое. Напишите, что хотите заказать."
	textNoItems          = "⚠️ В сообщении не найдено позиций из меню."
	textDidYouMean       = "Возможно, вы имели в виду: %s?"
	textTooLarge         = "⚠️ Слишком большое количество «%s»: %d. В одном заказе не больше %d шт."
	textMalformedReply   = "⚠️ Не удалось разобрать ответ модели. Попробуйте переформулировать заказ."
	textModelUnavailable = "⚠️ Не удалось связаться с моделью. Попробуйте ещё раз через минуту."
	textNoSpeech         = "🗣 Не удалось распознать речь, попробуйте ещё раз."
	textVoiceDisabled    = "🗣 Голосовые сообщения не поддерживаются. Напишите заказ текстом."
	textSaveFailed       = "⚠️ Не удалось сохранить заказ. Отправьте его ещё раз."
	textGenericFailure   = "⚠️ Что-то пошло не так. Попробуйте ещё раз."
	textNothingPending   = "🔸 Нет заказа, ожидающего подтверждения."
	textCancelled        = "❌ Заказ отменён."
	textNoOrders         = "🔸 У вас пока нет заказов."
	textOrderNotFound    = "🔸 Заказ не найден или уже удалён."
	textClearPrompt      = "🔸 Вы действительно хотите удалить все заказы за сегодня?"
	textNothingToClear   = "🔸 Нет заказов за %s для удаления."
	textCleared          = "✅ Удалено заказов: %d за %s."
	textNoMenu           = "🔸 Меню не загружено."
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04"
)

const (
	reportOrdersFile  = report.OrdersFilename
	reportActionsFile = report.ActionsFilename
)

func (s *Service) proposalText(p session.Pending, dropped []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔹 Подтвердите заказ (оплата: **%s**):\n", p.Payment.Label())
	writeLines(&b, p.Lines)
	fmt.Fprintf(&b, "\n💰 Итого: **%d₽**", p.Total())

	if len(dropped) > 0 {
		b.WriteString("\n\n⚠️ Нет в меню, пропущено: ")
		parts := make([]string, 0, len(dropped))
		for _, name := range dropped {
			part := "«" + name + "»"
			if s.menu != nil {
				if sug, ok := s.menu.Suggest(name); ok {
					part += " (возможно, «" + sug + "»)"
				}
			}
			parts = append(parts, part)
		}
		b.WriteString(strings.Join(parts, ", "))
	}
	if p.Payment == order.PaymentUnspecified {
		b.WriteString("\n\nℹ️ Способ оплаты не указан. Допишите «наличными» или «картой», если нужно.")
	}
	return b.String()
}

func confirmedText(c session.Confirmation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Заказ #%d добавлен (оплата: **%s**", c.OrderID, c.Pending.Payment.Label())
	if c.IsStaff {
		b.WriteString(", для персонала")
	}
	b.WriteString("):\n")
	writeLines(&b, c.Pending.Lines)
	fmt.Fprintf(&b, "\n💰 Итого: **%d₽**", c.Pending.Total())
	return b.String()
}

// writeLines renders lines grouped, one numbered row per group with its
// addons indented below.
func writeLines(b *strings.Builder, lines []order.LineItem) {
	for i, g := range order.GroupLines(lines) {
		if g.Count > 1 {
			fmt.Fprintf(b, "%d) %s ×%d — %d₽\n", i+1, g.Line.ItemName, g.Count, g.Subtotal())
		} else {
			fmt.Fprintf(b, "%d) %s — %d₽\n", i+1, g.Line.ItemName, g.Subtotal())
		}
		for _, a := range g.Line.Addons {
			fmt.Fprintf(b, "   • %s — %d₽\n", a.Name, a.Price)
		}
	}
}

func (s *Service) historyText(orders []store.Order) string {
	var b strings.Builder
	b.WriteString("📋 Ваши заказы:\n")
	for i, o := range orders {
		items := make([]string, len(o.Items))
		for j, it := range o.Items {
			items[j] = fmt.Sprintf("%s×%d(%d₽)", it.Name, it.Quantity, it.Price)
		}
		fmt.Fprintf(&b, "\n%d. #%d %s | %s | %s | Итого: %d₽",
			i+1, o.ID, o.CreatedAt.In(s.loc).Format(timestampLayout),
			o.Payment.Label(), strings.Join(items, "; "), o.Total())
		if o.IsStaff {
			b.WriteString(" | персонал")
		}
	}
	return b.String()
}

func deletedText(o store.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "❌ Заказ #%d удалён:\n", o.ID)
	for _, it := range o.Items {
		fmt.Fprintf(&b, "- %s ×%d — %d₽\n", it.Name, it.Quantity, it.Price)
	}
	fmt.Fprintf(&b, "\n💰 Итого: %d₽", o.Total())
	return b.String()
}

// NoticeText renders a staff notification.
func NoticeText(n Notice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🆕 Заказ #%d от **%s**", n.OrderID, displayName(n.User))
	if n.IsStaff {
		b.WriteString(" (персонал)")
	}
	fmt.Fprintf(&b, "\nОплата: **%s**\n", n.Payment.Label())
	writeLines(&b, n.Lines)
	fmt.Fprintf(&b, "\n💰 Итого: **%d₽**", n.Total)
	if n.RawText != "" {
		fmt.Fprintf(&b, "\n> %s", strings.ReplaceAll(n.RawText, "\n", "\n> "))
	}
	return b.String()
}

func displayName(u User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

func joinQuoted(ss []string) string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = "«" + s + "»"
	}
	return strings.Join(out, ", ")
}
