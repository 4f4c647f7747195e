package orderparse

import (
	"strings"

	"github.com/MrWong99/orderbot/internal/menu"
	"github.com/MrWong99/orderbot/pkg/provider/llm"
)

const promptIntro = `Ты принимаешь заказы в кафе. Из сообщения гостя выдели позиции заказа и способ оплаты.

Основные позиции (поле "n") берутся СТРОГО из списка меню, символ в символ. Если гость назвал позицию иначе, выбери ближайшую из меню. Если подходящей позиции нет, не добавляй её.
Добавки (поле "a") по возможности бери из списка добавок. Добавку не из списка тоже можно указать, если гость явно её попросил.
Количество (поле "q") целое число не меньше 1. Если количество не названо, ставь 1.
Оплата (поле "pay"): 0 наличными ("наличка", "наличные", "кэш"), 1 безналичная ("карта", "картой", "перевод", "по QR"), -1 если способ не назван, назван с отрицанием без альтернативы или неоднозначен.`

const promptContract = `Ответ: ровно один JSON-объект без пояснений, без markdown и без текста до или после него:
{"it":[{"n":"<позиция из меню>","q":<число>,"a":["<добавка>"]}],"pay":<-1|0|1>}`

// fewShots are fixed input/output pairs embedded in every prompt. They use
// generic café names so the same examples work for any menu.
var fewShots = []struct{ in, out string }{
	{
		in:  "три американо",
		out: `{"it":[{"n":"Американо","q":3,"a":[]}],"pay":-1}`,
	},
	{
		in:  "латте и два капучино, картой",
		out: `{"it":[{"n":"Латте","q":1,"a":[]},{"n":"Капучино","q":2,"a":[]}],"pay":1}`,
	},
	{
		in:  "капучино на овсяном с карамельным сиропом, наличными",
		out: `{"it":[{"n":"Капучино","q":1,"a":["Овсяное молоко","Сироп карамель"]}],"pay":0}`,
	},
	{
		in:  "американо, оплата не картой, а наличкой",
		out: `{"it":[{"n":"Американо","q":1,"a":[]}],"pay":0}`,
	},
	{
		in:  "латте, картой или наличными, ещё не решил",
		out: `{"it":[{"n":"Латте","q":1,"a":[]}],"pay":-1}`,
	},
}

// BuildPrompt renders the model request for one utterance: a system message
// with the menu, the output contract and the examples, then the utterance as
// the user message. The result depends only on its inputs, so identical
// inputs give byte-identical messages.
func BuildPrompt(utterance string, cat *menu.Catalog) []llm.Message {
	var sb strings.Builder
	sb.WriteString(promptIntro)

	sb.WriteString("\n\nМеню:\n")
	for _, name := range cat.Items() {
		sb.WriteString(name)
		sb.WriteByte('\n')
	}

	sb.WriteString("\nДобавки:\n")
	addons := cat.Addons()
	if len(addons) == 0 {
		sb.WriteString("(нет)\n")
	}
	for _, name := range addons {
		sb.WriteString(name)
		sb.WriteByte('\n')
	}

	sb.WriteByte('\n')
	sb.WriteString(promptContract)

	sb.WriteString("\n\nПримеры:")
	for _, ex := range fewShots {
		sb.WriteString("\nСообщение: ")
		sb.WriteString(ex.in)
		sb.WriteString("\nОтвет: ")
		sb.WriteString(ex.out)
		sb.WriteByte('\n')
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: strings.TrimRight(sb.String(), "\n")},
		{Role: llm.RoleUser, Content: strings.TrimSpace(utterance)},
	}
}
