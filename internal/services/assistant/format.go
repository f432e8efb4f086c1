package services

import (
	"html"
	"regexp"
	"strings"
)

var boldRe = regexp.MustCompile(`\*\*(.*?)\*\*`)

// FormatReply готовит ответ модели к показу в чате: экранирует HTML,
// переводы строк заменяет на <br>, **текст** на <b>текст</b>.
func FormatReply(reply string) string {
	escaped := html.EscapeString(reply)
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return boldRe.ReplaceAllString(escaped, "<b>$1</b>")
}
