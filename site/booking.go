package site

import (
	"fmt"
	"net/url"
	"strings"

	"cabinsite/common"
	"cabinsite/models"
)

const whatsAppBase = "https://wa.me/"

// normalizePhone keeps digits only. Russian numbers written with a trunk
// prefix (8 900 ...) are converted to the international form (7 900 ...).
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '8' {
		digits = "7" + digits[1:]
	}
	return digits
}

// WhatsAppLink returns a wa.me deep link with a prefilled message, or "" when
// phone has no digits.
func WhatsAppLink(phone, text string) string {
	digits := normalizePhone(phone)
	if digits == "" {
		return ""
	}
	link := whatsAppBase + digits
	if text != "" {
		link += "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	}
	return link
}

// BookingLink builds the messenger link used instead of a booking engine.
// Empty dates and a non-positive guest count are left out of the message.
func BookingLink(phone string, cabin models.Cabin, checkIn, checkOut string, guests int) string {
	lines := []string{fmt.Sprintf("Здравствуйте! Хочу забронировать «%s».", cabin.Name)}
	if checkIn = strings.TrimSpace(checkIn); checkIn != "" {
		lines = append(lines, "Заезд: "+checkIn)
	}
	if checkOut = strings.TrimSpace(checkOut); checkOut != "" {
		lines = append(lines, "Выезд: "+checkOut)
	}
	if guests > 0 {
		lines = append(lines, fmt.Sprintf("Гостей: %d", guests))
	}
	if cabin.Price > 0 {
		lines = append(lines, fmt.Sprintf("Цена: %s ₽ за ночь", common.FormatPrice(cabin.Price)))
	}
	return WhatsAppLink(phone, strings.Join(lines, "\n"))
}
