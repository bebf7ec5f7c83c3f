package telegram

import (
	"fmt"
	"strings"

	"autoria-leads/internal/domain"
)

// Лимит Telegram на подпись к медиагруппе.
const captionLimit = 1024

const descriptionLimit = 250

// BuildCaption собирает подпись богатого поста по шаблону канала.
func BuildCaption(details domain.ListingDetails, phone string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚘 %s\n\n", details.Title)

	if details.Price != "" {
		fmt.Fprintf(&b, "💵 Ціна: %s\n", details.Price)
	}
	if details.Engine != "" {
		fmt.Fprintf(&b, "🚲 Двигун: %s\n", details.Engine)
	}
	if details.Gearbox != "" {
		fmt.Fprintf(&b, "🗳 КПП: %s\n", details.Gearbox)
	}
	if details.Drivetrain != "" {
		fmt.Fprintf(&b, "🔗 Привід: %s\n", details.Drivetrain)
	}
	if details.Mileage != "" {
		fmt.Fprintf(&b, "🏃‍♂ Пробіг: %s\n", details.Mileage)
	}
	if details.Price != "" || details.Engine != "" || details.Gearbox != "" || details.Drivetrain != "" || details.Mileage != "" {
		b.WriteString("\n")
	}

	if details.Description != "" {
		fmt.Fprintf(&b, "Короткий опис:\n%s\n\n", TruncateDescription(details.Description))
	}

	fmt.Fprintf(&b, "📞 Телефон: %s", phone)

	caption := b.String()
	if runes := []rune(caption); len(runes) > captionLimit {
		caption = string(runes[:captionLimit])
	}
	return caption
}

// TruncateDescription обрезает описание до последнего предложения,
// умещающегося в лимит.
func TruncateDescription(description string) string {
	runes := []rune(description)
	if len(runes) <= descriptionLimit {
		return description
	}

	truncated := string(runes[:descriptionLimit])
	lastPeriod := strings.LastIndex(truncated, ".")
	if lastPeriod == -1 {
		return truncated
	}
	return truncated[:lastPeriod+1]
}
