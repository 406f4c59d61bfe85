package customer

import (
	"fmt"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/quantumflow/callengine/internal/models"
)

// Supported greeting languages
const (
	LanguageEnglish = "en"
	LanguageGreek   = "el"
	LanguageRussian = "ru"
)

var (
	vipOrderThreshold = 5
	vipSpendThreshold = decimal.NewFromInt(1000)
)

// IsVIP reports whether a customer qualifies for prioritized handling
func IsVIP(totalOrders int, totalSpent decimal.Decimal) bool {
	return totalOrders >= vipOrderThreshold || totalSpent.GreaterThanOrEqual(vipSpendThreshold)
}

// DetectLanguage infers a preferred language from the script of a name
func DetectLanguage(name string) string {
	for _, r := range name {
		switch {
		case unicode.Is(unicode.Greek, r):
			return LanguageGreek
		case unicode.Is(unicode.Cyrillic, r):
			return LanguageRussian
		}
	}
	return LanguageEnglish
}

type segment int

const (
	segmentNew segment = iota
	segmentReturning
	segmentVIP
)

// templates take the customer name and a recency phrase
var templates = map[string]map[segment]string{
	LanguageEnglish: {
		segmentVIP:       "Welcome back, %s! It's always a pleasure to hear from one of our most valued customers. Your last order was %s. How can I help you today?",
		segmentReturning: "Hello again, %s! Your last order was %s. How can I help you today?",
		segmentNew:       "Hello and welcome! How can I help you today?",
	},
	LanguageGreek: {
		segmentVIP:       "Καλώς ήρθατε ξανά, %s! Είναι πάντα χαρά μας να μιλάμε με έναν από τους πιο εκλεκτούς πελάτες μας. Η τελευταία σας παραγγελία ήταν %s. Πώς μπορώ να βοηθήσω;",
		segmentReturning: "Γεια σας ξανά, %s! Η τελευταία σας παραγγελία ήταν %s. Πώς μπορώ να βοηθήσω;",
		segmentNew:       "Γεια σας και καλώς ήρθατε! Πώς μπορώ να βοηθήσω;",
	},
	LanguageRussian: {
		segmentVIP:       "С возвращением, %s! Мы всегда рады слышать одного из наших самых ценных клиентов. Ваш последний заказ был %s. Чем могу помочь?",
		segmentReturning: "Снова здравствуйте, %s! Ваш последний заказ был %s. Чем могу помочь?",
		segmentNew:       "Здравствуйте и добро пожаловать! Чем могу помочь?",
	},
}

var anonymousName = map[string]string{
	LanguageEnglish: "dear customer",
	LanguageGreek:   "αγαπητέ πελάτη",
	LanguageRussian: "уважаемый клиент",
}

// GenerateGreeting picks a greeting by customer segment and language. A nil
// profile gets the new-caller greeting. Unsupported languages fall back to
// the profile's preferred language, then English.
func GenerateGreeting(profile *models.CustomerProfile, language string, now time.Time) string {
	lang := supportedLanguage(language)
	if lang == "" && profile != nil {
		lang = supportedLanguage(profile.PreferredLanguage)
	}
	if lang == "" {
		lang = LanguageEnglish
	}

	seg := segmentNew
	if profile != nil {
		switch {
		case profile.IsVIP:
			seg = segmentVIP
		case profile.TotalOrders > 0:
			seg = segmentReturning
		}
	}

	tmpl := templates[lang][seg]
	if seg == segmentNew {
		return tmpl
	}

	name := profile.Name
	if name == "" {
		name = anonymousName[lang]
	}
	return fmt.Sprintf(tmpl, name, Recency(profile.LastOrderDate, now, lang))
}

func supportedLanguage(language string) string {
	if _, ok := templates[language]; ok {
		return language
	}
	return ""
}

// Recency renders how long ago a date was: today, N days, N weeks or N months ago
func Recency(last *time.Time, now time.Time, language string) string {
	if last == nil {
		switch language {
		case LanguageGreek:
			return "πρόσφατα"
		case LanguageRussian:
			return "недавно"
		default:
			return "recently"
		}
	}

	days := int(now.Sub(*last).Hours() / 24)
	if days < 0 {
		days = 0
	}

	switch language {
	case LanguageGreek:
		return greekRecency(days)
	case LanguageRussian:
		return russianRecency(days)
	default:
		return englishRecency(days)
	}
}

func englishRecency(days int) string {
	n, unit := recencyUnit(days)
	switch unit {
	case "today":
		return "today"
	case "day":
		if n == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", n)
	case "week":
		if n == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", n)
	default:
		if n == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", n)
	}
}

func greekRecency(days int) string {
	n, unit := recencyUnit(days)
	pick := func(one, many string) string {
		if n == 1 {
			return fmt.Sprintf("πριν από 1 %s", one)
		}
		return fmt.Sprintf("πριν από %d %s", n, many)
	}
	switch unit {
	case "today":
		return "σήμερα"
	case "day":
		return pick("μέρα", "μέρες")
	case "week":
		return pick("εβδομάδα", "εβδομάδες")
	default:
		return pick("μήνα", "μήνες")
	}
}

func russianRecency(days int) string {
	n, unit := recencyUnit(days)
	switch unit {
	case "today":
		return "сегодня"
	case "day":
		return fmt.Sprintf("%d %s назад", n, russianPlural(n, "день", "дня", "дней"))
	case "week":
		return fmt.Sprintf("%d %s назад", n, russianPlural(n, "неделю", "недели", "недель"))
	default:
		return fmt.Sprintf("%d %s назад", n, russianPlural(n, "месяц", "месяца", "месяцев"))
	}
}

func russianPlural(n int, one, few, many string) string {
	mod100 := n % 100
	mod10 := n % 10
	switch {
	case mod100 >= 11 && mod100 <= 14:
		return many
	case mod10 == 1:
		return one
	case mod10 >= 2 && mod10 <= 4:
		return few
	default:
		return many
	}
}

func recencyUnit(days int) (int, string) {
	switch {
	case days == 0:
		return 0, "today"
	case days < 7:
		return days, "day"
	case days < 30:
		return days / 7, "week"
	default:
		return days / 30, "month"
	}
}

// Context projects a profile into the view handed to function handlers
func Context(profile *models.CustomerProfile) *models.CustomerContext {
	if profile == nil {
		return nil
	}

	ids := make([]string, 0, len(profile.OrderHistory))
	for _, order := range profile.OrderHistory {
		ids = append(ids, order.ID)
	}

	return &models.CustomerContext{
		Name:                profile.Name,
		Phone:               profile.NormalizedPhone,
		Language:            profile.PreferredLanguage,
		IsVIP:               profile.IsVIP,
		IsReturning:         profile.TotalOrders > 0,
		CanSkipVerification: profile.TotalOrders > 2,
		TotalOrders:         profile.TotalOrders,
		LastOrderDate:       profile.LastOrderDate,
		RecentOrderIDs:      ids,
	}
}
