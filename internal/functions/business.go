package functions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quantumflow/callengine/internal/cache"
	"github.com/quantumflow/callengine/internal/models"
	"github.com/quantumflow/callengine/internal/registry"
)

// Topics are the informational topics answered by get_business_info
var Topics = []string{"hours", "address", "phone"}

var answerTemplates = map[string]map[string]string{
	"en": {
		"hours":   "%[1]s is open %[5]s, %[4]s.",
		"address": "You can find %[1]s at %[2]s.",
		"phone":   "You can reach %[1]s at %[3]s.",
	},
	"el": {
		"hours":   "Το %[1]s είναι ανοιχτό %[5]s, %[4]s.",
		"address": "Θα μας βρείτε στη διεύθυνση %[2]s.",
		"phone":   "Μπορείτε να μας καλέσετε στο %[3]s.",
	},
	"ru": {
		"hours":   "%[1]s работает %[5]s, %[4]s.",
		"address": "Наш адрес: %[2]s.",
		"phone":   "Наш телефон: %[3]s.",
	},
}

// Answer renders the static answer of a topic in a language
func (b BusinessInfo) Answer(topic, language string) (string, bool) {
	byTopic, ok := answerTemplates[language]
	if !ok {
		byTopic = answerTemplates["en"]
	}
	tmpl, ok := byTopic[topic]
	if !ok {
		return "", false
	}
	return fmt.Sprintf(tmpl, b.Name, b.Address, b.Phone, b.Hours, b.Days), true
}

// StaticAnswers lists every topic in every language, for the cache warmup
func StaticAnswers(info BusinessInfo) []cache.StaticAnswer {
	var answers []cache.StaticAnswer
	for lang := range answerTemplates {
		for _, topic := range Topics {
			text, _ := info.Answer(topic, lang)
			answers = append(answers, cache.StaticAnswer{
				Topic:    topic,
				Language: lang,
				Value:    infoResult(topic, lang, text),
			})
		}
	}
	return answers
}

func infoResult(topic, language, answer string) registry.Result {
	return registry.Result{
		"topic":    topic,
		"language": language,
		"answer":   answer,
	}
}

func (h *handlers) businessInfo(ctx context.Context, params map[string]interface{}, call *models.CallContext) (registry.Result, error) {
	topic := stringParam(params, "topic")
	lang := callLanguage(params, call)
	if _, ok := answerTemplates[lang]; !ok {
		lang = "en"
	}

	if h.deps.Cache != nil {
		var warmed registry.Result
		if h.deps.Cache.GetJSON(ctx, cache.InfoKey(topic, lang), &warmed) {
			return warmed, nil
		}
	}

	answer, ok := h.deps.Business.Answer(topic, lang)
	if !ok {
		return softError("I can tell you our opening hours, address or phone number."), nil
	}

	result := infoResult(topic, lang, answer)
	if h.deps.Cache != nil {
		if err := h.deps.Cache.SetJSON(ctx, cache.InfoKey(topic, lang), result, businessInfoTTL); err != nil {
			h.logger.Warn("failed to cache business info", slog.String("error", err.Error()))
		}
	}
	return result, nil
}
