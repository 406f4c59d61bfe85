package webhook

import (
	"context"
	"strings"
	"time"

	"github.com/quantumflow/callengine/internal/customer"
	"github.com/quantumflow/callengine/internal/models"
	"github.com/quantumflow/callengine/internal/registry"
)

var received = map[string]bool{"received": true}

// incompleteReasons are ended reasons that mean the caller was not served
var incompleteReasons = map[string]bool{
	"customer-did-not-answer":   true,
	"customer-busy":             true,
	"silence-timed-out":         true,
	"assistant-error":           true,
	"pipeline-error":            true,
	"phone-call-provider-error": true,
	"exceeded-max-duration":     true,
}

var transferMessages = map[string]string{
	customer.LanguageEnglish: "Please hold while I transfer you to a colleague.",
	customer.LanguageGreek:   "Παρακαλώ περιμένετε, σας συνδέω με έναν συνάδελφο.",
	customer.LanguageRussian: "Пожалуйста, подождите, я соединяю вас с коллегой.",
}

// route dispatches an event and returns the response payload, an outcome label
// for telemetry, and an error for the boundary to classify
func (g *Gateway) route(ctx context.Context, event *Event) (any, string, error) {
	switch event.Type {
	case EventFunctionCall:
		return g.handleFunctionCall(ctx, event)
	case EventCallStarted:
		return g.handleCallStarted(ctx, event)
	case EventCallEnded:
		return g.handleCallEnded(ctx, event)
	case EventConversationUpdate:
		return g.handleConversationUpdate(ctx, event)
	case EventTransferRequest:
		return g.handleTransferRequest(ctx, event)
	case EventStatusUpdate:
		return g.handleStatusUpdate(ctx, event)
	case EventTranscript:
		return g.handleTranscript(ctx, event)
	default:
		// Acknowledged so the platform does not retry delivery.
		return received, "ignored", nil
	}
}

func (g *Gateway) handleFunctionCall(ctx context.Context, event *Event) (any, string, error) {
	if event.FunctionCall == nil || strings.TrimSpace(event.FunctionCall.Name) == "" {
		return nil, "", validationf("functionCall.name is required")
	}
	if g.registry == nil {
		fallback := map[string]any{"result": registry.Fallback(registry.DefaultFallbackMessage)}
		return fallback, "fallback", dependency("function registry", errNotConfigured)
	}

	depErr := g.ensureConversation(ctx, event)
	call := g.callContext(ctx, event)

	result := g.registry.Execute(ctx, event.FunctionCall.Name, event.FunctionCall.Parameters, call)

	response := make(map[string]interface{}, len(result))
	for k, v := range result {
		response[k] = v
	}
	if message, ok := response["message"].(string); ok && g.cost != nil {
		response["message"] = g.cost.OptimizeResponse(message, call.Language)
	}

	label := "ok"
	if fallback, _ := result["fallback"].(bool); fallback {
		label = "fallback"
	}
	return map[string]any{"result": response}, label, depErr
}

func (g *Gateway) handleCallStarted(ctx context.Context, event *Event) (any, string, error) {
	if err := g.ensureConversation(ctx, event); err != nil {
		return received, "", err
	}

	var profile *models.CustomerProfile
	if g.resolver != nil && event.Call.CustomerNumber != "" {
		profile = g.resolver.Identify(ctx, event.Call.CustomerNumber, event.Call.ID)
	}
	lang := g.language(event, profile)

	var greeting string
	if g.resolver != nil {
		greeting = g.resolver.Greeting(profile, lang)
	} else {
		greeting = customer.GenerateGreeting(profile, lang, time.Now())
	}

	metadata := map[string]interface{}{
		"greeting":            greeting,
		"language":            lang,
		"customer_identified": profile != nil,
	}
	if profile != nil {
		metadata["vip"] = profile.IsVIP
		metadata["customer_name"] = profile.Name
	}

	label := "new_caller"
	if profile != nil {
		label = "identified"
	}
	return received, label, g.updateConversation(ctx, event.Call.ID, models.ConversationUpdate{Metadata: metadata})
}

func (g *Gateway) handleCallEnded(ctx context.Context, event *Event) (any, string, error) {
	if err := g.ensureConversation(ctx, event); err != nil {
		return received, "", err
	}

	status := models.ConversationResolved
	if incompleteReasons[event.EndedReason] {
		status = models.ConversationIncomplete
	}
	ended := time.Now()

	if err := g.updateConversation(ctx, event.Call.ID, models.ConversationUpdate{
		Status:   &status,
		EndedAt:  &ended,
		Metadata: map[string]interface{}{"ended_reason": event.EndedReason},
	}); err != nil {
		return received, "", err
	}

	if event.Usage != nil && g.cost != nil && event.Call.ID != "" {
		if _, err := g.cost.TrackCallCost(ctx, event.Call.ID, *event.Usage); err != nil {
			return received, "", dependency("track call cost", err)
		}
	}
	return received, string(status), nil
}

func (g *Gateway) handleConversationUpdate(ctx context.Context, event *Event) (any, string, error) {
	if err := g.ensureConversation(ctx, event); err != nil {
		return received, "", err
	}
	metadata := map[string]interface{}{
		"message_count":    len(event.Messages),
		"last_activity_at": time.Now().UTC().Format(time.RFC3339),
	}
	return received, "updated", g.updateConversation(ctx, event.Call.ID, models.ConversationUpdate{Metadata: metadata})
}

func (g *Gateway) handleStatusUpdate(ctx context.Context, event *Event) (any, string, error) {
	if err := g.ensureConversation(ctx, event); err != nil {
		return received, "", err
	}
	metadata := map[string]interface{}{"platform_status": event.Status}
	return received, "status_" + event.Status, g.updateConversation(ctx, event.Call.ID, models.ConversationUpdate{Metadata: metadata})
}

func (g *Gateway) handleTranscript(ctx context.Context, event *Event) (any, string, error) {
	if err := g.ensureConversation(ctx, event); err != nil {
		return received, "", err
	}
	text := event.Transcript
	if text == "" {
		text = event.Message
	}
	metadata := map[string]interface{}{
		"last_transcript":      text,
		"last_transcript_role": event.Role,
	}
	return received, "recorded", g.updateConversation(ctx, event.Call.ID, models.ConversationUpdate{Metadata: metadata})
}

func (g *Gateway) handleTransferRequest(ctx context.Context, event *Event) (any, string, error) {
	depErr := g.ensureConversation(ctx, event)

	lang := g.language(event, nil)
	message, ok := transferMessages[lang]
	if !ok {
		message = transferMessages[customer.LanguageEnglish]
	}

	if depErr == nil {
		depErr = g.updateConversation(ctx, event.Call.ID, models.ConversationUpdate{
			Metadata: map[string]interface{}{
				"transferred":     true,
				"transfer_reason": event.Reason,
			},
		})
	}

	return map[string]any{
		"destination": map[string]string{
			"type":    "number",
			"number":  g.config.TransferNumber,
			"message": message,
		},
	}, "transferred", depErr
}

// ensureConversation creates the conversation of a call on its first event
func (g *Gateway) ensureConversation(ctx context.Context, event *Event) error {
	if g.store == nil || event.Call.ID == "" {
		return nil
	}
	phone := event.Call.CustomerNumber
	if canonical, err := customer.CanonicalPhone(phone, g.config.CountryCode); err == nil {
		phone = canonical
	}
	return dependency("create conversation", g.store.CreateConversation(ctx, &models.Conversation{
		CallID: event.Call.ID,
		Phone:  phone,
		Status: models.ConversationActive,
	}))
}

func (g *Gateway) updateConversation(ctx context.Context, callID string, update models.ConversationUpdate) error {
	if g.store == nil || callID == "" {
		return nil
	}
	return dependency("update conversation", g.store.UpdateConversation(ctx, callID, update))
}

// callContext resolves the caller of a function invocation
func (g *Gateway) callContext(ctx context.Context, event *Event) *models.CallContext {
	var profile *models.CustomerProfile
	if g.resolver != nil && event.Call.CustomerNumber != "" {
		profile = g.resolver.Identify(ctx, event.Call.CustomerNumber, event.Call.ID)
	}
	return &models.CallContext{
		CallID:       event.Call.ID,
		CallerNumber: event.Call.CustomerNumber,
		Language:     g.language(event, profile),
		Customer:     customer.Context(profile),
	}
}

func (g *Gateway) language(event *Event, profile *models.CustomerProfile) string {
	switch {
	case event.Language != "":
		return event.Language
	case profile != nil && profile.PreferredLanguage != "":
		return profile.PreferredLanguage
	default:
		return g.config.DefaultLanguage
	}
}
