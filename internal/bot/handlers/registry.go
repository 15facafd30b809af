package handlers

import (
	"regexp"
	"sort"

	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler binds a command pattern to its handler and optional
// middleware.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     *regexp.Regexp
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
}

// RegisterAllCommands returns every chat command keyed by name. Commands never
// reach analysis. Patterns run against the raw text, so they allow leading
// whitespace and a bot username suffix (/start@veritybot), neither of which
// the entity-based command matchers accept.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/start"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     regexp.MustCompile(`^\s*/start(\s|@|$)`),
		Handler:     NewStartHandler(deps),
	}

	return handlers
}

// registerHandlers attaches the commands to the dispatcher in name order.
func registerHandlers(b *tgbot.Bot, handlers map[string]RegisteredHandler) {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		h := handlers[name]
		b.RegisterHandlerRegexp(h.HandlerType, h.Pattern, h.Handler, h.Middleware...)
	}
}
