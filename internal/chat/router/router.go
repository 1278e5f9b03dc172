package router

import (
	"context"

	"chat_delivery_service/internal/chat/app"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes wire the delivery service routes. ctx is the process
// lifetime, cancelling it winds down every open channel.
func RegisterRoutes(
	ctx context.Context,
	r *fiber.App,
	chatWebsocket *app.ChatWebsocketHandler,
	presence *app.PresenceHandler,
	publish *app.PublishHandler,
) {
	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		chatWebsocket.Serve(ctx, c)
	}))

	r.Get("/presence/:user_id", presence.GetPresence)
	r.Get("/conversations/:conv_id/unread", presence.GetUnread)

	r.Post("/publish", publish.Publish)
}
