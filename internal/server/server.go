package server

import (
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/yg10008/GuildHire-YG/internal/auth"
	"github.com/yg10008/GuildHire-YG/internal/config"
	"github.com/yg10008/GuildHire-YG/internal/handlers"
	"github.com/yg10008/GuildHire-YG/internal/metrics"
	"github.com/yg10008/GuildHire-YG/internal/middleware"
	"github.com/yg10008/GuildHire-YG/internal/ws"
)

// New assembles the fiber app: REST chat routes, the websocket upgrade, and
// operational endpoints.
func New(cfg *config.Config, chat *handlers.ChatHandler, gateway *ws.Gateway, verifier *auth.Verifier, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.App.AllowedOrigins, ","),
		AllowHeaders:     "Content-Type,Authorization,X-User-Type",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowCredentials: true,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	chats := app.Group("/chats", middleware.Authenticate(verifier))
	chats.Post("/", chat.CreateChat)
	chats.Get("/", chat.ListChats)
	chats.Get("/:chatId", chat.GetChat)
	chats.Post("/:chatId/messages", chat.SendMessage)

	// token is carried in the handshake query; the gateway verifies it
	app.Get("/ws", gateway.Upgrade)

	return app
}
