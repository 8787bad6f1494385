package bootstrap

import (
	"estate-backend/internal/config"
	"estate-backend/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for serverless deployments (the api handler imports this package, not internal).
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	config.SetupLogging(cfg)
	app, _, _, err := router.CreateApp(cfg)
	return app, err
}
