package api

import (
	"time"

	// This blank import is required by swaggo to find the API definitions.
	_ "localchat/backend/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"localchat/backend/internal/interfaces"
)

// NewRouter creates and configures a chi router with all the application's routes.
func NewRouter(chatHandler *ChatHandler, authHandler *AuthHandler, systemHandler *SystemHandler, auth interfaces.AuthService) *chi.Mux {
	r := chi.NewRouter()

	// --- Global Middleware ---
	r.Use(middleware.RequestID) // Injects a unique request ID into the context.
	r.Use(middleware.RealIP)    // Sets the remote address to the real IP from proxy headers.
	r.Use(middleware.Logger)    // Logs the start and end of each request.
	r.Use(middleware.Recoverer) // Recovers from panics and returns a 500 error.

	// CORS for the local development frontends.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:8080",
			"http://127.0.0.1:5173",
			"http://127.0.0.1:8080",
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	// Serves the auto-generated Swagger UI for API documentation.
	r.Get("/api/swagger/*", httpSwagger.WrapHandler)

	// Health check, crucial for container orchestration probes.
	r.Get("/health", systemHandler.Health)

	// Upstream proxy endpoints: public, so the UI can show server state
	// before the user logs in.
	r.Get("/api/llama/health", systemHandler.LlamaHealth)
	r.Get("/api/llama/models", systemHandler.LlamaModels)

	// --- Auth ---
	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Post("/google", authHandler.GoogleAuth)
		r.With(RequireAuth(auth)).Get("/me", authHandler.Me)
	})

	// --- Chats ---
	r.Route("/chats", func(r chi.Router) {
		r.Use(RequireAuth(auth))

		// Standard JSON routes get a request timeout so client connections
		// cannot hang indefinitely.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/", chatHandler.GetChats)
			r.Post("/", chatHandler.CreateChat)
			r.Get("/{chatID}", chatHandler.GetChat)
			r.Patch("/{chatID}", chatHandler.UpdateChat)
			r.Delete("/{chatID}", chatHandler.DeleteChat)
			r.Get("/{chatID}/messages", chatHandler.GetMessages)
			r.Delete("/{chatID}/messages/{messageID}", chatHandler.DeleteMessage)
			r.Post("/{chatID}/stop", chatHandler.StopGeneration)
		})

		// The relay endpoint must NOT have a timeout: it holds the connection
		// open for as long as generation takes.
		r.Group(func(r chi.Router) {
			r.Post("/{chatID}/messages", chatHandler.SendMessage)
		})
	})

	return r
}
