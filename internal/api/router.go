package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// Public routes
	r.Post("/signup", apiHandler.SignupHandler)
	r.Post("/login", apiHandler.LoginHandler)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// User-authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(apiHandler.BearerAuthMiddleware)

		r.Post("/upload", apiHandler.UploadHandler)
		r.Post("/ask", apiHandler.AskHandler)

		r.Post("/conversations", apiHandler.CreateConversationHandler)
		r.Get("/conversations", apiHandler.ListConversationsHandler)
		r.Get("/conversations/{conversationID}/messages", apiHandler.GetMessagesHandler)
		r.Put("/conversations/{conversationID}", apiHandler.RenameConversationHandler)
		r.Delete("/conversations/{conversationID}", apiHandler.DeleteConversationHandler)
	})

	return r
}
