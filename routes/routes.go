package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/DioBrando1866/tekken-tournaments/docs"
	"github.com/DioBrando1866/tekken-tournaments/handlers"
	"github.com/DioBrando1866/tekken-tournaments/middleware"
)

type Options struct {
	JWTSecret          []byte
	AllowedOrigins     []string
	RateLimitPerMinute int
	Logger             *slog.Logger
}

func SetupRoutes(
	router chi.Router,
	opts Options,
	tournamentHandler *handlers.TournamentHandler,
	bracketHandler *handlers.BracketHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	router.Get("/swagger/*", httpSwagger.WrapHandler)

	// The websocket route stays outside the timeout and rate limited groups.
	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)

	authenticate := middleware.Authenticate(opts.JWTSecret, opts.Logger)

	router.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))
		if opts.RateLimitPerMinute > 0 {
			r.Use(middleware.RateLimit(opts.RateLimitPerMinute, time.Minute))
		}

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", tournamentHandler.ListHandler)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Post("/", tournamentHandler.CreateHandler)
				r.Get("/mine", tournamentHandler.ListMineHandler)
			})

			r.Route("/{tournamentID}", func(r chi.Router) {
				r.Get("/", tournamentHandler.GetByIDHandler)
				r.Get("/players", tournamentHandler.ListPlayersHandler)
				r.Post("/players", tournamentHandler.RegisterPlayerHandler)
				r.Get("/bracket", bracketHandler.GetHandler)

				r.Group(func(r chi.Router) {
					r.Use(authenticate)
					r.Put("/", tournamentHandler.UpdateHandler)
					r.Delete("/", tournamentHandler.DeleteHandler)
					r.Delete("/players/{playerID}", tournamentHandler.RemovePlayerHandler)
					r.Post("/bracket", bracketHandler.GenerateHandler)
					r.Post("/bracket/winner", bracketHandler.RecordWinnerHandler)
					r.Post("/bracket/point", bracketHandler.RecordPointHandler)
					r.Post("/bracket/rounds/{round}/sync", bracketHandler.SyncRoundHandler)
					r.Post("/bracket/byes", bracketHandler.ResolveByesHandler)
				})
			})
		})
	})
}
