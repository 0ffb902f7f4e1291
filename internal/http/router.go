package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"tableside-pos/internal/auth"
	"tableside-pos/internal/http/handlers"
	"tableside-pos/internal/middleware"
	"tableside-pos/internal/ws"
)

func NewRouter(h *handlers.Handler, wsServer *ws.Server) http.Handler {
	cfg := h.Config
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(h.Logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"X-Request-Id",
			},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.TerminalAuth(cfg.TerminalJWTSecret))

		r.Get("/menu", h.MenuList)
		r.Get("/menu/{id}", h.MenuItem)

		r.Route("/tables/{tableId}", func(r chi.Router) {
			r.Use(middleware.Require(auth.PermTables))

			r.Get("/session", h.SessionGet)
			r.Delete("/session", h.SessionClose)

			r.Post("/cart/items", h.CartAdd)
			r.Post("/cart/increment", h.CartIncrement)
			r.Post("/cart/decrement", h.CartDecrement)
			r.Put("/cart/memo", h.CartMemo)

			r.Post("/lines/{lineId}/increment", h.LineIncrement)
			r.Post("/lines/{lineId}/decrement", h.LineDecrement)
			r.Post("/lines/{lineId}/cancel", h.LineCancel)
			r.Put("/lines/{lineId}/quantity", h.LineQuantity)
			r.Put("/lines/{lineId}/memo", h.LineMemo)

			r.Post("/changes/save", h.ChangesSave)
			r.Post("/changes/discard", h.ChangesDiscard)

			r.Post("/send", h.SendToKitchen)
			r.Post("/receipt/print", h.ReceiptPrint)
			r.Get("/receipt.pdf", h.ReceiptPDF)
			r.With(middleware.Require(auth.PermPayments)).Post("/pay", h.Pay)
		})

		r.Route("/rates", func(r chi.Router) {
			r.Get("/", h.RatesGet)
			r.With(middleware.Require(auth.PermRatesSelect)).Put("/selection", h.RatesSelect)
			r.Group(func(r chi.Router) {
				r.Use(middleware.Require(auth.PermRatesManage))
				r.Post("/tax-states", h.RatesAddTax)
				r.Post("/gratuity", h.RatesAddGratuity)
				r.Post("/discounts", h.RatesAddDiscount)
			})
		})

		r.With(middleware.Require(auth.PermLayout)).Put("/layout/tables/{id}", h.LayoutTableUpdate)
	})

	if wsServer != nil {
		r.With(middleware.TerminalAuth(cfg.TerminalJWTSecret), middleware.Require(auth.PermTables)).
			Get("/ws/tables/{tableId}", wsServer.TableWS)
	}

	return r
}
