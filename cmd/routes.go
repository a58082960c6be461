package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"iapBack/internal/handlers"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders, makeResponseJSON)

	mux := pat.New()

	// Verification
	mux.Post("/iap/verify", standardMiddleware.ThenFunc(app.iapHandler.VerifyPurchase))
	mux.Get("/iap/users/:user_id/subscriptions", standardMiddleware.ThenFunc(app.iapHandler.GetUserSubscriptions))

	// Store notifications
	mux.Post("/iap/webhook/ios", standardMiddleware.ThenFunc(app.webhookHandler.Apple))
	mux.Post("/iap/webhook/apple", standardMiddleware.ThenFunc(app.webhookHandler.Apple))
	mux.Post("/iap/webhook/android", standardMiddleware.ThenFunc(app.webhookHandler.Google))
	mux.Post("/iap/webhook/google", standardMiddleware.ThenFunc(app.webhookHandler.Google))

	// Ops
	mux.Get("/health", standardMiddleware.Then(handlers.Health(app.db)))
	mux.Get("/metrics", alice.New(app.recoverPanic).Then(app.metricsHandler))

	return mux
}
