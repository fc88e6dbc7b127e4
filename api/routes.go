package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"reelist/handlers"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	authHandler *handlers.AuthHandler,
	usersHandler *handlers.UsersHandler,
	watchlistHandler *handlers.WatchlistHandler,
	friendsHandler *handlers.FriendsHandler,
	activityHandler *handlers.ActivityHandler,
	catalogHandler *handlers.CatalogHandler,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	// Auth routes (no session required)
	api.HandleFunc("/auth/signup", authHandler.SignUp).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/auth/login", authHandler.LogIn).Methods(http.MethodPost, http.MethodOptions)

	// Everything below requires a valid bearer session.
	protected := api.PathPrefix("").Subrouter()
	protected.Use(authHandler.RequireSession)

	protected.HandleFunc("/auth/logout", authHandler.LogOut).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/auth/me", authHandler.Me).Methods(http.MethodGet, http.MethodOptions)

	// Users and friendships
	protected.HandleFunc("/users/search", usersHandler.Search).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/users/{userID}", usersHandler.Profile).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/users/{userID}/friends", usersHandler.Friends).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/friends/{friendID}", usersHandler.Unfriend).Methods(http.MethodDelete, http.MethodOptions)

	// Friend requests
	protected.HandleFunc("/friends/requests", friendsHandler.Send).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/friends/requests/incoming", friendsHandler.Incoming).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/friends/requests/outgoing", friendsHandler.Outgoing).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/friends/requests/{requestID}/accept", friendsHandler.Accept).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/friends/requests/{requestID}/decline", friendsHandler.Decline).Methods(http.MethodPost, http.MethodOptions)

	// Watchlists. Reads accept any user id (friends only), writes act on the
	// session user.
	protected.HandleFunc("/users/{userID}/watchlist/{kind}", watchlistHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/watchlist/{kind}", watchlistHandler.Move).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/watchlist/{kind}/{list}/{mediaID}", watchlistHandler.Remove).Methods(http.MethodDelete, http.MethodOptions)
	protected.HandleFunc("/watchlist/{kind}/{list}/{mediaID}/rating", watchlistHandler.Rate).Methods(http.MethodPut, http.MethodOptions)
	protected.HandleFunc("/watchlist/tv/{list}/{mediaID}/step", watchlistHandler.Step).Methods(http.MethodPost, http.MethodOptions)

	// Activity
	protected.HandleFunc("/activity/recent", activityHandler.Recent).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/activity/feed", activityHandler.Feed).Methods(http.MethodGet, http.MethodOptions)

	// Catalog
	protected.HandleFunc("/catalog/search", catalogHandler.Search).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/catalog/discover", catalogHandler.Discover).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/catalog/trending", catalogHandler.Trending).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/catalog/genres/{kind}", catalogHandler.Genres).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/catalog/{kind}/{mediaID}", catalogHandler.Details).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/catalog/{kind}/{mediaID}/similar", catalogHandler.Similar).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/catalog/{kind}/{mediaID}/credits", catalogHandler.Credits).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/catalog/{kind}/{mediaID}/providers", catalogHandler.Providers).Methods(http.MethodGet, http.MethodOptions)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
}
