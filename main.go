package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"

	"reelist/api"
	"reelist/config"
	"reelist/handlers"
	"reelist/services/activity"
	"reelist/services/catalog"
	"reelist/services/friends"
	"reelist/services/sessions"
	"reelist/services/users"
	"reelist/services/watchlist"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("🎬 reelist backend starting...")

	configPath := os.Getenv("REELIST_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("data", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	if apiKey := strings.TrimSpace(os.Getenv("TMDB_API_KEY")); apiKey != "" {
		settings.TMDB.APIKey = apiKey
	}
	if strings.TrimSpace(settings.TMDB.APIKey) == "" {
		log.Printf("warning: no TMDB api key configured; catalog endpoints will return errors")
	}

	catalogService := catalog.NewService(settings.TMDB.APIKey, settings.TMDB.Language, settings.TMDB.WatchRegion)

	activityService, err := activity.NewService(settings.Storage.DatabasePath)
	if err != nil {
		log.Fatalf("failed to initialise activity log: %v", err)
	}
	defer activityService.Close()

	userService, err := users.NewService(settings.Storage.Directory)
	if err != nil {
		log.Fatalf("failed to initialise users: %v", err)
	}

	watchlistService, err := watchlist.NewService(settings.Storage.Directory, catalogService, activityService)
	if err != nil {
		log.Fatalf("failed to initialise watchlists: %v", err)
	}

	friendsService, err := friends.NewService(settings.Storage.Directory, userService)
	if err != nil {
		log.Fatalf("failed to initialise friend requests: %v", err)
	}

	sessionService := sessions.NewService(time.Duration(settings.Sessions.TTLHours) * time.Hour)

	r := mux.NewRouter()
	api.Register(
		r,
		handlers.NewAuthHandler(userService, sessionService),
		handlers.NewUsersHandler(userService),
		handlers.NewWatchlistHandler(watchlistService, userService),
		handlers.NewFriendsHandler(friendsService),
		handlers.NewActivityHandler(activityService, userService),
		handlers.NewCatalogHandler(catalogService),
	)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	log.Println("shutdown complete")
}
