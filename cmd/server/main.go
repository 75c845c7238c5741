package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codescope/server/internal/mcp"
	"codescope/server/internal/middleware"
	"codescope/server/internal/modules"
	"codescope/server/internal/modules/review"
	"codescope/server/internal/observability"
	"codescope/server/internal/store"
	"codescope/server/pkg/githubapi"
)

const (
	defaultPort     = "8089"
	shutdownTimeout = 30 * time.Second
	requestsPerSec  = 10
)

func main() {
	observability.Init()

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	if os.Getenv("GITHUB_TOKEN") == "" {
		log.Println("GITHUB_TOKEN not set, running at the unauthenticated GitHub rate limit")
	}

	client := githubapi.NewClient(os.Getenv("GITHUB_TOKEN"))
	modules.RegisterModule(review.New(store.New(), client))

	rl := middleware.NewRateLimiter(requestsPerSec)
	mcpHandler := middleware.Recovery(
		middleware.RequestID(
			rl.Middleware(
				middleware.Transport(mcp.NewHandler()))))

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		log.Printf("MCP server listening on :%s, modules: %v", port, modules.ListModules())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	log.Println("server stopped")
}
