package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/caffeineduck/snoop/executor"
	"github.com/caffeineduck/snoop/module"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for module runs",
	Long: `Start an HTTP server that runs installed modules on request.

Endpoints:
  POST   /run        Run a module, body {"module":"author/name","arg":...}
  GET    /modules    List installed modules
  GET    /health     Health check`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	addRunFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

type runRequest struct {
	Module  string `json:"module"`
	Arg     any    `json:"arg,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

type runResponse struct {
	Output     string `json:"output"`
	Value      any    `json:"value,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type moduleResponse struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
}

func newServer(exec *executor.Executor, store *module.Store, opts []executor.Option) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Module == "" {
			http.Error(w, "module required", http.StatusBadRequest)
			return
		}

		mod, err := store.Get(req.Module)
		switch {
		case errors.Is(err, module.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		runOpts := opts
		if req.Timeout != "" {
			d, err := time.ParseDuration(req.Timeout)
			if err != nil {
				http.Error(w, "invalid timeout", http.StatusBadRequest)
				return
			}
			runOpts = append(append([]executor.Option{}, opts...), executor.WithTimeout(d))
		}

		result := exec.Run(r.Context(), mod, req.Arg, runOpts...)

		resp := runResponse{
			Output:     result.Output,
			Value:      result.Value,
			DurationMs: result.Duration.Milliseconds(),
		}
		if result.Error != nil {
			resp.Error = result.Error.Error()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/modules", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		mods, err := store.Load()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp := make([]moduleResponse, 0, len(mods))
		for _, m := range mods {
			resp = append(resp, moduleResponse{
				Name:        m.Canonical(),
				Kind:        string(m.Kind),
				Version:     m.Version,
				Description: m.Description,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

func runServe(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")

	exec, err := newExecutor()
	if err != nil {
		return err
	}
	defer exec.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           newServer(exec, newStore(), runOptions(cmd)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx := cmd.Context()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("snoop server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
