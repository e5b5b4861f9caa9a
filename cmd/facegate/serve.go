package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/facegate/internal/app"
	"github.com/ayusman/facegate/internal/server"
	"github.com/ayusman/facegate/internal/tray"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the camera pipeline and the dashboard",
	Long: `Start the recognition pipeline on the configured camera and serve the
dashboard and HTTP API. Missing models do not stop the server; enroll and
recognize then report that the system is not ready.`,
	RunE: runServe,
}

var (
	serveAddr   string
	serveTray   bool
	serveNoAuto bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveTray, "tray", false, "Show a system tray menu")
	serveCmd.Flags().BoolVar(&serveNoAuto, "no-auto", false, "Start with automatic recognition disabled")
}

func runServe(cmd *cobra.Command, args []string) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := buildApp(cfg, st, appOptions{camera: true, hooks: true, lenient: true})
	if err != nil {
		return err
	}
	defer a.Close()

	a.SetAutoRecognize(cfg.AutoRecognize && !serveNoAuto)
	if err := a.Start(); err != nil {
		log.Printf("Warning: camera pipeline not started: %v", err)
	}

	webDir := cfg.WebDir
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		log.Printf("Serving static files from: %s", webDir)
	}

	srv := server.New(server.Config{App: a, StaticDir: webDir})

	addr := cfg.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	if serveTray {
		t := newTray(a, dashboardURL(addr))
		stopped := make(chan error, 1)
		go func() {
			var err error
			select {
			case <-sigCh:
			case err = <-errCh:
			}
			stopped <- err
			t.Quit()
		}()
		t.Run()
		select {
		case serveErr = <-stopped:
		default:
		}
	} else {
		select {
		case sig := <-sigCh:
			log.Printf("Received %s", sig)
		case serveErr = <-errCh:
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}
	return serveErr
}

// newTray wires the tray menu to a.
func newTray(a *app.App, url string) *tray.Tray {
	t := tray.New(a.AutoRecognize())

	updateStatus := func() {
		n, err := a.Count()
		switch {
		case !a.Ready():
			t.SetStatus("not ready")
		case err != nil:
			t.SetStatus("store unavailable")
		default:
			t.SetStatus(fmt.Sprintf("ready, %d faces", n))
		}
	}
	updateStatus()

	a.OnResult(func(res app.Result) {
		t.SetLast(res.Message)
		updateStatus()
	})

	t.OnEnroll(func() {
		if _, err := a.Enroll(context.Background()); err != nil {
			log.Printf("Enroll failed: %v", err)
		}
	})
	t.OnRecognize(func() {
		if _, err := a.Recognize(context.Background()); err != nil {
			log.Printf("Recognize failed: %v", err)
		}
	})
	t.OnToggle(a.SetAutoRecognize)
	t.OnClear(func() {
		if err := a.Clear(); err != nil {
			log.Printf("Clear failed: %v", err)
		}
		updateStatus()
	})
	t.OnDashboard(func() {
		if err := openBrowser(url); err != nil {
			log.Printf("Failed to open dashboard: %v", err)
		}
	})
	return t
}

func dashboardURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.facegate/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeWebDir := filepath.Join(cfg.DataDir, "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
