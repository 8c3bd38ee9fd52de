// Command verseserver is the Verse shared-scene server entry point:
// it loads configuration, wires the authentication backend and
// optional persistence projection, builds the server.Context, and
// serves WebSocket sessions and a Prometheus scrape endpoint until
// told to shut down (spec.md §1 "configuration loading, logging
// setup, daemonization, CLI parsing" — explicitly out of scope for
// the core, implemented here as the composition root instead).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/verse-project/verse/authn"
	"github.com/verse-project/verse/config"
	"github.com/verse-project/verse/metrics"
	"github.com/verse-project/verse/persist"
	"github.com/verse-project/verse/server"
	"github.com/verse-project/verse/session"
	"github.com/verse-project/verse/user"
	"github.com/verse-project/verse/wsupgrade"
)

var banner = logrus.New()

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "verseserver",
		Short: "Verse shared-scene protocol server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "verse.ini", "path to the server's INI configuration file")

	if err := root.Execute(); err != nil {
		glog.Fatalf("verseserver: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	banner.Infof("verseserver starting: tcp=%d ws=%d mongo=%t",
		cfg.Global.TCPPort, cfg.Global.WSPort, cfg.MongoDB.DatabaseName != "")

	metricsReg := metrics.New()
	srv := server.New(nil, metricsReg)
	auth, err := buildAuthn(cfg, srv.Users)
	if err != nil {
		return err
	}
	srv.Auth = auth

	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MongoDB.DatabaseName != "" {
		store, err := connectMongo(bgCtx, cfg.MongoDB)
		if err != nil {
			glog.Errorf("verseserver: mongo connect failed, running without persistence: %v", err)
		} else {
			store.Metrics = metricsReg
			srv.Store = store
			defer store.Close(bgCtx)
		}
	}

	if err := srv.Bootstrap(bgCtx); err != nil {
		return err
	}

	if srv.Store != nil {
		sched := cron.New()
		sched.Start()
		defer sched.Stop()
		if err := persist.StartPeriodicFlush(bgCtx, sched, cfg.MongoDB.FlushCron, srv.Store, srv.Core.Store); err != nil {
			glog.Errorf("verseserver: could not start periodic flush: %v", err)
		}
	}

	g, gctx := errgroup.WithContext(bgCtx)
	g.Go(func() error {
		srv.Run(gctx)
		return nil
	})

	var nextSessionID atomic.Uint32
	upgrader := wsupgrade.NewUpgrader(srv.Core, nil)
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsReg.Handler())
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(w, r, srv, upgrader, &nextSessionID)
	})

	httpSrv := &http.Server{Addr: ":" + strconv.Itoa(cfg.Global.WSPort), Handler: mux}
	g.Go(func() error {
		glog.Infof("verseserver: websocket listener on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		banner.Info("verseserver: shutdown signal received")
	case <-gctx.Done():
	}

	srv.Shutdown(5 * time.Second)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)
	cancel()

	if err := g.Wait(); err != nil {
		return err
	}
	banner.Info("verseserver: stopped cleanly")
	return nil
}

// buildAuthn constructs the Authenticator backend selected by
// cfg.Users.Method, populating dir with whatever accounts that backend
// already knows about at start-up (CSV: every row; LDAP: none, and a
// bind for a username dir does not hold is rejected) per spec.md's
// supplemented CSV + LDAP backends
// (§1, DESIGN.md).
func buildAuthn(cfg config.Config, dir *user.Directory) (authn.Authenticator, error) {
	switch cfg.Users.Method {
	case "ldap":
		return &authn.LDAPAuthenticator{
			Users:      dir,
			Bind:       &authn.NetBinder{Addr: cfg.LDAP.Addr, Timeout: time.Duration(cfg.LDAP.BindTimeoutSeconds) * time.Second},
			DNTemplate: cfg.LDAP.DNTemplate,
		}, nil
	default:
		f, err := os.Open(cfg.Users.File)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if _, err := authn.LoadCSV(f, dir); err != nil {
			return nil, err
		}
		return &authn.DirectoryAuthenticator{Users: dir}, nil
	}
}

func connectMongo(ctx context.Context, cfg config.MongoDB) (*persist.Store, error) {
	return persist.Connect(ctx, persist.Config{
		URI:              "mongodb://" + cfg.ServerHostname + ":" + strconv.Itoa(cfg.ServerPort),
		Database:         cfg.DatabaseName,
		MaxConcurrentOps: int64(cfg.MaxConcurrentOps),
	})
}

// serveWS is the HTTP entry point for a new WebSocket connection: it
// authenticates via HTTP Basic auth (the one in-band credential
// exchange a plain upgrade request can carry) before handing off to
// the Upgrader (spec.md §1 "authenticate(username, password) ->
// user_id | Denied").
func serveWS(w http.ResponseWriter, r *http.Request, srv *server.Context, up *wsupgrade.Upgrader, nextID *atomic.Uint32) {
	username, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="verse"`)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	userID, ok := srv.Auth.Authenticate(r.Context(), username, password)
	if !ok {
		http.Error(w, "denied", http.StatusForbidden)
		return
	}
	id := nextID.Add(1)
	up.ServeHTTP(w, r, session.ID(id), userID)
}
