package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hivellm/nexus/httpapi"
	"github.com/hivellm/nexus/persist/pgcatalog"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the graph over HTTP (POST /query, GET /stats)",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().String("port", "8080", "HTTP listen port")
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) {
	dataDir := viper.GetString("data_dir")
	sess, err := openSession(dataDir)
	if err != nil {
		logrus.Fatal(err)
	}

	if pgURL := viper.GetString("postgres_url"); pgURL != "" {
		mirror, err := pgcatalog.Open(pgURL)
		if err != nil {
			logrus.WithError(err).Warn("catalog mirror unavailable, continuing without it")
		} else {
			defer mirror.Close()
			if err := mirror.Sync(sess.Catalog); err != nil {
				logrus.WithError(err).Warn("initial catalog mirror sync failed")
			}
		}
	}

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	httpapi.New(sess).RegisterRoutes(e.Group(""))

	port := viper.GetString("port")
	go func() {
		logrus.WithField("port", port).Info("nexusd listening")
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logrus.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logrus.Error(err)
	}

	if err := saveSession(dataDir, sess); err != nil {
		logrus.Error(err)
	}
}
