// Package web holds the page of the simulation monitor.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/sirupsen/logrus"
)

// DevModeEnv names the variable that makes GetAssets serve the page from the
// source tree, so that it can be edited while a simulation runs.
const DevModeEnv = "HMCSIM_MONITOR_DEV"

//go:embed dist/*
var dist embed.FS

// GetAssets returns the files of the monitor page.
func GetAssets() http.FileSystem {
	if dir, ok := sourceDir(); ok {
		logrus.WithField("dir", dir).Info("serving monitor page from source")
		return http.Dir(dir)
	}

	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}

func sourceDir() (string, bool) {
	dev, err := strconv.ParseBool(os.Getenv(DevModeEnv))
	if err != nil || !dev {
		return "", false
	}

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		return "", false
	}

	return filepath.Join(filepath.Dir(thisFile), "dist"), true
}
