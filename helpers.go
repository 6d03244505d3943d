package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mgmeyers/pdfworkspace/config"
	"github.com/mgmeyers/pdfworkspace/logging"
	"github.com/mgmeyers/pdfworkspace/storage"
)

// Env is what every command runs with.
type Env struct {
	Config *config.Config
	Logger *zap.Logger
}

func newEnv(g Globals) (*Env, error) {
	path := g.Config
	if path == "" {
		path = filepath.Join(config.DefaultDataDir(), "config.yaml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if g.Verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	logger.Debug("config loaded", zap.String("path", path))

	return &Env{Config: cfg, Logger: logger}, nil
}

func openRecords(env *Env) (*storage.Records, error) {
	return storage.OpenRecords(env.Config.Database.Path, storage.WithRecordsLogger(env.Logger))
}

func endIfErr(e error) {
	if e != nil {
		eLog := log.New(os.Stderr, "", 0)
		eLog.Fatalln(e)
	}
}

func logOutput(v interface{}) {
	out, err := json.Marshal(v)

	endIfErr(err)

	oLog := log.New(os.Stdout, "", 0)
	oLog.Println(string(out))
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
