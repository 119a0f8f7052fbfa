/*
Copyright 2018 Iguazio Systems Ltd.

Licensed under the Apache License, Version 2.0 (the "License") with
an addition restriction as set forth herein. You may not use this
file except in compliance with the License. You may obtain a copy of
the License at http://www.apache.org/licenses/LICENSE-2.0.

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
implied. See the License for the specific language governing
permissions and limitations under the License.

In addition, you may not use the software for any purposes that are
illegal under applicable law, and the grant of the foregoing license
under the Apache 2.0 license is conditioned upon your compliance with
such restriction.
*/

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path"
	"time"

	nuclioerrors "github.com/nuclio/errors"

	"github.com/v3io/cubes"
	"github.com/v3io/cubes/backends"
	_ "github.com/v3io/cubes/backends/csv"
	_ "github.com/v3io/cubes/backends/json"
	cubesHttp "github.com/v3io/cubes/http"
)

var (
	// Version is cubed version (populated by the build process)
	Version = "unknown"
)

func main() {
	var config struct {
		file        string
		httpAddr    string
		source      string
		showVersion bool
	}

	flag.StringVar(&config.file, "config", "", "path to configuration file (YAML or TOML)")
	flag.StringVar(&config.httpAddr, "addr", "", "address to listen on HTTP (overrides configuration)")
	flag.StringVar(&config.source, "source", "", "path to dataset (overrides configuration)")
	flag.BoolVar(&config.showVersion, "version", false, "show version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [options] [address...]\n", path.Base(os.Args[0]))
		fmt.Fprintln(flag.CommandLine.Output(), "with an address the value is printed, otherwise the HTTP server is started")
		flag.PrintDefaults()
	}
	flag.Parse()

	log.SetFlags(0) // Show only messages

	if config.showVersion {
		fmt.Printf("%s version %s\n", path.Base(os.Args[0]), Version)
		return
	}

	cfg := &cubes.Config{}
	if config.file != "" {
		var err error
		if cfg, err = cubes.NewConfigFromContentsOrPath(nil, config.file); err != nil {
			fatal("can't read config", err)
		}
	}

	if config.source != "" {
		cfg.Source.Path = config.source
		cfg.Source.Type = ""
	}

	if config.httpAddr != "" {
		cfg.HTTP.Address = config.httpAddr
	}

	if err := cfg.InitDefaults(); err != nil {
		fatal("can't init config defaults", err)
	}

	if err := cfg.Validate(); err != nil {
		fatal("bad config", err)
	}

	if cfg.Source.Path == "" {
		log.Fatal("error: no source given (-source or source.path in config)")
	}

	cubesLogger, err := cubes.NewLogger(cfg.Log.Level)
	if err != nil {
		fatal("can't create logger", err)
	}

	frame, err := backends.Load(cubesLogger, &cfg.Source)
	if err != nil {
		fatal("can't load source", err)
	}

	cube, err := cubes.NewFromConfig(frame, cfg, cubes.WithLogger(cubesLogger))
	if err != nil {
		fatal("can't create cube", err)
	}

	if flag.NArg() > 0 {
		printValue(cube, flag.Args())
		return
	}

	hsrv, err := cubesHttp.NewServer(cfg, cube, cubesLogger)
	if err != nil {
		fatal("can't create HTTP server", err)
	}

	if err := hsrv.Start(); err != nil {
		fatal("can't start HTTP server", err)
	}

	fmt.Printf("server running on http=%s\n", cfg.HTTP.Address)

	for hsrv.State() == cubes.RunningState {
		time.Sleep(time.Second)
	}

	if err := hsrv.Err(); err != nil {
		fatal("HTTP server error", err)
	}

	fmt.Println("server down")
}

func printValue(cube *cubes.Cube, args []string) {
	parts := make([]interface{}, len(args))
	for i, arg := range args {
		parts[i] = arg
	}

	ctx, err := cube.Get(parts...)
	if err != nil {
		fatal("bad address", err)
	}

	value, err := ctx.Value()
	if err != nil {
		fatal("can't evaluate", err)
	}

	fmt.Printf("%s = %v\n", ctx.Address(), value)
}

func fatal(message string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s - ", message)
	nuclioerrors.PrintErrorStack(os.Stderr, err, 5)
	os.Exit(1)
}
