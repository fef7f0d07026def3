/*
 * MattRISC - Main process.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattrisc/iss/command"
	"github.com/mattrisc/iss/config"
	"github.com/mattrisc/iss/platform"
	"github.com/mattrisc/iss/statesave"
	"github.com/mattrisc/iss/util/logger"
)

var Logger *slog.Logger

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	programLevel := new(slog.LevelVar)
	if cfg.Verbose {
		programLevel.Set(slog.LevelDebug)
	} else {
		programLevel.Set(slog.LevelInfo)
	}
	Logger = slog.New(logger.NewHandler(os.Stderr, &slog.HandlerOptions{Level: programLevel, AddSource: false}, &cfg.Verbose))
	slog.SetDefault(Logger)

	Logger.Info("MattRISC started")

	sys, err := platform.New(cfg, Logger, os.Stdout)
	if err != nil {
		Logger.Error(err.Error())
		os.Exit(1)
	}
	defer sys.Close()

	// Wait for a SIGINT or SIGTERM signal to gracefully shut down, same as
	// the operator typing "quit" at the console.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		command.Run(sys)
		close(done)
	}()

	select {
	case <-sigChan:
		fmt.Println("Got quit signal")
		sys.Loop.BreakRequested = true
	case <-done:
	}

	if cfg.SaveStatePath != "" {
		if err := writeSaveState(cfg.SaveStatePath, sys); err != nil {
			Logger.Error("save-state: " + err.Error())
		}
	}

	Logger.Info("Shutting down")
}

func writeSaveState(path string, sys *platform.System) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	regions := []statesave.RAMRegion{{Base: platform.RAMBase, Size: platform.RAMSize}}
	return statesave.Save(f, sys.State, sys.Bus, regions...)
}
