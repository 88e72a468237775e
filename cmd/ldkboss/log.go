package main

import (
	"os"

	"github.com/btcsuite/btclog"

	"github.com/joemphilips/ldkboss/autopilot"
	"github.com/joemphilips/ldkboss/boss"
	"github.com/joemphilips/ldkboss/fees"
	"github.com/joemphilips/ldkboss/judge"
	"github.com/joemphilips/ldkboss/ldkrpc"
	"github.com/joemphilips/ldkboss/rebalancer"
	"github.com/joemphilips/ldkboss/reconnector"
	"github.com/joemphilips/ldkboss/state"
	"github.com/joemphilips/ldkboss/tracker"
)

// log is the logger for the main package itself.
var log btclog.Logger

// setupLoggers creates one logger per subsystem, all writing to stdout
// at the configured level.
func setupLoggers(levelStr string) {
	backend := btclog.NewBackend(os.Stdout)

	level, ok := btclog.LevelFromString(levelStr)
	if !ok {
		level = btclog.LevelInfo
	}

	newLogger := func(tag string) btclog.Logger {
		l := backend.Logger(tag)
		l.SetLevel(level)
		return l
	}

	log = newLogger("MAIN")
	boss.UseLogger(newLogger("BOSS"))
	ldkrpc.UseLogger(newLogger("LDKC"))
	state.UseLogger(newLogger("STAT"))
	tracker.UseLogger(newLogger("TRCK"))
	fees.UseLogger(newLogger("FEES"))
	autopilot.UseLogger(newLogger("AUTO"))
	rebalancer.UseLogger(newLogger("RBAL"))
	judge.UseLogger(newLogger("JDGE"))
	reconnector.UseLogger(newLogger("RCON"))
}
