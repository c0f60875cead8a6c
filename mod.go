// Package dvp implements a bilateral deal protocol for a distributed ledger.
// Two parties exchange messages to build, sign and notarize a single shared
// transaction: an asset against a cash payment, the opening of a pre-agreed
// deal, or the fixing of a floating rate against an oracle.
//
// The package hierarchy follows an interface-first layout: the top-level
// packages (crypto, mino, serde, ledger) define the abstractions and the
// subpackages provide the implementations. The protocol state machines live
// in the protocol package and its subpackages.
package dvp

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance.
var Logger = zerolog.New(logout).
	With().Timestamp().Logger().
	With().Caller().Logger().
	Level(zerolog.WarnLevel)

// PromCollectors exposes the prometheus collectors created in the module. The
// caller is responsible for registering them against a registry.
var PromCollectors []prometheus.Collector
