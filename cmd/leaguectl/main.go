// cmd/leaguectl is the operator CLI: schema migrations, one-off sweeps, manual waitlist
// promotion and a payment deadline calculator for checking league settings.
package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/logging"
)

func main() {
	logging.Setup("development", os.Getenv("LOG_LEVEL"))
	if err := newRootCmd().Execute(); err != nil {
		log.Debug().Err(err).Msg("leaguectl failed")
		os.Exit(1)
	}
}
