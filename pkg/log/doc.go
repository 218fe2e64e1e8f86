/*
Package log provides structured logging for arcflow using zerolog.

All components obtain a logger via log.WithComponent("window"),
log.WithComponent("node"), etc. so log lines carry a component field
that lets an operator filter the output of a single pipeline stage.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("window")
	logger.Debug().Uint64("key", key).Msg("window fired")
*/
package log
