// Package logging provides structured logging for the asset transfer service.
//
// It wraps log/slog so every component logs the same way, with service and
// version attached to each entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("transfer executed", "asset_id", id, "new_owner", owner)
//	logger.Error("ledger commit failed", "error", err)
//
// Never log passwords, JWTs, or signing secrets.
package logging
