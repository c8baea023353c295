// Package logging provides structured logging for lockreg.
//
// It wraps Go's log/slog to emit JSON-formatted records with persistent
// context (component, asset, caller) so that every lock transition and every
// vetoed transfer can be traced after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/state", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	ledgerLog := logger.WithComponent("ledger")
//	ledgerLog.WithAsset("42").Info("lock placed", "locker", "0xbeef")
//
// Components accept a nil *Logger and fall back to [NopLogger].
package logging
