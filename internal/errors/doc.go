// Package errors provides coded, actionable errors for the wt-tracker
// command line.
//
// Errors raised while loading configuration, binding listeners or parsing
// flags carry a stable code, a plain-language explanation and, where one
// exists, a hint on how to fix the problem. Message-level failures inside
// the gateway do not use this package; they stay typed errors in
// pkg/gateway.
//
// # Error Categories
//
//   - config: the configuration file is unreadable or has invalid values
//   - transport: listeners could not bind or stopped serving
//   - cli: bad flags and fail-fast exits
//
// # Error Codes
//
// Codes E100-E199 are configuration errors, E200-E299 transport errors and
// E300-E399 command-line errors. Each code maps to a short message, a detail
// paragraph and a documentation URL.
//
// # Usage
//
//	err := errors.New(errors.CodeInvalidPort).
//	    WithLocation("wt-tracker.json", "servers[0].server.port").
//	    WithSuggestion("Use a port between 1 and 65535")
//
//	fmt.Print(err.Format())
//	// Output:
//	// ERROR E102: Invalid port number
//	//
//	//   wt-tracker.json: servers[0].server.port
//	//
//	//   Ports must be between 1 and 65535.
//	//
//	//   Hint: Use a port between 1 and 65535
package errors
