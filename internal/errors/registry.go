package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
	DocURL     string
}

const docBase = "https://github.com/darkkid0/wt-tracker/blob/main/docs/errors.md#"

// Registered error codes.
const (
	CodeConfigRead      = "E100"
	CodeConfigParse     = "E101"
	CodeInvalidPort     = "E102"
	CodeInvalidPayload  = "E103"
	CodeTLSPair         = "E104"
	CodeNoServers       = "E105"
	CodeTrackerSettings = "E106"
	CodeConfigWrite     = "E107"
	CodeInvalidTimeout  = "E108"
	CodeCompression     = "E109"

	CodeBind        = "E200"
	CodeServeFailed = "E201"
	CodeShutdown    = "E202"

	CodeInvalidFlag   = "E300"
	CodeConfigExists  = "E301"
	CodeInternalFault = "E302"
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Configuration errors (E100-E199)

	CodeConfigRead: {
		Category:   CategoryConfig,
		Message:    "Cannot read configuration file",
		Detail:     "The configuration file could not be opened or read.",
		Suggestion: "Check the path passed with --config, or run `wt-tracker init` to create one.",
		DocURL:     docBase + "e100",
	},
	CodeConfigParse: {
		Category:   CategoryConfig,
		Message:    "Invalid configuration file",
		Detail:     "The configuration file is not valid JSON or has fields of the wrong type.",
		Suggestion: "Compare the file against the output of `wt-tracker init`.",
		DocURL:     docBase + "e101",
	},
	CodeInvalidPort: {
		Category: CategoryConfig,
		Message:  "Invalid port number",
		Detail:   "Ports must be between 1 and 65535.",
		DocURL:   docBase + "e102",
	},
	CodeInvalidPayload: {
		Category: CategoryConfig,
		Message:  "Invalid maximum payload length",
		Detail:   "maxPayloadLength must be a positive number of bytes.",
		DocURL:   docBase + "e103",
	},
	CodeTLSPair: {
		Category:   CategoryConfig,
		Message:    "Incomplete TLS configuration",
		Detail:     "TLS needs both key_file_name and cert_file_name.",
		Suggestion: "Set both files, or remove key_file_name to serve plain WebSockets.",
		DocURL:     docBase + "e104",
	},
	CodeNoServers: {
		Category: CategoryConfig,
		Message:  "No servers configured",
		Detail:   "The servers list is empty, so there is nothing to listen on.",
		DocURL:   docBase + "e105",
	},
	CodeTrackerSettings: {
		Category: CategoryConfig,
		Message:  "Invalid tracker settings",
		Detail:   "maxOffers and announceInterval must be positive.",
		DocURL:   docBase + "e106",
	},
	CodeConfigWrite: {
		Category: CategoryConfig,
		Message:  "Cannot write configuration file",
		Detail:   "The configuration file could not be created or written.",
		DocURL:   docBase + "e107",
	},
	CodeInvalidTimeout: {
		Category: CategoryConfig,
		Message:  "Invalid idle timeout",
		Detail:   "idleTimeout is a number of seconds and cannot be negative. 0 disables it.",
		DocURL:   docBase + "e108",
	},
	CodeCompression: {
		Category: CategoryConfig,
		Message:  "Invalid compression setting",
		Detail:   `compression must be "enabled" or "disabled", and compressionLevel between -2 and 9.`,
		DocURL:   docBase + "e109",
	},

	// Transport errors (E200-E299)

	CodeBind: {
		Category:   CategoryTransport,
		Message:    "Failed to listen",
		Detail:     "The server could not bind its address or load its certificate.",
		Suggestion: "Check that the port is free and the TLS files are readable.",
		DocURL:     docBase + "e200",
	},
	CodeServeFailed: {
		Category: CategoryTransport,
		Message:  "Server stopped unexpectedly",
		Detail:   "The listener returned an error while serving connections.",
		DocURL:   docBase + "e201",
	},
	CodeShutdown: {
		Category: CategoryTransport,
		Message:  "Graceful shutdown timed out",
		Detail:   "Some connections were still open when the shutdown deadline passed.",
		DocURL:   docBase + "e202",
	},

	// CLI errors (E300-E399)

	CodeInvalidFlag: {
		Category: CategoryCLI,
		Message:  "Invalid command-line flag",
		DocURL:   docBase + "e300",
	},
	CodeConfigExists: {
		Category:   CategoryCLI,
		Message:    "Configuration file already exists",
		Detail:     "init will not overwrite an existing configuration file.",
		Suggestion: "Pass --force to overwrite it.",
		DocURL:     docBase + "e301",
	},
	CodeInternalFault: {
		Category: CategoryCLI,
		Message:  "Internal fault while handling a message",
		Detail:   "The tracker core failed unexpectedly and --fail-fast is set.",
		DocURL:   docBase + "e302",
	},
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

