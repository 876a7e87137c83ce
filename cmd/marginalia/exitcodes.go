package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (no vault, invalid paths)
	ExitDataError   = 3 // Data error (malformed BibTeX, unknown citekey)
	ExitNoPDF       = 4 // No source produced a valid PDF
	ExitNoClaude    = 5 // claude CLI not available or not logged in
)
