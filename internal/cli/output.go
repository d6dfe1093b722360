package cli

import (
	"encoding/json"
	"io"
)

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the JSON envelope, shaped like the HTTP API's.
type CLIResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// Success writes data as JSON, or hands the writer to text in text mode.
func (f *OutputFormatter) Success(data any, text func(io.Writer) error) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Success: true, Data: data})
	}
	return text(f.Writer)
}
