package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/viper"

	"taskgraph/internal/store"
)

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatus(symbol, message string, colorAttr color.Attribute) {
	fprintStatus(os.Stderr, symbol, message, colorAttr)
}

func fprintStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}

// reportError prints a command failure to w. Store failures were already
// shown as a notification, so they only reach the debug log.
func reportError(w io.Writer, err error) {
	if store.Notified(err) {
		slog.Debug("command failed", "error", err)
		return
	}
	fprintStatus(w, "✗", err.Error(), color.FgRed)
}

// cliNotifier prints store notifications to stderr.
type cliNotifier struct{}

func (cliNotifier) Notify(n store.Notification) {
	if n.Severity == store.SeverityError {
		printStatus("✗", n.Message, color.FgRed)
		return
	}
	printStatus("✓", n.Message, color.FgGreen)
}
