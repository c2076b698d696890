package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/c-bata/go-prompt"
	"github.com/hession/memochat/internal/app"
	"github.com/hession/memochat/internal/settings"
)

const (
	Version = "0.1.0"

	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
	colorWhite  = "\033[97m"
)

// palette terminal colors for one theme
type palette struct {
	user    prompt.Color
	ai      string
	ok      string
	title   string
	section string
}

func paletteFor(theme string) palette {
	if theme == settings.ThemeDark {
		return palette{user: prompt.Cyan, ai: colorYellow, ok: colorGreen, title: colorWhite, section: colorCyan}
	}
	return palette{user: prompt.Green, ai: colorBlue, ok: colorGreen, title: colorCyan, section: colorYellow}
}

// Run starts the interactive REPL
func Run(ctx context.Context, a *app.App) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Printf("\n\n%sGoodbye! 👋%s\n", colorCyan, colorReset)
			cancel()
			os.Exit(0)
		case <-ctx.Done():
		}
	}()

	session := NewSession(a, os.Stdout, askLine)
	defer session.Close()

	printWelcome(a)

	var history []string
	for {
		line := prompt.Input(a.Prompts.UserLabel+": ", session.Complete,
			prompt.OptionTitle("memochat"),
			prompt.OptionHistory(history),
			prompt.OptionPrefixTextColor(session.palette.user),
			prompt.OptionSuggestionBGColor(prompt.DarkGray),
			prompt.OptionSelectedSuggestionBGColor(prompt.Blue),
		)
		if strings.TrimSpace(line) != "" {
			history = append(history, line)
		}
		if !session.Handle(ctx, line) {
			return nil
		}
	}
}

// askLine reads one line without completion, used for PIN entry
func askLine(label string) (string, error) {
	return prompt.Input(label, func(prompt.Document) []prompt.Suggest { return nil }), nil
}

// printWelcome prints welcome message
func printWelcome(a *app.App) {
	fmt.Printf("\n%s💬 MemoChat v%s%s - chat with %s\n", colorCyan, Version, colorReset, a.Settings.AIName())
	fmt.Printf("%sModel: %s · Storage: %s · Knowledge files: %d%s\n",
		colorGray, a.Settings.SelectedModel(), a.Storage.Kind(), a.Knowledge.Len(), colorReset)
	fmt.Printf("%sType /help for help, /exit to quit%s\n\n", colorGray, colorReset)
}

// truncateForDisplay flattens whitespace and cuts text to maxLen characters
func truncateForDisplay(text string, maxLen int) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}

// formatSize renders a byte count for listings
func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
