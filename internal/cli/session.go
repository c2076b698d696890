package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/hession/memochat/internal/app"
	"github.com/hession/memochat/internal/backup"
	"github.com/hession/memochat/internal/config"
	"github.com/hession/memochat/internal/errs"
	"github.com/hession/memochat/internal/event"
	"github.com/hession/memochat/internal/llm"
	"github.com/hession/memochat/internal/settings"
)

// AskFunc reads one line of input after showing label
type AskFunc func(label string) (string, error)

// gated commands require the PIN once per session when one is set
var gated = map[string]bool{
	"/config": true,
	"/kb":     true,
	"/export": true,
	"/import": true,
	"/prompt": true,
	"/model":  true,
	"/pin":    true,
}

var commands = []prompt.Suggest{
	{Text: "/help", Description: "Show help"},
	{Text: "/clear", Description: "Clear the conversation"},
	{Text: "/exit", Description: "Exit"},
	{Text: "/config", Description: "Show settings or set an API key"},
	{Text: "/model", Description: "List or select the model"},
	{Text: "/name", Description: "Show or set the assistant name"},
	{Text: "/theme", Description: "Show or set light/dark"},
	{Text: "/prompt", Description: "Show or set the system prompt"},
	{Text: "/context", Description: "Show or set the context window"},
	{Text: "/kb", Description: "Knowledge base: list, add, rm, stats"},
	{Text: "/export", Description: "Write a backup file"},
	{Text: "/import", Description: "Restore a backup file"},
	{Text: "/pin", Description: "Set or clear the PIN"},
	{Text: "/recall", Description: "How memory recall works"},
}

// Session runs commands and chat turns against one app
type Session struct {
	app      *app.App
	out      io.Writer
	ask      AskFunc
	unlocked bool

	aiName  string
	palette palette
	cancels []func()
}

// NewSession subscribes to name and theme changes so the prompt follows them
func NewSession(a *app.App, out io.Writer, ask AskFunc) *Session {
	s := &Session{
		app:     a,
		out:     out,
		ask:     ask,
		aiName:  a.Settings.AIName(),
		palette: paletteFor(a.Settings.Theme()),
	}
	s.cancels = append(s.cancels,
		a.Bus.Subscribe(event.AINameChanged, func(ev event.Event) {
			s.aiName = ev.String("aiName")
		}),
		a.Bus.Subscribe(event.ThemeChanged, func(ev event.Event) {
			s.palette = paletteFor(ev.String("theme"))
		}),
	)
	return s
}

// Close removes the event subscriptions
func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
}

// AIName returns the assistant label currently shown
func (s *Session) AIName() string {
	return s.aiName
}

func (s *Session) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Session) success(format string, args ...interface{}) {
	s.printf("%s%s%s\n", s.palette.ok, fmt.Sprintf(format, args...), colorReset)
}

func (s *Session) failure(err error) {
	s.printf("%s❌ %s%s\n", colorRed, errs.UserMessage(err), colorReset)
}

func (s *Session) hint(format string, args ...interface{}) {
	s.printf("%s%s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
}

// Handle processes one input line and returns false when the session ends
func (s *Session) Handle(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}
	if strings.HasPrefix(input, "/") {
		return s.command(ctx, input)
	}
	s.send(ctx, input)
	return true
}

func (s *Session) send(ctx context.Context, input string) {
	reply, err := s.app.Chat.Send(ctx, input)
	if err != nil {
		// the error is already in the chat log as the assistant's answer
		s.printf("\n%s%s:%s %s%s: %s%s\n\n", s.palette.ai, s.aiName, colorReset,
			colorRed, s.app.Prompts.ErrorPrefix, errs.UserMessage(err), colorReset)
		return
	}
	s.printf("\n%s%s:%s %s\n\n", s.palette.ai, s.aiName, colorReset, reply.Content)
}

// unlock asks for the PIN when one is set and not yet entered
func (s *Session) unlock() bool {
	if s.unlocked || !s.app.Pin.IsSet() {
		return true
	}
	if s.ask == nil {
		s.failure(errs.New(errs.ValidationFailure, "cli.pin", "PIN required"))
		return false
	}
	entered, err := s.ask("PIN: ")
	if err != nil || !s.app.Pin.Check(strings.TrimSpace(entered)) {
		s.failure(errs.New(errs.ValidationFailure, "cli.pin", "incorrect PIN"))
		return false
	}
	s.unlocked = true
	return true
}

func (s *Session) command(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	name := strings.ToLower(parts[0])
	args := parts[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(input, parts[0]))

	if gated[name] && !s.unlock() {
		return true
	}

	switch name {
	case "/help":
		s.printHelp()
	case "/exit", "/quit", "/q":
		s.printf("%sGoodbye! 👋%s\n", colorCyan, colorReset)
		return false
	case "/clear":
		s.app.History.Clear()
		s.success("✅ Conversation cleared")
	case "/config":
		s.configCommand(args)
	case "/model":
		s.modelCommand(args)
	case "/name":
		s.nameCommand(rest)
	case "/theme":
		s.themeCommand(args)
	case "/prompt":
		s.promptCommand(rest)
	case "/context":
		s.contextCommand(args)
	case "/kb":
		s.kbCommand(args)
	case "/export":
		s.exportCommand(args)
	case "/import":
		s.importCommand(args)
	case "/pin":
		s.pinCommand(args)
	case "/recall":
		s.printRecallTips()
	default:
		s.printf("%s❓ Unknown command: %s%s\n", colorYellow, input, colorReset)
		s.printf("Type /help for available commands\n")
	}
	return true
}

func (s *Session) configCommand(args []string) {
	if len(args) == 2 {
		keys := s.app.Settings.APIKeys()
		switch strings.ToLower(args[0]) {
		case string(llm.ProviderOpenAI):
			keys.OpenAI = args[1]
		case string(llm.ProviderDeepSeek):
			keys.DeepSeek = args[1]
		default:
			s.failure(errs.New(errs.ValidationFailure, "cli.config", "usage: /config openai|deepseek <api-key>"))
			return
		}
		s.app.Settings.SetAPIKeys(keys)
		s.success("✅ %s API key saved", llm.Provider(strings.ToLower(args[0])).DisplayName())
		return
	}

	st := s.app.Settings
	keys := st.APIKeys()
	s.printf("Storage backend: %s (%d keys stored)\n", s.app.Storage.Kind(), len(s.app.Storage.StoredKeys()))
	s.printf("OpenAI API key: %s\n", config.RedactAPIKey(keys.OpenAI))
	s.printf("DeepSeek API key: %s\n", config.RedactAPIKey(keys.DeepSeek))
	s.printf("Model: %s\n", st.SelectedModel())
	s.printf("Assistant name: %s\n", st.AIName())
	s.printf("Theme: %s\n", st.Theme())
	s.printf("Context messages: %d\n", st.MaxContextMessages())
	s.printf("Knowledge files: %d\n", s.app.Knowledge.Len())
	s.printf("PIN: %v\n", s.app.Pin.IsSet())
	s.hint("Use /config openai|deepseek <api-key> to set a key")
}

func (s *Session) modelCommand(args []string) {
	if len(args) == 0 {
		current := s.app.Settings.SelectedModel()
		for _, m := range llm.Models {
			marker := "  "
			if m.ID == current {
				marker = "* "
			}
			s.printf("%s%-15s %s (%s)\n", marker, m.ID, m.Name, m.Provider.DisplayName())
		}
		return
	}
	if err := s.app.Settings.SetSelectedModel(args[0]); err != nil {
		s.failure(err)
		return
	}
	s.success("✅ Model set to %s", args[0])
}

func (s *Session) nameCommand(name string) {
	if name == "" {
		s.printf("Assistant name: %s\n", s.app.Settings.AIName())
		return
	}
	if err := s.app.Settings.SetAIName(name); err != nil {
		s.failure(err)
		return
	}
	s.success("✅ Assistant name set to %s", s.aiName)
}

func (s *Session) themeCommand(args []string) {
	if len(args) == 0 {
		s.printf("Theme: %s\n", s.app.Settings.Theme())
		return
	}
	if err := s.app.Settings.SetTheme(args[0]); err != nil {
		s.failure(err)
		return
	}
	s.success("✅ Theme set to %s", s.app.Settings.Theme())
}

func (s *Session) promptCommand(text string) {
	switch {
	case text == "":
		s.printf("%s\n", s.app.Settings.SystemPrompt())
	case strings.EqualFold(text, "reset"):
		s.app.Settings.SetSystemPrompt("")
		s.success("✅ System prompt restored")
	default:
		s.app.Settings.SetSystemPrompt(text)
		s.success("✅ System prompt saved")
	}
}

func (s *Session) contextCommand(args []string) {
	if len(args) == 0 {
		s.printf("Context messages: %d\n", s.app.Settings.MaxContextMessages())
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		s.failure(errs.New(errs.ValidationFailure, "cli.context", "context window must be a number"))
		return
	}
	s.app.Settings.SetMaxContextMessages(n)
	s.success("✅ Context window set to %d", s.app.Settings.MaxContextMessages())
}

func (s *Session) kbCommand(args []string) {
	sub := "list"
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}

	switch sub {
	case "list":
		files := s.app.Knowledge.Files()
		if len(files) == 0 {
			s.hint("Knowledge base is empty. Use /kb add <path>")
			return
		}
		for _, f := range files {
			s.printf("%s  %-24s %6s  %s\n", f.ID, truncateForDisplay(f.Name, 24), formatSize(f.Size), f.DateAdded.Format("2006-01-02"))
		}
	case "add":
		if len(args) < 2 {
			s.failure(errs.New(errs.ValidationFailure, "cli.kb", "usage: /kb add <path>"))
			return
		}
		f, err := s.app.Knowledge.AddFile(strings.Join(args[1:], " "))
		if err != nil {
			s.failure(err)
			return
		}
		s.success("✅ Added %s (%s)", f.Name, f.ID)
	case "rm", "delete":
		if len(args) < 2 {
			s.failure(errs.New(errs.ValidationFailure, "cli.kb", "usage: /kb rm <id>"))
			return
		}
		if !s.app.Knowledge.Delete(args[1]) {
			s.failure(errs.New(errs.ValidationFailure, "cli.kb", "no knowledge file with id "+args[1]))
			return
		}
		s.success("✅ Removed %s", args[1])
	case "stats":
		st := s.app.Knowledge.Stats()
		s.printf("Files: %d (%s)\n", st.Files, formatSize(st.TotalSize))
		for _, tc := range st.ByType {
			s.printf("  %-6s %d\n", tc.Type, tc.Count)
		}
	default:
		s.failure(errs.New(errs.ValidationFailure, "cli.kb", "usage: /kb list|add <path>|rm <id>|stats"))
	}
}

func (s *Session) exportCommand(args []string) {
	dir := "."
	opts := backup.ExportOptions{}
	for _, a := range args {
		switch a {
		case "--kb":
			opts.IncludeKnowledge = true
		case "--no-pin":
			opts.OmitPin = true
		default:
			dir = a
		}
	}
	path, err := s.app.Backup.ExportFile(dir, opts)
	if err != nil {
		s.failure(err)
		return
	}
	s.success("✅ Backup written to %s", path)
}

func (s *Session) importCommand(args []string) {
	if len(args) == 0 {
		s.failure(errs.New(errs.ValidationFailure, "cli.import", "usage: /import <path>"))
		return
	}
	res, err := s.app.Backup.ImportFile(strings.Join(args, " "))
	if err != nil {
		s.failure(err)
		return
	}
	s.success("✅ Restored %s", strings.Join(res.Fields, ", "))
}

func (s *Session) pinCommand(args []string) {
	if len(args) == 0 {
		s.failure(errs.New(errs.ValidationFailure, "cli.pin", "usage: /pin set|clear"))
		return
	}
	switch strings.ToLower(args[0]) {
	case "set":
		if s.ask == nil {
			s.failure(errs.New(errs.ValidationFailure, "cli.pin", "no input available"))
			return
		}
		first, err := s.ask("New PIN: ")
		if err != nil {
			s.failure(err)
			return
		}
		second, err := s.ask("Confirm PIN: ")
		if err != nil {
			s.failure(err)
			return
		}
		if err := s.app.Pin.Set(strings.TrimSpace(first), strings.TrimSpace(second)); err != nil {
			s.failure(err)
			return
		}
		s.unlocked = true
		s.success("✅ PIN saved")
	case "clear":
		s.app.Pin.Clear()
		s.success("✅ PIN removed")
	default:
		s.failure(errs.New(errs.ValidationFailure, "cli.pin", "usage: /pin set|clear"))
	}
}

// Complete suggests commands and their arguments
func (s *Session) Complete(d prompt.Document) []prompt.Suggest {
	text := d.TextBeforeCursor()
	if !strings.HasPrefix(text, "/") {
		return nil
	}

	fields := strings.Fields(text)
	if len(fields) <= 1 && !strings.HasSuffix(text, " ") {
		return prompt.FilterHasPrefix(commands, d.GetWordBeforeCursor(), true)
	}

	var suggests []prompt.Suggest
	switch strings.ToLower(fields[0]) {
	case "/model":
		for _, m := range llm.Models {
			suggests = append(suggests, prompt.Suggest{Text: m.ID, Description: m.Name})
		}
	case "/theme":
		suggests = []prompt.Suggest{{Text: settings.ThemeLight}, {Text: settings.ThemeDark}}
	case "/kb":
		if len(fields) == 1 || (len(fields) == 2 && !strings.HasSuffix(text, " ")) {
			suggests = []prompt.Suggest{{Text: "list"}, {Text: "add"}, {Text: "rm"}, {Text: "stats"}}
		} else if strings.EqualFold(fields[1], "rm") {
			for _, f := range s.app.Knowledge.Files() {
				suggests = append(suggests, prompt.Suggest{Text: f.ID, Description: f.Name})
			}
		}
	case "/config":
		suggests = []prompt.Suggest{{Text: "openai"}, {Text: "deepseek"}}
	case "/pin":
		suggests = []prompt.Suggest{{Text: "set"}, {Text: "clear"}}
	case "/export":
		suggests = []prompt.Suggest{{Text: "--kb"}, {Text: "--no-pin"}}
	}
	return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
}

func (s *Session) printHelp() {
	p := s.palette
	s.printf(`
%s📚 MemoChat Help%s

%sCommands:%s
  /help                     - Show this help message
  /clear                    - Clear the conversation
  /config                   - Show settings
  /config openai <key>      - Set the OpenAI API key
  /config deepseek <key>    - Set the DeepSeek API key
  /model [id]               - List models or select one
  /name [name]              - Show or set the assistant name
  /theme [light|dark]       - Show or set the theme
  /prompt [text|reset]      - Show, set or restore the system prompt
  /context [n]              - Show or set how many messages are sent
  /kb list                  - List knowledge files
  /kb add <path>            - Add a knowledge file
  /kb rm <id>               - Remove a knowledge file
  /kb stats                 - Count knowledge files per type
  /export [dir] [--kb] [--no-pin] - Write a backup file
  /import <path>            - Restore a backup file
  /pin set|clear            - Protect settings with a 6-digit PIN
  /recall                   - How memory recall works
  /exit                     - Exit program

`, p.title, colorReset, p.section, colorReset)
}

func (s *Session) printRecallTips() {
	triggers := append([]string(nil), s.app.Prompts.RecallTriggers...)
	sort.Strings(triggers)
	s.printf("Messages containing one of these phrases search past conversations instead of calling the model:\n")
	for _, t := range triggers {
		s.printf("  • %s\n", t)
	}
	s.hint("Example: ¿recuerdas el presupuesto?")
}
