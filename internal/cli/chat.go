// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/config"
	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/ui/markdown"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

// errQuit ends the REPL.
var errQuit = errors.New("quit")

func newChatCmd(a *app) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat",
		Long: `Start an interactive chat.

Type a message and press enter to send it to the current session. Lines
starting with / are commands; /help lists them. Ctrl+C while an answer is
streaming stops it, Ctrl+C or Ctrl+D at the prompt exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := newREPL(a)
			r.current = sessionID
			return r.run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "start in an existing session")
	return cmd
}

// =============================================================================
// REPL
// =============================================================================

// repl is the state of one interactive chat.
type repl struct {
	a   *app
	out io.Writer

	sessions  []model.SessionInfo
	current   string
	reasoning bool
	lastReply model.Message

	// streaming is the session whose answer is in flight, if any
	mu        sync.Mutex
	streaming string
}

func newREPL(a *app) *repl {
	return &repl{
		a:         a,
		out:       a.stdout,
		reasoning: a.config().UI.ShowReasoning,
	}
}

// historyPath returns the file holding the prompt history.
func historyPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chat_history")
}

// run reads lines until /quit, Ctrl+C or end of input.
func (r *repl) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.a.watchConfig(ctx)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeSlash)

	histFile := historyPath()
	if f, err := os.Open(histFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer saveHistory(line, histFile)

	// Ctrl+C between prompts stops the stream in flight
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				r.stopStream()
			}
		}
	}()

	r.printWelcome(ctx)

	for {
		input, err := line.Prompt(r.prompt())
		if err != nil {
			// liner.ErrPromptAborted (Ctrl+C) and io.EOF (Ctrl+D) both exit
			fmt.Fprintln(r.out)
			return nil
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		if err := r.handle(ctx, input); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(r.a.stderr, ErrorStyle.Render("[Error]"), err)
		}
	}
}

func saveHistory(line *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}

func (r *repl) prompt() string {
	label := "no session"
	if r.current != "" {
		label = r.current
		for _, s := range r.sessions {
			if s.Key == r.current && s.Label != "" {
				label = util.TruncateWidth(s.Label, 20)
				break
			}
		}
	}
	// liner measures the prompt itself, so it stays unstyled
	return "[" + label + "] > "
}

func (r *repl) printWelcome(ctx context.Context) {
	fmt.Fprintln(r.out, TitleStyle.Render("rigrun-chat "+Version))
	fmt.Fprintln(r.out, DimStyle.Render("Backend: "+r.a.config().Backend.BaseURL+"  Type /help for commands."))
	if err := r.refreshSessions(ctx); err != nil {
		fmt.Fprintln(r.a.stderr, WarningStyle.Render("Could not load sessions: "+err.Error()))
	}
	if r.current != "" {
		if err := r.a.coord.Activate(ctx, r.current); err != nil {
			fmt.Fprintln(r.a.stderr, WarningStyle.Render(err.Error()))
		}
	}
}

// =============================================================================
// INPUT HANDLING
// =============================================================================

// handle processes one line of input.
func (r *repl) handle(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "/") {
		return r.command(ctx, input)
	}
	if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
		return errQuit
	}
	return r.send(ctx, input)
}

// send sends text to the current session, creating one first when there
// is none, and prints the answer as it streams.
func (r *repl) send(ctx context.Context, text string) error {
	if r.current == "" {
		if err := r.newSession(ctx, util.TruncateRunes(util.FirstLine(text), 30)); err != nil {
			return err
		}
	}

	sub := r.a.coord.Subscribe()
	defer sub.Close()

	req, err := r.a.coord.Send(ctx, r.a.params(r.current), model.NewUserChatMessage(r.current, text))
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.streaming = req.SessionID
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.streaming = ""
		r.mu.Unlock()
	}()

	var reasoning io.Writer
	if r.reasoning {
		reasoning = r.a.stderr
	}
	final, err := follow(ctx, r.a.coord, sub, req, newStreamPrinter(r.out, reasoning))
	fmt.Fprintln(r.out)
	r.lastReply = final

	if req.Aborted() || errors.Is(err, context.Canceled) {
		fmt.Fprintln(r.a.stderr, WarningStyle.Render("[Stopped]"))
		return nil
	}
	return err
}

// stopStream aborts the answer in flight, if any.
func (r *repl) stopStream() {
	r.mu.Lock()
	id := r.streaming
	r.mu.Unlock()
	if id != "" {
		r.a.coord.AbortRequest(id)
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

var slashCommands = []string{
	"/help", "/new", "/sessions", "/switch", "/rename", "/delete",
	"/history", "/reload", "/model", "/reasoning", "/code", "/quit",
}

func completeSlash(line string) []string {
	if !strings.HasPrefix(line, "/") {
		return nil
	}
	var out []string
	for _, c := range slashCommands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

func (r *repl) command(ctx context.Context, input string) error {
	fields := strings.Fields(input)
	name := strings.ToLower(fields[0])
	arg := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))

	switch name {
	case "/help", "/h", "/?":
		r.printHelp()
		return nil

	case "/quit", "/q", "/exit":
		return errQuit

	case "/new":
		if arg == "" {
			arg = "New chat"
		}
		if err := r.newSession(ctx, arg); err != nil {
			return err
		}
		fmt.Fprintln(r.out, SuccessStyle.Render("Created session "+r.current))
		return nil

	case "/sessions", "/ls":
		if err := r.refreshSessions(ctx); err != nil {
			return err
		}
		printSessions(r.out, r.sessions, r.current, r.a.coord.LoadingSessions())
		return nil

	case "/switch", "/s":
		return r.switchTo(ctx, arg)

	case "/rename":
		return r.rename(ctx, arg)

	case "/delete":
		return r.deleteCurrent(ctx)

	case "/history":
		if r.current == "" {
			return errors.New("no session selected")
		}
		if err := r.a.coord.Activate(ctx, r.current); err != nil {
			return err
		}
		printTranscript(r.out, r.a.coord.Messages(r.current), r.reasoning)
		return nil

	case "/reload":
		if r.current == "" {
			return errors.New("no session selected")
		}
		if err := r.a.coord.Reload(ctx, r.current); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Reloaded %d messages\n", len(r.a.coord.Messages(r.current)))
		return nil

	case "/model":
		return r.setModel(arg)

	case "/reasoning":
		switch strings.ToLower(arg) {
		case "on", "true", "1":
			r.reasoning = true
		case "off", "false", "0":
			r.reasoning = false
		case "":
			r.reasoning = !r.reasoning
		default:
			return fmt.Errorf("usage: /reasoning on|off")
		}
		fmt.Fprintf(r.out, "Reasoning output %s\n", onOff(r.reasoning))
		return nil

	case "/code":
		return printCode(r.out, r.lastReply.Content)

	default:
		return fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
}

func (r *repl) printHelp() {
	rows := [][2]string{
		{"/new [name]", "create a session and switch to it"},
		{"/sessions", "list sessions (* = answering)"},
		{"/switch <n|id>", "switch session; answers keep streaming"},
		{"/rename <name>", "rename the current session"},
		{"/delete", "delete the current session"},
		{"/history", "print the current transcript"},
		{"/reload", "fetch the current transcript again"},
		{"/model <name>", "use another model for the next sends"},
		{"/reasoning on|off", "show or hide reasoning traces"},
		{"/code", "print the code blocks of the last answer"},
		{"/quit", "exit"},
	}
	fmt.Fprintln(r.out, TitleStyle.Render("Commands"))
	for _, row := range rows {
		fmt.Fprintln(r.out, "  "+RenderLabel(row[0])+DimStyle.Render(row[1]))
	}
}

func (r *repl) refreshSessions(ctx context.Context) error {
	token, err := r.a.token(ctx)
	if err != nil {
		return err
	}
	sessions, err := r.a.client.ListSessions(ctx, token)
	if err != nil {
		return err
	}
	r.sessions = sessions
	return nil
}

func (r *repl) newSession(ctx context.Context, name string) error {
	token, err := r.a.token(ctx)
	if err != nil {
		return err
	}
	info, err := sessionService{r.a}.CreateSession(ctx, token, name)
	if err != nil {
		return err
	}
	r.sessions = append([]model.SessionInfo{info}, r.sessions...)
	r.current = info.Key
	return nil
}

// switchTo selects a session by its 1-based position in the last listing
// or by key.
func (r *repl) switchTo(ctx context.Context, arg string) error {
	if arg == "" {
		return errors.New("usage: /switch <n|id>")
	}
	key := arg
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(r.sessions) {
		key = r.sessions[n-1].Key
	}
	if err := r.a.coord.Activate(ctx, key); err != nil {
		return err
	}
	r.current = key
	fmt.Fprintln(r.out, DimStyle.Render("Switched to "+key))
	return nil
}

func (r *repl) rename(ctx context.Context, name string) error {
	if r.current == "" {
		return errors.New("no session selected")
	}
	if name == "" {
		return errors.New("usage: /rename <name>")
	}
	token, err := r.a.token(ctx)
	if err != nil {
		return err
	}
	if err := r.a.client.RenameSession(ctx, token, r.current, name); err != nil {
		return err
	}
	for i := range r.sessions {
		if r.sessions[i].Key == r.current {
			r.sessions[i].Label = name
		}
	}
	fmt.Fprintln(r.out, SuccessStyle.Render("Renamed"))
	return nil
}

func (r *repl) deleteCurrent(ctx context.Context) error {
	if r.current == "" {
		return errors.New("no session selected")
	}
	token, err := r.a.token(ctx)
	if err != nil {
		return err
	}
	if err := r.a.client.DeleteSession(ctx, token, r.current); err != nil {
		return err
	}
	r.a.coord.Forget(r.current)

	kept := r.sessions[:0]
	for _, s := range r.sessions {
		if s.Key != r.current {
			kept = append(kept, s)
		}
	}
	r.sessions = kept
	fmt.Fprintln(r.out, SuccessStyle.Render("Deleted session "+r.current))
	r.current = ""
	return nil
}

// setModel changes the model of later sends. Requests in flight keep
// theirs.
func (r *repl) setModel(name string) error {
	if name == "" {
		fmt.Fprintf(r.out, "Model: %s\n", valueOr(r.a.config().Chat.Model, "(backend default)"))
		return nil
	}
	r.a.mu.Lock()
	next := r.a.cfg.Clone()
	next.Chat.Model = name
	r.a.cfg = next
	r.a.mu.Unlock()
	fmt.Fprintln(r.out, SuccessStyle.Render("Model set to "+name))
	return nil
}

// printCode prints the fenced code blocks of a reply, highlighted.
func printCode(w io.Writer, content string) error {
	blocks := markdown.CodeBlocks(content)
	if len(blocks) == 0 {
		return errors.New("no code blocks in the last answer")
	}
	for i, b := range blocks {
		title := fmt.Sprintf("[%d]", i+1)
		if b.Language != "" {
			title += " " + b.Language
		}
		fmt.Fprintln(w, DimStyle.Render(title))
		code := b.Code
		if ColorsEnabled() {
			code = markdown.Highlight(code, b.Language)
		}
		fmt.Fprintln(w, strings.TrimRight(code, "\n"))
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
