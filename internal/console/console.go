package console

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"

	"github.com/zanrcon-project/zanrcon/internal/events"
	"github.com/zanrcon-project/zanrcon/internal/history"
	"github.com/zanrcon-project/zanrcon/internal/rcon"
	"github.com/zanrcon-project/zanrcon/internal/util"
)

// DefaultPrompt is printed before every input line.
const DefaultPrompt = ">> "

// Controller is the slice of a session the console drives. It is
// satisfied by *rcon.Session.
type Controller interface {
	SendCommand(command string) error
	SendTabComplete(prefix string) error
	Disconnect() error
	State() rcon.State
	ServerState() rcon.ServerState
	Stats() rcon.Stats
	Remote() string
	Done() <-chan struct{}
}

// HistoryStore records and recalls past commands.
type HistoryStore interface {
	Record(server, command string) error
	Recent(server string, limit int) ([]history.Entry, error)
}

// Options configures the interactive console.
type Options struct {
	Prompt       string
	ShowColors   bool
	HistoryLimit int
	In           io.Reader
	Out          io.Writer
}

// Console is the interactive terminal frontend. Server output arrives
// through Print; operator input is read by Run.
type Console struct {
	session Controller
	bus     *events.EventBus
	history HistoryStore
	prompt  string
	limit   int
	in      io.Reader
	log     zerolog.Logger

	outMu sync.Mutex
	out   io.Writer

	colorMu    sync.Mutex
	showColors bool
}

// New creates a console bound to an established session. history may be
// nil when persistence is disabled.
func New(session Controller, bus *events.EventBus, store HistoryStore, opts Options) *Console {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	return &Console{
		session:    session,
		bus:        bus,
		history:    store,
		prompt:     opts.Prompt,
		limit:      opts.HistoryLimit,
		in:         opts.In,
		out:        opts.Out,
		showColors: opts.ShowColors,
		log:        util.ComponentLogger("console"),
	}
}

// Run reads operator input until EOF, a quit command, or context
// cancellation, then closes the session. Lines starting with "/" are
// local commands; everything else goes to the server verbatim.
func (c *Console) Run(ctx context.Context) error {
	defer c.session.Disconnect()

	c.write("[ Connected ]\n")
	c.write("Type commands. /help lists local commands, Ctrl+C quits.\n\n")

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.session.Done():
			c.write("[ Disconnected ]\n")
			return nil
		default:
		}

		c.write(c.prompt)
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := c.execute(ctx, line); quit {
				return nil
			}
			continue
		}

		c.sendCommand(ctx, line)
	}
}

// Print writes one chunk of server output, transforming color escapes
// for the terminal. Chunks carry their own line breaks.
func (c *Console) Print(text string) {
	c.colorMu.Lock()
	show := c.showColors
	c.colorMu.Unlock()

	if show {
		text = RenderColors(text)
	} else {
		text = StripColors(text)
	}
	c.write(text)
}

// sendCommand forwards one console command to the server and records it.
func (c *Console) sendCommand(ctx context.Context, command string) {
	if err := c.session.SendCommand(command); err != nil {
		c.writef("Error: %v\n", err)
		return
	}

	if c.history != nil {
		if err := c.history.Record(c.session.Remote(), command); err != nil {
			c.log.Warn().Err(err).Msg("failed to record command history")
		}
	}

	c.bus.Emit(ctx, events.Event{
		Type:   events.EventCommandSent,
		Source: "console",
		Payload: events.CommandSentPayload{
			Server:  c.session.Remote(),
			Command: command,
			At:      time.Now(),
		},
	})
}

// execute processes a single local command. It returns true when the
// console should quit.
func (c *Console) execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	cmd := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	args := parts[1:]

	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "stats":
		c.printStats()
	case "history":
		c.printHistory(args)
	case "complete":
		c.cmdComplete(args)
	case "colors":
		c.cmdColors(ctx)
	case "quit", "exit", "q":
		c.write("Closing session...\n")
		c.bus.Emit(ctx, events.Event{
			Type:   events.EventShutdown,
			Source: "console",
		})
		return true
	default:
		c.writef("Unknown command: '/%s'. Type /help for local commands.\n", cmd)
	}
	return false
}

// printHelp displays the local commands.
func (c *Console) printHelp() {
	c.write(`
Local commands (anything else is sent to the server):
  /status          Show session and server state
  /stats           Show wire counters for this session
  /history [n]     Show the last n commands sent to this server
  /complete <text> Ask the server to complete a partial command
  /colors          Toggle color rendering
  /quit            Close the session and exit
  /help            Show this help message

`)
}

// printStatus displays session and server state in a formatted table.
func (c *Console) printStatus() {
	state := c.session.ServerState()

	var buf bytes.Buffer
	buf.WriteString("\n")

	tw := tablewriter.NewWriter(&buf)
	tw.SetHeader([]string{"Server", "Session", "Map", "Players", "Admins", "Updated"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	updated := "-"
	if !state.UpdatedAt.IsZero() {
		updated = state.UpdatedAt.Format("15:04:05")
	}
	tw.Append([]string{
		c.session.Remote(),
		c.session.State().String(),
		valueOrDash(state.MapName),
		fmt.Sprintf("%d", len(state.Players)),
		fmt.Sprintf("%d", state.AdminCount),
		updated,
	})
	tw.Render()

	if len(state.Players) > 0 {
		buf.WriteString("  Players:\n")
		for _, name := range state.Players {
			fmt.Fprintf(&buf, "    - %s\n", StripColors(name))
		}
	}
	buf.WriteString("\n")
	c.write(buf.String())
}

// printStats displays the session's cumulative wire counters.
func (c *Console) printStats() {
	stats := c.session.Stats()

	var buf bytes.Buffer
	buf.WriteString("\n")

	tw := tablewriter.NewWriter(&buf)
	tw.SetHeader([]string{"Sent", "Received", "Bytes Out", "Bytes In", "Keep-Alives", "Decode Errors"})
	tw.SetBorder(true)
	tw.Append([]string{
		strconv.FormatUint(stats.DatagramsSent, 10),
		strconv.FormatUint(stats.DatagramsReceived, 10),
		strconv.FormatUint(stats.BytesSent, 10),
		strconv.FormatUint(stats.BytesReceived, 10),
		strconv.FormatUint(stats.KeepAlivesSent, 10),
		strconv.FormatUint(stats.DecodeFailures, 10),
	})
	tw.Render()
	buf.WriteString("\n")
	c.write(buf.String())
}

// printHistory shows the most recent commands sent to this server.
func (c *Console) printHistory(args []string) {
	if c.history == nil {
		c.write("History is disabled.\n")
		return
	}

	limit := c.limit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			c.writef("Invalid count: %s\n", args[0])
			return
		}
		limit = n
	}

	entries, err := c.history.Recent(c.session.Remote(), limit)
	if err != nil {
		c.writef("Error: %v\n", err)
		return
	}
	if len(entries) == 0 {
		c.write("No commands recorded yet.\n")
		return
	}

	var buf bytes.Buffer
	for _, entry := range entries {
		fmt.Fprintf(&buf, "  %s  %s\n", entry.At.Format("2006-01-02 15:04:05"), entry.Command)
	}
	c.write(buf.String())
}

// cmdComplete asks the server for completions; candidates come back on
// the output stream.
func (c *Console) cmdComplete(args []string) {
	if len(args) == 0 {
		c.write("Usage: /complete <partial command>\n")
		return
	}

	prefix := strings.Join(args, " ")
	if err := c.session.SendTabComplete(prefix); err != nil {
		c.writef("Error: %v\n", err)
	}
}

// cmdColors toggles color rendering for the rest of the session.
func (c *Console) cmdColors(ctx context.Context) {
	c.colorMu.Lock()
	c.showColors = !c.showColors
	show := c.showColors
	c.colorMu.Unlock()

	c.bus.Emit(ctx, events.Event{
		Type:   events.EventConfigChanged,
		Source: "console",
		Payload: events.ConfigChangedPayload{
			Section: "display",
			Key:     "show_colors",
			Value:   show,
		},
	})

	if show {
		c.write("Colors on.\n")
	} else {
		c.write("Colors off.\n")
	}
}

func (c *Console) write(text string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprint(c.out, text)
}

func (c *Console) writef(format string, args ...interface{}) {
	c.write(fmt.Sprintf(format, args...))
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
