// cmd/gomoku/main.go
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/gomoku/engine"
	"github.com/jason-s-yu/gomoku/internal/cache"
	"github.com/jason-s-yu/gomoku/internal/config"
	"github.com/jason-s-yu/gomoku/internal/game"
	"github.com/jason-s-yu/gomoku/internal/roomsync"
	"github.com/jason-s-yu/gomoku/internal/server"
	"github.com/sirupsen/logrus"
)

const helpText = `commands:
  p X Y          place a stone (or pick a skill target)
  s SKILL        use a skill: flying-sand mountain-power still-water
                 polarity-reverse tiger-trap water-drop resurrection clean-sweep
  dir NAME       clean-sweep direction: horizontal vertical diagonal1 diagonal2
  cancel         cancel the armed skill
  moves          list the cells a click is accepted on
  restart        start over
  create         open an online room (needs -server)
  join CODE      join an online room (needs -server)
  leave          stop syncing with the room
  board          redraw
  quit`

type cli struct {
	out        io.Writer
	session    *game.Session
	serverURL  string
	resubDelay time.Duration
	remote     *server.RemoteClient
	sync       *roomsync.Client
	events     chan game.GameEvent
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	serverURL := flag.String("server", "", "room server base URL, e.g. http://localhost:8080")
	size := flag.Int("size", cfg.BoardSize, "board size (odd)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	cfg.ConfigureLogger()
	logrus.SetOutput(os.Stderr)
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else if os.Getenv("LOG_LEVEL") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}

	closeLog, err := connectActionLog(context.Background(), cfg.RedisURL)
	if err != nil {
		logrus.WithError(err).Warn("action log disabled")
		closeLog = func() {}
	}
	defer closeLog()

	rules := engine.DefaultRules()
	rules.Size = *size
	c := &cli{
		out:        os.Stdout,
		session:    game.NewSession(rules),
		serverURL:  *serverURL,
		resubDelay: cfg.ResubscribeDelay,
		events:     make(chan game.GameEvent, 64),
	}
	c.session.BroadcastFn = func(ev game.GameEvent) {
		select {
		case c.events <- ev:
		default:
		}
	}
	go c.printEvents()

	fmt.Fprintln(c.out, helpText)
	c.render()
	c.loop(os.Stdin)

	if c.sync != nil {
		c.sync.Leave()
	}
	if c.remote != nil {
		c.remote.Close()
	}
}

// connectActionLog sends session actions to the Redis historian queue when
// url is set.
func connectActionLog(ctx context.Context, url string) (func(), error) {
	if url == "" {
		return func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rdb, err := cache.ConnectRedis(ctx, url)
	if err != nil {
		return nil, err
	}
	return func() {
		cache.Rdb = nil
		rdb.Close()
	}, nil
}

func (c *cli) loop(in io.Reader) {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, "> ")
		if !sc.Scan() {
			return
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "q" {
			return
		}
		if msg := c.exec(fields[0], fields[1:]); msg != "" {
			fmt.Fprintln(c.out, msg)
		}
	}
}

// exec runs one command and returns a line to print.
func (c *cli) exec(cmd string, args []string) string {
	switch cmd {
	case "help", "h", "?":
		return helpText
	case "board", "b":
		c.render()
		return ""
	case "p", "place":
		if len(args) != 2 {
			return "usage: p X Y"
		}
		x, errX := strconv.Atoi(args[0])
		y, errY := strconv.Atoi(args[1])
		if errX != nil || errY != nil {
			return "coordinates must be integers"
		}
		if !c.canAct() {
			return "waiting for the other player"
		}
		return resultLine(c.session.Place(x, y))
	case "s", "skill":
		if len(args) != 1 {
			return "usage: s SKILL"
		}
		if !c.canAct() {
			return "waiting for the other player"
		}
		c.session.UseSkill(engine.SkillID(args[0]))
		return ""
	case "dir":
		if len(args) != 1 {
			return "usage: dir horizontal|vertical|diagonal1|diagonal2"
		}
		d, ok := engine.ParseSweepDirection(args[0])
		if !ok {
			return "unknown direction " + args[0]
		}
		if !c.canAct() {
			return "waiting for the other player"
		}
		return resultLine(c.session.ChooseSweepDirection(d))
	case "moves":
		pts := c.session.LegalPlacements()
		if len(pts) == 0 {
			return "no cell accepts a click right now"
		}
		cells := make([]string, len(pts))
		for i, p := range pts {
			cells[i] = fmt.Sprintf("%d,%d", p.X, p.Y)
		}
		return fmt.Sprintf("%d cells: %s", len(pts), strings.Join(cells, " "))
	case "cancel":
		return resultLine(c.session.CancelInteraction())
	case "restart":
		by := engine.None
		if c.sync != nil {
			by = engine.Player(c.sync.Seat())
		}
		c.session.Restart(by)
		return ""
	case "create":
		return c.online(func(ctx context.Context) error {
			_, err := c.sync.Create(ctx)
			return err
		})
	case "join":
		if len(args) != 1 {
			return "usage: join CODE"
		}
		code := strings.ToUpper(args[0])
		return c.online(func(ctx context.Context) error {
			_, _, err := c.sync.Join(ctx, code)
			return err
		})
	case "leave":
		if c.sync == nil || c.sync.RoomID() == "" {
			return "not in a room"
		}
		c.sync.Leave()
		return ""
	default:
		return fmt.Sprintf("unknown command %q, try help", cmd)
	}
}

func (c *cli) canAct() bool {
	return c.sync == nil || c.sync.CanAct()
}

// online connects on first use and runs fn against the room client.
func (c *cli) online(fn func(ctx context.Context) error) string {
	if c.serverURL == "" {
		return "start with -server to play online"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if c.remote == nil {
		remote, err := server.Dial(ctx, c.serverURL)
		if err != nil {
			return "connect failed: " + err.Error()
		}
		c.remote = remote
		c.sync = roomsync.NewClient(remote, c.session)
		c.sync.StatusFn = func(msg string) { fmt.Fprintln(c.out, "[sync]", msg) }
		if c.resubDelay > 0 {
			c.sync.ResubscribeDelay = c.resubDelay
		}
	}
	if err := fn(ctx); err != nil {
		return ""
	}
	c.render()
	return ""
}

func resultLine(r game.Result) string {
	if r.OK {
		return r.Message
	}
	return "rejected: " + r.Message
}

func (c *cli) printEvents() {
	for ev := range c.events {
		switch ev.Type {
		case game.EventUIFeedback:
			if ev.Result != nil {
				fmt.Fprintln(c.out, resultLine(*ev.Result))
			}
		case game.EventGameOver:
			fmt.Fprintf(c.out, "*** %v wins ***\n", ev.Winner)
		case game.EventGameRestart:
			fmt.Fprintln(c.out, "game restarted")
		case game.EventStateChanged:
			c.render()
		case game.EventUIState:
			if ev.UI != nil && ev.UI.Pending != "" {
				fmt.Fprintf(c.out, "waiting for %s", ev.UI.Pending)
				if ev.UI.DropsLeft > 0 {
					fmt.Fprintf(c.out, " (%d left)", ev.UI.DropsLeft)
				}
				fmt.Fprintln(c.out)
			}
		}
	}
}

// render draws the board: X black, O white, # destroyed, ~ pending water drop.
func (c *cli) render() {
	snap := c.session.Snapshot()
	ui := c.session.UIState()

	drops := make(map[engine.Point]bool, len(snap.WaterDrops))
	for _, d := range snap.WaterDrops {
		drops[engine.Point{X: d.X, Y: d.Y}] = true
	}
	destroyed := make(map[engine.Point]bool, len(snap.Destroyed))
	for _, p := range snap.Destroyed {
		destroyed[p] = true
	}

	var b strings.Builder
	b.WriteString("   ")
	for x := 0; x < snap.Size; x++ {
		fmt.Fprintf(&b, "%2d", x)
	}
	b.WriteByte('\n')
	for y, row := range snap.Grid {
		fmt.Fprintf(&b, "%2d ", y)
		for x, cell := range row {
			p := engine.Point{X: x, Y: y}
			ch := "."
			switch {
			case destroyed[p]:
				ch = "#"
			case cell == engine.Black:
				ch = "X"
			case cell == engine.White:
				ch = "O"
			case drops[p]:
				ch = "~"
			}
			b.WriteString(" " + ch)
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "turn %d, %v to move", ui.Turn, ui.CurrentPlayer)
	if c.sync != nil && c.sync.RoomID() != "" {
		fmt.Fprintf(&b, " | room %s, you are player %d", c.sync.RoomID(), c.sync.Seat())
	}
	b.WriteByte('\n')
	for _, sk := range ui.Skills {
		cd := sk.Cooldown.Get(ui.CurrentPlayer)
		state := "ready"
		if cd > 0 {
			state = fmt.Sprintf("%d turns", cd)
		}
		fmt.Fprintf(&b, "  %-17s %s\n", sk.ID, state)
	}
	if ui.Message != "" {
		b.WriteString(ui.Message + "\n")
	}
	fmt.Fprint(c.out, b.String())
}
