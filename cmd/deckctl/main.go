package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"slidedeck/client"
	"slidedeck/config"
	"slidedeck/discovery"
	"slidedeck/notice"
	"slidedeck/session"

	"github.com/docopt/docopt-go"
	"github.com/sirupsen/logrus"
)

const DeckCtlVersion = "0.1.0"

const usage = `Slide deck control.

The store url, timeout and concurrency mode default to the client section
of the configuration (CLIENT_BASE_URL, CLIENT_TIMEOUT, CLIENT_CONCURRENCY).

Usage:
    deckctl list [--url=<url>] [--timeout=<duration>]
    deckctl create [--url=<url>] [--timeout=<duration>] --user=<username> <title>
    deckctl view [--url=<url>] [--timeout=<duration>] --user=<username> <id>
    deckctl show [--url=<url>] [--timeout=<duration>] --user=<username> [--slide=<n>] <id>
    deckctl add [--url=<url>] [--timeout=<duration>] [--mode=<mode>] --user=<username> [--slide=<n>] (text | rectangle | circle) <id>
    deckctl add-image [--url=<url>] [--timeout=<duration>] [--mode=<mode>] --user=<username> [--slide=<n>] <id> <src>
    deckctl move [--url=<url>] [--timeout=<duration>] [--mode=<mode>] --user=<username> [--slide=<n>] <id> <index> <x> <y>
    deckctl delete [--url=<url>] [--timeout=<duration>] [--mode=<mode>] --user=<username> [--slide=<n>] <id> <index>
    deckctl promote [--url=<url>] [--timeout=<duration>] [--mode=<mode>] --user=<username> <id> <member>
    deckctl demote [--url=<url>] [--timeout=<duration>] [--mode=<mode>] --user=<username> <id> <member>
    deckctl export [--url=<url>] [--timeout=<duration>] --user=<username> <id> <file>

Options:
    -h --help             Show this screen.
    --version             Show version.
    --url=<url>           Store base url.
    --user=<username>     Acting username.
    --mode=<mode>         revision or last-write-wins.
    --slide=<n>           Zero-based slide index [default: 0].
    --timeout=<duration>  Bound on every store call.`

type env struct {
	cfg    *config.Config
	opts   docopt.Opts
	client *client.Client
	notice *notice.Notice
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := docopt.ParseArgs(usage, args, DeckCtlVersion)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logrus.SetLevel(logrus.WarnLevel)

	baseURL := cfg.Client.BaseURL
	if url, _ := opts.String("--url"); url != "" {
		baseURL = url
	}
	timeout := cfg.Client.Timeout
	if s, _ := opts.String("--timeout"); s != "" {
		if timeout, err = time.ParseDuration(s); err != nil {
			return fmt.Errorf("invalid --timeout: %w", err)
		}
	}
	user, _ := opts.String("--user")

	e := &env{
		cfg:    cfg,
		opts:   opts,
		client: client.New(baseURL, user, client.WithTimeout(timeout)),
		notice: notice.New(cfg.Client.NoticeTTL),
	}

	ctx := context.Background()
	switch {
	case flag(opts, "list"):
		return e.list(ctx)
	case flag(opts, "create"):
		return e.create(ctx)
	case flag(opts, "view"):
		return e.view(ctx)
	case flag(opts, "show"):
		return e.show(ctx)
	case flag(opts, "add"), flag(opts, "add-image"), flag(opts, "move"), flag(opts, "delete"):
		return e.edit(ctx)
	case flag(opts, "promote"), flag(opts, "demote"):
		return e.roles(ctx)
	case flag(opts, "export"):
		return e.export(ctx)
	}
	return nil
}

func flag(opts docopt.Opts, name string) bool {
	v, _ := opts.Bool(name)
	return v
}

func (e *env) report() {
	if msg, ok := e.notice.Current(); ok {
		fmt.Println(msg.Text)
	}
}

func (e *env) list(ctx context.Context) error {
	svc := discovery.New(e.client, nil, e.notice)
	summaries, err := svc.List(ctx)
	if err != nil {
		e.report()
		return err
	}
	for _, s := range summaries {
		fmt.Printf("%s\t%s\t%s\n", s.ID, s.Title, s.Creator)
	}
	return nil
}

func (e *env) create(ctx context.Context) error {
	title, _ := e.opts.String("<title>")
	user, _ := e.opts.String("--user")
	svc := discovery.New(e.client, nil, e.notice)
	id, err := svc.Create(ctx, title, user)
	e.report()
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func (e *env) view(ctx context.Context) error {
	id, _ := e.opts.String("<id>")
	user, _ := e.opts.String("--user")
	svc := discovery.New(e.client, nil, e.notice)
	if _, err := svc.List(ctx); err != nil {
		e.report()
		return err
	}
	err := svc.View(ctx, id, user)
	e.report()
	return err
}

func (e *env) open(ctx context.Context) (*session.Session, error) {
	id, _ := e.opts.String("<id>")
	user, _ := e.opts.String("--user")
	mode := session.Mode(e.cfg.Client.Concurrency)
	if m, _ := e.opts.String("--mode"); m != "" {
		mode = session.Mode(m)
	}

	s, err := session.New(user, e.client, session.Options{Mode: mode, Notice: e.notice})
	if err != nil {
		return nil, err
	}
	if err := s.Load(ctx, id); err != nil {
		e.report()
		s.Close()
		return nil, err
	}
	if slide, _ := e.opts.String("--slide"); slide != "" {
		n, err := strconv.Atoi(slide)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("invalid --slide: %w", err)
		}
		if err := s.SelectSlide(n); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (e *env) show(ctx context.Context) error {
	s, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	doc := s.Document()
	fmt.Printf("%s by %s (revision %d, %d slides, you are %q)\n",
		doc.Title, doc.Creator, doc.Revision, len(doc.Content.Slides), s.Role())
	for i, el := range s.View().Elements {
		x, y := el.Position()
		fmt.Printf("%d\t%s\t%s\t(%g, %g)\n", i, el.Kind(), el.ElementID(), x, y)
	}
	return nil
}

func (e *env) edit(ctx context.Context) error {
	s, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	switch {
	case flag(e.opts, "text"):
		err = s.AddText(ctx)
	case flag(e.opts, "rectangle"):
		err = s.AddRectangle(ctx)
	case flag(e.opts, "circle"):
		err = s.AddCircle(ctx)
	case flag(e.opts, "add-image"):
		src, _ := e.opts.String("<src>")
		err = s.AddImage(ctx, src)
	case flag(e.opts, "move"):
		var index int
		var x, y float64
		if index, err = e.opts.Int("<index>"); err != nil {
			return err
		}
		if x, err = e.opts.Float64("<x>"); err != nil {
			return err
		}
		if y, err = e.opts.Float64("<y>"); err != nil {
			return err
		}
		err = s.HandleDrag(ctx, session.DragEvent{ElementIndex: index, X: x, Y: y})
	case flag(e.opts, "delete"):
		var index int
		if index, err = e.opts.Int("<index>"); err != nil {
			return err
		}
		err = s.DeleteElement(ctx, index)
	}
	e.report()
	return err
}

func (e *env) roles(ctx context.Context) error {
	s, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	member, _ := e.opts.String("<member>")
	var changed bool
	if flag(e.opts, "promote") {
		changed, err = s.Promote(ctx, member)
	} else {
		changed, err = s.Demote(ctx, member)
	}
	e.report()
	if err == nil && !changed {
		fmt.Printf("%s does not hold the expected role, nothing changed\n", member)
	}
	return err
}

func (e *env) export(ctx context.Context) error {
	s, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	path, _ := e.opts.String("<file>")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.Export(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
