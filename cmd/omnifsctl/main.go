// Command omnifsctl is the administrator CLI: it talks to
// internal/engine in-process (never through a socket), the same way
// the teacher's cmd/ binaries wire straight into their service layer.
// Subcommands: format, user add/list/del, fsck, serve.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/omnifs/omnifs/internal/config"
	"github.com/omnifs/omnifs/internal/container"
	"github.com/omnifs/omnifs/internal/engine"
	"github.com/omnifs/omnifs/internal/pipeline"
	"github.com/omnifs/omnifs/pkg/logging/slogpretty"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "format":
		cmdFormat(os.Args[2:])
	case "user":
		cmdUser(os.Args[2:])
	case "fsck":
		cmdFsck(os.Args[2:])
	case "serve":
		cmdServe(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: omnifsctl <format|user|fsck|serve> [flags]")
	fmt.Fprintln(os.Stderr, "  format   --container PATH --config PATH")
	fmt.Fprintln(os.Stderr, "  user add|list|del --container PATH --config PATH [--username NAME --password PASS --role normal|admin]")
	fmt.Fprintln(os.Stderr, "  fsck --container PATH --config PATH")
	fmt.Fprintln(os.Stderr, "  serve --container PATH --config PATH   (line-oriented request REPL on stdin)")
}

func commonFlags(fs *pflag.FlagSet) (containerPath, configPath *string) {
	containerPath = fs.String("container", "omnifs.container", "path to the container file")
	configPath = fs.String("config", "configs/config.yaml", "path to config.yaml")
	return
}

func cmdFormat(args []string) {
	fs := pflag.NewFlagSet("format", pflag.ExitOnError)
	containerPath, configPath := commonFlags(fs)
	fs.Parse(args)

	cfg := config.MustLoad(*configPath)
	e, err := engine.Format(*containerPath, cfg, nil)
	fatalOnErr(err, "format")
	defer e.Shutdown(context.Background())

	fmt.Printf("formatted %s (%d bytes, %d-byte blocks)\n", *containerPath, cfg.TotalSize, cfg.BlockSize)
}

func cmdUser(args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}
	sub := args[0]

	fs := pflag.NewFlagSet("user", pflag.ExitOnError)
	containerPath, configPath := commonFlags(fs)
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")
	role := fs.String("role", "normal", "normal|admin")
	fs.Parse(args[1:])

	cfg := config.MustLoad(*configPath)
	e, err := engine.Open(*containerPath, cfg, nil)
	fatalOnErr(err, "open")
	defer e.Shutdown(context.Background())

	admin, err := e.Login(cfg.AdminUsername, cfg.AdminPassword)
	fatalOnErr(err, "admin login")

	switch sub {
	case "add":
		r := container.RoleNormal
		if *role == "admin" {
			r = container.RoleAdmin
		}
		err := e.CreateUser(admin.ID, *username, *password, r)
		fatalOnErr(err, "create user")
		fmt.Printf("created user %s (role=%s)\n", *username, *role)
	case "del":
		err := e.DeleteUser(admin.ID, *username)
		fatalOnErr(err, "delete user")
		fmt.Printf("deleted user %s\n", *username)
	case "list":
		users, err := e.ListUsers(admin.ID)
		fatalOnErr(err, "list users")
		for _, u := range users {
			fmt.Printf("%-20s role=%-6d created=%d last_login=%d\n", u.Username, u.Role, u.CreatedTime, u.LastLogin)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func cmdFsck(args []string) {
	fs := pflag.NewFlagSet("fsck", pflag.ExitOnError)
	containerPath, configPath := commonFlags(fs)
	fs.Parse(args)

	cfg := config.MustLoad(*configPath)
	e, err := engine.Open(*containerPath, cfg, nil)
	fatalOnErr(err, "open")
	defer e.Shutdown(context.Background())

	violations, err := e.Fsck(context.Background())
	fatalOnErr(err, "fsck")

	if len(violations) == 0 {
		fmt.Println("clean: no violations found")
		return
	}
	for _, v := range violations {
		fmt.Printf("[%s] index=%d: %s\n", v.Kind, v.Index, v.Detail)
	}
	os.Exit(1)
}

// cmdServe is the line-oriented administrative client
// original_source/src/admin_cli.cpp describes: it issues the same
// request records the network listener would (spec §1), just read
// from stdin instead of a socket, one line per request:
//
//	OPKIND key=value key=value ...
//
// e.g. "FILE_CREATE session=<id> path=/a.txt" or "LOGIN username=admin
// password=admin123".
func cmdServe(args []string) {
	fs := pflag.NewFlagSet("serve", pflag.ExitOnError)
	containerPath, configPath := commonFlags(fs)
	queueCapacity := fs.Int("queue-capacity", 64, "pipeline request queue capacity")
	fs.Parse(args)

	cfg := config.MustLoad(*configPath)
	e, err := engine.Open(*containerPath, cfg, nil)
	fatalOnErr(err, "open")
	defer e.Shutdown(context.Background())

	p := pipeline.New(engine.NewDispatcher(e), *queueCapacity)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	fmt.Fprintln(os.Stderr, "omnifsctl serve: reading requests from stdin, one per line (OPKIND key=value ...)")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		req, err := parseRequestLine(p, line)
		if err != nil {
			fmt.Printf("ERROR %v\n", err)
			continue
		}
		if err := p.Enqueue(req); err != nil {
			fmt.Printf("ERROR %v\n", err)
			continue
		}
		resp, err := p.DequeueResponse(req.ID, cfg.QueueTimeout)
		if err != nil {
			fmt.Printf("ERROR %v\n", err)
			continue
		}
		fmt.Printf("%s payload=%v took_ms=%d\n", resp.Status, resp.Payload, resp.TookMs)
	}
}

func parseRequestLine(p *pipeline.Pipeline, line string) (pipeline.Request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return pipeline.Request{}, fmt.Errorf("empty request line")
	}

	req := pipeline.Request{
		ID:   p.NextID(),
		Op:   pipeline.OpKind(strings.ToUpper(fields[0])),
		Args: make(map[string]any),
	}
	for _, kv := range fields[1:] {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return pipeline.Request{}, fmt.Errorf("malformed key=value token %q", kv)
		}
		if key == "session" {
			req.SessionID = value
			continue
		}
		req.Args[key] = value
	}
	return req, nil
}

func fatalOnErr(err error, op string) {
	if err == nil {
		return
	}
	logger := slog.New(slogpretty.PrettyHandlerOptions{SlogOpts: &slog.HandlerOptions{Level: slog.LevelInfo}}.NewPrettyHandler(os.Stderr))
	logger.Error(op+" failed", slog.Any("error", err))
	os.Exit(1)
}
