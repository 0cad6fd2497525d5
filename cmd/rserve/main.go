// Command rserve runs the QAP1 server: it loads configuration, sets up
// logging, binds the listener, and serves connections until shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/op/go-logging"
	"github.com/urfave/cli"

	"github.com/cran/rserve-go/internal/auth"
	"github.com/cran/rserve-go/internal/config"
	"github.com/cran/rserve-go/internal/engine"
	"github.com/cran/rserve-go/internal/listener"
	"github.com/cran/rserve-go/internal/qap1"
	"github.com/cran/rserve-go/internal/rlog"
)

func main() {
	app := cli.NewApp()
	app.Name = "rserve"
	app.Usage = "serve the QAP1 statistical computation protocol"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Usage: "path to a config file"},
		cli.StringFlag{Name: "workdir", Usage: "per-connection sandbox root (overrides config)"},
		cli.StringFlag{Name: "pwdfile", Usage: "password file path (overrides config)"},
		cli.BoolFlag{Name: "remote", Usage: "accept non-loopback connections"},
		cli.BoolFlag{Name: "auth", Usage: "require login before dispatch"},
		cli.BoolFlag{Name: "plaintext", Usage: "accept plaintext passwords"},
		cli.BoolFlag{Name: "no-fileio", Usage: "disable file I/O commands"},
		cli.StringFlag{Name: "socket", Usage: "filesystem socket path (overrides config)"},
		cli.IntFlag{Name: "maxinbuf", Usage: "max input buffer size in KiB (overrides config)"},
		cli.IntFlag{Name: "maxsendbuf", Usage: "max send buffer size in KiB (overrides config)"},
		cli.IntFlag{Name: "uid", Usage: "drop to this uid after bind"},
		cli.IntFlag{Name: "gid", Usage: "drop to this gid after bind"},
		cli.StringFlag{Name: "source", Usage: "script evaluated at startup"},
		cli.StringFlag{Name: "eval", Usage: "expression evaluated at startup"},
		cli.StringSliceFlag{Name: "allow", Usage: "allowed client IP (repeatable, overrides config)"},
		cli.IntFlag{Name: "port", Usage: "TCP port (overrides config)"},
		cli.BoolFlag{Name: "vv", Usage: "debug-level logging"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "rserve:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	level := logging.NOTICE
	if c.Bool("vv") {
		level = logging.DEBUG
	}
	log := rlog.Setup(level)

	if err := qap1.SelfTest(); err != nil {
		return fmt.Errorf("startup self-test failed: %w", err)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyFlags(c, cfg)

	authr, err := buildAuthenticator(cfg)
	if err != nil {
		return err
	}

	if cfg.Source != "" || cfg.Eval != "" {
		bootstrap(cfg, log)
	}

	l, err := listener.New(cfg, authr, log)
	if err != nil {
		return err
	}
	log.Noticef("rserve listening on %s", l.Addr())

	dropPrivileges(cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT)
	go func() {
		s := <-sig
		log.Noticef("rserve: received %s, shutting down", s)
		cancel()
	}()

	if err := l.Serve(ctx); err != nil {
		return err
	}
	l.Wait()
	return nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("workdir") {
		cfg.Workdir = c.String("workdir")
	}
	if c.IsSet("pwdfile") {
		cfg.PwdFile = c.String("pwdfile")
	}
	if c.IsSet("socket") {
		cfg.Socket = c.String("socket")
	}
	if c.Bool("remote") {
		cfg.Remote = true
	}
	if c.Bool("auth") {
		cfg.AuthReq = true
	}
	if c.Bool("plaintext") {
		cfg.Plaintext = true
	}
	if c.Bool("no-fileio") {
		cfg.FileIO = false
	}
	if c.IsSet("maxinbuf") {
		cfg.MaxInBuf = c.Int("maxinbuf") * 1024
	}
	if c.IsSet("maxsendbuf") {
		cfg.MaxSendBuf = c.Int("maxsendbuf") * 1024
	}
	if c.IsSet("uid") {
		cfg.UID = c.Int("uid")
	}
	if c.IsSet("gid") {
		cfg.GID = c.Int("gid")
	}
	if c.IsSet("source") {
		cfg.Source = c.String("source")
	}
	if c.IsSet("eval") {
		cfg.Eval = c.String("eval")
	}
	if allow := c.StringSlice("allow"); len(allow) > 0 {
		cfg.Allow = allow
	}
}

func buildAuthenticator(cfg *config.Config) (*auth.Authenticator, error) {
	if !cfg.AuthReq {
		return nil, nil
	}
	salt, err := auth.NewSalt()
	if err != nil {
		return nil, err
	}
	mode := auth.ModeHashed
	if cfg.Plaintext {
		mode = auth.ModePlain
	}
	return auth.Load(cfg.PwdFile, mode, salt)
}

// bootstrap implements the supplemented source/eval startup config keys
// (SPEC_FULL.md SUPPLEMENTED FEATURES): evaluate a startup script and/or
// expression in a throwaway global environment before the listener binds,
// mirroring the original daemon's startup bootstrap. Since each connection
// gets a fresh environment (spec §1 Non-goals), this only serves to
// surface configuration errors at startup rather than on first connect.
func bootstrap(cfg *config.Config, log *logging.Logger) {
	eng := engine.NewBasic()
	env := engine.NewEnv()
	run := func(src string) {
		status, exprs, err := eng.Parse(src, 0)
		if err != nil || status != engine.StatusOK {
			log.Warningf("rserve: startup eval %q: parse error", src)
			return
		}
		for _, e := range exprs {
			if _, code := eng.TryEval(e, env); code != 0 {
				log.Warningf("rserve: startup eval %q: error code %d", src, code)
				return
			}
		}
	}
	if cfg.Source != "" {
		data, err := os.ReadFile(cfg.Source)
		if err != nil {
			log.Warningf("rserve: source %s: %v", cfg.Source, err)
		} else {
			run(string(data))
		}
	}
	if cfg.Eval != "" {
		run(cfg.Eval)
	}
}

// dropPrivileges implements the supplemented uid/gid startup config keys
// (SPEC_FULL.md SUPPLEMENTED FEATURES), dropping privileges after the
// listening socket is bound, on platforms that support setgid/setuid.
func dropPrivileges(cfg *config.Config, log *logging.Logger) {
	if cfg.GID == 0 && cfg.UID == 0 {
		return
	}
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		log.Warningf("rserve: uid/gid configured but not supported on %s", runtime.GOOS)
		return
	}
	if cfg.GID != 0 {
		if err := syscall.Setgid(cfg.GID); err != nil {
			log.Errorf("rserve: setgid(%d): %v", cfg.GID, err)
		}
	}
	if cfg.UID != 0 {
		if err := syscall.Setuid(cfg.UID); err != nil {
			log.Errorf("rserve: setuid(%d): %v", cfg.UID, err)
		}
	}
}
