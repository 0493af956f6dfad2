package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/runnerr0/tabage/internal/server"
)

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	d := sess.cfg.Daemon
	host, port := d.Host, d.Port
	if c.Host != "" {
		host = c.Host
	}
	if c.Port != 0 {
		port = c.Port
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid --port value %d", port)
	}

	srv := server.New(sess.tracker, server.Options{
		Addr:           net.JoinHostPort(host, strconv.Itoa(port)),
		AllowedOrigins: d.AllowedOrigins,
		MaxRequestSize: d.MaxRequestSize,
	}, sess.logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
