package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yahya305/Daaktar-Saab/internal/client"
	"github.com/Yahya305/Daaktar-Saab/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a consultation in the terminal",
	Long: "Start a consultation in the terminal. Without --server an assistant is\n" +
		"started in-process on a loopback port.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

func runChat(cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	baseURL, _ := cmd.Flags().GetString("server")
	if baseURL == "" {
		d, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()
		warnIfEmpty(ctx, d)

		url, shutdown, err := serveLoopback(d)
		if err != nil {
			return err
		}
		defer shutdown()
		baseURL = url
	}

	session := client.NewSession(client.New(baseURL))
	if plain, _ := cmd.Flags().GetBool("plain"); plain {
		return chatPlain(ctx, session, os.Stdin, os.Stdout)
	}
	return tui.Run(ctx, session, cfg.Dialogue.MaxDepth)
}

// serveLoopback runs the assistant on a random loopback port.
func serveLoopback(d *deps) (string, func(), error) {
	handler, err := d.newServer()
	if err != nil {
		return "", nil, err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("in-process server stopped", "error", err)
		}
	}()
	return "http://" + ln.Addr().String(), func() { srv.Close() }, nil
}

// chatPlain is a line-oriented consultation for pipes and dumb terminals.
func chatPlain(ctx context.Context, session *client.Session, in io.Reader, out io.Writer) error {
	printReply := func(message string) error {
		fmt.Fprint(out, "Doctor: ")
		_, err := session.Send(ctx, message, func(s string) { fmt.Fprint(out, s) })
		fmt.Fprintln(out)
		if err != nil {
			return err
		}
		conv := session.Conversation()
		if conv.Failed {
			fmt.Fprintln(out, "[that turn failed, send your answer again to retry]")
		}
		if conv.Done {
			if d := conv.Diagnosis; d != nil {
				fmt.Fprintf(out, "[likely condition: %s, confidence %.0f%%]\n", d.Disease, d.Confidence*100)
			}
			fmt.Fprintln(out, "[consultation finished, type to start a new one]")
		}
		return nil
	}

	if err := printReply(""); err != nil {
		return err
	}

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "/quit" || line == "/exit" {
			return nil
		}
		if err := printReply(line); err != nil {
			return err
		}
	}
}

func init() {
	for _, c := range []*cobra.Command{chatCmd, rootCmd} {
		c.Flags().String("server", "", "URL of a running daaktar server")
		c.Flags().Bool("plain", false, "Line mode instead of the full-screen interface")
	}
}
