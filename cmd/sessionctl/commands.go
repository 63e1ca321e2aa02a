package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/catalog"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/users"
)

const usage = `usage: sessionctl <command> [flags]

commands:
  login -u <username> [-p <password>] [-remember]
  logout
  whoami            print the stored session without contacting the backend
  me                fetch the current user from the backend
  refresh           renew the access token now
  shoes             list the protected catalog
  get <path>        GET any backend path through the authenticated client
  set-role <role>   update the role of the stored identity ("" clears it)`

type cli struct {
	service *auth.Service
	client  *apiclient.Client
	out     io.Writer
	prompt  func() (string, error)
}

func newCLI(ctx context.Context, cfg config.ClientConfig, repo storage.Repo, out io.Writer, prompt func() (string, error)) (*cli, error) {
	service, client, err := auth.Open(cfg, repo, apiclient.WithUnauthorizedHandler(func(loginPath string) {
		fmt.Fprintf(out, "session expired, log in again (%s)\n", loginPath)
	}))
	if err != nil {
		return nil, err
	}
	if _, err := service.Restore(ctx); err != nil {
		return nil, errors.Wrap(err, "restore session")
	}
	return &cli{service: service, client: client, out: out, prompt: prompt}, nil
}

func (c *cli) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return c.login(ctx, rest)
	case "logout":
		return c.service.Logout(ctx, func(path string) {
			fmt.Fprintf(c.out, "logged out, continue at %s\n", path)
		})
	case "whoami":
		return c.whoami()
	case "me":
		me, err := c.service.Me(ctx)
		if err != nil {
			return err
		}
		return c.printJSON(me)
	case "refresh":
		if err := c.service.Refresh(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "access token refreshed")
		return nil
	case "shoes":
		shoes, err := catalog.FetchShoes(ctx, c.client, 0)
		if err != nil {
			return err
		}
		return c.printJSON(shoes)
	case "get":
		if len(rest) != 1 {
			return errors.New("get needs exactly one path")
		}
		return c.get(ctx, rest[0])
	case "set-role":
		if len(rest) != 1 {
			return errors.New("set-role needs exactly one role")
		}
		patch := users.Patch{Role: &rest[0], ClearRole: rest[0] == ""}
		if err := c.service.UpdateUser(ctx, patch); err != nil {
			return err
		}
		return c.whoami()
	}
	return errors.Errorf("unknown command %q\n\n%s", cmd, usage)
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(c.out)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password (prompted when omitted)")
	remember := fs.Bool("remember", false, "keep the session across restarts")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return errors.New("login needs -u <username>")
	}
	if *password == "" {
		p, err := c.prompt()
		if err != nil {
			return err
		}
		*password = p
	}

	if _, err := c.service.Login(ctx, *username, *password, *remember); err != nil {
		return err
	}
	return c.whoami()
}

func (c *cli) whoami() error {
	session := c.service.CurrentSession()
	if !session.IsAuthenticated {
		fmt.Fprintln(c.out, "not logged in")
		return nil
	}
	return c.printJSON(session.User)
}

func (c *cli) get(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrap(err, "parse path")
	}
	path := u.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	resp, err := c.client.Get(ctx, path, u.Query())
	if err != nil {
		return err
	}
	_, err = c.out.Write(append(resp.Body, '\n'))
	return err
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
