package admincli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/term"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/dmitrijs2005/resumegate/internal/common"
)

// TokenEnv holds a pre-issued admin token.
const TokenEnv = "RESUMEGATE_ADMIN_TOKEN"

const callTimeout = 10 * time.Second

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errUsage = errors.New("usage")

const usage = `Usage: resumegate-admin [flags] <command> [args]

Commands:
  attempts <client>   show the attempt record of a client key
  reset <client>      clear the attempt record of a client key
  locked              list locked client keys
  sweep               drop lock records past the grace period
  versions            list retained résumé versions
  objects             list stored files, flagging ones no version tracks

Flags:
`

type options struct {
	grpcAddr string
	httpURL  string
	token    string
}

// App holds what a command needs to run; tests replace dialOpts and
// httpClient.
type App struct {
	stdout     io.Writer
	stderr     io.Writer
	httpClient *http.Client
	dialOpts   []grpc.DialOption
}

func NewApp(stdout, stderr io.Writer) *App {
	return &App{stdout: stdout, stderr: stderr, httpClient: http.DefaultClient}
}

// Run parses args, executes one command and returns the exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	err := a.run(ctx, args)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		return 2
	default:
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return 1
	}
}

func (a *App) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resumegate-admin", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprint(a.stderr, usage)
		fs.PrintDefaults()
	}

	var opts options
	fs.StringVar(&opts.grpcAddr, "g", "localhost:50051", "admin gRPC address")
	fs.StringVar(&opts.httpURL, "u", "http://localhost:8080", "gateway HTTP base URL, used to log in")
	fs.StringVar(&opts.token, "t", os.Getenv(TokenEnv), "admin token; prompts for the admin password when empty")

	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 || !validArity(rest) {
		fs.Usage()
		return errUsage
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	token := opts.token
	if token == "" {
		var err error
		if token, err = a.login(ctx, opts.httpURL); err != nil {
			return err
		}
	}

	client, err := NewGRPCClient(opts.grpcAddr, token, a.dialOpts...)
	if err != nil {
		return err
	}
	defer client.Close()

	return a.dispatch(ctx, client, rest)
}

func validArity(args []string) bool {
	switch args[0] {
	case "attempts", "reset":
		return len(args) == 2
	case "locked", "sweep", "versions", "objects":
		return len(args) == 1
	}
	return false
}

func (a *App) login(ctx context.Context, baseURL string) (string, error) {
	fmt.Fprint(a.stderr, "Admin password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.stderr)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)

	return FetchToken(ctx, a.httpClient, baseURL, pw)
}

func (a *App) dispatch(ctx context.Context, c *GRPCClient, args []string) error {
	switch args[0] {
	case "attempts":
		rec, err := c.Attempts(ctx, args[1])
		if err != nil {
			return err
		}
		return a.print(rec)
	case "reset":
		if err := c.Reset(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "reset %s\n", args[1])
		return nil
	case "locked":
		list, err := c.Locked(ctx)
		if err != nil {
			return err
		}
		return a.print(list)
	case "sweep":
		n, err := c.Sweep(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "swept %d\n", n)
		return nil
	case "versions":
		list, err := c.Versions(ctx)
		if err != nil {
			return err
		}
		return a.print(list)
	case "objects":
		list, err := c.Objects(ctx)
		if err != nil {
			return err
		}
		return a.print(list)
	}
	return errUsage
}

func (a *App) print(m proto.Message) error {
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(m)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, string(b))
	return err
}
