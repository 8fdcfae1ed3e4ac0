package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/wostzone/bbtclient-go/api"
)

// requestTimeout of auth and read commands
const requestTimeout = 10 * time.Second

// Shell runs the interactive commands on a client
type Shell struct {
	client api.IBBTClient
	rl     *readline.Instance
	out    io.Writer
}

func (sh *Shell) printHelp() {
	fmt.Fprintln(sh.out, `Commands:
  sub <device> [service] [resource] [r|w|rw]   subscribe, default read access
  unsub <device> [service] [resource]          unsubscribe
  pub <device> <service> <resource> <data>     publish a transient message
  write <device> <service> <resource> <data>   write a persistent message
  auth <device> [service] [resource]           authenticate for a resource
  read <owner> <device> <service> <resource> [limit]
  status                                       connection status
  help                                         this help
  quit                                         exit`)
}

// parseAddress returns the resource address of the arguments, device first
func parseAddress(args []string) api.ResourceAddress {
	addr := api.ResourceAddress{}
	if len(args) > 0 {
		addr.Device = args[0]
	}
	if len(args) > 1 {
		addr.Service = args[1]
	}
	if len(args) > 2 {
		addr.Resource = args[2]
	}
	return addr
}

// parseData returns the JSON value of the text, or the text itself if it isn't JSON
func parseData(text string) interface{} {
	var data interface{}
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return text
	}
	return data
}

// parseAccess returns the read and write flags of r, w or rw
func parseAccess(access string) (read bool, write bool, err error) {
	switch strings.ToLower(access) {
	case "", "r":
		return true, false, nil
	case "w":
		return false, true, nil
	case "rw", "wr":
		return true, true, nil
	}
	return false, false, fmt.Errorf("invalid access '%s'", access)
}

func (sh *Shell) onMessage(msg *api.Message, err error) {
	if err != nil {
		fmt.Fprintf(sh.out, "subscription error: %s\n", err)
		return
	}
	fmt.Fprintf(sh.out, "%s.%s.%s: %s\n", msg.Device, msg.Service, msg.Resource, msg.Data)
}

func (sh *Shell) cmdSubscribe(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: sub <device> [service] [resource] [r|w|rw]")
	}
	access := ""
	if len(args) > 3 {
		access = args[3]
	}
	read, write, err := parseAccess(access)
	if err != nil {
		return err
	}
	addr := parseAddress(args)
	return sh.client.Subscribe(api.SubscribeArgs{
		Device:   addr.Device,
		Service:  addr.Service,
		Resource: addr.Resource,
		Read:     api.Bool(read),
		Write:    write,
		Handler:  sh.onMessage,
	})
}

func (sh *Shell) cmdPublish(args []string, persistent bool) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: pub|write <device> <service> <resource> <data>")
	}
	pubArgs := api.PublishArgs{
		Device:   args[0],
		Service:  args[1],
		Resource: args[2],
		Data:     parseData(strings.Join(args[3:], " ")),
	}
	if persistent {
		return sh.client.Write(pubArgs)
	}
	return sh.client.Publish(pubArgs)
}

func (sh *Shell) cmdRead(args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: read <owner> <device> <service> <resource> [limit]")
	}
	readArgs := api.ReadArgs{Owner: args[0], Device: args[1], Service: args[2], Resource: args[3]}
	if len(args) > 4 {
		limit, err := strconv.Atoi(args[4])
		if err != nil {
			return err
		}
		readArgs.Limit = limit
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	records, err := sh.client.Read(ctx, readArgs)
	if err != nil {
		return err
	}
	for _, record := range records {
		text, _ := json.Marshal(record)
		fmt.Fprintln(sh.out, string(text))
	}
	return nil
}

// Execute runs a single command line
// Returns io.EOF when the shell should exit
func (sh *Shell) Execute(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		sh.printHelp()
	case "sub", "subscribe":
		return sh.cmdSubscribe(args)
	case "unsub", "unsubscribe":
		return sh.client.Unsubscribe(parseAddress(args))
	case "pub", "publish":
		return sh.cmdPublish(args, false)
	case "write":
		return sh.cmdPublish(args, true)
	case "auth":
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return sh.client.Authenticate(ctx, parseAddress(args))
	case "read":
		return sh.cmdRead(args)
	case "status":
		fmt.Fprintf(sh.out, "connected: %v\n", sh.client.IsConnected())
	case "quit", "exit", "q":
		return io.EOF
	default:
		return fmt.Errorf("unknown command '%s'. Type 'help' for commands", cmd)
	}
	return nil
}

// Run the command loop until quit or end of input
func (sh *Shell) Run() {
	defer sh.rl.Close()
	sh.printHelp()
	for {
		line, err := sh.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err != nil {
			return
		}
		err = sh.Execute(strings.TrimSpace(line))
		if err == io.EOF {
			return
		} else if err != nil {
			fmt.Fprintf(sh.out, "error: %s\n", err)
		}
	}
}

// NewShell creates a shell for the client
func NewShell(client api.IBBTClient) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "bbt> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{client: client, rl: rl, out: rl.Stdout()}, nil
}
