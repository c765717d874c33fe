package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/fatih/color"

	"github.com/robotalks/max1187x/pkg/driver"
)

// Shell provides an ishell backed diagnostic shell on a driver.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	Timeout     time.Duration

	Shell  *ishell.Shell
	Driver *driver.Driver
}

const (
	shellKey = "$shell"
	prompt   = "tsc > "

	// DefaultTimeout bounds commands waiting for the device.
	DefaultTimeout = 5 * time.Second
)

var (
	evalOnly   bool
	outputJSON bool

	commands []*ishell.Cmd

	okColor  = color.New(color.FgGreen).SprintFunc()
	idColor  = color.New(color.FgCyan, color.Bold).SprintFunc()
	hdrColor = color.New(color.FgYellow).SprintFunc()
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds registers commands, used by command providers during init.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a shell.
func New(d *driver.Driver) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     DefaultTimeout,
		Shell:       ishell.New(),
		Driver:      d,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Context creates a context bounded by Timeout.
func (s *Shell) Context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.Timeout)
}

// Print prints v as JSON in JSON mode, or text otherwise.
func (s *Shell) Print(c *ishell.Context, v interface{}, text string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// OK prints the success of a command.
func (s *Shell) OK(c *ishell.Context) {
	s.Print(c, map[string]bool{"ok": true}, okColor("OK"))
}

// Run runs commands in args, or the interactive shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Run is a helper creating a shell on the driver and running args.
func Run(d *driver.Driver, args ...string) {
	New(d).Run(args...)
}

func errorf(c *ishell.Context, format string, args ...interface{}) {
	c.Err(fmt.Errorf(format, args...))
}
