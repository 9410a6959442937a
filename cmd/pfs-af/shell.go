package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/mit-dci/pfs/lnutil"
)

var exitCommand = &Command{
	Format:           lnutil.White("exit\n"),
	Description:      fmt.Sprintf("Alias: %s\nExit the interactive shell.\n", lnutil.White("quit")),
	ShortDescription: fmt.Sprintf("Alias: %s\nExit the interactive shell.\n", lnutil.White("quit")),
}

var helpCommand = &Command{
	Format:           fmt.Sprintf("%s%s\n", lnutil.White("help"), lnutil.OptColor("command")),
	Description:      "Show information about a given command\n",
	ShortDescription: "Show information about a given command\n",
}

var stopCommand = &Command{
	Format:           lnutil.White("stop\n"),
	Description:      "Shut down the pfs daemon.\n",
	ShortDescription: "Shut down the pfs daemon.\n",
}

// Shellparse parses user input and hands it to command functions if matching
func (lc *pfsAfClient) Shellparse(cmdslice []string) error {
	var err error
	var args []string
	cmd := cmdslice[0]
	if len(cmdslice) > 1 {
		args = cmdslice[1:]
	}

	switch cmd {
	case "exit", "quit":
		return lc.Exit(args)

	// help gives you really terse help.  Just a list of commands.
	case "help":
		err = lc.Help(args)

	// route asks for the cheapest routes between two nodes
	case "route":
		err = lc.Route(args)

	// graph shows what the daemon knows per token
	case "graph":
		err = lc.Graph(args)

	// dot dumps a token network in graphviz format
	case "dot":
		err = lc.Dot(args)

	case "bal":
		err = lc.Bal(args)

	case "settle":
		err = lc.Settle(args)

	// push sends events from a json file
	case "push":
		err = lc.Push(args)

	case "stop":
		return lc.Stop(args)

	default:
		fmt.Fprintf(color.Output, "Command not recognized. type help for command list.\n")
		return nil
	}
	if err != nil {
		fmt.Fprintf(color.Output, "%s error: %s\n", cmd, err)
	}
	return nil
}

func (lc *pfsAfClient) Exit(textArgs []string) error {
	if len(textArgs) > 0 {
		if len(textArgs) == 1 && textArgs[0] == "-h" {
			fmt.Fprint(color.Output, exitCommand.Format)
			fmt.Fprint(color.Output, exitCommand.Description)
			return nil
		}
		fmt.Fprintf(color.Output, "Unexpected argument: %s\n", textArgs[0])
		return nil
	}
	return fmt.Errorf("User exit")
}

func (lc *pfsAfClient) Stop(textArgs []string) error {
	if len(textArgs) > 0 && textArgs[0] == "-h" {
		fmt.Fprint(color.Output, stopCommand.Format)
		fmt.Fprint(color.Output, stopCommand.Description)
		return nil
	}

	status, err := lc.rpccon.Stop()
	if err != nil {
		fmt.Fprintf(color.Output, "stop error: %s\n", err)
		return nil
	}
	fmt.Fprintf(color.Output, "%s\n", status)

	lc.rpccon.Close()
	return fmt.Errorf("stopped remote pfs daemon")
}

func (lc *pfsAfClient) Help(textArgs []string) error {
	if len(textArgs) == 0 {
		fmt.Fprintf(color.Output, "commands:\n")
		for _, c := range []*Command{
			helpCommand, routeCommand, graphCommand, dotCommand,
			balCommand, settleCommand, pushCommand, stopCommand, exitCommand,
		} {
			fmt.Fprintf(color.Output, "%s\t%s", c.Format, c.ShortDescription)
		}
		return nil
	}

	if textArgs[0] == "help" || textArgs[0] == "-h" {
		fmt.Fprint(color.Output, helpCommand.Format)
		fmt.Fprint(color.Output, helpCommand.Description)
		return nil
	}
	res := make([]string, 0)
	res = append(res, textArgs[0])
	res = append(res, "-h")
	return lc.Shellparse(res)
}
