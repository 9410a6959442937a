package main

import (
	"github.com/chzyer/readline"
)

func (lc *pfsAfClient) completeTokens(line string) []string {
	names := make([]string, 0)
	reply, err := lc.rpccon.GraphInfo("")
	if err != nil {
		return names
	}
	for _, t := range reply.Tokens {
		names = append(names, t.Token)
	}
	return names
}

func (lc *pfsAfClient) NewAutoCompleter() readline.AutoCompleter {
	var completer = readline.NewPrefixCompleter(
		readline.PcItem("help",
			readline.PcItem("route"),
			readline.PcItem("graph"),
			readline.PcItem("dot"),
			readline.PcItem("bal"),
			readline.PcItem("settle"),
			readline.PcItem("push"),
			readline.PcItem("stop"),
			readline.PcItem("exit"),
		),
		readline.PcItem("route",
			readline.PcItemDynamic(lc.completeTokens)),
		readline.PcItem("graph",
			readline.PcItemDynamic(lc.completeTokens)),
		readline.PcItem("dot",
			readline.PcItemDynamic(lc.completeTokens)),
		readline.PcItem("bal"),
		readline.PcItem("settle"),
		readline.PcItem("push"),
		readline.PcItem("stop"),
		readline.PcItem("exit"),
	)

	return completer
}
