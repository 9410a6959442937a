package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"strconv"

	"github.com/fatih/color"
	"github.com/mit-dci/pfs/lnutil"
	"github.com/mit-dci/pfs/pfsrpc"
)

var routeCommand = &Command{
	Format: fmt.Sprintf("%s%s%s\n", lnutil.White("route"),
		lnutil.ReqColor("token", "source", "target", "amount"), lnutil.OptColor("paths", "hops")),
	Description: fmt.Sprintf("%s\n%s\n%s\n",
		"Find the cheapest routes to move amount from source to target on the",
		"given token network.  Fees are charged to the address given with -req.",
		"Optionally limit the number of routes and the hops per route."),
	ShortDescription: "Find the cheapest routes between two nodes.\n",
}

var graphCommand = &Command{
	Format:           fmt.Sprintf("%s%s\n", lnutil.White("graph"), lnutil.OptColor("token")),
	Description:      "Show channel and node counts for every token network, or only the given one.\n",
	ShortDescription: "Show channel and node counts per token network.\n",
}

var dotCommand = &Command{
	Format:           fmt.Sprintf("%s%s\n", lnutil.White("dot"), lnutil.ReqColor("token")),
	Description:      "Print the token network in graphviz dot format.\n",
	ShortDescription: "Print the token network in graphviz dot format.\n",
}

var balCommand = &Command{
	Format:           fmt.Sprintf("%s%s\n", lnutil.White("bal"), lnutil.OptColor("address")),
	Description:      "Show what the address owes the service in route request fees.  Defaults to -req.\n",
	ShortDescription: "Show the ledger entry of an address.\n",
}

var settleCommand = &Command{
	Format: fmt.Sprintf("%s%s\n", lnutil.White("settle"),
		lnutil.ReqColor("sender", "receiver", "amount", "expiry", "signature")),
	Description: fmt.Sprintf("%s\n%s\n",
		"Settle fees with a signed IOU.  The amount is the total ever paid,",
		"expiry is in unix seconds and the signature is hex."),
	ShortDescription: "Settle fees with a signed IOU.\n",
}

var pushCommand = &Command{
	Format: fmt.Sprintf("%s%s\n", lnutil.White("push"), lnutil.ReqColor("file")),
	Description: fmt.Sprintf("%s\n%s\n",
		"Read a json array of channel events from file and hand them to the daemon",
		"in order.  Rejected events are listed with their position."),
	ShortDescription: "Push channel events from a json file.\n",
}

func (lc *pfsAfClient) Route(textArgs []string) error {
	if len(textArgs) > 0 && textArgs[0] == "-h" {
		fmt.Fprint(color.Output, routeCommand.Format)
		fmt.Fprint(color.Output, routeCommand.Description)
		return nil
	}
	if len(textArgs) < 4 {
		return fmt.Errorf("usage: %s", routeCommand.Format)
	}

	args := pfsrpc.FindRoutesArgs{
		Requester: lc.requester,
		Token:     textArgs[0],
		Source:    textArgs[1],
		Target:    textArgs[2],
	}
	amt, err := strconv.ParseInt(textArgs[3], 10, 64)
	if err != nil {
		return err
	}
	args.Amount = amt
	if len(textArgs) > 4 {
		if args.MaxPaths, err = strconv.Atoi(textArgs[4]); err != nil {
			return err
		}
	}
	if len(textArgs) > 5 {
		if args.MaxHops, err = strconv.Atoi(textArgs[5]); err != nil {
			return err
		}
	}

	reply, err := lc.rpccon.FindRoutes(args)
	if err != nil {
		return err
	}
	if len(reply.Routes) == 0 {
		fmt.Fprintf(color.Output, "no route\n")
		return nil
	}
	for i, r := range reply.Routes {
		fmt.Fprintf(color.Output, "%s %d: %d hops, fee %s\n",
			lnutil.Header("Route"), i, len(r.Hops), lnutil.Amount(r.Fee))
		for _, h := range r.Hops {
			fmt.Fprintf(color.Output, "\t%s %s -> %s  %s\n",
				lnutil.Channel(h.Channel), lnutil.Address(h.From), lnutil.Address(h.To),
				lnutil.FeeColor(h.Forwarded, h.Fee))
		}
	}
	return nil
}

func (lc *pfsAfClient) Graph(textArgs []string) error {
	if len(textArgs) > 0 && textArgs[0] == "-h" {
		fmt.Fprint(color.Output, graphCommand.Format)
		fmt.Fprint(color.Output, graphCommand.Description)
		return nil
	}
	var token string
	if len(textArgs) > 0 {
		token = textArgs[0]
	}

	reply, err := lc.rpccon.GraphInfo(token)
	if err != nil {
		return err
	}
	for _, t := range reply.Tokens {
		fmt.Fprintf(color.Output, "%s %s (v%d)\n", lnutil.Header("Token"), lnutil.Address(t.Token), t.Version)
		fmt.Fprintf(color.Output, "\t%d channels, %s routable, %s flagged, %d nodes\n",
			t.Channels, lnutil.Green(t.Routable), lnutil.Red(t.Flagged), t.Nodes)
	}
	fmt.Fprintf(color.Output, "%s %d\n", lnutil.Header("Pending events:"), reply.Pending)
	return nil
}

func (lc *pfsAfClient) Dot(textArgs []string) error {
	if len(textArgs) > 0 && textArgs[0] == "-h" {
		fmt.Fprint(color.Output, dotCommand.Format)
		fmt.Fprint(color.Output, dotCommand.Description)
		return nil
	}
	if len(textArgs) < 1 {
		return fmt.Errorf("usage: %s", dotCommand.Format)
	}

	g, err := lc.rpccon.GraphDot(textArgs[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(color.Output, "%s\n", g)
	return nil
}

func (lc *pfsAfClient) Bal(textArgs []string) error {
	if len(textArgs) > 0 && textArgs[0] == "-h" {
		fmt.Fprint(color.Output, balCommand.Format)
		fmt.Fprint(color.Output, balCommand.Description)
		return nil
	}
	who := lc.requester
	if len(textArgs) > 0 {
		who = textArgs[0]
	}
	if who == "" {
		return fmt.Errorf("no address given and no -req set")
	}

	reply, err := lc.rpccon.Balance(who)
	if err != nil {
		return err
	}
	fmt.Fprintf(color.Output, "%s %s (service %s)\n",
		lnutil.Header("Ledger"), lnutil.Address(reply.Participant), lnutil.Address(reply.Service))
	fmt.Fprintf(color.Output, "\towed %s paid %s reserved %s limit %s\n",
		lnutil.Amount(reply.Owed), lnutil.Amount(reply.Paid),
		lnutil.Amount(reply.Reserved), lnutil.Amount(reply.CreditLimit))
	return nil
}

func (lc *pfsAfClient) Settle(textArgs []string) error {
	if len(textArgs) > 0 && textArgs[0] == "-h" {
		fmt.Fprint(color.Output, settleCommand.Format)
		fmt.Fprint(color.Output, settleCommand.Description)
		return nil
	}
	if len(textArgs) < 5 {
		return fmt.Errorf("usage: %s", settleCommand.Format)
	}

	args := pfsrpc.SettleIOUArgs{
		Sender:    textArgs[0],
		Receiver:  textArgs[1],
		Signature: textArgs[4],
	}
	var err error
	if args.Amount, err = strconv.ParseInt(textArgs[2], 10, 64); err != nil {
		return err
	}
	if args.Expiry, err = strconv.ParseInt(textArgs[3], 10, 64); err != nil {
		return err
	}

	status, err := lc.rpccon.SettleIOU(args)
	if err != nil {
		return err
	}
	fmt.Fprintf(color.Output, "%s\n", status)
	return nil
}

func (lc *pfsAfClient) Push(textArgs []string) error {
	if len(textArgs) > 0 && textArgs[0] == "-h" {
		fmt.Fprint(color.Output, pushCommand.Format)
		fmt.Fprint(color.Output, pushCommand.Description)
		return nil
	}
	if len(textArgs) < 1 {
		return fmt.Errorf("usage: %s", pushCommand.Format)
	}

	b, err := ioutil.ReadFile(textArgs[0])
	if err != nil {
		return err
	}
	var envs []pfsrpc.EventEnvelope
	if err := json.Unmarshal(b, &envs); err != nil {
		return err
	}

	reply, err := lc.rpccon.PushEvents(envs)
	if err != nil {
		return err
	}
	fmt.Fprintf(color.Output, "accepted %s of %d events\n", lnutil.Green(reply.Accepted), len(envs))
	for _, e := range reply.Errors {
		fmt.Fprintf(color.Output, "\t%s\n", lnutil.Red(e))
	}
	return nil
}
