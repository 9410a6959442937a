// Package pfsrpc serves the pathfinding service over JSON-RPC on a
// websocket, and has the client side for it.
package pfsrpc

import (
	"context"
	"fmt"
	"net/http"
	"net/rpc"
	"net/rpc/jsonrpc"

	"golang.org/x/net/websocket"

	"github.com/mit-dci/pfs/logging"
	"github.com/mit-dci/pfs/pfs"
)

/*
Remote Procedure Calls
RPCs are how participants ask for routes, pay their IOUs and how event
feeds that aren't in-process push to the graph.
*/

// A PfsRPC is what the rpc server exposes.  OffButton gets a value when a
// client asks the daemon to stop.
type PfsRPC struct {
	Service   *pfs.Service
	OffButton chan bool
}

// Handler returns the http handler serving jsonrpc at /ws.
func Handler(rpcl *PfsRPC) (http.Handler, error) {
	server := rpc.NewServer()
	if err := server.Register(rpcl); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", websocket.Handler(func(ws *websocket.Conn) {
		logging.Debugf("rpc: connection from %s", ws.Request().RemoteAddr)
		server.ServeCodec(jsonrpc.NewServerCodec(ws))
	}))
	return mux, nil
}

// RPCListen serves until ctx is done.
func RPCListen(ctx context.Context, rpcl *PfsRPC, host string, port uint16) error {
	h, err := Handler(rpcl)
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: fmt.Sprintf("%s:%d", host, port), Handler: h}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	logging.Infof("rpc: listening on %s", srv.Addr)
	err = srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
