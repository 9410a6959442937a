package pfsrpc

import (
	"encoding/json"
	"fmt"
	"net/rpc"
	"sync"

	"golang.org/x/net/websocket"
)

type wsCodec struct {
	dec     *json.Decoder // for reading JSON values
	enc     *json.Encoder // for writing JSON values
	c       *websocket.Conn
	req     clientRequest
	resp    clientResponse
	mutex   sync.Mutex      // protects pending
	pending map[uint]string // map request id to method name
}

type clientRequest struct {
	Method string         `json:"method"`
	Params [1]interface{} `json:"params"`
	Id     uint           `json:"id"`
}

func (c *wsCodec) WriteRequest(r *rpc.Request, param interface{}) error {
	c.mutex.Lock()
	c.pending[uint(r.Seq)] = r.ServiceMethod
	c.mutex.Unlock()
	c.req.Method = r.ServiceMethod
	c.req.Params[0] = param
	c.req.Id = uint(r.Seq)
	return c.enc.Encode(&c.req)
}

type clientResponse struct {
	Id     uint             `json:"id"`
	Result *json.RawMessage `json:"result"`
	Error  interface{}      `json:"error"`
}

func (r *clientResponse) reset() {
	r.Id = 0
	r.Result = nil
	r.Error = nil
}

func (c *wsCodec) ReadResponseHeader(r *rpc.Response) error {
	c.resp.reset()
	if err := c.dec.Decode(&c.resp); err != nil {
		return err
	}

	c.mutex.Lock()
	r.ServiceMethod = c.pending[c.resp.Id]
	delete(c.pending, c.resp.Id)
	c.mutex.Unlock()

	r.Error = ""
	r.Seq = uint64(c.resp.Id)
	if c.resp.Error != nil || c.resp.Result == nil {
		x, ok := c.resp.Error.(string)
		if !ok {
			return fmt.Errorf("invalid error %v", c.resp.Error)
		}
		if x == "" {
			x = "unspecified error"
		}
		r.Error = x
	}
	return nil
}

func (c *wsCodec) ReadResponseBody(body interface{}) error {
	if body == nil || c.resp.Result == nil {
		return nil
	}
	return json.Unmarshal(*c.resp.Result, body)
}

func (c *wsCodec) Close() error {
	return c.c.Close()
}

// Client talks to a pfs daemon.
type Client struct {
	rpccon *rpc.Client
}

// Dial connects to the websocket rpc endpoint of a daemon at host:port.
func Dial(host string, port uint16) (*Client, error) {
	url := fmt.Sprintf("ws://%s:%d/ws", host, port)
	origin := fmt.Sprintf("http://%s/", host)
	return DialURL(url, origin)
}

func DialURL(url, origin string) (*Client, error) {
	wsConn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	codec := &wsCodec{
		dec:     json.NewDecoder(wsConn),
		enc:     json.NewEncoder(wsConn),
		c:       wsConn,
		pending: make(map[uint]string),
	}
	return &Client{rpccon: rpc.NewClientWithCodec(codec)}, nil
}

// Call runs PfsRPC.<method>.
func (c *Client) Call(method string, args, reply interface{}) error {
	return c.rpccon.Call("PfsRPC."+method, args, reply)
}

func (c *Client) FindRoutes(args FindRoutesArgs) (*FindRoutesReply, error) {
	reply := new(FindRoutesReply)
	return reply, c.Call("FindRoutes", args, reply)
}

func (c *Client) GraphInfo(token string) (*GraphInfoReply, error) {
	reply := new(GraphInfoReply)
	return reply, c.Call("GraphInfo", GraphArgs{Token: token}, reply)
}

func (c *Client) GraphDot(token string) (string, error) {
	reply := new(GraphDotReply)
	err := c.Call("GraphDot", GraphArgs{Token: token}, reply)
	return reply.Graph, err
}

func (c *Client) Balance(participant string) (*BalanceReply, error) {
	reply := new(BalanceReply)
	return reply, c.Call("Balance", BalanceArgs{Participant: participant}, reply)
}

func (c *Client) SettleIOU(args SettleIOUArgs) (string, error) {
	reply := new(StatusReply)
	err := c.Call("SettleIOU", args, reply)
	return reply.Status, err
}

func (c *Client) PushEvents(envs []EventEnvelope) (*PushEventsReply, error) {
	reply := new(PushEventsReply)
	return reply, c.Call("PushEvents", PushEventsArgs{Events: envs}, reply)
}

func (c *Client) Stop() (string, error) {
	reply := new(StatusReply)
	err := c.Call("Stop", NoArgs{}, reply)
	return reply.Status, err
}

func (c *Client) Close() error {
	return c.rpccon.Close()
}
