package extension

import (
	"errors"
	"net/rpc"

	goplugin "github.com/hashicorp/go-plugin"
)

// Handshake is used to verify that an out-of-process extension and the
// host are compatible before any RPC traffic flows.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "SPYWATCHER_EXTENSION",
	MagicCookieValue: "spywatcher-extension-v1",
}

// PluginMap is the map of plugins the host can dispense.
var PluginMap = map[string]goplugin.Plugin{
	"extension": &RPCPlugin{},
}

// RemoteExtension is the wire contract for extensions that run as a
// subprocess. Hook payloads cross the boundary as plain maps; typed
// payloads are flattened by the host before dispatch.
type RemoteExtension interface {
	Init(config map[string]any) error
	Start() error
	Stop() error
	Destroy() error
	Hooks() []HookType
	InvokeHook(hook HookType, data map[string]any) (map[string]any, error)
	Health() (Health, error)
}

// Serve starts the plugin side of the RPC connection. Extension binaries
// call this from main with their implementation.
func Serve(impl RemoteExtension) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]goplugin.Plugin{
			"extension": &RPCPlugin{Impl: impl},
		},
	})
}

// RPCPlugin is the go-plugin glue for RemoteExtension over net/rpc.
type RPCPlugin struct {
	Impl RemoteExtension
}

func (p *RPCPlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (p *RPCPlugin) Client(b *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

// Errors are carried as strings because net/rpc's gob codec cannot
// encode arbitrary error implementations.
func encodeErr(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func decodeErr(s string) error {
	if s == "" {
		return nil
	}
	return errors.New(s)
}

// RPCServer runs inside the extension subprocess.
type RPCServer struct {
	Impl RemoteExtension
}

type InitArgs struct {
	Config map[string]any
}

func (s *RPCServer) Init(args *InitArgs, resp *string) error {
	*resp = encodeErr(s.Impl.Init(args.Config))
	return nil
}

func (s *RPCServer) Start(args interface{}, resp *string) error {
	*resp = encodeErr(s.Impl.Start())
	return nil
}

func (s *RPCServer) Stop(args interface{}, resp *string) error {
	*resp = encodeErr(s.Impl.Stop())
	return nil
}

func (s *RPCServer) Destroy(args interface{}, resp *string) error {
	*resp = encodeErr(s.Impl.Destroy())
	return nil
}

func (s *RPCServer) Hooks(args interface{}, resp *[]HookType) error {
	*resp = s.Impl.Hooks()
	return nil
}

type InvokeHookArgs struct {
	Hook HookType
	Data map[string]any
}

type InvokeHookResp struct {
	Result map[string]any
	Err    string
}

func (s *RPCServer) InvokeHook(args *InvokeHookArgs, resp *InvokeHookResp) error {
	result, err := s.Impl.InvokeHook(args.Hook, args.Data)
	resp.Result = result
	resp.Err = encodeErr(err)
	return nil
}

func (s *RPCServer) Health(args interface{}, resp *Health) error {
	health, err := s.Impl.Health()
	if err != nil {
		health = Health{Healthy: false, Error: err.Error()}
	}
	*resp = health
	return nil
}

// RPCClient is the host-side handle that talks to RPCServer.
type RPCClient struct {
	client *rpc.Client
}

func (c *RPCClient) Init(config map[string]any) error {
	var resp string
	if err := c.client.Call("Plugin.Init", &InitArgs{Config: config}, &resp); err != nil {
		return err
	}
	return decodeErr(resp)
}

func (c *RPCClient) Start() error {
	var resp string
	if err := c.client.Call("Plugin.Start", new(interface{}), &resp); err != nil {
		return err
	}
	return decodeErr(resp)
}

func (c *RPCClient) Stop() error {
	var resp string
	if err := c.client.Call("Plugin.Stop", new(interface{}), &resp); err != nil {
		return err
	}
	return decodeErr(resp)
}

func (c *RPCClient) Destroy() error {
	var resp string
	if err := c.client.Call("Plugin.Destroy", new(interface{}), &resp); err != nil {
		return err
	}
	return decodeErr(resp)
}

func (c *RPCClient) Hooks() []HookType {
	var resp []HookType
	if err := c.client.Call("Plugin.Hooks", new(interface{}), &resp); err != nil {
		return nil
	}
	return resp
}

func (c *RPCClient) InvokeHook(hook HookType, data map[string]any) (map[string]any, error) {
	var resp InvokeHookResp
	if err := c.client.Call("Plugin.InvokeHook", &InvokeHookArgs{Hook: hook, Data: data}, &resp); err != nil {
		return nil, err
	}
	return resp.Result, decodeErr(resp.Err)
}

func (c *RPCClient) Health() (Health, error) {
	var resp Health
	if err := c.client.Call("Plugin.Health", new(interface{}), &resp); err != nil {
		return Health{}, err
	}
	return resp, nil
}
