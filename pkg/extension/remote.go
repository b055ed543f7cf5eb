package extension

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	goplugin "github.com/hashicorp/go-plugin"
)

// launchRemote starts an extension binary as a subprocess and returns an
// Extension backed by the RPC connection, plus a kill function that tears
// the subprocess down.
func launchRemote(binaryPath string) (Extension, func(), error) {
	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins:         PluginMap,
		Cmd:             exec.Command(binaryPath),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("connecting to extension process: %w", err)
	}

	raw, err := rpcClient.Dispense("extension")
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("dispensing extension: %w", err)
	}

	remote, ok := raw.(RemoteExtension)
	if !ok {
		client.Kill()
		return nil, nil, fmt.Errorf("extension process served unexpected type %T", raw)
	}

	return &remoteAdapter{remote: remote}, client.Kill, nil
}

// remoteAdapter presents a subprocess extension through the in-process
// Extension contract. Hook payloads are flattened to maps because typed
// values cannot cross the RPC boundary.
type remoteAdapter struct {
	remote RemoteExtension
}

func (a *remoteAdapter) Init(ctx context.Context, ec *Context) error {
	return a.remote.Init(ec.Config)
}

func (a *remoteAdapter) Start(ctx context.Context) error {
	return a.remote.Start()
}

func (a *remoteAdapter) Stop(ctx context.Context) error {
	return a.remote.Stop()
}

func (a *remoteAdapter) Destroy(ctx context.Context) error {
	return a.remote.Destroy()
}

func (a *remoteAdapter) RegisterHooks(h *Hooks) error {
	for _, hook := range a.remote.Hooks() {
		hook := hook
		_, err := h.Register(hook, func(ctx context.Context, hc *HookContext, data any) (any, error) {
			result, err := a.remote.InvokeHook(hook, toPayloadMap(data))
			if err != nil {
				return nil, err
			}
			if result == nil {
				return nil, nil
			}
			return result, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *remoteAdapter) HealthCheck(ctx context.Context) Health {
	health, err := a.remote.Health()
	if err != nil {
		return Health{Healthy: false, Error: err.Error()}
	}
	return health
}

// toPayloadMap converts an arbitrary hook payload into a map for the wire.
// Structs go through a JSON round trip; values that cannot be represented
// are wrapped under a "value" key.
func toPayloadMap(data any) map[string]any {
	if data == nil {
		return nil
	}
	if m, ok := data.(map[string]any); ok {
		return m
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return map[string]any{"value": fmt.Sprint(data)}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"value": string(raw)}
	}
	return m
}
