package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/radosclient/internal/logger"
	"github.com/marmos91/radosclient/pkg/cephx"
	"github.com/marmos91/radosclient/pkg/config"
	"github.com/marmos91/radosclient/pkg/monclient"
	"github.com/marmos91/radosclient/pkg/objclient"
)

// dialedClients bundles the authenticated monitor session and the
// object client built on top of it, plus the teardown every command
// must run before exiting.
type dialedClients struct {
	cfg *config.Config
	mon *monclient.Client
	obj *objclient.ObjectClient
}

func (d *dialedClients) Close() {
	_ = d.mon.Shutdown()
	_ = d.obj.Close()
}

// connect loads configuration, initializes logging, hunts the
// monitors until authenticated and holding a MonMap, and returns an
// ObjectClient. It does not wait for the first OSDMap; the
// ObjectClient starts from an empty map until one arrives. Every
// object/pool subcommand shares this path.
func connect(ctx context.Context) (*dialedClients, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	entity, err := cephx.ParseEntityName(cfg.EntityName)
	if err != nil {
		return nil, fmt.Errorf("parse entity_name: %w", err)
	}
	secret, err := cephx.LoadKeyring(cfg.KeyringPath, entity)
	if err != nil {
		return nil, fmt.Errorf("load keyring: %w", err)
	}

	mon, err := monclient.New(*cfg, secret, nil)
	if err != nil {
		return nil, fmt.Errorf("build monitor client: %w", err)
	}
	if err := mon.Init(ctx); err != nil {
		return nil, fmt.Errorf("hunt monitors: %w", err)
	}
	if err := mon.WaitForAuth(ctx); err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if err := mon.WaitForMonMap(ctx); err != nil {
		return nil, fmt.Errorf("await monmap: %w", err)
	}

	obj := objclient.New(*cfg, mon, nil)
	return &dialedClients{cfg: cfg, mon: mon, obj: obj}, nil
}
