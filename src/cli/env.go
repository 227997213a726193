package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"snapset/src/backend"
	"snapset/src/backend/lvm2"
	"snapset/src/boot"
	"snapset/src/cmdrun"
	"snapset/src/config"
	"snapset/src/logging"
	"snapset/src/manager"
	"snapset/src/store"
)

// env holds the wired-up dependencies a command operates on.
type env struct {
	cfg config.Config
	log *zap.Logger
	st  *store.Store
	mgr *manager.Manager
}

// Seams for tests: commands resolve their environment through these.
var (
	buildEnvFunc   = buildEnv
	newRunner      = func() cmdrun.Runner { return cmdrun.Exec{} }
	probeMachineID = boot.HostMachineID
)

// buildEnv loads configuration and constructs the store, backend registry,
// boot bridge and engine for one command invocation.
func buildEnv(cmd *cobra.Command) (*env, error) {
	flags := cmd.Root().PersistentFlags()
	cfgPath, _ := flags.GetString("config")
	debug, _ := flags.GetBool("debug")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if root, _ := flags.GetString("metadata-root"); root != "" {
		cfg.MetadataRoot = root
	}

	log := logging.New(debug)

	st, err := store.New(cfg.MetadataRoot, log)
	if err != nil {
		return nil, err
	}

	run := newRunner()
	if ver, err := lvm2.Detect(context.Background(), run); err != nil {
		log.Debug("lvm2 tools not detected", zap.Error(err))
	} else {
		log.Debug("lvm2 detected", zap.String("version", ver))
	}

	reg := backend.NewRegistry()
	for _, name := range cfg.BackendOrder {
		switch name {
		case "lvm2-cow":
			reg.Register(lvm2.NewCow(run, log))
		case "lvm2-thin":
			reg.Register(lvm2.NewThin(run, log))
		default:
			return nil, fmt.Errorf("unknown backend %q in backend_order", name)
		}
	}

	var entries boot.EntryManager = boot.Disabled{}
	if cfg.BootManagerPath != "" {
		entries = boot.NewExecManager(cfg.BootManagerPath, run)
	}
	bridge := boot.NewBridge(st, entries, log, cfg.DefaultProfile)

	host, err := probeMachineID()
	if err != nil {
		return nil, fmt.Errorf("read host machine identity: %w", err)
	}
	policy, err := backend.ParseSizePolicy(cfg.DefaultSizePolicy)
	if err != nil {
		return nil, fmt.Errorf("config default_size_policy: %w", err)
	}

	mgr, err := manager.New(st, reg, bridge, log, manager.Options{
		Host:              host,
		AutoCleanupRevert: cfg.AutoCleanupRevert,
		DefaultSizePolicy: policy,
	})
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, st: st, mgr: mgr}, nil
}

// cmdContext returns the command's context, never nil.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
