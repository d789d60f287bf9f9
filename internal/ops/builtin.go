// builtin.go registers the op set every worker gets by default, one per
// capability category the spec names: filesystem, network, process,
// environment, timers, worker control. Each handler's first act is always
// the permission check Op.Permission derives from its own Args — there is
// no path from JS to a resource that skips it.
package ops

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/denoland/deno-sub011/internal/modpath"
	"github.com/denoland/deno-sub011/internal/permissions"
	"github.com/denoland/deno-sub011/internal/subprocess"
)

// RegisterBuiltins installs the default op set into table.
func RegisterBuiltins(table *Table) {
	for _, op := range []Op{
		opReadFile(),
		opWriteFile(),
		opNetConnect(),
		opRunSpawn(),
		opRunKill(),
		opEnvGet(),
		opEnvSet(),
		opEnvDelete(),
		opEnvToObject(),
		opTimerStart(),
		opTimerCancel(),
		opWorkerTerminate(),
	} {
		table.MustRegister(op)
	}
}

func opReadFile() Op {
	return Op{
		Name:     "op_read_file",
		Kind:     Sync,
		Category: CategoryFilesystem,
		Args:     []ArgSpec{{Name: "path", Kind: ArgString}},
		Permission: func(args Args) permissions.Descriptor {
			return permissions.Descriptor{Kind: permissions.KindRead, Path: modpath.AbsolutePathFromUpstream(args.String("path"))}
		},
		SyncFn: func(ctx *Context, args Args) (any, error) {
			return os.ReadFile(args.String("path"))
		},
	}
}

func opWriteFile() Op {
	return Op{
		Name:     "op_write_file",
		Kind:     Sync,
		Category: CategoryFilesystem,
		Args:     []ArgSpec{{Name: "path", Kind: ArgString}, {Name: "data", Kind: ArgBuffer}},
		Permission: func(args Args) permissions.Descriptor {
			return permissions.Descriptor{Kind: permissions.KindWrite, Path: modpath.AbsolutePathFromUpstream(args.String("path"))}
		},
		SyncFn: func(ctx *Context, args Args) (any, error) {
			return nil, os.WriteFile(args.String("path"), args.Buffer, 0o644)
		},
	}
}

func opNetConnect() Op {
	return Op{
		Name:     "op_net_connect",
		Kind:     Async,
		Category: CategoryNetwork,
		Args:     []ArgSpec{{Name: "hostname", Kind: ArgString}, {Name: "port", Kind: ArgNumber}},
		Permission: func(args Args) permissions.Descriptor {
			host := fmt.Sprintf("%s:%d", args.String("hostname"), int(args.Number("port")))
			return permissions.Descriptor{Kind: permissions.KindNet, Host: host}
		},
		AsyncFn: func(ctx *Context, args Args) (any, error) {
			host := fmt.Sprintf("%s:%d", args.String("hostname"), int(args.Number("port")))
			conn, err := net.Dial("tcp", host)
			if err != nil {
				return nil, err
			}
			id := ctx.Resources.Add(CloserFunc(conn.Close))
			return id, nil
		},
	}
}

func opRunSpawn() Op {
	return Op{
		Name:     "op_run_spawn",
		Kind:     Sync,
		Category: CategoryProcess,
		Args:     []ArgSpec{{Name: "cmd", Kind: ArgString}, {Name: "args", Kind: ArgObject}},
		Permission: func(args Args) permissions.Descriptor {
			return permissions.Descriptor{Kind: permissions.KindRun, Binary: args.String("cmd")}
		},
		SyncFn: func(ctx *Context, args Args) (any, error) {
			var argv []string
			if raw, ok := args.Values["args"].([]string); ok {
				argv = raw
			}
			proc, err := subprocess.Spawn(subprocess.SpawnOptions{
				Command: args.String("cmd"),
				Args:    argv,
				Stdout:  subprocess.StdioPiped,
				Stderr:  subprocess.StdioPiped,
			})
			if err != nil {
				return nil, err
			}
			id := ctx.Resources.Add(CloserFunc(func() error { proc.Kill(); return nil }))
			return map[string]any{"rid": id, "pid": proc.Pid()}, nil
		},
	}
}

func opRunKill() Op {
	return Op{
		Name:     "op_run_kill",
		Kind:     Sync,
		Category: CategoryProcess,
		Args:     []ArgSpec{{Name: "rid", Kind: ArgString}},
		SyncFn: func(ctx *Context, args Args) (any, error) {
			return nil, ctx.Resources.Close(args.String("rid"))
		},
	}
}

func opEnvGet() Op {
	return Op{
		Name:     "op_env_get",
		Kind:     Sync,
		Category: CategoryEnvironment,
		Args:     []ArgSpec{{Name: "key", Kind: ArgString}},
		Permission: func(args Args) permissions.Descriptor {
			return permissions.Descriptor{Kind: permissions.KindEnv, Key: args.String("key")}
		},
		SyncFn: func(ctx *Context, args Args) (any, error) {
			v, ok := os.LookupEnv(args.String("key"))
			if !ok {
				return nil, nil
			}
			return v, nil
		},
	}
}

func opEnvSet() Op {
	return Op{
		Name:     "op_env_set",
		Kind:     Sync,
		Category: CategoryEnvironment,
		Args:     []ArgSpec{{Name: "key", Kind: ArgString}, {Name: "value", Kind: ArgString}},
		Permission: func(args Args) permissions.Descriptor {
			return permissions.Descriptor{Kind: permissions.KindEnv, Key: args.String("key")}
		},
		SyncFn: func(ctx *Context, args Args) (any, error) {
			return nil, os.Setenv(args.String("key"), args.String("value"))
		},
	}
}

func opEnvDelete() Op {
	return Op{
		Name:     "op_env_delete",
		Kind:     Sync,
		Category: CategoryEnvironment,
		Args:     []ArgSpec{{Name: "key", Kind: ArgString}},
		Permission: func(args Args) permissions.Descriptor {
			return permissions.Descriptor{Kind: permissions.KindEnv, Key: args.String("key")}
		},
		SyncFn: func(ctx *Context, args Args) (any, error) {
			return nil, os.Unsetenv(args.String("key"))
		},
	}
}

func opEnvToObject() Op {
	return Op{
		Name:     "op_env_to_object",
		Kind:     Sync,
		Category: CategoryEnvironment,
		Permission: func(args Args) permissions.Descriptor {
			return permissions.Descriptor{Kind: permissions.KindEnv}
		},
		SyncFn: func(ctx *Context, args Args) (any, error) {
			if err := ctx.Perms.CheckAll(permissions.KindEnv, "op_env_to_object"); err != nil {
				return nil, err
			}
			out := map[string]string{}
			for _, kv := range os.Environ() {
				for i := 0; i < len(kv); i++ {
					if kv[i] == '=' {
						out[kv[:i]] = kv[i+1:]
						break
					}
				}
			}
			return out, nil
		},
	}
}

func opTimerStart() Op {
	return Op{
		Name:     "op_timer_start",
		Kind:     Sync,
		Category: CategoryTimers,
		Args:     []ArgSpec{{Name: "delayMs", Kind: ArgNumber}},
		SyncFn: func(ctx *Context, args Args) (any, error) {
			delay := time.Duration(args.Number("delayMs")) * time.Millisecond
			done := make(chan struct{})
			timer := time.AfterFunc(delay, func() { close(done) })
			id := ctx.Resources.Add(CloserFunc(func() error { timer.Stop(); return nil }))
			return map[string]any{"rid": id, "done": done}, nil
		},
	}
}

func opTimerCancel() Op {
	return Op{
		Name:     "op_timer_cancel",
		Kind:     Sync,
		Category: CategoryTimers,
		Args:     []ArgSpec{{Name: "rid", Kind: ArgString}},
		SyncFn: func(ctx *Context, args Args) (any, error) {
			return nil, ctx.Resources.Close(args.String("rid"))
		},
	}
}

func opWorkerTerminate() Op {
	return Op{
		Name:     "op_worker_terminate",
		Kind:     Sync,
		Category: CategoryWorkerControl,
		SyncFn: func(ctx *Context, args Args) (any, error) {
			ctx.Resources.CloseAll()
			return nil, nil
		},
	}
}
