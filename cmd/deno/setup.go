package deno

import (
	"github.com/spf13/cobra"
)

// setupEnv builds the permission container and composition-root env for
// one command invocation, and registers lifecycle-warning flushing against
// the command's signal watcher so an interrupted install still records
// what it skipped.
func setupEnv(cmd *cobra.Command, flags *globalFlags) (*env, error) {
	perms, err := flags.buildPermissions()
	if err != nil {
		return nil, err
	}
	e, err := newEnv(flags, perms)
	if err != nil {
		return nil, err
	}
	if watcher := watcherFromCmd(cmd); watcher != nil {
		watcher.AddOnClose(func() {
			if msg, err := e.lifecycle.FlushWarnings(); err == nil && msg != "" {
				e.logger.Warn(msg)
			}
		})
	}
	return e, nil
}
