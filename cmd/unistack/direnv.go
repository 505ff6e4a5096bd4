package unistack

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/yaklabco/direnv/v2/pkg/callable"
)

// RunDirenv runs direnv's own command line in process, so an environment can
// load its .envrc without a separate direnv install:
//
//	unistack --direnv -- allow ./my-app
//	unistack --direnv -- exec ./my-app unistack dev -C ./my-app
func RunDirenv(ctx context.Context, params Params, args []string) error {
	// direnv prints os.Args[0] in its usage and hook output.
	origArgsZero := os.Args[0]
	os.Args[0] += " --direnv --"
	defer func() {
		os.Args[0] = origArgsZero
	}()

	origLogger := slog.Default()
	slog.SetDefault(slog.New(slog.DiscardHandler))
	defer func() {
		slog.SetDefault(origLogger)
	}()

	argv := append([]string{os.Args[0]}, args...)
	if err := callable.CallableMain(ctx, argv, direnvEnv(params)); err != nil {
		return fmt.Errorf("direnv run failed: %w", err)
	}
	return nil
}

// direnvEnv is the current environment plus the global flags, which a
// unistack started by `direnv exec` would otherwise lose.
func direnvEnv(params Params) map[string]string {
	envMap := lo.Associate(os.Environ(), func(kv string) (string, string) {
		k, v, _ := strings.Cut(kv, "=")
		return k, v
	})
	if params.Debug {
		envMap["UNISTACK_DEBUG"] = "1"
	}
	if params.Verbose {
		envMap["UNISTACK_VERBOSE"] = "1"
	}
	return envMap
}
