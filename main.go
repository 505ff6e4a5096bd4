package main

import (
	"context"
	"os"

	"github.com/yaklabco/unistack/cmd/unistack"
	"github.com/yaklabco/unistack/pkg/fault"
)

func main() {
	os.Exit(actualMain())
}

func actualMain() int {
	ctx := context.Background()

	rootCmd := unistack.NewRootCmd(ctx)

	return fault.ExitStatus(unistack.ExecuteWithFang(ctx, rootCmd))
}
