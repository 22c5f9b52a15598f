package main

import (
	"context"
	"os"
	"syscall"

	"charm.land/fang/v2"
	_ "github.com/joho/godotenv/autoload"

	"github.com/winnowlabs/winnow/internal/cmd"
	"github.com/winnowlabs/winnow/internal/version"
)

func main() {
	if err := fang.Execute(
		context.Background(),
		cmd.RootCmd(),
		fang.WithVersion(version.Version),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}
