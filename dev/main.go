package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

func create(recreate bool, seed []string) error {
	_, err := os.Stat("go.mod")
	if os.IsNotExist(err) {
		return fmt.Errorf("the dev environment must be created in the repository root (the same directory as the 'go.mod' file)")
	}

	if recreate {
		err = os.RemoveAll("dev/.state")
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	err = os.MkdirAll("dev/.state", 0777)
	if err != nil && !os.IsExist(err) {
		return err
	}

	err = CreateRowStore(context.Background(), seed)
	if err != nil {
		return err
	}
	err = CreateConfigTemplates()
	if err != nil {
		return err
	}
	PrintConfigLocations()

	return nil
}

func main() {
	recreate := flag.Bool("recreate", false, "recreate the dev environment from scratch")
	seed := flag.String("seed", "", "comma separated nicknames to queue as Pending in the local row store")
	flag.Parse()

	var nicknames []string
	for _, nickname := range strings.Split(*seed, ",") {
		nickname = strings.TrimSpace(nickname)
		if nickname != "" {
			nicknames = append(nicknames, nickname)
		}
	}

	err := create(*recreate, nicknames)
	if err != nil {
		slog.Error("failed to create dev environment", "err", err.Error())
		os.Exit(1)
	}

	slog.Info("dev environment created sucessfully!")
}
