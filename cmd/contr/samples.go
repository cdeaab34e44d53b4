package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/cgast/contr/internal/config"
	"github.com/cgast/contr/pkg/sampler"
)

func openStore(cfg config.Config) (sampler.Store, func(), error) {
	store, closer, err := config.OpenStore(cfg.Sampler)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, fmt.Errorf("sampling is disabled in %s", configPath())
	}
	release := func() {}
	if closer != nil {
		release = func() { closer.Close() }
	}
	return store, release, nil
}

// handleList implements `contr list`.
func handleList(cfg config.Config) error {
	store, release, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer release()

	infos, err := store.List(context.Background())
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No samples.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTRACT\tTS\tFAILED\tID\tPATH")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", info.ContractName, info.TS, info.FailedRules, info.ID, info.Path)
	}
	return tw.Flush()
}

// handleRead implements `contr read <path>` and
// `contr read <contract> <period-id>`.
func handleRead(cfg config.Config) error {
	var loc sampler.Location
	switch len(os.Args) {
	case 3:
		loc = sampler.AtPath(os.Args[2])
	case 4:
		periodID, err := strconv.ParseInt(os.Args[3], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid period id %q: %w", os.Args[3], err)
		}
		loc = sampler.At(os.Args[2], periodID)
	default:
		fmt.Println("Usage: contr read <path> | contr read <contract> <period-id>")
		return nil
	}

	store, release, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer release()

	st, err := store.Read(context.Background(), loc)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}
