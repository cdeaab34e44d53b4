package main

import (
	"fmt"
	"os"

	"github.com/cgast/contr/internal/config"
	"github.com/cgast/contr/internal/inspector"
	"github.com/cgast/contr/pkg/events"
)

// handleInspect implements `contr inspect`: it serves the inspector over
// the configured sample store until interrupted.
func handleInspect(cfg config.Config) error {
	store, release, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer release()

	port := detectInspectorPort(cfg, os.Args[2:])
	if port == 0 {
		port = 4200
	}

	srv := inspector.New(events.NewMemoryBus(0), store)
	defer srv.Close()
	fmt.Fprintf(os.Stderr, "Inspector running at http://localhost:%d\n", port)
	return srv.Start(port)
}
