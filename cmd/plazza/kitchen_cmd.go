package main

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/plazza/plazza/internal/ipc"
	"github.com/plazza/plazza/internal/kitchen"
	"github.com/plazza/plazza/internal/plazzalog"
)

// newKitchenCommand builds the hidden subcommand a forked kitchen
// process re-exec's into. It is never invoked by a human directly; the
// dispatcher's fork protocol constructs its argv.
func newKitchenCommand() *cobra.Command {
	var id, cooks, restockMs, idleTimeoutS int
	var multiplier float64
	var logDir string

	cmd := &cobra.Command{
		Use:    "__kitchen",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKitchen(id, cooks, multiplier, restockMs, idleTimeoutS, logDir)
		},
	}
	cmd.Flags().IntVar(&id, "id", 0, "")
	cmd.Flags().IntVar(&cooks, "cooks", 1, "")
	cmd.Flags().Float64Var(&multiplier, "multiplier", 1.0, "")
	cmd.Flags().IntVar(&restockMs, "restock-ms", 5000, "")
	cmd.Flags().IntVar(&idleTimeoutS, "idle-timeout-s", 10, "")
	cmd.Flags().StringVar(&logDir, "log-dir", ".", "")
	return cmd
}

func runKitchen(id, cooks int, multiplier float64, restockMs, idleTimeoutS int, logDir string) error {
	logPath := filepath.Join(logDir, kitchenLogName(id))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	log := plazzalog.New(logFile)

	channel := ipc.AttachChild()

	opts := kitchen.DefaultOptions()
	opts.RestockPeriod = time.Duration(restockMs) * time.Millisecond
	opts.IdleTimeout = time.Duration(idleTimeoutS) * time.Second

	k := kitchen.New(id, cooks, multiplier, channel, opts, log, nil)
	k.Run()
	return nil
}

func kitchenLogName(id int) string {
	return "kitchen_" + strconv.Itoa(id) + ".log"
}
