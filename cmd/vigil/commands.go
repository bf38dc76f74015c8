package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/loykin/vigil"
	"github.com/loykin/vigil/internal/service"
	"github.com/loykin/vigil/pkg/client"
)

func newClient(apiURL string, timeout time.Duration) *client.Client {
	cfg := client.DefaultConfig()
	if apiURL != "" {
		cfg.BaseURL = apiURL
	}
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return client.New(cfg)
}

func runStatusCommand(flags *StatusFlags) error {
	c := newClient(flags.APIUrl, flags.APITimeout)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), flags.APITimeout)
		var (
			statuses []service.Status
			err      error
		)
		if flags.Name != "" {
			var st service.Status
			st, err = c.Status(ctx, flags.Name)
			statuses = []service.Status{st}
		} else {
			statuses, err = c.Statuses(ctx)
		}
		cancel()
		if err != nil {
			return err
		}
		printStatuses(statuses)
		if !flags.Watch {
			return nil
		}
		time.Sleep(flags.Interval)
	}
}

func printStatuses(statuses []service.Status) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSTATE\tFAILS\tRESTARTS\tLAST CHECK\tLAST ERROR")
	for _, st := range statuses {
		last := "-"
		if !st.LastCheckedAt.IsZero() {
			last = st.LastCheckedAt.Format(time.RFC3339)
		}
		errStr := st.LastError
		if errStr == "" {
			errStr = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d/%s\t%s\t%s\n",
			st.Name, st.State, st.ConsecutiveFails, st.RestartsToday, st.DayKey, last, errStr)
	}
	_ = w.Flush()
}

func runClearCommand(flags *ServiceFlags) error {
	c := newClient(flags.APIUrl, flags.APITimeout)
	ctx, cancel := context.WithTimeout(context.Background(), flags.APITimeout)
	defer cancel()
	if err := c.Clear(ctx, flags.Name); err != nil {
		return err
	}
	fmt.Printf("Cleared restart budget for %s\n", flags.Name)
	return nil
}

func runCheckCommand(flags *ServiceFlags) error {
	c := newClient(flags.APIUrl, flags.APITimeout)
	ctx, cancel := context.WithTimeout(context.Background(), flags.APITimeout)
	defer cancel()
	if err := c.Check(ctx, flags.Name); err != nil {
		return err
	}
	fmt.Printf("Scheduled immediate check for %s\n", flags.Name)
	return nil
}

func runValidateCommand(flags *ValidateFlags) error {
	if flags.ConfigPath == "" {
		return fmt.Errorf("config file required. Use --config=config.toml or provide as argument")
	}
	cfg, err := vigil.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}
	fmt.Printf("OK: %d service(s) configured\n", len(cfg.Services))
	return nil
}
