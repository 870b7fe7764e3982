package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/roffe/flexcan"
	"github.com/roffe/flexcan/instance"
	"github.com/roffe/flexcan/pkg/supervisor"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// session is a started controller plus the goroutines serving it.
type session struct {
	*instance.Controller
	ctx    context.Context
	cancel context.CancelFunc
	g      *errgroup.Group
}

func (s *session) Close() error {
	s.cancel()
	err := s.g.Wait()
	if stopErr := s.Stop(); stopErr != nil {
		return stopErr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func selectInstance() (string, error) {
	prompt := promptui.Select{
		Label: "Select controller",
		Items: instance.Names(),
		Size:  10,
	}
	_, result, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return result, nil
}

func startConfig(cmd *cobra.Command) (*flexcan.Config, error) {
	pf := cmd.Flags()
	cfg := flexcan.DefaultConfig()
	if file, _ := pf.GetString(flagConfig); file != "" {
		var err error
		if cfg, err = flexcan.LoadConfig(file); err != nil {
			return nil, err
		}
	}
	if lb, _ := pf.GetBool(flagLoopback); lb {
		cfg.LoopBack = true
	}
	return cfg, nil
}

func initCAN(cmd *cobra.Command) (*session, error) {
	pf := cmd.Flags()
	name, _ := pf.GetString(flagInstance)
	if name == "" {
		var err error
		if name, err = selectInstance(); err != nil {
			return nil, err
		}
	}
	debug, _ := pf.GetBool(flagDebug)
	rx, _ := pf.GetInt(flagRx)

	c, err := instance.Open(name, &instance.Config{
		RxMailboxes: rx,
		Debug:       debug,
		OnMessage: func(msg string) {
			log.Println(msg)
		},
	})
	if err != nil {
		return nil, err
	}
	cfg, err := startConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := c.Start(cfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Run(gctx)
	})
	if rec, _ := pf.GetBool(flagRecover); rec {
		g.Go(func() error {
			return supervisor.Supervise(gctx, c.Driver, supervisor.WithOnMessage(func(msg string) {
				log.Println(msg)
			}))
		})
	}
	return &session{Controller: c, ctx: gctx, cancel: cancel, g: g}, nil
}

// parseID accepts decimal or 0x prefixed hex.
func parseID(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier %q: %w", s, err)
	}
	return uint32(v), nil
}

// parseData accepts hex bytes, optionally separated by spaces or colons.
func parseData(args []string) ([]byte, error) {
	s := strings.NewReplacer(" ", "", ":", "").Replace(strings.Join(args, ""))
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd number of hex digits in %q", s)
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid data byte %q: %w", s[i*2:i*2+2], err)
		}
		out[i] = byte(v)
	}
	return out, nil
}
