package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jrhy/livetree"
)

// withStore runs f against the configured store and closes it after.
func withStore(o *options, f func(ctx context.Context, s *livetree.Store) error) error {
	cfg, err := o.load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	s, err := openStore(ctx, cfg, nil)
	if err != nil {
		return err
	}
	err = f(ctx, s)
	if closeErr := s.Close(ctx); err == nil {
		err = closeErr
	}
	return err
}

func printValue(v livetree.Value) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func parseValue(arg string) (livetree.Value, error) {
	v, err := livetree.DecodeJSON([]byte(arg))
	if err != nil {
		return nil, fmt.Errorf("value must be JSON: %w", err)
	}
	return v, nil
}

func getCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Print the value at a path as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(o, func(ctx context.Context, s *livetree.Store) error {
				return printValue(s.Get(s.Ref(args[0])))
			})
		},
	}
}

func setCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <path> <json>",
		Short: "Replace the value at a path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseValue(args[1])
			if err != nil {
				return err
			}
			return withStore(o, func(ctx context.Context, s *livetree.Store) error {
				return s.Set(ctx, s.Ref(args[0]), v).Wait(ctx)
			})
		},
	}
}

func updateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "update <path> <json-object>",
		Short: "Merge keys into the mapping at a path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseValue(args[1])
			if err != nil {
				return err
			}
			partial, ok := v.(livetree.Node)
			if !ok {
				return fmt.Errorf("update needs a JSON object")
			}
			return withStore(o, func(ctx context.Context, s *livetree.Store) error {
				return s.Update(ctx, s.Ref(args[0]), partial).Wait(ctx)
			})
		},
	}
}

func pushCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "push <path> <json>",
		Short: "Add a value under a new entry ID and print the ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseValue(args[1])
			if err != nil {
				return err
			}
			return withStore(o, func(ctx context.Context, s *livetree.Store) error {
				ack := s.Push(ctx, s.Ref(args[0]), v)
				if err := ack.Wait(ctx); err != nil {
					return err
				}
				fmt.Println(ack.Key())
				return nil
			})
		},
	}
}

func removeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>",
		Short: "Delete the value at a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(o, func(ctx context.Context, s *livetree.Store) error {
				return s.Remove(ctx, s.Ref(args[0])).Wait(ctx)
			})
		},
	}
}

func watchCmd(o *options) *cobra.Command {
	var onExit string
	cmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Print the value at a path, then every change, until interrupted",
		Long: `Print the value at a path, then every change, until interrupted.

With --on-exit, the given JSON is written at the path when watch exits
gracefully, the way presence indicators are cleared.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var exitValue livetree.Value
			if onExit != "" {
				v, err := parseValue(onExit)
				if err != nil {
					return err
				}
				exitValue = v
			}
			return withStore(o, func(ctx context.Context, s *livetree.Store) error {
				ref := s.Ref(args[0])
				if exitValue != nil {
					if err := s.OnDisconnect(ref).Set(exitValue).Err(); err != nil {
						return err
					}
				}
				sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				cancel := s.Subscribe(ref, func(v livetree.Value) {
					b, err := json.Marshal(v)
					if err != nil {
						fmt.Fprintf(os.Stderr, "encode: %v\n", err)
						return
					}
					fmt.Println(string(b))
				})
				defer cancel()
				<-sigCtx.Done()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&onExit, "on-exit", "", "JSON value to write at the path on exit")
	return cmd
}
