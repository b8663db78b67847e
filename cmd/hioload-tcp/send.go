// File: cmd/hioload-tcp/send.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-tcp/client"
)

func sendCmd() *cobra.Command {
	var (
		addr    string
		count   int
		timeout time.Duration
		noDelay bool
	)

	cmd := &cobra.Command{
		Use:   "send [message...]",
		Short: "Send packets and print the replies",
		Long: `Connect to a server, send each message as one packet and print
the packet received in reply.

Examples:
  hioload-tcp send --addr=127.0.0.1:9000 hello world
  hioload-tcp send --count=100 ping`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.Dial(addr,
				client.WithTimeouts(timeout, timeout, timeout),
				client.WithNoDelay(noDelay))
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			for i := 0; i < count; i++ {
				for _, msg := range args {
					if err := c.WritePacket([]byte(msg)); err != nil {
						return err
					}
					reply, err := c.ReadPacket()
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s\n", reply)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:9000", "Server address")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Times to repeat the message list")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Dial, read and write timeout")
	cmd.Flags().BoolVar(&noDelay, "nodelay", true, "Disable Nagle's algorithm")

	return cmd
}
