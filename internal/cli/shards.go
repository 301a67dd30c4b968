package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/shardbus/internal/transport"
)

// NewShardsCmd создаёт команду вывода плана шардирования.
// Брокер не нужен: план вычисляется из флагов.
func NewShardsCmd(configFn func() transport.Config, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "shards",
		Short: "Show shard plan: queue and routing keys of every node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := transport.New(configFn())
			if err != nil {
				return err
			}
			defer sys.Disconnect()

			printShards(outputFn(), sys.Shards())
			return nil
		},
	}
}

// NewSetupCmd создаёт команду объявления топологии на всех узлах.
func NewSetupCmd(configFn func() transport.Config, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Declare exchange, queues and bindings on every node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			sys, err := transport.New(configFn())
			if err != nil {
				return err
			}
			defer sys.Disconnect()

			if err := sys.DeclareTopology(cmd.Context()); err != nil {
				return fmt.Errorf("declare topology: %w", err)
			}

			shards := sys.Shards()
			out.Success(fmt.Sprintf("Topology declared on %d node(s)", len(shards)))
			printShards(out, shards)
			return nil
		},
	}
}

func printShards(out *Output, shards []transport.Shard) {
	headers := []string{"INDEX", "NODE", "QUEUE", "KEYS", "ROUTING_KEYS"}
	rows := make([][]string, len(shards))
	for i, s := range shards {
		rows[i] = []string{
			strconv.Itoa(s.Index),
			s.Node,
			s.Queue,
			strconv.Itoa(len(s.RoutingKeys)),
			strings.Join(s.RoutingKeys, ","),
		}
	}

	out.Print(headers, rows, shards)
}
