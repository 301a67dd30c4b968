// shardbus — утилита для шардированного транспорта поверх узлов RabbitMQ.
//
// Использование:
//
//	shardbus [--nodes URL,...] [--exchange NAME] [--queue-prefix P] [--routing-keys K,...] [--json] <command> [flags]
//
// Команды:
//
//	shards   План шардирования
//	setup    Объявить топологию на всех узлах
//	publish  Опубликовать сообщения
//	consume  Читать сообщения со всех очередей
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/shardbus/internal/broker/amqpbroker"
	"github.com/shaiso/shardbus/internal/cli"
	"github.com/shaiso/shardbus/internal/telemetry"
	"github.com/shaiso/shardbus/internal/transport"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var opts cli.Options

	rootCmd := &cobra.Command{
		Use:           "shardbus",
		Short:         "shardbus — sharded publish/subscribe over RabbitMQ nodes",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.AddFlags(rootCmd, amqpbroker.DefaultURL())

	logger := telemetry.SetupLogger()

	configFn := func() transport.Config {
		return opts.Config(amqpbroker.NewFactory(logger), logger)
	}
	outputFn := func() *cli.Output { return cli.NewOutput(opts.JSON) }

	rootCmd.AddCommand(
		cli.NewShardsCmd(configFn, outputFn),
		cli.NewSetupCmd(configFn, outputFn),
		cli.NewPublishCmd(configFn, outputFn),
		cli.NewConsumeCmd(configFn, outputFn),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
